package template

import (
	"errors"
	"fmt"
)

// SyntaxError reports an open delimiter with no matching close before
// end-of-input. Offset is the byte offset of the open token.
type SyntaxError struct {
	Offset int
	Delim  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("unclosed %q delimiter at offset %d", e.Delim, e.Offset)
}

// ParseErrorKind classifies structural grammar violations.
type ParseErrorKind int

const (
	// UnexpectedEnd is an `end` with no open block to close.
	UnexpectedEnd ParseErrorKind = iota
	// UnclosedBlock is end-of-input while an `if`, `for` or `transform`
	// block is still open.
	UnclosedBlock
	// UnknownStatement is a statement span whose first keyword is not
	// part of the template grammar.
	UnknownStatement
	// MalformedStatement is a recognized keyword used invalidly, e.g.
	// `for` without `in`, `if` without a condition, or `else` outside
	// an `if` block.
	MalformedStatement
)

func (k ParseErrorKind) String() string {
	switch k {
	case UnexpectedEnd:
		return "unexpected end"
	case UnclosedBlock:
		return "unclosed block"
	case UnknownStatement:
		return "unknown statement"
	case MalformedStatement:
		return "malformed statement"
	default:
		return "parse error"
	}
}

// ParseError reports a structural grammar violation at a source offset.
type ParseError struct {
	Kind   ParseErrorKind
	Offset int
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s at offset %d", e.Kind, e.Offset)
	}
	return fmt.Sprintf("%s at offset %d: %s", e.Kind, e.Offset, e.Detail)
}

// ScriptError reports that the embedded scripting runtime rejected a
// fragment, either at load time or while executing user logic.
type ScriptError struct {
	Fragment string
	Message  string
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("script error in %q: %s", e.Fragment, e.Message)
}

// RenderErrorKind classifies render-time failures.
type RenderErrorKind int

const (
	// ScriptFailure wraps a ScriptError propagated from the Host binding.
	ScriptFailure RenderErrorKind = iota
	// UnboundVariable is a loop iterable that evaluated to nil, which
	// almost always means the name was never bound.
	UnboundVariable
	// TypeMismatch is an operation on a value of the wrong kind, e.g.
	// iterating a number.
	TypeMismatch
)

func (k RenderErrorKind) String() string {
	switch k {
	case ScriptFailure:
		return "script failure"
	case UnboundVariable:
		return "unbound variable"
	case TypeMismatch:
		return "type mismatch"
	default:
		return "render error"
	}
}

// RenderError aborts a single render call. Instruction is the index of the
// failing instruction in the Program, or -1 when the failure happened
// before execution started (context creation, data binding).
type RenderError struct {
	Kind        RenderErrorKind
	Instruction int
	Err         error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("%s at instruction %d: %v", e.Kind, e.Instruction, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Sentinel errors a Host returns from Iterate so the renderer can tell an
// unbound name apart from a value of the wrong kind.
var (
	ErrNilIterable = errors.New("iterable expression evaluated to nil")
	ErrNotIterable = errors.New("value is not iterable")
)
