package template

import "slices"

// OpCode enumerates the instruction set a Program executes.
type OpCode int

const (
	// OpEmit appends Literal to the output verbatim.
	OpEmit OpCode = iota
	// OpEval evaluates fragment Frag and appends its canonical text form.
	OpEval
	// OpExec executes fragment Frag as a statement; it emits nothing.
	OpExec
	// OpIf evaluates fragment Frag; on a falsy result the instruction
	// pointer jumps to Target, otherwise it falls through.
	OpIf
	// OpJump moves the instruction pointer to Target unconditionally.
	OpJump
	// OpLoop evaluates fragment Frag as an iterable and drives the body
	// range [BodyStart, BodyEnd) once per element, binding Var each time.
	OpLoop
	// OpCapture pushes a fresh output capture buffer.
	OpCapture
	// OpTransform pops the capture buffer, binds its text to Var,
	// evaluates fragment Frag and emits the result, then unbinds Var.
	OpTransform
	// OpEnd closes the innermost loop body.
	OpEnd
)

func (op OpCode) String() string {
	switch op {
	case OpEmit:
		return "emit"
	case OpEval:
		return "eval"
	case OpExec:
		return "exec"
	case OpIf:
		return "if"
	case OpJump:
		return "jump"
	case OpLoop:
		return "loop"
	case OpCapture:
		return "capture"
	case OpTransform:
		return "transform"
	case OpEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Instruction is one step of a compiled template. Which fields are
// meaningful depends on Op; see the OpCode constants. Instruction indices
// are stable offsets, used directly as jump targets.
type Instruction struct {
	Op        OpCode `json:"op"`
	Literal   string `json:"literal,omitempty"`
	Frag      int    `json:"frag,omitempty"`
	Target    int    `json:"target,omitempty"`
	Var       string `json:"var,omitempty"`
	BodyStart int    `json:"body_start,omitempty"`
	BodyEnd   int    `json:"body_end,omitempty"`
}

// Program is the compiled, immutable form of a template: a flat
// instruction sequence plus the table of scripting-source fragments the
// instructions refer to. A Program is never mutated after Compile returns,
// which is what makes sharing it across concurrent renders safe without
// locks.
type Program struct {
	ops   []Instruction
	frags []string
}

// Instructions returns a copy of the instruction sequence.
func (p *Program) Instructions() []Instruction { return slices.Clone(p.ops) }

// Fragments returns a copy of the fragment table.
func (p *Program) Fragments() []string { return slices.Clone(p.frags) }

// Len returns the number of instructions.
func (p *Program) Len() int { return len(p.ops) }
