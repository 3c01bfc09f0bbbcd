package template

import (
	"fmt"
	"strings"
)

// Syntax describes the delimiter tokens a single template uses. It is pure
// data consulted by the lexer at each decision point, so any delimiter
// style can be supplied per template without touching the engine.
//
// A Syntax must pass Validate before it is used for lexing; ambiguous
// descriptors are rejected eagerly, before any template is ever lexed.
type Syntax struct {
	ExprOpen  string `json:"expr_open"`
	ExprClose string `json:"expr_close"`

	StmtOpen  string `json:"stmt_open"`
	StmtClose string `json:"stmt_close"`

	CommentOpen  string `json:"comment_open"`
	CommentClose string `json:"comment_close"`

	// TrimBlocks removes a single trailing newline after a statement or
	// comment close token.
	TrimBlocks bool `json:"trim_blocks"`

	// LstripBlocks removes blank indentation before a statement or
	// comment open token that starts its own line.
	LstripBlocks bool `json:"lstrip_blocks"`
}

// DefaultSyntax returns the conventional delimiter set: {{ }} for
// expressions, {% %} for statements and {# #} for comments, with both
// whitespace-trim policies enabled.
func DefaultSyntax() Syntax {
	return Syntax{
		ExprOpen:     "{{",
		ExprClose:    "}}",
		StmtOpen:     "{%",
		StmtClose:    "%}",
		CommentOpen:  "{#",
		CommentClose: "#}",
		TrimBlocks:   true,
		LstripBlocks: true,
	}
}

// Validate checks that every delimiter token is non-empty and that no two
// open tokens of distinct categories are equal or prefix one another,
// which would make lexing ambiguous.
func (s Syntax) Validate() error {
	pairs := []struct {
		name        string
		open, close string
	}{
		{"expression", s.ExprOpen, s.ExprClose},
		{"statement", s.StmtOpen, s.StmtClose},
		{"comment", s.CommentOpen, s.CommentClose},
	}

	for _, p := range pairs {
		if p.open == "" || p.close == "" {
			return fmt.Errorf("syntax: %s delimiters must be non-empty", p.name)
		}
	}

	for i, a := range pairs {
		for j, b := range pairs {
			if i == j {
				continue
			}
			if strings.HasPrefix(b.open, a.open) {
				return fmt.Errorf("syntax: %s open %q is ambiguous with %s open %q",
					a.name, a.open, b.name, b.open)
			}
		}
	}

	return nil
}
