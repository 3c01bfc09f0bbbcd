package template

// Node is one element of a parsed template. The concrete types below are
// the full set of variants; expression and statement sources inside them
// are captured verbatim and only ever interpreted by the scripting
// runtime, never by this package.
type Node interface {
	node()
}

// Block is an ordered sequence of nodes.
type Block []Node

// TextNode is a run of literal output bytes.
type TextNode struct {
	Text string
}

// InterpNode evaluates an expression and emits its canonical text form.
type InterpNode struct {
	Expr   string
	Offset int
}

// IfNode renders Then when its condition is truthy, otherwise Else. Else
// is nil when the template had no `else` marker.
type IfNode struct {
	Cond   string
	Offset int
	Then   Block
	Else   Block
}

// ForNode renders Body once per element of the iterable, binding Var each
// time in the same scripting context.
type ForNode struct {
	Var    string
	Expr   string
	Offset int
	Body   Block
}

// RawNode executes a scripting statement for its side effects; it emits
// nothing itself.
type RawNode struct {
	Stmt   string
	Offset int
}

// TransformNode renders Body into a capture buffer, binds the captured
// text to Var, evaluates Expr and emits the result, then unbinds Var.
type TransformNode struct {
	Var    string
	Expr   string
	Offset int
	Body   Block
}

func (*TextNode) node()      {}
func (*InterpNode) node()    {}
func (*IfNode) node()        {}
func (*ForNode) node()       {}
func (*RawNode) node()       {}
func (*TransformNode) node() {}
