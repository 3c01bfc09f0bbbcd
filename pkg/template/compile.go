package template

// Compile lowers an AST into a Program. Compilation walks the tree
// depth-first, emitting instructions and back-patching forward jump
// targets once block extents are known. It never evaluates scripting
// fragments, only records their source text, so compiling is
// deterministic and free of side effects.
func Compile(root Block) *Program {
	c := &compiler{fragIDs: make(map[string]int)}
	c.block(root)
	return &Program{ops: c.ops, frags: c.frags}
}

// CompileSource lexes, parses and compiles source in one step. It is a
// convenience for tests and tooling; production callers should run the
// stages separately to report errors with offsets.
func CompileSource(source string, syn Syntax) (*Program, error) {
	tokens, err := Lex(source, syn)
	if err != nil {
		return nil, err
	}
	ast, err := Parse(tokens)
	if err != nil {
		return nil, err
	}
	return Compile(ast), nil
}

type compiler struct {
	ops     []Instruction
	frags   []string
	fragIDs map[string]int
}

// frag interns a fragment's source text and returns its id. Identical
// fragments share an id; interning order makes the table deterministic.
func (c *compiler) frag(src string) int {
	if id, ok := c.fragIDs[src]; ok {
		return id
	}
	id := len(c.frags)
	c.frags = append(c.frags, src)
	c.fragIDs[src] = id
	return id
}

func (c *compiler) emit(in Instruction) int {
	c.ops = append(c.ops, in)
	return len(c.ops) - 1
}

func (c *compiler) block(b Block) {
	for _, n := range b {
		switch n := n.(type) {
		case *TextNode:
			c.emit(Instruction{Op: OpEmit, Literal: n.Text})

		case *InterpNode:
			c.emit(Instruction{Op: OpEval, Frag: c.frag(n.Expr)})

		case *RawNode:
			c.emit(Instruction{Op: OpExec, Frag: c.frag(n.Stmt)})

		case *IfNode:
			ifIdx := c.emit(Instruction{Op: OpIf, Frag: c.frag(n.Cond)})
			c.block(n.Then)
			if n.Else != nil {
				jmpIdx := c.emit(Instruction{Op: OpJump})
				c.ops[ifIdx].Target = len(c.ops)
				c.block(n.Else)
				c.ops[jmpIdx].Target = len(c.ops)
			} else {
				c.ops[ifIdx].Target = len(c.ops)
			}

		case *ForNode:
			loopIdx := c.emit(Instruction{Op: OpLoop, Var: n.Var, Frag: c.frag(n.Expr)})
			c.block(n.Body)
			endIdx := c.emit(Instruction{Op: OpEnd})
			c.ops[loopIdx].BodyStart = loopIdx + 1
			c.ops[loopIdx].BodyEnd = endIdx

		case *TransformNode:
			c.emit(Instruction{Op: OpCapture})
			c.block(n.Body)
			c.emit(Instruction{Op: OpTransform, Var: n.Var, Frag: c.frag(n.Expr)})
		}
	}
}
