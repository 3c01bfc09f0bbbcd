package template

import (
	"strings"
)

// Parse consumes a token slice and builds the template's AST. Statement
// spans are parsed by a small keyword grammar:
//
//	if <expr>              opens a conditional
//	else                   switches the nearest open if to its else branch
//	for <name> in <expr>   opens a loop
//	transform <name> <expr> opens a capture-and-transform block
//	do <stmt>              executes a raw scripting statement
//	end                    closes the nearest open block
//
// Expression spans and the tails of `if`, `for`, `do` and `transform` are
// not interpreted here; their text is handed to the scripting runtime at
// render time. Structural violations fail with *ParseError.
func Parse(tokens []Token) (Block, error) {
	p := &parser{root: Block{}}

	for _, tok := range tokens {
		switch tok.Kind {
		case TokenText:
			p.append(&TextNode{Text: tok.Text})
		case TokenExpr:
			p.append(&InterpNode{Expr: tok.Text, Offset: tok.Offset})
		case TokenStmt:
			if err := p.statement(tok); err != nil {
				return nil, err
			}
		}
	}

	if len(p.open) > 0 {
		top := p.open[len(p.open)-1]
		return nil, &ParseError{Kind: UnclosedBlock, Offset: top.offset, Detail: top.keyword + " block never closed"}
	}

	return p.root, nil
}

type openBlock struct {
	keyword string
	offset  int
	ifNode  *IfNode
	forNode *ForNode
	trNode  *TransformNode
	inElse  bool
}

type parser struct {
	root Block
	open []openBlock
}

// append adds a node to the innermost open block, or to the root when no
// block is open.
func (p *parser) append(n Node) {
	if len(p.open) == 0 {
		p.root = append(p.root, n)
		return
	}
	top := &p.open[len(p.open)-1]
	switch {
	case top.ifNode != nil && top.inElse:
		top.ifNode.Else = append(top.ifNode.Else, n)
	case top.ifNode != nil:
		top.ifNode.Then = append(top.ifNode.Then, n)
	case top.forNode != nil:
		top.forNode.Body = append(top.forNode.Body, n)
	default:
		top.trNode.Body = append(top.trNode.Body, n)
	}
}

func (p *parser) statement(tok Token) error {
	keyword, rest := splitKeyword(tok.Text)

	switch keyword {
	case "if":
		if rest == "" {
			return &ParseError{Kind: MalformedStatement, Offset: tok.Offset, Detail: "if requires a condition"}
		}
		p.open = append(p.open, openBlock{
			keyword: "if",
			offset:  tok.Offset,
			ifNode:  &IfNode{Cond: rest, Offset: tok.Offset},
		})

	case "else":
		if rest != "" {
			return &ParseError{Kind: MalformedStatement, Offset: tok.Offset, Detail: "else takes no arguments"}
		}
		if len(p.open) == 0 || p.open[len(p.open)-1].ifNode == nil {
			return &ParseError{Kind: MalformedStatement, Offset: tok.Offset, Detail: "else outside an if block"}
		}
		top := &p.open[len(p.open)-1]
		if top.inElse {
			return &ParseError{Kind: MalformedStatement, Offset: tok.Offset, Detail: "duplicate else"}
		}
		top.inElse = true
		top.ifNode.Else = Block{}

	case "end":
		if rest != "" {
			return &ParseError{Kind: MalformedStatement, Offset: tok.Offset, Detail: "end takes no arguments"}
		}
		if len(p.open) == 0 {
			return &ParseError{Kind: UnexpectedEnd, Offset: tok.Offset, Detail: "end with no open block"}
		}
		top := p.open[len(p.open)-1]
		p.open = p.open[:len(p.open)-1]
		switch {
		case top.ifNode != nil:
			p.append(top.ifNode)
		case top.forNode != nil:
			p.append(top.forNode)
		default:
			p.append(top.trNode)
		}

	case "for":
		name, tail := splitKeyword(rest)
		in, expr := splitKeyword(tail)
		if !isIdentifier(name) || in != "in" || expr == "" {
			return &ParseError{Kind: MalformedStatement, Offset: tok.Offset, Detail: "expected: for <name> in <expr>"}
		}
		p.open = append(p.open, openBlock{
			keyword: "for",
			offset:  tok.Offset,
			forNode: &ForNode{Var: name, Expr: expr, Offset: tok.Offset},
		})

	case "transform":
		name, expr := splitKeyword(rest)
		if !isIdentifier(name) || expr == "" {
			return &ParseError{Kind: MalformedStatement, Offset: tok.Offset, Detail: "expected: transform <name> <expr>"}
		}
		p.open = append(p.open, openBlock{
			keyword: "transform",
			offset:  tok.Offset,
			trNode:  &TransformNode{Var: name, Expr: expr, Offset: tok.Offset},
		})

	case "do":
		if rest == "" {
			return &ParseError{Kind: MalformedStatement, Offset: tok.Offset, Detail: "do requires a statement"}
		}
		p.append(&RawNode{Stmt: rest, Offset: tok.Offset})

	case "":
		return &ParseError{Kind: UnknownStatement, Offset: tok.Offset, Detail: "empty statement"}

	default:
		return &ParseError{Kind: UnknownStatement, Offset: tok.Offset, Detail: "unknown keyword " + keyword}
	}

	return nil
}

// splitKeyword splits off the first whitespace-delimited word and returns
// it with the trimmed remainder.
func splitKeyword(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := strings.IndexFunc(s, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' })
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
