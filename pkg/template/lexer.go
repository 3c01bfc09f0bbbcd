package template

import (
	"strings"
)

// TokenKind enumerates the token categories the lexer can emit. Comment
// spans are consumed by the lexer and never appear in the token slice.
type TokenKind int

const (
	TokenText TokenKind = iota
	TokenExpr
	TokenStmt
)

func (k TokenKind) String() string {
	switch k {
	case TokenText:
		return "text"
	case TokenExpr:
		return "expression"
	case TokenStmt:
		return "statement"
	default:
		return "unknown"
	}
}

// Token is one lexed span. Offset is the byte offset of the span's start
// in the source, used for error reporting downstream. For TokenExpr and
// TokenStmt the Text is the span's inner content with surrounding
// whitespace trimmed; for TokenText it is the literal bytes verbatim.
type Token struct {
	Kind   TokenKind
	Text   string
	Offset int
}

// category order is also the tie priority: when two categories open at the
// same offset, the comment wins over the statement over the expression.
type delimCategory int

const (
	catComment delimCategory = iota
	catStmt
	catExpr
)

// Lex scans source in a single left-to-right pass and returns its tokens.
// An open delimiter with no matching close fails with *SyntaxError and no
// token slice is returned. The syntax descriptor is validated first, so a
// malformed descriptor is rejected before any scanning happens.
func Lex(source string, syn Syntax) ([]Token, error) {
	if err := syn.Validate(); err != nil {
		return nil, err
	}

	delims := []struct {
		cat         delimCategory
		open, close string
	}{
		{catComment, syn.CommentOpen, syn.CommentClose},
		{catStmt, syn.StmtOpen, syn.StmtClose},
		{catExpr, syn.ExprOpen, syn.ExprClose},
	}

	var tokens []Token
	var lit strings.Builder
	litStart := 0
	pos := 0
	// lineStart tracks whether pos sits at the start of an output line
	// while no literal text is pending; once lit holds text, its tail
	// decides instead. TrimBlocks consuming a newline re-starts a line
	// even though the newline itself is gone from the output.
	lineStart := true

	flush := func() {
		if lit.Len() > 0 {
			tokens = append(tokens, Token{Kind: TokenText, Text: lit.String(), Offset: litStart})
			lit.Reset()
		}
	}

	for pos < len(source) {
		// Earliest open token wins; the category order breaks exact ties.
		openAt := -1
		var active int
		for i, d := range delims {
			if at := strings.Index(source[pos:], d.open); at >= 0 && (openAt == -1 || pos+at < openAt) {
				openAt = pos + at
				active = i
			}
		}

		if openAt == -1 {
			if lit.Len() == 0 {
				litStart = pos
			}
			lit.WriteString(source[pos:])
			break
		}

		d := delims[active]
		piece := source[pos:openAt]
		if syn.LstripBlocks && d.cat != catExpr {
			atLineStart := lineStart
			if s := lit.String(); s != "" {
				atLineStart = s[len(s)-1] == '\n'
			}
			piece = lstrip(piece, atLineStart)
		}
		if piece != "" {
			if lit.Len() == 0 {
				litStart = pos
			}
			lit.WriteString(piece)
		}

		innerStart := openAt + len(d.open)
		closeAt := strings.Index(source[innerStart:], d.close)
		if closeAt < 0 {
			return nil, &SyntaxError{Offset: openAt, Delim: d.open}
		}
		inner := source[innerStart : innerStart+closeAt]
		pos = innerStart + closeAt + len(d.close)

		switch d.cat {
		case catExpr:
			flush()
			tokens = append(tokens, Token{Kind: TokenExpr, Text: strings.TrimSpace(inner), Offset: openAt})
		case catStmt:
			flush()
			tokens = append(tokens, Token{Kind: TokenStmt, Text: strings.TrimSpace(inner), Offset: openAt})
		case catComment:
			// Discarded entirely; only the trim policy below applies.
		}

		lineStart = false
		if syn.TrimBlocks && d.cat != catExpr {
			if strings.HasPrefix(source[pos:], "\r\n") {
				pos += 2
				lineStart = true
			} else if strings.HasPrefix(source[pos:], "\n") {
				pos++
				lineStart = true
			}
		}
	}

	flush()
	return tokens, nil
}

// lstrip drops a trailing run of spaces and tabs from piece when that run
// makes up the whole line the following open token starts on. atLineStart
// reports whether the start of piece is itself a line start, which decides
// a run spanning the entire piece.
func lstrip(piece string, atLineStart bool) string {
	i := len(piece)
	for i > 0 && (piece[i-1] == ' ' || piece[i-1] == '\t') {
		i--
	}
	if i == len(piece) {
		return piece
	}
	if i == 0 {
		if atLineStart {
			return ""
		}
		return piece
	}
	if piece[i-1] == '\n' {
		return piece[:i]
	}
	return piece
}
