package kicadsexp

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// sexpLexer defines the lexical structure of KiCad S-expression files.
var sexpLexer = lexer.MustSimple([]lexer.SimpleRule{
	// Whitespace between tokens
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},

	// Line comments (rare in KiCad output, but accepted on input)
	{Name: "Comment", Pattern: `#[^\n]*`},

	// Delimiters
	{Name: "LParen", Pattern: `\(`},
	{Name: "RParen", Pattern: `\)`},

	// Quoted string with backslash escapes
	{Name: "String", Pattern: `"(?:[^"\\]|\\.)*"`},

	// Unquoted atom: identifier, keyword, or number
	{Name: "Atom", Pattern: `[^\s()"]+`},
})

var (
	tokWhitespace = sexpLexer.Symbols()["Whitespace"]
	tokComment    = sexpLexer.Symbols()["Comment"]
	tokLParen     = sexpLexer.Symbols()["LParen"]
	tokRParen     = sexpLexer.Symbols()["RParen"]
	tokString     = sexpLexer.Symbols()["String"]
	tokAtom       = sexpLexer.Symbols()["Atom"]
)

// ParseStrict parses all top-level expressions, reporting the position of
// any structural error (unmatched delimiter, unterminated string).
func ParseStrict(data []byte) ([]Sexp, error) {
	lx, err := sexpLexer.LexString("", string(data))
	if err != nil {
		return nil, &ParseError{Msg: err.Error()}
	}

	type frame struct {
		list *List
		pos  lexer.Position
	}

	var result []Sexp
	var stack []frame

	push := func(node Sexp) {
		if len(stack) == 0 {
			result = append(result, node)
		} else {
			stack[len(stack)-1].list.Append(node)
		}
	}

	for {
		tok, err := lx.Next()
		if err != nil {
			// The lexer fails here on input no rule matches, e.g. an
			// unterminated quote running to EOF.
			return nil, &ParseError{Pos: tok.Pos, Msg: err.Error()}
		}
		if tok.EOF() {
			break
		}

		switch tok.Type {
		case tokWhitespace, tokComment:
			continue

		case tokLParen:
			stack = append(stack, frame{list: NewList(), pos: tok.Pos})

		case tokRParen:
			if len(stack) == 0 {
				return nil, &ParseError{Pos: tok.Pos, Msg: "unexpected ')'"}
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			push(top.list)

		case tokString:
			push(String(unescapeString(tok.Value)))

		case tokAtom:
			push(Symbol(tok.Value))
		}
	}

	if len(stack) > 0 {
		open := stack[len(stack)-1]
		return nil, &ParseError{Pos: open.pos, Msg: "unclosed '('"}
	}
	if len(result) == 0 {
		return nil, &ParseError{Msg: "empty input: no S-expressions found"}
	}

	return result, nil
}

// unescapeString strips the surrounding quotes and resolves backslash
// escapes in a String token.
func unescapeString(raw string) string {
	body := strings.TrimSuffix(strings.TrimPrefix(raw, `"`), `"`)
	if !strings.ContainsRune(body, '\\') {
		return body
	}

	var b strings.Builder
	for i := 0; i < len(body); i++ {
		ch := body[i]
		if ch != '\\' || i+1 >= len(body) {
			b.WriteByte(ch)
			continue
		}
		i++
		switch body[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\':
			b.WriteByte('\\')
		case '"':
			b.WriteByte('"')
		default:
			// Unknown escape: keep it verbatim
			b.WriteByte('\\')
			b.WriteByte(body[i])
		}
	}
	return b.String()
}
