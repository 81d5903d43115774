package kicadsexp

import (
	"bufio"
	"fmt"
	"io"
	"unicode"
)

// The tolerant parser streams tokens from an io.Reader and accepts input
// the strict lexer rejects: doubled-quote escapes, stray control bytes,
// and truncated trailing atoms. It keeps no positions; the strict parser
// already reported those before the fallback runs.

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenLeftParen
	tokenRightParen
	tokenSymbol
	tokenString
)

type token struct {
	Type  tokenType
	Value string
}

type streamLexer struct {
	reader *bufio.Reader
	peeked *rune
}

func newStreamLexer(r io.Reader) *streamLexer {
	return &streamLexer{reader: bufio.NewReader(r)}
}

func (l *streamLexer) next() (token, error) {
	for {
		ch, err := l.peek()
		if err != nil {
			if err == io.EOF {
				return token{Type: tokenEOF}, nil
			}
			return token{}, err
		}

		if unicode.IsSpace(ch) || ch < ' ' {
			l.read()
			continue
		}

		// Comments run from # to end of line
		if ch == '#' {
			for {
				c, err := l.read()
				if err != nil || c == '\n' {
					break
				}
			}
			continue
		}

		break
	}

	ch, err := l.peek()
	if err != nil {
		if err == io.EOF {
			return token{Type: tokenEOF}, nil
		}
		return token{}, err
	}

	switch ch {
	case '(':
		l.read()
		return token{Type: tokenLeftParen, Value: "("}, nil

	case ')':
		l.read()
		return token{Type: tokenRightParen, Value: ")"}, nil

	case '"':
		return l.readString()

	default:
		return l.readSymbol()
	}
}

func (l *streamLexer) peek() (rune, error) {
	if l.peeked != nil {
		return *l.peeked, nil
	}

	ch, _, err := l.reader.ReadRune()
	if err != nil {
		return 0, err
	}

	l.peeked = &ch
	return ch, nil
}

func (l *streamLexer) read() (rune, error) {
	if l.peeked != nil {
		ch := *l.peeked
		l.peeked = nil
		return ch, nil
	}

	ch, _, err := l.reader.ReadRune()
	return ch, err
}

func (l *streamLexer) readString() (token, error) {
	l.read() // opening quote

	var result []rune
	for {
		ch, err := l.read()
		if err != nil {
			if err == io.EOF {
				// Unterminated string: return what we have
				return token{Type: tokenString, Value: string(result)}, nil
			}
			return token{}, err
		}

		if ch == '"' {
			// Doubled quote is an escaped quote
			next, err := l.peek()
			if err == nil && next == '"' {
				l.read()
				result = append(result, '"')
				continue
			}
			break
		}

		if ch == '\\' {
			next, err := l.read()
			if err != nil {
				return token{Type: tokenString, Value: string(result)}, nil
			}
			switch next {
			case 'n':
				result = append(result, '\n')
			case 't':
				result = append(result, '\t')
			case 'r':
				result = append(result, '\r')
			case '\\':
				result = append(result, '\\')
			case '"':
				result = append(result, '"')
			default:
				result = append(result, next)
			}
			continue
		}

		result = append(result, ch)
	}

	return token{Type: tokenString, Value: string(result)}, nil
}

func (l *streamLexer) readSymbol() (token, error) {
	var result []rune

	for {
		ch, err := l.peek()
		if err != nil {
			if err == io.EOF {
				break
			}
			return token{}, err
		}

		if unicode.IsSpace(ch) || ch == '(' || ch == ')' || ch == '"' {
			break
		}

		l.read()
		result = append(result, ch)
	}

	if len(result) == 0 {
		return token{}, fmt.Errorf("empty symbol")
	}

	return token{Type: tokenSymbol, Value: string(result)}, nil
}

// ParseTolerant parses all top-level S-expressions from r with the
// streaming lexer.
func ParseTolerant(r io.Reader) ([]Sexp, error) {
	lx := newStreamLexer(r)

	var result []Sexp
	var stack []*List

	push := func(node Sexp) {
		if len(stack) == 0 {
			result = append(result, node)
		} else {
			stack[len(stack)-1].Append(node)
		}
	}

	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}

		switch tok.Type {
		case tokenEOF:
			if len(stack) > 0 {
				return nil, fmt.Errorf("unexpected EOF: %d unclosed list(s)", len(stack))
			}
			if len(result) == 0 {
				return nil, fmt.Errorf("empty input: no S-expressions found")
			}
			return result, nil

		case tokenLeftParen:
			stack = append(stack, NewList())

		case tokenRightParen:
			if len(stack) == 0 {
				return nil, fmt.Errorf("unexpected ')'")
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			push(top)

		case tokenString:
			push(String(tok.Value))

		case tokenSymbol:
			push(Symbol(tok.Value))
		}
	}
}
