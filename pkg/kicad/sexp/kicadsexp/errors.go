package kicadsexp

import (
	"fmt"

	"github.com/alecthomas/participle/v2/lexer"
)

// ParseError reports malformed S-expression structure with the position of
// the offending token.
type ParseError struct {
	Pos lexer.Position
	Msg string
}

func (e *ParseError) Error() string {
	if e.Pos.Line > 0 {
		return fmt.Sprintf("%d:%d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
	}
	return e.Msg
}

// FallbackError is returned when both the strict and the tolerant parser
// reject a document.
type FallbackError struct {
	Strict   error
	Tolerant error
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("strict parse failed (%v); tolerant parse failed (%v)", e.Strict, e.Tolerant)
}

func (e *FallbackError) Unwrap() error { return e.Strict }
