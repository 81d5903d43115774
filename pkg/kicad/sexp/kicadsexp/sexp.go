// Package kicadsexp parses and serializes the S-expression syntax used by
// KiCad design files. Two parser implementations share one output model: a
// strict parser that reports positions for malformed input, and a tolerant
// streaming parser that accepts files the strict lexer rejects.
package kicadsexp

import (
	"io"
	"strings"
)

// Sexp represents an S-expression node.
// It is either an atom (Symbol, String) or a List.
type Sexp interface {
	// IsLeaf returns true if this is an atom (not a list)
	IsLeaf() bool

	// LeafCount returns the number of elements in a list (1 for atoms)
	LeafCount() int

	// Head returns the first element of a list (the atom itself for atoms)
	Head() Sexp

	// Tail returns the rest of the list after the first element (nil for atoms)
	Tail() Sexp

	// String returns the serialized representation
	String() string
}

// Symbol is an unquoted atom: an identifier, keyword, or number.
// The raw text is kept verbatim so numeric formatting survives round-trips.
type Symbol string

func (s Symbol) IsLeaf() bool   { return true }
func (s Symbol) LeafCount() int { return 1 }
func (s Symbol) Head() Sexp     { return s }
func (s Symbol) Tail() Sexp     { return nil }
func (s Symbol) String() string { return string(s) }

// String is a quoted atom. The value is stored unescaped; String() re-quotes.
type String string

func (s String) IsLeaf() bool   { return true }
func (s String) LeafCount() int { return 1 }
func (s String) Head() Sexp     { return s }
func (s String) Tail() Sexp     { return nil }
func (s String) String() string { return Quote(string(s)) }

// List is an ordered sequence of S-expressions.
type List struct {
	elements []Sexp
}

// NewList builds a list from elements in order.
func NewList(elements ...Sexp) *List {
	return &List{elements: elements}
}

func (l *List) IsLeaf() bool { return false }

func (l *List) LeafCount() int {
	return len(l.elements)
}

func (l *List) Head() Sexp {
	if len(l.elements) == 0 {
		return nil
	}
	return l.elements[0]
}

func (l *List) Tail() Sexp {
	if len(l.elements) <= 1 {
		return nil
	}
	return &List{elements: l.elements[1:]}
}

func (l *List) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, elem := range l.elements {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(elem.String())
	}
	b.WriteByte(')')
	return b.String()
}

// Get returns the element at the given index, or nil when out of range.
func (l *List) Get(index int) Sexp {
	if index < 0 || index >= len(l.elements) {
		return nil
	}
	return l.elements[index]
}

// Len returns the number of elements in the list.
func (l *List) Len() int {
	return len(l.elements)
}

// Append adds elements to the end of the list.
func (l *List) Append(elements ...Sexp) {
	l.elements = append(l.elements, elements...)
}

// Serialize renders a tree to text. Serialization is idempotent:
// Serialize(Parse(Serialize(t))) == Serialize(t).
func Serialize(s Sexp) string {
	if s == nil {
		return ""
	}
	return s.String()
}

// Quote renders a string value as a KiCad quoted string literal.
func Quote(v string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range v {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// Parse reads all top-level S-expressions from r. The strict parser runs
// first; when it fails, the tolerant streaming parser retries the same
// input. Callers only observe a combined error when both reject it.
func Parse(r io.Reader) ([]Sexp, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseBytes(data)
}

// ParseBytes is Parse over an in-memory document.
func ParseBytes(data []byte) ([]Sexp, error) {
	nodes, strictErr := ParseStrict(data)
	if strictErr == nil {
		return nodes, nil
	}
	nodes, tolerantErr := ParseTolerant(strings.NewReader(string(data)))
	if tolerantErr == nil {
		return nodes, nil
	}
	return nil, &FallbackError{Strict: strictErr, Tolerant: tolerantErr}
}

// ParseString parses S-expressions from a string.
func ParseString(s string) ([]Sexp, error) {
	return ParseBytes([]byte(s))
}
