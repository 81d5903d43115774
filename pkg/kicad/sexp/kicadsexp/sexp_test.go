package kicadsexp

import (
	"errors"
	"strings"
	"testing"
)

func TestParseSimpleList(t *testing.T) {
	nodes, err := ParseString(`(kicad_sch (version 20250114) (generator "eeschema"))`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("Expected 1 top-level node, got %d", len(nodes))
	}

	root, ok := nodes[0].(*List)
	if !ok {
		t.Fatalf("Expected *List, got %T", nodes[0])
	}
	if root.Len() != 3 {
		t.Errorf("Expected 3 elements, got %d", root.Len())
	}

	if sym, ok := root.Get(0).(Symbol); !ok || string(sym) != "kicad_sch" {
		t.Errorf("Expected head symbol kicad_sch, got %v", root.Get(0))
	}
}

func TestParseQuotedStrings(t *testing.T) {
	nodes, err := ParseString(`(property "Value" "10k \"precision\"")`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	list := nodes[0].(*List)
	val, ok := list.Get(2).(String)
	if !ok {
		t.Fatalf("Expected String atom, got %T", list.Get(2))
	}
	if string(val) != `10k "precision"` {
		t.Errorf("Escape not resolved: got %q", string(val))
	}
}

func TestParseNested(t *testing.T) {
	input := `(symbol (lib_id "Device:R") (at 100 50 90) (pin "1" (uuid "abc")))`
	nodes, err := ParseString(input)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	root := nodes[0].(*List)
	pin := root.Get(3).(*List)
	if pin.Len() != 3 {
		t.Errorf("Expected pin list of 3, got %d", pin.Len())
	}
	uuid := pin.Get(2).(*List)
	if sym, _ := uuid.Get(0).(Symbol); string(sym) != "uuid" {
		t.Errorf("Expected uuid node, got %v", uuid.Get(0))
	}
}

func TestSerializeIdempotent(t *testing.T) {
	inputs := []string{
		`(kicad_sch (version 20250114) (uuid "e63e39d7"))`,
		`(wire (pts (xy 100 50) (xy 110 50)) (stroke (width 0) (type default)))`,
		`(property "Reference" "R1" (at 102.87 48.26 0))`,
	}

	for _, input := range inputs {
		nodes, err := ParseString(input)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", input, err)
		}
		first := Serialize(nodes[0])

		reparsed, err := ParseString(first)
		if err != nil {
			t.Fatalf("Reparse of %q failed: %v", first, err)
		}
		second := Serialize(reparsed[0])

		if first != second {
			t.Errorf("Serialization not idempotent:\n first: %s\nsecond: %s", first, second)
		}
	}
}

func TestSymbolKeepsNumericFormatting(t *testing.T) {
	nodes, err := ParseString(`(at 100.00 -5.080 270)`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	got := Serialize(nodes[0])
	if got != `(at 100.00 -5.080 270)` {
		t.Errorf("Numeric formatting changed: %s", got)
	}
}

func TestStrictErrorPositions(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"unexpected close", "(a b))", "1:6"},
		{"unclosed open", "(a (b c)", "1:1"},
		{"unclosed nested", "(a\n  (b c", "2:3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStrict([]byte(tt.input))
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("Expected *ParseError, got %T", err)
			}
			if !strings.HasPrefix(err.Error(), tt.want) {
				t.Errorf("Expected position prefix %q, got %q", tt.want, err.Error())
			}
		})
	}
}

func TestTolerantAcceptsDoubledQuotes(t *testing.T) {
	// Legacy files escape quotes by doubling them; the strict lexer treats
	// the doubled quote as string end + new string.
	input := `(property "Note" "a ""b"" c")`

	nodes, err := ParseTolerant(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseTolerant failed: %v", err)
	}

	list := nodes[0].(*List)
	val := list.Get(2).(String)
	if string(val) != `a "b" c` {
		t.Errorf("Doubled-quote escape not resolved: %q", string(val))
	}
}

func TestFallbackBothFail(t *testing.T) {
	_, err := ParseString("(a (b)")
	if err == nil {
		t.Fatal("Expected error for unclosed list")
	}

	var ferr *FallbackError
	if !errors.As(err, &ferr) {
		t.Fatalf("Expected *FallbackError, got %T", err)
	}
	if ferr.Strict == nil || ferr.Tolerant == nil {
		t.Error("FallbackError should carry both underlying errors")
	}

	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Error("FallbackError should unwrap to the strict ParseError")
	}
}

func TestEmptyInput(t *testing.T) {
	for _, input := range []string{"", "   \n\t", "# just a comment\n"} {
		if _, err := ParseString(input); err == nil {
			t.Errorf("Expected error for input %q", input)
		}
	}
}

func TestComments(t *testing.T) {
	nodes, err := ParseString("# header\n(a b) # trailing\n(c d)")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(nodes) != 2 {
		t.Errorf("Expected 2 nodes, got %d", len(nodes))
	}
}

func TestMultipleTopLevel(t *testing.T) {
	nodes, err := ParseString("(a 1)(b 2)\n(c 3)")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(nodes) != 3 {
		t.Fatalf("Expected 3 top-level nodes, got %d", len(nodes))
	}
}

func TestQuoteRoundTrip(t *testing.T) {
	values := []string{
		"plain",
		`with "quotes"`,
		"tab\there",
		`back\slash`,
		"",
	}

	for _, v := range values {
		quoted := Quote(v)
		nodes, err := ParseString("(x " + quoted + ")")
		if err != nil {
			t.Fatalf("Parse of quoted %q failed: %v", v, err)
		}
		got := string(nodes[0].(*List).Get(1).(String))
		if got != v {
			t.Errorf("Quote round-trip: want %q, got %q", v, got)
		}
	}
}
