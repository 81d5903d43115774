// Package patch edits KiCad documents as text. Mutations locate the minimal
// balanced-paren block for one element (a symbol, wire, footprint, net) and
// splice only that block, so formatting of everything else survives
// byte-for-byte.
package patch

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Region is a half-open byte range [Start, End) within document text.
type Region struct {
	Start int
	End   int
}

// Len returns the region length in bytes.
func (r Region) Len() int { return r.End - r.Start }

// Text returns the region's content.
func (r Region) Text(content string) string { return content[r.Start:r.End] }

// WalkBalanced walks from an opening paren at start to its matching close
// paren, skipping parens inside quoted strings. It returns the region
// covering the whole block including both parens.
func WalkBalanced(content string, start int) (Region, error) {
	if start < 0 || start >= len(content) || content[start] != '(' {
		return Region{}, fmt.Errorf("no '(' at offset %d", start)
	}

	depth := 0
	inString := false
	for i := start; i < len(content); i++ {
		ch := content[i]

		if inString {
			if ch == '\\' {
				i++
			} else if ch == '"' {
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return Region{Start: start, End: i + 1}, nil
			}
		}
	}

	return Region{}, fmt.Errorf("unbalanced parens from offset %d", start)
}

// findBlocks iterates the top-level-ish occurrences of "(keyword" in content
// starting at from, yielding each balanced block. Matching stops when match
// returns true.
func findBlock(content, keyword string, from int, skip Region, match func(block string) bool) (Region, bool) {
	needle := "(" + keyword
	pos := from
	for {
		idx := strings.Index(content[pos:], needle)
		if idx < 0 {
			return Region{}, false
		}
		start := pos + idx
		pos = start + 1

		// The keyword must end the token: "(symbol" must not match "(symbols".
		after := start + len(needle)
		if after < len(content) {
			ch := content[after]
			if ch != ' ' && ch != '\t' && ch != '\n' && ch != '\r' && ch != '(' && ch != ')' {
				continue
			}
		}

		if skip.Len() > 0 && start >= skip.Start && start < skip.End {
			pos = skip.End
			continue
		}

		region, err := WalkBalanced(content, start)
		if err != nil {
			return Region{}, false
		}
		if match(region.Text(content)) {
			return region, true
		}
		pos = region.End
	}
}

// LibSymbolsRegion locates the (lib_symbols ...) cache block.
func LibSymbolsRegion(content string) (Region, bool) {
	return findBlock(content, "lib_symbols", 0, Region{}, func(string) bool { return true })
}

// SymbolByReference locates the symbol instance whose Reference property
// equals ref. The lib_symbols cache region is excluded so a cached library
// definition is never mistaken for a placed instance.
func SymbolByReference(content, ref string) (Region, bool) {
	skip, _ := LibSymbolsRegion(content)
	sig := `(property "Reference" ` + strconv.Quote(ref)
	return findBlock(content, "symbol", 0, skip, func(block string) bool {
		return strings.Contains(block, sig)
	})
}

// LibrarySymbolByName locates a cached definition inside lib_symbols whose
// name (first quoted argument) equals name.
func LibrarySymbolByName(content, name string) (Region, bool) {
	cache, ok := LibSymbolsRegion(content)
	if !ok {
		return Region{}, false
	}

	inner := cache.Text(content)
	prefix := `(symbol ` + strconv.Quote(name)
	// Skip the opening "(lib_symbols" token itself.
	region, found := findBlock(inner, "symbol", 1, Region{}, func(block string) bool {
		return strings.HasPrefix(block, prefix)
	})
	if !found {
		return Region{}, false
	}
	return Region{Start: cache.Start + region.Start, End: cache.Start + region.End}, true
}

// SymbolDefinition locates a (symbol "name" ...) definition block anywhere
// in content, as found in .kicad_sym library files.
func SymbolDefinition(content, name string) (Region, bool) {
	prefix := `(symbol ` + strconv.Quote(name)
	return findBlock(content, "symbol", 0, Region{}, func(block string) bool {
		return strings.HasPrefix(block, prefix)
	})
}

// FootprintByReference locates the footprint whose reference designator
// equals ref. Both modern property-based and legacy fp_text references are
// recognized.
func FootprintByReference(content, ref string) (Region, bool) {
	quoted := strconv.Quote(ref)
	return findBlock(content, "footprint", 0, Region{}, func(block string) bool {
		if strings.Contains(block, `(property "Reference" `+quoted) {
			return true
		}
		return strings.Contains(block, `(fp_text reference `+quoted)
	})
}

const coordTolerance = 1e-4

var xyPattern = regexp.MustCompile(`\(xy\s+(-?[\d.]+)\s+(-?[\d.]+)\s*\)`)
var atPattern = regexp.MustCompile(`\(at\s+(-?[\d.]+)\s+(-?[\d.]+)`)

func coordsEqual(a, b float64) bool {
	return math.Abs(a-b) < coordTolerance
}

// WireByEndpoints locates the wire whose two points match the given
// endpoints in either order. Coordinates compare within 1e-4 mm so textual
// formatting ("50" vs "50.0") does not matter.
func WireByEndpoints(content string, x1, y1, x2, y2 float64) (Region, bool) {
	return findBlock(content, "wire", 0, Region{}, func(block string) bool {
		pts := xyPattern.FindAllStringSubmatch(block, -1)
		if len(pts) != 2 {
			return false
		}
		ax, _ := strconv.ParseFloat(pts[0][1], 64)
		ay, _ := strconv.ParseFloat(pts[0][2], 64)
		bx, _ := strconv.ParseFloat(pts[1][1], 64)
		by, _ := strconv.ParseFloat(pts[1][2], 64)

		forward := coordsEqual(ax, x1) && coordsEqual(ay, y1) && coordsEqual(bx, x2) && coordsEqual(by, y2)
		reverse := coordsEqual(ax, x2) && coordsEqual(ay, y2) && coordsEqual(bx, x1) && coordsEqual(by, y1)
		return forward || reverse
	})
}

// blockAtPosition matches the first keyword block whose (at X Y) equals the
// given position.
func blockAtPosition(content, keyword string, x, y float64) (Region, bool) {
	return findBlock(content, keyword, 0, Region{}, func(block string) bool {
		m := atPattern.FindStringSubmatch(block)
		if m == nil {
			return false
		}
		bx, _ := strconv.ParseFloat(m[1], 64)
		by, _ := strconv.ParseFloat(m[2], 64)
		return coordsEqual(bx, x) && coordsEqual(by, y)
	})
}

// NoConnectAt locates a no_connect marker at the given position.
func NoConnectAt(content string, x, y float64) (Region, bool) {
	return blockAtPosition(content, "no_connect", x, y)
}

// JunctionAt locates a junction at the given position.
func JunctionAt(content string, x, y float64) (Region, bool) {
	return blockAtPosition(content, "junction", x, y)
}

// LabelAt locates a (label "text" (at X Y ...)) block with the given text
// and position.
func LabelAt(content, text string, x, y float64) (Region, bool) {
	quoted := strconv.Quote(text)
	return findBlock(content, "label", 0, Region{}, func(block string) bool {
		if !strings.HasPrefix(block, "(label "+quoted) {
			return false
		}
		m := atPattern.FindStringSubmatch(block)
		if m == nil {
			return false
		}
		bx, _ := strconv.ParseFloat(m[1], 64)
		by, _ := strconv.ParseFloat(m[2], 64)
		return coordsEqual(bx, x) && coordsEqual(by, y)
	})
}

// Remove deletes a block from the document. Whitespace before the block up
// to and including the previous newline is removed with it, so no blank
// line is left behind.
func Remove(content string, r Region) string {
	start := r.Start
	for start > 0 {
		ch := content[start-1]
		if ch == ' ' || ch == '\t' {
			start--
			continue
		}
		if ch == '\n' {
			start--
		}
		break
	}
	return content[:start] + content[r.End:]
}

// Replace swaps a block's text for new content.
func Replace(content string, r Region, replacement string) string {
	return content[:r.Start] + replacement + content[r.End:]
}

// InsertBefore splices text into the document at the given offset.
func InsertBefore(content string, offset int, text string) string {
	return content[:offset] + text + content[offset:]
}

// InsertionPoint finds where new schematic elements go: before the
// (sheet_instances ...) block when present, otherwise before the document's
// final closing paren.
func InsertionPoint(content string) int {
	if region, ok := findBlock(content, "sheet_instances", 0, Region{}, func(string) bool { return true }); ok {
		start := region.Start
		for start > 0 {
			ch := content[start-1]
			if ch == ' ' || ch == '\t' {
				start--
				continue
			}
			break
		}
		return start
	}
	return FinalParenIndex(content)
}

// FinalParenIndex returns the offset of the document's last closing paren,
// the insertion point for board elements.
func FinalParenIndex(content string) int {
	return strings.LastIndexByte(content, ')')
}
