package patch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleSchematic = `(kicad_sch
  (version 20250114)
  (generator "eeschema")
  (uuid "doc-uuid")
  (lib_symbols
    (symbol "Device:R"
      (property "Reference" "R" (at 2.032 0 90))
      (symbol "R_0_1"
        (rectangle (start -1.016 -2.54) (end 1.016 2.54))
      )
    )
  )
  (wire
    (pts (xy 100 50) (xy 110 50))
    (stroke (width 0) (type default))
    (uuid "wire-1")
  )
  (junction (at 110 50) (diameter 0) (color 0 0 0 0))
  (no_connect (at 120 60) (uuid "nc-1"))
  (symbol
    (lib_id "Device:R")
    (at 100 50 0)
    (property "Reference" "R1" (at 102.87 48.26 0))
    (property "Value" "10k" (at 102.87 50.8 0))
  )
  (symbol
    (lib_id "Device:R")
    (at 120 50 0)
    (property "Reference" "R10" (at 122.87 48.26 0))
  )
  (sheet_instances
    (path "/" (page "1"))
  )
)
`

func TestWalkBalanced(t *testing.T) {
	content := `(a (b "un)balanced" c) d)`
	region, err := WalkBalanced(content, 0)
	if err != nil {
		t.Fatalf("WalkBalanced failed: %v", err)
	}
	if region.Text(content) != content {
		t.Errorf("Expected full string, got %q", region.Text(content))
	}

	inner, err := WalkBalanced(content, 3)
	if err != nil {
		t.Fatalf("WalkBalanced inner failed: %v", err)
	}
	if inner.Text(content) != `(b "un)balanced" c)` {
		t.Errorf("Quoted paren not skipped: %q", inner.Text(content))
	}
}

func TestWalkBalancedErrors(t *testing.T) {
	if _, err := WalkBalanced("(a (b)", 0); err == nil {
		t.Error("Expected error for unbalanced input")
	}
	if _, err := WalkBalanced("abc", 0); err == nil {
		t.Error("Expected error when start is not a paren")
	}
}

func TestSymbolByReferenceSkipsLibSymbols(t *testing.T) {
	// "R" only appears as a Reference inside the lib_symbols cache; it must
	// not be found as an instance.
	if _, ok := SymbolByReference(sampleSchematic, "R"); ok {
		t.Error("Cached library definition mistaken for a placed instance")
	}

	region, ok := SymbolByReference(sampleSchematic, "R1")
	if !ok {
		t.Fatal("R1 not found")
	}
	block := region.Text(sampleSchematic)
	if !strings.Contains(block, `(property "Reference" "R1"`) {
		t.Errorf("Wrong block: %s", block)
	}
	if strings.Contains(block, "R10") {
		t.Error("Block for R1 swallowed the R10 symbol")
	}
}

func TestSymbolByReferenceExactMatch(t *testing.T) {
	region, ok := SymbolByReference(sampleSchematic, "R10")
	if !ok {
		t.Fatal("R10 not found")
	}
	if !strings.Contains(region.Text(sampleSchematic), `"R10"`) {
		t.Error("Wrong block for R10")
	}

	if _, ok := SymbolByReference(sampleSchematic, "R2"); ok {
		t.Error("Nonexistent reference matched")
	}
}

func TestLibrarySymbolByName(t *testing.T) {
	region, ok := LibrarySymbolByName(sampleSchematic, "Device:R")
	if !ok {
		t.Fatal("Device:R not found in cache")
	}
	block := region.Text(sampleSchematic)
	if !strings.HasPrefix(block, `(symbol "Device:R"`) {
		t.Errorf("Wrong block: %.40s", block)
	}
	if !strings.Contains(block, `"R_0_1"`) {
		t.Error("Sub-unit not included in cached block")
	}

	if _, ok := LibrarySymbolByName(sampleSchematic, "Device:C"); ok {
		t.Error("Nonexistent cache entry matched")
	}
}

func TestWireByEndpoints(t *testing.T) {
	region, ok := WireByEndpoints(sampleSchematic, 100, 50, 110, 50)
	if !ok {
		t.Fatal("Wire not found")
	}
	if !strings.Contains(region.Text(sampleSchematic), "wire-1") {
		t.Error("Wrong wire block")
	}

	// Reversed endpoint order matches the same wire
	if _, ok := WireByEndpoints(sampleSchematic, 110, 50, 100, 50); !ok {
		t.Error("Reversed endpoints should match")
	}

	// Formatting-insensitive comparison
	if _, ok := WireByEndpoints(sampleSchematic, 100.0, 50.0, 110.00004, 50); !ok {
		t.Error("Coordinates within tolerance should match")
	}

	if _, ok := WireByEndpoints(sampleSchematic, 0, 0, 1, 1); ok {
		t.Error("Nonexistent wire matched")
	}
}

func TestPositionLocators(t *testing.T) {
	if _, ok := JunctionAt(sampleSchematic, 110, 50); !ok {
		t.Error("Junction not found")
	}
	if _, ok := NoConnectAt(sampleSchematic, 120, 60); !ok {
		t.Error("No-connect not found")
	}
	if _, ok := NoConnectAt(sampleSchematic, 1, 1); ok {
		t.Error("Nonexistent no-connect matched")
	}
}

func TestRemovePreservesSiblings(t *testing.T) {
	region, ok := SymbolByReference(sampleSchematic, "R1")
	if !ok {
		t.Fatal("R1 not found")
	}
	result := Remove(sampleSchematic, region)

	if strings.Contains(result, `"R1"`) {
		t.Error("R1 still present after removal")
	}
	// Everything else survives byte-for-byte
	for _, keep := range []string{`"R10"`, "wire-1", "(lib_symbols", "(sheet_instances"} {
		if !strings.Contains(result, keep) {
			t.Errorf("Removal damaged sibling content: %s missing", keep)
		}
	}
	if strings.Contains(result, "\n\n\n") {
		t.Error("Removal left a blank gap")
	}
}

func TestInsertionPointBeforeSheetInstances(t *testing.T) {
	idx := InsertionPoint(sampleSchematic)
	after := sampleSchematic[idx:]
	if !strings.HasPrefix(strings.TrimLeft(after, " \t"), "(sheet_instances") {
		t.Errorf("Insertion point not before sheet_instances: %.30q", after)
	}
}

func TestInsertionPointFallsBackToFinalParen(t *testing.T) {
	content := "(kicad_pcb\n  (version 20241229)\n)\n"
	idx := InsertionPoint(content)
	if content[idx] != ')' {
		t.Errorf("Expected final paren, got %q", content[idx])
	}
}

func TestFootprintByReference(t *testing.T) {
	board := `(kicad_pcb
  (footprint "Resistor_SMD:R_0603"
    (at 50 50)
    (property "Reference" "R1" (at 0 -1.43 0))
    (pad "1" smd roundrect (at -0.7875 0) (size 0.875 0.95))
  )
  (footprint "Capacitor_SMD:C_0603"
    (fp_text reference "C1" (at 0 -1.43))
  )
)
`
	region, ok := FootprintByReference(board, "R1")
	if !ok {
		t.Fatal("R1 footprint not found")
	}
	if !strings.Contains(region.Text(board), "Resistor_SMD") {
		t.Error("Wrong footprint block")
	}

	// Legacy fp_text reference form
	if _, ok := FootprintByReference(board, "C1"); !ok {
		t.Error("Legacy fp_text reference not matched")
	}
}

func TestReplace(t *testing.T) {
	content := "(a (b 1) (c 2))"
	region, _ := WalkBalanced(content, 3)
	result := Replace(content, region, "(b 9)")
	if result != "(a (b 9) (c 2))" {
		t.Errorf("Replace produced %q", result)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.kicad_sch")

	if err := WriteFileAtomic(path, []byte("first"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("second"), 0o644); err != nil {
		t.Fatalf("Overwrite failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Read back failed: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("Expected %q, got %q", "second", string(data))
	}

	// No temp files left behind
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("Expected 1 file in dir, found %d", len(entries))
	}
}
