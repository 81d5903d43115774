package schematic

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/library"
)

func newTestSchematic(t *testing.T) (string, *Editor) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.kicad_sch")
	if _, err := Create(path, "Test", "A"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return path, NewEditor(path, nil)
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	return string(data)
}

func TestCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.kicad_sch")

	docUUID, err := Create(path, "My Design", "1.0")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if docUUID == "" {
		t.Error("Create returned empty UUID")
	}

	sch, err := ParseFile(path)
	if err != nil {
		t.Fatalf("Created schematic does not parse: %v", err)
	}
	if sch.UUID != docUUID {
		t.Errorf("UUID mismatch: %q vs %q", sch.UUID, docUUID)
	}
	if sch.Paper != "A4" {
		t.Errorf("Paper: got %q", sch.Paper)
	}
	if sch.TitleBlock.Title != "My Design" || sch.TitleBlock.Revision != "1.0" {
		t.Errorf("TitleBlock: %+v", sch.TitleBlock)
	}
	if len(sch.SheetInstances) != 1 || sch.SheetInstances[0].Path != "/" {
		t.Errorf("SheetInstances: %+v", sch.SheetInstances)
	}
}

func TestCreateRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "existing.kicad_sch")
	if err := os.WriteFile(path, []byte("precious"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Create(path, "", ""); err == nil {
		t.Fatal("Create should refuse to overwrite")
	}
	if readFile(t, path) != "precious" {
		t.Error("Existing file was clobbered")
	}
}

func TestAddSymbol(t *testing.T) {
	path, ed := newTestSchematic(t)

	symUUID, err := ed.AddSymbol(AddSymbolOptions{
		LibID:     "Device:R",
		Reference: "R1",
		Value:     "10k",
		X:         100, Y: 50,
		Rotation:  90,
		Footprint: "Resistor_SMD:R_0603_1608Metric",
		Properties: map[string]string{
			"Tolerance": "1%",
		},
	})
	if err != nil {
		t.Fatalf("AddSymbol failed: %v", err)
	}

	sch, err := ParseFile(path)
	if err != nil {
		t.Fatalf("Mutated schematic does not parse: %v", err)
	}
	if len(sch.Symbols) != 1 {
		t.Fatalf("Expected 1 symbol, got %d", len(sch.Symbols))
	}

	sym := sch.Symbols[0]
	if sym.Reference() != "R1" || sym.Value() != "10k" {
		t.Errorf("Symbol properties wrong: %+v", sym.Properties)
	}
	if sym.UUID != symUUID {
		t.Errorf("UUID mismatch")
	}
	if sym.Angle != 90 {
		t.Errorf("Rotation: got %v", sym.Angle)
	}
	if sym.Property("Tolerance") != "1%" {
		t.Errorf("Extra property lost")
	}
	if !sym.InBom || !sym.OnBoard || sym.DNP {
		t.Errorf("Flags wrong: %+v", sym)
	}

	// Instances block keyed to the document UUID
	if len(sym.Instances) != 1 {
		t.Fatalf("Instances block missing")
	}
	if sym.Instances[0].Path != "/"+string(sch.UUID) {
		t.Errorf("Instance path %q not keyed to document UUID %q", sym.Instances[0].Path, sch.UUID)
	}
	if sym.Instances[0].Reference != "R1" {
		t.Errorf("Instance reference: got %q", sym.Instances[0].Reference)
	}
}

func TestAddSymbolDuplicateReference(t *testing.T) {
	_, ed := newTestSchematic(t)

	opts := AddSymbolOptions{LibID: "Device:R", Reference: "R1", Value: "10k", X: 100, Y: 50}
	if _, err := ed.AddSymbol(opts); err != nil {
		t.Fatalf("First AddSymbol failed: %v", err)
	}

	_, err := ed.AddSymbol(opts)
	var serr *StructuralError
	if !errors.As(err, &serr) {
		t.Fatalf("Expected StructuralError for duplicate reference, got %v", err)
	}
}

func TestAddSymbolInvalidReference(t *testing.T) {
	_, ed := newTestSchematic(t)

	_, err := ed.AddSymbol(AddSymbolOptions{LibID: "Device:R", Reference: "1R", Value: "x"})
	if err == nil {
		t.Error("Invalid reference accepted")
	}

	_, err = ed.AddSymbol(AddSymbolOptions{LibID: "Device:R", Reference: "R1", Mirror: "z"})
	if err == nil {
		t.Error("Invalid mirror accepted")
	}
}

func TestAddSymbolPopulatesCache(t *testing.T) {
	libDir := t.TempDir()
	libContent := `(kicad_symbol_lib
  (symbol "R"
    (property "Reference" "R" (at 2.032 0 90))
    (symbol "R_0_1"
      (pin passive line (at 0 3.81 270) (length 1.27) (name "~") (number "1"))
    )
  )
)
`
	libPath := filepath.Join(libDir, "Device.kicad_sym")
	if err := os.WriteFile(libPath, []byte(libContent), 0o644); err != nil {
		t.Fatal(err)
	}
	resolver := library.NewResolver(nil).WithSystemLibraries([]string{libPath})

	path := filepath.Join(t.TempDir(), "test.kicad_sch")
	if _, err := Create(path, "", ""); err != nil {
		t.Fatal(err)
	}
	ed := NewEditor(path, resolver)

	if _, err := ed.AddSymbol(AddSymbolOptions{LibID: "Device:R", Reference: "R1", Value: "10k", X: 100, Y: 50}); err != nil {
		t.Fatalf("AddSymbol failed: %v", err)
	}

	content := readFile(t, path)
	if !strings.Contains(content, `(symbol "Device:R"`) {
		t.Error("lib_symbols cache not populated")
	}
	if strings.Contains(content, `"Device:R_0_1"`) {
		t.Error("Sub-unit name wrongly qualified")
	}

	sch, err := ParseFile(path)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if problems := Validate(sch); len(problems) != 0 {
		t.Errorf("Placed symbol fails validation: %v", problems)
	}
}

func TestAddPowerSymbolAutoIncrement(t *testing.T) {
	path, ed := newTestSchematic(t)

	ref1, _, err := ed.AddPowerSymbol("GND", 100, 80, 0)
	if err != nil {
		t.Fatalf("AddPowerSymbol failed: %v", err)
	}
	if ref1 != "#PWR001" {
		t.Errorf("First power ref: got %q", ref1)
	}

	ref2, _, err := ed.AddPowerSymbol("+3V3", 100, 20, 180)
	if err != nil {
		t.Fatalf("Second AddPowerSymbol failed: %v", err)
	}
	if ref2 != "#PWR002" {
		t.Errorf("Second power ref: got %q", ref2)
	}

	sch, err := ParseFile(path)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(sch.Symbols) != 2 {
		t.Fatalf("Expected 2 symbols, got %d", len(sch.Symbols))
	}
	for _, sym := range sch.Symbols {
		if !sym.IsPower() {
			t.Errorf("Symbol %q should be power", sym.Reference())
		}
	}
	if sch.Symbols[1].Value() != "+3V3" {
		t.Errorf("Power value: got %q", sch.Symbols[1].Value())
	}
}

func TestAddWireLabelJunctionNoConnect(t *testing.T) {
	path, ed := newTestSchematic(t)

	if _, err := ed.AddWire(100, 50, 110, 50); err != nil {
		t.Fatalf("AddWire failed: %v", err)
	}
	if _, err := ed.AddLabel("VOUT", 110, 50, LabelLocal); err != nil {
		t.Fatalf("AddLabel failed: %v", err)
	}
	if _, err := ed.AddLabel("VBUS", 120, 50, LabelGlobal); err != nil {
		t.Fatalf("Global AddLabel failed: %v", err)
	}
	if _, err := ed.AddJunction(110, 50); err != nil {
		t.Fatalf("AddJunction failed: %v", err)
	}
	if _, err := ed.AddNoConnect(130, 60); err != nil {
		t.Fatalf("AddNoConnect failed: %v", err)
	}

	sch, err := ParseFile(path)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(sch.Wires) != 1 || len(sch.Labels) != 1 || len(sch.GlobalLabels) != 1 ||
		len(sch.Junctions) != 1 || len(sch.NoConnects) != 1 {
		t.Errorf("Element counts wrong: %d wires %d labels %d globals %d junctions %d ncs",
			len(sch.Wires), len(sch.Labels), len(sch.GlobalLabels), len(sch.Junctions), len(sch.NoConnects))
	}
}

func TestAddLabelRejectsBadNetName(t *testing.T) {
	_, ed := newTestSchematic(t)
	if _, err := ed.AddLabel("bad name", 0, 0, LabelLocal); err == nil {
		t.Error("Net name with space accepted")
	}
}

func TestMoveSymbolShiftsPropertyAnchors(t *testing.T) {
	path, ed := newTestSchematic(t)

	if _, err := ed.AddSymbol(AddSymbolOptions{LibID: "Device:R", Reference: "R1", Value: "10k", X: 100, Y: 50}); err != nil {
		t.Fatal(err)
	}

	if err := ed.MoveSymbol("R1", 120, 70, -1); err != nil {
		t.Fatalf("MoveSymbol failed: %v", err)
	}

	sch, err := ParseFile(path)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	sym := sch.Symbols[0]
	if sym.Position.X != 120 || sym.Position.Y != 70 {
		t.Errorf("Position: got %+v", sym.Position)
	}

	// Reference label was at (100, 48); delta (+20, +20) puts it at (120, 68)
	for _, p := range sym.Properties {
		if p.Key == "Reference" {
			if p.Position.X != 120 || p.Position.Y != 68 {
				t.Errorf("Reference anchor not shifted: %+v", p.Position)
			}
		}
		if p.Key == "Value" {
			if p.Position.X != 120 || p.Position.Y != 72 {
				t.Errorf("Value anchor not shifted: %+v", p.Position)
			}
		}
	}
}

func TestMoveSymbolRotation(t *testing.T) {
	path, ed := newTestSchematic(t)
	if _, err := ed.AddSymbol(AddSymbolOptions{LibID: "Device:R", Reference: "R1", Value: "10k", X: 100, Y: 50, Rotation: 90}); err != nil {
		t.Fatal(err)
	}

	// rotation < 0 keeps the current angle
	if err := ed.MoveSymbol("R1", 101, 51, -1); err != nil {
		t.Fatal(err)
	}
	sch, _ := ParseFile(path)
	if sch.Symbols[0].Angle != 90 {
		t.Errorf("Rotation not preserved: %v", sch.Symbols[0].Angle)
	}

	if err := ed.MoveSymbol("R1", 101, 51, 180); err != nil {
		t.Fatal(err)
	}
	sch, _ = ParseFile(path)
	if sch.Symbols[0].Angle != 180 {
		t.Errorf("Rotation not applied: %v", sch.Symbols[0].Angle)
	}
}

func TestMoveSymbolNotFound(t *testing.T) {
	_, ed := newTestSchematic(t)
	err := ed.MoveSymbol("R99", 0, 0, -1)
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("Expected NotFoundError, got %v", err)
	}
}

func TestUpdateProperty(t *testing.T) {
	path, ed := newTestSchematic(t)
	if _, err := ed.AddSymbol(AddSymbolOptions{LibID: "Device:R", Reference: "R1", Value: "10k", X: 100, Y: 50}); err != nil {
		t.Fatal(err)
	}

	// Replace existing
	if err := ed.UpdateProperty("R1", "Value", "22k"); err != nil {
		t.Fatalf("UpdateProperty failed: %v", err)
	}
	sch, _ := ParseFile(path)
	if sch.Symbols[0].Value() != "22k" {
		t.Errorf("Value not updated: %q", sch.Symbols[0].Value())
	}

	// Append new
	if err := ed.UpdateProperty("R1", "MPN", "RC0603FR-0722KL"); err != nil {
		t.Fatalf("Append property failed: %v", err)
	}
	sch, _ = ParseFile(path)
	if sch.Symbols[0].Property("MPN") != "RC0603FR-0722KL" {
		t.Errorf("New property not added")
	}

	// Idempotent
	before := readFile(t, path)
	if err := ed.UpdateProperty("R1", "Value", "22k"); err != nil {
		t.Fatal(err)
	}
	if readFile(t, path) != before {
		t.Error("Re-setting the same value changed the file")
	}
}

func TestRemoveSymbolPreservesUnrelatedContent(t *testing.T) {
	path, ed := newTestSchematic(t)

	if _, err := ed.AddSymbol(AddSymbolOptions{LibID: "Device:R", Reference: "R1", Value: "10k", X: 100, Y: 50}); err != nil {
		t.Fatal(err)
	}
	if _, err := ed.AddWire(100, 50, 110, 50); err != nil {
		t.Fatal(err)
	}
	before := readFile(t, path)

	if _, err := ed.AddSymbol(AddSymbolOptions{LibID: "Device:R", Reference: "R2", Value: "1k", X: 140, Y: 50}); err != nil {
		t.Fatal(err)
	}
	if err := ed.RemoveSymbol("R2"); err != nil {
		t.Fatalf("RemoveSymbol failed: %v", err)
	}

	// Add-then-remove leaves everything else byte-identical
	if readFile(t, path) != before {
		t.Error("Untouched content changed across add/remove cycle")
	}
}

func TestRemoveWireAndNoConnect(t *testing.T) {
	path, ed := newTestSchematic(t)

	if _, err := ed.AddWire(100, 50, 110, 50); err != nil {
		t.Fatal(err)
	}
	if _, err := ed.AddNoConnect(130, 60); err != nil {
		t.Fatal(err)
	}

	// Endpoints in reverse order still match
	if err := ed.RemoveWire(110, 50, 100, 50); err != nil {
		t.Fatalf("RemoveWire failed: %v", err)
	}
	if err := ed.RemoveNoConnect(130, 60); err != nil {
		t.Fatalf("RemoveNoConnect failed: %v", err)
	}

	sch, err := ParseFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(sch.Wires) != 0 || len(sch.NoConnects) != 0 {
		t.Error("Elements not removed")
	}

	var nf *NotFoundError
	if err := ed.RemoveWire(0, 0, 1, 1); !errors.As(err, &nf) {
		t.Errorf("Expected NotFoundError, got %v", err)
	}
}

func TestConflictDetection(t *testing.T) {
	path, _ := newTestSchematic(t)

	// Two editors racing on one file: the second write must fail, not
	// silently drop the first mutation.
	ed1 := NewEditor(path, nil)
	ed2 := NewEditor(path, nil)

	doc1, err := ed1.load()
	if err != nil {
		t.Fatal(err)
	}

	if _, err := ed2.AddWire(0, 0, 10, 0); err != nil {
		t.Fatal(err)
	}

	// Make sure the mtime actually differs even on coarse filesystems.
	future := doc1.modTime.Add(2 * time.Second)
	os.Chtimes(path, future, future)

	err = ed1.store(doc1, doc1.content)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Errorf("Expected ConflictError, got %v", err)
	}
}
