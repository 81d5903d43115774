package schematic

import (
	"strings"
	"testing"
)

const sampleSchematic = `(kicad_sch
  (version 20250114)
  (generator "eeschema")
  (generator_version "9.0")
  (uuid "5f1d64f1-0bcd-4f14-9010-a6a5ff41e75d")
  (paper "A4")
  (title_block
    (title "Voltage Divider")
    (rev "A")
  )
  (lib_symbols
    (symbol "Device:R"
      (property "Reference" "R" (at 2.032 0 90))
      (symbol "R_0_1"
        (rectangle (start -1.016 -2.54) (end 1.016 2.54))
      )
    )
    (symbol "power:GND"
      (extends "GNDREF")
    )
  )
  (junction (at 110 60) (diameter 0) (color 0 0 0 0)
    (uuid "j-1")
  )
  (no_connect (at 130 60) (uuid "nc-1"))
  (wire
    (pts (xy 100 50) (xy 110 50))
    (stroke (width 0) (type default))
    (uuid "w-1")
  )
  (label "VOUT" (at 110 50 0)
    (effects (font (size 1.27 1.27)))
    (uuid "l-1")
  )
  (global_label "USB_D+" (shape bidirectional) (at 120 50 0)
    (effects (font (size 1.27 1.27)))
    (uuid "gl-1")
  )
  (symbol (lib_id "Device:R") (at 100 50 90) (mirror y) (unit 1)
    (in_bom yes) (on_board yes) (dnp no)
    (uuid "s-1")
    (property "Reference" "R1" (at 102.87 48.26 0)
      (effects (font (size 1.27 1.27)))
    )
    (property "Value" "10k" (at 102.87 50.8 0)
      (effects (font (size 1.27 1.27)))
    )
    (property "Footprint" "Resistor_SMD:R_0603_1608Metric" (at 100 54 0)
      (effects (font (size 1.27 1.27)) hide)
    )
    (instances
      (project "divider"
        (path "/5f1d64f1-0bcd-4f14-9010-a6a5ff41e75d"
          (reference "R1") (unit 1)
        )
      )
    )
  )
  (symbol (lib_id "power:GND") (at 110 70 0) (unit 1)
    (in_bom yes) (on_board yes) (dnp no)
    (uuid "s-2")
    (property "Reference" "#PWR01" (at 110 76.2 0)
      (effects (font (size 1.27 1.27)) hide)
    )
    (property "Value" "GND" (at 110 75 0)
      (effects (font (size 1.27 1.27)))
    )
    (instances
      (project "divider"
        (path "/5f1d64f1-0bcd-4f14-9010-a6a5ff41e75d"
          (reference "#PWR01") (unit 1)
        )
      )
    )
  )
  (sheet_instances
    (path "/" (page "1"))
  )
)
`

func TestParseHeader(t *testing.T) {
	sch, err := Parse(strings.NewReader(sampleSchematic))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if sch.Version != 20250114 {
		t.Errorf("Version: got %d", sch.Version)
	}
	if sch.Generator != "eeschema" || sch.GeneratorVer != "9.0" {
		t.Errorf("Generator: got %q %q", sch.Generator, sch.GeneratorVer)
	}
	if sch.UUID != "5f1d64f1-0bcd-4f14-9010-a6a5ff41e75d" {
		t.Errorf("UUID: got %q", sch.UUID)
	}
	if sch.Paper != "A4" {
		t.Errorf("Paper: got %q", sch.Paper)
	}
	if sch.TitleBlock.Title != "Voltage Divider" || sch.TitleBlock.Revision != "A" {
		t.Errorf("TitleBlock: %+v", sch.TitleBlock)
	}
}

func TestParseVersionTooOld(t *testing.T) {
	old := `(kicad_sch (version 20200310) (uuid "x"))`
	if _, err := Parse(strings.NewReader(old)); err == nil {
		t.Error("Pre-6.0 version should be rejected")
	}
}

func TestParseNotASchematic(t *testing.T) {
	if _, err := Parse(strings.NewReader(`(kicad_pcb (version 20250114))`)); err == nil {
		t.Error("Board file should be rejected")
	}
}

func TestParseLibSymbolsCache(t *testing.T) {
	sch, err := Parse(strings.NewReader(sampleSchematic))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(sch.LibSymbols) != 2 {
		t.Fatalf("Expected 2 cache entries, got %d", len(sch.LibSymbols))
	}
	if _, ok := sch.LibSymbols["Device:R"]; !ok {
		t.Error("Device:R missing from cache")
	}
	// An extends-only cache entry parses fine; pin resolution is the
	// resolver's job.
	if _, ok := sch.LibSymbols["power:GND"]; !ok {
		t.Error("Extends-only power:GND missing from cache")
	}
}

func TestParseSymbols(t *testing.T) {
	sch, err := Parse(strings.NewReader(sampleSchematic))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(sch.Symbols) != 2 {
		t.Fatalf("Expected 2 symbols, got %d", len(sch.Symbols))
	}

	r1 := sch.Symbols[0]
	if r1.LibID != "Device:R" || r1.Reference() != "R1" || r1.Value() != "10k" {
		t.Errorf("R1 wrong: %+v", r1)
	}
	if r1.Position.X != 100 || r1.Position.Y != 50 || r1.Angle != 90 {
		t.Errorf("R1 placement wrong: %+v", r1.Position)
	}
	if r1.Mirror != "y" {
		t.Errorf("R1 mirror: got %q", r1.Mirror)
	}
	if r1.Footprint() != "Resistor_SMD:R_0603_1608Metric" {
		t.Errorf("R1 footprint: got %q", r1.Footprint())
	}
	if r1.IsPower() {
		t.Error("R1 is not a power symbol")
	}
	if len(r1.Instances) != 1 || r1.Instances[0].Path != "/5f1d64f1-0bcd-4f14-9010-a6a5ff41e75d" {
		t.Errorf("R1 instances wrong: %+v", r1.Instances)
	}

	gnd := sch.Symbols[1]
	if !gnd.IsPower() {
		t.Error("GND should be a power symbol")
	}
	if gnd.Value() != "GND" {
		t.Errorf("GND value: got %q", gnd.Value())
	}
}

func TestParseConnectivityElements(t *testing.T) {
	sch, err := Parse(strings.NewReader(sampleSchematic))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(sch.Wires) != 1 {
		t.Fatalf("Expected 1 wire, got %d", len(sch.Wires))
	}
	w := sch.Wires[0]
	if len(w.Points) != 2 || w.Points[0].X != 100 || w.Points[1].X != 110 {
		t.Errorf("Wire points wrong: %+v", w.Points)
	}

	if len(sch.Junctions) != 1 || sch.Junctions[0].Position.Y != 60 {
		t.Errorf("Junctions wrong: %+v", sch.Junctions)
	}
	if len(sch.NoConnects) != 1 || sch.NoConnects[0].Position.X != 130 {
		t.Errorf("NoConnects wrong: %+v", sch.NoConnects)
	}

	if len(sch.Labels) != 1 || sch.Labels[0].Text != "VOUT" {
		t.Errorf("Labels wrong: %+v", sch.Labels)
	}
	if len(sch.GlobalLabels) != 1 || sch.GlobalLabels[0].Text != "USB_D+" {
		t.Errorf("GlobalLabels wrong: %+v", sch.GlobalLabels)
	}
	if sch.GlobalLabels[0].Shape != "bidirectional" {
		t.Errorf("Global label shape: got %q", sch.GlobalLabels[0].Shape)
	}
}

func TestValidate(t *testing.T) {
	sch, err := Parse(strings.NewReader(sampleSchematic))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if problems := Validate(sch); len(problems) != 0 {
		t.Errorf("Valid schematic flagged: %v", problems)
	}

	// Duplicate reference
	dup := *sch
	dup.Symbols = append(dup.Symbols, sch.Symbols[0])
	found := false
	for _, p := range Validate(&dup) {
		if strings.Contains(p.Error(), "duplicate reference") {
			found = true
		}
	}
	if !found {
		t.Error("Duplicate reference not flagged")
	}
}

func TestValidateMissingCache(t *testing.T) {
	sch, err := Parse(strings.NewReader(sampleSchematic))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	delete(sch.LibSymbols, "Device:R")

	found := false
	for _, p := range Validate(sch) {
		if strings.Contains(p.Error(), "unrenderable") {
			found = true
		}
	}
	if !found {
		t.Error("Missing cache entry not flagged")
	}
}

func TestValidateReference(t *testing.T) {
	for _, good := range []string{"R1", "U3", "C10", "Q2A"} {
		if err := ValidateReference(good); err != nil {
			t.Errorf("%q should be valid: %v", good, err)
		}
	}
	for _, bad := range []string{"", "1R", "R", "R1-2", "#PWR01"} {
		if err := ValidateReference(bad); err == nil {
			t.Errorf("%q should be invalid", bad)
		}
	}
}

func TestValidateNetName(t *testing.T) {
	for _, good := range []string{"VCC", "GND", "/sheet1/SDA", "USB_D+", "~RESET"} {
		if err := ValidateNetName(good); err != nil {
			t.Errorf("%q should be valid: %v", good, err)
		}
	}
	for _, bad := range []string{"", "net name", "a\"b"} {
		if err := ValidateNetName(bad); err == nil {
			t.Errorf("%q should be invalid", bad)
		}
	}
}

func TestSchematicBounds(t *testing.T) {
	sch, err := Parse(strings.NewReader(sampleSchematic))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	bb := sch.Bounds()
	if bb.IsEmpty() {
		t.Fatal("Bounds should not be empty")
	}
	// Leftmost anchor is R1 at (100, 50); the no_connect at (130, 60) and
	// the power symbol at (110, 70) stretch the box.
	if bb.Min.X != 100 || bb.Min.Y != 50 || bb.Max.X != 130 || bb.Max.Y != 70 {
		t.Errorf("Bounds = %+v", bb)
	}
	if bb.Width() != 30 || bb.Height() != 20 {
		t.Errorf("Extent = %g x %g", bb.Width(), bb.Height())
	}
	if !bb.Contains(Position{X: 110, Y: 60}) {
		t.Error("Junction position should be inside the bounds")
	}

	if !(&Schematic{}).Bounds().IsEmpty() {
		t.Error("Empty schematic should report empty bounds")
	}
}
