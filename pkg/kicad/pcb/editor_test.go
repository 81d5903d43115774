package pcb

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestBoard(t *testing.T) *Editor {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.kicad_pcb")
	if err := os.WriteFile(path, []byte(sampleBoard), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return NewEditor(path)
}

func parseBoardFile(t *testing.T, path string) *Board {
	t.Helper()
	board, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	return board
}

func TestCreateBoard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.kicad_pcb")
	if err := Create(path, "Test Board"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	board := parseBoardFile(t, path)
	if board.General.Title != "Test Board" {
		t.Errorf("Title: got %q", board.General.Title)
	}
	if len(board.Layers) == 0 {
		t.Error("Expected a default layer stackup")
	}
	if net, ok := board.NetByNumber(0); !ok || net.Name != "" {
		t.Error("Expected the reserved unconnected net")
	}
}

func TestCreateBoardRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "existing.kicad_pcb")
	if err := os.WriteFile(path, []byte("precious"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Create(path, ""); err == nil {
		t.Fatal("Expected overwrite refusal")
	}
	data, _ := os.ReadFile(path)
	if string(data) != "precious" {
		t.Error("Existing file was clobbered")
	}
}

func TestPlaceFootprint(t *testing.T) {
	editor := newTestBoard(t)

	fpUUID, err := editor.PlaceFootprint(PlaceFootprintOptions{
		Reference: "R2",
		Footprint: "Resistor_SMD:R_0603_1608Metric",
		Value:     "4.7k",
		X:         110, Y: 55,
		Rotation: 90,
	})
	if err != nil {
		t.Fatalf("PlaceFootprint failed: %v", err)
	}
	if fpUUID == "" {
		t.Error("Expected a footprint UUID")
	}

	board := parseBoardFile(t, editor.Path())
	r2, ok := board.FootprintByReference("R2")
	if !ok {
		t.Fatal("R2 not found after placement")
	}
	if r2.Value != "4.7k" || r2.Layer != "F.Cu" {
		t.Errorf("R2: got %+v", r2)
	}
	if r2.Position.X != 110 || r2.Position.Y != 55 || r2.Position.Angle != 90 {
		t.Errorf("R2 position: got %+v", r2.Position)
	}
}

func TestPlaceFootprintDuplicateReference(t *testing.T) {
	editor := newTestBoard(t)

	_, err := editor.PlaceFootprint(PlaceFootprintOptions{
		Reference: "R1",
		Footprint: "Resistor_SMD:R_0603_1608Metric",
		X:         10, Y: 10,
	})
	var structural *StructuralError
	if !errors.As(err, &structural) {
		t.Fatalf("Expected StructuralError, got %v", err)
	}
}

func TestPlaceFootprintInvalidLayer(t *testing.T) {
	editor := newTestBoard(t)

	_, err := editor.PlaceFootprint(PlaceFootprintOptions{
		Reference: "R9",
		Footprint: "Resistor_SMD:R_0603_1608Metric",
		Layer:     "Top",
	})
	if err == nil || !strings.Contains(err.Error(), "unknown layer") {
		t.Fatalf("Expected layer error, got %v", err)
	}
}

func TestMoveFootprint(t *testing.T) {
	editor := newTestBoard(t)

	if err := editor.MoveFootprint("R1", 130, 65, -1); err != nil {
		t.Fatalf("MoveFootprint failed: %v", err)
	}

	board := parseBoardFile(t, editor.Path())
	r1, _ := board.FootprintByReference("R1")
	if r1.Position.X != 130 || r1.Position.Y != 65 {
		t.Errorf("R1 position: got %+v", r1.Position)
	}
	// Pads stay relative to the footprint anchor
	if r1.Pads[0].Position.X != -0.825 {
		t.Errorf("Pad offset changed: got %+v", r1.Pads[0].Position)
	}
}

func TestMoveFootprintApplyRotation(t *testing.T) {
	editor := newTestBoard(t)

	if err := editor.MoveFootprint("Q1", 120, 60, 180); err != nil {
		t.Fatalf("MoveFootprint failed: %v", err)
	}

	board := parseBoardFile(t, editor.Path())
	q1, _ := board.FootprintByReference("Q1")
	if q1.Position.Angle != 180 {
		t.Errorf("Q1 rotation: got %v", q1.Position.Angle)
	}
}

func TestMoveFootprintNotFound(t *testing.T) {
	editor := newTestBoard(t)

	err := editor.MoveFootprint("R99", 0, 0, -1)
	var notFound *NotFoundError
	if !errors.As(err, &notFound) || notFound.Kind != "footprint" {
		t.Fatalf("Expected footprint NotFoundError, got %v", err)
	}
}

func TestSetValue(t *testing.T) {
	editor := newTestBoard(t)

	if err := editor.SetValue("R1", "22k"); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}

	board := parseBoardFile(t, editor.Path())
	r1, _ := board.FootprintByReference("R1")
	if r1.Value != "22k" {
		t.Errorf("R1 value: got %q", r1.Value)
	}
}

func TestRemoveFootprintRestoresBytes(t *testing.T) {
	editor := newTestBoard(t)
	before, _ := os.ReadFile(editor.Path())

	if _, err := editor.PlaceFootprint(PlaceFootprintOptions{
		Reference: "C1",
		Footprint: "Capacitor_SMD:C_0603_1608Metric",
		Value:     "100n",
		X:         90, Y: 45,
	}); err != nil {
		t.Fatalf("PlaceFootprint failed: %v", err)
	}
	if err := editor.RemoveFootprint("C1"); err != nil {
		t.Fatalf("RemoveFootprint failed: %v", err)
	}

	after, _ := os.ReadFile(editor.Path())
	if string(before) != string(after) {
		t.Error("Place + remove did not restore the original bytes")
	}
}

func TestAddTrackExistingNet(t *testing.T) {
	editor := newTestBoard(t)

	if _, err := editor.AddTrack(105, 50, 110, 50, 0.25, "F.Cu", "GND"); err != nil {
		t.Fatalf("AddTrack failed: %v", err)
	}

	board := parseBoardFile(t, editor.Path())
	if len(board.Tracks) != 2 {
		t.Fatalf("Expected 2 tracks, got %d", len(board.Tracks))
	}
	added := board.Tracks[1]
	if added.Net != 1 {
		t.Errorf("Track should reuse GND net 1, got %d", added.Net)
	}
	// No new net table entry
	if len(board.Nets) != 3 {
		t.Errorf("Net table grew: %d entries", len(board.Nets))
	}
}

func TestAddTrackNewNet(t *testing.T) {
	editor := newTestBoard(t)

	if _, err := editor.AddTrack(50, 50, 60, 50, 0.25, "B.Cu", "SDA"); err != nil {
		t.Fatalf("AddTrack failed: %v", err)
	}

	board := parseBoardFile(t, editor.Path())
	sda, ok := board.NetByName("SDA")
	if !ok {
		t.Fatal("SDA missing from net table")
	}
	if sda.Number != 3 {
		t.Errorf("SDA should get the next free id 3, got %d", sda.Number)
	}
	if board.Tracks[1].Net != 3 {
		t.Errorf("Track net: got %d", board.Tracks[1].Net)
	}
}

func TestAddTrackRejectsBadWidth(t *testing.T) {
	editor := newTestBoard(t)
	if _, err := editor.AddTrack(0, 0, 10, 0, 0, "F.Cu", ""); err == nil {
		t.Fatal("Expected width error")
	}
}

func TestAddVia(t *testing.T) {
	editor := newTestBoard(t)

	if _, err := editor.AddVia(110, 50, 0.8, 0.4, "VCC"); err != nil {
		t.Fatalf("AddVia failed: %v", err)
	}

	board := parseBoardFile(t, editor.Path())
	if len(board.Vias) != 2 {
		t.Fatalf("Expected 2 vias, got %d", len(board.Vias))
	}
	if board.Vias[1].Net != 2 {
		t.Errorf("Via should reuse VCC net 2, got %d", board.Vias[1].Net)
	}
}

func TestAddViaRejectsDrillOverSize(t *testing.T) {
	editor := newTestBoard(t)
	if _, err := editor.AddVia(0, 0, 0.4, 0.8, ""); err == nil {
		t.Fatal("Expected drill/size error")
	}
}

func TestAssignPadNetReplacesExisting(t *testing.T) {
	editor := newTestBoard(t)

	// R1 pad 1 is on VCC; move it to GND
	if err := editor.AssignPadNet("R1", "1", "GND"); err != nil {
		t.Fatalf("AssignPadNet failed: %v", err)
	}

	board := parseBoardFile(t, editor.Path())
	r1, _ := board.FootprintByReference("R1")
	if r1.Pads[0].Net != 1 || r1.Pads[0].NetName != "GND" {
		t.Errorf("R1 pad 1: got %+v", r1.Pads[0])
	}
	if problems := Validate(board); len(problems) != 0 {
		t.Errorf("Board invalid after reassignment: %v", problems)
	}
}

func TestAssignPadNetInsertsClause(t *testing.T) {
	editor := newTestBoard(t)

	// Q1 pad 1 has no net clause yet
	if err := editor.AssignPadNet("Q1", "1", "BASE"); err != nil {
		t.Fatalf("AssignPadNet failed: %v", err)
	}

	board := parseBoardFile(t, editor.Path())
	base, ok := board.NetByName("BASE")
	if !ok {
		t.Fatal("BASE missing from net table")
	}
	q1, _ := board.FootprintByReference("Q1")
	if q1.Pads[0].Net != base.Number || q1.Pads[0].NetName != "BASE" {
		t.Errorf("Q1 pad 1: got %+v", q1.Pads[0])
	}
	if problems := Validate(board); len(problems) != 0 {
		t.Errorf("Board invalid after assignment: %v", problems)
	}
}

func TestAssignPadNetMissingPad(t *testing.T) {
	editor := newTestBoard(t)

	err := editor.AssignPadNet("R1", "9", "GND")
	var notFound *NotFoundError
	if !errors.As(err, &notFound) || notFound.Kind != "pad" {
		t.Fatalf("Expected pad NotFoundError, got %v", err)
	}
}

func TestBoardConflictDetection(t *testing.T) {
	editor := newTestBoard(t)

	doc, err := editor.load()
	if err != nil {
		t.Fatal(err)
	}

	// Simulate another writer touching the file after our read
	future := doc.modTime.Add(2 * time.Second)
	if err := os.Chtimes(editor.Path(), future, future); err != nil {
		t.Fatal(err)
	}

	err = editor.store(doc, doc.content)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Expected ConflictError, got %v", err)
	}
}
