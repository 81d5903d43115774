// Package sync compares a schematic's component set against a board's
// footprint set and reconciles the differences that are safe to automate.
package sync

import (
	"fmt"
	"sort"

	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/pcb"
	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/schematic"
)

// Component is one schematic-side component in a comparison.
type Component struct {
	Reference string
	Value     string
	LibID     string
	Footprint string
}

// BoardComponent is one board-side footprint in a comparison.
type BoardComponent struct {
	Reference string
	Value     string
	Footprint string
}

// FootprintMismatch reports a component whose schematic footprint assignment
// disagrees with the board.
type FootprintMismatch struct {
	Reference          string
	SchematicFootprint string
	BoardFootprint     string
}

// ValueMismatch reports a component whose value differs between schematic
// and board.
type ValueMismatch struct {
	Reference      string
	SchematicValue string
	BoardValue     string
}

// Report is the result of a schematic/board comparison.
type Report struct {
	MissingFromBoard     []Component      // in the schematic, absent from the board
	MissingFromSchematic []BoardComponent // on the board, absent from the schematic
	FootprintMismatches  []FootprintMismatch
	ValueMismatches      []ValueMismatch
	Matched              []string
}

// Compare diffs the schematic component set against the board footprint set
// by reference designator. Power symbols never appear on a board and are
// excluded. A footprint or value comparison only fires when both sides carry
// a non-empty value; an unassigned side is not a mismatch.
func Compare(sch *schematic.Schematic, board *pcb.Board) *Report {
	schByRef := map[string]*schematic.Symbol{}
	for i := range sch.Symbols {
		sym := &sch.Symbols[i]
		ref := sym.Reference()
		if ref == "" || sym.IsPower() {
			continue
		}
		schByRef[ref] = sym
	}

	boardByRef := map[string]*pcb.Footprint{}
	for i := range board.Footprints {
		fp := &board.Footprints[i]
		if fp.Reference != "" {
			boardByRef[fp.Reference] = fp
		}
	}

	refs := make([]string, 0, len(schByRef)+len(boardByRef))
	for ref := range schByRef {
		refs = append(refs, ref)
	}
	for ref := range boardByRef {
		if _, inSch := schByRef[ref]; !inSch {
			refs = append(refs, ref)
		}
	}
	sort.Strings(refs)

	report := &Report{}
	for _, ref := range refs {
		sym, inSch := schByRef[ref]
		fp, inBoard := boardByRef[ref]

		switch {
		case inSch && !inBoard:
			report.MissingFromBoard = append(report.MissingFromBoard, Component{
				Reference: ref,
				Value:     sym.Value(),
				LibID:     sym.LibID,
				Footprint: sym.Footprint(),
			})
			continue
		case inBoard && !inSch:
			report.MissingFromSchematic = append(report.MissingFromSchematic, BoardComponent{
				Reference: ref,
				Value:     fp.Value,
				Footprint: fp.LibID,
			})
			continue
		}

		mismatch := false
		if sf, bf := sym.Footprint(), fp.LibID; sf != "" && bf != "" && sf != bf {
			report.FootprintMismatches = append(report.FootprintMismatches, FootprintMismatch{
				Reference:          ref,
				SchematicFootprint: sf,
				BoardFootprint:     bf,
			})
			mismatch = true
		}
		if sv, bv := sym.Value(), fp.Value; sv != "" && bv != "" && sv != bv {
			report.ValueMismatches = append(report.ValueMismatches, ValueMismatch{
				Reference:      ref,
				SchematicValue: sv,
				BoardValue:     bv,
			})
			mismatch = true
		}
		if !mismatch {
			report.Matched = append(report.Matched, ref)
		}
	}

	return report
}

// CompareFiles compares a schematic file against a board file.
func CompareFiles(schPath, boardPath string) (*Report, error) {
	sch, err := schematic.ParseFile(schPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read schematic: %w", err)
	}
	board, err := pcb.ParseFile(boardPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read board: %w", err)
	}
	return Compare(sch, board), nil
}

// Placement grid for footprints the sync adds to the board. New parts land
// in rows outside the usual sheet origin so they are easy to spot and drag
// into place.
const (
	gridOriginX = 25.0
	gridOriginY = 25.0
	gridStep    = 10.0
	gridColumns = 10
)

// Result is the outcome of a sync run: the comparison that drove it, what
// was changed, and what was left for a human.
type Result struct {
	Report   *Report
	Placed   []string // references placed onto the board
	Updated  []string // references whose board value was rewritten
	Warnings []string // advisory findings never auto-resolved
}

// Sync reconciles a board against its schematic. Components missing from
// the board are placed on an auto-placement grid and value mismatches are
// rewritten to the schematic's value. Footprint mismatches and board-only
// footprints are advisory only: footprint choice and part removal are
// judgment calls the engine must not make unilaterally.
func Sync(schPath, boardPath string) (*Result, error) {
	report, err := CompareFiles(schPath, boardPath)
	if err != nil {
		return nil, err
	}

	result := &Result{Report: report}
	editor := pcb.NewEditor(boardPath)

	for i, comp := range report.MissingFromBoard {
		col := i % gridColumns
		row := i / gridColumns
		x := gridOriginX + float64(col)*gridStep
		y := gridOriginY + float64(row)*gridStep

		if comp.Footprint == "" {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"%s has no footprint assigned in the schematic; placed as a bare skeleton", comp.Reference))
		}

		if _, err := editor.PlaceFootprint(pcb.PlaceFootprintOptions{
			Reference: comp.Reference,
			Footprint: comp.Footprint,
			Value:     comp.Value,
			X:         x,
			Y:         y,
		}); err != nil {
			return nil, fmt.Errorf("failed to place %s: %w", comp.Reference, err)
		}
		result.Placed = append(result.Placed, comp.Reference)
	}

	for _, vm := range report.ValueMismatches {
		if err := editor.SetValue(vm.Reference, vm.SchematicValue); err != nil {
			return nil, fmt.Errorf("failed to update value of %s: %w", vm.Reference, err)
		}
		result.Updated = append(result.Updated, vm.Reference)
	}

	for _, fm := range report.FootprintMismatches {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"%s footprint differs: schematic %q vs board %q; resolve manually",
			fm.Reference, fm.SchematicFootprint, fm.BoardFootprint))
	}
	for _, bc := range report.MissingFromSchematic {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"%s exists only on the board; remove manually if unwanted", bc.Reference))
	}

	return result, nil
}
