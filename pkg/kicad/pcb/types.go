// Package pcb provides the typed model and block-scoped editing for KiCad
// board files (.kicad_pcb)
package pcb

import (
	"fmt"
	"sort"
	"strings"

	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/sexp"
)

// Re-export shared types from sexp package for convenience
type Position = sexp.Position
type Angle = sexp.Angle
type PositionAngle = sexp.PositionAngle
type Size = sexp.Size
type UUID = sexp.UUID

// Board represents a parsed KiCad board file
type Board struct {
	Version    int    // File format version
	Generator  string // Generator info (e.g., "pcbnew")
	General    General
	Paper      string
	Layers     []Layer
	Nets       []Net
	Footprints []Footprint
	Tracks     []Track
	Vias       []Via
	Zones      []Zone
}

// General contains general board properties
type General struct {
	Thickness float64 // Board thickness in mm
	Title     string
	Date      string
	Revision  string
	Company   string
}

// Layer represents a board layer definition
type Layer struct {
	Number int    // Layer number (ordinal)
	Name   string // Layer name (e.g., "F.Cu", "B.Cu")
	Type   string // signal, user, ...
}

// Net is one entry of the board's net table. Net 0 is reserved for
// unconnected pads.
type Net struct {
	Number int
	Name   string
}

// Footprint represents a placed component footprint
type Footprint struct {
	LibID     string // fully qualified, e.g. "Resistor_SMD:R_0603_1608Metric"
	Layer     string
	Position  PositionAngle
	Reference string
	Value     string
	Pads      []Pad
	UUID      UUID
}

// Pad represents a footprint pad with its net assignment
type Pad struct {
	Number   string // pad number/name, e.g. "1" or "A12"
	Type     string // thru_hole, smd, np_thru_hole
	Shape    string // circle, rect, oval, roundrect
	Position PositionAngle
	Size     Size
	Drill    float64 // 0 for SMD
	Layers   []string
	Net      int    // net table number, 0 when unconnected
	NetName  string
}

// Track represents a copper track segment
type Track struct {
	Start Position
	End   Position
	Width float64
	Layer string
	Net   int
	UUID  UUID
}

// Via represents a through or blind via
type Via struct {
	Position Position
	Size     float64
	Drill    float64
	Layers   []string
	Net      int
	UUID     UUID
}

// Zone represents a filled copper zone
type Zone struct {
	Net     int
	NetName string
	Layer   string
	Outline []Position
	UUID    UUID
}

// NetByName returns the net table entry with the given name.
func (b *Board) NetByName(name string) (*Net, bool) {
	for i := range b.Nets {
		if b.Nets[i].Name == name {
			return &b.Nets[i], true
		}
	}
	return nil, false
}

// NetByNumber returns the net table entry with the given number.
func (b *Board) NetByNumber(num int) (*Net, bool) {
	for i := range b.Nets {
		if b.Nets[i].Number == num {
			return &b.Nets[i], true
		}
	}
	return nil, false
}

// FootprintByReference returns the footprint with the given reference
// designator.
func (b *Board) FootprintByReference(ref string) (*Footprint, bool) {
	for i := range b.Footprints {
		if b.Footprints[i].Reference == ref {
			return &b.Footprints[i], true
		}
	}
	return nil, false
}

// PadsOnNet returns every pad assigned to the named net, with its owning
// footprint reference.
func (b *Board) PadsOnNet(netName string) []PadRef {
	var pads []PadRef
	for i := range b.Footprints {
		fp := &b.Footprints[i]
		for j := range fp.Pads {
			if fp.Pads[j].NetName == netName {
				pads = append(pads, PadRef{Reference: fp.Reference, Pad: &fp.Pads[j]})
			}
		}
	}
	return pads
}

// PadRef pairs a pad with its owning footprint reference.
type PadRef struct {
	Reference string
	Pad       *Pad
}

// validLayers is the set of layer names accepted by board mutators, matching
// a stock two-layer through eight-layer stackup.
var validLayers = map[string]bool{
	"F.Cu": true, "B.Cu": true,
	"In1.Cu": true, "In2.Cu": true, "In3.Cu": true, "In4.Cu": true,
	"In5.Cu": true, "In6.Cu": true, "In7.Cu": true, "In8.Cu": true,
	"F.SilkS": true, "B.SilkS": true,
	"F.Mask": true, "B.Mask": true,
	"F.Paste": true, "B.Paste": true,
	"F.CrtYd": true, "B.CrtYd": true,
	"F.Fab": true, "B.Fab": true,
	"Edge.Cuts": true, "Margin": true,
	"Dwgs.User": true, "Cmts.User": true,
	"Eco1.User": true, "Eco2.User": true,
}

// ValidateLayer checks a layer name against the known layer set.
func ValidateLayer(layer string) error {
	if validLayers[layer] {
		return nil
	}
	names := make([]string, 0, len(validLayers))
	for name := range validLayers {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Errorf("unknown layer %q: valid layers are %s", layer, strings.Join(names, ", "))
}

// Validate checks board-level structural invariants: every pad net
// assignment must reference an entry in the net table.
func Validate(b *Board) []error {
	var problems []error

	known := make(map[int]bool, len(b.Nets))
	for _, net := range b.Nets {
		known[net.Number] = true
	}

	for i := range b.Footprints {
		fp := &b.Footprints[i]
		for _, pad := range fp.Pads {
			if pad.Net != 0 && !known[pad.Net] {
				problems = append(problems, fmt.Errorf(
					"pad %s of %s references net %d absent from the net table",
					pad.Number, fp.Reference, pad.Net))
			}
		}
	}

	seen := map[string]bool{}
	for i := range b.Footprints {
		ref := b.Footprints[i].Reference
		if ref == "" {
			continue
		}
		if seen[ref] {
			problems = append(problems, fmt.Errorf("duplicate reference designator %q", ref))
		}
		seen[ref] = true
	}

	return problems
}

// Bounds returns the area spanned by footprint anchors, tracks, vias, and
// zone outlines.
func (b *Board) Bounds() sexp.BoundingBox {
	bb := sexp.NewBoundingBox()

	for i := range b.Footprints {
		bb.Expand(b.Footprints[i].Position.Position)
	}
	for _, t := range b.Tracks {
		bb.Expand(t.Start)
		bb.Expand(t.End)
	}
	for _, v := range b.Vias {
		bb.Expand(v.Position)
	}
	for _, z := range b.Zones {
		for _, p := range z.Outline {
			bb.Expand(p)
		}
	}

	return bb
}
