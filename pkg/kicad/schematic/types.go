// Package schematic provides the typed model and block-scoped editing for
// KiCad schematic files (.kicad_sch)
package schematic

import (
	"strings"

	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/sexp"
	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/sexp/kicadsexp"
)

// Re-export shared types from sexp package for convenience
type Position = sexp.Position
type Angle = sexp.Angle
type PositionAngle = sexp.PositionAngle
type Size = sexp.Size
type Stroke = sexp.Stroke
type UUID = sexp.UUID
type Effects = sexp.Effects
type Property = sexp.Property

// Schematic represents a parsed KiCad schematic file
type Schematic struct {
	Version        int    // File format version
	Generator      string // Generator info (e.g., "eeschema")
	GeneratorVer   string // Generator version
	UUID           UUID   // Document UUID
	Paper          string // Paper size (e.g., "A4")
	TitleBlock     TitleBlock
	LibSymbols     map[string]kicadsexp.Sexp // cache: qualified lib_id -> definition subtree
	Symbols        []Symbol
	Wires          []Wire
	Junctions      []Junction
	NoConnects     []NoConnect
	Labels         []Label
	GlobalLabels   []Label
	HierLabels     []Label
	SheetInstances []SheetInstance
}

// TitleBlock contains schematic title block information
type TitleBlock struct {
	Title    string
	Date     string
	Revision string
	Company  string
}

// Symbol represents a symbol instance placed on the schematic
type Symbol struct {
	LibID      string   // Library identifier (e.g., "Device:R")
	Position   Position // Position on schematic
	Angle      Angle    // Rotation angle
	Mirror     string   // Mirror mode (x, y, or empty)
	Unit       int      // Unit number (for multi-unit symbols)
	InBom      bool     // Include in BOM
	OnBoard    bool     // Place on board
	DNP        bool     // Do not populate
	UUID       UUID     // Instance UUID
	Properties []Property
	Instances  []InstancePath // Owning sheet paths with per-path reference/unit
}

// InstancePath maps a sheet path to the symbol's reference and unit there.
type InstancePath struct {
	Project   string
	Path      string
	Reference string
	Unit      int
}

// Property returns the value of a named property, or "" when absent.
func (s *Symbol) Property(key string) string {
	for _, p := range s.Properties {
		if p.Key == key {
			return p.Value
		}
	}
	return ""
}

// Reference returns the reference designator.
func (s *Symbol) Reference() string { return s.Property("Reference") }

// Value returns the Value property.
func (s *Symbol) Value() string { return s.Property("Value") }

// Footprint returns the assigned footprint lib_id, or "".
func (s *Symbol) Footprint() string { return s.Property("Footprint") }

// IsPower reports whether this is a power symbol. Power symbols carry a
// "#"-prefixed reference or come from the power library; they name nets and
// never appear on the board.
func (s *Symbol) IsPower() bool {
	return strings.HasPrefix(s.Reference(), "#") || strings.HasPrefix(s.LibID, "power:")
}

// Wire represents a wire connection
type Wire struct {
	Points []Position // Wire points (at least 2)
	Stroke Stroke
	UUID   UUID
}

// Junction represents a wire junction
type Junction struct {
	Position Position
	Diameter float64
	UUID     UUID
}

// NoConnect represents a no-connect marker
type NoConnect struct {
	Position Position
	UUID     UUID
}

// Label represents a net label. Kind distinguishes local, global, and
// hierarchical labels; all three name the net at their position.
type Label struct {
	Text     string
	Kind     LabelKind
	Shape    string // for global/hierarchical labels
	Position Position
	Angle    Angle
	Effects  Effects
	UUID     UUID
}

// LabelKind is the flavor of a net label.
type LabelKind string

const (
	LabelLocal        LabelKind = "label"
	LabelGlobal       LabelKind = "global_label"
	LabelHierarchical LabelKind = "hierarchical_label"
)

// SheetInstance represents a sheet instance path
type SheetInstance struct {
	Path string
	Page string
}

// Bounds returns the area spanned by the schematic's placed elements:
// symbol anchors, wire points, junctions, no-connects, and label anchors.
func (s *Schematic) Bounds() sexp.BoundingBox {
	bb := sexp.NewBoundingBox()

	for i := range s.Symbols {
		bb.Expand(s.Symbols[i].Position)
	}
	for _, w := range s.Wires {
		for _, p := range w.Points {
			bb.Expand(p)
		}
	}
	for _, j := range s.Junctions {
		bb.Expand(j.Position)
	}
	for _, n := range s.NoConnects {
		bb.Expand(n.Position)
	}
	for _, set := range [][]Label{s.Labels, s.GlobalLabels, s.HierLabels} {
		for _, l := range set {
			bb.Expand(l.Position)
		}
	}

	return bb
}
