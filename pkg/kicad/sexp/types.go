// Package sexp provides shared types and navigation helpers for KiCad
// S-expression documents. It is consumed by both the schematic and board
// models.
package sexp

// Position represents a 2D coordinate in millimeters. Schematic and board
// files both store coordinates in mm with Y growing downward.
type Position struct {
	X float64
	Y float64
}

// Angle represents rotation in degrees.
type Angle float64

// PositionAngle combines position with rotation.
type PositionAngle struct {
	Position
	Angle Angle
}

// Size represents dimensions in millimeters.
type Size struct {
	Width  float64
	Height float64
}

// UUID identifies a document or element (KiCad v6+ files).
type UUID string

// Stroke defines line appearance for wires and graphic outlines.
type Stroke struct {
	Width float64
	Type  string // solid, dash, dot, default
}

// Effects represents text effects on labels and properties.
type Effects struct {
	Font    Font
	Justify Justify
	Hide    bool
}

// Font represents font properties.
type Font struct {
	Face      string
	Size      Size
	Thickness float64
	Bold      bool
	Italic    bool
}

// Justify represents text justification.
type Justify struct {
	Horizontal string // left, center, right
	Vertical   string // top, center, bottom
	Mirror     bool
}

// Property represents a key-value property carried by symbols, footprints
// and sheets. The position anchors the property's text label.
type Property struct {
	Key      string
	Value    string
	Position PositionAngle
	Effects  Effects
}

// BoundingBox represents a rectangular boundary.
type BoundingBox struct {
	Min Position
	Max Position
}

// NewBoundingBox creates an empty bounding box.
func NewBoundingBox() BoundingBox {
	return BoundingBox{
		Min: Position{X: 1e9, Y: 1e9},
		Max: Position{X: -1e9, Y: -1e9},
	}
}

// IsEmpty checks if the bounding box is empty.
func (bb BoundingBox) IsEmpty() bool {
	return bb.Min.X > bb.Max.X || bb.Min.Y > bb.Max.Y
}

// Contains checks if a position is within the bounding box.
func (bb BoundingBox) Contains(pos Position) bool {
	return pos.X >= bb.Min.X && pos.X <= bb.Max.X &&
		pos.Y >= bb.Min.Y && pos.Y <= bb.Max.Y
}

// Expand expands the bounding box to include a position.
func (bb *BoundingBox) Expand(pos Position) {
	if pos.X < bb.Min.X {
		bb.Min.X = pos.X
	}
	if pos.Y < bb.Min.Y {
		bb.Min.Y = pos.Y
	}
	if pos.X > bb.Max.X {
		bb.Max.X = pos.X
	}
	if pos.Y > bb.Max.Y {
		bb.Max.Y = pos.Y
	}
}

// Width returns the width of the bounding box.
func (bb BoundingBox) Width() float64 {
	return bb.Max.X - bb.Min.X
}

// Height returns the height of the bounding box.
func (bb BoundingBox) Height() float64 {
	return bb.Max.Y - bb.Min.Y
}

// Center returns the center point of the bounding box.
func (bb BoundingBox) Center() Position {
	return Position{
		X: (bb.Min.X + bb.Max.X) / 2.0,
		Y: (bb.Min.Y + bb.Max.Y) / 2.0,
	}
}
