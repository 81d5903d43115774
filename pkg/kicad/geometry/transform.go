// Package geometry maps symbol-local pin coordinates to absolute schematic
// coordinates under placement rotation and mirroring.
package geometry

import (
	"math"

	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/sexp"
)

// Mirror is a symbol placement mirror axis.
type Mirror string

const (
	MirrorNone Mirror = ""
	MirrorX    Mirror = "x" // flips vertically
	MirrorY    Mirror = "y" // flips horizontally
)

// Placement describes where a symbol instance sits on the sheet.
type Placement struct {
	Position sexp.Position
	Rotation sexp.Angle // degrees, quantized to 90-degree steps by the editor
	Mirror   Mirror
}

// PinPosition transforms a pin offset from library coordinates to an
// absolute sheet position.
//
// Library symbol coordinates are Y-up; schematic sheets are Y-down, so the
// pin's Y is negated first. The mirror applies next (x mirrors flip the
// vertical axis, y mirrors the horizontal one), then the placement rotation,
// then the translation to the instance position. Results are rounded to
// 0.0001 mm so equal pins hash to equal coordinates.
func PinPosition(p Placement, pinOffset sexp.Position) sexp.Position {
	px := pinOffset.X
	py := -pinOffset.Y

	switch p.Mirror {
	case MirrorX:
		py = -py
	case MirrorY:
		px = -px
	}

	rx, ry := rotate(px, py, float64(p.Rotation))

	return sexp.Position{
		X: Round(p.Position.X + rx),
		Y: Round(p.Position.Y + ry),
	}
}

// rotate applies a rotation in the sheet's Y-down frame. The quantized
// placements KiCad writes (0/90/180/270) take exact paths so no float error
// leaks into coordinate keys.
func rotate(x, y, degrees float64) (float64, float64) {
	switch normalizeAngle(degrees) {
	case 0:
		return x, y
	case 90:
		return -y, x
	case 180:
		return -x, -y
	case 270:
		return y, -x
	}

	rad := degrees * math.Pi / 180
	cos := math.Cos(rad)
	sin := math.Sin(rad)
	return x*cos - y*sin, x*sin + y*cos
}

// normalizeAngle maps an angle into [0, 360).
func normalizeAngle(degrees float64) float64 {
	a := math.Mod(degrees, 360)
	if a < 0 {
		a += 360
	}
	return a
}

// Round quantizes a coordinate to 0.0001 mm.
func Round(v float64) float64 {
	r := math.Round(v*10000) / 10000
	if r == 0 {
		return 0 // avoid -0
	}
	return r
}

// Translate shifts a position by a delta.
func Translate(pos sexp.Position, dx, dy float64) sexp.Position {
	return sexp.Position{X: Round(pos.X + dx), Y: Round(pos.Y + dy)}
}

// Distance returns the Euclidean distance between two positions.
func Distance(a, b sexp.Position) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}
