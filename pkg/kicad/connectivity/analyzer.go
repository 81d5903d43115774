package connectivity

import (
	"fmt"
	"math"
	"sort"

	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/geometry"
	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/library"
	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/schematic"
	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/sexp"
)

// Tolerance is the coordinate matching tolerance in mm. Pin and wire
// endpoints within one snap cell connect.
const Tolerance = 0.02

// CoordKey snaps a position to the tolerance grid and renders it as a map
// key, so equal-enough coordinates collide.
func CoordKey(x, y float64) string {
	sx := math.Round(x/Tolerance) * Tolerance
	sy := math.Round(y/Tolerance) * Tolerance
	if sx == 0 {
		sx = 0 // avoid "-0.0000" keys
	}
	if sy == 0 {
		sy = 0
	}
	return fmt.Sprintf("%.4f,%.4f", sx, sy)
}

// PinConnection is one symbol pin on a net.
type PinConnection struct {
	Reference string
	PinNumber string
	Position  sexp.Position
}

// WireSegment is one wire span belonging to a net.
type WireSegment struct {
	From sexp.Position
	To   sexp.Position
}

// LabelRef is a label anchored on a net.
type LabelRef struct {
	Text     string
	Position sexp.Position
}

// Net is a named group of electrically connected pins, together with the
// wire segments and labels that form it.
type Net struct {
	Name     string
	Explicit bool // named by a label or power symbol, not synthesized
	Pins     []PinConnection
	Labels   []LabelRef
	Wires    []WireSegment
}

// AmbiguousNetError reports two explicit net names landing on one connected
// component. Silently picking one would misreport half the net, so the
// caller has to resolve the collision in the schematic.
type AmbiguousNetError struct {
	Names []string
}

func (e *AmbiguousNetError) Error() string {
	return fmt.Sprintf("net names %v are shorted together; rename a label or split the wire", e.Names)
}

// NetMap is the result of a connectivity analysis.
type NetMap struct {
	Nets []Net
}

// NetOf returns the net containing a pin.
func (m *NetMap) NetOf(reference, pinNumber string) (*Net, bool) {
	for i := range m.Nets {
		for _, pin := range m.Nets[i].Pins {
			if pin.Reference == reference && pin.PinNumber == pinNumber {
				return &m.Nets[i], true
			}
		}
	}
	return nil, false
}

// MembersOf returns a named net with its pins, labels, and wire segments.
func (m *NetMap) MembersOf(netName string) (*Net, bool) {
	for i := range m.Nets {
		if m.Nets[i].Name == netName {
			return &m.Nets[i], true
		}
	}
	return nil, false
}

// Analyzer builds net maps from schematics. The resolver supplies pin
// geometry for symbols whose lib_symbols cache entry is extends-only.
type Analyzer struct {
	resolver *library.Resolver
}

// NewAnalyzer returns an analyzer. resolver may be nil when every symbol's
// cache entry carries its own pin geometry.
func NewAnalyzer(resolver *library.Resolver) *Analyzer {
	return &Analyzer{resolver: resolver}
}

// Build infers the net map for a schematic. schematicPath scopes
// project-local library resolution and may be empty.
//
// Wires union their endpoints; labels and power symbol pins contribute
// explicit net names at their snap cell; component pins join whatever net
// their transformed position lands on. Unnamed nets get a synthesized
// "Net-(R1-Pad1)"-style name from their first pin.
func (a *Analyzer) Build(sch *schematic.Schematic, schematicPath string) (*NetMap, error) {
	nl := NewNetlist()

	var wireData []struct {
		seg WireSegment
		key string
	}
	for _, wire := range sch.Wires {
		for i := 1; i < len(wire.Points); i++ {
			prev := CoordKey(wire.Points[i-1].X, wire.Points[i-1].Y)
			cur := CoordKey(wire.Points[i].X, wire.Points[i].Y)
			nl.Connect(prev, cur)
			wireData = append(wireData, struct {
				seg WireSegment
				key string
			}{
				seg: WireSegment{From: wire.Points[i-1], To: wire.Points[i]},
				key: prev,
			})
		}
	}

	// A junction joins every wire segment it lies on, including segments
	// that pass through without ending there. Without the junction, wires
	// connect at shared endpoints only.
	for _, junction := range sch.Junctions {
		key := CoordKey(junction.Position.X, junction.Position.Y)
		nl.Add(key)
		for _, w := range sch.Wires {
			for i := 1; i < len(w.Points); i++ {
				if onSegment(junction.Position, w.Points[i-1], w.Points[i]) {
					nl.Connect(key, CoordKey(w.Points[i-1].X, w.Points[i-1].Y))
				}
			}
		}
	}

	// Explicit names: labels first, then power pins. Both bind to their
	// snap cell; the key collision is what attaches them to wires and pins.
	explicit := map[string][]string{}
	addName := func(key, name string) {
		nl.Add(key)
		for _, existing := range explicit[key] {
			if existing == name {
				return
			}
		}
		explicit[key] = append(explicit[key], name)
	}

	var labelData []struct {
		label LabelRef
		key   string
	}
	addLabel := func(text string, pos sexp.Position) {
		key := CoordKey(pos.X, pos.Y)
		addName(key, text)
		labelData = append(labelData, struct {
			label LabelRef
			key   string
		}{
			label: LabelRef{Text: text, Position: pos},
			key:   key,
		})
	}

	for _, label := range sch.Labels {
		addLabel(label.Text, label.Position)
	}
	for _, label := range sch.GlobalLabels {
		addLabel(label.Text, label.Position)
	}
	for _, label := range sch.HierLabels {
		addLabel(label.Text, label.Position)
	}

	var pinData []struct {
		pin PinConnection
		key string
	}

	for i := range sch.Symbols {
		sym := &sch.Symbols[i]

		pins, err := a.symbolPins(sch, sym, schematicPath)
		if err != nil {
			// A symbol without resolvable geometry contributes no pins; the
			// rest of the net map is still valid.
			continue
		}

		placement := geometry.Placement{
			Position: sym.Position,
			Rotation: sym.Angle,
			Mirror:   geometry.Mirror(sym.Mirror),
		}

		for _, pin := range pins {
			pos := geometry.PinPosition(placement, pin.Position)
			key := CoordKey(pos.X, pos.Y)

			if sym.IsPower() {
				// A power pin names its net after the symbol value.
				name := sym.Value()
				if name == "" {
					name = sym.Reference()
				}
				addName(key, name)
				continue
			}

			nl.Add(key)
			pinData = append(pinData, struct {
				pin PinConnection
				key string
			}{
				pin: PinConnection{Reference: sym.Reference(), PinNumber: pin.Number, Position: pos},
				key: key,
			})
		}
	}

	// Assemble groups into named nets.
	groupPins := map[string][]PinConnection{}
	for _, pd := range pinData {
		root := nl.Find(pd.key)
		groupPins[root] = append(groupPins[root], pd.pin)
	}

	groupWires := map[string][]WireSegment{}
	for _, wd := range wireData {
		root := nl.Find(wd.key)
		groupWires[root] = append(groupWires[root], wd.seg)
	}

	groupLabels := map[string][]LabelRef{}
	for _, ld := range labelData {
		root := nl.Find(ld.key)
		groupLabels[root] = append(groupLabels[root], ld.label)
	}

	groupNames := map[string][]string{}
	for key, names := range explicit {
		root := nl.Find(key)
		for _, name := range names {
			if !contains(groupNames[root], name) {
				groupNames[root] = append(groupNames[root], name)
			}
		}
	}

	rootSet := map[string]bool{}
	for root := range groupPins {
		rootSet[root] = true
	}
	for key := range groupNames {
		rootSet[key] = true
	}
	roots := make([]string, 0, len(rootSet))
	for root := range rootSet {
		roots = append(roots, root)
	}
	sort.Strings(roots)

	result := &NetMap{}
	for _, root := range roots {
		pins := groupPins[root]
		sort.Slice(pins, func(i, j int) bool {
			if pins[i].Reference != pins[j].Reference {
				return pins[i].Reference < pins[j].Reference
			}
			return pins[i].PinNumber < pins[j].PinNumber
		})

		names := groupNames[root]
		if len(names) > 1 {
			sort.Strings(names)
			return nil, &AmbiguousNetError{Names: names}
		}

		net := Net{Pins: pins, Labels: groupLabels[root], Wires: groupWires[root]}
		switch {
		case len(names) == 1:
			net.Name = names[0]
			net.Explicit = true
		case len(pins) > 0:
			net.Name = fmt.Sprintf("Net-(%s-%s)", pins[0].Reference, pins[0].PinNumber)
		default:
			// A named-less group with no pins is wire scaffolding, not a net.
			continue
		}
		result.Nets = append(result.Nets, net)
	}

	return result, nil
}

// symbolPins resolves pin geometry for a placed symbol: the lib_symbols
// cache entry when it carries pins, otherwise the library resolver (the
// cache may be extends-only).
func (a *Analyzer) symbolPins(sch *schematic.Schematic, sym *schematic.Symbol, schematicPath string) ([]library.Pin, error) {
	if cached, ok := sch.LibSymbols[sym.LibID]; ok {
		if pins := library.CollectPins(cached); len(pins) > 0 {
			return pins, nil
		}
	}

	if a.resolver == nil {
		return nil, fmt.Errorf("no pin geometry cached for %q and no resolver configured", sym.LibID)
	}

	def, err := a.resolver.Resolve(sym.LibID, schematicPath)
	if err != nil {
		return nil, err
	}
	return a.resolver.ResolvePins(def)
}

// onSegment reports whether p lies on the segment ab, within the snap
// tolerance.
func onSegment(p, a, b sexp.Position) bool {
	abx, aby := b.X-a.X, b.Y-a.Y
	apx, apy := p.X-a.X, p.Y-a.Y

	lenSq := abx*abx + aby*aby
	if lenSq == 0 {
		return math.Hypot(apx, apy) <= Tolerance
	}

	t := (apx*abx + apy*aby) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return math.Hypot(apx-t*abx, apy-t*aby) <= Tolerance
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
