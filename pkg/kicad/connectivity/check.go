package connectivity

import (
	"fmt"

	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/schematic"
)

// Check reports electrical problems in a built net map: pins left floating
// without a no_connect marker, and named rails that drive nothing.
func Check(netMap *NetMap, sch *schematic.Schematic) []error {
	var problems []error

	marked := map[string]bool{}
	for _, nc := range sch.NoConnects {
		marked[CoordKey(nc.Position.X, nc.Position.Y)] = true
	}

	for i := range netMap.Nets {
		net := &netMap.Nets[i]

		if len(net.Pins) == 0 {
			if net.Explicit {
				problems = append(problems, fmt.Errorf("net %q has no connected pins", net.Name))
			}
			continue
		}

		if len(net.Pins) == 1 && !net.Explicit {
			pin := net.Pins[0]
			if !marked[CoordKey(pin.Position.X, pin.Position.Y)] {
				problems = append(problems, fmt.Errorf(
					"pin %s-%s at (%g, %g) is floating; wire it or add a no_connect marker",
					pin.Reference, pin.PinNumber, pin.Position.X, pin.Position.Y))
			}
		}
	}

	return problems
}
