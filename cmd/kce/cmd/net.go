package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/connectivity"
	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/schematic"
)

var netCmd = &cobra.Command{
	Use:   "net",
	Short: "Net connectivity queries",
	Long:  `Infer electrical nets from wires, labels, and symbol pin positions`,
}

func buildNetMap(schPath string) (*connectivity.NetMap, error) {
	sch, err := schematic.ParseFile(schPath)
	if err != nil {
		return nil, err
	}
	resolver, err := newResolver()
	if err != nil {
		return nil, err
	}
	return connectivity.NewAnalyzer(resolver).Build(sch, schPath)
}

var netPinNetCmd = &cobra.Command{
	Use:   "pin-net <schematic_file> <reference> <pin>",
	Short: "Show which net a pin belongs to",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		netMap, err := buildNetMap(args[0])
		if err != nil {
			return err
		}

		net, ok := netMap.NetOf(args[1], args[2])
		if !ok {
			return emit(map[string]any{
				"reference": args[1],
				"pin":       args[2],
				"connected": false,
			})
		}
		return emit(map[string]any{
			"reference": args[1],
			"pin":       args[2],
			"connected": true,
			"net":       net.Name,
			"explicit":  net.Explicit,
		})
	},
}

var netMembersCmd = &cobra.Command{
	Use:   "members <schematic_file> <net_name>",
	Short: "List the pins on a net",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		netMap, err := buildNetMap(args[0])
		if err != nil {
			return err
		}

		net, ok := netMap.MembersOf(args[1])
		if !ok {
			return fmt.Errorf("net %q not found in %s", args[1], args[0])
		}

		type pinInfo struct {
			Reference string  `json:"reference"`
			Pin       string  `json:"pin"`
			X         float64 `json:"x"`
			Y         float64 `json:"y"`
		}
		pins := make([]pinInfo, 0, len(net.Pins))
		for _, pin := range net.Pins {
			pins = append(pins, pinInfo{
				Reference: pin.Reference,
				Pin:       pin.PinNumber,
				X:         pin.Position.X,
				Y:         pin.Position.Y,
			})
		}

		type labelInfo struct {
			Text string  `json:"text"`
			X    float64 `json:"x"`
			Y    float64 `json:"y"`
		}
		labels := make([]labelInfo, 0, len(net.Labels))
		for _, l := range net.Labels {
			labels = append(labels, labelInfo{Text: l.Text, X: l.Position.X, Y: l.Position.Y})
		}

		type wireInfo struct {
			X1 float64 `json:"x1"`
			Y1 float64 `json:"y1"`
			X2 float64 `json:"x2"`
			Y2 float64 `json:"y2"`
		}
		wires := make([]wireInfo, 0, len(net.Wires))
		for _, w := range net.Wires {
			wires = append(wires, wireInfo{X1: w.From.X, Y1: w.From.Y, X2: w.To.X, Y2: w.To.Y})
		}

		return emit(map[string]any{"net": args[1], "pins": pins, "labels": labels, "wires": wires})
	},
}

var netListCmd = &cobra.Command{
	Use:   "list <schematic_file>",
	Short: "List every inferred net",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		netMap, err := buildNetMap(args[0])
		if err != nil {
			return err
		}

		type netInfo struct {
			Name     string `json:"name"`
			Explicit bool   `json:"explicit"`
			Pins     int    `json:"pins"`
		}
		nets := make([]netInfo, 0, len(netMap.Nets))
		for _, net := range netMap.Nets {
			nets = append(nets, netInfo{Name: net.Name, Explicit: net.Explicit, Pins: len(net.Pins)})
		}
		return emit(map[string]any{"file": args[0], "nets": nets})
	},
}

func init() {
	rootCmd.AddCommand(netCmd)
	netCmd.AddCommand(netPinNetCmd)
	netCmd.AddCommand(netMembersCmd)
	netCmd.AddCommand(netListCmd)
}
