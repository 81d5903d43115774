package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/connectivity"
	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/geometry"
	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/library"
	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/schematic"
)

var schCmd = &cobra.Command{
	Use:   "sch",
	Short: "KiCad schematic file operations",
	Long:  `Commands for working with KiCad schematic files (.kicad_sch)`,
}

// newResolver builds a library resolver backed by the user's registered
// sources. A missing registry is fine; a corrupt one is not.
func newResolver() (*library.Resolver, error) {
	path, err := library.DefaultRegistryPath()
	if err != nil {
		return library.NewResolver(nil), nil
	}
	registry, err := library.OpenRegistry(path)
	if err != nil {
		return nil, err
	}
	return library.NewResolver(registry), nil
}

func newSchematicEditor(path string) (*schematic.Editor, error) {
	resolver, err := newResolver()
	if err != nil {
		return nil, err
	}
	return schematic.NewEditor(path, resolver), nil
}

var schReadCmd = &cobra.Command{
	Use:   "read <schematic_file>",
	Short: "Dump a schematic's contents as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sch, err := schematic.ParseFile(args[0])
		if err != nil {
			return err
		}

		type symbolInfo struct {
			Reference string  `json:"reference"`
			Value     string  `json:"value"`
			LibID     string  `json:"lib_id"`
			Footprint string  `json:"footprint,omitempty"`
			X         float64 `json:"x"`
			Y         float64 `json:"y"`
			Rotation  float64 `json:"rotation"`
			Power     bool    `json:"is_power,omitempty"`
		}
		symbols := make([]symbolInfo, 0, len(sch.Symbols))
		for i := range sch.Symbols {
			sym := &sch.Symbols[i]
			symbols = append(symbols, symbolInfo{
				Reference: sym.Reference(),
				Value:     sym.Value(),
				LibID:     sym.LibID,
				Footprint: sym.Footprint(),
				X:         sym.Position.X,
				Y:         sym.Position.Y,
				Rotation:  float64(sym.Angle),
				Power:     sym.IsPower(),
			})
		}

		labels := make([]string, 0, len(sch.Labels)+len(sch.GlobalLabels)+len(sch.HierLabels))
		for _, set := range [][]schematic.Label{sch.Labels, sch.GlobalLabels, sch.HierLabels} {
			for _, l := range set {
				labels = append(labels, l.Text)
			}
		}

		return emit(map[string]any{
			"file":        args[0],
			"version":     sch.Version,
			"generator":   sch.Generator,
			"uuid":        sch.UUID,
			"title":       sch.TitleBlock.Title,
			"symbols":     symbols,
			"wires":       len(sch.Wires),
			"junctions":   len(sch.Junctions),
			"no_connects": len(sch.NoConnects),
			"labels":      labels,
			"bounds":      boundsPayload(sch.Bounds()),
		})
	},
}

var (
	schCreateTitle string
	schCreateRev   string
)

var schCreateCmd = &cobra.Command{
	Use:   "create <schematic_file>",
	Short: "Create a new empty schematic",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		docUUID, err := schematic.Create(args[0], schCreateTitle, schCreateRev)
		if err != nil {
			return err
		}
		return emit(map[string]any{"file": args[0], "uuid": docUUID})
	},
}

var addSymbolOpts schematic.AddSymbolOptions

var schAddSymbolCmd = &cobra.Command{
	Use:   "add-symbol <schematic_file>",
	Short: "Place a symbol instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		editor, err := newSchematicEditor(args[0])
		if err != nil {
			return err
		}
		symUUID, err := editor.AddSymbol(addSymbolOpts)
		if err != nil {
			return err
		}
		return emit(map[string]any{
			"reference": addSymbolOpts.Reference,
			"lib_id":    addSymbolOpts.LibID,
			"uuid":      symUUID,
		})
	},
}

var (
	powerName     string
	powerX        float64
	powerY        float64
	powerRotation float64
)

var schAddPowerCmd = &cobra.Command{
	Use:   "add-power <schematic_file>",
	Short: "Place a power symbol with an auto-assigned reference",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		editor, err := newSchematicEditor(args[0])
		if err != nil {
			return err
		}
		ref, symUUID, err := editor.AddPowerSymbol(powerName, powerX, powerY, powerRotation)
		if err != nil {
			return err
		}
		return emit(map[string]any{"reference": ref, "net": powerName, "uuid": symUUID})
	},
}

var wireX1, wireY1, wireX2, wireY2 float64

var schAddWireCmd = &cobra.Command{
	Use:   "add-wire <schematic_file>",
	Short: "Draw a wire segment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		editor, err := newSchematicEditor(args[0])
		if err != nil {
			return err
		}
		wireUUID, err := editor.AddWire(wireX1, wireY1, wireX2, wireY2)
		if err != nil {
			return err
		}
		return emit(map[string]any{"uuid": wireUUID})
	},
}

var (
	labelText string
	labelX    float64
	labelY    float64
	labelKind string
)

var schAddLabelCmd = &cobra.Command{
	Use:   "add-label <schematic_file>",
	Short: "Attach a net label",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		editor, err := newSchematicEditor(args[0])
		if err != nil {
			return err
		}
		labelUUID, err := editor.AddLabel(labelText, labelX, labelY, schematic.LabelKind(labelKind))
		if err != nil {
			return err
		}
		return emit(map[string]any{"text": labelText, "kind": labelKind, "uuid": labelUUID})
	},
}

var pointX, pointY float64

var schAddJunctionCmd = &cobra.Command{
	Use:   "add-junction <schematic_file>",
	Short: "Mark a wire junction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		editor, err := newSchematicEditor(args[0])
		if err != nil {
			return err
		}
		jUUID, err := editor.AddJunction(pointX, pointY)
		if err != nil {
			return err
		}
		return emit(map[string]any{"uuid": jUUID})
	},
}

var schAddNoConnectCmd = &cobra.Command{
	Use:   "add-no-connect <schematic_file>",
	Short: "Mark a pin as deliberately unconnected",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		editor, err := newSchematicEditor(args[0])
		if err != nil {
			return err
		}
		ncUUID, err := editor.AddNoConnect(pointX, pointY)
		if err != nil {
			return err
		}
		return emit(map[string]any{"uuid": ncUUID})
	},
}

var (
	moveX        float64
	moveY        float64
	moveRotation float64
)

var schMoveCmd = &cobra.Command{
	Use:   "move <schematic_file> <reference>",
	Short: "Move a symbol, shifting its property labels with it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		editor, err := newSchematicEditor(args[0])
		if err != nil {
			return err
		}
		if err := editor.MoveSymbol(args[1], moveX, moveY, moveRotation); err != nil {
			return err
		}
		return emit(map[string]any{"reference": args[1], "x": moveX, "y": moveY})
	},
}

var schUpdateCmd = &cobra.Command{
	Use:   "update <schematic_file> <reference> <property> <value>",
	Short: "Set a symbol property, adding it when absent",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		editor, err := newSchematicEditor(args[0])
		if err != nil {
			return err
		}
		if err := editor.UpdateProperty(args[1], args[2], args[3]); err != nil {
			return err
		}
		return emit(map[string]any{"reference": args[1], "property": args[2], "value": args[3]})
	},
}

var schRemoveCmd = &cobra.Command{
	Use:   "remove <schematic_file> <reference>",
	Short: "Remove a symbol instance",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		editor, err := newSchematicEditor(args[0])
		if err != nil {
			return err
		}
		if err := editor.RemoveSymbol(args[1]); err != nil {
			return err
		}
		return emit(map[string]any{"removed": args[1]})
	},
}

var schRemoveWireCmd = &cobra.Command{
	Use:   "remove-wire <schematic_file>",
	Short: "Remove the wire with the given endpoints",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		editor, err := newSchematicEditor(args[0])
		if err != nil {
			return err
		}
		if err := editor.RemoveWire(wireX1, wireY1, wireX2, wireY2); err != nil {
			return err
		}
		return emit(map[string]any{"removed": "wire"})
	},
}

var schPinsCmd = &cobra.Command{
	Use:   "pins <schematic_file> <reference>",
	Short: "Show a symbol's absolute pin positions",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sch, err := schematic.ParseFile(args[0])
		if err != nil {
			return err
		}

		var sym *schematic.Symbol
		for i := range sch.Symbols {
			if sch.Symbols[i].Reference() == args[1] {
				sym = &sch.Symbols[i]
				break
			}
		}
		if sym == nil {
			return fmt.Errorf("symbol %q not found in %s", args[1], args[0])
		}

		pins, err := resolveSymbolPins(sch, sym, args[0])
		if err != nil {
			return err
		}

		placement := geometry.Placement{
			Position: sym.Position,
			Rotation: sym.Angle,
			Mirror:   geometry.Mirror(sym.Mirror),
		}

		type pinInfo struct {
			Number string  `json:"number"`
			Name   string  `json:"name,omitempty"`
			X      float64 `json:"x"`
			Y      float64 `json:"y"`
		}
		result := make([]pinInfo, 0, len(pins))
		for _, pin := range pins {
			pos := geometry.PinPosition(placement, pin.Position)
			name := pin.Name
			if name == "~" {
				name = ""
			}
			result = append(result, pinInfo{Number: pin.Number, Name: name, X: pos.X, Y: pos.Y})
		}

		return emit(map[string]any{"reference": args[1], "pins": result})
	},
}

// resolveSymbolPins prefers the document's own lib_symbols cache; an
// extends-only cache entry falls back to the library resolver.
func resolveSymbolPins(sch *schematic.Schematic, sym *schematic.Symbol, schPath string) ([]library.Pin, error) {
	if cached, ok := sch.LibSymbols[sym.LibID]; ok {
		if pins := library.CollectPins(cached); len(pins) > 0 {
			return pins, nil
		}
	}

	resolver, err := newResolver()
	if err != nil {
		return nil, err
	}
	def, err := resolver.Resolve(sym.LibID, schPath)
	if err != nil {
		return nil, err
	}
	return resolver.ResolvePins(def)
}

var schValidateCmd = &cobra.Command{
	Use:   "validate <schematic_file>",
	Short: "Check structural invariants",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sch, err := schematic.ParseFile(args[0])
		if err != nil {
			return err
		}
		problems := schematic.Validate(sch)

		// Electrical checks need pin geometry; skip them when no library
		// is resolvable rather than failing structural validation.
		if resolver, err := newResolver(); err == nil {
			if netMap, err := connectivity.NewAnalyzer(resolver).Build(sch, args[0]); err == nil {
				problems = append(problems, connectivity.Check(netMap, sch)...)
			}
		}

		messages := make([]string, 0, len(problems))
		for _, p := range problems {
			messages = append(messages, p.Error())
		}
		return emit(map[string]any{"file": args[0], "valid": len(problems) == 0, "problems": messages})
	},
}

func init() {
	rootCmd.AddCommand(schCmd)
	schCmd.AddCommand(schReadCmd)

	schCreateCmd.Flags().StringVar(&schCreateTitle, "title", "", "schematic title")
	schCreateCmd.Flags().StringVar(&schCreateRev, "rev", "", "revision")
	schCmd.AddCommand(schCreateCmd)

	schAddSymbolCmd.Flags().StringVar(&addSymbolOpts.LibID, "lib-id", "", "library id, e.g. Device:R")
	schAddSymbolCmd.Flags().StringVar(&addSymbolOpts.Reference, "ref", "", "reference designator")
	schAddSymbolCmd.Flags().StringVar(&addSymbolOpts.Value, "value", "", "component value")
	schAddSymbolCmd.Flags().StringVar(&addSymbolOpts.Footprint, "footprint", "", "footprint assignment")
	schAddSymbolCmd.Flags().Float64Var(&addSymbolOpts.X, "x", 0, "X position in mm")
	schAddSymbolCmd.Flags().Float64Var(&addSymbolOpts.Y, "y", 0, "Y position in mm")
	schAddSymbolCmd.Flags().Float64Var(&addSymbolOpts.Rotation, "rotation", 0, "rotation in degrees")
	schAddSymbolCmd.Flags().StringVar(&addSymbolOpts.Mirror, "mirror", "", "mirror axis: x or y")
	schAddSymbolCmd.MarkFlagRequired("lib-id")
	schAddSymbolCmd.MarkFlagRequired("ref")
	schCmd.AddCommand(schAddSymbolCmd)

	schAddPowerCmd.Flags().StringVar(&powerName, "name", "GND", "power net name, e.g. GND, +5V")
	schAddPowerCmd.Flags().Float64Var(&powerX, "x", 0, "X position in mm")
	schAddPowerCmd.Flags().Float64Var(&powerY, "y", 0, "Y position in mm")
	schAddPowerCmd.Flags().Float64Var(&powerRotation, "rotation", 0, "rotation in degrees")
	schCmd.AddCommand(schAddPowerCmd)

	for _, c := range []*cobra.Command{schAddWireCmd, schRemoveWireCmd} {
		c.Flags().Float64Var(&wireX1, "x1", 0, "start X in mm")
		c.Flags().Float64Var(&wireY1, "y1", 0, "start Y in mm")
		c.Flags().Float64Var(&wireX2, "x2", 0, "end X in mm")
		c.Flags().Float64Var(&wireY2, "y2", 0, "end Y in mm")
		schCmd.AddCommand(c)
	}

	schAddLabelCmd.Flags().StringVar(&labelText, "text", "", "net name")
	schAddLabelCmd.Flags().Float64Var(&labelX, "x", 0, "X position in mm")
	schAddLabelCmd.Flags().Float64Var(&labelY, "y", 0, "Y position in mm")
	schAddLabelCmd.Flags().StringVar(&labelKind, "kind", "label", "label, global_label, or hierarchical_label")
	schAddLabelCmd.MarkFlagRequired("text")
	schCmd.AddCommand(schAddLabelCmd)

	for _, c := range []*cobra.Command{schAddJunctionCmd, schAddNoConnectCmd} {
		c.Flags().Float64Var(&pointX, "x", 0, "X position in mm")
		c.Flags().Float64Var(&pointY, "y", 0, "Y position in mm")
		schCmd.AddCommand(c)
	}

	schMoveCmd.Flags().Float64Var(&moveX, "x", 0, "new X position in mm")
	schMoveCmd.Flags().Float64Var(&moveY, "y", 0, "new Y position in mm")
	schMoveCmd.Flags().Float64Var(&moveRotation, "rotation", -1, "new rotation in degrees, -1 keeps current")
	schCmd.AddCommand(schMoveCmd)

	schCmd.AddCommand(schUpdateCmd)
	schCmd.AddCommand(schRemoveCmd)
	schCmd.AddCommand(schPinsCmd)
	schCmd.AddCommand(schValidateCmd)
}
