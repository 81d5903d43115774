package cmd

import (
	"github.com/spf13/cobra"

	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/pcb"
)

var pcbCmd = &cobra.Command{
	Use:   "pcb",
	Short: "KiCad board file operations",
	Long:  `Commands for working with KiCad board files (.kicad_pcb)`,
}

var pcbReadCmd = &cobra.Command{
	Use:   "read <board_file>",
	Short: "Dump a board's contents as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		board, err := pcb.ParseFile(args[0])
		if err != nil {
			return err
		}

		type footprintInfo struct {
			Reference string  `json:"reference"`
			Value     string  `json:"value"`
			Footprint string  `json:"footprint"`
			Layer     string  `json:"layer"`
			X         float64 `json:"x"`
			Y         float64 `json:"y"`
			Rotation  float64 `json:"rotation"`
			Pads      int     `json:"pads"`
		}
		footprints := make([]footprintInfo, 0, len(board.Footprints))
		for i := range board.Footprints {
			fp := &board.Footprints[i]
			footprints = append(footprints, footprintInfo{
				Reference: fp.Reference,
				Value:     fp.Value,
				Footprint: fp.LibID,
				Layer:     fp.Layer,
				X:         fp.Position.X,
				Y:         fp.Position.Y,
				Rotation:  float64(fp.Position.Angle),
				Pads:      len(fp.Pads),
			})
		}

		type netInfo struct {
			Number int    `json:"number"`
			Name   string `json:"name"`
		}
		nets := make([]netInfo, 0, len(board.Nets))
		for _, net := range board.Nets {
			nets = append(nets, netInfo{Number: net.Number, Name: net.Name})
		}

		return emit(map[string]any{
			"file":       args[0],
			"version":    board.Version,
			"generator":  board.Generator,
			"title":      board.General.Title,
			"footprints": footprints,
			"nets":       nets,
			"tracks":     len(board.Tracks),
			"vias":       len(board.Vias),
			"zones":      len(board.Zones),
			"bounds":     boundsPayload(board.Bounds()),
		})
	},
}

var pcbCreateTitle string

var pcbCreateCmd = &cobra.Command{
	Use:   "create <board_file>",
	Short: "Create a new empty board",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := pcb.Create(args[0], pcbCreateTitle); err != nil {
			return err
		}
		return emit(map[string]any{"file": args[0]})
	},
}

var placeOpts pcb.PlaceFootprintOptions

var pcbPlaceCmd = &cobra.Command{
	Use:   "place <board_file>",
	Short: "Place a footprint on the board",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fpUUID, err := pcb.NewEditor(args[0]).PlaceFootprint(placeOpts)
		if err != nil {
			return err
		}
		return emit(map[string]any{
			"reference": placeOpts.Reference,
			"footprint": placeOpts.Footprint,
			"uuid":      fpUUID,
		})
	},
}

var (
	pcbMoveX        float64
	pcbMoveY        float64
	pcbMoveRotation float64
)

var pcbMoveCmd = &cobra.Command{
	Use:   "move <board_file> <reference>",
	Short: "Move a footprint",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := pcb.NewEditor(args[0]).MoveFootprint(args[1], pcbMoveX, pcbMoveY, pcbMoveRotation); err != nil {
			return err
		}
		return emit(map[string]any{"reference": args[1], "x": pcbMoveX, "y": pcbMoveY})
	},
}

var (
	trackX1, trackY1 float64
	trackX2, trackY2 float64
	trackWidth       float64
	trackLayer       string
	trackNet         string
)

var pcbTrackCmd = &cobra.Command{
	Use:   "track <board_file>",
	Short: "Route a copper track segment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		trackUUID, err := pcb.NewEditor(args[0]).AddTrack(trackX1, trackY1, trackX2, trackY2, trackWidth, trackLayer, trackNet)
		if err != nil {
			return err
		}
		return emit(map[string]any{"net": trackNet, "layer": trackLayer, "uuid": trackUUID})
	},
}

var (
	viaX, viaY float64
	viaSize    float64
	viaDrill   float64
	viaNet     string
)

var pcbViaCmd = &cobra.Command{
	Use:   "via <board_file>",
	Short: "Drop a through via",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		viaUUID, err := pcb.NewEditor(args[0]).AddVia(viaX, viaY, viaSize, viaDrill, viaNet)
		if err != nil {
			return err
		}
		return emit(map[string]any{"net": viaNet, "uuid": viaUUID})
	},
}

var pcbAssignNetCmd = &cobra.Command{
	Use:   "assign-net <board_file> <reference> <pad> <net>",
	Short: "Connect a footprint pad to a named net",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := pcb.NewEditor(args[0]).AssignPadNet(args[1], args[2], args[3]); err != nil {
			return err
		}
		return emit(map[string]any{"reference": args[1], "pad": args[2], "net": args[3]})
	},
}

func init() {
	rootCmd.AddCommand(pcbCmd)
	pcbCmd.AddCommand(pcbReadCmd)

	pcbCreateCmd.Flags().StringVar(&pcbCreateTitle, "title", "", "board title")
	pcbCmd.AddCommand(pcbCreateCmd)

	pcbPlaceCmd.Flags().StringVar(&placeOpts.Reference, "ref", "", "reference designator")
	pcbPlaceCmd.Flags().StringVar(&placeOpts.Footprint, "footprint", "", "footprint lib id")
	pcbPlaceCmd.Flags().StringVar(&placeOpts.Value, "value", "", "component value")
	pcbPlaceCmd.Flags().Float64Var(&placeOpts.X, "x", 0, "X position in mm")
	pcbPlaceCmd.Flags().Float64Var(&placeOpts.Y, "y", 0, "Y position in mm")
	pcbPlaceCmd.Flags().StringVar(&placeOpts.Layer, "layer", "F.Cu", "placement layer")
	pcbPlaceCmd.Flags().Float64Var(&placeOpts.Rotation, "rotation", 0, "rotation in degrees")
	pcbPlaceCmd.MarkFlagRequired("ref")
	pcbPlaceCmd.MarkFlagRequired("footprint")
	pcbCmd.AddCommand(pcbPlaceCmd)

	pcbMoveCmd.Flags().Float64Var(&pcbMoveX, "x", 0, "new X position in mm")
	pcbMoveCmd.Flags().Float64Var(&pcbMoveY, "y", 0, "new Y position in mm")
	pcbMoveCmd.Flags().Float64Var(&pcbMoveRotation, "rotation", -1, "new rotation in degrees, -1 keeps current")
	pcbCmd.AddCommand(pcbMoveCmd)

	pcbTrackCmd.Flags().Float64Var(&trackX1, "x1", 0, "start X in mm")
	pcbTrackCmd.Flags().Float64Var(&trackY1, "y1", 0, "start Y in mm")
	pcbTrackCmd.Flags().Float64Var(&trackX2, "x2", 0, "end X in mm")
	pcbTrackCmd.Flags().Float64Var(&trackY2, "y2", 0, "end Y in mm")
	pcbTrackCmd.Flags().Float64Var(&trackWidth, "width", 0.25, "track width in mm")
	pcbTrackCmd.Flags().StringVar(&trackLayer, "layer", "F.Cu", "copper layer")
	pcbTrackCmd.Flags().StringVar(&trackNet, "net", "", "net name, empty for unconnected")
	pcbCmd.AddCommand(pcbTrackCmd)

	pcbViaCmd.Flags().Float64Var(&viaX, "x", 0, "X position in mm")
	pcbViaCmd.Flags().Float64Var(&viaY, "y", 0, "Y position in mm")
	pcbViaCmd.Flags().Float64Var(&viaSize, "size", 0.8, "via diameter in mm")
	pcbViaCmd.Flags().Float64Var(&viaDrill, "drill", 0.4, "drill diameter in mm")
	pcbViaCmd.Flags().StringVar(&viaNet, "net", "", "net name, empty for unconnected")
	pcbCmd.AddCommand(pcbViaCmd)

	pcbCmd.AddCommand(pcbAssignNetCmd)
}
