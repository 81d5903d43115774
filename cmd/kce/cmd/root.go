package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/sexp"
)

var rootCmd = &cobra.Command{
	Use:   "kce",
	Short: "kicadedit - KiCad schematic and board file manipulation",
	Long: `kicadedit (kce) edits KiCad design files directly, without the KiCad
programs:
  - schematic editing (symbols, wires, labels, power rails)
  - board editing (footprints, tracks, vias, pad nets)
  - net connectivity queries
  - symbol library resolution and footprint suggestions
  - schematic/board comparison and synchronization

Examples:
  kce sch read project.kicad_sch            # Dump schematic as JSON
  kce sch add-symbol project.kicad_sch --lib-id Device:R --ref R1 --value 10k --at 100,50
  kce net pin-net project.kicad_sch R1 1    # Net of a pin
  kce sync compare project.kicad_sch project.kicad_pcb`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// boundsPayload renders a document extent for read output; nil when the
// document holds nothing placeable.
func boundsPayload(bb sexp.BoundingBox) map[string]float64 {
	if bb.IsEmpty() {
		return nil
	}
	return map[string]float64{
		"min_x":  bb.Min.X,
		"min_y":  bb.Min.Y,
		"max_x":  bb.Max.X,
		"max_y":  bb.Max.Y,
		"width":  bb.Width(),
		"height": bb.Height(),
	}
}

// emit renders a command's structured success payload as indented JSON on
// stdout. Every mutating command reports through this so callers can script
// against the output.
func emit(payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
