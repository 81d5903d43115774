package cmd

import (
	"github.com/spf13/cobra"

	kicadsync "github.com/OpenCircuitKit/kicadedit/pkg/kicad/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Schematic/board comparison and synchronization",
}

func reportPayload(report *kicadsync.Report) map[string]any {
	missingBoard := make([]map[string]string, 0, len(report.MissingFromBoard))
	for _, c := range report.MissingFromBoard {
		missingBoard = append(missingBoard, map[string]string{
			"reference": c.Reference,
			"value":     c.Value,
			"lib_id":    c.LibID,
			"footprint": c.Footprint,
		})
	}

	missingSch := make([]map[string]string, 0, len(report.MissingFromSchematic))
	for _, c := range report.MissingFromSchematic {
		missingSch = append(missingSch, map[string]string{
			"reference": c.Reference,
			"value":     c.Value,
			"footprint": c.Footprint,
		})
	}

	fpMismatches := make([]map[string]string, 0, len(report.FootprintMismatches))
	for _, m := range report.FootprintMismatches {
		fpMismatches = append(fpMismatches, map[string]string{
			"reference":           m.Reference,
			"schematic_footprint": m.SchematicFootprint,
			"board_footprint":     m.BoardFootprint,
		})
	}

	valueMismatches := make([]map[string]string, 0, len(report.ValueMismatches))
	for _, m := range report.ValueMismatches {
		valueMismatches = append(valueMismatches, map[string]string{
			"reference":       m.Reference,
			"schematic_value": m.SchematicValue,
			"board_value":     m.BoardValue,
		})
	}

	return map[string]any{
		"missing_from_board":     missingBoard,
		"missing_from_schematic": missingSch,
		"footprint_mismatches":   fpMismatches,
		"value_mismatches":       valueMismatches,
		"matched":                report.Matched,
	}
}

var syncCompareCmd = &cobra.Command{
	Use:   "compare <schematic_file> <board_file>",
	Short: "Diff schematic components against board footprints",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := kicadsync.CompareFiles(args[0], args[1])
		if err != nil {
			return err
		}
		return emit(reportPayload(report))
	},
}

var syncApplyCmd = &cobra.Command{
	Use:   "apply <schematic_file> <board_file>",
	Short: "Place missing footprints and fix value mismatches on the board",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := kicadsync.Sync(args[0], args[1])
		if err != nil {
			return err
		}
		payload := reportPayload(result.Report)
		payload["placed"] = result.Placed
		payload["updated"] = result.Updated
		payload["warnings"] = result.Warnings
		return emit(payload)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.AddCommand(syncCompareCmd)
	syncCmd.AddCommand(syncApplyCmd)
}
