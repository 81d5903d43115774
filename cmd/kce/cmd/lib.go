package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/library"
)

var libCmd = &cobra.Command{
	Use:   "lib",
	Short: "Symbol library operations",
	Long:  `Resolve symbols across system, project, and registered libraries`,
}

var libProject string

var libResolveCmd = &cobra.Command{
	Use:   "resolve <lib_id>",
	Short: "Resolve a symbol definition, following extends chains",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resolver, err := newResolver()
		if err != nil {
			return err
		}

		def, err := resolver.Resolve(args[0], libProject)
		if err != nil {
			return err
		}
		pins, err := resolver.ResolvePins(def)
		if err != nil {
			return err
		}

		type pinInfo struct {
			Number     string `json:"number"`
			Name       string `json:"name,omitempty"`
			Electrical string `json:"electrical"`
		}
		pinList := make([]pinInfo, 0, len(pins))
		for _, pin := range pins {
			name := pin.Name
			if name == "~" {
				name = ""
			}
			pinList = append(pinList, pinInfo{Number: pin.Number, Name: name, Electrical: pin.Electrical})
		}

		return emit(map[string]any{
			"lib_id":     def.LibID,
			"library":    def.LibraryPath,
			"extends":    def.Extends,
			"fp_filters": def.FpFilters,
			"pins":       pinList,
		})
	},
}

var libSuggestCmd = &cobra.Command{
	Use:   "suggest <lib_id>",
	Short: "Suggest footprints matching a symbol's filters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resolver, err := newResolver()
		if err != nil {
			return err
		}

		def, err := resolver.Resolve(args[0], libProject)
		if err != nil {
			return err
		}
		suggestions, err := resolver.SuggestFootprints(def)
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(suggestions))
		for _, s := range suggestions {
			ids = append(ids, s.LibID)
		}
		return emit(map[string]any{
			"lib_id":     args[0],
			"fp_filters": def.FpFilters,
			"footprints": ids,
		})
	},
}

var libSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search symbols and footprints by name substring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resolver, err := newResolver()
		if err != nil {
			return err
		}

		type symbolInfo struct {
			LibID   string `json:"lib_id"`
			Library string `json:"library"`
		}
		symbols := make([]symbolInfo, 0)
		for _, m := range resolver.SearchSymbols(args[0], libProject) {
			symbols = append(symbols, symbolInfo{LibID: m.LibID, Library: m.Library})
		}

		footprints := make([]string, 0)
		for _, m := range resolver.SearchFootprints(args[0]) {
			footprints = append(footprints, m.LibID)
		}

		return emit(map[string]any{
			"query":      args[0],
			"symbols":    symbols,
			"footprints": footprints,
		})
	},
}

var libListCmd = &cobra.Command{
	Use:   "list",
	Short: "List discoverable symbol libraries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		libs := library.FindSymbolLibraries()

		path, err := library.DefaultRegistryPath()
		if err == nil {
			if registry, err := library.OpenRegistry(path); err == nil {
				libs = append(libs, registry.SymbolLibraries("")...)
			}
		}

		return emit(map[string]any{"libraries": libs})
	},
}

var (
	sourcePath string
	sourceType string
	sourceURL  string
)

var libSourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage registered external library sources",
}

var libSourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered sources",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := openDefaultRegistry()
		if err != nil {
			return err
		}

		type sourceInfo struct {
			Name string `json:"name"`
			Path string `json:"path"`
			Type string `json:"type"`
			URL  string `json:"url,omitempty"`
		}
		sources := make([]sourceInfo, 0)
		for _, entry := range registry.List() {
			sources = append(sources, sourceInfo{
				Name: entry.Name,
				Path: entry.Path,
				Type: entry.SourceType,
				URL:  entry.URL,
			})
		}
		return emit(map[string]any{"sources": sources})
	},
}

var libSourcesAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a library source directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := openDefaultRegistry()
		if err != nil {
			return err
		}
		if err := registry.Register(args[0], sourcePath, sourceType, sourceURL); err != nil {
			return err
		}
		return emit(map[string]any{"registered": args[0], "path": sourcePath})
	},
}

var libSourcesRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Unregister a library source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := openDefaultRegistry()
		if err != nil {
			return err
		}
		existed, err := registry.Unregister(args[0])
		if err != nil {
			return err
		}
		if !existed {
			return fmt.Errorf("source %q is not registered", args[0])
		}
		return emit(map[string]any{"unregistered": args[0]})
	},
}

func openDefaultRegistry() (*library.Registry, error) {
	path, err := library.DefaultRegistryPath()
	if err != nil {
		return nil, err
	}
	return library.OpenRegistry(path)
}

func init() {
	rootCmd.AddCommand(libCmd)

	libResolveCmd.Flags().StringVar(&libProject, "project", "", "schematic path for project-local library lookup")
	libSuggestCmd.Flags().StringVar(&libProject, "project", "", "schematic path for project-local library lookup")
	libSearchCmd.Flags().StringVar(&libProject, "project", "", "schematic path for project-local library lookup")
	libCmd.AddCommand(libResolveCmd)
	libCmd.AddCommand(libSuggestCmd)
	libCmd.AddCommand(libSearchCmd)
	libCmd.AddCommand(libListCmd)

	libSourcesAddCmd.Flags().StringVar(&sourcePath, "path", "", "source directory")
	libSourcesAddCmd.Flags().StringVar(&sourceType, "type", "local", "source type: local or git")
	libSourcesAddCmd.Flags().StringVar(&sourceURL, "url", "", "upstream URL for git sources")
	libSourcesAddCmd.MarkFlagRequired("path")

	libSourcesCmd.AddCommand(libSourcesListCmd)
	libSourcesCmd.AddCommand(libSourcesAddCmd)
	libSourcesCmd.AddCommand(libSourcesRemoveCmd)
	libCmd.AddCommand(libSourcesCmd)
}
