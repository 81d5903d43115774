package library

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/sexp"
	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/sexp/kicadsexp"
)

// searchCap bounds search results; system libraries hold tens of thousands
// of symbols and a substring query can match most of them.
const searchCap = 100

// SymbolMatch is one symbol found by a search.
type SymbolMatch struct {
	LibID   string
	Name    string
	Library string
}

// SearchSymbols scans every discoverable symbol library for symbols whose
// name contains query, case-insensitive. schematicPath adds the project's
// sym-lib-table libraries to the scan and may be empty.
func (r *Resolver) SearchSymbols(query, schematicPath string) []SymbolMatch {
	needle := strings.ToLower(query)

	libs := r.symbolLibs()
	if schematicPath != "" {
		libs = append(ProjectSymbolLibraries(schematicPath), libs...)
	}

	var matches []SymbolMatch
	seen := map[string]bool{}

	for _, libPath := range libs {
		libName := stem(libPath)
		for _, name := range symbolNames(libPath) {
			if !strings.Contains(strings.ToLower(name), needle) {
				continue
			}
			libID := libName + ":" + name
			if seen[libID] {
				continue
			}
			seen[libID] = true
			matches = append(matches, SymbolMatch{LibID: libID, Name: name, Library: libName})
			if len(matches) >= searchCap {
				return matches
			}
		}
	}

	return matches
}

// symbolNames lists the top-level symbol definitions in a library file.
// Unreadable or malformed libraries contribute nothing.
func symbolNames(libPath string) []string {
	data, err := os.ReadFile(libPath)
	if err != nil {
		return nil
	}
	nodes, err := kicadsexp.ParseBytes(data)
	if err != nil || len(nodes) == 0 {
		return nil
	}

	var names []string
	for _, node := range sexp.FindAllNodes(nodes[0], "symbol") {
		if name, err := sexp.GetText(node, 1); err == nil {
			names = append(names, name)
		}
	}
	return names
}

// SearchFootprints scans every .pretty footprint library for footprints
// whose name contains query, case-insensitive.
func (r *Resolver) SearchFootprints(query string) []FootprintSuggestion {
	needle := strings.ToLower(query)

	libs := FindFootprintLibraries()
	if r.registry != nil {
		libs = append(libs, r.registry.FootprintLibraries("")...)
	}

	var matches []FootprintSuggestion
	seen := map[string]bool{}

	for _, libDir := range libs {
		libName := strings.TrimSuffix(filepath.Base(libDir), ".pretty")

		files, err := filepath.Glob(filepath.Join(libDir, "*.kicad_mod"))
		if err != nil {
			continue
		}

		for _, file := range files {
			name := stem(file)
			if !strings.Contains(strings.ToLower(name), needle) {
				continue
			}
			libID := libName + ":" + name
			if seen[libID] {
				continue
			}
			seen[libID] = true
			matches = append(matches, FootprintSuggestion{Name: name, Library: libName, LibID: libID})
			if len(matches) >= searchCap {
				return matches
			}
		}
	}

	return matches
}
