package library

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/sexp"
	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/sexp/kicadsexp"
)

// TableEntry is one row of a sym-lib-table or fp-lib-table.
type TableEntry struct {
	Name string
	Type string
	URI  string
}

// ParseLibraryTable reads a KiCad library table file. Entries look like:
//
//	(sym_lib_table
//	  (lib (name "MyLib") (type "KiCad") (uri "${KIPRJMOD}/MyLib.kicad_sym")))
func ParseLibraryTable(path string) ([]TableEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	nodes, err := kicadsexp.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse library table %s: %w", path, err)
	}

	var entries []TableEntry
	for _, root := range nodes {
		for _, lib := range sexp.FindAllNodes(root, "lib") {
			entry := TableEntry{}
			if n, ok := sexp.FindNode(lib, "name"); ok {
				entry.Name, _ = sexp.GetText(n, 1)
			}
			if n, ok := sexp.FindNode(lib, "type"); ok {
				entry.Type, _ = sexp.GetText(n, 1)
			}
			if n, ok := sexp.FindNode(lib, "uri"); ok {
				entry.URI, _ = sexp.GetText(n, 1)
			}
			if entry.Name != "" || entry.URI != "" {
				entries = append(entries, entry)
			}
		}
	}

	return entries, nil
}

// SubstituteTableVars expands ${KIPRJMOD} and ${PROJ_DIR} in a table URI to
// the project directory.
func SubstituteTableVars(uri, projectDir string) string {
	uri = strings.ReplaceAll(uri, "${KIPRJMOD}", projectDir)
	uri = strings.ReplaceAll(uri, "${PROJ_DIR}", projectDir)
	return uri
}

// ProjectSymbolLibraries resolves the project-local sym-lib-table next to a
// schematic into existing library file paths. A missing table is not an
// error; the project just has no local libraries.
func ProjectSymbolLibraries(schematicPath string) []string {
	projectDir := filepath.Dir(schematicPath)
	tablePath := filepath.Join(projectDir, "sym-lib-table")

	entries, err := ParseLibraryTable(tablePath)
	if err != nil {
		return nil
	}

	var paths []string
	for _, entry := range entries {
		p := SubstituteTableVars(entry.URI, projectDir)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			paths = append(paths, p)
		}
	}
	return paths
}
