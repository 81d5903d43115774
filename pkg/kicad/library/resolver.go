package library

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/patch"
	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/sexp"
	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/sexp/kicadsexp"
)

// extendsDepthBound caps how many extends links a resolution may follow.
// KiCad's own libraries use one level; anything past a handful is a cycle
// or a broken library.
const extendsDepthBound = 5

// Pin is one pin of a library symbol, in library coordinates (Y-up, mm).
type Pin struct {
	Number     string
	Name       string
	Position   sexp.Position
	Angle      sexp.Angle
	Length     float64
	Electrical string // passive, power_in, input, ...
}

// Definition is a symbol definition resolved from a library file.
type Definition struct {
	LibID       string // fully qualified, e.g. "Device:R"
	Name        string // plain name inside the library, e.g. "R"
	LibraryPath string // .kicad_sym file the definition came from
	Node        kicadsexp.Sexp
	Block       string // raw text of the definition, for cache injection
	Extends     string // parent symbol name, empty when standalone
	FpFilters   []string
}

// GeometryUnresolvedError reports an extends chain that terminated without
// ever producing pin geometry.
type GeometryUnresolvedError struct {
	LibID string
	Chain []string
}

func (e *GeometryUnresolvedError) Error() string {
	return fmt.Sprintf("symbol %q has no pin geometry and no resolvable parent (chain: %v)", e.LibID, e.Chain)
}

// Resolver locates symbol definitions across project tables, registered
// sources, and system libraries.
type Resolver struct {
	registry   *Registry
	systemLibs []string
	loaded     bool
}

// NewResolver builds a resolver. The registry may be nil when no external
// sources are configured.
func NewResolver(registry *Registry) *Resolver {
	return &Resolver{registry: registry}
}

// WithSystemLibraries overrides system library discovery, for tests and for
// callers that already scanned the filesystem.
func (r *Resolver) WithSystemLibraries(paths []string) *Resolver {
	r.systemLibs = paths
	r.loaded = true
	return r
}

func (r *Resolver) symbolLibs() []string {
	if !r.loaded {
		r.systemLibs = FindSymbolLibraries()
		if r.registry != nil {
			r.systemLibs = append(r.systemLibs, r.registry.SymbolLibraries("")...)
		}
		r.loaded = true
	}
	return r.systemLibs
}

// LibraryFile finds the .kicad_sym file for a library name. The
// project-local sym-lib-table wins over system libraries so a project can
// shadow a stock library. schematicPath may be empty for system-only
// resolution.
func (r *Resolver) LibraryFile(libName, schematicPath string) (string, error) {
	if schematicPath != "" {
		for _, p := range ProjectSymbolLibraries(schematicPath) {
			if stem(p) == libName {
				return p, nil
			}
		}
	}

	for _, p := range r.symbolLibs() {
		if stem(p) == libName {
			return p, nil
		}
	}

	return "", &NotFoundError{Kind: "library", Name: libName}
}

// Resolve loads the definition for a fully qualified library id such as
// "Device:R". schematicPath scopes project-local table lookup.
func (r *Resolver) Resolve(libID, schematicPath string) (*Definition, error) {
	libName, symName, ok := SplitLibID(libID)
	if !ok {
		return nil, fmt.Errorf("invalid library id %q: expected \"Library:Symbol\"", libID)
	}

	libPath, err := r.LibraryFile(libName, schematicPath)
	if err != nil {
		return nil, err
	}

	return r.definitionFromFile(libPath, libID, symName)
}

func (r *Resolver) definitionFromFile(libPath, libID, symName string) (*Definition, error) {
	data, err := os.ReadFile(libPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read library %s: %w", libPath, err)
	}
	content := string(data)

	region, found := patch.SymbolDefinition(content, symName)
	if !found {
		return nil, &NotFoundError{Kind: "symbol", Name: libID}
	}
	block := region.Text(content)

	nodes, err := kicadsexp.ParseString(block)
	if err != nil {
		return nil, fmt.Errorf("failed to parse symbol %q in %s: %w", symName, libPath, err)
	}

	def := &Definition{
		LibID:       libID,
		Name:        symName,
		LibraryPath: libPath,
		Node:        nodes[0],
		Block:       block,
	}

	if n, ok := sexp.FindNode(def.Node, "extends"); ok {
		def.Extends, _ = sexp.GetText(n, 1)
	}

	for _, prop := range sexp.FindAllNodes(def.Node, "property") {
		key, err := sexp.GetText(prop, 1)
		if err != nil || key != "ki_fp_filters" {
			continue
		}
		if value, err := sexp.GetText(prop, 2); err == nil {
			def.FpFilters = strings.Fields(value)
		}
	}

	return def, nil
}

// ResolvePins returns the pin list for a definition. When the definition
// carries no pins of its own, the extends chain is followed by re-resolving
// each parent from the original library file; the lib_symbols cache can be
// extends-only and is never consulted here.
func (r *Resolver) ResolvePins(def *Definition) ([]Pin, error) {
	if pins := CollectPins(def.Node); len(pins) > 0 {
		return pins, nil
	}

	if def.Extends == "" {
		return nil, &GeometryUnresolvedError{LibID: def.LibID, Chain: []string{def.Name}}
	}

	libName, _, _ := SplitLibID(def.LibID)
	chain := []string{def.Name}
	visited := map[string]bool{def.Name: true}
	parentName := def.Extends

	for depth := 0; depth < extendsDepthBound; depth++ {
		if visited[parentName] {
			return nil, &InheritanceDepthError{
				LibID: def.LibID,
				Chain: append(chain, parentName),
				Msg:   "extends chain forms a cycle",
			}
		}
		visited[parentName] = true
		chain = append(chain, parentName)

		parent, err := r.definitionFromFile(def.LibraryPath, libName+":"+parentName, parentName)
		if err != nil {
			return nil, &GeometryUnresolvedError{LibID: def.LibID, Chain: chain}
		}

		if pins := CollectPins(parent.Node); len(pins) > 0 {
			return pins, nil
		}

		if parent.Extends == "" {
			return nil, &GeometryUnresolvedError{LibID: def.LibID, Chain: chain}
		}
		parentName = parent.Extends
	}

	return nil, &InheritanceDepthError{
		LibID: def.LibID,
		Chain: chain,
		Msg:   fmt.Sprintf("extends chain exceeds depth bound %d", extendsDepthBound),
	}
}

// CollectPins gathers pins from a symbol node and its unit sub-symbols.
func CollectPins(node kicadsexp.Sexp) []Pin {
	var pins []Pin

	for _, pin := range sexp.FindAllNodes(node, "pin") {
		pins = append(pins, parsePin(pin))
	}
	for _, sub := range sexp.FindAllNodes(node, "symbol") {
		for _, pin := range sexp.FindAllNodes(sub, "pin") {
			pins = append(pins, parsePin(pin))
		}
	}

	return pins
}

func parsePin(node kicadsexp.Sexp) Pin {
	pin := Pin{}

	pin.Electrical, _ = sexp.GetText(node, 1)

	if at, ok := sexp.FindNode(node, "at"); ok {
		if pa, err := sexp.GetPosition(at); err == nil {
			pin.Position = pa.Position
			pin.Angle = pa.Angle
		}
	}
	if n, ok := sexp.FindNode(node, "length"); ok {
		pin.Length, _ = sexp.GetFloat(n, 1)
	}
	if n, ok := sexp.FindNode(node, "name"); ok {
		pin.Name, _ = sexp.GetText(n, 1)
	}
	if n, ok := sexp.FindNode(node, "number"); ok {
		pin.Number, _ = sexp.GetText(n, 1)
	}

	return pin
}

// SplitLibID breaks "Device:R" into library and symbol name.
func SplitLibID(libID string) (libName, symName string, ok bool) {
	idx := strings.Index(libID, ":")
	if idx <= 0 || idx == len(libID)-1 {
		return "", "", false
	}
	return libID[:idx], libID[idx+1:], true
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
