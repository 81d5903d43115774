package schematic

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/library"
	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/patch"
)

// Editor mutates a schematic file on disk. Every mutation rewrites only the
// minimal text block for the touched element and lands atomically: the file
// either carries the full mutation or is untouched.
type Editor struct {
	path     string
	resolver *library.Resolver
}

// NewEditor returns an editor for the schematic at path. The resolver feeds
// the lib_symbols cache when symbols are placed; it may be nil for
// operations that never touch the cache.
func NewEditor(path string, resolver *library.Resolver) *Editor {
	return &Editor{path: path, resolver: resolver}
}

// Path returns the schematic file path.
func (e *Editor) Path() string { return e.path }

type document struct {
	content string
	modTime time.Time
}

func (e *Editor) load() (*document, error) {
	info, err := os.Stat(e.path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(e.path)
	if err != nil {
		return nil, err
	}
	return &document{content: string(data), modTime: info.ModTime()}, nil
}

// store writes the mutated content, refusing when the file changed on disk
// since load.
func (e *Editor) store(doc *document, content string) error {
	info, err := os.Stat(e.path)
	if err != nil {
		return err
	}
	if !info.ModTime().Equal(doc.modTime) {
		return &ConflictError{Path: e.path}
	}
	return patch.WriteFileAtomic(e.path, []byte(content), 0o644)
}

// Create writes a minimal valid empty schematic: format version, generator
// identity, fresh document UUID, page size, empty lib_symbols, and the root
// sheet instance. It refuses to overwrite an existing file.
func Create(path, title, revision string) (UUID, error) {
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("refusing to overwrite existing schematic %s", path)
	}

	docUUID := uuid.NewString()

	var titleBlock string
	if title != "" || revision != "" {
		var lines []string
		if title != "" {
			lines = append(lines, fmt.Sprintf("    (title %q)", title))
		}
		if revision != "" {
			lines = append(lines, fmt.Sprintf("    (rev %q)", revision))
		}
		titleBlock = "  (title_block\n" + strings.Join(lines, "\n") + "\n  )\n\n"
	}

	content := fmt.Sprintf(`(kicad_sch
  (version 20231120)
  (generator "kicadedit")
  (generator_version "9.0")
  (uuid %q)

  (paper "A4")

%s  (lib_symbols
  )

  (sheet_instances
    (path "/" (page "1"))
  )
)
`, docUUID, titleBlock)

	if err := patch.WriteFileAtomic(path, []byte(content), 0o644); err != nil {
		return "", err
	}
	return UUID(docUUID), nil
}

// AddSymbolOptions configures symbol placement.
type AddSymbolOptions struct {
	LibID      string
	Reference  string
	Value      string
	X, Y       float64
	Rotation   float64
	Mirror     string // "x", "y", or ""
	Footprint  string
	Properties map[string]string // extra properties, hidden on the sheet
}

// AddSymbol places a symbol instance. The symbol's library definition is
// cached into lib_symbols (best effort; a missing library leaves the
// instance unrenderable but structurally valid), and the instances block is
// keyed to the document UUID so the host program accepts the file.
func (e *Editor) AddSymbol(opts AddSymbolOptions) (UUID, error) {
	if err := ValidateReference(opts.Reference); err != nil {
		return "", err
	}
	if opts.Mirror != "" && opts.Mirror != "x" && opts.Mirror != "y" {
		return "", fmt.Errorf("invalid mirror %q: expected \"x\" or \"y\"", opts.Mirror)
	}

	doc, err := e.load()
	if err != nil {
		return "", err
	}

	if _, exists := patch.SymbolByReference(doc.content, opts.Reference); exists {
		return "", &StructuralError{Msg: fmt.Sprintf("duplicate reference designator %q", opts.Reference)}
	}

	content := e.populateCache(doc.content, opts.LibID)
	symbolUUID := uuid.NewString()

	var b strings.Builder
	fmt.Fprintf(&b, "  (symbol (lib_id %q) (at %s %s %s)", opts.LibID,
		coord(opts.X), coord(opts.Y), coord(opts.Rotation))
	if opts.Mirror != "" {
		fmt.Fprintf(&b, "\n    (mirror %s)", opts.Mirror)
	}
	b.WriteString(" (unit 1)\n")
	b.WriteString("    (in_bom yes) (on_board yes) (dnp no)\n")
	fmt.Fprintf(&b, "    (uuid %q)\n", symbolUUID)

	writeProperty(&b, "Reference", opts.Reference, opts.X, opts.Y-2, false)
	writeProperty(&b, "Value", opts.Value, opts.X, opts.Y+2, false)
	if opts.Footprint != "" {
		writeProperty(&b, "Footprint", opts.Footprint, opts.X, opts.Y+4, true)
	}

	offset := 6.0
	for _, key := range sortedKeys(opts.Properties) {
		writeProperty(&b, key, opts.Properties[key], opts.X, opts.Y+offset, true)
		offset += 2
	}

	writeInstances(&b, documentUUID(content), opts.Reference)
	b.WriteString("  )\n")

	content = patch.InsertBefore(content, patch.InsertionPoint(content), b.String())
	if err := e.store(doc, content); err != nil {
		return "", err
	}
	return UUID(symbolUUID), nil
}

// AddPowerSymbol places a power symbol from the power library. The
// reference is auto-assigned by incrementing past the highest existing
// #PWRnnn designator; its Value property carries the net name.
func (e *Editor) AddPowerSymbol(name string, x, y, rotation float64) (string, UUID, error) {
	doc, err := e.load()
	if err != nil {
		return "", "", err
	}

	ref := nextPowerReference(doc.content)
	libID := "power:" + name
	content := e.populateCache(doc.content, libID)
	symbolUUID := uuid.NewString()

	var b strings.Builder
	fmt.Fprintf(&b, "  (symbol (lib_id %q) (at %s %s %s) (unit 1)\n",
		libID, coord(x), coord(y), coord(rotation))
	b.WriteString("    (in_bom yes) (on_board yes) (dnp no)\n")
	fmt.Fprintf(&b, "    (uuid %q)\n", symbolUUID)
	writeProperty(&b, "Reference", ref, x, y-2, true)
	writeProperty(&b, "Value", name, x, y+2, false)
	writeInstances(&b, documentUUID(content), ref)
	b.WriteString("  )\n")

	content = patch.InsertBefore(content, patch.InsertionPoint(content), b.String())
	if err := e.store(doc, content); err != nil {
		return "", "", err
	}
	return ref, UUID(symbolUUID), nil
}

var powerRefPattern = regexp.MustCompile(`"#PWR(\d+)"`)

func nextPowerReference(content string) string {
	next := 1
	for _, m := range powerRefPattern.FindAllStringSubmatch(content, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= next {
			next = n + 1
		}
	}
	return fmt.Sprintf("#PWR%03d", next)
}

// AddWire draws a wire segment between two points.
func (e *Editor) AddWire(x1, y1, x2, y2 float64) (UUID, error) {
	wireUUID := uuid.NewString()
	block := fmt.Sprintf("  (wire (pts (xy %s %s) (xy %s %s))\n"+
		"    (stroke (width 0) (type default))\n"+
		"    (uuid %q)\n"+
		"  )\n",
		coord(x1), coord(y1), coord(x2), coord(y2), wireUUID)

	if err := e.insert(block); err != nil {
		return "", err
	}
	return UUID(wireUUID), nil
}

// AddLabel attaches a net label at a position. Local labels name the net on
// the touching wire; global labels name it across the whole design.
func (e *Editor) AddLabel(text string, x, y float64, kind LabelKind) (UUID, error) {
	if err := ValidateNetName(text); err != nil {
		return "", err
	}
	switch kind {
	case LabelLocal, LabelGlobal, LabelHierarchical:
	case "":
		kind = LabelLocal
	default:
		return "", fmt.Errorf("invalid label kind %q", kind)
	}

	labelUUID := uuid.NewString()
	var shape string
	if kind != LabelLocal {
		shape = "\n    (shape passive)"
	}
	block := fmt.Sprintf("  (%s %q (at %s %s 0)%s\n"+
		"    (effects (font (size 1.27 1.27)))\n"+
		"    (uuid %q)\n"+
		"  )\n",
		kind, text, coord(x), coord(y), shape, labelUUID)

	if err := e.insert(block); err != nil {
		return "", err
	}
	return UUID(labelUUID), nil
}

// AddJunction marks an intentional wire crossing connection.
func (e *Editor) AddJunction(x, y float64) (UUID, error) {
	junctionUUID := uuid.NewString()
	block := fmt.Sprintf("  (junction (at %s %s) (diameter 0) (color 0 0 0 0)\n"+
		"    (uuid %q)\n"+
		"  )\n",
		coord(x), coord(y), junctionUUID)

	if err := e.insert(block); err != nil {
		return "", err
	}
	return UUID(junctionUUID), nil
}

// AddNoConnect marks a deliberately unconnected pin.
func (e *Editor) AddNoConnect(x, y float64) (UUID, error) {
	ncUUID := uuid.NewString()
	block := fmt.Sprintf("  (no_connect (at %s %s) (uuid %q))\n", coord(x), coord(y), ncUUID)

	if err := e.insert(block); err != nil {
		return "", err
	}
	return UUID(ncUUID), nil
}

// insert places a new element block at the document insertion point.
func (e *Editor) insert(block string) error {
	doc, err := e.load()
	if err != nil {
		return err
	}
	content := patch.InsertBefore(doc.content, patch.InsertionPoint(doc.content), block)
	return e.store(doc, content)
}

var atClausePattern = regexp.MustCompile(`\(at\s+(-?[\d.]+)\s+(-?[\d.]+)(?:\s+(-?[\d.]+))?\)`)
var propertyAtPattern = regexp.MustCompile(`(\(property\s+"[^"]*"\s+"[^"]*"\s+)\(at\s+(-?[\d.]+)\s+(-?[\d.]+)(?:\s+(-?[\d.]+))?\)`)

// MoveSymbol repositions a symbol instance. The property label anchors are
// shifted by the same delta so Reference and Value stay beside the body.
// Pass rotation < 0 to keep the current rotation.
func (e *Editor) MoveSymbol(reference string, x, y, rotation float64) error {
	doc, err := e.load()
	if err != nil {
		return err
	}

	region, found := patch.SymbolByReference(doc.content, reference)
	if !found {
		return &NotFoundError{Kind: "symbol", Name: reference}
	}
	block := region.Text(doc.content)

	// The first (at ...) clause is the symbol's own placement.
	atLoc := atClausePattern.FindStringSubmatchIndex(block)
	if atLoc == nil {
		return &StructuralError{Msg: fmt.Sprintf("symbol %q has no placement clause", reference)}
	}

	oldX, _ := strconv.ParseFloat(block[atLoc[2]:atLoc[3]], 64)
	oldY, _ := strconv.ParseFloat(block[atLoc[4]:atLoc[5]], 64)
	oldRot := 0.0
	if atLoc[6] >= 0 {
		oldRot, _ = strconv.ParseFloat(block[atLoc[6]:atLoc[7]], 64)
	}
	if rotation < 0 {
		rotation = oldRot
	}
	dx, dy := x-oldX, y-oldY

	newAt := fmt.Sprintf("(at %s %s %s)", coord(x), coord(y), coord(rotation))
	block = block[:atLoc[0]] + newAt + block[atLoc[1]:]

	// Shift property anchors, back to front so indices stay valid.
	matches := propertyAtPattern.FindAllStringSubmatchIndex(block, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		px, _ := strconv.ParseFloat(block[m[4]:m[5]], 64)
		py, _ := strconv.ParseFloat(block[m[6]:m[7]], 64)
		pRot := "0"
		if m[8] >= 0 {
			pRot = block[m[8]:m[9]]
		}
		replacement := block[m[2]:m[3]] + fmt.Sprintf("(at %s %s %s)", coord(px+dx), coord(py+dy), pRot)
		block = block[:m[0]] + replacement + block[m[1]:]
	}

	content := patch.Replace(doc.content, region, block)
	return e.store(doc, content)
}

// UpdateProperty sets a property on a symbol instance, replacing an
// existing value or appending a new hidden property. Setting a property to
// its current value rewrites nothing the host program would notice.
func (e *Editor) UpdateProperty(reference, name, value string) error {
	doc, err := e.load()
	if err != nil {
		return err
	}

	region, found := patch.SymbolByReference(doc.content, reference)
	if !found {
		return &NotFoundError{Kind: "symbol", Name: reference}
	}
	block := region.Text(doc.content)

	propPattern := regexp.MustCompile(`(\(property\s+` + regexp.QuoteMeta(strconv.Quote(name)) + `\s+)"((?:[^"\\]|\\.)*)"`)
	if m := propPattern.FindStringSubmatchIndex(block); m != nil {
		block = block[:m[4]] + escapeQuoted(value) + block[m[5]:]
	} else {
		// Anchor the new property label near the symbol body.
		px, py := 0.0, 0.0
		if at := atClausePattern.FindStringSubmatch(block); at != nil {
			px, _ = strconv.ParseFloat(at[1], 64)
			py, _ = strconv.ParseFloat(at[2], 64)
			py += 6
		}
		var b strings.Builder
		writeProperty(&b, name, value, px, py, true)
		block = strings.TrimRight(block[:len(block)-1], " \t\n") + "\n" + b.String() + "  )"
	}

	content := patch.Replace(doc.content, region, block)
	return e.store(doc, content)
}

// RemoveSymbol deletes a symbol instance. The lib_symbols cache entry stays:
// other instances may still use it, and a stale cache entry is harmless.
func (e *Editor) RemoveSymbol(reference string) error {
	return e.remove(func(content string) (patch.Region, bool) {
		return patch.SymbolByReference(content, reference)
	}, &NotFoundError{Kind: "symbol", Name: reference})
}

// RemoveWire deletes the wire matching the given endpoints in either order.
func (e *Editor) RemoveWire(x1, y1, x2, y2 float64) error {
	name := fmt.Sprintf("(%s, %s)-(%s, %s)", coord(x1), coord(y1), coord(x2), coord(y2))
	return e.remove(func(content string) (patch.Region, bool) {
		return patch.WireByEndpoints(content, x1, y1, x2, y2)
	}, &NotFoundError{Kind: "wire", Name: name})
}

// RemoveNoConnect deletes the no-connect marker at a position.
func (e *Editor) RemoveNoConnect(x, y float64) error {
	name := fmt.Sprintf("(%s, %s)", coord(x), coord(y))
	return e.remove(func(content string) (patch.Region, bool) {
		return patch.NoConnectAt(content, x, y)
	}, &NotFoundError{Kind: "no_connect", Name: name})
}

// RemoveJunction deletes the junction at a position.
func (e *Editor) RemoveJunction(x, y float64) error {
	name := fmt.Sprintf("(%s, %s)", coord(x), coord(y))
	return e.remove(func(content string) (patch.Region, bool) {
		return patch.JunctionAt(content, x, y)
	}, &NotFoundError{Kind: "junction", Name: name})
}

func (e *Editor) remove(locate func(string) (patch.Region, bool), notFound error) error {
	doc, err := e.load()
	if err != nil {
		return err
	}
	region, found := locate(doc.content)
	if !found {
		return notFound
	}
	return e.store(doc, patch.Remove(doc.content, region))
}

// populateCache injects the library definition for libID into lib_symbols.
// Failure to resolve the library leaves the document valid but the instance
// unrenderable, so it does not abort the placement.
func (e *Editor) populateCache(content, libID string) string {
	if e.resolver == nil {
		return content
	}
	updated, err := e.resolver.PopulateCache(content, libID, e.path)
	if err != nil {
		return content
	}
	return updated
}

var docUUIDPattern = regexp.MustCompile(`\(uuid\s+"([0-9a-fA-F-]+)"`)

// documentUUID extracts the document-level UUID, the key for symbol
// instances blocks.
func documentUUID(content string) string {
	if m := docUUIDPattern.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	return ""
}

func writeProperty(b *strings.Builder, key, value string, x, y float64, hide bool) {
	hideFlag := ""
	if hide {
		hideFlag = " hide"
	}
	fmt.Fprintf(b, "    (property %q %q (at %s %s 0)\n"+
		"      (effects (font (size 1.27 1.27))%s)\n"+
		"    )\n",
		key, value, coord(x), coord(y), hideFlag)
}

func writeInstances(b *strings.Builder, docUUID, reference string) {
	fmt.Fprintf(b, "    (instances\n"+
		"      (project \"\"\n"+
		"        (path %q\n"+
		"          (reference %q) (unit 1)\n"+
		"        )\n"+
		"      )\n"+
		"    )\n",
		"/"+docUUID, reference)
}

// coord renders a coordinate with minimal digits ("100", "2.54").
func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func escapeQuoted(v string) string {
	q := strconv.Quote(v)
	return q[1 : len(q)-1]
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
