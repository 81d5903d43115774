package pcb

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/patch"
)

// Editor mutates a board file on disk. Like the schematic editor, every
// mutation rewrites only the text block of the touched element and lands
// atomically.
type Editor struct {
	path string
}

// NewEditor returns an editor for the board at path.
func NewEditor(path string) *Editor {
	return &Editor{path: path}
}

// Path returns the board file path.
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

// Create writes a minimal valid empty board: format version, generator
// identity, a two-layer stackup, and the reserved unconnected net. It
// refuses to overwrite an existing file.
func Create(path, title string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("refusing to overwrite existing board %s", path)
	}

	var titleBlock string
	if title != "" {
		titleBlock = fmt.Sprintf("  (title_block\n    (title %q)\n  )\n\n", title)
	}

	content := fmt.Sprintf(`(kicad_pcb
  (version 20231120)
  (generator "kicadedit")
  (generator_version "9.0")

  (general
    (thickness 1.6)
  )

  (paper "A4")

%s  (layers
    (0 "F.Cu" signal)
    (31 "B.Cu" signal)
    (34 "B.Paste" user)
    (35 "F.Paste" user)
    (36 "B.SilkS" user)
    (37 "F.SilkS" user)
    (38 "B.Mask" user)
    (39 "F.Mask" user)
    (44 "Edge.Cuts" user)
    (46 "B.CrtYd" user)
    (47 "F.CrtYd" user)
    (48 "B.Fab" user)
    (49 "F.Fab" user)
  )

  (net 0 "")
)
`, titleBlock)

	return patch.WriteFileAtomic(path, []byte(content), 0o644)
}

// PlaceFootprintOptions configures footprint placement.
type PlaceFootprintOptions struct {
	Reference string
	Footprint string // fully qualified, e.g. "Resistor_SMD:R_0603_1608Metric"
	Value     string
	X, Y      float64
	Layer     string // defaults to "F.Cu"
	Rotation  float64
}

// PlaceFootprint places a footprint skeleton on the board. The footprint
// body (pads, outlines) is left for the host program to fill in on the next
// library update; the reference, value, and position are enough for the
// board to open and for the sync engine to track the component.
func (e *Editor) PlaceFootprint(opts PlaceFootprintOptions) (UUID, error) {
	if opts.Layer == "" {
		opts.Layer = "F.Cu"
	}
	if err := ValidateLayer(opts.Layer); err != nil {
		return "", err
	}

	doc, err := e.load()
	if err != nil {
		return "", err
	}

	if _, exists := patch.FootprintByReference(doc.content, opts.Reference); exists {
		return "", &StructuralError{Msg: fmt.Sprintf("duplicate reference designator %q", opts.Reference)}
	}

	fpUUID := uuid.NewString()
	rot := ""
	if opts.Rotation != 0 {
		rot = " " + coord(opts.Rotation)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "  (footprint %q (layer %q)\n", opts.Footprint, opts.Layer)
	fmt.Fprintf(&b, "    (at %s %s%s)\n", coord(opts.X), coord(opts.Y), rot)
	fmt.Fprintf(&b, "    (property \"Reference\" %q (at 0 -1.5 0)\n"+
		"      (effects (font (size 1 1) (thickness 0.15)))\n"+
		"    )\n", opts.Reference)
	fmt.Fprintf(&b, "    (property \"Value\" %q (at 0 1.5 0)\n"+
		"      (effects (font (size 1 1) (thickness 0.15)))\n"+
		"    )\n", opts.Value)
	fmt.Fprintf(&b, "    (uuid %q)\n", fpUUID)
	b.WriteString("  )\n")

	content := patch.InsertBefore(doc.content, patch.FinalParenIndex(doc.content), b.String())
	if err := e.store(doc, content); err != nil {
		return "", err
	}
	return UUID(fpUUID), nil
}

var atClausePattern = regexp.MustCompile(`\(at\s+(-?[\d.]+)\s+(-?[\d.]+)(?:\s+(-?[\d.]+))?\)`)

// MoveFootprint repositions a footprint. Only the footprint-level placement
// clause changes; pad offsets are relative and follow automatically. Pass
// rotation < 0 to keep the current rotation.
func (e *Editor) MoveFootprint(reference string, x, y, rotation float64) error {
	doc, err := e.load()
	if err != nil {
		return err
	}

	region, found := patch.FootprintByReference(doc.content, reference)
	if !found {
		return &NotFoundError{Kind: "footprint", Name: reference}
	}
	block := region.Text(doc.content)

	// The first (at ...) clause is the footprint's own placement.
	atLoc := atClausePattern.FindStringSubmatchIndex(block)
	if atLoc == nil {
		return &StructuralError{Msg: fmt.Sprintf("footprint %q has no placement clause", reference)}
	}

	oldRot := 0.0
	if atLoc[6] >= 0 {
		oldRot, _ = strconv.ParseFloat(block[atLoc[6]:atLoc[7]], 64)
	}
	if rotation < 0 {
		rotation = oldRot
	}

	newAt := fmt.Sprintf("(at %s %s", coord(x), coord(y))
	if rotation != 0 {
		newAt += " " + coord(rotation)
	}
	newAt += ")"

	block = block[:atLoc[0]] + newAt + block[atLoc[1]:]
	return e.store(doc, patch.Replace(doc.content, region, block))
}

// SetValue rewrites a footprint's Value property, used by the sync engine
// to reconcile value mismatches against the schematic.
func (e *Editor) SetValue(reference, value string) error {
	doc, err := e.load()
	if err != nil {
		return err
	}

	region, found := patch.FootprintByReference(doc.content, reference)
	if !found {
		return &NotFoundError{Kind: "footprint", Name: reference}
	}
	block := region.Text(doc.content)

	valuePattern := regexp.MustCompile(`(\(property\s+"Value"\s+)"((?:[^"\\]|\\.)*)"`)
	m := valuePattern.FindStringSubmatchIndex(block)
	if m == nil {
		return &StructuralError{Msg: fmt.Sprintf("footprint %q has no Value property", reference)}
	}
	block = block[:m[4]] + escapeQuoted(value) + block[m[5]:]

	return e.store(doc, patch.Replace(doc.content, region, block))
}

// RemoveFootprint deletes a footprint from the board.
func (e *Editor) RemoveFootprint(reference string) error {
	doc, err := e.load()
	if err != nil {
		return err
	}
	region, found := patch.FootprintByReference(doc.content, reference)
	if !found {
		return &NotFoundError{Kind: "footprint", Name: reference}
	}
	return e.store(doc, patch.Remove(doc.content, region))
}

// AddTrack routes a copper segment. An empty net name leaves the segment on
// the reserved unconnected net.
func (e *Editor) AddTrack(x1, y1, x2, y2, width float64, layer, netName string) (UUID, error) {
	if layer == "" {
		layer = "F.Cu"
	}
	if err := ValidateLayer(layer); err != nil {
		return "", err
	}
	if width <= 0 {
		return "", fmt.Errorf("track width must be positive, got %v", width)
	}

	doc, err := e.load()
	if err != nil {
		return "", err
	}

	content, netID := resolveNetID(doc.content, netName)
	trackUUID := uuid.NewString()

	block := fmt.Sprintf("  (segment (start %s %s) (end %s %s) (width %s) (layer %q) (net %d) (uuid %q))\n",
		coord(x1), coord(y1), coord(x2), coord(y2), coord(width), layer, netID, trackUUID)

	content = patch.InsertBefore(content, patch.FinalParenIndex(content), block)
	if err := e.store(doc, content); err != nil {
		return "", err
	}
	return UUID(trackUUID), nil
}

// AddVia drops a through via connecting the outer copper layers.
func (e *Editor) AddVia(x, y, size, drill float64, netName string) (UUID, error) {
	if size <= 0 || drill <= 0 {
		return "", fmt.Errorf("via size and drill must be positive, got %v/%v", size, drill)
	}
	if drill >= size {
		return "", fmt.Errorf("via drill %v must be smaller than size %v", drill, size)
	}

	doc, err := e.load()
	if err != nil {
		return "", err
	}

	content, netID := resolveNetID(doc.content, netName)
	viaUUID := uuid.NewString()

	block := fmt.Sprintf("  (via (at %s %s) (size %s) (drill %s) (layers \"F.Cu\" \"B.Cu\") (net %d) (uuid %q))\n",
		coord(x), coord(y), coord(size), coord(drill), netID, viaUUID)

	content = patch.InsertBefore(content, patch.FinalParenIndex(content), block)
	if err := e.store(doc, content); err != nil {
		return "", err
	}
	return UUID(viaUUID), nil
}

// AssignPadNet connects a footprint pad to a named net, creating the net
// table entry when the name is new. The pad's existing net clause is
// replaced in place; a pad with no net clause gains one.
func (e *Editor) AssignPadNet(reference, pad, netName string) error {
	doc, err := e.load()
	if err != nil {
		return err
	}

	if _, found := patch.FootprintByReference(doc.content, reference); !found {
		return &NotFoundError{Kind: "footprint", Name: reference}
	}

	content, netID := resolveNetID(doc.content, netName)

	// Re-locate after the net table may have shifted the block.
	region, found := patch.FootprintByReference(content, reference)
	if !found {
		return &NotFoundError{Kind: "footprint", Name: reference}
	}
	block := region.Text(content)

	padStart := findPadOffset(block, pad)
	if padStart < 0 {
		return &NotFoundError{Kind: "pad", Name: reference + "." + pad}
	}
	padRegion, err := patch.WalkBalanced(block, padStart)
	if err != nil {
		return &StructuralError{Msg: fmt.Sprintf("unbalanced pad block for %s.%s", reference, pad)}
	}
	padBlock := padRegion.Text(block)

	netClause := fmt.Sprintf("(net %d %q)", netID, netName)
	netPattern := regexp.MustCompile(`\(net\s+\d+(?:\s+"[^"]*")?\)`)
	if m := netPattern.FindStringIndex(padBlock); m != nil {
		padBlock = padBlock[:m[0]] + netClause + padBlock[m[1]:]
	} else {
		padBlock = padBlock[:len(padBlock)-1] + " " + netClause + ")"
	}

	block = patch.Replace(block, padRegion, padBlock)
	return e.store(doc, patch.Replace(content, region, block))
}

// findPadOffset locates the (pad "N" ...) opening paren inside a footprint
// block. Both quoted and bare pad numbers are recognized.
func findPadOffset(block, pad string) int {
	quoted := regexp.MustCompile(`\(pad\s+` + regexp.QuoteMeta(strconv.Quote(pad)) + `\s`)
	if m := quoted.FindStringIndex(block); m != nil {
		return m[0]
	}
	bare := regexp.MustCompile(`\(pad\s+` + regexp.QuoteMeta(pad) + `\s`)
	if m := bare.FindStringIndex(block); m != nil {
		return m[0]
	}
	return -1
}

var netEntryPattern = regexp.MustCompile(`(?m)^[ \t]*\(net\s+(\d+)\s+"([^"]*)"\)[ \t]*$`)

// resolveNetID maps a net name to its table number, appending a fresh table
// entry when the name is unknown. Returns the (possibly updated) content and
// the net number; the empty name is the reserved unconnected net 0.
//
// Pad and track net clauses also sit on their own lines in current files, so
// the scan is bounded to the net table region before the first footprint or
// copper element.
func resolveNetID(content, netName string) (string, int) {
	if netName == "" {
		return content, 0
	}

	tableEnd := len(content)
	for _, marker := range []string{"(footprint ", "(segment ", "(via ", "(zone "} {
		if idx := strings.Index(content, marker); idx >= 0 && idx < tableEnd {
			tableEnd = idx
		}
	}

	maxID := 0
	lastEntryEnd := -1
	for _, m := range netEntryPattern.FindAllStringSubmatchIndex(content[:tableEnd], -1) {
		id, _ := strconv.Atoi(content[m[2]:m[3]])
		if id > maxID {
			maxID = id
		}
		if content[m[4]:m[5]] == netName {
			return content, id
		}
		lastEntryEnd = m[1]
	}

	newID := maxID + 1
	entry := fmt.Sprintf("  (net %d %q)\n", newID, netName)

	if lastEntryEnd >= 0 {
		content = content[:lastEntryEnd] + "\n" + entry[:len(entry)-1] + content[lastEntryEnd:]
	} else {
		content = patch.InsertBefore(content, patch.FinalParenIndex(content), entry)
	}
	return content, newID
}

// coord renders a coordinate with minimal digits ("100", "2.54").
func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func escapeQuoted(v string) string {
	q := strconv.Quote(v)
	return q[1 : len(q)-1]
}
