package schematic

import (
	"fmt"
	"io"
	"os"

	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/sexp"
	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/sexp/kicadsexp"
)

// Minimum supported KiCad version for schematics (6.0 = 20211014)
const MinSupportedVersion = 20211014

// ParseFile reads and parses a KiCad schematic file
func ParseFile(filename string) (*Schematic, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads and parses a KiCad schematic from an io.Reader
func Parse(r io.Reader) (*Schematic, error) {
	sexps, err := kicadsexp.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse s-expression: %w", err)
	}

	// The root should be a (kicad_sch ...) expression
	root := sexps[0]

	rootName, err := sexp.NodeName(root)
	if err != nil {
		return nil, fmt.Errorf("failed to get root node name: %w", err)
	}
	if rootName != "kicad_sch" {
		return nil, fmt.Errorf("not a KiCad schematic file: expected 'kicad_sch', got '%s'", rootName)
	}

	sch := &Schematic{LibSymbols: map[string]kicadsexp.Sexp{}}

	if err := parseHeader(root, sch); err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	if uuidNode, found := sexp.FindNode(root, "uuid"); found {
		sch.UUID, _ = sexp.GetUUID(uuidNode)
	}

	if paperNode, found := sexp.FindNode(root, "paper"); found {
		sch.Paper, _ = sexp.GetText(paperNode, 1)
	}

	if tbNode, found := sexp.FindNode(root, "title_block"); found {
		sch.TitleBlock = parseTitleBlock(tbNode)
	}

	// The lib_symbols cache keeps raw subtrees: cached definitions may be
	// extends-only with no geometry of their own, which is the resolver's
	// problem, not a parse failure.
	if libSymbolsNode, found := sexp.FindNode(root, "lib_symbols"); found {
		for _, def := range sexp.FindAllNodes(libSymbolsNode, "symbol") {
			if name, err := sexp.GetText(def, 1); err == nil {
				sch.LibSymbols[name] = def
			}
		}
	}

	for _, node := range sexp.FindAllNodes(root, "symbol") {
		sch.Symbols = append(sch.Symbols, parseSymbol(node))
	}

	for _, node := range sexp.FindAllNodes(root, "wire") {
		sch.Wires = append(sch.Wires, parseWire(node))
	}

	for _, node := range sexp.FindAllNodes(root, "junction") {
		j := Junction{}
		if at, ok := sexp.FindNode(node, "at"); ok {
			j.Position, _ = sexp.GetPositionXY(at)
		}
		if d, ok := sexp.FindNode(node, "diameter"); ok {
			j.Diameter, _ = sexp.GetFloat(d, 1)
		}
		if u, ok := sexp.FindNode(node, "uuid"); ok {
			j.UUID, _ = sexp.GetUUID(u)
		}
		sch.Junctions = append(sch.Junctions, j)
	}

	for _, node := range sexp.FindAllNodes(root, "no_connect") {
		nc := NoConnect{}
		if at, ok := sexp.FindNode(node, "at"); ok {
			nc.Position, _ = sexp.GetPositionXY(at)
		}
		if u, ok := sexp.FindNode(node, "uuid"); ok {
			nc.UUID, _ = sexp.GetUUID(u)
		}
		sch.NoConnects = append(sch.NoConnects, nc)
	}

	sch.Labels = parseLabels(root, LabelLocal)
	sch.GlobalLabels = parseLabels(root, LabelGlobal)
	sch.HierLabels = parseLabels(root, LabelHierarchical)

	if instancesNode, found := sexp.FindNode(root, "sheet_instances"); found {
		for _, pathNode := range sexp.FindAllNodes(instancesNode, "path") {
			si := SheetInstance{}
			si.Path, _ = sexp.GetText(pathNode, 1)
			if pageNode, ok := sexp.FindNode(pathNode, "page"); ok {
				si.Page, _ = sexp.GetText(pageNode, 1)
			}
			sch.SheetInstances = append(sch.SheetInstances, si)
		}
	}

	return sch, nil
}

// parseHeader extracts version and generator information
func parseHeader(root kicadsexp.Sexp, sch *Schematic) error {
	versionNode, found := sexp.FindNode(root, "version")
	if !found {
		return fmt.Errorf("missing required 'version' field")
	}

	ver, err := sexp.GetInt(versionNode, 1)
	if err != nil {
		return fmt.Errorf("failed to parse version: %w", err)
	}
	if ver < MinSupportedVersion {
		return fmt.Errorf("unsupported KiCad version: %d (minimum required: %d / KiCad 6.0)", ver, MinSupportedVersion)
	}
	sch.Version = ver

	if genNode, found := sexp.FindNode(root, "generator"); found {
		sch.Generator, _ = sexp.GetText(genNode, 1)
	}
	if genVerNode, found := sexp.FindNode(root, "generator_version"); found {
		sch.GeneratorVer, _ = sexp.GetText(genVerNode, 1)
	}

	return nil
}

func parseTitleBlock(node kicadsexp.Sexp) TitleBlock {
	tb := TitleBlock{}

	if n, found := sexp.FindNode(node, "title"); found {
		tb.Title, _ = sexp.GetText(n, 1)
	}
	if n, found := sexp.FindNode(node, "date"); found {
		tb.Date, _ = sexp.GetText(n, 1)
	}
	if n, found := sexp.FindNode(node, "rev"); found {
		tb.Revision, _ = sexp.GetText(n, 1)
	}
	if n, found := sexp.FindNode(node, "company"); found {
		tb.Company, _ = sexp.GetText(n, 1)
	}

	return tb
}

func parseSymbol(node kicadsexp.Sexp) Symbol {
	sym := Symbol{Unit: 1, InBom: true, OnBoard: true}

	if libIDNode, ok := sexp.FindNode(node, "lib_id"); ok {
		sym.LibID, _ = sexp.GetText(libIDNode, 1)
	}

	if atNode, ok := sexp.FindNode(node, "at"); ok {
		if pa, err := sexp.GetPosition(atNode); err == nil {
			sym.Position = pa.Position
			sym.Angle = pa.Angle
		}
	}

	if mirrorNode, ok := sexp.FindNode(node, "mirror"); ok {
		sym.Mirror, _ = sexp.GetText(mirrorNode, 1)
	}

	if unitNode, ok := sexp.FindNode(node, "unit"); ok {
		if unit, err := sexp.GetInt(unitNode, 1); err == nil {
			sym.Unit = unit
		}
	}

	sym.InBom = yesNoFlag(node, "in_bom", true)
	sym.OnBoard = yesNoFlag(node, "on_board", true)
	sym.DNP = yesNoFlag(node, "dnp", false)

	if uuidNode, ok := sexp.FindNode(node, "uuid"); ok {
		sym.UUID, _ = sexp.GetUUID(uuidNode)
	}

	for _, propNode := range sexp.FindAllNodes(node, "property") {
		if prop, err := sexp.GetProperty(propNode); err == nil {
			sym.Properties = append(sym.Properties, prop)
		}
	}

	if instNode, ok := sexp.FindNode(node, "instances"); ok {
		for _, projNode := range sexp.FindAllNodes(instNode, "project") {
			project, _ := sexp.GetText(projNode, 1)
			for _, pathNode := range sexp.FindAllNodes(projNode, "path") {
				ip := InstancePath{Project: project, Unit: 1}
				ip.Path, _ = sexp.GetText(pathNode, 1)
				if refNode, ok := sexp.FindNode(pathNode, "reference"); ok {
					ip.Reference, _ = sexp.GetText(refNode, 1)
				}
				if unitNode, ok := sexp.FindNode(pathNode, "unit"); ok {
					if unit, err := sexp.GetInt(unitNode, 1); err == nil {
						ip.Unit = unit
					}
				}
				sym.Instances = append(sym.Instances, ip)
			}
		}
	}

	return sym
}

func parseWire(node kicadsexp.Sexp) Wire {
	wire := Wire{}

	if ptsNode, ok := sexp.FindNode(node, "pts"); ok {
		for _, xy := range sexp.FindAllNodes(ptsNode, "xy") {
			if pos, err := sexp.GetPositionXY(xy); err == nil {
				wire.Points = append(wire.Points, pos)
			}
		}
	}
	if strokeNode, ok := sexp.FindNode(node, "stroke"); ok {
		wire.Stroke, _ = sexp.GetStroke(strokeNode)
	}
	if uuidNode, ok := sexp.FindNode(node, "uuid"); ok {
		wire.UUID, _ = sexp.GetUUID(uuidNode)
	}

	return wire
}

func parseLabels(root kicadsexp.Sexp, kind LabelKind) []Label {
	var labels []Label

	for _, node := range sexp.FindAllNodes(root, string(kind)) {
		label := Label{Kind: kind}
		label.Text, _ = sexp.GetText(node, 1)

		if shapeNode, ok := sexp.FindNode(node, "shape"); ok {
			label.Shape, _ = sexp.GetText(shapeNode, 1)
		}
		if atNode, ok := sexp.FindNode(node, "at"); ok {
			if pa, err := sexp.GetPosition(atNode); err == nil {
				label.Position = pa.Position
				label.Angle = pa.Angle
			}
		}
		if effectsNode, ok := sexp.FindNode(node, "effects"); ok {
			label.Effects, _ = sexp.GetEffects(effectsNode)
		}
		if uuidNode, ok := sexp.FindNode(node, "uuid"); ok {
			label.UUID, _ = sexp.GetUUID(uuidNode)
		}

		labels = append(labels, label)
	}

	return labels
}

// yesNoFlag reads a (key yes|no) node with a default for absence.
func yesNoFlag(node kicadsexp.Sexp, key string, def bool) bool {
	n, ok := sexp.FindNode(node, key)
	if !ok {
		return def
	}
	v, err := sexp.GetText(n, 1)
	if err != nil {
		return def
	}
	return v == "yes"
}
