package pcb

import (
	"fmt"
	"io"
	"os"

	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/sexp"
	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/sexp/kicadsexp"
)

// Minimum supported KiCad version for boards (6.0 = 20211014)
const MinSupportedVersion = 20211014

// ParseFile reads and parses a KiCad board file
func ParseFile(filename string) (*Board, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads and parses a KiCad board from an io.Reader
func Parse(r io.Reader) (*Board, error) {
	sexps, err := kicadsexp.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse s-expression: %w", err)
	}

	// The root should be a (kicad_pcb ...) expression
	root := sexps[0]

	rootName, err := sexp.NodeName(root)
	if err != nil {
		return nil, fmt.Errorf("failed to get root node name: %w", err)
	}
	if rootName != "kicad_pcb" {
		return nil, fmt.Errorf("not a KiCad board file: expected 'kicad_pcb', got '%s'", rootName)
	}

	board := &Board{}

	if err := parseHeader(root, board); err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	if paperNode, found := sexp.FindNode(root, "paper"); found {
		board.Paper, _ = sexp.GetText(paperNode, 1)
	}

	if generalNode, found := sexp.FindNode(root, "general"); found {
		board.General = parseGeneral(generalNode)
	}
	if tbNode, found := sexp.FindNode(root, "title_block"); found {
		parseTitleBlock(tbNode, &board.General)
	}

	if layersNode, found := sexp.FindNode(root, "layers"); found {
		board.Layers = parseLayers(layersNode)
	}

	// The net table: top-level (net N "name") entries only; pad-level net
	// clauses live inside footprint blocks and never reach this walk.
	for _, node := range sexp.FindAllNodes(root, "net") {
		net := Net{}
		number, err := sexp.GetInt(node, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to parse net number: %w", err)
		}
		net.Number = number
		net.Name, _ = sexp.GetText(node, 2)
		board.Nets = append(board.Nets, net)
	}

	for _, node := range sexp.FindAllNodes(root, "footprint") {
		board.Footprints = append(board.Footprints, parseFootprint(node))
	}

	for _, node := range sexp.FindAllNodes(root, "segment") {
		board.Tracks = append(board.Tracks, parseSegment(node))
	}

	for _, node := range sexp.FindAllNodes(root, "via") {
		board.Vias = append(board.Vias, parseVia(node))
	}

	for _, node := range sexp.FindAllNodes(root, "zone") {
		board.Zones = append(board.Zones, parseZone(node))
	}

	return board, nil
}

func parseHeader(root kicadsexp.Sexp, board *Board) error {
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
	board.Version = ver

	if genNode, found := sexp.FindNode(root, "generator"); found {
		board.Generator, _ = sexp.GetText(genNode, 1)
	}

	return nil
}

func parseGeneral(node kicadsexp.Sexp) General {
	general := General{}
	if n, found := sexp.FindNode(node, "thickness"); found {
		general.Thickness, _ = sexp.GetFloat(n, 1)
	}
	return general
}

func parseTitleBlock(node kicadsexp.Sexp, general *General) {
	if n, found := sexp.FindNode(node, "title"); found {
		general.Title, _ = sexp.GetText(n, 1)
	}
	if n, found := sexp.FindNode(node, "date"); found {
		general.Date, _ = sexp.GetText(n, 1)
	}
	if n, found := sexp.FindNode(node, "rev"); found {
		general.Revision, _ = sexp.GetText(n, 1)
	}
	if n, found := sexp.FindNode(node, "company"); found {
		general.Company, _ = sexp.GetText(n, 1)
	}
}

// parseLayers reads (layers (0 "F.Cu" signal) ...). The layer type defaults
// to "user" when absent.
func parseLayers(node kicadsexp.Sexp) []Layer {
	var layers []Layer

	for _, layerNode := range sexp.ToSlice(node)[1:] {
		if layerNode.IsLeaf() {
			continue
		}
		layer := Layer{Type: "user"}

		number, err := sexp.GetInt(layerNode, 0)
		if err != nil {
			continue
		}
		layer.Number = number
		layer.Name, _ = sexp.GetText(layerNode, 1)
		if t, err := sexp.GetText(layerNode, 2); err == nil {
			layer.Type = t
		}

		layers = append(layers, layer)
	}

	return layers
}

func parseFootprint(node kicadsexp.Sexp) Footprint {
	fp := Footprint{}
	fp.LibID, _ = sexp.GetText(node, 1)

	if layerNode, ok := sexp.FindNode(node, "layer"); ok {
		fp.Layer, _ = sexp.GetText(layerNode, 1)
	}
	if atNode, ok := sexp.FindNode(node, "at"); ok {
		fp.Position, _ = sexp.GetPosition(atNode)
	}
	if uuidNode, ok := sexp.FindNode(node, "uuid"); ok {
		fp.UUID, _ = sexp.GetUUID(uuidNode)
	}

	for _, propNode := range sexp.FindAllNodes(node, "property") {
		key, err := sexp.GetText(propNode, 1)
		if err != nil {
			continue
		}
		value, _ := sexp.GetText(propNode, 2)
		switch key {
		case "Reference":
			fp.Reference = value
		case "Value":
			fp.Value = value
		}
	}

	// Legacy files carry the reference as (fp_text reference "R1" ...)
	for _, textNode := range sexp.FindAllNodes(node, "fp_text") {
		kind, err := sexp.GetText(textNode, 1)
		if err != nil {
			continue
		}
		value, _ := sexp.GetText(textNode, 2)
		switch kind {
		case "reference":
			if fp.Reference == "" {
				fp.Reference = value
			}
		case "value":
			if fp.Value == "" {
				fp.Value = value
			}
		}
	}

	for _, padNode := range sexp.FindAllNodes(node, "pad") {
		fp.Pads = append(fp.Pads, parsePad(padNode))
	}

	return fp
}

func parsePad(node kicadsexp.Sexp) Pad {
	pad := Pad{}
	pad.Number, _ = sexp.GetText(node, 1)
	pad.Type, _ = sexp.GetText(node, 2)
	pad.Shape, _ = sexp.GetText(node, 3)

	if atNode, ok := sexp.FindNode(node, "at"); ok {
		pad.Position, _ = sexp.GetPosition(atNode)
	}
	if sizeNode, ok := sexp.FindNode(node, "size"); ok {
		pad.Size.Width, _ = sexp.GetFloat(sizeNode, 1)
		pad.Size.Height, _ = sexp.GetFloat(sizeNode, 2)
	}
	if drillNode, ok := sexp.FindNode(node, "drill"); ok {
		pad.Drill, _ = sexp.GetFloat(drillNode, 1)
	}
	if layersNode, ok := sexp.FindNode(node, "layers"); ok {
		for i := 1; ; i++ {
			layer, err := sexp.GetText(layersNode, i)
			if err != nil {
				break
			}
			pad.Layers = append(pad.Layers, layer)
		}
	}
	if netNode, ok := sexp.FindNode(node, "net"); ok {
		pad.Net, _ = sexp.GetInt(netNode, 1)
		pad.NetName, _ = sexp.GetText(netNode, 2)
	}

	return pad
}

func parseSegment(node kicadsexp.Sexp) Track {
	track := Track{}

	if startNode, ok := sexp.FindNode(node, "start"); ok {
		track.Start, _ = sexp.GetPositionXY(startNode)
	}
	if endNode, ok := sexp.FindNode(node, "end"); ok {
		track.End, _ = sexp.GetPositionXY(endNode)
	}
	if widthNode, ok := sexp.FindNode(node, "width"); ok {
		track.Width, _ = sexp.GetFloat(widthNode, 1)
	}
	if layerNode, ok := sexp.FindNode(node, "layer"); ok {
		track.Layer, _ = sexp.GetText(layerNode, 1)
	}
	if netNode, ok := sexp.FindNode(node, "net"); ok {
		track.Net, _ = sexp.GetInt(netNode, 1)
	}
	if uuidNode, ok := sexp.FindNode(node, "uuid"); ok {
		track.UUID, _ = sexp.GetUUID(uuidNode)
	}

	return track
}

func parseVia(node kicadsexp.Sexp) Via {
	via := Via{}

	if atNode, ok := sexp.FindNode(node, "at"); ok {
		via.Position, _ = sexp.GetPositionXY(atNode)
	}
	if sizeNode, ok := sexp.FindNode(node, "size"); ok {
		via.Size, _ = sexp.GetFloat(sizeNode, 1)
	}
	if drillNode, ok := sexp.FindNode(node, "drill"); ok {
		via.Drill, _ = sexp.GetFloat(drillNode, 1)
	}
	if layersNode, ok := sexp.FindNode(node, "layers"); ok {
		for i := 1; ; i++ {
			layer, err := sexp.GetText(layersNode, i)
			if err != nil {
				break
			}
			via.Layers = append(via.Layers, layer)
		}
	}
	if netNode, ok := sexp.FindNode(node, "net"); ok {
		via.Net, _ = sexp.GetInt(netNode, 1)
	}
	if uuidNode, ok := sexp.FindNode(node, "uuid"); ok {
		via.UUID, _ = sexp.GetUUID(uuidNode)
	}

	return via
}

func parseZone(node kicadsexp.Sexp) Zone {
	zone := Zone{}

	if netNode, ok := sexp.FindNode(node, "net"); ok {
		zone.Net, _ = sexp.GetInt(netNode, 1)
	}
	if netNameNode, ok := sexp.FindNode(node, "net_name"); ok {
		zone.NetName, _ = sexp.GetText(netNameNode, 1)
	}
	if layerNode, ok := sexp.FindNode(node, "layer"); ok {
		zone.Layer, _ = sexp.GetText(layerNode, 1)
	}
	if uuidNode, ok := sexp.FindNode(node, "uuid"); ok {
		zone.UUID, _ = sexp.GetUUID(uuidNode)
	}
	if polygonNode, ok := sexp.FindNode(node, "polygon"); ok {
		if ptsNode, ok := sexp.FindNode(polygonNode, "pts"); ok {
			for _, xy := range sexp.FindAllNodes(ptsNode, "xy") {
				if pos, err := sexp.GetPositionXY(xy); err == nil {
					zone.Outline = append(zone.Outline, pos)
				}
			}
		}
	}

	return zone
}
