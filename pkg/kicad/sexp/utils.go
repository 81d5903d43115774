package sexp

import (
	"fmt"
	"strconv"

	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/sexp/kicadsexp"
)

// S-expression navigation helpers

// FindNode searches for a child node with the given key (first symbol).
// Example: FindNode(node, "at") finds (at 100 50) in a list.
func FindNode(s kicadsexp.Sexp, key string) (kicadsexp.Sexp, bool) {
	if s == nil || s.IsLeaf() {
		return nil, false
	}

	for _, item := range ToSlice(s) {
		if item == nil {
			continue
		}

		if item.IsLeaf() {
			if sym, ok := item.(kicadsexp.Symbol); ok && string(sym) == key {
				return item, true
			}
			continue
		}

		if name, err := NodeName(item); err == nil && name == key {
			return item, true
		}
	}

	return nil, false
}

// FindAllNodes finds all direct child lists with the given key.
func FindAllNodes(s kicadsexp.Sexp, key string) []kicadsexp.Sexp {
	var results []kicadsexp.Sexp

	if s == nil || s.IsLeaf() {
		return results
	}

	for _, item := range ToSlice(s) {
		if item == nil || item.IsLeaf() {
			continue
		}
		if name, err := NodeName(item); err == nil && name == key {
			results = append(results, item)
		}
	}

	return results
}

// ToSlice converts an S-expression list to a Go slice.
func ToSlice(s kicadsexp.Sexp) []kicadsexp.Sexp {
	if s == nil || s.IsLeaf() {
		return nil
	}
	if l, ok := s.(*kicadsexp.List); ok {
		items := make([]kicadsexp.Sexp, 0, l.Len())
		for i := 0; i < l.Len(); i++ {
			items = append(items, l.Get(i))
		}
		return items
	}

	var items []kicadsexp.Sexp
	for cur := s; cur != nil && !cur.IsLeaf(); cur = cur.Tail() {
		if head := cur.Head(); head != nil {
			items = append(items, head)
		}
	}
	return items
}

// GetText extracts the text of the atom at the given index in a list.
// Index 0 is the key, 1 is the first value, etc. Quoted strings and bare
// symbols are both accepted.
func GetText(s kicadsexp.Sexp, index int) (string, error) {
	if s == nil || s.IsLeaf() {
		return "", fmt.Errorf("expected list, got leaf")
	}

	items := ToSlice(s)
	if index < 0 || index >= len(items) {
		return "", fmt.Errorf("index %d out of bounds (length %d)", index, len(items))
	}

	switch v := items[index].(type) {
	case kicadsexp.Symbol:
		return string(v), nil
	case kicadsexp.String:
		return string(v), nil
	default:
		return "", fmt.Errorf("expected atom at index %d, got %T", index, items[index])
	}
}

// GetFloat extracts a float64 value at the given index.
func GetFloat(s kicadsexp.Sexp, index int) (float64, error) {
	str, err := GetText(s, index)
	if err != nil {
		return 0, err
	}

	val, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse float %q: %w", str, err)
	}

	return val, nil
}

// GetInt extracts an int value at the given index.
func GetInt(s kicadsexp.Sexp, index int) (int, error) {
	str, err := GetText(s, index)
	if err != nil {
		return 0, err
	}

	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("failed to parse int %q: %w", str, err)
	}

	return val, nil
}

// HasSymbol checks if a list contains a specific bare symbol.
func HasSymbol(s kicadsexp.Sexp, symbol string) bool {
	if s == nil || s.IsLeaf() {
		return false
	}

	for _, item := range ToSlice(s) {
		if sym, ok := item.(kicadsexp.Symbol); ok && string(sym) == symbol {
			return true
		}
	}

	return false
}

// NodeName returns the first symbol of a list (the node type).
func NodeName(s kicadsexp.Sexp) (string, error) {
	if s == nil {
		return "", fmt.Errorf("nil node")
	}
	if s.IsLeaf() {
		if sym, ok := s.(kicadsexp.Symbol); ok {
			return string(sym), nil
		}
		return "", fmt.Errorf("expected symbol leaf")
	}

	if sym, ok := s.Head().(kicadsexp.Symbol); ok {
		return string(sym), nil
	}

	return "", fmt.Errorf("expected symbol at head of list")
}

// Domain-specific extraction helpers

// GetPosition extracts a PositionAngle from an (at X Y [angle]) node.
func GetPosition(s kicadsexp.Sexp) (PositionAngle, error) {
	key, err := GetText(s, 0)
	if err != nil {
		return PositionAngle{}, err
	}
	if key != "at" {
		return PositionAngle{}, fmt.Errorf("expected 'at', got %q", key)
	}

	x, err := GetFloat(s, 1)
	if err != nil {
		return PositionAngle{}, fmt.Errorf("failed to parse X coordinate: %w", err)
	}

	y, err := GetFloat(s, 2)
	if err != nil {
		return PositionAngle{}, fmt.Errorf("failed to parse Y coordinate: %w", err)
	}

	result := PositionAngle{Position: Position{X: x, Y: y}}

	// Optional rotation angle
	if angle, err := GetFloat(s, 3); err == nil {
		result.Angle = Angle(angle)
	}

	return result, nil
}

// GetPositionXY extracts X,Y from a (keyword X Y) node such as (start ...),
// (end ...), (xy ...), or (center ...).
func GetPositionXY(s kicadsexp.Sexp) (Position, error) {
	x, err := GetFloat(s, 1)
	if err != nil {
		return Position{}, fmt.Errorf("failed to parse X: %w", err)
	}

	y, err := GetFloat(s, 2)
	if err != nil {
		return Position{}, fmt.Errorf("failed to parse Y: %w", err)
	}

	return Position{X: x, Y: y}, nil
}

// GetUUID extracts a UUID from a (uuid "...") node.
func GetUUID(s kicadsexp.Sexp) (UUID, error) {
	key, err := GetText(s, 0)
	if err != nil || key != "uuid" {
		return "", fmt.Errorf("expected 'uuid' node")
	}

	val, err := GetText(s, 1)
	if err != nil {
		return "", err
	}

	return UUID(val), nil
}

// GetStroke extracts stroke properties from a (stroke ...) node.
func GetStroke(s kicadsexp.Sexp) (Stroke, error) {
	stroke := Stroke{Type: "default"}

	if s == nil || s.IsLeaf() {
		return stroke, fmt.Errorf("expected (stroke ...) list")
	}

	if widthNode, ok := FindNode(s, "width"); ok {
		if width, err := GetFloat(widthNode, 1); err == nil {
			stroke.Width = width
		}
	}

	if typeNode, ok := FindNode(s, "type"); ok {
		if strokeType, err := GetText(typeNode, 1); err == nil {
			stroke.Type = strokeType
		}
	}

	return stroke, nil
}

// GetEffects extracts text effects from an (effects ...) node.
func GetEffects(s kicadsexp.Sexp) (Effects, error) {
	effects := Effects{}

	if s == nil || s.IsLeaf() {
		return effects, fmt.Errorf("expected (effects ...) list")
	}

	if fontNode, ok := FindNode(s, "font"); ok {
		effects.Font, _ = GetFont(fontNode)
	}

	if justifyNode, ok := FindNode(s, "justify"); ok {
		effects.Justify, _ = GetJustify(justifyNode)
	}

	effects.Hide = HasSymbol(s, "hide")
	if hideNode, ok := FindNode(s, "hide"); ok && !hideNode.IsLeaf() {
		// KiCad 8+ writes (hide yes) instead of a bare hide flag
		if v, err := GetText(hideNode, 1); err == nil {
			effects.Hide = v == "yes"
		}
	}

	return effects, nil
}

// GetFont extracts font properties from a (font ...) node.
func GetFont(s kicadsexp.Sexp) (Font, error) {
	font := Font{}

	if s == nil || s.IsLeaf() {
		return font, fmt.Errorf("expected (font ...) list")
	}

	if sizeNode, ok := FindNode(s, "size"); ok {
		w, _ := GetFloat(sizeNode, 1)
		h, _ := GetFloat(sizeNode, 2)
		font.Size = Size{Width: w, Height: h}
	}

	if thicknessNode, ok := FindNode(s, "thickness"); ok {
		font.Thickness, _ = GetFloat(thicknessNode, 1)
	}

	font.Bold = HasSymbol(s, "bold")
	font.Italic = HasSymbol(s, "italic")

	if faceNode, ok := FindNode(s, "face"); ok {
		font.Face, _ = GetText(faceNode, 1)
	}

	return font, nil
}

// GetJustify extracts justification from a (justify ...) node.
func GetJustify(s kicadsexp.Sexp) (Justify, error) {
	justify := Justify{
		Horizontal: "center",
		Vertical:   "center",
	}

	if s == nil || s.IsLeaf() {
		return justify, nil
	}

	for _, item := range ToSlice(s) {
		sym, ok := item.(kicadsexp.Symbol)
		if !ok {
			continue
		}
		switch string(sym) {
		case "left":
			justify.Horizontal = "left"
		case "right":
			justify.Horizontal = "right"
		case "top":
			justify.Vertical = "top"
		case "bottom":
			justify.Vertical = "bottom"
		case "mirror":
			justify.Mirror = true
		}
	}

	return justify, nil
}

// GetProperty extracts a property from a (property "Key" "Value" ...) node.
func GetProperty(s kicadsexp.Sexp) (Property, error) {
	prop := Property{}

	if s == nil || s.IsLeaf() {
		return prop, fmt.Errorf("expected (property ...) list")
	}

	key, err := GetText(s, 1)
	if err != nil {
		return prop, fmt.Errorf("failed to parse property key: %w", err)
	}
	prop.Key = key

	// Value may legitimately be empty
	prop.Value, _ = GetText(s, 2)

	if atNode, ok := FindNode(s, "at"); ok {
		if pos, err := GetPosition(atNode); err == nil {
			prop.Position = pos
		}
	}

	if effectsNode, ok := FindNode(s, "effects"); ok {
		prop.Effects, _ = GetEffects(effectsNode)
	}

	return prop, nil
}
