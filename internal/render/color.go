package render

import (
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Color is an SVG paint value. It decodes from a CSS color name, an [r, g, b]
// triple or an [r, g, b, opacity] quadruple.
type Color string

// NoColor renders as "none".
const NoColor Color = "none"

func (c *Color) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*c = Color(name)
		return nil
	}

	var parts []float64
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("color must be a string or an array: %w", err)
	}
	return c.fromComponents(parts)
}

func (c *Color) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*c = Color(node.Value)
		return nil
	}

	var parts []float64
	if err := node.Decode(&parts); err != nil {
		return fmt.Errorf("color must be a string or a sequence: %w", err)
	}
	return c.fromComponents(parts)
}

func (c *Color) fromComponents(parts []float64) error {
	switch len(parts) {
	case 3:
		*c = RGB(uint8(parts[0]), uint8(parts[1]), uint8(parts[2]))
	case 4:
		*c = RGBA(uint8(parts[0]), uint8(parts[1]), uint8(parts[2]), parts[3])
	default:
		return fmt.Errorf("color array needs 3 or 4 components, got %d", len(parts))
	}
	return nil
}

func RGB(r, g, b uint8) Color {
	return Color(fmt.Sprintf("rgb(%d,%d,%d)", r, g, b))
}

func RGBA(r, g, b uint8, opacity float64) Color {
	return Color(fmt.Sprintf("rgba(%d,%d,%d,%s)", r, g, b, formatNumber(opacity)))
}

// formatNumber matches the default iostream rendering of a double: six
// significant digits, no trailing zeros.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
