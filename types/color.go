package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Color is an RGB display color. On the wire it is a three-element array.
type Color struct {
	R, G, B uint8
}

// Common ROI display colors.
var (
	ColorRed     = Color{255, 0, 0}
	ColorGreen   = Color{0, 255, 0}
	ColorBlue    = Color{0, 0, 255}
	ColorYellow  = Color{255, 255, 0}
	ColorCyan    = Color{0, 255, 255}
	ColorMagenta = Color{255, 0, 255}
	ColorWhite   = Color{255, 255, 255}
)

var namedColors = map[string]Color{
	"red":     ColorRed,
	"green":   ColorGreen,
	"blue":    ColorBlue,
	"yellow":  ColorYellow,
	"cyan":    ColorCyan,
	"magenta": ColorMagenta,
	"white":   ColorWhite,
}

// ParseColor accepts a named color ("magenta"), a hex triplet ("#ff00ff")
// or a comma-separated triple ("255,0,255").
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if c, ok := namedColors[lower.String(s)]; ok {
		return c, nil
	}

	if hex, ok := strings.CutPrefix(s, "#"); ok {
		if len(hex) != 6 {
			return Color{}, fmt.Errorf("invalid hex color %q", s)
		}
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return Color{}, fmt.Errorf("invalid hex color %q: %w", s, err)
		}
		return Color{uint8(v >> 16), uint8(v >> 8), uint8(v)}, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return Color{}, fmt.Errorf("invalid color %q", s)
	}
	var rgb [3]uint8
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return Color{}, fmt.Errorf("invalid color component %q: %w", p, err)
		}
		rgb[i] = uint8(v)
	}
	return Color{rgb[0], rgb[1], rgb[2]}, nil
}

// String renders the color as a hex triplet.
func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// MarshalJSON encodes the color as [r, g, b].
func (c Color) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]uint8{c.R, c.G, c.B})
}

// UnmarshalJSON decodes a [r, g, b] array.
func (c *Color) UnmarshalJSON(data []byte) error {
	var rgb []int
	if err := json.Unmarshal(data, &rgb); err != nil {
		return fmt.Errorf("color: %w", err)
	}
	if len(rgb) != 3 {
		return fmt.Errorf("color: expected 3 components, got %d", len(rgb))
	}
	for _, v := range rgb {
		if v < 0 || v > 255 {
			return fmt.Errorf("color: component %d out of range", v)
		}
	}
	*c = Color{uint8(rgb[0]), uint8(rgb[1]), uint8(rgb[2])}
	return nil
}
