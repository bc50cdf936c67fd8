// Package colors parses the color notations accepted in graph data (CSS names, hex strings,
// hsl() strings and numeric tuples) and keeps the indexed color registry that node and edge
// records may refer to.
package colors

import (
	"fmt"
	"image/color"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"
)

// IsToken reports whether s is a color string: a CSS color name, a #rgb, #rrggbb or
// #rrggbbaa hex string, or an hsl(h, s%, l%) expression.
//
// Parameters:
//   - s: the candidate string
//
// Returns:
//   - bool: true if s parses as a color
func IsToken(s string) bool {
	_, err := parseString(s)
	return err == nil
}

// Parse converts a literal color value into RGBA.
// Accepted values are color strings (see IsToken) and numeric tuples of 3 or 4 components.
// Tuples whose components are all within [0,1] are read as normalized, otherwise as [0,255].
//
// Parameters:
//   - v: the value to parse
//
// Returns:
//   - color.RGBA: the parsed color, alpha 255 when not given
//   - error: an error if v is not a recognizable color
func Parse(v any) (color.RGBA, error) {
	switch c := v.(type) {
	case string:
		return parseString(c)
	case color.RGBA:
		return c, nil
	case color.Color:
		return color.RGBAModel.Convert(c).(color.RGBA), nil
	}
	comps, ok := numericTuple(v)
	if !ok {
		return color.RGBA{}, fmt.Errorf("colors: unsupported color value %v (%T)", v, v)
	}
	return fromTuple(comps)
}

// Pack encodes c as a little-endian RGBA8 word, matching WGSL unpack4x8unorm.
//
// Parameters:
//   - c: the color to pack
//
// Returns:
//   - uint32: r in the low byte, a in the high byte
func Pack(c color.RGBA) uint32 {
	return uint32(c.R) | uint32(c.G)<<8 | uint32(c.B)<<16 | uint32(c.A)<<24
}

// Unpack reverses Pack.
func Unpack(v uint32) color.RGBA {
	return color.RGBA{R: uint8(v), G: uint8(v >> 8), B: uint8(v >> 16), A: uint8(v >> 24)}
}

// Palette returns n hue-spaced colors of equal lightness, used to style layers that carry no colors of their own.
//
// Parameters:
//   - n: the number of colors
//
// Returns:
//   - []color.RGBA: the palette, empty for n <= 0
func Palette(n int) []color.RGBA {
	if n <= 0 {
		return nil
	}
	out := make([]color.RGBA, n)
	for i := range out {
		h := 360 * float64(i) / float64(n)
		r, g, b := colorful.Hcl(h, 0.55, 0.7).Clamped().RGB255()
		out[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return out
}

func parseString(s string) (color.RGBA, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return color.RGBA{}, fmt.Errorf("colors: empty color string")
	}
	if strings.HasPrefix(s, "#") {
		return parseHex(s)
	}
	if strings.HasPrefix(strings.ToLower(s), "hsl(") {
		return parseHSL(s)
	}
	if c, ok := colornames.Map[strings.ToLower(s)]; ok {
		return c, nil
	}
	return color.RGBA{}, fmt.Errorf("colors: unknown color %q", s)
}

func parseHex(s string) (color.RGBA, error) {
	alpha := uint8(255)
	if len(s) == 9 {
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return color.RGBA{}, fmt.Errorf("colors: bad alpha in %q: %w", s, err)
		}
		alpha = uint8(a)
		s = s[:7]
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("colors: %w", err)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: alpha}, nil
}

func parseHSL(s string) (color.RGBA, error) {
	body := strings.TrimSuffix(strings.TrimPrefix(strings.ToLower(s), "hsl("), ")")
	parts := strings.Split(body, ",")
	if len(parts) != 3 {
		return color.RGBA{}, fmt.Errorf("colors: malformed %q", s)
	}
	var vals [3]float64
	for i, p := range parts {
		p = strings.TrimSuffix(strings.TrimSpace(p), "%")
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return color.RGBA{}, fmt.Errorf("colors: malformed %q: %w", s, err)
		}
		vals[i] = f
	}
	r, g, b := colorful.Hsl(vals[0], vals[1]/100, vals[2]/100).Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

func fromTuple(comps []float64) (color.RGBA, error) {
	if len(comps) != 3 && len(comps) != 4 {
		return color.RGBA{}, fmt.Errorf("colors: tuple must have 3 or 4 components, got %d", len(comps))
	}
	scale := 1.0
	normalized := true
	for _, c := range comps {
		if c > 1 {
			normalized = false
			break
		}
	}
	if normalized {
		scale = 255
	}
	var out [4]uint8
	out[3] = 255
	for i, c := range comps {
		out[i] = uint8(math.Round(math.Max(0, math.Min(255, c*scale))))
	}
	return color.RGBA{R: out[0], G: out[1], B: out[2], A: out[3]}, nil
}

// numericTuple flattens a slice or array of numbers into float64 components.
func numericTuple(v any) ([]float64, bool) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	out := make([]float64, rv.Len())
	for i := range out {
		f, ok := common.ToFloat64(rv.Index(i).Interface())
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}
