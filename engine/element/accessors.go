package element

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-graph/engine/data"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
)

// RecordsInclude generates the WGSL accessors for a packed layout. Every field becomes a
// function record_<name>(i: u32) reading record i from the records array.
//
// Parameters:
//   - layout: the packed layout
//
// Returns:
//   - shader.Include: the "records" include
func RecordsInclude(layout data.Layout) shader.Include {
	var sb strings.Builder
	fmt.Fprintf(&sb, "const RECORD_STRIDE: u32 = %du;\n", max(layout.Stride/4, 1))
	sb.WriteString("const NO_INDEX: u32 = 0xffffffffu;\n\n")
	sb.WriteString("fn record_word(i: u32, word: u32) -> u32 {\n    return records[i * RECORD_STRIDE + word];\n}\n")
	for _, f := range layout.Fields {
		returns, body := accessor(f)
		fmt.Fprintf(&sb, "\nfn record_%s(i: u32) -> %s {\n    return %s;\n}\n", identifier(f.Name), returns, body)
	}
	return shader.Include{Name: shader.AnnotationArgRecords, Source: sb.String()}
}

// accessor returns the WGSL return type and expression reading field f of record i.
func accessor(f data.FieldDescriptor) (string, string) {
	word := f.Offset / 4
	switch f.Type {
	case data.FieldColor:
		return "vec4<f32>", fmt.Sprintf("unpack4x8unorm(record_word(i, %du))", word)
	case data.FieldUint8Norm:
		unpacked := fmt.Sprintf("unpack4x8unorm(record_word(i, %du))", word)
		switch f.Components {
		case 1:
			return "f32", unpacked + ".x"
		case 2:
			return "vec2<f32>", unpacked + ".xy"
		case 3:
			return "vec3<f32>", unpacked + ".xyz"
		default:
			return "vec4<f32>", unpacked
		}
	}

	var scalar, conv string
	switch f.Type {
	case data.FieldInt32:
		scalar, conv = "i32", "bitcast<i32>(%s)"
	case data.FieldUint32, data.FieldPointRef:
		scalar, conv = "u32", "%s"
	default:
		scalar, conv = "f32", "bitcast<f32>(%s)"
	}
	parts := make([]string, f.Components)
	for c := range parts {
		parts[c] = fmt.Sprintf(conv, fmt.Sprintf("record_word(i, %du)", word+uint32(c)))
	}
	if f.Components == 1 {
		return scalar, parts[0]
	}
	vec := fmt.Sprintf("vec%d<%s>", f.Components, scalar)
	return vec, fmt.Sprintf("%s(%s)", vec, strings.Join(parts, ", "))
}

// identifier replaces characters that are not valid in a WGSL identifier.
func identifier(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
