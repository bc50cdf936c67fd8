package shader

import (
	"encoding/binary"
	"math"
	"reflect"
	"strings"
)

// Uniforms maps WGSL struct member names to values. Scalars may be any Go numeric or bool;
// vectors and matrices may be slices or arrays of numbers.
type Uniforms map[string]any

// StructField is one member of a host-shareable WGSL struct.
type StructField struct {
	Name   string
	Type   string
	Offset uint64
	Size   uint64
}

// StructLayout is the byte layout of a WGSL struct as seen from the host.
type StructLayout struct {
	Name   string
	Size   uint64
	Align  uint64
	Fields []StructField
}

// Field returns the member with the given name.
func (l StructLayout) Field(name string) (StructField, bool) {
	for _, f := range l.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return StructField{}, false
}

// Pack encodes values into a buffer of l.Size bytes. Names that are not members of the struct
// are ignored and members without a value stay zero. Values that cannot be converted to the
// member's type also leave the member zero.
//
// Parameters:
//   - values: the uniform values keyed by member name
//
// Returns:
//   - []byte: the encoded struct
func (l StructLayout) Pack(values Uniforms) []byte {
	out := make([]byte, l.Size)
	for _, f := range l.Fields {
		v, ok := values[f.Name]
		if !ok || v == nil {
			continue
		}
		writeMember(out[f.Offset:f.Offset+f.Size], f.Type, v)
	}
	return out
}

// writeMember encodes v as the WGSL type typeName. Matrices are column major with each column
// padded to its vector alignment, so a mat4x4<f32> takes 16 floats in order.
func writeMember(dst []byte, typeName string, v any) {
	scalar, count, columnStride := memberShape(typeName)
	if count == 0 {
		return
	}

	values := flatten(v)
	if len(values) == 0 {
		return
	}
	rows := count
	cols := 1
	if columnStride > 0 {
		cols = count / columnStride
		rows = columnStride
	}

	i := 0
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			if i >= len(values) {
				return
			}
			at := (c*paddedRows(rows, columnStride) + r) * 4
			if at+4 > len(dst) {
				return
			}
			switch scalar {
			case "f32":
				binary.LittleEndian.PutUint32(dst[at:], math.Float32bits(float32(values[i])))
			case "i32":
				binary.LittleEndian.PutUint32(dst[at:], uint32(int32(values[i])))
			default:
				binary.LittleEndian.PutUint32(dst[at:], uint32(values[i]))
			}
			i++
		}
	}
}

// memberShape returns the scalar type, the number of scalars, and for matrices the row count.
func memberShape(typeName string) (string, int, int) {
	switch typeName {
	case "f32", "i32", "u32":
		return typeName, 1, 0
	case "bool":
		return "u32", 1, 0
	case "vec2f":
		return "f32", 2, 0
	case "vec3f":
		return "f32", 3, 0
	case "vec4f":
		return "f32", 4, 0
	case "vec2u":
		return "u32", 2, 0
	case "vec4u":
		return "u32", 4, 0
	case "mat4x4f":
		return "f32", 16, 4
	}
	base, param, ok := strings.Cut(typeName, "<")
	if !ok {
		return "", 0, 0
	}
	param = strings.TrimSuffix(param, ">")
	switch base {
	case "vec2":
		return param, 2, 0
	case "vec3":
		return param, 3, 0
	case "vec4":
		return param, 4, 0
	case "mat2x2":
		return param, 4, 2
	case "mat3x3":
		return param, 9, 3
	case "mat4x4":
		return param, 16, 4
	}
	return "", 0, 0
}

// paddedRows is the column stride in scalars: vec3 columns are padded to four.
func paddedRows(rows, columnStride int) int {
	if columnStride == 3 {
		return 4
	}
	return rows
}

// flatten converts a scalar, slice or array of numbers into float64 values.
func flatten(v any) []float64 {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]float64, 0, rv.Len())
		for i := range rv.Len() {
			if f, ok := number(rv.Index(i)); ok {
				out = append(out, f)
			} else {
				return nil
			}
		}
		return out
	}
	if f, ok := number(rv); ok {
		return []float64{f}
	}
	return nil
}

func number(rv reflect.Value) (float64, bool) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Bool:
		if rv.Bool() {
			return 1, true
		}
		return 0, true
	case reflect.Interface:
		return number(rv.Elem())
	}
	return 0, false
}
