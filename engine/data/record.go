// Package data resolves binary layouts for heterogeneous graph records and packs them into
// interleaved GPU-ready byte buffers.
package data

import (
	"errors"
	"fmt"
	"strings"
)

// NoIndex is packed for reference fields whose id could not be resolved.
const NoIndex uint32 = 0xFFFFFFFF

// ErrNoRecords is returned when a layout has to be inferred from an empty record sequence.
var ErrNoRecords = errors.New("data: no records to infer a layout from")

// Record is one input row (a point, node or edge) with named fields.
// Records are treated as immutable once handed to a resolver or packer.
type Record map[string]any

// FieldType is the GPU scalar interpretation of a record field.
type FieldType int

const (
	// FieldAuto asks the resolver to infer the type from the records.
	FieldAuto FieldType = iota
	// FieldInt32 packs each component as a signed 32-bit integer.
	FieldInt32
	// FieldUint32 packs each component as an unsigned 32-bit integer.
	FieldUint32
	// FieldFloat32 packs each component as a 32-bit float.
	FieldFloat32
	// FieldUint8Norm packs each component as one byte, mapping [0,1] to [0,255].
	FieldUint8Norm
	// FieldColor packs a color token, tuple or registry index as RGBA8 in a single u32.
	FieldColor
	// FieldPointRef packs each component as the u32 index of a referenced id, or NoIndex.
	FieldPointRef
)

// String returns the lower-case name of the field type.
func (t FieldType) String() string {
	switch t {
	case FieldInt32:
		return "int32"
	case FieldUint32:
		return "uint32"
	case FieldFloat32:
		return "float32"
	case FieldUint8Norm:
		return "uint8norm"
	case FieldColor:
		return "color"
	case FieldPointRef:
		return "pointref"
	default:
		return "auto"
	}
}

// componentSize returns the packed size in bytes of one component.
func (t FieldType) componentSize() uint32 {
	if t == FieldUint8Norm {
		return 1
	}
	return 4
}

// FieldSpec declares a field ahead of inference. Zero values mean "infer".
type FieldSpec struct {
	// Name is the field name in the packed layout and in generated shader accessors.
	Name string
	// Source is the record key to read. Defaults to Name.
	Source string
	// Type forces the field type. FieldAuto infers it from the records.
	Type FieldType
	// Components forces the component count (1..4). Zero infers it.
	Components uint32
	// Lookup names the id table used for FieldPointRef fields. Empty selects the point store.
	Lookup string
	// Default is packed for records where the field is missing.
	Default any
}

// FieldDescriptor is one resolved field of a Layout. It is fixed for the lifetime of the
// record set it was resolved from.
type FieldDescriptor struct {
	Name       string
	Source     string
	Type       FieldType
	Components uint32
	Offset     uint32
	Lookup     string
	Default    any
}

// Size returns the packed byte size of the field before word alignment.
func (d FieldDescriptor) Size() uint32 {
	if d.Type == FieldColor {
		return 4
	}
	return d.Type.componentSize() * d.Components
}

// Layout is an ordered set of fields with a word-aligned stride.
type Layout struct {
	Fields []FieldDescriptor
	Stride uint32
}

// Field returns the descriptor with the given name.
//
// Parameters:
//   - name: the field name
//
// Returns:
//   - FieldDescriptor: the descriptor, zero if not found
//   - bool: true if the field exists
func (l Layout) Field(name string) (FieldDescriptor, bool) {
	for _, f := range l.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

// Offsets returns the byte offset of every field keyed by name.
func (l Layout) Offsets() map[string]uint32 {
	out := make(map[string]uint32, len(l.Fields))
	for _, f := range l.Fields {
		out[f.Name] = f.Offset
	}
	return out
}

// Signature returns a stable string describing the layout, suitable as a cache key component.
func (l Layout) Signature() string {
	var sb strings.Builder
	for i, f := range l.Fields {
		if i > 0 {
			sb.WriteByte(';')
		}
		fmt.Fprintf(&sb, "%s:%s%d@%d", f.Name, f.Type, f.Components, f.Offset)
	}
	fmt.Fprintf(&sb, "/%d", l.Stride)
	return sb.String()
}

// newLayout assigns word-aligned offsets to the given fields in order.
func newLayout(fields []FieldDescriptor) Layout {
	var offset uint32
	for i := range fields {
		fields[i].Offset = offset
		offset += alignWord(fields[i].Size())
	}
	return Layout{Fields: fields, Stride: offset}
}

// alignWord rounds n up to the next multiple of 4.
func alignWord(n uint32) uint32 {
	return (n + 3) &^ 3
}
