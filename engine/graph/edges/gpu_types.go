package edges

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"image/color"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-graph/engine/data"
	"github.com/Carmen-Shannon/oxy-graph/engine/element"
	"github.com/Carmen-Shannon/oxy-graph/engine/graph/nodes"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderable"
)

// GPUStraightEdgeSource is the canonical WGSL definition of the StraightEdge struct.
// Matches GPUStraightEdge layout exactly (80 bytes).
//
//go:embed assets/straight_edge.wgsl
var GPUStraightEdgeSource string

// GPUCurvedEdgeSource is the canonical WGSL definition of the CurvedEdge struct.
// Matches GPUCurvedEdge layout exactly (128 bytes).
//
//go:embed assets/curved_edge.wgsl
var GPUCurvedEdgeSource string

//go:embed assets/edge_common.wgsl
var edgeCommonSource string

//go:embed assets/straight_compute.wgsl
var straightComputeSource string

//go:embed assets/curved_compute.wgsl
var curvedComputeSource string

//go:embed assets/gravity_compute.wgsl
var gravityComputeSource string

//go:embed assets/straight.wgsl
var straightSource string

//go:embed assets/curved.wgsl
var curvedSource string

// Lookup names the edge fields resolve through.
const (
	// LookupEndpoints resolves an id to a point index: node entry points first, then the store.
	LookupEndpoints = "endpoints"
	// LookupNodes resolves an id to a record index of the node set.
	LookupNodes = "nodes"
)

// DefaultSegments is the number of quads a curved edge is drawn with.
const DefaultSegments = 16

// Variant selects the geometry an edge set computes and draws.
type Variant string

const (
	// Straight edges are a single segment between their endpoints.
	Straight Variant = "straight"
	// CurvedPath edges are Bezier curves through up to three control points.
	CurvedPath Variant = "curved"
	// Gravity edges bend toward the origin uniform by the gravity uniform.
	Gravity Variant = "gravity"
)

// ParseVariant maps a configuration name to a Variant. An empty name selects Straight.
//
// Parameters:
//   - name: "straight", "curved" or "gravity"
//
// Returns:
//   - Variant: the variant
//   - error: an error for unknown names
func ParseVariant(name string) (Variant, error) {
	switch Variant(name) {
	case "":
		return Straight, nil
	case Straight, CurvedPath, Gravity:
		return Variant(name), nil
	case "curvedPath", "CurvedPath":
		return CurvedPath, nil
	}
	return "", fmt.Errorf("edges: unknown edge type %q", name)
}

// GPUStraightEdge is one element of a straight edge target buffer.
type GPUStraightEdge struct {
	SourcePosition [4]float32 // offset 0: xyz, w source node radius
	TargetPosition [4]float32 // offset 16: xyz, w target node radius
	SourceColor    [4]float32 // offset 32
	TargetColor    [4]float32 // offset 48
	Style          [4]float32 // offset 64: x width, y visible
}

// Size returns the size of the GPUStraightEdge struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUStraightEdge) Size() int {
	return int(unsafe.Sizeof(*g))
}

// GPUCurvedEdge is one element of a curved or gravity edge target buffer.
type GPUCurvedEdge struct {
	SourcePosition [4]float32    // offset 0
	TargetPosition [4]float32    // offset 16
	Controls       [3][4]float32 // offset 32: w is 1 for present control points
	SourceColor    [4]float32    // offset 80
	TargetColor    [4]float32    // offset 96
	Style          [4]float32    // offset 112
}

// Size returns the size of the GPUCurvedEdge struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUCurvedEdge) Size() int {
	return int(unsafe.Sizeof(*g))
}

func vec4At(b []byte, at int) [4]float32 {
	var v [4]float32
	for c := range v {
		v[c] = math.Float32frombits(binary.LittleEndian.Uint32(b[at+c*4:]))
	}
	return v
}

// DecodeStraight reads a straight edge target buffer back into structs.
func DecodeStraight(b []byte) []GPUStraightEdge {
	out := make([]GPUStraightEdge, len(b)/80)
	for i := range out {
		at := i * 80
		out[i] = GPUStraightEdge{
			SourcePosition: vec4At(b, at),
			TargetPosition: vec4At(b, at+16),
			SourceColor:    vec4At(b, at+32),
			TargetColor:    vec4At(b, at+48),
			Style:          vec4At(b, at+64),
		}
	}
	return out
}

// DecodeCurved reads a curved or gravity edge target buffer back into structs.
func DecodeCurved(b []byte) []GPUCurvedEdge {
	out := make([]GPUCurvedEdge, len(b)/128)
	for i := range out {
		at := i * 128
		out[i] = GPUCurvedEdge{
			SourcePosition: vec4At(b, at),
			TargetPosition: vec4At(b, at+16),
			Controls:       [3][4]float32{vec4At(b, at+32), vec4At(b, at+48), vec4At(b, at+64)},
			SourceColor:    vec4At(b, at+80),
			TargetColor:    vec4At(b, at+96),
			Style:          vec4At(b, at+112),
		}
	}
	return out
}

// Kind is the element kind of one edge variant.
type Kind struct {
	element.Defaults
	variant Variant
}

var _ element.Kind = Kind{}

// KindOf returns the element kind of variant.
func KindOf(variant Variant) Kind {
	return Kind{variant: variant}
}

// Key returns "graph/edges/" followed by the variant.
func (k Kind) Key() string { return "graph/edges/" + string(k.variant) }

// PointField returns "source": the entry point of an edge is its source.
func (Kind) PointField() string { return "source" }

// SourceFields declares the endpoints, the node references used for color and radius fallback,
// both colors, the width and for curved paths the control points. A color with zero alpha takes
// the color of its node.
func (k Kind) SourceFields() []data.FieldSpec {
	fields := []data.FieldSpec{
		{Name: "source", Type: data.FieldPointRef, Components: 1, Lookup: LookupEndpoints},
		{Name: "target", Type: data.FieldPointRef, Components: 1, Lookup: LookupEndpoints},
		{Name: "sourceNode", Source: "source", Type: data.FieldPointRef, Components: 1, Lookup: LookupNodes, Default: ""},
		{Name: "targetNode", Source: "target", Type: data.FieldPointRef, Components: 1, Lookup: LookupNodes, Default: ""},
		{Name: "sourceColor", Type: data.FieldColor, Default: color.RGBA{}},
		{Name: "targetColor", Type: data.FieldColor, Default: color.RGBA{}},
		{Name: "width", Type: data.FieldFloat32, Components: 1, Default: 1},
	}
	if k.variant == CurvedPath {
		fields = append(fields, data.FieldSpec{Name: "controlPoints", Type: data.FieldPointRef, Components: 3,
			Lookup: LookupEndpoints, Default: []any{}})
	}
	return fields
}

// TargetStruct returns StraightEdge for straight edges and CurvedEdge otherwise.
func (k Kind) TargetStruct() element.Target {
	if k.variant == Straight {
		return element.Target{Struct: "StraightEdge", Source: GPUStraightEdgeSource, Stride: 80}
	}
	return element.Target{Struct: "CurvedEdge", Source: GPUCurvedEdgeSource, Stride: 128}
}

// ComputeSource returns the compute shader of the variant.
func (k Kind) ComputeSource() string {
	main := straightComputeSource
	switch k.variant {
	case CurvedPath:
		main = curvedComputeSource
	case Gravity:
		main = gravityComputeSource
	}
	return nodes.GPUNodeInstanceSource + "\n" + edgeCommonSource + "\n" + main
}

// StyleOf returns the render style of variant. Curved and gravity edges are drawn as ribbons
// of segments quads.
//
// Parameters:
//   - variant: the edge variant
//   - segments: quads per curved edge, DefaultSegments when zero
//
// Returns:
//   - renderable.Style: the style
func StyleOf(variant Variant, segments int) renderable.Style {
	if variant == Straight {
		return renderable.Style{
			Key:           "graph/edges/straight",
			Source:        straightSource,
			VertexEntry:   "vs_main",
			FragmentEntry: "fs_main",
			PickingEntry:  "fs_pick",
			Mesh:          renderable.StripMesh(1),
		}
	}
	if segments <= 0 {
		segments = DefaultSegments
	}
	return renderable.Style{
		Key:           fmt.Sprintf("graph/edges/curved/%d", segments),
		Source:        curvedSource,
		VertexEntry:   "vs_main",
		FragmentEntry: "fs_main",
		PickingEntry:  "fs_pick",
		Mesh:          renderable.StripMesh(segments),
	}
}
