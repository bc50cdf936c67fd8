package nodes

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-graph/engine/data"
	"github.com/Carmen-Shannon/oxy-graph/engine/element"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderable"
)

// GPUNodeInstanceSource is the canonical WGSL definition of the NodeInstance struct.
// Matches GPUNodeInstance layout exactly (32 bytes).
//
//go:embed assets/node_instance.wgsl
var GPUNodeInstanceSource string

//go:embed assets/node_compute.wgsl
var nodeComputeSource string

//go:embed assets/circle.wgsl
var circleSource string

//go:embed assets/ring.wgsl
var ringSource string

// GPUNodeInstance is one element of the node target buffer.
type GPUNodeInstance struct {
	Position [4]float32 // offset 0: xyz world position, w radius
	Color    [4]float32 // offset 16: straight RGBA in [0, 1]
}

// Size returns the size of the GPUNodeInstance struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUNodeInstance) Size() int {
	return int(unsafe.Sizeof(*g))
}

// DecodeInstances reads a node target buffer back into structs.
//
// Parameters:
//   - b: the buffer contents, a multiple of 32 bytes
//
// Returns:
//   - []GPUNodeInstance: one instance per 32 bytes
func DecodeInstances(b []byte) []GPUNodeInstance {
	out := make([]GPUNodeInstance, len(b)/32)
	for i := range out {
		at := b[i*32:]
		for c := range 4 {
			out[i].Position[c] = math.Float32frombits(binary.LittleEndian.Uint32(at[c*4:]))
			out[i].Color[c] = math.Float32frombits(binary.LittleEndian.Uint32(at[16+c*4:]))
		}
	}
	return out
}

// Kind is the element kind of node records. A node references its point by id and may carry a
// color and a radius; a radius of zero uses the radius of the point.
type Kind struct {
	element.Defaults
}

var _ element.Kind = Kind{}

// Key returns "graph/nodes".
func (Kind) Key() string { return "graph/nodes" }

// SourceFields declares point, color and radius.
func (Kind) SourceFields() []data.FieldSpec {
	return []data.FieldSpec{
		{Name: "point", Type: data.FieldPointRef, Components: 1},
		{Name: "color", Type: data.FieldColor, Default: "white"},
		{Name: "radius", Type: data.FieldFloat32, Components: 1, Default: 0},
	}
}

// TargetStruct returns the NodeInstance struct.
func (Kind) TargetStruct() element.Target {
	return element.Target{Struct: "NodeInstance", Source: GPUNodeInstanceSource, Stride: 32}
}

// ComputeSource returns the node compute shader.
func (Kind) ComputeSource() string { return nodeComputeSource }

// Circle draws every node as a filled, antialiased disc.
func Circle() renderable.Style {
	return renderable.Style{
		Key:           "graph/nodes/circle",
		Source:        circleSource,
		VertexEntry:   "vs_main",
		FragmentEntry: "fs_main",
		PickingEntry:  "fs_pick",
		Mesh:          renderable.QuadMesh(),
	}
}

// Ring draws every node as an outline lineWidth pixels wide.
func Ring() renderable.Style {
	return renderable.Style{
		Key:           "graph/nodes/ring",
		Source:        ringSource,
		VertexEntry:   "vs_main",
		FragmentEntry: "fs_main",
		PickingEntry:  "fs_pick",
		Mesh:          renderable.QuadMesh(),
	}
}

// StyleByName returns the node style registered under name: "circle" or "ring".
// An empty name selects Circle.
func StyleByName(name string) (renderable.Style, bool) {
	switch name {
	case "", "circle", "Circle":
		return Circle(), true
	case "ring", "Ring":
		return Ring(), true
	}
	return renderable.Style{}, false
}
