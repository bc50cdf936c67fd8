package renderable

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
)

// GPURenderParamsSource is the canonical WGSL definition of the RenderParams struct.
// Matches GPURenderParams layout exactly (96 bytes).
//
//go:embed assets/render_params.wgsl
var GPURenderParamsSource string

// GPUPickingSource holds the WGSL helpers that encode picking ids as colors.
//
//go:embed assets/picking.wgsl
var GPUPickingSource string

// RenderParamsInclude returns the include injected by "//@oxy:include render_params" and used as
// the type of "//@oxy:group G B storage_uniform params render_params".
func RenderParamsInclude() shader.Include {
	return shader.Include{Name: shader.AnnotationArgRenderParams, Source: GPURenderParamsSource, Type: "RenderParams"}
}

// PickingInclude returns the include injected by "//@oxy:include picking".
func PickingInclude() shader.Include {
	return shader.Include{Name: shader.AnnotationArgPicking, Source: GPUPickingSource}
}

// GPURenderParams is the per draw uniform shared by every render shader.
// Matches the WGSL RenderParams struct layout exactly (see GPURenderParamsSource).
type GPURenderParams struct {
	ViewProj      [16]float32 // offset 0: column major view projection (64 bytes)
	Viewport      [2]float32  // offset 64: surface size in pixels
	Time          float32     // offset 72: seconds since start
	PickingBase   uint32      // offset 76: picking id of instance 0
	SizeScale     float32     // offset 80: multiplier on node radii
	LineWidth     float32     // offset 84: edge width in pixels
	Opacity       float32     // offset 88: alpha multiplier
	CurveSegments uint32      // offset 92: segments per curved edge
}

// DefaultRenderParams returns params with an identity transform and unit scales.
//
// Returns:
//   - GPURenderParams: the defaults
func DefaultRenderParams() GPURenderParams {
	p := GPURenderParams{SizeScale: 1, LineWidth: 1, Opacity: 1}
	common.Identity(p.ViewProj[:])
	return p
}

// Size returns the size of the GPURenderParams struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPURenderParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPURenderParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 96-byte buffer ready for GPU upload.
func (g *GPURenderParams) Marshal() []byte {
	buf := make([]byte, 96)
	for i, v := range g.ViewProj {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	binary.LittleEndian.PutUint32(buf[64:68], math.Float32bits(g.Viewport[0]))
	binary.LittleEndian.PutUint32(buf[68:72], math.Float32bits(g.Viewport[1]))
	binary.LittleEndian.PutUint32(buf[72:76], math.Float32bits(g.Time))
	binary.LittleEndian.PutUint32(buf[76:80], g.PickingBase)
	binary.LittleEndian.PutUint32(buf[80:84], math.Float32bits(g.SizeScale))
	binary.LittleEndian.PutUint32(buf[84:88], math.Float32bits(g.LineWidth))
	binary.LittleEndian.PutUint32(buf[88:92], math.Float32bits(g.Opacity))
	binary.LittleEndian.PutUint32(buf[92:96], g.CurveSegments)
	return buf
}

// Uniforms converts the params into the name keyed form accepted by Render.
//
// Returns:
//   - shader.Uniforms: one entry per struct member
func (g *GPURenderParams) Uniforms() shader.Uniforms {
	return shader.Uniforms{
		"viewProj":      g.ViewProj,
		"viewport":      g.Viewport,
		"time":          g.Time,
		"pickingBase":   g.PickingBase,
		"sizeScale":     g.SizeScale,
		"lineWidth":     g.LineWidth,
		"opacity":       g.Opacity,
		"curveSegments": g.CurveSegments,
	}
}

// Mesh is the per vertex geometry instanced once per element. Every vertex is a vec2<f32>.
type Mesh struct {
	Vertices []float32
	Indices  []uint32
}

// QuadMesh returns a quad with corners at -1 and 1, drawn as two triangles.
func QuadMesh() Mesh {
	return Mesh{
		Vertices: []float32{-1, -1, 1, -1, 1, 1, -1, 1},
		Indices:  []uint32{0, 1, 2, 0, 2, 3},
	}
}

// StripMesh returns a ribbon of segments quads. Vertex x runs from 0 to 1 along the ribbon and
// y is -1 or 1 across it.
//
// Parameters:
//   - segments: the number of quads, at least 1
//
// Returns:
//   - Mesh: the ribbon
func StripMesh(segments int) Mesh {
	segments = max(segments, 1)
	m := Mesh{
		Vertices: make([]float32, 0, (segments+1)*4),
		Indices:  make([]uint32, 0, segments*6),
	}
	for s := 0; s <= segments; s++ {
		t := float32(s) / float32(segments)
		m.Vertices = append(m.Vertices, t, -1, t, 1)
	}
	for s := range uint32(segments) {
		a, b, c, d := 2*s, 2*s+1, 2*s+2, 2*s+3
		m.Indices = append(m.Indices, a, b, c, b, d, c)
	}
	return m
}

// Segments returns the number of quads of a strip mesh.
func (m Mesh) Segments() int {
	return max(len(m.Indices)/6, 1)
}
