package renderable

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/engine/data"
	"github.com/Carmen-Shannon/oxy-graph/engine/element"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/renderertest"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dotTarget = `struct Dot {
    color: vec4<f32>,
}`

const dotCompute = `
//@oxy:include records
//@oxy:include target

struct Params {
    count: u32,
}

//@oxy:provider 0 0 params
@group(0) @binding(0) var<uniform> params: Params;
//@oxy:provider 0 1 records
@group(0) @binding(1) var<storage, read> records: array<u32>;
//@oxy:group 0 2 storage_read_write out array<target>

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    if (gid.x >= params.count) {
        return;
    }
    out[gid.x].color = vec4<f32>(record_value(gid.x));
}
`

const dotStyleSource = `
//@oxy:include render_params
//@oxy:include picking
//@oxy:include target
//@oxy:group 0 0 storage_uniform params render_params
//@oxy:group 0 1 storage_read instances array<target>

struct Corner {
    @location(0) corner: vec2<f32>,
}

struct VertexOut {
    @builtin(position) position: vec4<f32>,
    @location(0) color: vec4<f32>,
    @location(1) @interpolate(flat) instance: u32,
}

@vertex
fn vs_main(in: Corner, @builtin(instance_index) instance: u32) -> VertexOut {
    var out: VertexOut;
    out.position = params.viewProj * vec4<f32>(in.corner * params.sizeScale, 0.0, 1.0);
    out.color = instances[instance].color;
    out.instance = instance;
    return out;
}

@fragment
fn fs_main(in: VertexOut) -> @location(0) vec4<f32> {
    return vec4<f32>(in.color.rgb, in.color.a * params.opacity);
}

@fragment
fn fs_pick(in: VertexOut) -> @location(0) vec4<f32> {
    return picking_color(params.pickingBase + in.instance);
}
`

type dotKind struct {
	element.Defaults
}

func (dotKind) Key() string { return "test/dot" }

func (dotKind) SourceFields() []data.FieldSpec {
	return []data.FieldSpec{{Name: "value", Type: data.FieldFloat32, Components: 1, Default: 1}}
}

func (dotKind) TargetStruct() element.Target {
	return element.Target{Struct: "Dot", Source: dotTarget, Stride: 16}
}

func (dotKind) ComputeSource() string { return dotCompute }

func dotStyle() Style {
	return Style{
		Key:           "test/dot-style",
		Source:        dotStyleSource,
		VertexEntry:   "vs_main",
		FragmentEntry: "fs_main",
		PickingEntry:  "fs_pick",
	}
}

func newDots(t *testing.T, f *renderertest.Fake, n int) Renderable {
	t.Helper()
	records := make([]data.Record, n)
	for i := range records {
		records[i] = data.Record{"id": i, "value": float64(i)}
	}
	source, err := element.New(f, dotKind{}, nil, records)
	require.NoError(t, err)
	r, err := NewRenderable(f, source, dotStyle())
	require.NoError(t, err)
	return r
}

// paramsOf returns the RenderParams bytes last written for a draw.
func paramsOf(f *renderertest.Fake, d renderertest.DrawRecord) []byte {
	return f.Bytes(d.Groups[0].Buffer(0))
}

func TestPickingID_RoundTrip(t *testing.T) {
	for _, id := range []uint32{0, 1, 42, 255, 256, 65535, MaxPickingID} {
		got, ok := DecodePickingColor(EncodePickingID(id))
		require.True(t, ok)
		assert.Equal(t, id, got)
	}
	_, ok := DecodePickingColor([4]byte{42, 0, 0, 0})
	assert.False(t, ok, "zero alpha is background")
	assert.Equal(t, [4]byte{42, 0, 0, 255}, EncodePickingID(42))
}

func TestRenderParams_MarshalMatchesWGSLLayout(t *testing.T) {
	src := "//@oxy:include render_params\n@vertex fn vs_main() -> @builtin(position) vec4<f32> { return vec4<f32>(0.0); }"
	s, err := shader.NewShaderFromSource("params", shader.ShaderTypeVertex, src, shader.WithInclude(RenderParamsInclude()))
	require.NoError(t, err)
	layout, ok := s.StructLayout("RenderParams")
	require.True(t, ok)

	p := DefaultRenderParams()
	p.Viewport = [2]float32{800, 600}
	p.Time = 1.5
	p.PickingBase = 7
	p.LineWidth = 2
	p.CurveSegments = 16
	assert.Equal(t, uint64(p.Size()), layout.Size)
	assert.Equal(t, p.Marshal(), layout.Pack(p.Uniforms()))
}

func TestStripMesh(t *testing.T) {
	m := StripMesh(4)
	assert.Len(t, m.Vertices, 5*4)
	assert.Len(t, m.Indices, 4*6)
	assert.Equal(t, 4, m.Segments())
	assert.Equal(t, []float32{0, -1, 0, 1}, m.Vertices[:4])
	assert.Equal(t, []float32{1, -1, 1, 1}, m.Vertices[16:])

	assert.Equal(t, 1, StripMesh(0).Segments())
	assert.Equal(t, 1, QuadMesh().Segments())
}

func TestRenderable_DrawsWithDepthRange(t *testing.T) {
	f := renderertest.New(64, 64)
	r := newDots(t, f, 3)
	r.SetDepthRange(DepthRange{Near: 0.25, Far: 0.5})

	require.NoError(t, f.BeginFrame())
	require.NoError(t, r.Render(ModeNormal, shader.Uniforms{"viewport": [2]float32{64, 64}}))
	f.EndFrame()

	draws := f.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, "test/dot-style/normal", draws[0].Key)
	assert.Equal(t, uint32(3), draws[0].InstanceCount)
	assert.Equal(t, float32(0.25), draws[0].MinDepth)
	assert.Equal(t, float32(0.5), draws[0].MaxDepth)
	assert.False(t, draws[0].Picking)

	params := paramsOf(f, draws[0])
	require.Len(t, params, 96)
	assert.Equal(t, float32(64), math.Float32frombits(binary.LittleEndian.Uint32(params[64:])))
	assert.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(params[80:])), "sizeScale default")
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(params[92:]), "quad has one segment")
}

func TestRenderable_DisabledOrEmptyDrawsNothing(t *testing.T) {
	f := renderertest.New(64, 64)
	r := newDots(t, f, 2)
	r.SetEnabled(false)
	empty := newDots(t, f, 0)
	assert.Equal(t, 0, empty.Count())

	require.NoError(t, f.BeginFrame())
	require.NoError(t, r.Render(ModeNormal, nil))
	require.NoError(t, empty.Render(ModeNormal, nil))
	f.EndFrame()
	assert.Empty(t, f.Draws())

	r.SetEnabled(true)
	require.NoError(t, f.BeginFrame())
	require.NoError(t, r.Render(ModeNormal, nil))
	f.EndFrame()
	assert.Len(t, f.Draws(), 1)
}

func TestRenderable_OverridesWin(t *testing.T) {
	f := renderertest.New(64, 64)
	r := newDots(t, f, 1)
	r.SetUniforms(shader.Uniforms{"opacity": float32(0.5), "pickingBase": uint32(99)})

	require.NoError(t, f.BeginFrame())
	require.NoError(t, r.Render(ModeNormal, shader.Uniforms{"opacity": float32(1)}))
	f.EndFrame()

	params := paramsOf(f, f.Draws()[0])
	assert.Equal(t, float32(0.5), math.Float32frombits(binary.LittleEndian.Uint32(params[88:])))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(params[76:]), "picking base is not overridable")
	assert.Equal(t, shader.Uniforms{"opacity": float32(0.5), "pickingBase": uint32(99)}, r.Uniforms())
}

func TestRenderable_PickingRoundTrip(t *testing.T) {
	f := renderertest.New(64, 64)
	r := newDots(t, f, 5)
	r.SetPickingBase(40)

	// instance i covers pixel (i, 0)
	f.SetRasterizer(func(d renderertest.DrawRecord, x, y int) ([4]byte, float32, bool) {
		if y != 0 || x >= int(d.InstanceCount) {
			return [4]byte{}, 0, false
		}
		base := binary.LittleEndian.Uint32(paramsOf(f, d)[76:])
		return EncodePickingID(base + uint32(x)), d.MinDepth, true
	})

	require.NoError(t, f.BeginPickingFrame())
	require.NoError(t, r.Render(ModePicking, nil))
	f.EndFrame()

	require.Len(t, f.Draws(), 1)
	assert.Equal(t, "test/dot-style/picking", f.Draws()[0].Key)
	assert.True(t, f.Draws()[0].Picking)

	texel, err := f.ReadPickingPixel(2, 0)
	require.NoError(t, err)
	id, ok := DecodePickingColor(texel)
	require.True(t, ok)
	assert.Equal(t, uint32(42), id)

	texel, err = f.ReadPickingPixel(10, 10)
	require.NoError(t, err)
	_, ok = DecodePickingColor(texel)
	assert.False(t, ok)
}

func TestRenderable_WrongFrameFails(t *testing.T) {
	f := renderertest.New(64, 64)
	r := newDots(t, f, 1)

	require.NoError(t, f.BeginFrame())
	assert.Error(t, r.Render(ModePicking, nil))
	f.EndFrame()
}

func TestRenderable_SharesPipelinesAcrossInstances(t *testing.T) {
	f := renderertest.New(64, 64)
	a := newDots(t, f, 2)
	b := newDots(t, f, 3)

	require.NoError(t, f.BeginFrame())
	require.NoError(t, a.Render(ModeNormal, nil))
	require.NoError(t, b.Render(ModeNormal, nil))
	f.EndFrame()

	draws := f.Draws()
	require.Len(t, draws, 2)
	assert.Equal(t, draws[0].Key, draws[1].Key)
	assert.NotEqual(t, draws[0].Groups[0], draws[1].Groups[0], "each renderable owns its params")
}

func TestRenderable_MissingPickingEntry(t *testing.T) {
	f := renderertest.New(64, 64)
	source, err := element.New(f, dotKind{}, nil, []data.Record{{"id": 1}})
	require.NoError(t, err)
	style := dotStyle()
	style.Key = "test/no-pick"
	style.PickingEntry = ""
	_, err = NewRenderable(f, source, style)
	assert.Error(t, err)
}

func TestRenderable_ContractViolation(t *testing.T) {
	f := renderertest.New(64, 64)
	source, err := element.New(f, dotKind{}, nil, []data.Record{{"id": 1}})
	require.NoError(t, err)
	style := Style{
		Key:          "test/bare",
		Source:       "struct Corner { @location(0) corner: vec2<f32>, }\n@vertex fn vs_main(in: Corner) -> @builtin(position) vec4<f32> { return vec4<f32>(in.corner, 0.0, 1.0); }\n@fragment fn fs_main() -> @location(0) vec4<f32> { return vec4<f32>(1.0); }\n@fragment fn fs_pick() -> @location(0) vec4<f32> { return vec4<f32>(0.0); }",
		PickingEntry: "fs_pick",
	}
	_, err = NewRenderable(f, source, style)
	require.Error(t, err)
	assert.True(t, errors.Is(err, element.ErrContractViolation))
}

func TestRenderable_ReleaseFreesBuffers(t *testing.T) {
	f := renderertest.New(64, 64)
	r := newDots(t, f, 2)
	before := f.Released()
	r.Release()
	assert.Greater(t, f.Released(), before)

	require.NoError(t, f.BeginFrame())
	assert.Error(t, r.Render(ModeNormal, nil))
	f.EndFrame()
}
