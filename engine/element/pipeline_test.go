package element

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/engine/data"
	"github.com/Carmen-Shannon/oxy-graph/engine/points"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/renderertest"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTarget = `struct Sample {
    position: vec4<f32>,
    color: vec4<f32>,
}`

const sampleCompute = `
//@oxy:include records
//@oxy:include target

struct Params {
    count: u32,
    scale: f32,
}

//@oxy:provider 0 0 params
@group(0) @binding(0) var<uniform> params: Params;
//@oxy:provider 0 1 records
@group(0) @binding(1) var<storage, read> records: array<u32>;
//@oxy:provider 0 2 points
@group(0) @binding(2) var<storage, read> points: array<vec4<f32>>;
//@oxy:group 0 3 storage_read_write out array<target>

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let i = gid.x;
    if (i >= params.count) {
        return;
    }
    let p = record_point(i);
    var pos = vec4<f32>(0.0);
    if (p != NO_INDEX) {
        pos = points[p];
    }
    out[i].position = vec4<f32>(pos.xyz, record_value(i) * params.scale);
    out[i].color = record_color(i);
}
`

type sampleKind struct {
	Defaults
	stride uint32
}

func (sampleKind) Key() string { return "test/sample" }

func (sampleKind) SourceFields() []data.FieldSpec {
	return []data.FieldSpec{
		{Name: "point", Type: data.FieldPointRef, Components: 1},
		{Name: "value", Type: data.FieldFloat32, Components: 1, Default: 1},
		{Name: "color", Type: data.FieldColor, Default: "white"},
	}
}

func (k sampleKind) TargetStruct() Target {
	return Target{Struct: "Sample", Source: sampleTarget, Stride: k.stride}
}

func (sampleKind) ComputeSource() string { return sampleCompute }

func f32At(b []byte, at int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[at:]))
}

func putF32(b []byte, at int, v float32) {
	binary.LittleEndian.PutUint32(b[at:], math.Float32bits(v))
}

// sampleKernel mirrors sampleCompute on the CPU. Records are 12 bytes: point, value, color.
func sampleKernel(groups *[][3]uint32) renderertest.Kernel {
	return func(f *renderertest.Fake, p pipeline.Pipeline, provider bind_group_provider.BindGroupProvider, wg [3]uint32) error {
		s := p.Shader(shader.ShaderTypeCompute)
		buf := func(identity shader.AnnotationArg) []byte {
			_, binding, ok := s.Binding(identity)
			if !ok {
				return nil
			}
			return f.Bytes(provider.Buffer(binding))
		}
		params, records, pts, out := buf(shader.AnnotationArgParams), buf(shader.AnnotationArgRecordBuffer),
			buf(shader.AnnotationArgPoints), buf(shader.AnnotationArgTarget)
		if params == nil || records == nil || pts == nil || out == nil {
			return errors.New("unbound buffer")
		}
		if groups != nil {
			*groups = append(*groups, wg)
		}

		count := binary.LittleEndian.Uint32(params)
		scale := f32At(params, 4)
		for i := 0; i < int(count) && i < int(wg[0])*64; i++ {
			rec := records[i*12:]
			point := binary.LittleEndian.Uint32(rec)
			var pos [4]float32
			if point != data.NoIndex {
				for c := range pos {
					pos[c] = f32At(pts, int(point)*16+c*4)
				}
			}
			dst := out[i*32:]
			putF32(dst, 0, pos[0])
			putF32(dst, 4, pos[1])
			putF32(dst, 8, pos[2])
			putF32(dst, 12, f32At(rec, 4)*scale)
			for c := range 4 {
				putF32(dst, 16+c*4, float32(rec[8+c])/255)
			}
		}
		return nil
	}
}

func newSampleStore(t *testing.T) points.Store {
	t.Helper()
	store := points.NewStore()
	_, err := store.Insert(points.Point{ID: "a", X: 1, Y: 2, Radius: 1})
	require.NoError(t, err)
	_, err = store.Insert(points.Point{ID: "b", X: 3, Y: 4, Radius: 1})
	require.NoError(t, err)
	return store
}

var sampleRecords = []data.Record{
	{"id": "n1", "point": "a", "value": 2, "color": "#ff0000"},
	{"id": "n2", "point": "b", "value": 0.5, "color": []any{0, 255, 0}},
	{"id": "n3", "point": "missing", "color": "blue"},
}

func TestPipeline_ComputeIsDeterministic(t *testing.T) {
	r := renderertest.New(64, 64)
	var groups [][3]uint32
	r.RegisterKernel("test/sample", sampleKernel(&groups))

	p, err := New(r, sampleKind{stride: 32}, newSampleStore(t), sampleRecords, WithLabel("layer_0/nodes"))
	require.NoError(t, err)
	assert.Equal(t, "layer_0/nodes", p.Label())
	assert.Equal(t, 3, p.Count())
	assert.Equal(t, uint64(96), p.TargetSize())
	assert.Equal(t, map[string]uint32{"point": 0, "value": 4, "color": 8}, p.Layout().Offsets())

	require.NoError(t, p.Compute(shader.Uniforms{"scale": 2, "unknown": 7}))
	first, err := p.ReadTarget()
	require.NoError(t, err)
	require.NoError(t, p.Compute(shader.Uniforms{"scale": 2, "unknown": 7}))
	second, err := p.ReadTarget()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, [][3]uint32{{1, 1, 1}, {1, 1, 1}}, groups)
	assert.Equal(t, []string{p.PipelineKey(), p.PipelineKey()}, r.Dispatches())

	assert.Equal(t, []float32{1, 2, 0, 4}, []float32{f32At(first, 0), f32At(first, 4), f32At(first, 8), f32At(first, 12)})
	assert.Equal(t, []float32{1, 0, 0, 1}, []float32{f32At(first, 16), f32At(first, 20), f32At(first, 24), f32At(first, 28)})
	assert.Equal(t, float32(1), f32At(first, 32+4*5), "green channel of the second record")
	assert.Equal(t, []float32{0, 0, 0, 2}, []float32{f32At(first, 64), f32At(first, 68), f32At(first, 72), f32At(first, 76)})
	assert.Empty(t, r.Errors())
}

func TestPipeline_EntryPointsAndWarnings(t *testing.T) {
	r := renderertest.New(64, 64)
	p, err := New(r, sampleKind{stride: 32}, newSampleStore(t), sampleRecords)
	require.NoError(t, err)

	idx, ok := p.EntryPointID("n2")
	require.True(t, ok)
	assert.Equal(t, uint32(1), idx)
	_, ok = p.EntryPointID("n3")
	assert.False(t, ok, "unresolved points have no entry")
	_, ok = p.EntryPointID("nope")
	assert.False(t, ok)

	rec, ok := p.RecordIndex("n3")
	require.True(t, ok)
	assert.Equal(t, uint32(2), rec)
	id, ok := p.RecordID(rec)
	require.True(t, ok)
	assert.Equal(t, "n3", id)
	_, ok = p.RecordID(99)
	assert.False(t, ok)

	warnings := p.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, data.WarnUnresolvedRef, warnings[0].Kind)
	assert.Equal(t, 2, warnings[0].Record)
}

func TestPipeline_NumericPointField(t *testing.T) {
	r := renderertest.New(64, 64)
	p, err := New(r, numericKind{}, nil, []data.Record{{"id": 10, "point": 4}, {"id": 11, "point": 2.0}})
	require.NoError(t, err)

	idx, ok := p.EntryPointID(10.0)
	require.True(t, ok)
	assert.Equal(t, uint32(4), idx)
	idx, ok = p.EntryPointID(uint8(11))
	require.True(t, ok)
	assert.Equal(t, uint32(2), idx)
}

func TestPipeline_UnusableIDsWarn(t *testing.T) {
	r := renderertest.New(64, 64)
	lo := int64(1 << 53)
	p, err := New(r, numericKind{}, nil, []data.Record{
		{"id": lo, "point": 1},
		{"id": lo + 1, "point": 2},
		{"id": math.NaN(), "point": 3},
		{"point": 4},
		{"id": 20, "point": 1.5},
	})
	require.NoError(t, err)

	a, ok := p.RecordIndex(lo)
	require.True(t, ok)
	b, ok := p.RecordIndex(lo + 1)
	require.True(t, ok)
	assert.Equal(t, []uint32{0, 1}, []uint32{a, b})

	_, ok = p.EntryPointID(20)
	assert.False(t, ok, "a fractional point index is not an index")

	warnings := p.Warnings()
	require.Len(t, warnings, 1, "a missing id is allowed, a NaN id is not")
	assert.Equal(t, data.WarnCoercion, warnings[0].Kind)
	assert.Equal(t, 2, warnings[0].Record)
	assert.Equal(t, "id", warnings[0].Field)
}

func TestPipeline_EmptyRecordSet(t *testing.T) {
	r := renderertest.New(64, 64)
	p, err := New(r, sampleKind{stride: 32}, newSampleStore(t), nil)
	require.NoError(t, err)

	assert.Equal(t, 0, p.Count())
	assert.Nil(t, p.Target())
	require.NoError(t, p.Compute(shader.Uniforms{"scale": 1}))
	out, err := p.ReadTarget()
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Empty(t, r.Dispatches())
	assert.Equal(t, 0, r.LiveBuffers())
	p.Release()
}

func TestPipeline_StrideMismatchIsAContractViolation(t *testing.T) {
	r := renderertest.New(64, 64)
	_, err := New(r, sampleKind{stride: 48}, newSampleStore(t), sampleRecords)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrContractViolation)
	assert.Equal(t, 0, r.LiveBuffers())
}

func TestPipeline_PointsRequireAStore(t *testing.T) {
	r := renderertest.New(64, 64)
	_, err := New(r, sampleKind{stride: 32}, nil, sampleRecords)
	assert.ErrorIs(t, err, ErrContractViolation)
}

func TestPipeline_ReusesCachedComputePipeline(t *testing.T) {
	r := renderertest.New(64, 64)
	store := newSampleStore(t)
	a, err := New(r, sampleKind{stride: 32}, store, sampleRecords)
	require.NoError(t, err)
	b, err := New(r, sampleKind{stride: 32}, store, sampleRecords[:1])
	require.NoError(t, err)

	assert.Equal(t, a.PipelineKey(), b.PipelineKey())
	assert.Same(t, a.Shader(), b.Shader())
	assert.Contains(t, a.PipelineKey(), "test/sample/")
}

func TestPipeline_FollowsThePointMirror(t *testing.T) {
	r := renderertest.New(64, 64)
	r.RegisterKernel("test/sample", sampleKernel(nil))
	store := newSampleStore(t)
	p, err := New(r, sampleKind{stride: 32}, store, sampleRecords)
	require.NoError(t, err)
	require.NoError(t, p.Compute(shader.Uniforms{"scale": 1}))

	_, err = store.Insert(points.Point{ID: "a", X: 10, Y: 20, Radius: 1})
	require.NoError(t, err)
	require.NoError(t, p.Compute(shader.Uniforms{"scale": 1}))
	out, err := p.ReadTarget()
	require.NoError(t, err)
	assert.Equal(t, float32(10), f32At(out, 0))

	_, err = store.Insert(points.Point{ID: "c", X: 0, Y: 0, Radius: 1})
	require.NoError(t, err)
	_, err = store.Insert(points.Point{ID: "b", X: 30, Y: 40, Radius: 1})
	require.NoError(t, err)
	require.NoError(t, p.Compute(shader.Uniforms{"scale": 1}))
	out, err = p.ReadTarget()
	require.NoError(t, err)
	assert.Equal(t, float32(30), f32At(out, 32))
	assert.Empty(t, r.Errors())

	p.Release()
	store.Release(r)
	assert.Equal(t, 0, r.LiveBuffers())
}

const numericCompute = `
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
    out[gid.x].slot = record_point(gid.x);
}
`

type numericKind struct{ Defaults }

func (numericKind) Key() string { return "test/numeric" }

func (numericKind) SourceFields() []data.FieldSpec {
	return []data.FieldSpec{{Name: "point", Type: data.FieldUint32, Components: 1}}
}

func (numericKind) TargetStruct() Target {
	return Target{Struct: "Index", Source: "struct Index {\n    slot: u32,\n}", Stride: 4}
}

func (numericKind) ComputeSource() string { return numericCompute }

func TestRecordsInclude(t *testing.T) {
	layout, err := data.ResolveLayout(nil,
		data.FieldSpec{Name: "pos", Type: data.FieldFloat32, Components: 2},
		data.FieldSpec{Name: "ends", Type: data.FieldPointRef, Components: 3},
		data.FieldSpec{Name: "tint", Type: data.FieldColor},
		data.FieldSpec{Name: "alpha", Type: data.FieldUint8Norm, Components: 2},
		data.FieldSpec{Name: "level-of", Type: data.FieldInt32, Components: 1},
	)
	require.NoError(t, err)

	src := RecordsInclude(layout).Source
	assert.Contains(t, src, "const RECORD_STRIDE: u32 = 8u;")
	assert.Contains(t, src, "fn record_pos(i: u32) -> vec2<f32> {\n    return vec2<f32>(bitcast<f32>(record_word(i, 0u)), bitcast<f32>(record_word(i, 1u)));")
	assert.Contains(t, src, "fn record_ends(i: u32) -> vec3<u32> {\n    return vec3<u32>(record_word(i, 2u), record_word(i, 3u), record_word(i, 4u));")
	assert.Contains(t, src, "fn record_tint(i: u32) -> vec4<f32> {\n    return unpack4x8unorm(record_word(i, 5u));")
	assert.Contains(t, src, "fn record_alpha(i: u32) -> vec2<f32> {\n    return unpack4x8unorm(record_word(i, 6u)).xy;")
	assert.Contains(t, src, "fn record_level_of(i: u32) -> i32 {\n    return bitcast<i32>(record_word(i, 7u));")
}
