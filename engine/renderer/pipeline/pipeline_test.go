package pipeline

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quadSource = `
struct Params { viewProj: mat4x4<f32>, }
struct Tint { color: vec4<f32>, }
@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(2) var<uniform> tint: Tint;

struct Corner { @location(0) corner: vec2<f32>, }

@vertex fn vs_main(in: Corner) -> @builtin(position) vec4<f32> {
    return params.viewProj * vec4<f32>(in.corner, 0.0, 1.0);
}

@fragment fn fs_main() -> @location(0) vec4<f32> {
    return params.viewProj[0] * tint.color;
}
`

func TestPipeline_MergedLayouts(t *testing.T) {
	vs, err := shader.NewShaderFromSource("quad/vs", shader.ShaderTypeVertex, quadSource)
	require.NoError(t, err)
	fs, err := shader.NewShaderFromSource("quad/fs", shader.ShaderTypeFragment, quadSource)
	require.NoError(t, err)

	p := NewPipeline("quad", PipelineTypeRender, WithVertexShader(vs), WithFragmentShader(fs))
	desc := p.BindGroupLayoutDescriptor(0)
	require.Len(t, desc.Entries, 2)
	assert.Equal(t, uint32(0), desc.Entries[0].Binding)
	assert.Equal(t, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, desc.Entries[0].Visibility)
	assert.Equal(t, uint32(2), desc.Entries[1].Binding)

	// the shader's own descriptor is not mutated by the merge
	assert.Equal(t, wgpu.ShaderStageVertex, vs.BindGroupLayoutDescriptor(0).Entries[0].Visibility)
}

func TestPipeline_PickingDisablesBlend(t *testing.T) {
	p := NewPipeline("pick", PipelineTypeRender, WithRenderTarget(RenderTargetPicking), WithBlendEnabled(true))
	assert.Equal(t, RenderTargetPicking, p.RenderTarget())
	assert.False(t, p.BlendEnabled())
	assert.Nil(t, p.BlendState())

	surface := NewPipeline("draw", PipelineTypeRender)
	assert.Equal(t, RenderTargetSurface, surface.RenderTarget())
	assert.NotNil(t, surface.BlendState())
}

func TestPipeline_ComputeLayouts(t *testing.T) {
	cs, err := shader.NewShaderFromSource("c", shader.ShaderTypeCompute, `
@group(0) @binding(0) var<storage, read_write> out: array<u32>;
@compute @workgroup_size(64) fn main() { out[0] = 1u; }`)
	require.NoError(t, err)
	p := NewPipeline("c", PipelineTypeCompute, WithComputeShader(cs))
	assert.Len(t, p.BindGroupLayoutDescriptor(0).Entries, 1)
	assert.Nil(t, p.Pipeline().(*wgpu.ComputePipeline))
}
