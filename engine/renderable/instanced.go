package renderable

import (
	"fmt"
	"maps"
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/element"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// renderParamsStruct is the WGSL struct name of the per draw uniform.
const renderParamsStruct = "RenderParams"

// Style is a way of drawing the target structs of an element pipeline.
//
// The source declares the per draw uniform with
// "//@oxy:group 0 B storage_uniform params render_params" and the instances with
// "//@oxy:group 0 B storage_read instances array<target>". The vertex entry reads instance
// data by @builtin(instance_index); mesh vertices arrive as "@location(0) corner: vec2<f32>".
type Style struct {
	// Key identifies the style and prefixes the render pipeline keys.
	Key string
	// Source is the WGSL holding the vertex, fragment and picking entry points.
	Source string
	// VertexEntry defaults to the first @vertex function.
	VertexEntry string
	// FragmentEntry is the fragment entry of ModeNormal. It defaults to the first @fragment function.
	FragmentEntry string
	// PickingEntry is the fragment entry of ModePicking.
	PickingEntry string
	// Mesh is instanced once per element.
	Mesh Mesh
	// Includes are registered in addition to render_params, picking and target.
	Includes []shader.Include
}

// instanced is the implementation of the Renderable interface.
type instanced struct {
	*Base
	stateMu *sync.Mutex

	r      renderer.Renderer
	label  string
	source element.Pipeline
	style  Style

	keys             [2]string
	shaders          [2][2]shader.Shader
	params           shader.StructLayout
	paramsBinding    int
	instancesBinding int
	providers        [2]bind_group_provider.BindGroupProvider
	mesh             bind_group_provider.BindGroupProvider
	overrides        shader.Uniforms
}

// Renderable is an element set drawn with one instanced draw per frame, one instance per record.
type Renderable interface {
	// Enabled reports whether the renderable draws.
	Enabled() bool
	// SetEnabled turns drawing on or off.
	SetEnabled(enabled bool)
	// DepthRange returns the depth window draws are mapped into.
	DepthRange() DepthRange
	// SetDepthRange sets the depth window draws are mapped into.
	SetDepthRange(d DepthRange)
	// PickingBase returns the picking id of instance 0.
	PickingBase() uint32
	// SetPickingBase sets the picking id of instance 0.
	SetPickingBase(base uint32)

	// Label returns the name used in logs and GPU labels.
	Label() string

	// Count returns the number of instances drawn.
	Count() int

	// Source returns the element pipeline whose target is drawn.
	Source() element.Pipeline

	// SetUniforms replaces the per renderable uniform overrides. Overrides win over the values
	// passed to Render and Dispatch.
	//
	// Parameters:
	//   - uniforms: the overrides, nil clears them
	SetUniforms(uniforms shader.Uniforms)

	// Uniforms returns a copy of the overrides.
	Uniforms() shader.Uniforms

	// Dispatch encodes the compute pass of the source pipeline into the open compute frame.
	//
	// Parameters:
	//   - uniforms: compute uniforms, merged with the overrides
	//
	// Returns:
	//   - error: an error if the dispatch fails
	Dispatch(uniforms shader.Uniforms) error

	// Render writes the per draw uniforms and encodes one instanced draw into the open frame.
	// Disabled or empty renderables draw nothing. Unknown uniform names are ignored.
	//
	// Parameters:
	//   - mode: ModeNormal or ModePicking, matching the frame the caller opened
	//   - uniforms: the frame uniforms, at least viewProj, viewport and time
	//
	// Returns:
	//   - error: an error if the draw fails
	Render(mode Mode, uniforms shader.Uniforms) error

	// Release frees the uniform buffers, bind groups and mesh. The source pipeline is not released.
	Release()
}

var _ Renderable = &instanced{}

// NewRenderable builds the render pipelines of style for the target of source and the buffers to
// draw it. The render pipelines are cached by style key, so every layer using a style shares them.
//
// Parameters:
//   - r: the renderer
//   - source: the element pipeline whose target buffer holds one instance per record
//   - style: the drawing style
//   - options: builder options
//
// Returns:
//   - Renderable: the renderable
//   - error: an error if a shader fails to parse or a GPU object cannot be created
func NewRenderable(r renderer.Renderer, source element.Pipeline, style Style, options ...RenderableBuilderOption) (Renderable, error) {
	ir := &instanced{
		Base:      NewBase(),
		stateMu:   &sync.Mutex{},
		r:         r,
		label:     source.Label() + "/" + style.Key,
		source:    source,
		style:     style,
		overrides: make(shader.Uniforms),
	}
	for _, option := range options {
		option(ir)
	}
	if len(ir.style.Mesh.Indices) == 0 {
		ir.style.Mesh = QuadMesh()
	}

	if err := ir.buildShaders(); err != nil {
		return nil, err
	}
	if source.Count() == 0 {
		return ir, nil
	}
	if err := ir.upload(); err != nil {
		ir.Release()
		return nil, err
	}
	return ir, nil
}

// buildShaders parses the vertex shader once and a fragment shader per mode, or takes them from
// cached pipelines.
func (ir *instanced) buildShaders() error {
	includes := []shader.ShaderBuilderOption{
		shader.WithInclude(RenderParamsInclude()),
		shader.WithInclude(PickingInclude()),
		shader.WithInclude(ir.source.Kind().TargetStruct().Include()),
	}
	for _, inc := range ir.style.Includes {
		includes = append(includes, shader.WithInclude(inc))
	}
	withEntry := func(entry string) []shader.ShaderBuilderOption {
		if entry == "" {
			return includes
		}
		return append(append([]shader.ShaderBuilderOption(nil), includes...), shader.WithEntryPoint(entry))
	}

	entries := [2]string{ir.style.FragmentEntry, ir.style.PickingEntry}
	var vs shader.Shader
	for _, mode := range []Mode{ModeNormal, ModePicking} {
		ir.keys[mode] = ir.style.Key + "/" + mode.String()
		if cached := ir.r.Pipeline(ir.keys[mode]); cached != nil {
			ir.shaders[mode] = [2]shader.Shader{cached.Shader(shader.ShaderTypeVertex), cached.Shader(shader.ShaderTypeFragment)}
			continue
		}
		if mode == ModePicking && entries[mode] == "" {
			return fmt.Errorf("renderable: style %s has no picking entry point", ir.style.Key)
		}
		if vs == nil {
			var err error
			vs, err = shader.NewShaderFromSource(ir.style.Key+"/vs", shader.ShaderTypeVertex, ir.style.Source, withEntry(ir.style.VertexEntry)...)
			if err != nil {
				return fmt.Errorf("renderable: %w", err)
			}
		}
		fs, err := shader.NewShaderFromSource(ir.keys[mode]+"/fs", shader.ShaderTypeFragment, ir.style.Source, withEntry(entries[mode])...)
		if err != nil {
			return fmt.Errorf("renderable: %w", err)
		}
		ir.shaders[mode] = [2]shader.Shader{vs, fs}
	}

	vertex := ir.shaders[ModeNormal][0]
	var ok bool
	if ir.params, ok = vertex.StructLayout(renderParamsStruct); !ok {
		return fmt.Errorf("renderable: style %s does not declare %s: %w", ir.style.Key, renderParamsStruct, element.ErrContractViolation)
	}
	if _, ir.paramsBinding, ok = vertex.Binding(shader.AnnotationArgRenderParams); !ok {
		return fmt.Errorf("renderable: style %s has no render_params binding: %w", ir.style.Key, element.ErrContractViolation)
	}
	if _, ir.instancesBinding, ok = vertex.Binding(shader.AnnotationArgTarget); !ok {
		return fmt.Errorf("renderable: style %s has no instances binding: %w", ir.style.Key, element.ErrContractViolation)
	}
	return nil
}

// upload registers the render pipelines and creates the mesh and per mode bind groups.
func (ir *instanced) upload() error {
	for _, mode := range []Mode{ModeNormal, ModePicking} {
		if ir.r.Pipeline(ir.keys[mode]) != nil {
			continue
		}
		target := pipeline.RenderTargetSurface
		if mode == ModePicking {
			target = pipeline.RenderTargetPicking
		}
		p := pipeline.NewPipeline(ir.keys[mode], pipeline.PipelineTypeRender,
			pipeline.WithVertexShader(ir.shaders[mode][0]),
			pipeline.WithFragmentShader(ir.shaders[mode][1]),
			pipeline.WithRenderTarget(target),
			pipeline.WithCullMode(wgpu.CullModeNone),
		)
		if err := ir.r.RegisterPipelines(p); err != nil {
			return fmt.Errorf("renderable: %s: %w", ir.label, err)
		}
	}

	ir.mesh = bind_group_provider.NewBindGroupProvider(ir.label + "/mesh")
	mesh := ir.style.Mesh
	if err := ir.r.InitMeshBuffers(ir.mesh, common.SliceToBytes(mesh.Vertices), common.SliceToBytes(mesh.Indices), len(mesh.Indices)); err != nil {
		return fmt.Errorf("renderable: %s: mesh: %w", ir.label, err)
	}

	for _, mode := range []Mode{ModeNormal, ModePicking} {
		provider := bind_group_provider.NewBindGroupProvider(ir.label + "/" + mode.String())
		if _, err := ir.r.InitBuffer(provider, ir.paramsBinding, wgpu.BufferUsageUniform, ir.params.Size, nil); err != nil {
			return fmt.Errorf("renderable: %s: params buffer: %w", ir.label, err)
		}
		provider.SetSharedBuffer(ir.instancesBinding, ir.source.Target())
		ir.providers[mode] = provider
		desc := ir.r.Pipeline(ir.keys[mode]).BindGroupLayoutDescriptor(0)
		if err := ir.r.InitBindGroup(provider, desc, nil, nil); err != nil {
			return fmt.Errorf("renderable: %s: bind group: %w", ir.label, err)
		}
	}
	return nil
}

func (ir *instanced) Label() string {
	return ir.label
}

func (ir *instanced) Count() int {
	return ir.source.Count()
}

func (ir *instanced) Source() element.Pipeline {
	return ir.source
}

func (ir *instanced) SetUniforms(uniforms shader.Uniforms) {
	ir.stateMu.Lock()
	defer ir.stateMu.Unlock()
	ir.overrides = maps.Clone(uniforms)
	if ir.overrides == nil {
		ir.overrides = make(shader.Uniforms)
	}
}

func (ir *instanced) Uniforms() shader.Uniforms {
	ir.stateMu.Lock()
	defer ir.stateMu.Unlock()
	return maps.Clone(ir.overrides)
}

func (ir *instanced) Dispatch(uniforms shader.Uniforms) error {
	ir.stateMu.Lock()
	values := maps.Clone(uniforms)
	if values == nil {
		values = make(shader.Uniforms)
	}
	maps.Copy(values, ir.overrides)
	ir.stateMu.Unlock()
	return ir.source.Dispatch(values)
}

func (ir *instanced) Render(mode Mode, uniforms shader.Uniforms) error {
	count := ir.source.Count()
	if !ir.Enabled() || count == 0 {
		return nil
	}
	if mode != ModeNormal && mode != ModePicking {
		return fmt.Errorf("renderable: %s: unknown mode %d", ir.label, mode)
	}

	defaults := DefaultRenderParams()
	values := defaults.Uniforms()
	maps.Copy(values, uniforms)
	ir.stateMu.Lock()
	maps.Copy(values, ir.overrides)
	provider, mesh := ir.providers[mode], ir.mesh
	ir.stateMu.Unlock()
	if provider == nil {
		return fmt.Errorf("renderable: %s: render after release", ir.label)
	}
	values["pickingBase"] = ir.PickingBase()
	values["curveSegments"] = uint32(ir.style.Mesh.Segments())

	ir.r.WriteBuffers([]bind_group_provider.BufferWrite{{
		Provider: provider,
		Binding:  ir.paramsBinding,
		Data:     ir.params.Pack(values),
	}})
	depth := ir.DepthRange()
	if err := ir.r.DrawCall(ir.keys[mode], mesh, uint32(count), []bind_group_provider.BindGroupProvider{provider}, depth.Near, depth.Far); err != nil {
		return fmt.Errorf("renderable: %s: %w", ir.label, err)
	}
	return nil
}

func (ir *instanced) Release() {
	ir.stateMu.Lock()
	defer ir.stateMu.Unlock()
	for mode, provider := range ir.providers {
		if provider != nil {
			ir.r.ReleaseBindGroup(provider)
			ir.providers[mode] = nil
		}
	}
	if ir.mesh != nil {
		ir.r.ReleaseBindGroup(ir.mesh)
		ir.mesh = nil
	}
}
