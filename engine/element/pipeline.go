package element

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/data"
	"github.com/Carmen-Shannon/oxy-graph/engine/points"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrContractViolation marks structural errors in a kind or its inputs, such as a target stride
// that does not match the WGSL struct. They are programming errors and fail construction.
var ErrContractViolation = errors.New("contract violation")

// paramsStruct is the name of the uniform struct every compute source declares.
const paramsStruct = "Params"

// elementPipeline is the implementation of the Pipeline interface.
type elementPipeline struct {
	mu *sync.Mutex

	r     renderer.Renderer
	kind  Kind
	store points.Store
	label string

	layout   data.Layout
	count    int
	entries  map[any]uint32
	records  map[any]uint32
	ids      []any
	warnings []data.Warning

	pipelineKey   string
	computeShader shader.Shader
	params        shader.StructLayout
	provider      bind_group_provider.BindGroupProvider
	targetSize    uint64

	paramsBinding, targetBinding, pointsBinding int
	usesPoints                                  bool
	pointsGeneration                            uint64

	// builder state
	pool         worker.DynamicWorkerPool
	lookups      map[string]data.Lookup
	colors       data.ColorResolver
	extraBuffers map[shader.AnnotationArg]*wgpu.Buffer
}

// Pipeline is the compute stage of one record set. It owns the packed source buffer and the
// target buffer derived from it.
type Pipeline interface {
	// Label returns the name used for GPU objects and warnings.
	Label() string

	// Kind returns the kind the pipeline was built for.
	Kind() Kind

	// Layout returns the packed layout of the source records.
	Layout() data.Layout

	// Count returns the number of records. The target holds exactly Count structs.
	Count() int

	// Compute runs the compute shader once over every record in its own compute frame.
	// It fully overwrites the target buffer.
	//
	// Parameters:
	//   - uniforms: values for the Params struct; unknown names are ignored and count is set automatically
	//
	// Returns:
	//   - error: an error if the dispatch fails
	Compute(uniforms shader.Uniforms) error

	// Dispatch encodes the compute pass into the compute frame opened by the caller with
	// renderer.BeginComputeFrame. Scenes use it to batch every pipeline into one submission.
	//
	// Parameters:
	//   - uniforms: values for the Params struct
	//
	// Returns:
	//   - error: an error if the dispatch fails
	Dispatch(uniforms shader.Uniforms) error

	// EntryPointID returns the point index recorded for an element id.
	//
	// Parameters:
	//   - id: the element id
	//
	// Returns:
	//   - uint32: the point index
	//   - bool: false if the id is unknown or its point did not resolve
	EntryPointID(id any) (uint32, bool)

	// RecordIndex returns the position of the record with the given id.
	RecordIndex(id any) (uint32, bool)

	// RecordID returns the id of the record at index, as it appeared in the record.
	//
	// Parameters:
	//   - index: the record position
	//
	// Returns:
	//   - any: the id
	//   - bool: false if index is out of range or the record had no usable id
	RecordID(index uint32) (any, bool)

	// Target returns the target buffer, nil when Count is zero.
	Target() *wgpu.Buffer

	// TargetSize returns the size of the target buffer in bytes.
	TargetSize() uint64

	// ReadTarget copies the target buffer back to the host.
	//
	// Returns:
	//   - []byte: Count * stride bytes
	//   - error: an error if the readback fails
	ReadTarget() ([]byte, error)

	// Shader returns the compute shader.
	Shader() shader.Shader

	// PipelineKey returns the cache key of the compute pipeline.
	PipelineKey() string

	// Warnings returns the data problems found while packing, in record order.
	Warnings() []data.Warning

	// Release frees the GPU buffers of the pipeline. The cached compute pipeline is kept.
	Release()
}

var _ Pipeline = &elementPipeline{}

// New builds the element pipeline of a record set. Construction packs the records, uploads
// them, allocates the target buffer and compiles or reuses the compute pipeline, in that order.
// An empty record set is valid and allocates nothing.
//
// Parameters:
//   - r: the renderer that owns the GPU objects
//   - kind: the element kind
//   - store: the shared point store, may be nil for kinds that do not bind points
//   - records: the source records
//   - options: builder options
//
// Returns:
//   - Pipeline: the pipeline
//   - error: an error wrapping ErrContractViolation for structural problems, or the renderer error
func New(r renderer.Renderer, kind Kind, store points.Store, records []data.Record, options ...PipelineBuilderOption) (Pipeline, error) {
	p := &elementPipeline{
		mu:           &sync.Mutex{},
		r:            r,
		kind:         kind,
		store:        store,
		label:        kind.Key(),
		entries:      make(map[any]uint32),
		records:      make(map[any]uint32),
		lookups:      make(map[string]data.Lookup),
		extraBuffers: make(map[shader.AnnotationArg]*wgpu.Buffer),
	}
	for _, option := range options {
		option(p)
	}

	packed, err := p.pack(records)
	if err != nil {
		return nil, err
	}
	if err := p.buildShader(); err != nil {
		return nil, err
	}
	if p.count == 0 {
		return p, nil
	}
	if err := p.upload(packed); err != nil {
		p.Release()
		return nil, err
	}
	return p, nil
}

// pack resolves the layout and packs the records, filling the id maps from the visitor.
func (p *elementPipeline) pack(records []data.Record) (data.PackedBuffer, error) {
	layout, err := data.ResolveLayout(records, p.kind.SourceFields()...)
	if err != nil {
		return data.PackedBuffer{}, fmt.Errorf("element: %s: %w", p.label, err)
	}
	p.layout = layout
	p.count = len(records)
	p.ids = make([]any, len(records))

	opts := []data.PackerBuilderOption{data.WithColorParser(p.colors)}
	if p.pool != nil {
		opts = append(opts, data.WithWorkerPool(p.pool))
	}
	if p.store != nil {
		opts = append(opts, data.WithPointLookup(p.store.Lookup))
	}
	for name, lookup := range p.lookups {
		opts = append(opts, data.WithLookup(name, lookup))
	}

	idField, pointField := p.kind.IDField(), p.kind.PointField()
	pointDesc, hasPoint := layout.Field(pointField)
	var idWarnings []data.Warning
	packed, warnings := data.NewPacker(layout, opts...).Pack(records, func(index int, record data.Record) {
		id, ok := data.NormalizeID(record[idField])
		if !ok {
			if raw := record[idField]; raw != nil {
				idWarnings = append(idWarnings, data.Warning{Record: index, Field: idField, Kind: data.WarnCoercion,
					Message: fmt.Sprintf("cannot use %v (%T) as an id", raw, raw)})
			}
			return
		}
		p.records[id] = uint32(index)
		p.ids[index] = record[idField]
		if !hasPoint {
			return
		}
		if idx, ok := p.resolvePoint(pointDesc, record[pointDesc.Source]); ok && idx != data.NoIndex {
			p.entries[id] = idx
		}
	})
	warnings = append(warnings, idWarnings...)
	p.warnings = warnings
	if len(warnings) > 0 {
		common.Logger().Warn("records packed with warnings", "pipeline", p.label, "records", p.count, "warnings", len(warnings))
	}
	return packed, nil
}

// resolvePoint maps the point field of a record to a point index. References go through the
// same lookup the packer used; numeric values are taken as indices.
func (p *elementPipeline) resolvePoint(desc data.FieldDescriptor, v any) (uint32, bool) {
	if desc.Type != data.FieldPointRef {
		f, ok := common.ToFloat64(v)
		if !ok || f < 0 || f >= float64(data.NoIndex) || f != math.Trunc(f) {
			return data.NoIndex, false
		}
		return uint32(f), true
	}

	lookup, ok := p.lookups[desc.Lookup]
	if !ok && desc.Lookup == "" && p.store != nil {
		lookup = p.store.Lookup
	}
	if lookup == nil {
		return data.NoIndex, false
	}
	switch tuple := v.(type) {
	case []any:
		if len(tuple) == 0 {
			return data.NoIndex, false
		}
		v = tuple[0]
	case []string:
		if len(tuple) == 0 {
			return data.NoIndex, false
		}
		v = tuple[0]
	}
	return lookup(v)
}

// buildShader compiles the compute shader, or takes it from the cached pipeline, and checks
// the declared target stride against the WGSL layout.
func (p *elementPipeline) buildShader() error {
	p.pipelineKey = pipelineKey(p.kind, p.layout)
	if cached := p.r.Pipeline(p.pipelineKey); cached != nil {
		p.computeShader = cached.Shader(shader.ShaderTypeCompute)
		common.Logger().Debug("compute pipeline cache hit", "key", p.pipelineKey)
	} else {
		s, err := shader.NewShaderFromSource(p.pipelineKey, shader.ShaderTypeCompute, p.kind.ComputeSource(),
			shader.WithInclude(RecordsInclude(p.layout)),
			shader.WithInclude(p.kind.TargetStruct().Include()),
		)
		if err != nil {
			return fmt.Errorf("element: %s: %w", p.label, err)
		}
		p.computeShader = s
	}

	target := p.kind.TargetStruct()
	layout, ok := p.computeShader.StructLayout(target.Struct)
	if !ok {
		return fmt.Errorf("element: %s: target struct %q is not declared: %w", p.label, target.Struct, ErrContractViolation)
	}
	if layout.Size != uint64(target.Stride) {
		return fmt.Errorf("element: %s: target stride %d does not match WGSL size %d of %s: %w",
			p.label, target.Stride, layout.Size, target.Struct, ErrContractViolation)
	}
	p.params, ok = p.computeShader.StructLayout(paramsStruct)
	if !ok {
		return fmt.Errorf("element: %s: compute source declares no %s struct: %w", p.label, paramsStruct, ErrContractViolation)
	}

	var found bool
	if _, p.paramsBinding, found = p.computeShader.Binding(shader.AnnotationArgParams); !found {
		return fmt.Errorf("element: %s: no params binding: %w", p.label, ErrContractViolation)
	}
	if _, p.targetBinding, found = p.computeShader.Binding(shader.AnnotationArgTarget); !found {
		return fmt.Errorf("element: %s: no target binding: %w", p.label, ErrContractViolation)
	}
	if _, _, found = p.computeShader.Binding(shader.AnnotationArgRecordBuffer); !found {
		return fmt.Errorf("element: %s: no records binding: %w", p.label, ErrContractViolation)
	}
	_, p.pointsBinding, p.usesPoints = p.computeShader.Binding(shader.AnnotationArgPoints)
	if p.usesPoints && p.store == nil {
		return fmt.Errorf("element: %s: shader binds points but no store was given: %w", p.label, ErrContractViolation)
	}
	return nil
}

// upload creates the buffers and the bind group, and registers the compute pipeline.
func (p *elementPipeline) upload(packed data.PackedBuffer) error {
	if packed.Count() != p.count {
		return fmt.Errorf("element: %s: packed %d records for %d inputs: %w", p.label, packed.Count(), p.count, ErrContractViolation)
	}
	if p.r.Pipeline(p.pipelineKey) == nil {
		cp := pipeline.NewPipeline(p.pipelineKey, pipeline.PipelineTypeCompute, pipeline.WithComputeShader(p.computeShader))
		if err := p.r.RegisterPipelines(cp); err != nil {
			return fmt.Errorf("element: %s: failed to register compute pipeline: %w", p.label, err)
		}
	}

	p.provider = bind_group_provider.NewBindGroupProvider(p.label + "/compute")
	_, recordsBinding, _ := p.computeShader.Binding(shader.AnnotationArgRecordBuffer)
	if _, err := p.r.InitBuffer(p.provider, p.paramsBinding, wgpu.BufferUsageUniform, p.params.Size, nil); err != nil {
		return fmt.Errorf("element: %s: params buffer: %w", p.label, err)
	}
	if _, err := p.r.InitBuffer(p.provider, recordsBinding, wgpu.BufferUsageStorage, uint64(len(packed.Bytes)), packed.Bytes); err != nil {
		return fmt.Errorf("element: %s: records buffer: %w", p.label, err)
	}
	p.targetSize = uint64(p.count) * uint64(p.kind.TargetStruct().Stride)
	if _, err := p.r.InitBuffer(p.provider, p.targetBinding, wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc, p.targetSize, nil); err != nil {
		return fmt.Errorf("element: %s: target buffer: %w", p.label, err)
	}
	for identity, buf := range p.extraBuffers {
		if _, binding, ok := p.computeShader.Binding(identity); ok && buf != nil {
			p.provider.SetSharedBuffer(binding, buf)
		}
	}
	return p.bind()
}

// bind attaches the current point mirror and creates the bind group.
func (p *elementPipeline) bind() error {
	if p.usesPoints {
		mirror, err := p.store.Mirror(p.r)
		if err != nil {
			return fmt.Errorf("element: %s: %w", p.label, err)
		}
		p.provider.SetSharedBuffer(p.pointsBinding, mirror)
		p.pointsGeneration = p.store.Generation()
	}
	cp := p.r.Pipeline(p.pipelineKey)
	if err := p.r.InitBindGroup(p.provider, cp.BindGroupLayoutDescriptor(0), nil, nil); err != nil {
		return fmt.Errorf("element: %s: failed to create bind group: %w", p.label, err)
	}
	return nil
}

func (p *elementPipeline) Label() string {
	return p.label
}

func (p *elementPipeline) Kind() Kind {
	return p.kind
}

func (p *elementPipeline) Layout() data.Layout {
	return p.layout
}

func (p *elementPipeline) Count() int {
	return p.count
}

func (p *elementPipeline) Compute(uniforms shader.Uniforms) error {
	if p.count == 0 {
		return nil
	}
	if err := p.r.BeginComputeFrame(); err != nil {
		return fmt.Errorf("element: %s: %w", p.label, err)
	}
	defer p.r.EndComputeFrame()
	return p.Dispatch(uniforms)
}

func (p *elementPipeline) Dispatch(uniforms shader.Uniforms) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.count == 0 {
		return nil
	}
	if p.provider == nil || p.provider.BindGroup() == nil {
		return fmt.Errorf("element: %s: dispatch after release", p.label)
	}
	if p.usesPoints {
		mirror, err := p.store.Mirror(p.r)
		if err != nil {
			return fmt.Errorf("element: %s: %w", p.label, err)
		}
		if p.store.Generation() != p.pointsGeneration || p.provider.Buffer(p.pointsBinding) != mirror {
			if err := p.bind(); err != nil {
				return err
			}
		}
	}

	values := make(shader.Uniforms, len(uniforms)+1)
	for k, v := range uniforms {
		values[k] = v
	}
	values["count"] = uint32(p.count)
	p.r.WriteBuffers([]bind_group_provider.BufferWrite{{
		Provider: p.provider,
		Binding:  p.paramsBinding,
		Data:     p.params.Pack(values),
	}})

	workGroupSize := max(p.computeShader.WorkgroupSize()[0], 1)
	groups := (uint32(p.count) + workGroupSize - 1) / workGroupSize
	if err := p.r.DispatchCompute(p.pipelineKey, p.provider, [3]uint32{groups, 1, 1}); err != nil {
		return fmt.Errorf("element: %s: %w", p.label, err)
	}
	return nil
}

func (p *elementPipeline) EntryPointID(id any) (uint32, bool) {
	key, ok := data.NormalizeID(id)
	if !ok {
		return data.NoIndex, false
	}
	idx, ok := p.entries[key]
	return idx, ok
}

func (p *elementPipeline) RecordID(index uint32) (any, bool) {
	if int(index) >= len(p.ids) || p.ids[index] == nil {
		return nil, false
	}
	return p.ids[index], true
}

func (p *elementPipeline) RecordIndex(id any) (uint32, bool) {
	key, ok := data.NormalizeID(id)
	if !ok {
		return data.NoIndex, false
	}
	idx, ok := p.records[key]
	return idx, ok
}

func (p *elementPipeline) Target() *wgpu.Buffer {
	if p.provider == nil {
		return nil
	}
	return p.provider.Buffer(p.targetBinding)
}

func (p *elementPipeline) TargetSize() uint64 {
	return p.targetSize
}

func (p *elementPipeline) ReadTarget() ([]byte, error) {
	target := p.Target()
	if target == nil {
		return nil, nil
	}
	out, err := p.r.ReadBuffer(target, p.targetSize)
	if err != nil {
		return nil, fmt.Errorf("element: %s: failed to read target: %w", p.label, err)
	}
	return out, nil
}

func (p *elementPipeline) Shader() shader.Shader {
	return p.computeShader
}

func (p *elementPipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *elementPipeline) Warnings() []data.Warning {
	return append([]data.Warning(nil), p.warnings...)
}

func (p *elementPipeline) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.provider != nil {
		p.r.ReleaseBindGroup(p.provider)
	}
}

// pipelineKey combines the kind key with a hash of the layout, since the generated accessors
// and therefore the compiled shader depend on it.
func pipelineKey(kind Kind, layout data.Layout) string {
	h := fnv.New64a()
	h.Write([]byte(layout.Signature()))
	return fmt.Sprintf("%s/%016x", kind.Key(), h.Sum64())
}
