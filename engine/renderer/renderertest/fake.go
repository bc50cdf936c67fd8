// Package renderertest provides an in-memory Renderer for tests. Buffers live in host memory,
// compute dispatches run registered CPU kernels, and draws are recorded instead of rasterized.
package renderertest

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// Kernel is the CPU stand-in for a compute shader. It reads and writes the provider's buffers
// through Fake.Bytes.
type Kernel func(f *Fake, p pipeline.Pipeline, provider bind_group_provider.BindGroupProvider, workGroups [3]uint32) error

// DrawRecord is one recorded DrawCall.
type DrawRecord struct {
	Key           string
	InstanceCount uint32
	MinDepth      float32
	MaxDepth      float32
	Picking       bool
	Groups        []bind_group_provider.BindGroupProvider
}

// Rasterizer resolves which instance of a picking draw covers pixel (x, y). It returns the
// encoded texel, the fragment depth, and whether the draw covers the pixel at all.
type Rasterizer func(d DrawRecord, x, y int) ([4]byte, float32, bool)

type kernelEntry struct {
	prefix string
	kernel Kernel
}

// Fake is an in-memory renderer.Renderer.
type Fake struct {
	mu *sync.Mutex

	width, height int
	pipelines     map[string]pipeline.Pipeline
	memory        map[*wgpu.Buffer][]byte
	kernels       []kernelEntry
	rasterize     Rasterizer

	inCompute bool
	inFrame   bool
	picking   bool

	draws        []DrawRecord
	pickingDraws []DrawRecord
	dispatches   []string
	writes       int
	frames       int
	presents     int
	released     int
	errs         []error
}

var _ renderer.Renderer = &Fake{}

// New creates a Fake with a width x height surface.
func New(width, height int) *Fake {
	return &Fake{
		mu:        &sync.Mutex{},
		width:     width,
		height:    height,
		pipelines: make(map[string]pipeline.Pipeline),
		memory:    make(map[*wgpu.Buffer][]byte),
	}
}

// RegisterKernel runs k for every dispatch whose pipeline key starts with prefix. The longest
// matching prefix wins.
func (f *Fake) RegisterKernel(prefix string, k Kernel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kernels = append(f.kernels, kernelEntry{prefix: prefix, kernel: k})
}

// SetRasterizer installs the hook used by ReadPickingPixel.
func (f *Fake) SetRasterizer(r Rasterizer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rasterize = r
}

// Bytes returns the live backing memory of buf, or nil if buf is unknown or released.
func (f *Fake) Bytes(buf *wgpu.Buffer) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.memory[buf]
}

// Draws returns the draw calls recorded since the last Reset.
func (f *Fake) Draws() []DrawRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]DrawRecord(nil), f.draws...)
}

// Dispatches returns the pipeline keys dispatched since the last Reset.
func (f *Fake) Dispatches() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.dispatches...)
}

// Frames returns the number of completed render frames and presents.
func (f *Fake) Frames() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames, f.presents
}

// Writes returns the number of non-empty buffer writes.
func (f *Fake) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

// LiveBuffers returns the number of buffers allocated and not yet released.
func (f *Fake) LiveBuffers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.memory)
}

// Released returns the number of buffers released.
func (f *Fake) Released() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

// Errors returns misuse detected by the fake, such as out of range writes.
func (f *Fake) Errors() []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]error(nil), f.errs...)
}

// Reset clears the recorded draws, dispatches and counters. Buffers are kept.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draws = nil
	f.dispatches = nil
	f.writes, f.frames, f.presents = 0, 0, 0
}

func (f *Fake) Pipeline(key string) pipeline.Pipeline {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pipelines[key]
}

func (f *Fake) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range pipelines {
		if _, ok := f.pipelines[p.PipelineKey()]; !ok {
			f.pipelines[p.PipelineKey()] = p
		}
	}
	return nil
}

func (f *Fake) Resize(width, height int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if width > 0 && height > 0 {
		f.width, f.height = width, height
	}
}

func (f *Fake) Size() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.width, f.height
}

func (f *Fake) SetPresentMode(renderer.PresentMode) {}

func (f *Fake) alloc(size uint64) *wgpu.Buffer {
	buf := new(wgpu.Buffer)
	f.memory[buf] = make([]byte, max((size+3)&^3, 4))
	return buf
}

func (f *Fake) release(buf *wgpu.Buffer) {
	if _, ok := f.memory[buf]; ok {
		delete(f.memory, buf)
		f.released++
	}
}

func (f *Fake) InitMeshBuffers(provider bind_group_provider.BindGroupProvider, vertexData, indexData []byte, indexCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	vb := f.alloc(uint64(len(vertexData)))
	copy(f.memory[vb], vertexData)
	ib := f.alloc(uint64(len(indexData)))
	copy(f.memory[ib], indexData)
	provider.SetVertexBuffer(vb)
	provider.SetIndexBuffer(ib)
	provider.SetIndexCount(indexCount)
	return nil
}

func (f *Fake) InitBuffer(provider bind_group_provider.BindGroupProvider, binding int, usage wgpu.BufferUsage, size uint64, data []byte) (*wgpu.Buffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	buf := f.alloc(max(size, uint64(len(data))))
	copy(f.memory[buf], data)
	if old := provider.Buffer(binding); old != nil && !provider.Shared(binding) {
		f.release(old)
	}
	provider.SetBuffer(binding, buf)
	return buf, nil
}

func (f *Fake) InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor, bufferUsageOverrides map[int]wgpu.BufferUsage, bufferSizeOverrides map[int]uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(descriptor.Entries) == 0 {
		return nil
	}
	for _, entry := range descriptor.Entries {
		binding := int(entry.Binding)
		if entry.Buffer.Type == wgpu.BufferBindingTypeUndefined {
			return fmt.Errorf("binding %d of %s is not a buffer binding", binding, provider.Label())
		}
		buf := provider.Buffer(binding)
		if buf == nil {
			size := entry.Buffer.MinBindingSize
			if s, ok := bufferSizeOverrides[binding]; ok {
				size = s
			}
			provider.SetBuffer(binding, f.alloc(size))
			continue
		}
		if _, ok := f.memory[buf]; !ok {
			return fmt.Errorf("binding %d of %s references a released buffer", binding, provider.Label())
		}
	}
	if provider.BindGroupLayout() == nil {
		provider.SetBindGroupLayout(new(wgpu.BindGroupLayout))
	}
	provider.SetBindGroup(new(wgpu.BindGroup))
	return nil
}

func (f *Fake) WriteBuffers(writes []bind_group_provider.BufferWrite) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range writes {
		buf := w.Provider.Buffer(w.Binding)
		mem, ok := f.memory[buf]
		if buf == nil || len(w.Data) == 0 {
			continue
		}
		if !ok || w.Offset+uint64(len(w.Data)) > uint64(len(mem)) {
			f.errs = append(f.errs, fmt.Errorf("write of %d bytes at %d to %s binding %d out of range", len(w.Data), w.Offset, w.Provider.Label(), w.Binding))
			continue
		}
		copy(mem[w.Offset:], w.Data)
		f.writes++
	}
}

func (f *Fake) ReadBuffer(buf *wgpu.Buffer, size uint64) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mem, ok := f.memory[buf]
	if !ok {
		return nil, errors.New("read of unknown buffer")
	}
	if size > uint64(len(mem)) {
		return nil, fmt.Errorf("read of %d bytes from a %d byte buffer", size, len(mem))
	}
	return append([]byte(nil), mem[:size]...), nil
}

func (f *Fake) ReleaseBuffer(buf *wgpu.Buffer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.release(buf)
}

func (f *Fake) ReleaseBindGroup(provider bind_group_provider.BindGroupProvider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for binding, buf := range provider.Buffers() {
		if !provider.Shared(binding) {
			f.release(buf)
		}
	}
	f.release(provider.VertexBuffer())
	f.release(provider.IndexBuffer())
	provider.Reset()
}

func (f *Fake) BeginComputeFrame() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inCompute {
		return errors.New("compute frame already open")
	}
	f.inCompute = true
	return nil
}

func (f *Fake) DispatchCompute(pipelineKey string, computeProvider bind_group_provider.BindGroupProvider, workGroupCount [3]uint32) error {
	f.mu.Lock()
	if !f.inCompute {
		f.mu.Unlock()
		return errors.New("dispatch outside of a compute frame")
	}
	p, ok := f.pipelines[pipelineKey]
	if !ok {
		f.mu.Unlock()
		return fmt.Errorf("compute pipeline %q: %w", pipelineKey, renderer.ErrPipelineNotFound)
	}
	f.dispatches = append(f.dispatches, pipelineKey)
	var kernel Kernel
	longest := -1
	for _, k := range f.kernels {
		if strings.HasPrefix(pipelineKey, k.prefix) && len(k.prefix) > longest {
			kernel, longest = k.kernel, len(k.prefix)
		}
	}
	f.mu.Unlock()

	if kernel == nil {
		return nil
	}
	return kernel(f, p, computeProvider, workGroupCount)
}

func (f *Fake) EndComputeFrame() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inCompute = false
}

func (f *Fake) BeginFrame() error {
	return f.begin(false)
}

func (f *Fake) BeginPickingFrame() error {
	return f.begin(true)
}

func (f *Fake) begin(picking bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inFrame {
		return errors.New("previous frame not ended")
	}
	f.inFrame, f.picking = true, picking
	if picking {
		f.pickingDraws = nil
	}
	return nil
}

func (f *Fake) DrawCall(pipelineKey string, meshProvider bind_group_provider.BindGroupProvider, instanceCount uint32, bindGroups []bind_group_provider.BindGroupProvider, minDepth, maxDepth float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.inFrame {
		return errors.New("draw call outside of a frame")
	}
	p, ok := f.pipelines[pipelineKey]
	if !ok {
		return fmt.Errorf("render pipeline %q: %w", pipelineKey, renderer.ErrPipelineNotFound)
	}
	if (p.RenderTarget() == pipeline.RenderTargetPicking) != f.picking {
		return fmt.Errorf("pipeline %q targets a different attachment than the open frame", pipelineKey)
	}
	if instanceCount == 0 {
		return nil
	}
	d := DrawRecord{
		Key:           pipelineKey,
		InstanceCount: instanceCount,
		MinDepth:      minDepth,
		MaxDepth:      maxDepth,
		Picking:       f.picking,
		Groups:        append([]bind_group_provider.BindGroupProvider(nil), bindGroups...),
	}
	f.draws = append(f.draws, d)
	if f.picking {
		f.pickingDraws = append(f.pickingDraws, d)
	}
	return nil
}

func (f *Fake) EndFrame() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inFrame {
		f.inFrame = false
		f.frames++
	}
}

func (f *Fake) Present() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.picking {
		f.presents++
	}
}

// ReadPickingPixel returns the texel of the nearest picking draw covering (x, y), mirroring a
// LessEqual depth test. Pixels no draw covers read as zero.
func (f *Fake) ReadPickingPixel(x, y int) ([4]byte, error) {
	f.mu.Lock()
	var out [4]byte
	if x < 0 || y < 0 || x >= f.width || y >= f.height {
		f.mu.Unlock()
		return out, fmt.Errorf("pixel (%d, %d) outside of %dx%d surface", x, y, f.width, f.height)
	}
	rasterize, draws := f.rasterize, append([]DrawRecord(nil), f.pickingDraws...)
	f.mu.Unlock()

	// the rasterizer may read buffers through Bytes
	if rasterize == nil {
		return out, nil
	}
	best := float32(2)
	for _, d := range draws {
		texel, depth, ok := rasterize(d, x, y)
		if ok && depth <= best {
			out, best = texel, depth
		}
	}
	return out, nil
}

func (f *Fake) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.pipelines)
}
