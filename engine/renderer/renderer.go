package renderer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-graph/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrPipelineNotFound is returned when a draw or dispatch names a pipeline key that was never registered.
var ErrPipelineNotFound = errors.New("pipeline not found")

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	pipelineCache map[string]pipeline.Pipeline

	backendType RendererBackendType
	backend     RendererBackend

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
	pendingMSAA          *MSAASampleCount
	clearColor           wgpu.Color
}

// Renderer defines the interface for the rendering system.
//
// The Renderer owns every GPU object: it caches pipelines by key, allocates and releases the buffers
// and bind groups referenced by BindGroupProviders, batches compute dispatches, and encodes the two
// kinds of render frame (the visible surface frame and the offscreen picking frame).
type Renderer interface {
	// Pipeline retrieves the cached Pipeline associated with the given key.
	// If the Pipeline does not exist, this will return nil.
	//
	// Parameters:
	//   - key: the unique identifier for the Pipeline to retrieve
	//
	// Returns:
	//   - pipeline.Pipeline: the Pipeline associated with the key, or nil if not found
	Pipeline(key string) pipeline.Pipeline

	// RegisterPipelines registers one or more pipelines by creating the corresponding GPU
	// pipeline objects (render or compute) via the backend, then caching them by PipelineKey.
	// Pipelines whose keys are already registered are skipped to avoid duplicate GPU resource creation.
	//
	// Parameters:
	//   - pipelines: the Pipelines to register
	//
	// Returns:
	//   - error: an error if pipeline creation fails
	RegisterPipelines(pipelines ...pipeline.Pipeline) error

	// Resize configures the underlying backend to handle a new surface size.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// Size returns the current surface size in pixels.
	//
	// Returns:
	//   - int: the width
	//   - int: the height
	Size() (int, int)

	// SetPresentMode sets the surface present mode. A call to Resize is required after changing
	// this for the new mode to take effect.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// InitMeshBuffers creates GPU vertex and index buffers from raw byte data and stores them
	// on the given BindGroupProvider for later use in draw calls.
	//
	// Parameters:
	//   - provider: the BindGroupProvider to store the created buffers on
	//   - vertexData: the raw vertex data bytes to upload to the GPU
	//   - indexData: the raw uint32 index data bytes to upload to the GPU
	//   - indexCount: the number of indices, used for draw calls
	//
	// Returns:
	//   - error: an error if buffer creation fails
	InitMeshBuffers(provider bind_group_provider.BindGroupProvider, vertexData, indexData []byte, indexCount int) error

	// InitBuffer allocates a new buffer for a binding, uploads data into it, and stores it on the
	// provider. A buffer previously owned by the provider at that binding is released.
	//
	// Parameters:
	//   - provider: the BindGroupProvider that owns the buffer
	//   - binding: the binding index
	//   - usage: the buffer usage, CopyDst is always added
	//   - size: the buffer size in bytes, raised to len(data) and rounded up to 4
	//   - data: the initial contents, may be nil
	//
	// Returns:
	//   - *wgpu.Buffer: the created buffer
	//   - error: an error if buffer creation fails
	InitBuffer(provider bind_group_provider.BindGroupProvider, binding int, usage wgpu.BufferUsage, size uint64, data []byte) (*wgpu.Buffer, error)

	// InitBindGroup creates the bind group described by descriptor and stores it on the provider.
	// Buffer bindings without a buffer get one sized from MinBindingSize (or the size override);
	// usage and size can be overridden per binding. A previous bind group on the provider is
	// released first, so calling it again after InitBuffer rebinds the new buffers.
	//
	// Parameters:
	//   - provider: the BindGroupProvider to store the created bind group on
	//   - descriptor: the layout descriptor defining the bind group entries
	//   - bufferUsageOverrides: additional buffer usage flags to OR into the derived usage, keyed by binding index (nil safe)
	//   - bufferSizeOverrides: custom buffer sizes to use instead of MinBindingSize, keyed by binding index (nil safe)
	//
	// Returns:
	//   - error: an error if bind group creation fails
	InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor, bufferUsageOverrides map[int]wgpu.BufferUsage, bufferSizeOverrides map[int]uint64) error

	// WriteBuffers writes all staged buffer writes to the GPU queue.
	//
	// Parameters:
	//   - writes: a slice of BufferWrite structs describing the data to write
	WriteBuffers(writes []bind_group_provider.BufferWrite)

	// ReadBuffer copies the first size bytes of buf back to host memory. It blocks until the GPU
	// has finished all submitted work touching buf. The buffer needs CopySrc usage.
	//
	// Parameters:
	//   - buf: the buffer to read
	//   - size: the number of bytes to read
	//
	// Returns:
	//   - []byte: the buffer contents
	//   - error: an error if the copy or mapping fails
	ReadBuffer(buf *wgpu.Buffer, size uint64) ([]byte, error)

	// ReleaseBuffer releases a buffer that is not owned by any provider.
	//
	// Parameters:
	//   - buf: the buffer to release, nil is ignored
	ReleaseBuffer(buf *wgpu.Buffer)

	// ReleaseBindGroup releases the bind group, layout, mesh buffers and owned buffers of a
	// provider and resets it. Shared buffers are left alive.
	//
	// Parameters:
	//   - provider: the provider to release
	ReleaseBindGroup(provider bind_group_provider.BindGroupProvider)

	// BeginComputeFrame creates a single command encoder for batching all compute dispatches
	// within a frame into one GPU submission. Must be paired with EndComputeFrame.
	//
	// Returns:
	//   - error: an error if the command encoder could not be created
	BeginComputeFrame() error

	// DispatchCompute looks up the cached compute Pipeline by key, then encodes a compute pass
	// within the current batched compute frame started by BeginComputeFrame.
	//
	// Parameters:
	//   - pipelineKey: the unique identifier for the cached compute Pipeline to use
	//   - computeProvider: the BindGroupProvider whose BindGroup is set as group 0
	//   - workGroupCount: the number of workgroups to dispatch in the x, y, and z dimensions
	//
	// Returns:
	//   - error: ErrPipelineNotFound if the key is unknown
	DispatchCompute(pipelineKey string, computeProvider bind_group_provider.BindGroupProvider, workGroupCount [3]uint32) error

	// EndComputeFrame finishes the batched compute command encoder and submits it.
	EndComputeFrame()

	// BeginFrame acquires the swapchain texture and begins the visible render pass.
	// Must be paired with EndFrame, then Present.
	//
	// Returns:
	//   - error: an error if the swapchain texture could not be acquired
	BeginFrame() error

	// BeginPickingFrame begins a render pass into the offscreen picking texture, cleared to zero.
	// Must be paired with EndFrame; the result is read with ReadPickingPixel.
	//
	// Returns:
	//   - error: an error if the command encoder could not be created
	BeginPickingFrame() error

	// DrawCall encodes a single instanced draw command within the current render pass. The
	// viewport depth range is set to [minDepth, maxDepth] so each draw lands in its own slice of
	// the depth buffer.
	//
	// Parameters:
	//   - pipelineKey: the unique identifier for the cached render Pipeline to use
	//   - meshProvider: the BindGroupProvider holding vertex and index buffers
	//   - instanceCount: the number of instances to draw
	//   - bindGroups: BindGroupProviders bound in order starting at group 0
	//   - minDepth: the near end of the viewport depth range
	//   - maxDepth: the far end of the viewport depth range
	//
	// Returns:
	//   - error: ErrPipelineNotFound if the key is unknown
	DrawCall(pipelineKey string, meshProvider bind_group_provider.BindGroupProvider, instanceCount uint32, bindGroups []bind_group_provider.BindGroupProvider, minDepth, maxDepth float32) error

	// EndFrame ends the current render pass and submits the command buffer to the GPU.
	// Does not present the surface, call Present() after EndFrame to display a visible frame.
	EndFrame()

	// Present presents the surface to the display and releases the swapchain texture.
	// It does nothing after a picking frame.
	Present()

	// ReadPickingPixel reads one RGBA8 texel of the picking texture.
	//
	// Parameters:
	//   - x: the pixel column, 0 at the left
	//   - y: the pixel row, 0 at the top
	//
	// Returns:
	//   - [4]byte: the encoded texel
	//   - error: an error if the coordinates are outside the surface or the read fails
	ReadPickingPixel(x, y int) ([4]byte, error)

	// Release releases every cached pipeline and the device resources.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer instance with the specified backend type for the given window.
//
// Parameters:
//   - backendType: the type of rendering backend to use (e.g., WGPU)
//   - window: the window whose surface is rendered into
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: a new instance of Renderer configured with the specified backend and options
func NewRenderer(backendType RendererBackendType, window window.Window, options ...RendererBuilderOption) Renderer {
	r := &renderer{
		mu:            &sync.Mutex{},
		pipelineCache: make(map[string]pipeline.Pipeline),
		backendType:   backendType,
		clearColor:    wgpu.Color{R: 0.1, G: 0.1, B: 0.1, A: 1.0},
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}

	msaa := MSAA4x
	if r.pendingMSAA != nil {
		msaa = *r.pendingMSAA
	}

	switch backendType {
	case BackendTypeWGPU:
		fallthrough
	default:
		r.backend = newWGPURendererBackend(window.SurfaceDescriptor(), r.forceFallbackAdapter, msaa, r.clearColor)
	}

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}

	r.backend.ConfigureSurface(window.Width(), window.Height())
	return r
}

func (r *renderer) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	r.backend.ConfigureSurface(width, height)
}

func (r *renderer) Size() (int, int) {
	return r.backend.SurfaceSize()
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.backend.SetPresentMode(mode)
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache[key]
}

func (r *renderer) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range pipelines {
		key := p.PipelineKey()
		if _, exists := r.pipelineCache[key]; exists {
			continue
		}
		switch p.Type() {
		case pipeline.PipelineTypeCompute:
			if err := r.backend.RegisterComputePipeline(p); err != nil {
				return fmt.Errorf("register compute pipeline %q: %w", key, err)
			}
		case pipeline.PipelineTypeRender:
			if err := r.backend.RegisterRenderPipeline(p); err != nil {
				return fmt.Errorf("register render pipeline %q: %w", key, err)
			}
		}
		r.pipelineCache[key] = p
	}
	return nil
}

func (r *renderer) InitMeshBuffers(provider bind_group_provider.BindGroupProvider, vertexData, indexData []byte, indexCount int) error {
	return r.backend.InitMeshBuffers(provider, vertexData, indexData, indexCount)
}

func (r *renderer) InitBuffer(provider bind_group_provider.BindGroupProvider, binding int, usage wgpu.BufferUsage, size uint64, data []byte) (*wgpu.Buffer, error) {
	return r.backend.InitBuffer(provider, binding, usage, size, data)
}

func (r *renderer) InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor, bufferUsageOverrides map[int]wgpu.BufferUsage, bufferSizeOverrides map[int]uint64) error {
	return r.backend.InitBindGroup(provider, descriptor, bufferUsageOverrides, bufferSizeOverrides)
}

func (r *renderer) WriteBuffers(writes []bind_group_provider.BufferWrite) {
	r.backend.WriteBuffers(writes)
}

func (r *renderer) ReadBuffer(buf *wgpu.Buffer, size uint64) ([]byte, error) {
	return r.backend.ReadBuffer(buf, size)
}

func (r *renderer) ReleaseBuffer(buf *wgpu.Buffer) {
	r.backend.ReleaseBuffer(buf)
}

func (r *renderer) ReleaseBindGroup(provider bind_group_provider.BindGroupProvider) {
	r.backend.ReleaseBindGroup(provider)
}

func (r *renderer) BeginComputeFrame() error {
	return r.backend.BeginComputeFrame()
}

func (r *renderer) EndComputeFrame() {
	r.backend.EndComputeFrame()
}

func (r *renderer) DispatchCompute(pipelineKey string, computeProvider bind_group_provider.BindGroupProvider, workGroupCount [3]uint32) error {
	r.mu.Lock()
	p, exists := r.pipelineCache[pipelineKey]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("compute pipeline %q: %w", pipelineKey, ErrPipelineNotFound)
	}
	r.backend.DispatchCompute(p, computeProvider, workGroupCount)
	return nil
}

func (r *renderer) BeginFrame() error {
	return r.backend.BeginFrame(pipeline.RenderTargetSurface)
}

func (r *renderer) BeginPickingFrame() error {
	return r.backend.BeginFrame(pipeline.RenderTargetPicking)
}

func (r *renderer) DrawCall(pipelineKey string, meshProvider bind_group_provider.BindGroupProvider, instanceCount uint32, bindGroups []bind_group_provider.BindGroupProvider, minDepth, maxDepth float32) error {
	r.mu.Lock()
	p, exists := r.pipelineCache[pipelineKey]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("render pipeline %q: %w", pipelineKey, ErrPipelineNotFound)
	}

	return r.backend.DrawCall(p, meshProvider, instanceCount, bindGroups, minDepth, maxDepth)
}

func (r *renderer) EndFrame() {
	r.backend.EndFrame()
}

func (r *renderer) Present() {
	r.backend.Present()
}

func (r *renderer) ReadPickingPixel(x, y int) ([4]byte, error) {
	return r.backend.ReadPickingPixel(x, y)
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, p := range r.pipelineCache {
		p.Release()
		delete(r.pipelineCache, key)
	}
	r.backend.Release()
}
