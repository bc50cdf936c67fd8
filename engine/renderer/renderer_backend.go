package renderer

import "fmt"

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU backend.
	BackendTypeWGPU RendererBackendType = iota
)

// PresentMode controls how frames reach the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the vertical blank before presenting.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents immediately. Lowest latency, may tear.
	PresentModeUncapped
)

// MSAASampleCount is the sample count of the visible surface. The picking target is always
// single sampled so ids are never blended.
type MSAASampleCount uint32

const (
	// MSAAOff draws one sample per pixel.
	MSAAOff MSAASampleCount = 1

	// MSAA4x is the default and the only multisampled count WebGPU guarantees.
	MSAA4x MSAASampleCount = 4

	// MSAA8x depends on the adapter.
	MSAA8x MSAASampleCount = 8

	// MSAA16x depends on the adapter.
	MSAA16x MSAASampleCount = 16
)

// ParseMSAA maps a configured sample count onto an MSAASampleCount. 0 selects the default.
//
// Parameters:
//   - samples: the sample count, one of 0, 1, 4, 8 or 16
//
// Returns:
//   - MSAASampleCount: the matching count
//   - error: an error for any other value
func ParseMSAA(samples int) (MSAASampleCount, error) {
	switch samples {
	case 0:
		return MSAA4x, nil
	case 1:
		return MSAAOff, nil
	case 4:
		return MSAA4x, nil
	case 8:
		return MSAA8x, nil
	case 16:
		return MSAA16x, nil
	}
	return 0, fmt.Errorf("renderer: msaa must be 1, 4, 8 or 16, got %d", samples)
}

// RendererBackend is the backend the Renderer drives; it embeds the interface of the selected
// GPU API.
type RendererBackend interface {
	wgpuRendererBackend
}
