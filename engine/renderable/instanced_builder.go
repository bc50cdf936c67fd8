package renderable

import "github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"

// RenderableBuilderOption configures a Renderable built by NewRenderable.
type RenderableBuilderOption func(*instanced)

// WithLabel overrides the label used in logs and GPU labels.
//
// Parameters:
//   - label: the label
//
// Returns:
//   - RenderableBuilderOption: the option
func WithLabel(label string) RenderableBuilderOption {
	return func(ir *instanced) {
		if label != "" {
			ir.label = label
		}
	}
}

// WithUniforms sets the initial uniform overrides.
func WithUniforms(uniforms shader.Uniforms) RenderableBuilderOption {
	return func(ir *instanced) {
		for k, v := range uniforms {
			ir.overrides[k] = v
		}
	}
}

// WithEnabled sets the initial enabled flag.
func WithEnabled(enabled bool) RenderableBuilderOption {
	return func(ir *instanced) {
		ir.enabled = enabled
	}
}

// WithDepthRange sets the initial depth window.
func WithDepthRange(d DepthRange) RenderableBuilderOption {
	return func(ir *instanced) {
		ir.depth = d
	}
}
