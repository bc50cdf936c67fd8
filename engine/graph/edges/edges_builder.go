package edges

import (
	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-graph/engine/data"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderable"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
)

// EdgesBuilderOption configures an Edges built by New.
type EdgesBuilderOption func(*edges)

// WithLabel sets the label used for GPU objects, logs and warnings, e.g. "layer_0/edges".
func WithLabel(label string) EdgesBuilderOption {
	return func(e *edges) {
		if label != "" {
			e.label = label
		}
	}
}

// WithSegments sets the number of quads a curved or gravity edge is drawn with.
//
// Parameters:
//   - segments: quads per edge, DefaultSegments when zero
//
// Returns:
//   - EdgesBuilderOption: the option
func WithSegments(segments int) EdgesBuilderOption {
	return func(e *edges) {
		e.segments = segments
	}
}

// WithDefaults sets compute uniforms used when a dispatch does not pass them, such as
// "gravity" and "origin".
func WithDefaults(uniforms shader.Uniforms) EdgesBuilderOption {
	return func(e *edges) {
		for k, v := range uniforms {
			e.defaults[k] = v
		}
	}
}

// WithWorkerPool packs the records on pool.
func WithWorkerPool(pool worker.DynamicWorkerPool) EdgesBuilderOption {
	return func(e *edges) {
		e.pool = pool
	}
}

// WithColorParser resolves edge colors, typically through a colors.Registry.
func WithColorParser(resolver data.ColorResolver) EdgesBuilderOption {
	return func(e *edges) {
		e.colors = resolver
	}
}

// WithRenderableOptions forwards options to the renderable, such as its depth range.
func WithRenderableOptions(options ...renderable.RenderableBuilderOption) EdgesBuilderOption {
	return func(e *edges) {
		e.renderOpt = append(e.renderOpt, options...)
	}
}
