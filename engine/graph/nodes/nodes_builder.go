package nodes

import (
	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-graph/engine/data"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderable"
)

// NodesBuilderOption configures a Nodes built by New.
type NodesBuilderOption func(*nodes)

// WithLabel sets the label used for GPU objects, logs and warnings, e.g. "layer_0/nodes".
func WithLabel(label string) NodesBuilderOption {
	return func(n *nodes) {
		if label != "" {
			n.label = label
		}
	}
}

// WithStyle selects how nodes are drawn. The default is Circle.
//
// Parameters:
//   - style: the render style, see Circle, Ring and StyleByName
//
// Returns:
//   - NodesBuilderOption: the option
func WithStyle(style renderable.Style) NodesBuilderOption {
	return func(n *nodes) {
		n.style = style
	}
}

// WithWorkerPool packs the records on pool.
func WithWorkerPool(pool worker.DynamicWorkerPool) NodesBuilderOption {
	return func(n *nodes) {
		n.pool = pool
	}
}

// WithColorParser resolves node colors, typically through a colors.Registry.
func WithColorParser(resolver data.ColorResolver) NodesBuilderOption {
	return func(n *nodes) {
		n.colors = resolver
	}
}

// WithRenderableOptions forwards options to the renderable, such as its depth range.
func WithRenderableOptions(options ...renderable.RenderableBuilderOption) NodesBuilderOption {
	return func(n *nodes) {
		n.renderOpt = append(n.renderOpt, options...)
	}
}
