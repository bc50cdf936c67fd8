// Package layer pairs one node set with an optional edge set and nests their depth bands inside
// the layer's own depth window.
package layer

import (
	"fmt"
	"maps"
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/engine/graph/edges"
	"github.com/Carmen-Shannon/oxy-graph/engine/graph/nodes"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderable"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
)

// layer is the implementation of the Layer interface.
type layer struct {
	mu      *sync.Mutex
	name    string
	nodes   nodes.Nodes
	edges   edges.Edges
	enabled bool
	depth   DepthInputs
	compute shader.Uniforms
}

// Layer owns one node set and, optionally, one edge set drawn on top of the same points.
type Layer interface {
	// Name returns the layer name.
	Name() string

	// Nodes returns the node set of the layer.
	Nodes() nodes.Nodes

	// Edges returns the edge set of the layer, nil if the layer has none.
	Edges() edges.Edges

	// Enabled reports whether the layer draws.
	Enabled() bool

	// SetEnabled turns drawing of the whole layer on or off. The flags of the node and edge sets
	// are left alone.
	SetEnabled(enabled bool)

	// Depth returns the current depth inputs.
	Depth() DepthInputs

	// SetDepth replaces all depth inputs and applies the derived ranges to the node and edge sets.
	//
	// Parameters:
	//   - in: the new inputs
	//
	// Returns:
	//   - error: ErrContractViolation if the inputs are inconsistent; the previous inputs are kept
	SetDepth(in DepthInputs) error

	// SetLayerDepth changes the layer window.
	SetLayerDepth(near, far float32) error

	// SetNodesDepth changes the node band, as fractions of the layer window.
	SetNodesDepth(near, far float32) error

	// SetEdgesDepth changes the edge band, as fractions of the layer window.
	SetEdgesDepth(near, far float32) error

	// Render draws the nodes and then the edges into the open frame.
	//
	// Parameters:
	//   - mode: the render mode of the frame
	//   - uniforms: per frame render uniforms
	//
	// Returns:
	//   - error: an error if a draw fails
	Render(mode renderable.Mode, uniforms shader.Uniforms) error

	// RenderNodes draws only the nodes.
	RenderNodes(mode renderable.Mode, uniforms shader.Uniforms) error

	// RenderEdges draws only the edges. It does nothing if the layer has no edges.
	RenderEdges(mode renderable.Mode, uniforms shader.Uniforms) error

	// ComputeUniforms returns the compute uniforms pinned on the layer.
	ComputeUniforms() shader.Uniforms

	// SetComputeUniforms pins compute uniforms on the layer. They win over the uniforms passed to
	// Dispatch. A nil map clears them.
	SetComputeUniforms(uniforms shader.Uniforms)

	// Dispatch records the node and then the edge compute passes into the open compute frame.
	// Edges read the node target, so the order matters.
	Dispatch(uniforms shader.Uniforms) error

	// Release frees the node and edge sets.
	Release()
}

var _ Layer = &layer{}

// New builds a layer around an existing node set and optional edge set. The layer takes
// ownership of both.
//
// Parameters:
//   - name: the layer name
//   - n: the node set, required
//   - e: the edge set, may be nil
//   - options: builder options
//
// Returns:
//   - Layer: the layer
//   - error: ErrContractViolation if n is nil or the depth inputs are inconsistent
func New(name string, n nodes.Nodes, e edges.Edges, options ...LayerBuilderOption) (Layer, error) {
	if n == nil {
		return nil, fmt.Errorf("layer: %s: nil nodes: %w", name, ErrContractViolation)
	}
	l := &layer{
		mu:      &sync.Mutex{},
		name:    name,
		nodes:   n,
		edges:   e,
		enabled: true,
		depth:   DefaultDepthInputs(),
	}
	for _, option := range options {
		option(l)
	}
	if err := l.apply(l.depth); err != nil {
		return nil, fmt.Errorf("layer: %s: %w", name, err)
	}
	return l, nil
}

func (l *layer) Name() string {
	return l.name
}

func (l *layer) Nodes() nodes.Nodes {
	return l.nodes
}

func (l *layer) Edges() edges.Edges {
	return l.edges
}

func (l *layer) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

func (l *layer) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

func (l *layer) Depth() DepthInputs {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.depth
}

func (l *layer) SetDepth(in DepthInputs) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.apply(in)
}

func (l *layer) SetLayerDepth(near, far float32) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	in := l.depth
	in.Near, in.Far = near, far
	return l.apply(in)
}

func (l *layer) SetNodesDepth(near, far float32) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	in := l.depth
	in.NodesNear, in.NodesFar = near, far
	return l.apply(in)
}

func (l *layer) SetEdgesDepth(near, far float32) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	in := l.depth
	in.EdgesNear, in.EdgesFar = near, far
	return l.apply(in)
}

// apply validates in and pushes the derived ranges down. l.mu must be held by the caller.
func (l *layer) apply(in DepthInputs) error {
	nodesRange, edgesRange, err := ComputeDepthRanges(in)
	if err != nil {
		return err
	}
	l.depth = in
	l.nodes.SetDepthRange(nodesRange)
	if l.edges != nil {
		l.edges.SetDepthRange(edgesRange)
	}
	return nil
}

func (l *layer) Render(mode renderable.Mode, uniforms shader.Uniforms) error {
	if err := l.RenderNodes(mode, uniforms); err != nil {
		return err
	}
	return l.RenderEdges(mode, uniforms)
}

func (l *layer) RenderNodes(mode renderable.Mode, uniforms shader.Uniforms) error {
	if !l.Enabled() {
		return nil
	}
	if err := l.nodes.Render(mode, uniforms); err != nil {
		return fmt.Errorf("layer: %s: nodes: %w", l.name, err)
	}
	return nil
}

func (l *layer) RenderEdges(mode renderable.Mode, uniforms shader.Uniforms) error {
	if l.edges == nil || !l.Enabled() {
		return nil
	}
	if err := l.edges.Render(mode, uniforms); err != nil {
		return fmt.Errorf("layer: %s: edges: %w", l.name, err)
	}
	return nil
}

func (l *layer) ComputeUniforms() shader.Uniforms {
	l.mu.Lock()
	defer l.mu.Unlock()
	return maps.Clone(l.compute)
}

func (l *layer) SetComputeUniforms(uniforms shader.Uniforms) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.compute = maps.Clone(uniforms)
}

func (l *layer) Dispatch(uniforms shader.Uniforms) error {
	l.mu.Lock()
	if len(l.compute) > 0 {
		merged := make(shader.Uniforms, len(uniforms)+len(l.compute))
		maps.Copy(merged, uniforms)
		maps.Copy(merged, l.compute)
		uniforms = merged
	}
	l.mu.Unlock()

	if err := l.nodes.Dispatch(uniforms); err != nil {
		return fmt.Errorf("layer: %s: nodes: %w", l.name, err)
	}
	if l.edges == nil {
		return nil
	}
	if err := l.edges.Dispatch(uniforms); err != nil {
		return fmt.Errorf("layer: %s: edges: %w", l.name, err)
	}
	return nil
}

func (l *layer) Release() {
	if l.edges != nil {
		l.edges.Release()
	}
	l.nodes.Release()
}
