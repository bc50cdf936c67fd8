// Package nodes draws node records as instanced sprites positioned by the shared point store.
package nodes

import (
	"fmt"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-graph/engine/data"
	"github.com/Carmen-Shannon/oxy-graph/engine/element"
	"github.com/Carmen-Shannon/oxy-graph/engine/points"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderable"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
)

// nodes is the implementation of the Nodes interface.
type nodes struct {
	renderable.Renderable
	r        renderer.Renderer
	pipeline element.Pipeline

	// builder state
	label     string
	style     renderable.Style
	pool      worker.DynamicWorkerPool
	colors    data.ColorResolver
	renderOpt []renderable.RenderableBuilderOption
}

// Nodes is one set of node records: its compute pipeline and the renderable drawing its target.
type Nodes interface {
	renderable.Renderable

	// Pipeline returns the node compute pipeline.
	Pipeline() element.Pipeline

	// EntryPointID returns the point index of a node id. Edges resolve their endpoints through it.
	//
	// Parameters:
	//   - id: the node id
	//
	// Returns:
	//   - uint32: the point index
	//   - bool: false if no node has the id or its point did not resolve
	EntryPointID(id any) (uint32, bool)

	// RecordIndex returns the position of a node id in the target buffer.
	RecordIndex(id any) (uint32, bool)

	// Compute runs the node compute pass in its own compute frame.
	//
	// Parameters:
	//   - uniforms: compute uniforms, "minRadius" is the only one nodes read
	//
	// Returns:
	//   - error: an error if the dispatch fails
	Compute(uniforms shader.Uniforms) error

	// Warnings returns the data problems found while packing the records.
	Warnings() []data.Warning

	// ReadInstances reads the target buffer back.
	//
	// Returns:
	//   - []GPUNodeInstance: one instance per record
	//   - error: an error if the readback fails
	ReadInstances() ([]GPUNodeInstance, error)
}

var _ Nodes = &nodes{}

// New packs node records, builds the node compute pipeline and a renderable for the configured
// style. The records are not computed until Compute or a scene compute runs.
//
// Parameters:
//   - r: the renderer
//   - store: the shared point store the records reference
//   - records: the node records
//   - options: builder options
//
// Returns:
//   - Nodes: the node set
//   - error: an error if a pipeline cannot be built
func New(r renderer.Renderer, store points.Store, records []data.Record, options ...NodesBuilderOption) (Nodes, error) {
	n := &nodes{
		r:     r,
		label: "nodes",
		style: Circle(),
	}
	for _, option := range options {
		option(n)
	}

	elementOpts := []element.PipelineBuilderOption{element.WithLabel(n.label)}
	if n.pool != nil {
		elementOpts = append(elementOpts, element.WithWorkerPool(n.pool))
	}
	if n.colors != nil {
		elementOpts = append(elementOpts, element.WithColorParser(n.colors))
	}
	p, err := element.New(r, Kind{}, store, records, elementOpts...)
	if err != nil {
		return nil, fmt.Errorf("nodes: %w", err)
	}
	n.pipeline = p

	renderOpts := append([]renderable.RenderableBuilderOption{renderable.WithLabel(n.label)}, n.renderOpt...)
	ren, err := renderable.NewRenderable(r, p, n.style, renderOpts...)
	if err != nil {
		p.Release()
		return nil, fmt.Errorf("nodes: %w", err)
	}
	n.Renderable = ren
	return n, nil
}

func (n *nodes) Pipeline() element.Pipeline {
	return n.pipeline
}

func (n *nodes) EntryPointID(id any) (uint32, bool) {
	return n.pipeline.EntryPointID(id)
}

func (n *nodes) RecordIndex(id any) (uint32, bool) {
	return n.pipeline.RecordIndex(id)
}

func (n *nodes) Compute(uniforms shader.Uniforms) error {
	if n.Count() == 0 {
		return nil
	}
	if err := n.r.BeginComputeFrame(); err != nil {
		return fmt.Errorf("nodes: %s: %w", n.label, err)
	}
	defer n.r.EndComputeFrame()
	return n.Dispatch(uniforms)
}

func (n *nodes) Warnings() []data.Warning {
	return n.pipeline.Warnings()
}

func (n *nodes) ReadInstances() ([]GPUNodeInstance, error) {
	if n.Count() == 0 {
		return nil, nil
	}
	b, err := n.pipeline.ReadTarget()
	if err != nil {
		return nil, fmt.Errorf("nodes: %s: %w", n.label, err)
	}
	return DecodeInstances(b), nil
}

func (n *nodes) Release() {
	n.Renderable.Release()
	n.pipeline.Release()
}
