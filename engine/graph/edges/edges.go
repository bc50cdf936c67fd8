// Package edges draws edge records between nodes or points as straight segments, Bezier paths
// or gravity bent curves.
package edges

import (
	"fmt"
	"maps"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-graph/engine/data"
	"github.com/Carmen-Shannon/oxy-graph/engine/element"
	"github.com/Carmen-Shannon/oxy-graph/engine/graph/nodes"
	"github.com/Carmen-Shannon/oxy-graph/engine/points"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderable"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
)

// edges is the implementation of the Edges interface.
type edges struct {
	renderable.Renderable
	r        renderer.Renderer
	pipeline element.Pipeline
	variant  Variant
	nodes    nodes.Nodes
	defaults shader.Uniforms

	// builder state
	label     string
	segments  int
	pool      worker.DynamicWorkerPool
	colors    data.ColorResolver
	renderOpt []renderable.RenderableBuilderOption
}

// Edges is one set of edge records: its compute pipeline and the renderable drawing its target.
type Edges interface {
	renderable.Renderable

	// Pipeline returns the edge compute pipeline.
	Pipeline() element.Pipeline

	// Variant returns the edge geometry.
	Variant() Variant

	// Nodes returns the node set the edges reference, nil if they only reference points.
	Nodes() nodes.Nodes

	// EntryPointID returns the source point index of an edge id.
	EntryPointID(id any) (uint32, bool)

	// RecordIndex returns the position of an edge id in the target buffer.
	RecordIndex(id any) (uint32, bool)

	// Compute runs the edge compute pass in its own compute frame. Gravity edges read the
	// "gravity" and "origin" uniforms.
	//
	// Parameters:
	//   - uniforms: compute uniforms
	//
	// Returns:
	//   - error: an error if the dispatch fails
	Compute(uniforms shader.Uniforms) error

	// Warnings returns the data problems found while packing the records.
	Warnings() []data.Warning

	// ReadTarget reads the raw target buffer back. Decode it with DecodeStraight or DecodeCurved.
	ReadTarget() ([]byte, error)
}

var _ Edges = &edges{}

// New packs edge records, builds the compute pipeline of variant and a renderable for it.
//
// Endpoint ids resolve through the entry points of n first and the point store second. Node
// colors and radii are read from the target buffer of n, so n must be computed before the edges.
//
// Parameters:
//   - r: the renderer
//   - store: the shared point store
//   - n: the node set of the same layer, may be nil
//   - records: the edge records
//   - variant: the edge geometry
//   - options: builder options
//
// Returns:
//   - Edges: the edge set
//   - error: an error if a pipeline cannot be built
func New(r renderer.Renderer, store points.Store, n nodes.Nodes, records []data.Record, variant Variant, options ...EdgesBuilderOption) (Edges, error) {
	e := &edges{
		r:        r,
		variant:  variant,
		nodes:    n,
		label:    "edges",
		defaults: shader.Uniforms{},
	}
	if variant == Gravity {
		e.defaults["gravity"] = float32(0.2)
	}
	for _, option := range options {
		option(e)
	}

	elementOpts := []element.PipelineBuilderOption{
		element.WithLabel(e.label),
		element.WithLookup(LookupEndpoints, endpointLookup(n, store)),
		element.WithLookup(LookupNodes, nodeLookup(n)),
	}
	if n != nil && n.Pipeline().Target() != nil {
		elementOpts = append(elementOpts, element.WithBinding(shader.AnnotationArgNodes, n.Pipeline().Target()))
	}
	if e.pool != nil {
		elementOpts = append(elementOpts, element.WithWorkerPool(e.pool))
	}
	if e.colors != nil {
		elementOpts = append(elementOpts, element.WithColorParser(e.colors))
	}
	p, err := element.New(r, KindOf(variant), store, records, elementOpts...)
	if err != nil {
		return nil, fmt.Errorf("edges: %w", err)
	}
	e.pipeline = p

	renderOpts := append([]renderable.RenderableBuilderOption{renderable.WithLabel(e.label)}, e.renderOpt...)
	ren, err := renderable.NewRenderable(r, p, StyleOf(variant, e.segments), renderOpts...)
	if err != nil {
		p.Release()
		return nil, fmt.Errorf("edges: %w", err)
	}
	e.Renderable = ren
	return e, nil
}

// endpointLookup resolves node ids to their entry point and falls back to the store.
func endpointLookup(n nodes.Nodes, store points.Store) data.Lookup {
	return func(id any) (uint32, bool) {
		if n != nil {
			if idx, ok := n.EntryPointID(id); ok {
				return idx, true
			}
		}
		if store != nil {
			return store.Lookup(id)
		}
		return data.NoIndex, false
	}
}

// nodeLookup maps node ids to node records. Every id is known to it: endpoints that are plain
// points map to NoIndex and are reported by the endpoint fields instead.
func nodeLookup(n nodes.Nodes) data.Lookup {
	return func(id any) (uint32, bool) {
		if n != nil {
			if idx, ok := n.RecordIndex(id); ok {
				return idx, true
			}
		}
		return data.NoIndex, true
	}
}

func (e *edges) Pipeline() element.Pipeline {
	return e.pipeline
}

func (e *edges) Variant() Variant {
	return e.variant
}

func (e *edges) Nodes() nodes.Nodes {
	return e.nodes
}

func (e *edges) EntryPointID(id any) (uint32, bool) {
	return e.pipeline.EntryPointID(id)
}

func (e *edges) RecordIndex(id any) (uint32, bool) {
	return e.pipeline.RecordIndex(id)
}

// Dispatch fills in the variant defaults before forwarding to the renderable.
func (e *edges) Dispatch(uniforms shader.Uniforms) error {
	values := maps.Clone(e.defaults)
	maps.Copy(values, uniforms)
	return e.Renderable.Dispatch(values)
}

func (e *edges) Compute(uniforms shader.Uniforms) error {
	if e.Count() == 0 {
		return nil
	}
	if err := e.r.BeginComputeFrame(); err != nil {
		return fmt.Errorf("edges: %s: %w", e.label, err)
	}
	defer e.r.EndComputeFrame()
	return e.Dispatch(uniforms)
}

func (e *edges) Warnings() []data.Warning {
	return e.pipeline.Warnings()
}

func (e *edges) ReadTarget() ([]byte, error) {
	if e.Count() == 0 {
		return nil, nil
	}
	return e.pipeline.ReadTarget()
}

func (e *edges) Release() {
	e.Renderable.Release()
	e.pipeline.Release()
}
