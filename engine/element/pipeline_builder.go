package element

import (
	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-graph/engine/data"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineBuilderOption configures an element pipeline.
type PipelineBuilderOption func(*elementPipeline)

// WithLabel names the pipeline in GPU labels, logs and warnings. The default is the kind key.
func WithLabel(label string) PipelineBuilderOption {
	return func(p *elementPipeline) {
		if label != "" {
			p.label = label
		}
	}
}

// WithWorkerPool packs large record sets in parallel on pool.
func WithWorkerPool(pool worker.DynamicWorkerPool) PipelineBuilderOption {
	return func(p *elementPipeline) {
		p.pool = pool
	}
}

// WithLookup registers an id table for reference fields whose FieldSpec.Lookup equals name.
//
// Parameters:
//   - name: the lookup name
//   - lookup: the id resolver
//
// Returns:
//   - PipelineBuilderOption: a function that registers the lookup
func WithLookup(name string, lookup data.Lookup) PipelineBuilderOption {
	return func(p *elementPipeline) {
		p.lookups[name] = lookup
	}
}

// WithBinding binds a buffer owned elsewhere at the binding the compute shader declares for
// identity, for example the target buffer of the node pipeline under shader.AnnotationArgNodes.
//
// Parameters:
//   - identity: the provider identity declared with @oxy:provider
//   - buf: the buffer, which the pipeline never releases
//
// Returns:
//   - PipelineBuilderOption: a function that records the binding
func WithBinding(identity shader.AnnotationArg, buf *wgpu.Buffer) PipelineBuilderOption {
	return func(p *elementPipeline) {
		p.extraBuffers[identity] = buf
	}
}

// WithColorParser resolves color fields with resolver, typically a colors.Registry.
func WithColorParser(resolver data.ColorResolver) PipelineBuilderOption {
	return func(p *elementPipeline) {
		p.colors = resolver
	}
}
