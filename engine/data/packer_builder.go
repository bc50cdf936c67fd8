package data

import "github.com/Carmen-Shannon/automation/tools/worker"

// PackerBuilderOption configures a Packer.
type PackerBuilderOption func(*packer)

// WithWorkerPool packs disjoint chunks of large record sets in parallel on pool.
// The pool is borrowed; the packer never stops it.
func WithWorkerPool(pool worker.DynamicWorkerPool) PackerBuilderOption {
	return func(p *packer) {
		p.pool = pool
	}
}

// WithChunkSize sets how many records one parallel task packs. Values below 1 are ignored.
func WithChunkSize(n int) PackerBuilderOption {
	return func(p *packer) {
		if n > 0 {
			p.chunkSize = n
		}
	}
}

// WithLookup registers the id table used by PointRef fields whose Lookup equals name.
func WithLookup(name string, lookup Lookup) PackerBuilderOption {
	return func(p *packer) {
		p.lookups[name] = lookup
	}
}

// WithPointLookup registers the default id table, used by PointRef fields without a Lookup.
func WithPointLookup(lookup Lookup) PackerBuilderOption {
	return WithLookup("", lookup)
}

// WithColorParser replaces the default color parser, typically with a colors.Registry so that
// integer values resolve as palette indices.
func WithColorParser(resolver ColorResolver) PackerBuilderOption {
	return func(p *packer) {
		if resolver != nil {
			p.colors = resolver
		}
	}
}
