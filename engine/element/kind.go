// Package element runs the compute stage shared by every node and edge family: records are
// packed into a storage buffer, a kind specific compute shader derives one target struct per
// record, and the target buffer is then read per instance by the render shaders.
package element

import (
	"github.com/Carmen-Shannon/oxy-graph/engine/data"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
)

// Target describes the struct a compute shader writes once per record.
type Target struct {
	// Struct is the WGSL struct name.
	Struct string
	// Source is the WGSL declaration of the struct.
	Source string
	// Stride is the host size of one struct in bytes. It must equal the size WGSL assigns to Struct.
	Stride uint32
}

// Include returns the target as a shader include, so that "//@oxy:include target" injects the
// declaration and "//@oxy:group ... array<target>" declares an array of it.
func (t Target) Include() shader.Include {
	return shader.Include{Name: shader.AnnotationArgTarget, Source: t.Source, Type: t.Struct}
}

// Kind is the contract a node or edge family implements to run on an element pipeline.
//
// The compute source must:
//   - declare a uniform struct named Params whose first member is count: u32, bound with
//     "//@oxy:provider G B params"
//   - bind the packed records as "var<storage, read> records: array<u32>" with
//     "//@oxy:provider G B records"
//   - declare the target array with "//@oxy:group G B storage_read_write <var> array<target>"
//
// and may bind the point mirror ("points", array<vec4<f32>>) and the target buffer of another
// pipeline ("nodes"). Generated record accessors are injected with "//@oxy:include records".
type Kind interface {
	// Key identifies the kind. It prefixes the cache key of the compute pipeline.
	Key() string

	// SourceFields declares the record fields the compute shader reads.
	SourceFields() []data.FieldSpec

	// TargetStruct describes the per record output.
	TargetStruct() Target

	// ComputeSource returns the WGSL compute shader.
	ComputeSource() string

	// IDField names the record field that identifies an element.
	IDField() string

	// PointField names the record field that references the element's point.
	PointField() string
}

// Defaults implements the IDField and PointField methods of Kind with "id" and "point".
// Kinds embed it when they use the conventional names.
type Defaults struct{}

// IDField returns "id".
func (Defaults) IDField() string { return "id" }

// PointField returns "point".
func (Defaults) PointField() string { return "point" }
