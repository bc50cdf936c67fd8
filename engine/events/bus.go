package events

import (
	"time"

	"github.com/Carmen-Shannon/oxy-graph/engine/data"
)

// LayerChanged is published when a layer joins or leaves a scene.
type LayerChanged struct {
	// Name is the layer name.
	Name string
	// Index is the render position of the layer at the time of the change.
	Index int
}

// DataWarning is published for every recoverable data inconsistency found while packing records.
type DataWarning struct {
	// Source names the pipeline or store that produced the warning, e.g. "layer_0/nodes".
	Source string
	// Warning is the underlying packing warning.
	Warning data.Warning
}

// ComputeDone is published after a batched compute frame has been submitted.
type ComputeDone struct {
	// Pipelines is the number of element pipelines dispatched.
	Pipelines int
	// Elapsed is the wall time spent recording and submitting the frame.
	Elapsed time.Duration
}

// Picked is published with the result of a picking query.
type Picked struct {
	X, Y int
	// Hit reports whether any element covered the pixel.
	Hit bool
	// Layer is the name of the layer that owns the element, empty on a miss.
	Layer string
	// Family is "nodes" or "edges", empty on a miss.
	Family string
	// Index is the record index within the family.
	Index uint32
	// ID is the id of the picked record, nil if the record had none.
	ID any
}

// ConfigApplied is published when a style configuration has been applied to a scene.
type ConfigApplied struct {
	// Layers lists the layers the style touched.
	Layers []string
	// Unknown lists layer names in the style that matched nothing.
	Unknown []string
}

// Bus groups the topics a scene publishes on.
type Bus struct {
	LayerAdded    *Topic[LayerChanged]
	LayerRemoved  *Topic[LayerChanged]
	Warnings      *Topic[DataWarning]
	ComputeDone   *Topic[ComputeDone]
	Picked        *Topic[Picked]
	ConfigApplied *Topic[ConfigApplied]
}

// NewBus creates a Bus with every topic initialized.
//
// Returns:
//   - *Bus: the new bus
func NewBus() *Bus {
	return &Bus{
		LayerAdded:    NewTopic[LayerChanged](),
		LayerRemoved:  NewTopic[LayerChanged](),
		Warnings:      NewTopic[DataWarning](),
		ComputeDone:   NewTopic[ComputeDone](),
		Picked:        NewTopic[Picked](),
		ConfigApplied: NewTopic[ConfigApplied](),
	}
}
