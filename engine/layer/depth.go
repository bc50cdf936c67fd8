package layer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-graph/engine/element"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderable"
)

// ErrContractViolation is returned when the depth inputs of a layer are inconsistent.
var ErrContractViolation = element.ErrContractViolation

// DepthInputs are the five values a layer derives its node and edge depth windows from. The layer
// window is [Near, Far]; the node and edge bands are fractions of it.
type DepthInputs struct {
	Near, Far           float32
	NodesNear, NodesFar float32
	EdgesNear, EdgesFar float32
}

// DefaultDepthInputs spans the whole depth buffer with both bands covering the full layer window.
func DefaultDepthInputs() DepthInputs {
	return DepthInputs{Near: 0, Far: 1, NodesNear: 0, NodesFar: 1, EdgesNear: 0, EdgesFar: 1}
}

// ComputeDepthRanges maps the node and edge bands into the layer window:
// near + (far-near)*sub for each end of each band.
//
// Parameters:
//   - in: the depth inputs
//
// Returns:
//   - renderable.DepthRange: the effective node range
//   - renderable.DepthRange: the effective edge range
//   - error: ErrContractViolation if the layer window or a band is outside [0, 1] or inverted
func ComputeDepthRanges(in DepthInputs) (renderable.DepthRange, renderable.DepthRange, error) {
	if err := checkBand("window", in.Near, in.Far); err != nil {
		return renderable.DepthRange{}, renderable.DepthRange{}, err
	}
	if err := checkBand("nodes", in.NodesNear, in.NodesFar); err != nil {
		return renderable.DepthRange{}, renderable.DepthRange{}, err
	}
	if err := checkBand("edges", in.EdgesNear, in.EdgesFar); err != nil {
		return renderable.DepthRange{}, renderable.DepthRange{}, err
	}

	span := in.Far - in.Near
	nodes := renderable.DepthRange{Near: in.Near + span*in.NodesNear, Far: in.Near + span*in.NodesFar}
	edges := renderable.DepthRange{Near: in.Near + span*in.EdgesNear, Far: in.Near + span*in.EdgesFar}
	return nodes, edges, nil
}

func checkBand(name string, near, far float32) error {
	// written so NaN fails
	if !(near >= 0 && near <= 1 && far >= 0 && far <= 1) {
		return fmt.Errorf("layer: %s band [%v, %v] outside [0, 1]: %w", name, near, far, ErrContractViolation)
	}
	if far < near {
		return fmt.Errorf("layer: %s band far %v < near %v: %w", name, far, near, ErrContractViolation)
	}
	return nil
}
