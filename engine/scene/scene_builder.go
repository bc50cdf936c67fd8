package scene

import (
	"time"

	"github.com/Carmen-Shannon/oxy-graph/engine/camera"
	"github.com/Carmen-Shannon/oxy-graph/engine/events"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithName sets the scene's identifier.
//
// Parameters:
//   - name: the scene name
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithName(name string) SceneBuilderOption {
	return func(s *scene) {
		s.name = name
	}
}

// WithActive sets whether the scene is active for rendering.
//
// Parameters:
//   - active: whether the scene is active
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithActive(active bool) SceneBuilderOption {
	return func(s *scene) {
		s.active = active
	}
}

// WithCamera attaches a camera whose transform and viewport feed FrameUniforms.
//
// Parameters:
//   - cam: the camera
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithCamera(cam camera.Camera) SceneBuilderOption {
	return func(s *scene) {
		s.cam = cam
	}
}

// WithEvents publishes on an existing bus instead of a new one, so a load session and its
// scenes can share subscribers.
//
// Parameters:
//   - bus: the bus
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithEvents(bus *events.Bus) SceneBuilderOption {
	return func(s *scene) {
		s.bus = bus
	}
}

// WithClock replaces the time source behind the "time" uniform.
func WithClock(now func() time.Time) SceneBuilderOption {
	return func(s *scene) {
		s.now = now
	}
}
