package loader

import (
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-graph/engine/camera"
	"github.com/Carmen-Shannon/oxy-graph/engine/events"
)

// SessionBuilderOption is a functional option for configuring a Session via NewSession.
type SessionBuilderOption func(*session)

// WithName sets the name of the scenes the session builds.
func WithName(name string) SessionBuilderOption {
	return func(s *session) {
		s.name = name
	}
}

// WithEvents publishes on bus instead of a bus of the session's own.
func WithEvents(bus *events.Bus) SessionBuilderOption {
	return func(s *session) {
		s.bus = bus
	}
}

// WithCamera sets the camera every loaded scene views through.
func WithCamera(cam camera.Camera) SessionBuilderOption {
	return func(s *session) {
		s.cam = cam
	}
}

// WithFit sets whether the camera frames the points after every load, and the margin around
// them in pixels. Fitting is on by default.
//
// Parameters:
//   - fit: frame the points after loading
//   - padding: the margin in pixels
//
// Returns:
//   - SessionBuilderOption: option function to apply
func WithFit(fit bool, padding float32) SessionBuilderOption {
	return func(s *session) {
		s.fit = fit
		s.padding = padding
	}
}

// WithWorkerPool packs records on an existing pool. The session does not stop it.
func WithWorkerPool(pool worker.DynamicWorkerPool) SessionBuilderOption {
	return func(s *session) {
		s.pool = pool
		s.ownsPool = false
	}
}

// WithWorkers packs records on a pool of n workers owned by the session and stopped by Close.
// n <= 0 packs on the loading goroutine.
//
// Parameters:
//   - n: the number of workers
//
// Returns:
//   - SessionBuilderOption: option function to apply
func WithWorkers(n int) SessionBuilderOption {
	return func(s *session) {
		if n <= 0 {
			return
		}
		s.pool = worker.NewDynamicWorkerPool(n, 256, time.Second)
		s.ownsPool = true
	}
}
