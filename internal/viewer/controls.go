package viewer

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/events"
	"github.com/Carmen-Shannon/oxy-graph/engine/loader"
)

// clickSlop is how far in pixels the cursor may travel between press and release for the
// release to count as a click instead of a drag.
const clickSlop = 3

// zoomStep is the zoom factor of one wheel notch.
const zoomStep = 1.1

// Runner runs work on the goroutine that owns the GPU.
type Runner interface {
	Do(fn func())
	RequestCompute()
	EnableProfiler()
	DisableProfiler()
}

// Controls turns window input into camera moves, picks and viewer commands. Input callbacks
// may arrive on any goroutine; GPU work is handed to the Runner.
type Controls struct {
	mu      *sync.Mutex
	runner  Runner
	session loader.Session

	padding float32
	onPick  func(events.Picked)
	reload  func()

	dragging  bool
	moved     bool
	down      [2]float32
	last      [2]float32
	cursor    [2]float32
	profiling bool
}

// ControlsOption configures Controls.
type ControlsOption func(c *Controls)

// WithFitPadding sets the margin in pixels Fit leaves around the graph.
func WithFitPadding(padding float32) ControlsOption {
	return func(c *Controls) {
		c.padding = padding
	}
}

// WithPickHandler receives every pick result on the runner goroutine.
func WithPickHandler(fn func(events.Picked)) ControlsOption {
	return func(c *Controls) {
		c.onPick = fn
	}
}

// WithReload sets what Reload does, typically reloading the configuration file.
func WithReload(fn func()) ControlsOption {
	return func(c *Controls) {
		c.reload = fn
	}
}

// WithProfiling sets the initial profiler state ToggleProfiler flips.
func WithProfiling(enabled bool) ControlsOption {
	return func(c *Controls) {
		c.profiling = enabled
	}
}

// NewControls creates controls driving the scene of session.
//
// Parameters:
//   - runner: runs GPU work, usually the engine
//   - session: the session whose scene is controlled
//   - options: controls options
//
// Returns:
//   - *Controls: the controls
func NewControls(runner Runner, session loader.Session, options ...ControlsOption) *Controls {
	c := &Controls{
		mu:      &sync.Mutex{},
		runner:  runner,
		session: session,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// MouseDown starts a drag or a click at (x, y).
func (c *Controls) MouseDown(x, y float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dragging, c.moved = true, false
	c.down = [2]float32{x, y}
	c.last = c.down
}

// MouseMove tracks the cursor and pans the camera while dragging.
func (c *Controls) MouseMove(x, y float32) {
	c.mu.Lock()
	c.cursor = [2]float32{x, y}
	if !c.dragging {
		c.mu.Unlock()
		return
	}
	if !c.moved && math.Abs(float64(x-c.down[0]))+math.Abs(float64(y-c.down[1])) > clickSlop {
		c.moved = true
	}
	dx, dy := x-c.last[0], y-c.last[1]
	c.last = [2]float32{x, y}
	moved := c.moved
	c.mu.Unlock()

	if !moved {
		return
	}
	if sc := c.session.Scene(); sc != nil {
		sc.Camera().Pan(dx, dy)
	}
}

// MouseUp ends a drag. A release close to the press picks at (x, y).
func (c *Controls) MouseUp(x, y float32) {
	c.mu.Lock()
	wasClick := c.dragging && !c.moved
	c.dragging = false
	c.mu.Unlock()
	if wasClick {
		c.Pick(int(x), int(y))
	}
}

// Scroll zooms around the cursor, delta wheel notches at a time.
func (c *Controls) Scroll(delta float32) {
	sc := c.session.Scene()
	if sc == nil || delta == 0 {
		return
	}
	c.mu.Lock()
	cursor := c.cursor
	c.mu.Unlock()
	sc.Camera().ZoomAt(float32(math.Pow(zoomStep, float64(delta))), cursor[0], cursor[1])
}

// Pick queues a picking query at pixel (x, y).
func (c *Controls) Pick(x, y int) {
	c.runner.Do(func() {
		sc := c.session.Scene()
		if sc == nil {
			return
		}
		res, err := sc.Pick(x, y, sc.FrameUniforms())
		if err != nil {
			common.Logger().Warn("pick failed", "x", x, "y", y, "error", err)
			return
		}
		if res.Hit {
			common.Logger().Info("picked", "layer", res.Layer, "family", res.Family, "index", res.Index, "id", res.ID)
		}
		if c.onPick != nil {
			c.onPick(res)
		}
	})
}

// Fit frames every point of the scene.
func (c *Controls) Fit() {
	if sc := c.session.Scene(); sc != nil {
		sc.Camera().Frame(sc.Store().Bounds(), c.padding)
	}
}

// Reload runs the reload handler, if any.
func (c *Controls) Reload() {
	if c.reload != nil {
		c.reload()
	}
}

// Recompute asks for a compute pass on the next frame.
func (c *Controls) Recompute() {
	c.runner.RequestCompute()
}

// ToggleLayer flips the enabled flag of the layer at index, in render order.
//
// Parameters:
//   - index: the layer position
//
// Returns:
//   - bool: false if there is no layer at index
func (c *Controls) ToggleLayer(index int) bool {
	sc := c.session.Scene()
	if sc == nil {
		return false
	}
	layers := sc.Layers()
	if index < 0 || index >= len(layers) {
		return false
	}
	l := layers[index]
	l.SetEnabled(!l.Enabled())
	common.Logger().Info("layer toggled", "layer", l.Name(), "enabled", l.Enabled())
	return true
}

// Key runs the command bound to a key code: F fits, R reloads, P toggles the profiler, space
// recomputes and 1 to 9 toggle layers.
//
// Parameters:
//   - code: the key code from the window
//
// Returns:
//   - bool: false if the key is not bound
func (c *Controls) Key(code uint32) bool {
	switch {
	case code == common.KeyF:
		c.Fit()
	case code == common.KeyR:
		c.Reload()
	case code == common.KeyP:
		c.ToggleProfiler()
	case code == common.KeySpace:
		c.Recompute()
	case code >= common.Key1 && code <= common.Key9:
		c.ToggleLayer(int(code - common.Key1))
	default:
		return false
	}
	return true
}

// ToggleProfiler turns the profiler reports on or off.
func (c *Controls) ToggleProfiler() {
	c.mu.Lock()
	c.profiling = !c.profiling
	on := c.profiling
	c.mu.Unlock()
	if on {
		c.runner.EnableProfiler()
	} else {
		c.runner.DisableProfiler()
	}
}
