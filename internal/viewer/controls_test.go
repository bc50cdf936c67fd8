package viewer

import (
	"context"
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/camera"
	"github.com/Carmen-Shannon/oxy-graph/engine/data"
	"github.com/Carmen-Shannon/oxy-graph/engine/events"
	"github.com/Carmen-Shannon/oxy-graph/engine/graph/graphtest"
	"github.com/Carmen-Shannon/oxy-graph/engine/loader"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/renderertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runner queues work until run is called, like a render loop between frames.
type runner struct {
	tasks     []func()
	computes  int
	profiling bool
}

func (r *runner) Do(fn func())     { r.tasks = append(r.tasks, fn) }
func (r *runner) RequestCompute()  { r.computes++ }
func (r *runner) EnableProfiler()  { r.profiling = true }
func (r *runner) DisableProfiler() { r.profiling = false }
func (r *runner) run() {
	tasks := r.tasks
	r.tasks = nil
	for _, fn := range tasks {
		fn()
	}
}

type fixture struct {
	r       *runner
	session loader.Session
	cam     camera.Camera
	picks   []events.Picked
	c       *Controls
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := renderertest.New(100, 100)
	graphtest.Install(f)
	cam := camera.NewCamera(camera.WithViewport(100, 100), camera.WithZoom(50))
	s := loader.NewSession(f, loader.WithCamera(cam), loader.WithFit(false, 0))
	t.Cleanup(s.Close)
	_, err := s.Load(context.Background(), loader.GraphData{
		Points: []data.Record{
			{"id": "a", "x": -0.5, "y": 0.5, "radius": 0.1},
			{"id": "b", "x": 0.5, "y": -0.5, "radius": 0.1},
		},
		Layers: []loader.LayerData{
			{Name: "first", Nodes: []data.Record{{"id": "na", "point": "a"}}},
			{Name: "second", Nodes: []data.Record{{"id": "nb", "point": "b"}}},
		},
	})
	require.NoError(t, err)

	fx := &fixture{r: &runner{}, session: s, cam: cam}
	fx.c = NewControls(fx.r, s, WithPickHandler(func(p events.Picked) { fx.picks = append(fx.picks, p) }))
	return fx
}

func TestControls_ClickPicks(t *testing.T) {
	fx := newFixture(t)

	fx.c.MouseDown(25, 25)
	fx.c.MouseMove(26, 25)
	fx.c.MouseUp(26, 25)
	assert.Empty(t, fx.picks, "picking waits for the runner")

	fx.r.run()
	require.Len(t, fx.picks, 1)
	assert.True(t, fx.picks[0].Hit)
	assert.Equal(t, "first", fx.picks[0].Layer)
	assert.Equal(t, "na", fx.picks[0].ID)
	x, y := fx.cam.Center()
	assert.Zero(t, x, "a click does not pan")
	assert.Zero(t, y)
}

func TestControls_DragPans(t *testing.T) {
	fx := newFixture(t)

	fx.c.MouseDown(50, 50)
	fx.c.MouseMove(60, 50)
	fx.c.MouseMove(75, 40)
	fx.c.MouseUp(75, 40)
	fx.r.run()
	assert.Empty(t, fx.picks, "a drag does not pick")

	// the camera follows the cursor: 25 px right and 10 px up at zoom 50
	x, y := fx.cam.Center()
	assert.InDelta(t, -0.5, x, 1e-6)
	assert.InDelta(t, -0.2, y, 1e-6)

	fx.c.MouseMove(90, 90)
	x, _ = fx.cam.Center()
	assert.InDelta(t, -0.5, x, 1e-6, "moving without a button does not pan")
}

func TestControls_ScrollZoomsAtCursor(t *testing.T) {
	fx := newFixture(t)
	fx.c.MouseMove(25, 25)
	wx, wy := fx.cam.ScreenToWorld(25, 25)

	fx.c.Scroll(2)
	assert.InDelta(t, 50*1.21, fx.cam.Zoom(), 1e-3)
	gx, gy := fx.cam.ScreenToWorld(25, 25)
	assert.InDelta(t, wx, gx, 1e-5)
	assert.InDelta(t, wy, gy, 1e-5)

	fx.c.Scroll(0)
	assert.InDelta(t, 50*1.21, fx.cam.Zoom(), 1e-3)
}

func TestControls_Commands(t *testing.T) {
	fx := newFixture(t)
	reloaded := 0
	c := NewControls(fx.r, fx.session, WithReload(func() { reloaded++ }), WithFitPadding(10))

	c.Reload()
	assert.Equal(t, 1, reloaded)

	c.Recompute()
	assert.Equal(t, 1, fx.r.computes)

	c.ToggleProfiler()
	assert.True(t, fx.r.profiling)
	c.ToggleProfiler()
	assert.False(t, fx.r.profiling)

	require.True(t, c.ToggleLayer(1))
	l, _ := fx.session.Scene().Layer("second")
	assert.False(t, l.Enabled())
	assert.False(t, c.ToggleLayer(5))

	fx.cam.SetCenter(30, 30)
	c.Fit()
	x, y := fx.cam.Center()
	assert.InDelta(t, 0, x, 1e-6)
	assert.InDelta(t, 0, y, 1e-6)
}

func TestControls_Keys(t *testing.T) {
	fx := newFixture(t)
	reloaded := 0
	c := NewControls(fx.r, fx.session, WithReload(func() { reloaded++ }), WithProfiling(true))

	assert.True(t, c.Key(common.KeyR))
	assert.Equal(t, 1, reloaded)
	assert.True(t, c.Key(common.KeySpace))
	assert.Equal(t, 1, fx.r.computes)
	fx.r.profiling = true
	assert.True(t, c.Key(common.KeyP))
	assert.False(t, fx.r.profiling, "profiling starts on")

	assert.True(t, c.Key(common.Key1))
	l, _ := fx.session.Scene().Layer("first")
	assert.False(t, l.Enabled())
	assert.True(t, c.Key(common.Key9), "unused layer keys are still bound")

	fx.cam.SetCenter(5, 5)
	assert.True(t, c.Key(common.KeyF))
	x, _ := fx.cam.Center()
	assert.InDelta(t, 0, x, 1e-6)

	assert.False(t, c.Key(65))
}

func TestControls_NoScene(t *testing.T) {
	r := &runner{}
	s := loader.NewSession(renderertest.New(10, 10))
	c := NewControls(r, s)
	c.Scroll(1)
	c.Fit()
	assert.False(t, c.ToggleLayer(0))
	c.MouseDown(1, 1)
	c.MouseUp(1, 1)
	r.run()
}
