package engine

import (
	"context"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/engine/data"
	"github.com/Carmen-Shannon/oxy-graph/engine/graph/graphtest"
	"github.com/Carmen-Shannon/oxy-graph/engine/loader"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/renderertest"
	"github.com/Carmen-Shannon/oxy-graph/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadScene(t *testing.T, f *renderertest.Fake) scene.Scene {
	t.Helper()
	s := loader.NewSession(f)
	t.Cleanup(s.Close)
	sc, err := s.Load(context.Background(), loader.GraphData{
		Points: []data.Record{{"id": "a", "x": 0, "y": 0}, {"id": "b", "x": 1, "y": 0}},
		Layers: []loader.LayerData{{
			Nodes: []data.Record{{"id": "na", "point": "a"}, {"id": "nb", "point": "b"}},
			Edges: []data.Record{{"source": "na", "target": "nb"}},
		}},
	})
	require.NoError(t, err)
	return sc
}

func TestEngine_FrameDrawsActiveScenesInKeyOrder(t *testing.T) {
	f := renderertest.New(64, 64)
	graphtest.Install(f)
	back := loadScene(t, f)
	front := loadScene(t, f)
	hidden := loadScene(t, f)
	hidden.SetActive(false)

	e := NewEngine(WithScene(10, front), WithScene(0, back), WithScene(5, hidden)).(*engine)
	f.Reset()

	frames := 0
	e.SetRenderCallback(func(float32) { frames++ })
	require.NoError(t, e.Frame(0.016))

	draws := f.Draws()
	require.Len(t, draws, 4, "nodes and edges of the two active scenes")
	assert.Equal(t, "graph/nodes/circle/normal", draws[0].Key)
	assert.Equal(t, "graph/edges/straight/normal", draws[1].Key)
	started, presented := f.Frames()
	assert.Equal(t, 1, started, "all scenes share one frame")
	assert.Equal(t, 1, presented)
	assert.Equal(t, 1, frames)
	assert.Empty(t, f.Dispatches(), "nothing recomputes without a request")
}

func TestEngine_FrameOpensEachRendererOnce(t *testing.T) {
	primary := renderertest.New(64, 64)
	graphtest.Install(primary)
	inset := renderertest.New(32, 32)
	graphtest.Install(inset)

	e := NewEngine(
		WithScene(0, loadScene(t, primary)),
		WithScene(1, loadScene(t, inset)),
		WithScene(2, loadScene(t, primary)),
	).(*engine)
	primary.Reset()
	inset.Reset()

	require.NoError(t, e.Frame(0.016))

	started, presented := primary.Frames()
	assert.Equal(t, 1, started, "scenes sharing a renderer share its frame")
	assert.Equal(t, 1, presented)
	assert.Len(t, primary.Draws(), 4)

	started, presented = inset.Frames()
	assert.Equal(t, 1, started, "the second renderer gets its own frame")
	assert.Equal(t, 1, presented)
	assert.Len(t, inset.Draws(), 2)
}

func TestEngine_RequestComputeRunsOnce(t *testing.T) {
	f := renderertest.New(64, 64)
	graphtest.Install(f)
	sc := loadScene(t, f)
	e := NewEngine(WithScene(0, sc))
	f.Reset()

	e.RequestCompute()
	require.NoError(t, e.Frame(0.016))
	assert.Len(t, f.Dispatches(), 2)

	require.NoError(t, e.Frame(0.016))
	assert.Len(t, f.Dispatches(), 2)
}

func TestEngine_DoRunsOnTheNextFrame(t *testing.T) {
	f := renderertest.New(64, 64)
	graphtest.Install(f)
	e := NewEngine(WithScene(0, loadScene(t, f)))

	ran := 0
	e.Do(func() { ran++ })
	e.Do(func() { ran++ })
	assert.Zero(t, ran)
	require.NoError(t, e.Frame(0))
	assert.Equal(t, 2, ran)
}

func TestEngine_ResizeFollowsScenes(t *testing.T) {
	f := renderertest.New(64, 64)
	graphtest.Install(f)
	sc := loadScene(t, f)
	e := NewEngine(WithScene(0, sc)).(*engine)

	e.resize(200, 100)
	w, h := f.Size()
	assert.Equal(t, 200, w)
	assert.Equal(t, 100, h)
	cw, ch := sc.Camera().Viewport()
	assert.Equal(t, float32(200), cw)
	assert.Equal(t, float32(100), ch)

	e.resize(0, 100)
	w, _ = f.Size()
	assert.Equal(t, 200, w, "a minimized window keeps the last size")
}

func TestEngine_SceneRegistry(t *testing.T) {
	f := renderertest.New(64, 64)
	graphtest.Install(f)
	sc := loadScene(t, f)
	e := NewEngine()

	e.AddScene(3, sc)
	assert.Same(t, sc, e.Scene(3))
	scenes := e.Scenes()
	delete(scenes, 3)
	assert.NotNil(t, e.Scene(3), "Scenes returns a copy")
	e.RemoveScene(3)
	assert.Nil(t, e.Scene(3))
}

func TestEngine_HeadlessRunStopsOnQuit(t *testing.T) {
	e := NewEngine(WithRenderFrameLimit(200))
	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	e.Quit()
	e.Quit()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}
