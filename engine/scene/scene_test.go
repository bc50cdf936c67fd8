package scene_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/engine/camera"
	"github.com/Carmen-Shannon/oxy-graph/engine/data"
	"github.com/Carmen-Shannon/oxy-graph/engine/events"
	"github.com/Carmen-Shannon/oxy-graph/engine/graph/edges"
	"github.com/Carmen-Shannon/oxy-graph/engine/graph/graphtest"
	"github.com/Carmen-Shannon/oxy-graph/engine/graph/nodes"
	"github.com/Carmen-Shannon/oxy-graph/engine/layer"
	"github.com/Carmen-Shannon/oxy-graph/engine/points"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderable"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/renderertest"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-graph/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	f     *renderertest.Fake
	store points.Store
	scene scene.Scene
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := renderertest.New(100, 100)
	graphtest.Install(f)
	store := points.NewStore()
	for _, p := range []points.Point{
		{ID: "p0", X: -0.5, Y: 0.5, Radius: 0.1},
		{ID: "p1", X: 0.5, Y: 0.5, Radius: 0.1},
		{ID: "p2", X: 0.5, Y: -0.5, Radius: 0.1},
	} {
		_, err := store.Insert(p)
		require.NoError(t, err)
	}
	cam := camera.NewCamera(camera.WithViewport(100, 100), camera.WithZoom(50))
	return fixture{f: f, store: store, scene: scene.New(f, store, scene.WithCamera(cam))}
}

// addLayer builds a layer whose nodes sit on the given points and whose edges, if any, chain
// consecutive nodes.
func (fx fixture) addLayer(t *testing.T, name string, pts []string, withEdges bool, opts ...layer.LayerBuilderOption) layer.Layer {
	t.Helper()
	nodeRecords := make([]data.Record, len(pts))
	for i, p := range pts {
		nodeRecords[i] = data.Record{"id": name + "-n" + string(rune('0'+i)), "point": p}
	}
	n, err := nodes.New(fx.f, fx.store, nodeRecords, nodes.WithLabel(name+"/nodes"))
	require.NoError(t, err)

	var e edges.Edges
	if withEdges {
		var edgeRecords []data.Record
		for i := 0; i+1 < len(pts); i++ {
			edgeRecords = append(edgeRecords, data.Record{
				"id":     name + "-e" + string(rune('0'+i)),
				"source": nodeRecords[i]["id"],
				"target": nodeRecords[i+1]["id"],
			})
		}
		e, err = edges.New(fx.f, fx.store, n, edgeRecords, edges.Straight, edges.WithLabel(name+"/edges"))
		require.NoError(t, err)
	}

	l, err := layer.New(name, n, e, opts...)
	require.NoError(t, err)
	require.NoError(t, fx.scene.AddLayer(l))
	return l
}

func band(i int) layer.LayerBuilderOption {
	near := float32(i) * 0.25
	return layer.WithDepth(layer.DepthInputs{Near: near, Far: near + 0.25, NodesFar: 1, EdgesFar: 1})
}

type drawn struct {
	family string
	near   float32
}

func drawsOf(f *renderertest.Fake) []drawn {
	var out []drawn
	for _, d := range f.Draws() {
		family := "nodes"
		if strings.HasPrefix(d.Key, "graph/edges/") {
			family = "edges"
		}
		out = append(out, drawn{family: family, near: d.MinDepth})
	}
	return out
}

func TestScene_RenderOrder(t *testing.T) {
	fx := newFixture(t)
	for i := range 3 {
		fx.addLayer(t, fx.scene.NextLayerName(), []string{"p0", "p1"}, true, band(i))
	}
	require.NoError(t, fx.scene.Compute(nil))

	require.NoError(t, fx.scene.Render(renderable.ModeNormal, nil))
	assert.Equal(t, []drawn{
		{"nodes", 0}, {"edges", 0},
		{"nodes", 0.25}, {"edges", 0.25},
		{"nodes", 0.5}, {"edges", 0.5},
	}, drawsOf(fx.f))

	frames, presents := fx.f.Frames()
	assert.Equal(t, 1, frames)
	assert.Equal(t, 1, presents)
}

func TestScene_RenderPassSplit(t *testing.T) {
	fx := newFixture(t)
	for i := range 3 {
		fx.addLayer(t, fx.scene.NextLayerName(), []string{"p0", "p1"}, true, band(i))
	}

	require.NoError(t, fx.f.BeginFrame())
	require.NoError(t, fx.scene.RenderPass(renderable.ModeNormal, nil, scene.PassNodes))
	require.NoError(t, fx.scene.RenderPass(renderable.ModeNormal, nil, scene.PassEdges))
	assert.Error(t, fx.scene.RenderPass(renderable.ModeNormal, nil, scene.Pass(0)))
	fx.f.EndFrame()

	assert.Equal(t, []drawn{
		{"nodes", 0}, {"nodes", 0.25}, {"nodes", 0.5},
		{"edges", 0}, {"edges", 0.25}, {"edges", 0.5},
	}, drawsOf(fx.f))
	_, presents := fx.f.Frames()
	assert.Equal(t, 0, presents, "passes never present")
}

func TestScene_ComputeBatchesEveryPipeline(t *testing.T) {
	fx := newFixture(t)
	fx.addLayer(t, "a", []string{"p0", "p1"}, true)
	fx.addLayer(t, "b", []string{"p2"}, false)

	var done []events.ComputeDone
	fx.scene.Events().ComputeDone.Subscribe(func(e events.ComputeDone) { done = append(done, e) })
	require.NoError(t, fx.scene.Compute(nil))

	keys := fx.f.Dispatches()
	require.Len(t, keys, 3)
	assert.True(t, strings.HasPrefix(keys[0], "graph/nodes"))
	assert.True(t, strings.HasPrefix(keys[1], "graph/edges/straight"))
	assert.True(t, strings.HasPrefix(keys[2], "graph/nodes"))
	require.Len(t, done, 1)
	assert.Equal(t, 3, done[0].Pipelines)

	l, _ := fx.scene.Layer("a")
	got, err := l.Edges().ReadTarget()
	require.NoError(t, err)
	e := edges.DecodeStraight(got)
	require.Len(t, e, 1)
	assert.Equal(t, float32(-0.5), e[0].SourcePosition[0], "edges see the nodes computed in the same frame")
}

func TestScene_PickRoundTrip(t *testing.T) {
	fx := newFixture(t)
	fx.addLayer(t, "a", []string{"p0", "p1"}, true, layer.WithDepth(layer.DepthInputs{
		Near: 0, Far: 1, NodesNear: 0, NodesFar: 0.5, EdgesNear: 0.5, EdgesFar: 1,
	}))
	fx.addLayer(t, "b", []string{"p2"}, false)
	require.NoError(t, fx.scene.Compute(nil))

	var published []events.Picked
	fx.scene.Events().Picked.Subscribe(func(p events.Picked) { published = append(published, p) })
	u := shader.Uniforms{"lineWidth": float32(4)}

	tests := []struct {
		name string
		x, y int
		want events.Picked
	}{
		{"node over edge", 25, 25, events.Picked{X: 25, Y: 25, Hit: true, Layer: "a", Family: scene.FamilyNodes, Index: 0, ID: "a-n0"}},
		{"second node", 75, 25, events.Picked{X: 75, Y: 25, Hit: true, Layer: "a", Family: scene.FamilyNodes, Index: 1, ID: "a-n1"}},
		{"edge", 50, 25, events.Picked{X: 50, Y: 25, Hit: true, Layer: "a", Family: scene.FamilyEdges, Index: 0, ID: "a-e0"}},
		{"second layer", 75, 75, events.Picked{X: 75, Y: 75, Hit: true, Layer: "b", Family: scene.FamilyNodes, Index: 0, ID: "b-n0"}},
		{"background", 10, 90, events.Picked{X: 10, Y: 90}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fx.scene.Pick(tt.x, tt.y, u)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Len(t, published, len(tests))

	a, _ := fx.scene.Layer("a")
	b, _ := fx.scene.Layer("b")
	assert.Equal(t, uint32(0), a.Nodes().PickingBase())
	assert.Equal(t, uint32(2), a.Edges().PickingBase())
	assert.Equal(t, uint32(3), b.Nodes().PickingBase())

	_, err := fx.scene.Pick(500, 500, u)
	assert.Error(t, err)
}

func TestScene_LayerManagement(t *testing.T) {
	fx := newFixture(t)
	var added, removed []events.LayerChanged
	var warnings []events.DataWarning
	bus := fx.scene.Events()
	bus.LayerAdded.Subscribe(func(e events.LayerChanged) { added = append(added, e) })
	bus.LayerRemoved.Subscribe(func(e events.LayerChanged) { removed = append(removed, e) })
	bus.Warnings.Subscribe(func(e events.DataWarning) { warnings = append(warnings, e) })

	assert.Equal(t, "layer_0", fx.scene.NextLayerName())
	fx.addLayer(t, "layer_1", []string{"p0", "missing"}, false)
	assert.Equal(t, "layer_2", fx.scene.NextLayerName(), "taken names are skipped")
	fx.addLayer(t, "other", []string{"p1"}, false)

	assert.Equal(t, []events.LayerChanged{{Name: "layer_1", Index: 0}, {Name: "other", Index: 1}}, added)
	require.Len(t, warnings, 1)
	assert.Equal(t, "layer_1/nodes", warnings[0].Source)
	assert.Equal(t, data.WarnUnresolvedRef, warnings[0].Warning.Kind)

	n, err := nodes.New(fx.f, fx.store, []data.Record{{"id": 1, "point": "p2"}})
	require.NoError(t, err)
	dup, err := layer.New("other", n, nil)
	require.NoError(t, err)
	assert.Error(t, fx.scene.AddLayer(dup))
	dup.Release()

	require.NoError(t, fx.scene.MoveLayer("other", 0))
	names := []string{}
	for _, l := range fx.scene.Layers() {
		names = append(names, l.Name())
	}
	assert.Equal(t, []string{"other", "layer_1"}, names)

	require.NoError(t, fx.scene.RemoveLayer("layer_1"))
	assert.Equal(t, []events.LayerChanged{{Name: "layer_1", Index: 1}}, removed)
	_, ok := fx.scene.Layer("layer_1")
	assert.False(t, ok)
	assert.True(t, errors.Is(fx.scene.RemoveLayer("layer_1"), scene.ErrLayerNotFound))
	assert.True(t, errors.Is(fx.scene.MoveLayer("nope", 0), scene.ErrLayerNotFound))

	fx.scene.Release()
	assert.Empty(t, fx.scene.Layers())
	fx.store.Release(fx.f)
	assert.Equal(t, 0, fx.f.LiveBuffers())
}

func TestScene_FrameUniforms(t *testing.T) {
	f := renderertest.New(10, 10)
	start := time.Unix(100, 0)
	now := start
	s := scene.New(f, points.NewStore(), scene.WithClock(func() time.Time { return now }), scene.WithName("graph"))
	assert.Equal(t, "graph", s.Name())
	assert.Equal(t, shader.Uniforms{"time": float32(0)}, s.FrameUniforms())

	now = start.Add(1500 * time.Millisecond)
	cam := camera.NewCamera(camera.WithViewport(10, 10))
	s.SetCamera(cam)
	u := s.FrameUniforms()
	assert.Equal(t, float32(1.5), u["time"])
	assert.Equal(t, [2]float32{10, 10}, u["viewport"])
	assert.Equal(t, cam.ViewProjectionMatrix(), u["viewProj"])
}

func TestScene_EmptyRenderStillPresents(t *testing.T) {
	f := renderertest.New(10, 10)
	s := scene.New(f, points.NewStore())
	require.NoError(t, s.Render(renderable.ModeNormal, nil))
	frames, presents := f.Frames()
	assert.Equal(t, 1, frames)
	assert.Equal(t, 1, presents)

	got, err := s.Pick(1, 1, nil)
	require.NoError(t, err)
	assert.False(t, got.Hit)
}
