package nodes_test

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/engine/data"
	"github.com/Carmen-Shannon/oxy-graph/engine/graph/graphtest"
	"github.com/Carmen-Shannon/oxy-graph/engine/graph/nodes"
	"github.com/Carmen-Shannon/oxy-graph/engine/points"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderable"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/renderertest"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, pts ...points.Point) points.Store {
	t.Helper()
	store := points.NewStore()
	for _, p := range pts {
		_, err := store.Insert(p)
		require.NoError(t, err)
	}
	return store
}

func TestNodes_Compute(t *testing.T) {
	f := renderertest.New(100, 100)
	graphtest.Install(f)
	store := newStore(t,
		points.Point{ID: "a", X: 1, Y: 2, Radius: 1},
		points.Point{ID: "b", X: 3, Y: 4, Radius: 2},
	)
	n, err := nodes.New(f, store, []data.Record{
		{"id": "n1", "point": "a", "color": "red"},
		{"id": "n2", "point": "b", "radius": 5},
		{"id": "n3", "point": "missing"},
	})
	require.NoError(t, err)
	require.NoError(t, n.Compute(nil))

	got, err := n.ReadInstances()
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, [4]float32{1, 2, 0, 1}, got[0].Position)
	assert.Equal(t, [4]float32{1, 0, 0, 1}, got[0].Color)
	assert.Equal(t, [4]float32{3, 4, 0, 5}, got[1].Position)
	assert.Equal(t, [4]float32{1, 1, 1, 1}, got[1].Color)
	assert.Equal(t, [4]float32{0, 0, 0, 0}, got[2].Position)

	require.Len(t, n.Warnings(), 1)
	assert.Equal(t, data.WarnUnresolvedRef, n.Warnings()[0].Kind)

	idx, ok := n.EntryPointID("n2")
	require.True(t, ok)
	assert.Equal(t, uint32(1), idx)
	_, ok = n.EntryPointID("n3")
	assert.False(t, ok, "unresolved points have no entry point")
	rec, ok := n.RecordIndex("n3")
	require.True(t, ok)
	assert.Equal(t, uint32(2), rec)
}

func TestNodes_ComputeIsDeterministic(t *testing.T) {
	f := renderertest.New(100, 100)
	graphtest.Install(f)
	store := newStore(t, points.Point{ID: 1, X: 0.25, Y: -0.5, Radius: 0.125})
	n, err := nodes.New(f, store, []data.Record{{"id": 1, "point": 1.0}, {"id": 2, "point": 1}})
	require.NoError(t, err)

	require.NoError(t, n.Compute(shader.Uniforms{"minRadius": float32(0.5)}))
	first, err := n.Pipeline().ReadTarget()
	require.NoError(t, err)
	require.NoError(t, n.Compute(shader.Uniforms{"minRadius": float32(0.5)}))
	second, err := n.Pipeline().ReadTarget()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	got := nodes.DecodeInstances(first)
	assert.Equal(t, float32(0.5), got[0].Position[3], "minRadius clamps the point radius")
	assert.Equal(t, got[0], got[1], "numeric ids resolve by value")
}

func TestNodes_Styles(t *testing.T) {
	f := renderertest.New(100, 100)
	graphtest.Install(f)
	store := newStore(t, points.Point{ID: "a", Radius: 1})

	ring, ok := nodes.StyleByName("ring")
	require.True(t, ok)
	n, err := nodes.New(f, store, []data.Record{{"id": "n", "point": "a"}}, nodes.WithStyle(ring), nodes.WithLabel("layer_0/nodes"))
	require.NoError(t, err)
	assert.Equal(t, "layer_0/nodes", n.Label())

	require.NoError(t, f.BeginFrame())
	require.NoError(t, n.Render(renderable.ModeNormal, nil))
	f.EndFrame()
	require.Len(t, f.Draws(), 1)
	assert.Equal(t, "graph/nodes/ring/normal", f.Draws()[0].Key)

	_, ok = nodes.StyleByName("hexagon")
	assert.False(t, ok)
	def, ok := nodes.StyleByName("")
	require.True(t, ok)
	assert.Equal(t, nodes.Circle().Key, def.Key)
}

func TestNodes_PickingRoundTrip(t *testing.T) {
	f := renderertest.New(100, 100)
	graphtest.Install(f)
	store := newStore(t,
		points.Point{ID: "a", X: -0.5, Y: 0.5, Radius: 0.1},
		points.Point{ID: "b", X: 0.5, Y: -0.5, Radius: 0.1},
	)
	n, err := nodes.New(f, store, []data.Record{{"id": "a", "point": "a"}, {"id": "b", "point": "b"}})
	require.NoError(t, err)
	require.NoError(t, n.Compute(nil))
	n.SetPickingBase(42)

	params := renderable.DefaultRenderParams()
	params.Viewport = [2]float32{100, 100}
	require.NoError(t, f.BeginPickingFrame())
	require.NoError(t, n.Render(renderable.ModePicking, params.Uniforms()))
	f.EndFrame()

	for _, tc := range []struct {
		x, y int
		id   uint32
		hit  bool
	}{
		{25, 25, 42, true},
		{75, 75, 43, true},
		{50, 50, 0, false},
	} {
		texel, err := f.ReadPickingPixel(tc.x, tc.y)
		require.NoError(t, err)
		id, hit := renderable.DecodePickingColor(texel)
		assert.Equal(t, tc.hit, hit, "pixel %d,%d", tc.x, tc.y)
		if tc.hit {
			assert.Equal(t, tc.id, id)
		}
	}
}

func TestNodes_EmptyRecordSet(t *testing.T) {
	f := renderertest.New(100, 100)
	graphtest.Install(f)
	n, err := nodes.New(f, points.NewStore(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n.Count())
	require.NoError(t, n.Compute(nil))
	got, err := n.ReadInstances()
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, f.Dispatches())
}

func TestNodes_ReleaseFreesEverything(t *testing.T) {
	f := renderertest.New(100, 100)
	graphtest.Install(f)
	store := newStore(t, points.Point{ID: "a", Radius: 1})
	n, err := nodes.New(f, store, []data.Record{{"id": "n", "point": "a"}})
	require.NoError(t, err)

	n.Release()
	assert.Equal(t, 1, f.LiveBuffers(), "only the point mirror stays")
	store.Release(f)
	assert.Equal(t, 0, f.LiveBuffers())
}
