package edges_test

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/engine/data"
	"github.com/Carmen-Shannon/oxy-graph/engine/graph/edges"
	"github.com/Carmen-Shannon/oxy-graph/engine/graph/graphtest"
	"github.com/Carmen-Shannon/oxy-graph/engine/graph/nodes"
	"github.com/Carmen-Shannon/oxy-graph/engine/points"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderable"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/renderertest"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture is two nodes on points p0 and p1 plus a free point p2.
type fixture struct {
	f     *renderertest.Fake
	store points.Store
	nodes nodes.Nodes
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := renderertest.New(100, 100)
	graphtest.Install(f)
	store := points.NewStore()
	for _, p := range []points.Point{
		{ID: "p0", X: 0, Y: 0, Radius: 1},
		{ID: "p1", X: 1, Y: 0, Radius: 1},
		{ID: "p2", X: 1, Y: 1, Radius: 1},
	} {
		_, err := store.Insert(p)
		require.NoError(t, err)
	}
	n, err := nodes.New(f, store, []data.Record{
		{"id": "n0", "point": "p0", "color": "red", "radius": 0.25},
		{"id": "n1", "point": "p1"},
	})
	require.NoError(t, err)
	require.NoError(t, n.Compute(nil))
	return fixture{f: f, store: store, nodes: n}
}

func TestParseVariant(t *testing.T) {
	for name, want := range map[string]edges.Variant{
		"":         edges.Straight,
		"straight": edges.Straight,
		"curved":   edges.CurvedPath,
		"gravity":  edges.Gravity,
	} {
		got, err := edges.ParseVariant(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := edges.ParseVariant("bundled")
	assert.Error(t, err)
}

func TestStraight_ResolvesThroughNodesThenPoints(t *testing.T) {
	fx := newFixture(t)
	e, err := edges.New(fx.f, fx.store, fx.nodes, []data.Record{
		{"id": "e0", "source": "n0", "target": "n1"},
		{"id": "e1", "source": "n0", "target": "p2", "sourceColor": "blue", "width": 3},
		{"id": "e2", "source": "n0", "target": "nowhere"},
	}, edges.Straight)
	require.NoError(t, err)
	require.NoError(t, e.Compute(nil))

	raw, err := e.ReadTarget()
	require.NoError(t, err)
	got := edges.DecodeStraight(raw)
	require.Len(t, got, 3)

	assert.Equal(t, [4]float32{0, 0, 0, 0.25}, got[0].SourcePosition, "node radius rides along")
	assert.Equal(t, [4]float32{1, 0, 0, 1}, got[0].TargetPosition)
	assert.Equal(t, [4]float32{1, 0, 0, 1}, got[0].SourceColor, "transparent colors take the node color")
	assert.Equal(t, [4]float32{1, 1, 1, 1}, got[0].TargetColor)
	assert.Equal(t, [4]float32{1, 1, 0, 0}, got[0].Style)

	assert.Equal(t, [4]float32{1, 1, 0, 0}, got[1].TargetPosition, "plain points have no radius")
	assert.Equal(t, [4]float32{0, 0, 1, 1}, got[1].SourceColor)
	assert.Equal(t, float32(3), got[1].Style[0])

	assert.Equal(t, float32(0), got[2].Style[1], "unresolved edges are hidden")
	require.Len(t, e.Warnings(), 1)
	assert.Equal(t, "target", e.Warnings()[0].Field)
	assert.Equal(t, 2, e.Warnings()[0].Record)

	p0, _ := fx.store.Lookup("p0")
	entry, ok := e.EntryPointID("e1")
	require.True(t, ok)
	assert.Equal(t, p0, entry)
}

func TestStraight_WithoutNodes(t *testing.T) {
	fx := newFixture(t)
	e, err := edges.New(fx.f, fx.store, nil, []data.Record{{"source": "p1", "target": "p2"}}, edges.Straight)
	require.NoError(t, err)
	assert.Nil(t, e.Nodes())
	require.NoError(t, e.Compute(nil))

	raw, err := e.ReadTarget()
	require.NoError(t, err)
	got := edges.DecodeStraight(raw)
	assert.Equal(t, [4]float32{1, 0, 0, 0}, got[0].SourcePosition)
	assert.Equal(t, [4]float32{1, 1, 1, 1}, got[0].SourceColor)
	assert.Empty(t, e.Warnings())
}

func TestCurvedPath_ControlPoints(t *testing.T) {
	fx := newFixture(t)
	e, err := edges.New(fx.f, fx.store, fx.nodes, []data.Record{
		{"source": "n0", "target": "n1", "controlPoints": []any{"p2"}},
		{"source": "n0", "target": "n1"},
	}, edges.CurvedPath, edges.WithSegments(8))
	require.NoError(t, err)
	require.NoError(t, e.Compute(nil))

	raw, err := e.ReadTarget()
	require.NoError(t, err)
	got := edges.DecodeCurved(raw)
	require.Len(t, got, 2)
	assert.Equal(t, [4]float32{1, 1, 0, 1}, got[0].Controls[0])
	assert.Equal(t, [4]float32{}, got[0].Controls[1])
	assert.Equal(t, [4]float32{}, got[1].Controls[0], "no control points draws a straight path")
	assert.Empty(t, e.Warnings())

	require.NoError(t, fx.f.BeginFrame())
	require.NoError(t, e.Render(renderable.ModeNormal, nil))
	fx.f.EndFrame()
	draws := fx.f.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, "graph/edges/curved/8/normal", draws[0].Key)
}

func TestGravity_BendsTowardOrigin(t *testing.T) {
	fx := newFixture(t)
	e, err := edges.New(fx.f, fx.store, fx.nodes, []data.Record{{"source": "n0", "target": "n1"}}, edges.Gravity)
	require.NoError(t, err)

	require.NoError(t, e.Compute(nil))
	raw, err := e.ReadTarget()
	require.NoError(t, err)
	control := edges.DecodeCurved(raw)[0].Controls[0]
	assert.InDelta(t, 0.4, control[0], 1e-6, "default gravity pulls the midpoint a fifth of the way")
	assert.Equal(t, float32(1), control[3])

	require.NoError(t, e.Compute(shader.Uniforms{"gravity": float32(1), "origin": [2]float32{0.5, 2}}))
	raw, err = e.ReadTarget()
	require.NoError(t, err)
	control = edges.DecodeCurved(raw)[0].Controls[0]
	assert.InDelta(t, 0.5, control[0], 1e-6)
	assert.InDelta(t, 2, control[1], 1e-6)
}

func TestStraight_PickingRoundTrip(t *testing.T) {
	fx := newFixture(t)
	e, err := edges.New(fx.f, fx.store, fx.nodes, []data.Record{{"source": "p2", "target": "n1"}}, edges.Straight)
	require.NoError(t, err)
	require.NoError(t, e.Compute(nil))
	e.SetPickingBase(42)

	params := renderable.DefaultRenderParams()
	params.Viewport = [2]float32{100, 100}
	params.LineWidth = 4
	require.NoError(t, fx.f.BeginPickingFrame())
	require.NoError(t, e.Render(renderable.ModePicking, params.Uniforms()))
	fx.f.EndFrame()

	// the edge runs from (1, 1) to (1, 0), along the right border of the upper half
	texel, err := fx.f.ReadPickingPixel(99, 25)
	require.NoError(t, err)
	id, ok := renderable.DecodePickingColor(texel)
	require.True(t, ok)
	assert.Equal(t, uint32(42), id)

	texel, err = fx.f.ReadPickingPixel(10, 25)
	require.NoError(t, err)
	_, ok = renderable.DecodePickingColor(texel)
	assert.False(t, ok)
}
