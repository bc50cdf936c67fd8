package layer_test

import (
	"errors"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/engine/data"
	"github.com/Carmen-Shannon/oxy-graph/engine/graph/edges"
	"github.com/Carmen-Shannon/oxy-graph/engine/graph/graphtest"
	"github.com/Carmen-Shannon/oxy-graph/engine/graph/nodes"
	"github.com/Carmen-Shannon/oxy-graph/engine/layer"
	"github.com/Carmen-Shannon/oxy-graph/engine/points"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderable"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/renderertest"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDepthRanges(t *testing.T) {
	in := layer.DepthInputs{Near: 0.2, Far: 0.8, NodesNear: 0, NodesFar: 1, EdgesNear: 0, EdgesFar: 0.5}
	n, e, err := layer.ComputeDepthRanges(in)
	require.NoError(t, err)
	assert.Equal(t, renderable.DepthRange{Near: 0.2, Far: 0.8}, n)
	assert.Equal(t, float32(0.2), e.Near)
	assert.InDelta(t, 0.5, e.Far, 1e-6)

	in.NodesNear, in.NodesFar = 0.5, 0.5
	n, _, err = layer.ComputeDepthRanges(in)
	require.NoError(t, err)
	assert.Equal(t, n.Near, n.Far, "an empty band collapses to one depth")
	assert.InDelta(t, 0.5, n.Near, 1e-6)

	n, e, err = layer.ComputeDepthRanges(layer.DefaultDepthInputs())
	require.NoError(t, err)
	assert.Equal(t, renderable.DepthRange{Near: 0, Far: 1}, n)
	assert.Equal(t, renderable.DepthRange{Near: 0, Far: 1}, e)
}

func TestComputeDepthRanges_Violations(t *testing.T) {
	tests := []struct {
		name string
		in   layer.DepthInputs
	}{
		{"far before near", layer.DepthInputs{Near: 0.6, Far: 0.4, NodesFar: 1, EdgesFar: 1}},
		{"nodes band above one", layer.DepthInputs{Far: 1, NodesFar: 1.5, EdgesFar: 1}},
		{"edges band below zero", layer.DepthInputs{Far: 1, NodesFar: 1, EdgesNear: -0.1, EdgesFar: 1}},
		{"inverted band", layer.DepthInputs{Far: 1, NodesNear: 0.8, NodesFar: 0.2, EdgesFar: 1}},
		{"window below zero", layer.DepthInputs{Near: -0.5, Far: 0.5, NodesFar: 1, EdgesFar: 1}},
		{"window above one", layer.DepthInputs{Near: 0.5, Far: 1.5, NodesFar: 1, EdgesFar: 1}},
		{"window NaN", layer.DepthInputs{Near: float32(math.NaN()), Far: 1, NodesFar: 1, EdgesFar: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := layer.ComputeDepthRanges(tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, layer.ErrContractViolation))
		})
	}

	_, _, err := layer.ComputeDepthRanges(layer.DepthInputs{Near: 0.5, Far: 0.5, NodesFar: 1, EdgesFar: 1})
	assert.NoError(t, err, "an empty layer window is allowed")
}

type fixture struct {
	f     *renderertest.Fake
	nodes nodes.Nodes
	edges edges.Edges
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := renderertest.New(100, 100)
	graphtest.Install(f)
	store := points.NewStore()
	for _, p := range []points.Point{{ID: "p0", X: -0.5}, {ID: "p1", X: 0.5}} {
		_, err := store.Insert(p)
		require.NoError(t, err)
	}
	n, err := nodes.New(f, store, []data.Record{{"id": "a", "point": "p0"}, {"id": "b", "point": "p1"}})
	require.NoError(t, err)
	e, err := edges.New(f, store, n, []data.Record{{"id": "ab", "source": "a", "target": "b"}}, edges.Straight)
	require.NoError(t, err)
	return fixture{f: f, nodes: n, edges: e}
}

func TestLayer_AppliesDepthOnEveryChange(t *testing.T) {
	fx := newFixture(t)
	l, err := layer.New("layer_0", fx.nodes, fx.edges, layer.WithDepth(layer.DepthInputs{
		Near: 0.2, Far: 0.8, NodesNear: 0, NodesFar: 1, EdgesNear: 0, EdgesFar: 1,
	}))
	require.NoError(t, err)
	assert.Equal(t, renderable.DepthRange{Near: 0.2, Far: 0.8}, fx.nodes.DepthRange())

	require.NoError(t, l.SetNodesDepth(0.5, 0.5))
	assert.Equal(t, fx.nodes.DepthRange().Near, fx.nodes.DepthRange().Far)
	assert.InDelta(t, 0.5, fx.nodes.DepthRange().Near, 1e-6)

	require.NoError(t, l.SetLayerDepth(0, 0.5))
	assert.InDelta(t, 0.25, fx.nodes.DepthRange().Near, 1e-6)
	assert.Equal(t, renderable.DepthRange{Near: 0, Far: 0.5}, fx.edges.DepthRange(), "edges rescale with the layer window")

	require.NoError(t, l.SetEdgesDepth(0.5, 1))
	assert.Equal(t, renderable.DepthRange{Near: 0.25, Far: 0.5}, fx.edges.DepthRange())

	before := l.Depth()
	err = l.SetLayerDepth(0.9, 0.1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, layer.ErrContractViolation))
	assert.Equal(t, before, l.Depth(), "a rejected change keeps the previous inputs")
	assert.Equal(t, renderable.DepthRange{Near: 0.25, Far: 0.5}, fx.edges.DepthRange())
}

func TestLayer_NewRejectsBadInputs(t *testing.T) {
	fx := newFixture(t)
	_, err := layer.New("bad", fx.nodes, nil, layer.WithDepth(layer.DepthInputs{Near: 1, Far: 0}))
	assert.True(t, errors.Is(err, layer.ErrContractViolation))

	_, err = layer.New("empty", nil, nil)
	assert.True(t, errors.Is(err, layer.ErrContractViolation))
}

func TestLayer_RenderOrder(t *testing.T) {
	fx := newFixture(t)
	l, err := layer.New("layer_0", fx.nodes, fx.edges)
	require.NoError(t, err)

	require.NoError(t, fx.f.BeginComputeFrame())
	require.NoError(t, l.Dispatch(nil))
	fx.f.EndComputeFrame()

	require.NoError(t, fx.f.BeginFrame())
	require.NoError(t, l.Render(renderable.ModeNormal, nil))
	require.NoError(t, l.RenderEdges(renderable.ModeNormal, nil))
	require.NoError(t, l.RenderNodes(renderable.ModeNormal, nil))
	fx.f.EndFrame()

	keys := make([]string, 0)
	for _, d := range fx.f.Draws() {
		keys = append(keys, d.Key)
	}
	assert.Equal(t, []string{
		"graph/nodes/circle/normal",
		"graph/edges/straight/normal",
		"graph/edges/straight/normal",
		"graph/nodes/circle/normal",
	}, keys)

	l.SetEnabled(false)
	fx.f.Reset()
	require.NoError(t, fx.f.BeginFrame())
	require.NoError(t, l.Render(renderable.ModeNormal, nil))
	fx.f.EndFrame()
	assert.Empty(t, fx.f.Draws())
	assert.True(t, fx.nodes.Enabled(), "the layer flag does not touch its children")
}

func TestLayer_WithoutEdges(t *testing.T) {
	fx := newFixture(t)
	fx.edges.Release()
	l, err := layer.New("nodes-only", fx.nodes, nil)
	require.NoError(t, err)
	assert.Nil(t, l.Edges())

	require.NoError(t, fx.f.BeginFrame())
	require.NoError(t, l.RenderEdges(renderable.ModeNormal, nil))
	require.NoError(t, l.Render(renderable.ModeNormal, nil))
	fx.f.EndFrame()
	require.Len(t, fx.f.Draws(), 1)
	require.NoError(t, l.SetEdgesDepth(0.1, 0.2))
}

func TestLayer_PinnedComputeUniformsWin(t *testing.T) {
	fx := newFixture(t)
	l, err := layer.New("layer_0", fx.nodes, fx.edges)
	require.NoError(t, err)

	pinned := shader.Uniforms{"minRadius": float32(0.5)}
	l.SetComputeUniforms(pinned)
	pinned["minRadius"] = float32(9)
	assert.Equal(t, shader.Uniforms{"minRadius": float32(0.5)}, l.ComputeUniforms(), "the layer keeps its own copy")

	require.NoError(t, fx.f.BeginComputeFrame())
	require.NoError(t, l.Dispatch(shader.Uniforms{"minRadius": float32(0.1)}))
	fx.f.EndComputeFrame()

	got, err := fx.nodes.ReadInstances()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, float32(0.5), got[0].Position[3])

	l.SetComputeUniforms(nil)
	assert.Nil(t, l.ComputeUniforms())
	require.NoError(t, fx.f.BeginComputeFrame())
	require.NoError(t, l.Dispatch(shader.Uniforms{"minRadius": float32(0.25)}))
	fx.f.EndComputeFrame()

	got, err = fx.nodes.ReadInstances()
	require.NoError(t, err)
	assert.Equal(t, float32(0.25), got[0].Position[3])
}
