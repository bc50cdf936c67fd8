package viewer

import (
	"context"
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/engine/config"
	"github.com/Carmen-Shannon/oxy-graph/engine/graph/graphtest"
	"github.com/Carmen-Shannon/oxy-graph/engine/loader"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/renderertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T) loader.Session {
	t.Helper()
	f := renderertest.New(200, 200)
	graphtest.Install(f)
	s := loader.NewSession(f)
	t.Cleanup(s.Close)
	return s
}

func layerNames(t *testing.T, s loader.Session) []string {
	t.Helper()
	var names []string
	for _, l := range s.Scene().Layers() {
		names = append(names, l.Name())
	}
	return names
}

func TestLoadGraph_Example(t *testing.T) {
	s := newSession(t)
	sc, err := LoadGraph(context.Background(), s, nil, "colors")
	require.NoError(t, err)
	assert.Same(t, sc, s.Scene())
	assert.Equal(t, []string{"colors"}, layerNames(t, s))

	_, err = LoadGraph(context.Background(), s, nil, "nope")
	assert.Error(t, err)
}

func TestLoadGraph_ConfigGraph(t *testing.T) {
	cfg, err := config.Parse("graph.hcl", []byte(`
graph {
  points = [{ id = "a", x = 0, y = 0 }, { id = "b", x = 1, y = 1 }]
  layer "pair" {
    nodes = [{ id = "na", point = "a" }, { id = "nb", point = "b" }]
    edges = [{ source = "na", target = "nb" }]
  }
}
`))
	require.NoError(t, err)
	s := newSession(t)
	_, err = LoadGraph(context.Background(), s, cfg, "colors")
	require.NoError(t, err)
	assert.Equal(t, []string{"pair"}, layerNames(t, s))
}

func TestLoadGraph_StyleOnExample(t *testing.T) {
	cfg, err := config.Parse("style.hcl", []byte(`
style "colors" {
  enabled = false
}
`))
	require.NoError(t, err)
	s := newSession(t)
	_, err = LoadGraph(context.Background(), s, cfg, "")
	require.NoError(t, err)
	assert.Contains(t, layerNames(t, s), "markers", "the basic example is the default")

	_, err = LoadGraph(context.Background(), s, cfg, "colors")
	require.NoError(t, err)
	l, ok := s.Scene().Layer("colors")
	require.True(t, ok)
	assert.False(t, l.Enabled())
}

func TestWorkers(t *testing.T) {
	cfg := &config.Config{Renderer: &config.Renderer{Workers: 3}}
	assert.Equal(t, 3, Workers(&Options{Workers: -1}, cfg))
	assert.Equal(t, 0, Workers(&Options{Workers: 0}, cfg))
	assert.Equal(t, 0, Workers(&Options{Workers: -1}, nil))
}
