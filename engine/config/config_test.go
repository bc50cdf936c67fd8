package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/engine/data"
	"github.com/Carmen-Shannon/oxy-graph/engine/layer"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
window {
  title  = "circuit"
  width  = 1024
  height = 768

  min_width  = 640
  max_width  = 2560
  min_height = 480
  max_height = 1440
}

renderer {
  vsync      = false
  msaa       = 4
  background = "#102030"
  workers    = 2
}

camera {
  center  = [1, 2]
  zoom    = 40
  padding = 0.5
}

style "wires" {
  enabled    = false
  near       = 0.1
  edges_far  = 0.5
  uniforms = {
    opacity   = 0.5
    lineWidth = 3
  }
  compute = {
    gravity = 0.25
  }
}

graph {
  colors = ["red", [0, 0, 1]]

  points = [
    { id = "a", x = 0, y = 0 },
    { id = "b", x = 1, y = 1, radius = 0.2 },
  ]

  layer "wires" {
    node_style = "ring"
    edge_type  = "curved"
    segments   = 8
    nodes = [
      { id = "n0", point = "a", color = 0 },
      { id = "n1", point = "b", color = "green" },
    ]
    edges = [
      { source = "n0", target = "n1", width = 2 },
    ]
  }
}
`

func parseSample(t *testing.T) *Config {
	t.Helper()
	cfg, err := Parse("sample.hcl", []byte(sample))
	require.NoError(t, err)
	return cfg
}

func TestParse_Blocks(t *testing.T) {
	cfg := parseSample(t)

	require.NotNil(t, cfg.Window)
	assert.Equal(t, "circuit", cfg.Window.Title)
	assert.Len(t, cfg.WindowOptions(), 7)
	assert.Equal(t, 640, cfg.Window.MinWidth)
	assert.Equal(t, 1440, cfg.Window.MaxHeight)

	require.NotNil(t, cfg.Renderer)
	assert.Equal(t, 4, cfg.Renderer.MSAA)
	assert.Equal(t, 2, cfg.Renderer.Workers)
	opts, err := cfg.RendererOptions()
	require.NoError(t, err)
	assert.Len(t, opts, 3)

	assert.Len(t, cfg.CameraOptions(), 2)
	fit, padding := cfg.FitCamera()
	assert.False(t, fit, "an explicit zoom turns fitting off")
	assert.Equal(t, float32(0.5), padding)
}

func TestParse_GraphRecords(t *testing.T) {
	cfg := parseSample(t)
	require.NotNil(t, cfg.Graph)

	points, err := cfg.Graph.PointRecords()
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, data.Record{"id": "b", "x": 1.0, "y": 1.0, "radius": 0.2}, points[1])

	colors, err := cfg.Graph.ColorList()
	require.NoError(t, err)
	assert.Equal(t, []any{"red", []any{0.0, 0.0, 1.0}}, colors)

	require.Len(t, cfg.Graph.Layers, 1)
	l := cfg.Graph.Layers[0]
	assert.Equal(t, "wires", l.Name)
	assert.Equal(t, "ring", l.NodeStyle)
	assert.Equal(t, "curved", l.EdgeType)
	assert.Equal(t, 8, l.Segments)

	nodes, err := l.NodeRecords()
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, 0.0, nodes[0]["color"])
	assert.Equal(t, "green", nodes[1]["color"])

	edges, err := l.EdgeRecords()
	require.NoError(t, err)
	assert.Equal(t, []data.Record{{"source": "n0", "target": "n1", "width": 2.0}}, edges)
}

func TestLayerStyle(t *testing.T) {
	cfg := parseSample(t)
	styles := cfg.Style().Layers
	require.Len(t, styles, 1)
	s := styles[0]

	require.NotNil(t, s.Enabled)
	assert.False(t, *s.Enabled)

	got := s.Depth(layer.DefaultDepthInputs())
	assert.InDelta(t, 0.1, got.Near, 1e-6)
	assert.Equal(t, float32(1), got.Far)
	assert.Equal(t, float32(0), got.EdgesNear)
	assert.InDelta(t, 0.5, got.EdgesFar, 1e-6)

	u, err := s.RenderUniforms()
	require.NoError(t, err)
	assert.Equal(t, shader.Uniforms{"opacity": 0.5, "lineWidth": 3.0}, u)

	c, err := s.ComputeUniforms()
	require.NoError(t, err)
	assert.Equal(t, shader.Uniforms{"gravity": 0.25}, c)
}

func TestParse_EmptyAndDefaults(t *testing.T) {
	cfg, err := Parse("empty.hcl", nil)
	require.NoError(t, err)
	assert.Nil(t, cfg.WindowOptions())
	opts, err := cfg.RendererOptions()
	require.NoError(t, err)
	assert.Nil(t, opts)
	fit, _ := cfg.FitCamera()
	assert.True(t, fit)
	assert.Empty(t, cfg.Style().Layers)

	s := LayerStyle{Layer: "x"}
	u, err := s.RenderUniforms()
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.Equal(t, layer.DefaultDepthInputs(), s.Depth(layer.DefaultDepthInputs()))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", `window {`},
		{"duplicate style", "style \"a\" {}\nstyle \"a\" {}"},
		{"duplicate layer", "graph {\n layer \"a\" {}\n layer \"a\" {}\n}"},
		{"msaa", "renderer {\n msaa = 3\n}"},
		{"unknown attribute", "window {\n depth = 3\n}"},
		{"inverted width limits", "window {\n min_width = 800\n max_width = 600\n}"},
		{"inverted height limits", "window {\n min_height = 800\n max_height = 600\n}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("bad.hcl", []byte(tt.src))
			assert.Error(t, err)
		})
	}
}

func TestRendererOptions_BadBackground(t *testing.T) {
	cfg, err := Parse("bg.hcl", []byte("renderer {\n background = \"not-a-color\"\n}"))
	require.NoError(t, err)
	_, err = cfg.RendererOptions()
	assert.Error(t, err)
}

func TestGraph_NotAList(t *testing.T) {
	cfg, err := Parse("g.hcl", []byte("graph {\n points = \"a\"\n}"))
	require.NoError(t, err)
	_, err = cfg.Graph.PointRecords()
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.hcl")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "circuit", cfg.Window.Title)

	_, err = Load(filepath.Join(t.TempDir(), "missing.hcl"))
	assert.Error(t, err)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.hcl")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	w, err := NewWatcher(path, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(cfg *Config, err error) {
			if err == nil {
				got <- cfg
			}
		})
	}()

	// unrelated files in the directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.hcl"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("window {\n title = \"reloaded\"\n}"), 0o644))

	select {
	case cfg := <-got:
		require.NotNil(t, cfg.Window)
		assert.Equal(t, "reloaded", cfg.Window.Title)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
	assert.NoError(t, w.Close())
}
