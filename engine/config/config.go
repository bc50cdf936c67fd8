// Package config reads the HCL description of a graph viewer: window, renderer and camera
// settings, per layer styles and the graph data itself.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Carmen-Shannon/oxy-graph/engine/camera"
	"github.com/Carmen-Shannon/oxy-graph/engine/colors"
	"github.com/Carmen-Shannon/oxy-graph/engine/data"
	"github.com/Carmen-Shannon/oxy-graph/engine/layer"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-graph/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zclconf/go-cty/cty"
)

// Config is the root of a configuration file.
type Config struct {
	Window   *Window      `hcl:"window,block"`
	Renderer *Renderer    `hcl:"renderer,block"`
	Camera   *Camera      `hcl:"camera,block"`
	Styles   []LayerStyle `hcl:"style,block"`
	Graph    *Graph       `hcl:"graph,block"`
}

// Window configures the viewer window.
type Window struct {
	Title  string `hcl:"title,optional"`
	Width  int    `hcl:"width,optional"`
	Height int    `hcl:"height,optional"`
	// Size limits applied while resizing, 0 keeps the window default.
	MinWidth  int `hcl:"min_width,optional"`
	MaxWidth  int `hcl:"max_width,optional"`
	MinHeight int `hcl:"min_height,optional"`
	MaxHeight int `hcl:"max_height,optional"`
}

// Renderer configures the GPU renderer.
type Renderer struct {
	VSync      *bool  `hcl:"vsync,optional"`
	MSAA       int    `hcl:"msaa,optional"`
	Background string `hcl:"background,optional"`
	Software   bool   `hcl:"software,optional"`
	// Workers is the size of the packing worker pool, 0 packs on the calling goroutine.
	Workers int `hcl:"workers,optional"`
}

// Camera configures the initial view.
type Camera struct {
	Center  []float64 `hcl:"center,optional"`
	Zoom    float64   `hcl:"zoom,optional"`
	MinZoom float64   `hcl:"min_zoom,optional"`
	MaxZoom float64   `hcl:"max_zoom,optional"`
	// Fit frames the graph bounds after loading. Defaults to true when no zoom is given.
	Fit     *bool   `hcl:"fit,optional"`
	Padding float64 `hcl:"padding,optional"`
}

// Style is the part of a configuration that can be applied to a loaded scene.
type Style struct {
	Layers []LayerStyle
}

// LayerStyle overrides the presentation of one layer. Unset attributes leave the layer as is.
type LayerStyle struct {
	Layer     string   `hcl:"layer,label"`
	Enabled   *bool    `hcl:"enabled,optional"`
	Near      *float64 `hcl:"near,optional"`
	Far       *float64 `hcl:"far,optional"`
	NodesNear *float64 `hcl:"nodes_near,optional"`
	NodesFar  *float64 `hcl:"nodes_far,optional"`
	EdgesNear *float64 `hcl:"edges_near,optional"`
	EdgesFar  *float64 `hcl:"edges_far,optional"`
	// Uniforms are render uniforms pinned on the layer's renderables, e.g. sizeScale or opacity.
	Uniforms cty.Value `hcl:"uniforms,optional"`
	// Compute are compute uniforms used when the layer is recomputed, e.g. gravity.
	Compute cty.Value `hcl:"compute,optional"`
}

// Graph is the data of a graph: shared points, the color table and the layers.
type Graph struct {
	Colors cty.Value    `hcl:"colors,optional"`
	Points cty.Value    `hcl:"points,optional"`
	Layers []GraphLayer `hcl:"layer,block"`
}

// GraphLayer is the data of one layer.
type GraphLayer struct {
	Name      string    `hcl:"name,label"`
	NodeStyle string    `hcl:"node_style,optional"`
	EdgeType  string    `hcl:"edge_type,optional"`
	Segments  int       `hcl:"segments,optional"`
	Nodes     cty.Value `hcl:"nodes,optional"`
	Edges     cty.Value `hcl:"edges,optional"`
}

// Load reads and decodes a configuration file. The syntax is chosen by extension: .hcl for
// native syntax, .json for the JSON flavour.
//
// Parameters:
//   - path: the file to read
//
// Returns:
//   - *Config: the decoded configuration
//   - error: an error if the file cannot be read or decoded
func Load(path string) (*Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(filepath.Base(path), src)
}

// Parse decodes configuration source. filename only selects the syntax and labels diagnostics.
//
// Parameters:
//   - filename: a name ending in .hcl or .json
//   - src: the configuration source
//
// Returns:
//   - *Config: the decoded configuration
//   - error: the HCL diagnostics if decoding fails
func Parse(filename string, src []byte) (*Config, error) {
	var cfg Config
	if err := hclsimple.Decode(filename, src, nil, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	seen := make(map[string]bool)
	for _, s := range c.Styles {
		if seen[s.Layer] {
			return fmt.Errorf("config: style %q declared twice", s.Layer)
		}
		seen[s.Layer] = true
	}
	if c.Graph != nil {
		clear(seen)
		for _, l := range c.Graph.Layers {
			if seen[l.Name] {
				return fmt.Errorf("config: graph layer %q declared twice", l.Name)
			}
			seen[l.Name] = true
		}
	}
	if c.Renderer != nil {
		if _, err := renderer.ParseMSAA(c.Renderer.MSAA); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	if w := c.Window; w != nil {
		if w.MinWidth > 0 && w.MaxWidth > 0 && w.MaxWidth < w.MinWidth {
			return fmt.Errorf("config: window max_width %d < min_width %d", w.MaxWidth, w.MinWidth)
		}
		if w.MinHeight > 0 && w.MaxHeight > 0 && w.MaxHeight < w.MinHeight {
			return fmt.Errorf("config: window max_height %d < min_height %d", w.MaxHeight, w.MinHeight)
		}
	}
	return nil
}

// Style returns the applicable part of the configuration.
func (c *Config) Style() Style {
	return Style{Layers: c.Styles}
}

// WindowOptions converts the window block into window builder options.
//
// Returns:
//   - []window.WindowBuilderOption: the options, empty if the block is absent
func (c *Config) WindowOptions() []window.WindowBuilderOption {
	if c.Window == nil {
		return nil
	}
	var opts []window.WindowBuilderOption
	if c.Window.Title != "" {
		opts = append(opts, window.WithTitle(c.Window.Title))
	}
	if c.Window.Width > 0 {
		opts = append(opts, window.WithWidth(c.Window.Width))
	}
	if c.Window.Height > 0 {
		opts = append(opts, window.WithHeight(c.Window.Height))
	}
	if c.Window.MinWidth > 0 {
		opts = append(opts, window.WithMinWidth(c.Window.MinWidth))
	}
	if c.Window.MaxWidth > 0 {
		opts = append(opts, window.WithMaxWidth(c.Window.MaxWidth))
	}
	if c.Window.MinHeight > 0 {
		opts = append(opts, window.WithMinHeight(c.Window.MinHeight))
	}
	if c.Window.MaxHeight > 0 {
		opts = append(opts, window.WithMaxHeight(c.Window.MaxHeight))
	}
	return opts
}

// RendererOptions converts the renderer block into renderer builder options.
//
// Returns:
//   - []renderer.RendererBuilderOption: the options, empty if the block is absent
//   - error: an error if the background is not a color
func (c *Config) RendererOptions() ([]renderer.RendererBuilderOption, error) {
	if c.Renderer == nil {
		return nil, nil
	}
	var opts []renderer.RendererBuilderOption
	if c.Renderer.VSync != nil {
		mode := renderer.PresentModeUncapped
		if *c.Renderer.VSync {
			mode = renderer.PresentModeVSync
		}
		opts = append(opts, renderer.WithPresentMode(mode))
	}
	if c.Renderer.MSAA > 0 {
		msaa, err := renderer.ParseMSAA(c.Renderer.MSAA)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		opts = append(opts, renderer.WithMSAA(msaa))
	}
	if c.Renderer.Background != "" {
		bg, err := colors.Parse(c.Renderer.Background)
		if err != nil {
			return nil, fmt.Errorf("config: renderer background: %w", err)
		}
		opts = append(opts, renderer.WithClearColor(wgpu.Color{
			R: float64(bg.R) / 255, G: float64(bg.G) / 255, B: float64(bg.B) / 255, A: float64(bg.A) / 255,
		}))
	}
	if c.Renderer.Software {
		opts = append(opts, renderer.WithForceSoftwareRenderer(true))
	}
	return opts, nil
}

// CameraOptions converts the camera block into camera builder options.
//
// Returns:
//   - []camera.CameraBuilderOption: the options, empty if the block is absent
func (c *Config) CameraOptions() []camera.CameraBuilderOption {
	if c.Camera == nil {
		return nil
	}
	var opts []camera.CameraBuilderOption
	if len(c.Camera.Center) >= 2 {
		opts = append(opts, camera.WithCenter(float32(c.Camera.Center[0]), float32(c.Camera.Center[1])))
	}
	if c.Camera.MinZoom > 0 && c.Camera.MaxZoom >= c.Camera.MinZoom {
		opts = append(opts, camera.WithZoomBounds(float32(c.Camera.MinZoom), float32(c.Camera.MaxZoom)))
	}
	if c.Camera.Zoom > 0 {
		opts = append(opts, camera.WithZoom(float32(c.Camera.Zoom)))
	}
	return opts
}

// FitCamera reports whether the camera should frame the graph after loading, and the margin.
func (c *Config) FitCamera() (bool, float32) {
	if c.Camera == nil {
		return true, 0
	}
	if c.Camera.Fit != nil {
		return *c.Camera.Fit, float32(c.Camera.Padding)
	}
	return c.Camera.Zoom <= 0, float32(c.Camera.Padding)
}

// Depth overlays the set attributes of the style on in.
//
// Parameters:
//   - in: the current depth inputs of the layer
//
// Returns:
//   - layer.DepthInputs: in with every set attribute replaced
func (s LayerStyle) Depth(in layer.DepthInputs) layer.DepthInputs {
	set := func(dst *float32, v *float64) {
		if v != nil {
			*dst = float32(*v)
		}
	}
	set(&in.Near, s.Near)
	set(&in.Far, s.Far)
	set(&in.NodesNear, s.NodesNear)
	set(&in.NodesFar, s.NodesFar)
	set(&in.EdgesNear, s.EdgesNear)
	set(&in.EdgesFar, s.EdgesFar)
	return in
}

// RenderUniforms returns the uniforms attribute as render uniforms.
func (s LayerStyle) RenderUniforms() (shader.Uniforms, error) {
	m, err := toMap("style "+s.Layer+" uniforms", s.Uniforms)
	return shader.Uniforms(m), err
}

// ComputeUniforms returns the compute attribute as compute uniforms.
func (s LayerStyle) ComputeUniforms() (shader.Uniforms, error) {
	m, err := toMap("style "+s.Layer+" compute", s.Compute)
	return shader.Uniforms(m), err
}

// PointRecords returns the points attribute as records.
func (g *Graph) PointRecords() ([]data.Record, error) {
	return toRecords("graph points", g.Points)
}

// ColorList returns the colors attribute, in registry order.
func (g *Graph) ColorList() ([]any, error) {
	return toList("graph colors", g.Colors)
}

// NodeRecords returns the nodes attribute of the layer as records.
func (l GraphLayer) NodeRecords() ([]data.Record, error) {
	return toRecords("layer "+l.Name+" nodes", l.Nodes)
}

// EdgeRecords returns the edges attribute of the layer as records.
func (l GraphLayer) EdgeRecords() ([]data.Record, error) {
	return toRecords("layer "+l.Name+" edges", l.Edges)
}
