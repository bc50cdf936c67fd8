// Package loader turns graph data into a ready scene and applies style configuration to it.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/camera"
	"github.com/Carmen-Shannon/oxy-graph/engine/colors"
	"github.com/Carmen-Shannon/oxy-graph/engine/config"
	"github.com/Carmen-Shannon/oxy-graph/engine/data"
	"github.com/Carmen-Shannon/oxy-graph/engine/events"
	"github.com/Carmen-Shannon/oxy-graph/engine/graph/edges"
	"github.com/Carmen-Shannon/oxy-graph/engine/graph/nodes"
	"github.com/Carmen-Shannon/oxy-graph/engine/layer"
	"github.com/Carmen-Shannon/oxy-graph/engine/points"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer"
	"github.com/Carmen-Shannon/oxy-graph/engine/scene"
)

// ErrNoScene is returned by operations that need a loaded scene before Load succeeded.
var ErrNoScene = errors.New("loader: no scene loaded")

// session is the implementation of the Session interface.
type session struct {
	mu *sync.Mutex

	r        renderer.Renderer
	bus      *events.Bus
	cam      camera.Camera
	pool     worker.DynamicWorkerPool
	ownsPool bool
	fit      bool
	padding  float32
	name     string

	scene  scene.Scene
	store  points.Store
	colors colors.Registry
	closed bool
}

// Session owns the scene built from one graph and everything the scene shares: the point store,
// the color registry and the packing worker pool. Loading again replaces the scene.
type Session interface {
	// Load builds a scene from graph data and runs its first compute pass. The previous scene of
	// the session, if any, is released once the new one is ready. ctx is checked between layers.
	//
	// Parameters:
	//   - ctx: cancels the load between steps
	//   - gd: the graph data
	//
	// Returns:
	//   - scene.Scene: the new scene
	//   - error: an error if ctx is done, a layer cannot be built or the compute fails
	Load(ctx context.Context, gd GraphData) (scene.Scene, error)

	// LoadConfig loads the graph block of cfg and then applies its style blocks.
	//
	// Parameters:
	//   - ctx: cancels the load between steps
	//   - cfg: a decoded configuration
	//
	// Returns:
	//   - scene.Scene: the new scene
	//   - error: an error if the graph cannot be loaded or the style cannot be applied
	LoadConfig(ctx context.Context, cfg *config.Config) (scene.Scene, error)

	// Apply applies per layer style overrides to the loaded scene: enabled flags, depth bands,
	// render uniforms and compute uniforms. Layers with new compute uniforms are recomputed.
	// Styles naming no layer are reported in the result and logged.
	//
	// Parameters:
	//   - ctx: cancels between layers
	//   - style: the style to apply
	//
	// Returns:
	//   - events.ConfigApplied: the touched and the unknown layer names
	//   - error: ErrNoScene, a depth contract violation or a compute failure
	Apply(ctx context.Context, style config.Style) (events.ConfigApplied, error)

	// Scene returns the loaded scene, nil before the first Load.
	Scene() scene.Scene

	// Colors returns the color registry of the loaded graph, nil before the first Load.
	Colors() colors.Registry

	// Events returns the bus the session and its scenes publish on.
	Events() *events.Bus

	// Close releases the scene and the point store and stops an owned worker pool.
	Close()
}

var _ Session = &session{}

// NewSession creates a session drawing with r.
//
// Parameters:
//   - r: the renderer
//   - options: builder options
//
// Returns:
//   - Session: the session
func NewSession(r renderer.Renderer, options ...SessionBuilderOption) Session {
	s := &session{
		mu:   &sync.Mutex{},
		r:    r,
		fit:  true,
		name: "graph",
	}
	for _, option := range options {
		option(s)
	}
	if s.bus == nil {
		s.bus = events.NewBus()
	}
	if s.cam == nil {
		w, h := r.Size()
		s.cam = camera.NewCamera(camera.WithViewport(float32(w), float32(h)))
	}
	return s
}

func (s *session) Load(ctx context.Context, gd GraphData) (scene.Scene, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("loader: session closed")
	}
	started := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}

	reg, err := colors.NewRegistry(gd.Colors...)
	if err != nil {
		common.Logger().Warn("graph colors failed to parse", "error", err)
	}

	store := points.NewStore(points.WithCapacity(len(gd.Points)))
	sc := scene.New(s.r, store, scene.WithName(s.name), scene.WithCamera(s.cam), scene.WithEvents(s.bus))
	fail := func(err error) (scene.Scene, error) {
		sc.Release()
		store.Release(s.r)
		return nil, err
	}

	s.publish("points", store.InsertRecords(gd.Points))

	for i, ld := range gd.Layers {
		if err := ctx.Err(); err != nil {
			return fail(fmt.Errorf("loader: %w", err))
		}
		name := ld.Name
		if name == "" {
			name = sc.NextLayerName()
		}
		l, err := s.buildLayer(store, reg, name, ld)
		if err != nil {
			return fail(fmt.Errorf("loader: layer %d: %w", i, err))
		}
		if err := sc.AddLayer(l); err != nil {
			l.Release()
			return fail(fmt.Errorf("loader: %w", err))
		}
	}

	if err := ctx.Err(); err != nil {
		return fail(fmt.Errorf("loader: %w", err))
	}
	if err := sc.Compute(nil); err != nil {
		return fail(fmt.Errorf("loader: first compute: %w", err))
	}
	if s.fit {
		s.cam.Frame(store.Bounds(), s.padding)
	}

	if s.scene != nil {
		s.scene.Release()
		s.store.Release(s.r)
	}
	s.scene, s.store, s.colors = sc, store, reg

	common.Logger().Info("graph loaded",
		"scene", s.name,
		"points", store.Len(),
		"layers", len(gd.Layers),
		"elapsed", time.Since(started),
	)
	return sc, nil
}

// buildLayer builds the nodes, the optional edges and the layer holding them.
func (s *session) buildLayer(store points.Store, reg colors.Registry, name string, ld LayerData) (layer.Layer, error) {
	style, ok := nodes.StyleByName(ld.NodeStyle)
	if !ok {
		return nil, fmt.Errorf("%s: unknown node style %q", name, ld.NodeStyle)
	}
	variant, err := edges.ParseVariant(ld.EdgeType)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	records, inline := inlinePoints(ld.Nodes)
	if len(inline) > 0 {
		s.publish(name+"/points", store.InsertRecords(inline))
	}

	nodeOpts := []nodes.NodesBuilderOption{
		nodes.WithLabel(name + "/" + scene.FamilyNodes),
		nodes.WithStyle(style),
		nodes.WithColorParser(reg),
	}
	if s.pool != nil {
		nodeOpts = append(nodeOpts, nodes.WithWorkerPool(s.pool))
	}
	n, err := nodes.New(s.r, store, records, nodeOpts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	var e edges.Edges
	if len(ld.Edges) > 0 {
		edgeOpts := []edges.EdgesBuilderOption{
			edges.WithLabel(name + "/" + scene.FamilyEdges),
			edges.WithSegments(ld.Segments),
			edges.WithColorParser(reg),
		}
		if s.pool != nil {
			edgeOpts = append(edgeOpts, edges.WithWorkerPool(s.pool))
		}
		e, err = edges.New(s.r, store, n, ld.Edges, variant, edgeOpts...)
		if err != nil {
			n.Release()
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}

	l, err := layer.New(name, n, e)
	if err != nil {
		if e != nil {
			e.Release()
		}
		n.Release()
		return nil, err
	}
	return l, nil
}

// publish reports store warnings. Pipeline warnings are published by the scene.
func (s *session) publish(source string, warnings []data.Warning) {
	for _, w := range warnings {
		common.Logger().Warn("graph data", "source", source, "record", w.Record, "field", w.Field, "kind", w.Kind.String(), "message", w.Message)
		s.bus.Warnings.Publish(events.DataWarning{Source: source, Warning: w})
	}
}

func (s *session) LoadConfig(ctx context.Context, cfg *config.Config) (scene.Scene, error) {
	gd, err := FromConfig(cfg.Graph)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.fit, s.padding = cfg.FitCamera()
	s.mu.Unlock()

	sc, err := s.Load(ctx, gd)
	if err != nil {
		return nil, err
	}
	if _, err := s.Apply(ctx, cfg.Style()); err != nil {
		return sc, err
	}
	return sc, nil
}

func (s *session) Apply(ctx context.Context, style config.Style) (events.ConfigApplied, error) {
	s.mu.Lock()
	sc := s.scene
	s.mu.Unlock()

	var result events.ConfigApplied
	if sc == nil {
		return result, ErrNoScene
	}

	recompute := false
	for _, ls := range style.Layers {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("loader: apply: %w", err)
		}
		l, ok := sc.Layer(ls.Layer)
		if !ok {
			common.Logger().Warn("style names no layer", "layer", ls.Layer)
			result.Unknown = append(result.Unknown, ls.Layer)
			continue
		}

		if ls.Enabled != nil {
			l.SetEnabled(*ls.Enabled)
		}
		if err := l.SetDepth(ls.Depth(l.Depth())); err != nil {
			return result, fmt.Errorf("loader: apply %s: %w", ls.Layer, err)
		}

		u, err := ls.RenderUniforms()
		if err != nil {
			return result, fmt.Errorf("loader: apply %s: %w", ls.Layer, err)
		}
		if u != nil {
			l.Nodes().SetUniforms(u)
			if e := l.Edges(); e != nil {
				e.SetUniforms(u)
			}
		}

		cu, err := ls.ComputeUniforms()
		if err != nil {
			return result, fmt.Errorf("loader: apply %s: %w", ls.Layer, err)
		}
		if cu != nil {
			l.SetComputeUniforms(cu)
			recompute = true
		}
		result.Layers = append(result.Layers, ls.Layer)
	}

	if recompute {
		if err := sc.Compute(nil); err != nil {
			return result, fmt.Errorf("loader: apply: %w", err)
		}
	}

	common.Logger().Info("style applied", "layers", result.Layers, "unknown", result.Unknown)
	s.bus.ConfigApplied.Publish(result)
	return result, nil
}

func (s *session) Scene() scene.Scene {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene
}

func (s *session) Colors() colors.Registry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.colors
}

func (s *session) Events() *events.Bus {
	return s.bus
}

func (s *session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.scene != nil {
		s.scene.Release()
		s.store.Release(s.r)
		s.scene, s.store = nil, nil
	}
	if s.ownsPool && s.pool != nil {
		s.pool.Stop()
	}
}
