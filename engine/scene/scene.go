// Package scene composes graph layers into frames: it orders their draws, batches their compute
// passes and resolves picking ids back to records.
package scene

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/camera"
	"github.com/Carmen-Shannon/oxy-graph/engine/data"
	"github.com/Carmen-Shannon/oxy-graph/engine/events"
	"github.com/Carmen-Shannon/oxy-graph/engine/layer"
	"github.com/Carmen-Shannon/oxy-graph/engine/points"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderable"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
)

// ErrLayerNotFound is returned when a layer name matches no layer of the scene.
var ErrLayerNotFound = errors.New("layer not found")

// Pass selects which families of every layer a render pass draws.
type Pass int

const (
	// PassNodes draws the nodes of every layer.
	PassNodes Pass = 1 << iota
	// PassEdges draws the edges of every layer.
	PassEdges
	// PassAll draws each layer's nodes and then its edges before moving to the next layer.
	PassAll = PassNodes | PassEdges
)

// Family names used in pick results.
const (
	FamilyNodes = "nodes"
	FamilyEdges = "edges"
)

// pickRange maps a block of picking ids back to the renderable that drew them.
type pickRange struct {
	base   uint32
	count  uint32
	layer  string
	family string
	target renderable.Renderable
	ids    func(uint32) (any, bool)
}

// scene is the implementation of the Scene interface.
type scene struct {
	mu *sync.Mutex

	name   string
	active bool
	r      renderer.Renderer
	store  points.Store
	cam    camera.Camera
	bus    *events.Bus
	start  time.Time
	now    func() time.Time

	layers    []layer.Layer
	nextLayer int
	picking   []pickRange
}

// Scene is an ordered list of layers sharing one point store. Layer order is render order: the
// first layer's nodes and edges are drawn before anything of the second layer.
// Thread-safe for concurrent access; GPU work is expected to come from one goroutine.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// SetName sets the scene's identifier.
	SetName(name string)

	// Active returns whether this scene is currently active for rendering.
	Active() bool

	// SetActive sets whether this scene is active for rendering.
	SetActive(active bool)

	// Renderer returns the scene's renderer.
	Renderer() renderer.Renderer

	// Store returns the point store the layers reference.
	Store() points.Store

	// Camera returns the scene's camera, nil if none is attached.
	Camera() camera.Camera

	// SetCamera replaces the scene's camera.
	//
	// Parameters:
	//   - cam: the new camera
	SetCamera(cam camera.Camera)

	// Events returns the bus the scene publishes on.
	Events() *events.Bus

	// Layers returns the layers in render order.
	//
	// Returns:
	//   - []layer.Layer: a copy of the layer list
	Layers() []layer.Layer

	// Layer returns the layer with the given name.
	//
	// Parameters:
	//   - name: the layer name
	//
	// Returns:
	//   - layer.Layer: the layer
	//   - bool: false if no layer has the name
	Layer(name string) (layer.Layer, bool)

	// AddLayer appends a layer, publishes LayerAdded and forwards the packing warnings of its
	// nodes and edges on the Warnings topic. The scene takes ownership of the layer.
	//
	// Parameters:
	//   - l: the layer to add
	//
	// Returns:
	//   - error: an error if a layer with the same name exists
	AddLayer(l layer.Layer) error

	// RemoveLayer removes a layer, releases it and publishes LayerRemoved.
	//
	// Parameters:
	//   - name: the layer name
	//
	// Returns:
	//   - error: ErrLayerNotFound if no layer has the name
	RemoveLayer(name string) error

	// MoveLayer changes the render position of a layer.
	//
	// Parameters:
	//   - name: the layer name
	//   - index: the new position, clamped to the layer list
	//
	// Returns:
	//   - error: ErrLayerNotFound if no layer has the name
	MoveLayer(name string, index int) error

	// NextLayerName returns a fresh name from the scene's own counter: layer_0, layer_1, ...
	// Names already taken by explicitly named layers are skipped.
	NextLayerName() string

	// FrameUniforms returns the uniforms derived from the scene: the camera transform and
	// viewport if a camera is attached, and the time since the scene was created.
	FrameUniforms() shader.Uniforms

	// Render draws every enabled layer in a frame of its own, nodes before edges within each
	// layer, and presents it in normal mode. Picking mode renders into the picking target.
	//
	// Parameters:
	//   - mode: the render mode
	//   - uniforms: render uniforms, overriding FrameUniforms
	//
	// Returns:
	//   - error: an error if the frame cannot be opened or a draw fails
	Render(mode renderable.Mode, uniforms shader.Uniforms) error

	// RenderPass encodes one pass into the frame opened by the caller. PassNodes draws the
	// nodes of every layer, PassEdges the edges, PassAll both in layer order. Splitting the
	// passes lets callers draw all edges over all nodes, or the reverse.
	//
	// Parameters:
	//   - mode: the render mode of the open frame
	//   - uniforms: render uniforms, overriding FrameUniforms
	//   - pass: the families to draw
	//
	// Returns:
	//   - error: an error if a draw fails
	RenderPass(mode renderable.Mode, uniforms shader.Uniforms, pass Pass) error

	// Compute records every layer's compute passes into one compute frame, nodes before edges
	// within each layer, and publishes ComputeDone. Disabled layers are computed too.
	//
	// Parameters:
	//   - uniforms: compute uniforms shared by every pipeline
	//
	// Returns:
	//   - error: an error if a dispatch fails
	Compute(uniforms shader.Uniforms) error

	// Pick renders the picking target and decodes the element under a pixel. The result is
	// published on the Picked topic as well.
	//
	// Parameters:
	//   - x, y: the pixel, origin top left
	//   - uniforms: render uniforms, they must match the last visible frame for the result to
	//     agree with what is on screen
	//
	// Returns:
	//   - events.Picked: the hit, Hit is false if the pixel is empty
	//   - error: an error if rendering or the readback fails
	Pick(x, y int, uniforms shader.Uniforms) (events.Picked, error)

	// Release frees every layer. The point store is left to its owner.
	Release()
}

var _ Scene = &scene{}

// New creates an empty scene drawing through r.
//
// Parameters:
//   - r: the renderer
//   - store: the point store shared by the scene's layers
//   - options: builder options
//
// Returns:
//   - Scene: the scene
func New(r renderer.Renderer, store points.Store, options ...SceneBuilderOption) Scene {
	s := &scene{
		mu:     &sync.Mutex{},
		name:   "scene",
		active: true,
		r:      r,
		store:  store,
		now:    time.Now,
	}
	for _, option := range options {
		option(s)
	}
	if s.bus == nil {
		s.bus = events.NewBus()
	}
	s.start = s.now()
	return s
}

func (s *scene) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

func (s *scene) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *scene) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *scene) Renderer() renderer.Renderer {
	return s.r
}

func (s *scene) Store() points.Store {
	return s.store
}

func (s *scene) Camera() camera.Camera {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cam
}

func (s *scene) SetCamera(cam camera.Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cam = cam
}

func (s *scene) Events() *events.Bus {
	return s.bus
}

func (s *scene) Layers() []layer.Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.layers)
}

func (s *scene) Layer(name string) (layer.Layer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(name)
	if i < 0 {
		return nil, false
	}
	return s.layers[i], true
}

func (s *scene) AddLayer(l layer.Layer) error {
	s.mu.Lock()
	if s.indexOf(l.Name()) >= 0 {
		s.mu.Unlock()
		return fmt.Errorf("scene: layer %q already exists", l.Name())
	}
	s.layers = append(s.layers, l)
	index := len(s.layers) - 1
	s.mu.Unlock()

	common.Logger().Debug("layer added", "scene", s.Name(), "layer", l.Name(), "index", index)
	s.bus.LayerAdded.Publish(events.LayerChanged{Name: l.Name(), Index: index})
	s.publishWarnings(l.Name()+"/"+FamilyNodes, l.Nodes().Warnings())
	if e := l.Edges(); e != nil {
		s.publishWarnings(l.Name()+"/"+FamilyEdges, e.Warnings())
	}
	return nil
}

func (s *scene) publishWarnings(source string, warnings []data.Warning) {
	for _, w := range warnings {
		s.bus.Warnings.Publish(events.DataWarning{Source: source, Warning: w})
	}
}

func (s *scene) RemoveLayer(name string) error {
	s.mu.Lock()
	i := s.indexOf(name)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("scene: %q: %w", name, ErrLayerNotFound)
	}
	l := s.layers[i]
	s.layers = slices.Delete(s.layers, i, i+1)
	s.picking = nil
	s.mu.Unlock()

	l.Release()
	s.bus.LayerRemoved.Publish(events.LayerChanged{Name: name, Index: i})
	return nil
}

func (s *scene) MoveLayer(name string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(name)
	if i < 0 {
		return fmt.Errorf("scene: %q: %w", name, ErrLayerNotFound)
	}
	l := s.layers[i]
	s.layers = slices.Delete(s.layers, i, i+1)
	index = max(0, min(index, len(s.layers)))
	s.layers = slices.Insert(s.layers, index, l)
	return nil
}

func (s *scene) NextLayerName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		name := fmt.Sprintf("layer_%d", s.nextLayer)
		s.nextLayer++
		if s.indexOf(name) < 0 {
			return name
		}
	}
}

// indexOf returns the position of a layer name, -1 if absent. Caller must hold the mutex.
func (s *scene) indexOf(name string) int {
	return slices.IndexFunc(s.layers, func(l layer.Layer) bool { return l.Name() == name })
}

func (s *scene) FrameUniforms() shader.Uniforms {
	s.mu.Lock()
	cam, start, now := s.cam, s.start, s.now
	s.mu.Unlock()

	u := shader.Uniforms{"time": float32(now().Sub(start).Seconds())}
	if cam != nil {
		maps.Copy(u, cam.Uniforms())
	}
	return u
}

// frameUniforms layers the caller's uniforms over the scene's own.
func (s *scene) frameUniforms(uniforms shader.Uniforms) shader.Uniforms {
	u := s.FrameUniforms()
	maps.Copy(u, uniforms)
	return u
}

func (s *scene) Render(mode renderable.Mode, uniforms shader.Uniforms) error {
	if mode == renderable.ModePicking {
		if err := s.assignPickingIDs(); err != nil {
			return err
		}
		if err := s.r.BeginPickingFrame(); err != nil {
			return fmt.Errorf("scene: begin picking frame: %w", err)
		}
	} else if err := s.r.BeginFrame(); err != nil {
		return fmt.Errorf("scene: begin frame: %w", err)
	}

	err := s.RenderPass(mode, uniforms, PassAll)
	s.r.EndFrame()
	if err != nil {
		return err
	}
	if mode == renderable.ModeNormal {
		s.r.Present()
	}
	return nil
}

func (s *scene) RenderPass(mode renderable.Mode, uniforms shader.Uniforms, pass Pass) error {
	u := s.frameUniforms(uniforms)
	layers := s.Layers()

	switch pass {
	case PassAll:
		for _, l := range layers {
			if err := l.Render(mode, u); err != nil {
				return fmt.Errorf("scene: %w", err)
			}
		}
	case PassNodes:
		for _, l := range layers {
			if err := l.RenderNodes(mode, u); err != nil {
				return fmt.Errorf("scene: %w", err)
			}
		}
	case PassEdges:
		for _, l := range layers {
			if err := l.RenderEdges(mode, u); err != nil {
				return fmt.Errorf("scene: %w", err)
			}
		}
	default:
		return fmt.Errorf("scene: unknown pass %d", pass)
	}
	return nil
}

func (s *scene) Compute(uniforms shader.Uniforms) error {
	started := time.Now()
	layers := s.Layers()
	if err := s.r.BeginComputeFrame(); err != nil {
		return fmt.Errorf("scene: begin compute frame: %w", err)
	}

	dispatched := 0
	for _, l := range layers {
		if err := l.Dispatch(uniforms); err != nil {
			s.r.EndComputeFrame()
			return fmt.Errorf("scene: %w", err)
		}
		if l.Nodes().Count() > 0 {
			dispatched++
		}
		if e := l.Edges(); e != nil && e.Count() > 0 {
			dispatched++
		}
	}
	s.r.EndComputeFrame()

	elapsed := time.Since(started)
	common.Logger().Debug("scene computed", "scene", s.Name(), "pipelines", dispatched, "elapsed", elapsed)
	s.bus.ComputeDone.Publish(events.ComputeDone{Pipelines: dispatched, Elapsed: elapsed})
	return nil
}

// assignPickingIDs hands out consecutive picking id blocks to every renderable in render order.
func (s *scene) assignPickingIDs() error {
	layers := s.Layers()
	ranges := make([]pickRange, 0, 2*len(layers))
	next := uint64(0)
	add := func(l layer.Layer, family string, target renderable.Renderable, ids func(uint32) (any, bool)) error {
		count := uint64(target.Count())
		if next+count > renderable.MaxPickingID+1 {
			return fmt.Errorf("scene: %d pickable elements exceed the picking id space", next+count)
		}
		target.SetPickingBase(uint32(next))
		ranges = append(ranges, pickRange{
			base:   uint32(next),
			count:  uint32(count),
			layer:  l.Name(),
			family: family,
			target: target,
			ids:    ids,
		})
		next += count
		return nil
	}
	for _, l := range layers {
		n := l.Nodes()
		if err := add(l, FamilyNodes, n, n.Pipeline().RecordID); err != nil {
			return err
		}
		if e := l.Edges(); e != nil {
			if err := add(l, FamilyEdges, e, e.Pipeline().RecordID); err != nil {
				return err
			}
		}
	}

	s.mu.Lock()
	s.picking = ranges
	s.mu.Unlock()
	return nil
}

func (s *scene) Pick(x, y int, uniforms shader.Uniforms) (events.Picked, error) {
	result := events.Picked{X: x, Y: y}
	if err := s.Render(renderable.ModePicking, uniforms); err != nil {
		return result, err
	}
	texel, err := s.r.ReadPickingPixel(x, y)
	if err != nil {
		return result, fmt.Errorf("scene: pick (%d, %d): %w", x, y, err)
	}

	if id, ok := renderable.DecodePickingColor(texel); ok {
		s.mu.Lock()
		ranges := s.picking
		s.mu.Unlock()
		for _, pr := range ranges {
			if id < pr.base || id-pr.base >= pr.count {
				continue
			}
			result.Hit = true
			result.Layer = pr.layer
			result.Family = pr.family
			result.Index = id - pr.base
			if recordID, ok := pr.ids(result.Index); ok {
				result.ID = recordID
			}
			break
		}
	}

	s.bus.Picked.Publish(result)
	return result, nil
}

func (s *scene) Release() {
	s.mu.Lock()
	layers := s.layers
	s.layers = nil
	s.picking = nil
	s.mu.Unlock()
	for _, l := range layers {
		l.Release()
	}
}
