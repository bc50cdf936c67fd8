// Package camera provides the 2D orthographic camera graph scenes are viewed through.
package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/points"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/chewxy/math32"
)

type cameraImpl struct {
	mu *sync.Mutex

	center   [2]float32
	zoom     float32
	minZoom  float32
	maxZoom  float32
	viewport [2]float32
	zMin     float32
	zMax     float32

	viewProjectionMatrix [16]float32
	inverseMatrix        [16]float32
	frustum              common.Frustum
}

// Camera looks straight down the z axis at the graph plane. Zoom is measured in pixels per world
// unit, so a node of radius 1 at zoom 50 covers a disc of 50 pixels radius.
type Camera interface {
	// Center returns the world point at the middle of the viewport.
	//
	// Returns:
	//   - x, y: world coordinates
	Center() (x, y float32)

	// SetCenter moves the camera.
	//
	// Parameters:
	//   - x, y: world coordinates
	SetCenter(x, y float32)

	// Zoom returns the scale in pixels per world unit.
	Zoom() float32

	// SetZoom sets the scale, clamped to the configured bounds.
	//
	// Parameters:
	//   - zoom: pixels per world unit
	SetZoom(zoom float32)

	// Viewport returns the surface size in pixels.
	Viewport() (width, height float32)

	// SetViewport updates the surface size, usually after a window resize.
	SetViewport(width, height float32)

	// Pan moves the view by a pixel delta, as if the graph were dragged by it.
	//
	// Parameters:
	//   - dx, dy: the drag in pixels, y pointing down
	Pan(dx, dy float32)

	// ZoomAt multiplies the zoom by factor while keeping the world point under the pixel fixed.
	//
	// Parameters:
	//   - factor: the zoom multiplier, above 1 zooms in
	//   - x, y: the pixel to zoom around
	ZoomAt(factor, x, y float32)

	// Frame centers the camera on bounds and zooms so they fit the viewport with padding pixels
	// to spare on every side. The depth volume is widened to cover the bounds.
	//
	// Parameters:
	//   - b: the bounds to show
	//   - padding: the margin in pixels
	Frame(b points.Bounds, padding float32)

	// ViewProjectionMatrix returns the column major world to clip transform.
	ViewProjectionMatrix() [16]float32

	// ScreenToWorld maps a pixel to the graph plane.
	//
	// Parameters:
	//   - x, y: the pixel, origin top left
	//
	// Returns:
	//   - float32, float32: world coordinates
	ScreenToWorld(x, y float32) (float32, float32)

	// WorldToScreen maps a world point to its pixel.
	WorldToScreen(x, y float32) (float32, float32)

	// Visible reports whether a sphere intersects the view volume.
	//
	// Parameters:
	//   - x, y, z: the sphere center
	//   - radius: the sphere radius
	//
	// Returns:
	//   - bool: false only if the sphere is entirely outside
	Visible(x, y, z, radius float32) bool

	// Uniforms returns the "viewProj" and "viewport" render uniforms.
	Uniforms() shader.Uniforms
}

var _ Camera = &cameraImpl{}

// NewCamera creates a camera centered on the origin at zoom 1 with a 1x1 viewport.
//
// Parameters:
//   - options: builder options
//
// Returns:
//   - Camera: the camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:       &sync.Mutex{},
		zoom:     1,
		minZoom:  1e-6,
		maxZoom:  1e6,
		viewport: [2]float32{1, 1},
		zMin:     -1,
		zMax:     1,
	}
	for _, option := range options {
		option(c)
	}
	c.zoom = clamp(c.zoom, c.minZoom, c.maxZoom)
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Center() (float32, float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.center[0], c.center[1]
}

func (c *cameraImpl) SetCenter(x, y float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.center = [2]float32{x, y}
	c.updateMatrices()
}

func (c *cameraImpl) Zoom() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zoom
}

func (c *cameraImpl) SetZoom(zoom float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zoom = clamp(zoom, c.minZoom, c.maxZoom)
	c.updateMatrices()
}

func (c *cameraImpl) Viewport() (float32, float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewport[0], c.viewport[1]
}

func (c *cameraImpl) SetViewport(width, height float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewport = [2]float32{max(width, 1), max(height, 1)}
	c.updateMatrices()
}

func (c *cameraImpl) Pan(dx, dy float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.center[0] -= dx / c.zoom
	c.center[1] += dy / c.zoom
	c.updateMatrices()
}

func (c *cameraImpl) ZoomAt(factor, x, y float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if factor <= 0 {
		return
	}
	wx, wy := c.screenToWorld(x, y)
	c.zoom = clamp(c.zoom*factor, c.minZoom, c.maxZoom)
	// move the center so (wx, wy) lands back under the pixel
	c.center[0] = wx - (x-c.viewport[0]/2)/c.zoom
	c.center[1] = wy + (y-c.viewport[1]/2)/c.zoom
	c.updateMatrices()
}

func (c *cameraImpl) Frame(b points.Bounds, padding float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b.Count == 0 {
		return
	}
	center := b.Center()
	size := b.Size()
	c.center = [2]float32{center[0], center[1]}

	w := size[0] + 2*b.MaxRadius
	h := size[1] + 2*b.MaxRadius
	availW := max(c.viewport[0]-2*padding, 1)
	availH := max(c.viewport[1]-2*padding, 1)
	switch {
	case w > 0 && h > 0:
		c.zoom = math32.Min(availW/w, availH/h)
	case w > 0:
		c.zoom = availW / w
	case h > 0:
		c.zoom = availH / h
	}
	c.zoom = clamp(c.zoom, c.minZoom, c.maxZoom)
	c.zMin = math32.Min(c.zMin, b.Min[2]-1)
	c.zMax = math32.Max(c.zMax, b.Max[2]+1)
	c.updateMatrices()
}

func (c *cameraImpl) ViewProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProjectionMatrix
}

func (c *cameraImpl) ScreenToWorld(x, y float32) (float32, float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.screenToWorld(x, y)
}

func (c *cameraImpl) WorldToScreen(x, y float32) (float32, float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ndc := common.TransformPoint(c.viewProjectionMatrix[:], x, y, 0)
	return (ndc[0] + 1) / 2 * c.viewport[0], (1 - ndc[1]) / 2 * c.viewport[1]
}

func (c *cameraImpl) Visible(x, y, z, radius float32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frustum.ContainsSphere(x, y, z, radius)
}

func (c *cameraImpl) Uniforms() shader.Uniforms {
	c.mu.Lock()
	defer c.mu.Unlock()
	return shader.Uniforms{
		"viewProj": c.viewProjectionMatrix,
		"viewport": c.viewport,
	}
}

// screenToWorld unprojects a pixel on the z = 0 plane. Caller must hold the mutex.
func (c *cameraImpl) screenToWorld(x, y float32) (float32, float32) {
	ndcX := 2*x/c.viewport[0] - 1
	ndcY := 1 - 2*y/c.viewport[1]
	depth := common.TransformPoint(c.viewProjectionMatrix[:], 0, 0, 0)[2]
	p := common.TransformPoint(c.inverseMatrix[:], ndcX, ndcY, depth)
	return p[0], p[1]
}

// updateMatrices recalculates the view projection, its inverse and the frustum planes.
// Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	halfW := c.viewport[0] / 2 / c.zoom
	halfH := c.viewport[1] / 2 / c.zoom
	common.Ortho(c.viewProjectionMatrix[:],
		c.center[0]-halfW, c.center[0]+halfW,
		c.center[1]-halfH, c.center[1]+halfH,
		-c.zMax, -c.zMin,
	)
	common.Invert4(c.inverseMatrix[:], c.viewProjectionMatrix[:])
	c.frustum = common.ExtractFrustumFromMatrix(c.viewProjectionMatrix[:])
}

func clamp(v, lo, hi float32) float32 {
	return math32.Max(lo, math32.Min(hi, v))
}
