package camera

// CameraBuilderOption is a function that configures a camera.
type CameraBuilderOption func(*cameraImpl)

// WithCenter sets the world point at the middle of the viewport.
//
// Parameters:
//   - x, y: world coordinates
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera center
func WithCenter(x, y float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.center = [2]float32{x, y}
	}
}

// WithZoom sets the initial scale in pixels per world unit.
//
// Parameters:
//   - zoom: pixels per world unit
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera zoom
func WithZoom(zoom float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.zoom = zoom
	}
}

// WithZoomBounds limits the zoom.
//
// Parameters:
//   - min: the smallest zoom
//   - max: the largest zoom
//
// Returns:
//   - CameraBuilderOption: a function that sets the zoom bounds
func WithZoomBounds(min, max float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.minZoom = min
		c.maxZoom = max
	}
}

// WithViewport sets the surface size in pixels.
func WithViewport(width, height float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.viewport = [2]float32{max(width, 1), max(height, 1)}
	}
}

// WithDepthVolume sets the world z range that maps onto the depth buffer. Points at zMax are
// nearest to the viewer.
func WithDepthVolume(zMin, zMax float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.zMin = zMin
		c.zMax = zMax
	}
}
