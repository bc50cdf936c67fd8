package common

import "github.com/chewxy/math32"

// Plane represents a plane in 3D space using the equation: ax + by + cz + d = 0
// where (a, b, c) is the normal and d is the distance from origin.
type Plane struct {
	Normal   [3]float32
	Distance float32
}

// Frustum represents the six planes of a view volume.
// Planes are oriented so that positive half-space is inside the frustum.
type Frustum struct {
	Planes [6]Plane // Left, Right, Bottom, Top, Near, Far
}

// FrustumPlane indices for clarity
const (
	FrustumLeft   = 0
	FrustumRight  = 1
	FrustumBottom = 2
	FrustumTop    = 3
	FrustumNear   = 4
	FrustumFar    = 5
)

// ExtractFrustumFromMatrix extracts frustum planes from a view-projection matrix using the
// Gribb/Hartmann method. Clip depth runs from 0 to 1 as in WebGPU, so the near plane is row 2
// alone rather than row 3 + row 2.
//
// Parameters:
//   - viewProj: 16 float32 values representing the view-projection matrix (column-major)
//
// Returns:
//   - Frustum: the extracted frustum with normalized planes
func ExtractFrustumFromMatrix(viewProj []float32) Frustum {
	var f Frustum

	// element (row i, column j) lives at viewProj[j*4+i]
	row := func(i int) [4]float32 {
		return [4]float32{viewProj[i], viewProj[4+i], viewProj[8+i], viewProj[12+i]}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)
	set := func(index int, sign float32, r [4]float32, base [4]float32) {
		p := &f.Planes[index]
		for k := range 3 {
			p.Normal[k] = base[k] + sign*r[k]
		}
		p.Distance = base[3] + sign*r[3]
	}

	set(FrustumLeft, 1, r0, r3)
	set(FrustumRight, -1, r0, r3)
	set(FrustumBottom, 1, r1, r3)
	set(FrustumTop, -1, r1, r3)
	set(FrustumNear, 1, r2, [4]float32{})
	set(FrustumFar, -1, r2, r3)

	for i := range f.Planes {
		f.normalizePlane(i)
	}
	return f
}

// ContainsSphere reports whether a sphere is at least partly inside the frustum.
//
// Parameters:
//   - x, y, z: the sphere center
//   - radius: the sphere radius
//
// Returns:
//   - bool: false if the sphere lies entirely behind any plane
func (f *Frustum) ContainsSphere(x, y, z, radius float32) bool {
	for _, p := range f.Planes {
		if p.Normal[0]*x+p.Normal[1]*y+p.Normal[2]*z+p.Distance < -radius {
			return false
		}
	}
	return true
}

// normalizePlane normalizes a frustum plane so that the normal has unit length.
func (f *Frustum) normalizePlane(index int) {
	p := &f.Planes[index]
	length := math32.Sqrt(p.Normal[0]*p.Normal[0] + p.Normal[1]*p.Normal[1] + p.Normal[2]*p.Normal[2])
	if length > 0 {
		invLen := 1 / length
		p.Normal[0] *= invLen
		p.Normal[1] *= invLen
		p.Normal[2] *= invLen
		p.Distance *= invLen
	}
}
