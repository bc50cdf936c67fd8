package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrtho_MapsVolumeToClipSpace(t *testing.T) {
	var m [16]float32
	Ortho(m[:], -10, 10, -5, 5, 0.1, 100)

	lo := TransformPoint(m[:], -10, -5, -0.1)
	assert.InDelta(t, -1, lo[0], 1e-5)
	assert.InDelta(t, -1, lo[1], 1e-5)
	assert.InDelta(t, 0, lo[2], 1e-5)

	hi := TransformPoint(m[:], 10, 5, -100)
	assert.InDelta(t, 1, hi[0], 1e-5)
	assert.InDelta(t, 1, hi[1], 1e-5)
	assert.InDelta(t, 1, hi[2], 1e-5)
}

func TestInvert4_RoundTrip(t *testing.T) {
	var m, inv [16]float32
	Ortho(m[:], -4, 6, -2, 3, 0.5, 20)
	m[12] += 0.25
	assert.True(t, Invert4(inv[:], m[:]))

	for _, p := range [][3]float32{{0, 0, -1}, {-4, 3, -0.5}, {5.5, -1.5, -19}} {
		ndc := TransformPoint(m[:], p[0], p[1], p[2])
		back := TransformPoint(inv[:], ndc[0], ndc[1], ndc[2])
		for i := range back {
			assert.InDelta(t, p[i], back[i], 1e-4)
		}
	}
}

func TestIdentity(t *testing.T) {
	m := make([]float32, 16)
	m[3] = 9
	Identity(m)
	assert.Equal(t, []float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}, m)
}

func TestInvert4_Singular(t *testing.T) {
	var zero, out [16]float32
	out[0] = 7
	assert.False(t, Invert4(out[:], zero[:]))
	assert.Equal(t, float32(7), out[0])
}

func TestCoalesce(t *testing.T) {
	assert.Equal(t, "b", Coalesce("", "b", "c"))
	assert.Equal(t, 0, Coalesce(0, 0))
}
