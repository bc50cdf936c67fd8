package data

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
		ok   bool
	}{
		{name: "string", in: "a", want: "a", ok: true},
		{name: "int", in: 7, want: int64(7), ok: true},
		{name: "uint8", in: uint8(7), want: int64(7), ok: true},
		{name: "integral float", in: 7.0, want: int64(7), ok: true},
		{name: "fraction", in: 7.5, want: 7.5, ok: true},
		{name: "huge uint", in: uint64(math.MaxUint64), want: uint64(math.MaxUint64), ok: true},
		{name: "nan", in: math.NaN(), ok: false},
		{name: "nil", in: nil, ok: false},
		{name: "bool", in: true, ok: false},
		{name: "tuple", in: []any{1, 2}, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeID(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}

	a, _ := NormalizeID(int64(3))
	b, _ := NormalizeID(float32(3))
	assert.Equal(t, a, b)
}

func TestNormalizeID_LargeIntegersStayDistinct(t *testing.T) {
	// both round to the same float64
	lo := int64(1 << 53)
	hi := lo + 1
	require.Equal(t, float64(lo), float64(hi))

	a, ok := NormalizeID(lo)
	require.True(t, ok)
	b, ok := NormalizeID(hi)
	require.True(t, ok)
	assert.NotEqual(t, a, b)

	c, _ := NormalizeID(uint64(lo))
	assert.Equal(t, a, c, "unsigned and signed kinds still agree")
}

func TestToFloat64KeepsBools(t *testing.T) {
	f, ok := toFloat64(true)
	assert.True(t, ok)
	assert.Equal(t, 1.0, f)
	f, ok = toFloat64(int16(-3))
	assert.True(t, ok)
	assert.Equal(t, -3.0, f)
	_, ok = toFloat64("3")
	assert.False(t, ok)
}
