package bind_group_provider

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
)

func TestBindGroupProvider_SharedBuffers(t *testing.T) {
	owned, borrowed := new(wgpu.Buffer), new(wgpu.Buffer)
	p := NewBindGroupProvider("edges/compute", WithBuffer(0, owned), WithSharedBuffer(2, borrowed))

	assert.Equal(t, "edges/compute", p.Label())
	assert.Same(t, owned, p.Buffer(0))
	assert.Same(t, borrowed, p.Buffer(2))
	assert.False(t, p.Shared(0))
	assert.True(t, p.Shared(2))

	// replacing a shared binding with an owned buffer transfers ownership
	p.SetBuffer(2, owned)
	assert.False(t, p.Shared(2))

	p.Reset()
	assert.Empty(t, p.Buffers())
	assert.Nil(t, p.BindGroup())
}
