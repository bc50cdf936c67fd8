package renderable

import "sync"

// Base is the state every renderable carries. It is safe for concurrent use.
type Base struct {
	mu          *sync.Mutex
	enabled     bool
	depth       DepthRange
	pickingBase uint32
}

// NewBase returns an enabled Base spanning the full depth range.
func NewBase() *Base {
	return &Base{
		mu:      &sync.Mutex{},
		enabled: true,
		depth:   DepthRange{Near: 0, Far: 1},
	}
}

// Enabled reports whether the renderable draws.
func (b *Base) Enabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabled
}

// SetEnabled turns drawing on or off. Disabled renderables still compute.
func (b *Base) SetEnabled(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enabled = enabled
}

// DepthRange returns the depth window draws are mapped into.
func (b *Base) DepthRange() DepthRange {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.depth
}

// SetDepthRange sets the depth window draws are mapped into.
func (b *Base) SetDepthRange(d DepthRange) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.depth = d
}

// PickingBase returns the picking id of the first instance.
func (b *Base) PickingBase() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pickingBase
}

// SetPickingBase sets the picking id of the first instance. Instance i is encoded as base+i.
func (b *Base) SetPickingBase(base uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pickingBase = base
}
