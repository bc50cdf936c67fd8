package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

func TestProfiler_ReportsEveryInterval(t *testing.T) {
	c := &clock{t: time.Unix(100, 0)}
	p := NewProfiler(WithClock(c.now), WithInterval(time.Second))

	for range 29 {
		c.t = c.t.Add(10 * time.Millisecond)
		_, ok := p.Tick()
		require.False(t, ok)
	}
	p.RecordCompute(2 * time.Millisecond)
	p.RecordCompute(4 * time.Millisecond)

	c.t = time.Unix(101, 0)
	s, ok := p.Tick()
	require.True(t, ok)
	assert.InDelta(t, 30, s.FPS, 1e-9)
	assert.Equal(t, 2, s.Computes)
	assert.Equal(t, 3*time.Millisecond, s.ComputeTime)
	assert.Greater(t, s.SysMB, 0.0)

	c.t = c.t.Add(2 * time.Second)
	s, ok = p.Tick()
	require.True(t, ok)
	assert.InDelta(t, 0.5, s.FPS, 1e-9, "counters restart after a report")
	assert.Zero(t, s.Computes)
	assert.Zero(t, s.ComputeTime)
}
