// Package profiler reports frame rate, compute time and memory statistics of the viewer.
package profiler

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/common"
)

// Stats is one report of the profiler.
type Stats struct {
	// FPS is the number of frames per second over the interval.
	FPS float64
	// Computes is the number of compute frames recorded over the interval.
	Computes int
	// ComputeTime is the mean wall time of those compute frames.
	ComputeTime time.Duration
	// HeapMB is the live heap in MiB.
	HeapMB float64
	// AllocRateMB is the heap allocation rate in MiB per second.
	AllocRateMB float64
	// GCCount is the total number of garbage collections.
	GCCount uint32
	// LastPause and MaxPause are the last and the longest GC pause of the interval.
	LastPause, MaxPause time.Duration
	// SysMB is the memory obtained from the OS in MiB.
	SysMB float64
}

// Profiler tracks frame rate, compute time and memory statistics. It reports through the
// package logger at a configurable interval. Not safe for concurrent use; tick it from the
// render loop.
type Profiler struct {
	frameCount     int
	computeCount   int
	computeTotal   time.Duration
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	now            func() time.Time
	level          slog.Level
}

// ProfilerOption configures a Profiler.
type ProfilerOption func(p *Profiler)

// WithInterval sets how often Tick reports. The default is one second.
func WithInterval(d time.Duration) ProfilerOption {
	return func(p *Profiler) {
		p.updateInterval = d
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ProfilerOption {
	return func(p *Profiler) {
		p.now = now
	}
}

// WithLevel sets the log level of reports. The default is info.
func WithLevel(level slog.Level) ProfilerOption {
	return func(p *Profiler) {
		p.level = level
	}
}

// NewProfiler creates a new Profiler. The first interval starts now.
//
// Parameters:
//   - options: profiler options
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerOption) *Profiler {
	p := &Profiler{
		updateInterval: time.Second,
		now:            time.Now,
		level:          slog.LevelInfo,
	}
	for _, option := range options {
		option(p)
	}
	p.lastTime = p.now()
	return p
}

// RecordCompute adds one compute frame to the current interval.
//
// Parameters:
//   - elapsed: the wall time of the compute frame
func (p *Profiler) RecordCompute(elapsed time.Duration) {
	p.computeCount++
	p.computeTotal += elapsed
}

// Tick should be called once per frame. It reports when the update interval has elapsed.
//
// Returns:
//   - Stats: the report, zero when nothing was reported
//   - bool: true if stats were reported this tick
func (p *Profiler) Tick() (Stats, bool) {
	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval || elapsed <= 0 {
		return Stats{}, false
	}

	runtime.ReadMemStats(&p.memStats)
	s := Stats{
		FPS:         float64(p.frameCount) / elapsed.Seconds(),
		Computes:    p.computeCount,
		HeapMB:      float64(p.memStats.Alloc) / 1024 / 1024,
		SysMB:       float64(p.memStats.Sys) / 1024 / 1024,
		AllocRateMB: float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds(),
		GCCount:     p.memStats.NumGC,
	}
	if p.computeCount > 0 {
		s.ComputeTime = p.computeTotal / time.Duration(p.computeCount)
	}

	// PauseNs is a circular buffer of the last 256 pauses
	if gc := s.GCCount; gc > 0 {
		s.LastPause = time.Duration(p.memStats.PauseNs[(gc-1)%256])
		start := p.lastGCCount
		if gc-start > 256 {
			start = gc - 256
		}
		for i := start; i < gc; i++ {
			s.MaxPause = max(s.MaxPause, time.Duration(p.memStats.PauseNs[i%256]))
		}
	}

	common.Logger().Log(context.Background(), p.level, "profiler",
		"fps", s.FPS,
		"computes", s.Computes,
		"compute_time", s.ComputeTime,
		"heap_mb", s.HeapMB,
		"alloc_rate_mb", s.AllocRateMB,
		"gc", s.GCCount,
		"gc_last", s.LastPause,
		"gc_max", s.MaxPause,
		"sys_mb", s.SysMB,
	)

	p.frameCount = 0
	p.computeCount = 0
	p.computeTotal = 0
	p.lastTime = currentTime
	p.lastGCCount = s.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return s, true
}
