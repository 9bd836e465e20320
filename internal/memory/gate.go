package memory

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"photo-library/internal/logging"
	"photo-library/internal/metrics"
)

// Config tunes a Gate.
type Config struct {
	// LimitBytes is the heap budget; 0 uses GOMEMLIMIT.
	LimitBytes int64
	// ResumeAt and PauseAt are fractions of the budget.
	ResumeAt      float64
	PauseAt       float64
	CheckInterval time.Duration
}

// DefaultConfig pauses media processing at 85% of the budget and resumes at 70%.
func DefaultConfig() Config {
	return Config{
		ResumeAt:      0.70,
		PauseAt:       0.85,
		CheckInterval: 5 * time.Second,
	}
}

// Gate holds back media processing while heap usage is critical.
type Gate struct {
	config Config
	limit  int64
	sample func() uint64

	mu      sync.RWMutex
	alloc   uint64
	paused  bool
	resumed chan struct{}

	stop     chan struct{}
	stopOnce sync.Once
}

// NewGate returns a gate over the configured or runtime memory limit.
// Without a limit the gate never pauses.
func NewGate(config Config) *Gate {
	limit := config.LimitBytes
	if limit == 0 {
		if l := debug.SetMemoryLimit(-1); l > 0 && l < 1<<62 {
			limit = l
		}
	}
	if limit == 0 {
		logging.Debug("Memory gate disabled: no memory limit")
	}
	return &Gate{
		config:  config,
		limit:   limit,
		sample:  heapAlloc,
		resumed: make(chan struct{}),
		stop:    make(chan struct{}),
	}
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Alloc
}

// Start samples memory usage until Stop.
func (g *Gate) Start() {
	if g.limit == 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(g.config.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				g.check()
			case <-g.stop:
				return
			}
		}
	}()
}

// Stop ends sampling and releases every waiter.
func (g *Gate) Stop() {
	g.stopOnce.Do(func() { close(g.stop) })
}

func (g *Gate) check() {
	alloc := g.sample()
	usage := float64(alloc) / float64(g.limit)
	metrics.MemoryUsageRatio.Set(usage)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.alloc = alloc

	switch {
	case !g.paused && usage >= g.config.PauseAt:
		logging.Warn("Memory at %.1f%% of limit, pausing media processing", usage*100)
		g.paused = true
		metrics.MemoryPaused.Set(1)
		metrics.MemoryPausesTotal.Inc()
		go runtime.GC()
	case g.paused && usage < g.config.ResumeAt:
		logging.Info("Memory at %.1f%% of limit, resuming media processing", usage*100)
		g.paused = false
		metrics.MemoryPaused.Set(0)
		close(g.resumed)
		g.resumed = make(chan struct{})
	}
}

// Wait blocks while the gate is paused. It returns ctx.Err() if ctx ends
// first and nil once processing may continue or the gate is stopped.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.RLock()
	paused, resumed := g.paused, g.resumed
	g.mu.RUnlock()
	if !paused {
		return nil
	}

	select {
	case <-resumed:
		return nil
	case <-g.stop:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Paused reports whether processing is held back.
func (g *Gate) Paused() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.paused
}

// Usage is the last sampled allocation as a fraction of the limit.
func (g *Gate) Usage() float64 {
	if g.limit == 0 {
		return 0
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return float64(g.alloc) / float64(g.limit)
}
