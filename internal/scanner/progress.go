package scanner

import (
	"sync"
	"sync/atomic"
	"time"

	"photo-library/internal/events"
	"photo-library/internal/metrics"
)

// DefaultProgressInterval is the minimum gap between two progress events.
const DefaultProgressInterval = 250 * time.Millisecond

// Clock returns the current time. Tests swap it for a virtual clock.
type Clock func() time.Time

// throttle lets one call through per interval.
type throttle struct {
	mu       sync.Mutex
	interval time.Duration
	now      Clock
	last     time.Time
}

func newThrottle(interval time.Duration, now Clock) *throttle {
	if now == nil {
		now = time.Now
	}
	return &throttle{interval: interval, now: now}
}

// Allow reports whether interval has passed since the last allowed call.
func (t *throttle) Allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}

func (t *throttle) reset() {
	t.mu.Lock()
	t.last = time.Time{}
	t.mu.Unlock()
}

// Progress counts media enqueued and finished during one scan run and
// publishes rate-limited percentage events. Finished never passes enqueued.
type Progress struct {
	enqueued atomic.Int64
	finished atomic.Int64
	sink     events.Sink
	throttle *throttle
}

// NewProgress publishes to sink at most once per interval as measured by now.
func NewProgress(sink events.Sink, interval time.Duration, now Clock) *Progress {
	return &Progress{sink: sink, throttle: newThrottle(interval, now)}
}

// Reset zeroes the counters at the start of a run.
func (p *Progress) Reset() {
	p.enqueued.Store(0)
	p.finished.Store(0)
	p.throttle.reset()
	metrics.ScanMediaEnqueued.Set(0)
	metrics.ScanMediaFinished.Set(0)
}

// MarkEnqueued counts one more media file scheduled in this run.
func (p *Progress) MarkEnqueued() {
	n := p.enqueued.Add(1)
	metrics.ScanMediaEnqueued.Set(float64(n))
}

// MarkFinished counts one media file as done and maybe publishes.
func (p *Progress) MarkFinished() {
	for {
		f := p.finished.Load()
		if f >= p.enqueued.Load() {
			return
		}
		if p.finished.CompareAndSwap(f, f+1) {
			metrics.ScanMediaFinished.Set(float64(f + 1))
			break
		}
	}

	if p.throttle.Allow() {
		p.publishCurrent()
	}
}

// Counts returns (enqueued, finished).
func (p *Progress) Counts() (int64, int64) {
	return p.enqueued.Load(), p.finished.Load()
}

// Percent returns the finished share in [0, 100]. ok is false before the
// first enqueue.
func (p *Progress) Percent() (pct float64, ok bool) {
	enq, fin := p.Counts()
	if enq == 0 {
		return 0, false
	}
	return float64(fin) / float64(enq) * 100, true
}

// Flush publishes the current percentage regardless of the rate limit.
func (p *Progress) Flush() {
	p.publishCurrent()
}

func (p *Progress) publishCurrent() {
	pct, ok := p.Percent()
	if !ok {
		return
	}
	p.publish(events.ProgressEvent{Progress: pct})
}

func (p *Progress) publish(ev events.ProgressEvent) {
	if p.sink == nil {
		return
	}
	metrics.ScanProgressEventsTotal.Inc()
	p.sink.Publish(ev)
}
