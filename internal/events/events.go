// Package events carries scan progress from the scanner to whoever listens:
// in-process subscribers through Broker, other services through NATSSink.
package events

import (
	"sync"

	"photo-library/internal/metrics"
)

// ProgressEvent is one scan progress notification.
type ProgressEvent struct {
	Progress     float64 `json:"progress"`
	Finished     bool    `json:"finished"`
	Success      bool    `json:"success"`
	ErrorMessage string  `json:"errorMessage,omitempty"`
}

// Sink receives progress events. Publish must not block the scan.
type Sink interface {
	Publish(ev ProgressEvent)
}

// MultiSink publishes to every sink in order.
type MultiSink []Sink

func (m MultiSink) Publish(ev ProgressEvent) {
	for _, s := range m {
		if s != nil {
			s.Publish(ev)
		}
	}
}

// Broker fans events out to in-process subscribers. A slow subscriber loses
// its oldest queued event rather than stalling the publisher.
type Broker struct {
	mu     sync.Mutex
	subs   map[int]chan ProgressEvent
	nextID int
	buffer int
}

// NewBroker creates a broker whose subscriber channels hold buffer events.
func NewBroker(buffer int) *Broker {
	if buffer < 1 {
		buffer = 1
	}
	return &Broker{subs: make(map[int]chan ProgressEvent), buffer: buffer}
}

// Subscribe returns a channel of events and a cancel func that closes it.
// Calling cancel more than once is safe.
func (b *Broker) Subscribe() (<-chan ProgressEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan ProgressEvent, b.buffer)
	b.subs[id] = ch
	metrics.EventSubscribers.Set(float64(len(b.subs)))

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
			metrics.EventSubscribers.Set(float64(len(b.subs)))
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broker) Publish(ev ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
			continue
		default:
		}
		// full: drop the oldest so the newest state always lands
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
			metrics.EventPublishErrors.WithLabelValues("broker").Inc()
		}
	}
}
