package events

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"photo-library/internal/logging"
	"photo-library/internal/metrics"
)

// DefaultSubject is used when NATS_SUBJECT is unset.
const DefaultSubject = "photo-library.scan.progress"

// NATSSink publishes progress events as JSON on a NATS subject.
type NATSSink struct {
	nc      *nats.Conn
	subject string
}

// NewNATSSink connects to url. The connection reconnects forever, so a
// broker outage only drops events.
func NewNATSSink(url, subject string) (*NATSSink, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	nc, err := nats.Connect(url,
		nats.Name("photo-library"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, err
	}
	logging.Info("Publishing scan progress to NATS subject %s", subject)
	return &NATSSink{nc: nc, subject: subject}, nil
}

func (s *NATSSink) Publish(ev ProgressEvent) {
	if err := s.publish(ev); err != nil {
		metrics.EventPublishErrors.WithLabelValues("nats").Inc()
		logging.Warn("NATS publish to %s failed: %v", s.subject, err)
	}
}

func (s *NATSSink) publish(ev ProgressEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.nc.Publish(s.subject, b)
}

// Close flushes pending messages and closes the connection.
func (s *NATSSink) Close() {
	if s.nc != nil {
		_ = s.nc.Drain()
	}
}
