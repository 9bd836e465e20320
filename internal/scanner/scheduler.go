package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"photo-library/internal/logging"
)

// FullScanner runs a scan over all users.
type FullScanner interface {
	ScanAll(ctx context.Context) error
}

// Scheduler triggers full scans on a cron schedule such as "@every 6h" or
// "0 3 * * *".
type Scheduler struct {
	cron    *cron.Cron
	entryID cron.EntryID
	cancel  context.CancelFunc
}

// NewScheduler validates spec and registers the scan job. Nothing runs
// until Start.
func NewScheduler(ctx context.Context, spec string, scanner FullScanner) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(ctx)
	c := cron.New()

	id, err := c.AddFunc(spec, func() {
		logging.Debug("Scheduled scan triggered")
		err := scanner.ScanAll(ctx)
		switch {
		case errors.Is(err, ErrScanRunning):
			logging.Debug("Scheduled scan skipped: a scan is already running")
		case err != nil:
			logging.Error("Scheduled scan failed: %v", err)
		}
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("invalid scan schedule %q: %w", spec, err)
	}

	return &Scheduler{cron: c, entryID: id, cancel: cancel}, nil
}

// Start starts the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	logging.Info("Scan scheduler started")
}

// Next returns the next scheduled run, or the zero time until the cron
// loop has computed it.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entryID).Next
}

// Stop cancels a running scheduled scan and waits for the job to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	logging.Info("Scan scheduler stopped")
}
