package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"photo-library/internal/cache"
	"photo-library/internal/database"
	"photo-library/internal/events"
	"photo-library/internal/exif"
	"photo-library/internal/filesystem"
	"photo-library/internal/logging"
	"photo-library/internal/media"
	"photo-library/internal/mediatypes"
	"photo-library/internal/metrics"
	"photo-library/internal/transcoder"
	"photo-library/internal/workers"
)

var (
	// ErrScanRunning is returned when a scan is requested while one runs.
	ErrScanRunning = errors.New("scan already running")
	// ErrNoRootPath is returned for users without a library root.
	ErrNoRootPath = errors.New("user has no root path")
	// ErrUserNotFound is returned by ScanUser for an unknown user id.
	ErrUserNotFound = errors.New("user not found")
)

// ScanRecorder stores when the last successful full scan finished.
type ScanRecorder interface {
	SetLastScanRun(ctx context.Context, t time.Time) error
}

// Options configures a Coordinator. Only Catalog and Layout are required;
// every other field has a working default.
type Options struct {
	Catalog Catalog
	Layout  cache.Layout

	// Sink receives progress events besides the in-process subscribers.
	Sink             events.Sink
	ProgressInterval time.Duration
	Clock            Clock

	MediaWorkers int
	AlbumWorkers int

	Encoder    ImageEncoder
	Previews   exif.PreviewExtractor
	Exif       exif.Parser
	Videos     VideoTool
	Frames     FrameExtractor
	Dimensions func(path string) (media.ImageDimensions, error)
	Classify   func(path string) (mediatypes.Kind, error)
	// CacheHas reports whether a cache file exists.
	CacheHas func(path string) bool
	// Memory, when set, is waited on before each photo is rebuilt.
	Memory  MemoryGate
	History ScanRecorder
}

// Coordinator runs at most one scan at a time and reports its progress.
type Coordinator struct {
	catalog  Catalog
	walker   *TreeWalker
	progress *Progress
	broker   *events.Broker
	history  ScanRecorder

	mu      sync.Mutex
	running bool
}

// NewCoordinator wires the processor, album scanner and tree walker.
func NewCoordinator(opts Options) *Coordinator {
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefaultProgressInterval
	}
	if opts.MediaWorkers <= 0 {
		opts.MediaWorkers = workers.ForCPU(0, 0)
	}
	if opts.AlbumWorkers <= 0 {
		opts.AlbumWorkers = workers.ForIO(8, 0)
	}
	if opts.Encoder == nil {
		opts.Encoder = media.NewEncoder()
	}
	if opts.Previews == nil || opts.Exif == nil {
		g := exif.NewGoexif()
		if opts.Previews == nil {
			opts.Previews = g
		}
		if opts.Exif == nil {
			opts.Exif = g
		}
	}
	if opts.Videos == nil {
		opts.Videos = transcoder.New()
	}
	if opts.Frames == nil {
		opts.Frames = media.ExtractVideoFrame
	}
	if opts.Dimensions == nil {
		opts.Dimensions = media.GetImageDimensions
	}
	if opts.Classify == nil {
		opts.Classify = mediatypes.Classify
	}
	if opts.CacheHas == nil {
		opts.CacheHas = filesystem.Exists
	}

	broker := events.NewBroker(16)
	sink := events.Sink(broker)
	if opts.Sink != nil {
		sink = events.MultiSink{broker, opts.Sink}
	}
	progress := NewProgress(sink, opts.ProgressInterval, opts.Clock)
	retry := filesystem.DefaultRetryConfig()

	processor := &Processor{
		catalog:    opts.Catalog,
		layout:     opts.Layout,
		encoder:    opts.Encoder,
		previews:   opts.Previews,
		exif:       opts.Exif,
		videos:     opts.Videos,
		frames:     opts.Frames,
		dimensions: opts.Dimensions,
		classify:   opts.Classify,
		cacheHas:   opts.CacheHas,
		memory:     opts.Memory,
		progress:   progress,
	}
	albums := &AlbumScanner{
		catalog:   opts.Catalog,
		processor: processor,
		pool:      workers.NewPool(opts.MediaWorkers),
		progress:  progress,
		layout:    opts.Layout,
		classify:  opts.Classify,
		retry:     retry,
	}

	logging.Info("Scanner: %d media workers, %d album workers", opts.MediaWorkers, opts.AlbumWorkers)

	return &Coordinator{
		catalog: opts.Catalog,
		walker: &TreeWalker{
			catalog:      opts.Catalog,
			albums:       albums,
			albumWorkers: opts.AlbumWorkers,
			layout:       opts.Layout,
			classify:     opts.Classify,
			retry:        retry,
		},
		progress: progress,
		broker:   broker,
		history:  opts.History,
	}
}

// IsRunning reports whether a scan is in progress.
func (c *Coordinator) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Subscribe streams progress events until cancel is called.
func (c *Coordinator) Subscribe() (<-chan events.ProgressEvent, func()) {
	return c.broker.Subscribe()
}

// Progress returns (enqueued, finished) of the current or last run.
func (c *Coordinator) Progress() (int64, int64) {
	return c.progress.Counts()
}

// ScanAll walks every user with a root path, one after the other. The first
// failing user aborts the run.
func (c *Coordinator) ScanAll(ctx context.Context) error {
	if !c.tryStart() {
		metrics.ScanRunsTotal.WithLabelValues("all", "rejected").Inc()
		return ErrScanRunning
	}
	defer c.finish()
	return c.runAll(ctx)
}

// StartAll is ScanAll in the background. Only the rejection is returned;
// the outcome of the run is reported through progress events.
func (c *Coordinator) StartAll(ctx context.Context) error {
	if !c.tryStart() {
		metrics.ScanRunsTotal.WithLabelValues("all", "rejected").Inc()
		return ErrScanRunning
	}
	go func() {
		defer c.finish()
		_ = c.runAll(ctx)
	}()
	return nil
}

func (c *Coordinator) runAll(ctx context.Context) error {
	return c.run(ctx, "all", func() error {
		users, err := c.catalog.ListUsersWithRootPath(ctx)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		for i := range users {
			if err := c.walker.Walk(ctx, &users[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// ScanUser walks a single user. Unknown users and users without a root path
// are rejected before anything is published.
func (c *Coordinator) ScanUser(ctx context.Context, userID string) error {
	if !c.tryStart() {
		metrics.ScanRunsTotal.WithLabelValues("user", "rejected").Inc()
		return ErrScanRunning
	}
	defer c.finish()

	user, err := c.scannableUser(ctx, userID)
	if err != nil {
		return err
	}
	return c.run(ctx, "user", func() error {
		return c.walker.Walk(ctx, user)
	})
}

// StartUser is ScanUser in the background. Preconditions are still checked
// before it returns.
func (c *Coordinator) StartUser(ctx context.Context, userID string) error {
	if !c.tryStart() {
		metrics.ScanRunsTotal.WithLabelValues("user", "rejected").Inc()
		return ErrScanRunning
	}

	user, err := c.scannableUser(ctx, userID)
	if err != nil {
		c.finish()
		return err
	}
	go func() {
		defer c.finish()
		_ = c.run(ctx, "user", func() error {
			return c.walker.Walk(ctx, user)
		})
	}()
	return nil
}

func (c *Coordinator) scannableUser(ctx context.Context, userID string) (*database.User, error) {
	user, err := c.catalog.FindUserByID(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", userID, err)
	}
	if user.RootPath == "" {
		logging.Info("User %s has no root path, skipping scan", user.Username)
		return nil, ErrNoRootPath
	}
	return user, nil
}

func (c *Coordinator) run(ctx context.Context, scope string, body func() error) error {
	start := time.Now()
	metrics.ScanRunning.Set(1)
	defer metrics.ScanRunning.Set(0)

	c.progress.Reset()
	c.progress.publish(events.ProgressEvent{Progress: 0})
	logging.Info("Scan (%s) started", scope)

	err := body()
	// the last throttled percentage goes out before the result
	c.progress.Flush()

	duration := time.Since(start)
	metrics.ScanLastRunDuration.Set(duration.Seconds())
	metrics.ScanLastRunTimestamp.Set(float64(time.Now().Unix()))

	if err != nil {
		metrics.ScanRunsTotal.WithLabelValues(scope, "error").Inc()
		logging.Error("Scan (%s) failed after %v: %v", scope, duration.Round(time.Millisecond), err)
		c.progress.publish(events.ProgressEvent{Finished: true, Success: false, ErrorMessage: err.Error()})
		return err
	}

	metrics.ScanRunsTotal.WithLabelValues(scope, "success").Inc()
	enq, _ := c.progress.Counts()
	logging.Info("Scan (%s) completed in %v: %d media", scope, duration.Round(time.Millisecond), enq)
	c.progress.publish(events.ProgressEvent{Progress: 100, Finished: true, Success: true})

	if scope == "all" && c.history != nil {
		if err := c.history.SetLastScanRun(ctx, time.Now()); err != nil {
			logging.Warn("Could not record scan time: %v", err)
		}
	}
	return nil
}

func (c *Coordinator) tryStart() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return false
	}
	c.running = true
	return true
}

func (c *Coordinator) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
}
