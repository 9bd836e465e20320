package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInitializeMetricsPrepopulatesLabels(t *testing.T) {
	InitializeMetrics()

	tests := []struct {
		name      string
		collector prometheus.Collector
		min       int
	}{
		{"ScanRunsTotal", ScanRunsTotal, 6},
		{"ScanAlbumsTotal", ScanAlbumsTotal, 3},
		{"ProcessorResultsTotal", ProcessorResultsTotal, 9},
		{"FilesystemRetryAttempts", FilesystemRetryAttempts, 9},
		{"CatalogMediaTotal", CatalogMediaTotal, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testutil.CollectAndCount(tt.collector); got < tt.min {
				t.Errorf("%s exported %d series, want at least %d", tt.name, got, tt.min)
			}
		})
	}
}

func TestFilesystemObserver(t *testing.T) {
	obs := NewFilesystemObserver()

	before := testutil.ToFloat64(FilesystemOperationErrors.WithLabelValues("cache", "stat"))
	obs.ObserveOperation("cache", "stat", 0.001, errors.New("boom"))
	obs.ObserveOperation("cache", "stat", 0.001, nil)
	if got := testutil.ToFloat64(FilesystemOperationErrors.WithLabelValues("cache", "stat")); got != before+1 {
		t.Errorf("FilesystemOperationErrors = %v, want %v", got, before+1)
	}

	beforeStale := testutil.ToFloat64(FilesystemStaleErrors.WithLabelValues("open", "library"))
	obs.ObserveStaleError("open", "library")
	if got := testutil.ToFloat64(FilesystemStaleErrors.WithLabelValues("open", "library")); got != beforeStale+1 {
		t.Errorf("FilesystemStaleErrors = %v, want %v", got, beforeStale+1)
	}
}

func TestSetAppInfo(t *testing.T) {
	SetAppInfo("1.2.3", "abc123", "go1.25")
	if got := testutil.ToFloat64(AppInfo.WithLabelValues("1.2.3", "abc123", "go1.25")); got != 1 {
		t.Errorf("AppInfo = %v, want 1", got)
	}
}

type fakeStats struct {
	mu    sync.Mutex
	calls int
	stats Stats
	err   error
}

func (f *fakeStats) CatalogStats(context.Context) (Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.stats, f.err
}

func TestCollectorUpdatesGauges(t *testing.T) {
	provider := &fakeStats{stats: Stats{Users: 2, Albums: 5, Images: 40, Videos: 3, OpenConnections: 4}}

	c := NewCollector(provider, time.Hour)
	c.Start()
	c.Stop()

	if got := testutil.ToFloat64(CatalogAlbumsTotal); got != 5 {
		t.Errorf("CatalogAlbumsTotal = %v, want 5", got)
	}
	if got := testutil.ToFloat64(CatalogMediaTotal.WithLabelValues("image")); got != 40 {
		t.Errorf("CatalogMediaTotal{image} = %v, want 40", got)
	}
	if got := testutil.ToFloat64(CatalogMediaTotal.WithLabelValues("video")); got != 3 {
		t.Errorf("CatalogMediaTotal{video} = %v, want 3", got)
	}
	if got := testutil.ToFloat64(CatalogUsersTotal); got != 2 {
		t.Errorf("CatalogUsersTotal = %v, want 2", got)
	}
}

func TestCollectorNilProviderAndErrors(t *testing.T) {
	c := NewCollector(nil, time.Hour)
	c.Start()
	c.Stop()

	provider := &fakeStats{err: errors.New("db down")}
	c = NewCollector(provider, time.Hour)
	c.Start()
	c.Stop()

	provider.mu.Lock()
	defer provider.mu.Unlock()
	if provider.calls != 1 {
		t.Errorf("Expected one collection on start, got %d", provider.calls)
	}
}
