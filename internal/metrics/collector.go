package metrics

import (
	"context"
	"time"

	"photo-library/internal/logging"
)

// Stats holds catalog counts for the gauges.
type Stats struct {
	Users  int
	Albums int
	Images int
	Videos int
	// OpenConnections is the database pool size at collection time.
	OpenConnections int
}

// StatsProvider interface for collecting stats
type StatsProvider interface {
	CatalogStats(ctx context.Context) (Stats, error)
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
	done          chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection and waits for the loop to exit.
func (c *Collector) Stop() {
	close(c.stopChan)
	<-c.done
}

func (c *Collector) collectLoop() {
	defer close(c.done)

	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := c.statsProvider.CatalogStats(ctx)
	if err != nil {
		logging.Warn("Metrics collection failed: %v", err)
		return
	}

	CatalogUsersTotal.Set(float64(stats.Users))
	CatalogAlbumsTotal.Set(float64(stats.Albums))
	CatalogMediaTotal.WithLabelValues("image").Set(float64(stats.Images))
	CatalogMediaTotal.WithLabelValues("video").Set(float64(stats.Videos))
	DBConnectionsOpen.Set(float64(stats.OpenConnections))

	logging.Debug("Metrics collected: users=%d, albums=%d, images=%d, videos=%d",
		stats.Users, stats.Albums, stats.Images, stats.Videos)
}
