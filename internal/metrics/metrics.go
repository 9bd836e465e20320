package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_library_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_library_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_library_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	HTTPBytesServedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_library_http_bytes_served_total",
			Help: "Bytes of photo and download content written to clients",
		},
		[]string{"kind"},
	)

	HTTPStreamAbortsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_library_http_stream_aborts_total",
			Help: "Content responses cut short, by reason",
		},
		[]string{"reason"},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_library_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_library_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_library_db_transaction_duration_seconds",
			Help:    "Database transaction duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"status"}, // "commit", "rollback"
	)

	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_library_db_rows_affected",
			Help:    "Rows affected by write operations",
			Buckets: []float64{1, 2, 5, 10, 50, 100, 500, 1000},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_library_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Scan metrics
var (
	ScanRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_library_scan_runs_total",
			Help: "Total number of scan runs",
		},
		[]string{"scope", "status"}, // scope: "all", "user"; status: "success", "error", "rejected"
	)

	ScanRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_library_scan_running",
			Help: "Whether a scan is currently running (1 = running, 0 = idle)",
		},
	)

	ScanLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_library_scan_last_run_timestamp",
			Help: "Unix timestamp of the last finished scan",
		},
	)

	ScanLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_library_scan_last_run_duration_seconds",
			Help: "Duration of the last finished scan in seconds",
		},
	)

	ScanAlbumsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_library_scan_albums_total",
			Help: "Albums touched by scans",
		},
		[]string{"action"}, // "created", "existing", "deleted"
	)

	ScanPhotosTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_library_scan_photos_total",
			Help: "Photos touched by scans",
		},
		[]string{"action"}, // "created", "existing", "deleted"
	)

	ScanMediaEnqueued = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_library_scan_media_enqueued",
			Help: "Media enqueued in the current scan",
		},
	)

	ScanMediaFinished = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_library_scan_media_finished",
			Help: "Media finished in the current scan",
		},
	)

	ScanProgressEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_library_scan_progress_events_total",
			Help: "Progress events published",
		},
	)
)

// Processor metrics
var (
	ProcessorResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_library_processor_results_total",
			Help: "Media processor outcomes",
		},
		[]string{"kind", "outcome"}, // outcome: "skipped", "processed", "failed"
	)

	ProcessorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_library_processor_duration_seconds",
			Help:    "Time spent reprocessing one media file",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)

	ProcessorStepErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_library_processor_step_errors_total",
			Help: "Swallowed per-step processor failures",
		},
		[]string{"step"},
	)

	TranscoderJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_library_transcoder_jobs_total",
			Help: "Video transcodes written to the cache",
		},
		[]string{"status"},
	)

	TranscoderJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "photo_library_transcoder_job_duration_seconds",
			Help:    "Video transcode duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)
)

// Catalog contents
var (
	CatalogAlbumsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_library_catalog_albums",
			Help: "Albums in the catalog",
		},
	)

	CatalogMediaTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "photo_library_catalog_media",
			Help: "Media in the catalog by kind",
		},
		[]string{"kind"},
	)

	CatalogUsersTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_library_catalog_users",
			Help: "Users in the catalog",
		},
	)
)

// Watcher and events
var (
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_library_watcher_events_total",
			Help: "Total number of filesystem watcher events",
		},
		[]string{"event_type"},
	)

	WatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_library_watcher_errors_total",
			Help: "Total number of filesystem watcher errors",
		},
	)

	WatchedDirectories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_library_watched_directories",
			Help: "Number of directories currently being watched",
		},
	)

	EventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_library_event_subscribers",
			Help: "Connected progress subscribers",
		},
	)

	EventPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_library_event_publish_errors_total",
			Help: "Progress events that could not be delivered",
		},
		[]string{"sink"},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_library_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration by volume",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_library_filesystem_operation_errors_total",
			Help: "Filesystem operation errors by volume",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_library_filesystem_retry_attempts_total",
			Help: "NFS retry attempts",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_library_filesystem_retry_success_total",
			Help: "Operations that succeeded after an NFS retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_library_filesystem_retry_failures_total",
			Help: "Operations that failed after exhausting NFS retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_library_filesystem_retry_duration_seconds",
			Help:    "Total time spent in an operation including retries",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_library_filesystem_stale_errors_total",
			Help: "ESTALE errors seen",
		},
		[]string{"operation", "volume"},
	)
)

// Memory backpressure
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_library_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_library_memory_paused",
			Help: "Whether media processing is paused for memory (1 = paused)",
		},
	)

	MemoryPausesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_library_memory_pauses_total",
			Help: "Times media processing was paused for memory",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "photo_library_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
