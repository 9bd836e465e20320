// Package metrics provides Prometheus instrumentation for the photo library.
//
// All metrics are registered with promauto on the default registry and are
// prefixed with "photo_library_". They are served on a separate port
// (METRICS_PORT) so scrapes never compete with the API.
//
// Categories:
//   - HTTP: request counts, durations, in-flight gauge
//   - Database: query counts and durations, transaction durations, rows affected
//   - Scan: runs by scope and status, running gauge, albums and photos touched,
//     enqueued/finished gauges for the current run, progress events
//   - Processor: outcome per media kind, reprocess duration, swallowed step errors,
//     video transcodes
//   - Catalog: album, media and user gauges refreshed by Collector
//   - Watcher and events: fsnotify events, subscriber gauge, delivery failures
//   - Filesystem: per-volume operation timings and NFS retry counters, fed by
//     the Observer returned from NewFilesystemObserver
//
// InitializeMetrics pre-creates every known label combination so dashboards
// see zeros instead of gaps after a restart.
package metrics
