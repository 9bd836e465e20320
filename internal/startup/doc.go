// Package startup loads configuration and writes the startup and shutdown
// log of the photo library server.
//
// # Configuration
//
// [LoadConfig] reads a .env file from the working directory when present
// (existing variables win), then the environment:
//
//   - LIBRARY_DIR: Default parent of user library roots (default: /photos)
//   - CACHE_DIR: Thumbnails and re-encoded images (default: /cache)
//   - DATABASE_DIR: Catalog database directory (default: /database)
//   - PORT, METRICS_PORT, METRICS_ENABLED: HTTP listeners
//   - SCAN_SCHEDULE: Cron spec for full scans, e.g. "@every 6h" (default: off)
//   - SCAN_ON_STARTUP: Run a full scan after start (default: true)
//   - WATCH_ENABLED, WATCH_DEBOUNCE: Rescan users when their files change
//   - SCAN_MEDIA_WORKERS, SCAN_ALBUM_WORKERS: Worker pool sizes (default: auto)
//   - PROGRESS_INTERVAL: Minimum gap between progress events (default: 250ms)
//   - NATS_URL, NATS_SUBJECT: Also publish progress events to NATS
//   - EXIFTOOL_ENABLED: Use exiftool for EXIF and RAW previews (default: true)
//   - VIPS_ENABLED: Use libvips for thumbnails (default: false)
//   - LOG_LEVEL, LOG_FILE, LOG_MAX_SIZE_MB, LOG_MAX_BACKUPS
//   - LOG_HEALTH_CHECKS, LOG_MEDIA_REQUESTS: Access log filtering
//   - MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT: Heap limit and backpressure
//
// The database and cache directories are created if missing and must be
// writable.
//
// # Build Information
//
// Version, Commit and BuildTime are injected via ldflags and exposed by
// [GetBuildInfo].
package startup
