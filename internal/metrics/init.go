package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	volumes := []string{"library", "cache", "database"}
	ops := []string{"stat", "open", "readdir"}

	for _, vol := range volumes {
		for _, op := range ops {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	for _, scope := range []string{"all", "user"} {
		for _, status := range []string{"success", "error", "rejected"} {
			ScanRunsTotal.WithLabelValues(scope, status)
		}
	}

	for _, action := range []string{"created", "existing", "deleted"} {
		ScanAlbumsTotal.WithLabelValues(action)
		ScanPhotosTotal.WithLabelValues(action)
	}

	for _, kind := range []string{"image", "raw", "video"} {
		for _, outcome := range []string{"skipped", "processed", "failed"} {
			ProcessorResultsTotal.WithLabelValues(kind, outcome)
		}
		ProcessorDuration.WithLabelValues(kind)
	}

	for _, step := range []string{"lookup", "cache_dir", "raw_extract", "raw_reencode", "thumbnail", "dimensions", "urls", "download", "exif", "transcode"} {
		ProcessorStepErrors.WithLabelValues(step)
	}

	for _, kind := range []string{"image", "video"} {
		CatalogMediaTotal.WithLabelValues(kind)
	}

	for _, status := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(status)
	}

	for _, kind := range []string{"photo", "download"} {
		HTTPBytesServedTotal.WithLabelValues(kind)
	}
	for _, reason := range []string{"timeout", "client_gone"} {
		HTTPStreamAbortsTotal.WithLabelValues(reason)
	}

	for _, sink := range []string{"broker", "nats"} {
		EventPublishErrors.WithLabelValues(sink)
	}
}
