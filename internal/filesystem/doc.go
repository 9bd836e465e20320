/*
Package filesystem wraps the filesystem calls made while scanning a photo
library (stat, open, directory listing) with retry logic for NFS stale file
handle errors.

Only ESTALE triggers a retry. Other errors are returned immediately. Retries
back off exponentially (50ms, 100ms, 200ms by default, capped at 500ms).

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

	entries, err := filesystem.ReadDirWithRetry(albumDir, filesystem.DefaultRetryConfig())
	for _, e := range entries {
	    if e.IsDir {
	        // handled by the tree walker
	    }
	}

Directory listings come from godirwalk, which avoids an lstat per entry on
platforms that report the type in the dirent.

Operation timings and retry counts are reported through an Observer set with
SetObserver; the metrics package installs a Prometheus-backed one at startup.
*/
package filesystem
