package workers

import (
	"runtime"
)

// Count returns a worker count sized to the CPUs available to the process.
// It respects container CPU limits via GOMAXPROCS.
//
// The multiplier adjusts for task characteristics:
//   - 1.0 for CPU-bound tasks (decode, resize, encode)
//   - 2.0 for I/O-bound tasks (directory listing, catalog writes)
//
// override wins when positive (operators set it through configuration).
// limit caps the result; 0 means no cap.
func Count(multiplier float64, limit, override int) int {
	if override > 0 {
		if limit > 0 && override > limit {
			return limit
		}
		return override
	}

	workers := int(float64(runtime.GOMAXPROCS(0)) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForCPU returns worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit, override int) int {
	return Count(1.0, limit, override)
}

// ForIO returns worker count for I/O-bound tasks (2 per CPU).
func ForIO(limit, override int) int {
	return Count(2.0, limit, override)
}
