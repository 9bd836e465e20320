package memory

import (
	"math"
	"runtime/debug"
	"strconv"

	"photo-library/internal/logging"
)

// DefaultMemoryRatio is the share of the container limit given to the Go
// heap. The rest is left for ffmpeg, exiftool and libvips.
const DefaultMemoryRatio = 0.80

// Limit describes how GOMEMLIMIT was configured.
type Limit struct {
	Source         string // "GOMEMLIMIT", "MEMORY_LIMIT" or "none"
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// Configured reports whether a heap limit is in effect.
func (l Limit) Configured() bool {
	return l.GoMemLimit > 0
}

// ConfigureFromEnv sets the runtime memory limit from GOMEMLIMIT or from
// MEMORY_LIMIT scaled by MEMORY_RATIO. Call it before the scanner starts.
func ConfigureFromEnv(getenv func(string) string) Limit {
	l := resolveLimit(getenv)
	switch l.Source {
	case "GOMEMLIMIT":
		logging.Info("GOMEMLIMIT set via environment: %s", formatBytes(l.GoMemLimit))
	case "MEMORY_LIMIT":
		debug.SetMemoryLimit(l.GoMemLimit)
		logging.Info("Configured GOMEMLIMIT: %s (%.0f%% of %s)",
			formatBytes(l.GoMemLimit), l.Ratio*100, formatBytes(l.ContainerLimit))
	default:
		logging.Debug("No memory limit configured")
	}
	return l
}

func resolveLimit(getenv func(string) string) Limit {
	if getenv("GOMEMLIMIT") != "" {
		// The runtime already parsed it at startup.
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			return Limit{Source: "GOMEMLIMIT", GoMemLimit: limit}
		}
		return Limit{Source: "none"}
	}

	raw := getenv("MEMORY_LIMIT")
	if raw == "" {
		return Limit{Source: "none"}
	}
	container, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || container <= 0 {
		logging.Warn("Ignoring MEMORY_LIMIT %q", raw)
		return Limit{Source: "none"}
	}

	ratio := DefaultMemoryRatio
	if s := getenv("MEMORY_RATIO"); s != "" {
		r, err := strconv.ParseFloat(s, 64)
		if err != nil || r <= 0 || r > 1 {
			logging.Warn("MEMORY_RATIO %q invalid, using %.2f", s, DefaultMemoryRatio)
		} else {
			ratio = r
		}
	}

	return Limit{
		Source:         "MEMORY_LIMIT",
		ContainerLimit: container,
		GoMemLimit:     int64(float64(container) * ratio),
		Ratio:          ratio,
	}
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
