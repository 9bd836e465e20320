package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"sync"

	"photo-library/internal/logging"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// InitVips initializes the libvips library
// This should be called once at startup
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	vips.LoggingSettings(vipsLogHandler, vipsLevelFor(logging.GetLevel()))

	// Each media worker runs its own vips pipeline, so keep vips itself single threaded.
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
		ReportLeaks:      false,
		CacheTrace:       false,
		CollectStats:     false,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized successfully (version: %s)", vips.Version)
	return nil
}

// ShutdownVips cleans up libvips resources
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// ShrinkWithVips decodes path with libvips, shrinking on load so large
// originals never sit fully decoded in memory, and returns it fitted
// inside maxWidth x maxHeight and upright. Callers must only pass images
// larger than the box: vips scales small images up.
func ShrinkWithVips(path string, maxWidth, maxHeight int) (image.Image, error) {
	if !IsVipsAvailable() {
		return nil, errors.New("libvips not available")
	}

	ref, err := vips.NewThumbnailFromFile(path, maxWidth, maxHeight, vips.InterestingNone)
	if err != nil {
		return nil, fmt.Errorf("vips shrink %s: %w", filepath.Base(path), err)
	}
	defer ref.Close()

	if err := ref.AutoRotate(); err != nil {
		return nil, fmt.Errorf("vips rotate %s: %w", filepath.Base(path), err)
	}

	// The caller re-encodes at the thumbnail quality.
	buf, _, err := ref.ExportJpeg(&vips.JpegExportParams{Quality: 95, StripMetadata: true})
	if err != nil {
		return nil, fmt.Errorf("vips export %s: %w", filepath.Base(path), err)
	}

	img, err := imaging.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("decode vips output: %w", err)
	}
	logging.Debug("vips shrank %s to %dx%d", filepath.Base(path), img.Bounds().Dx(), img.Bounds().Dy())
	return img, nil
}

// IsVipsAvailable returns whether libvips is initialized and available
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// vipsLevelFor keeps vips one notch quieter than the application, except at
// debug where everything is forwarded.
func vipsLevelFor(level logging.LogLevel) vips.LogLevel {
	switch level {
	case logging.LevelDebug:
		return vips.LogLevelInfo
	case logging.LevelInfo:
		return vips.LogLevelWarning
	case logging.LevelWarn:
		return vips.LogLevelError
	default:
		return vips.LogLevelCritical
	}
}

func vipsLogHandler(domain string, level vips.LogLevel, msg string) {
	switch level {
	case vips.LogLevelError, vips.LogLevelCritical:
		logging.Error("[%s] %s", domain, msg)
	case vips.LogLevelWarning:
		logging.Warn("[%s] %s", domain, msg)
	default:
		logging.Debug("[%s] %s", domain, msg)
	}
}
