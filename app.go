package main

import (
	"context"
	"errors"
	"os"
	"time"

	"photo-library/internal/cache"
	"photo-library/internal/database"
	"photo-library/internal/events"
	"photo-library/internal/exif"
	"photo-library/internal/filesystem"
	"photo-library/internal/logging"
	"photo-library/internal/media"
	"photo-library/internal/memory"
	"photo-library/internal/metrics"
	"photo-library/internal/scanner"
	"photo-library/internal/startup"
	"photo-library/internal/transcoder"
)

// app owns everything a serve or scan run opens and must close.
type app struct {
	cfg      *startup.Config
	db       *database.Database
	coord    *scanner.Coordinator
	gate     *memory.Gate
	videos   *transcoder.Transcoder
	exiftool *exif.Exiftool
	nats     *events.NATSSink
	vips     bool
}

func newApp(ctx context.Context, cfg *startup.Config) (*app, error) {
	if cfg.LogFile != "" {
		logging.EnableFile(logging.FileOptions{
			Path:       cfg.LogFile,
			MaxSizeMB:  cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
		})
	}

	limit := memory.ConfigureFromEnv(os.Getenv)
	startup.LogMemoryConfig(limit)

	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"library":  cfg.LibraryDir,
		"cache":    cfg.CacheDir,
		"database": cfg.DatabaseDir,
	}))

	dbStart := time.Now()
	db, err := database.New(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	startup.LogDatabaseInit(time.Since(dbStart))

	a := &app{cfg: cfg, db: db, videos: transcoder.New()}

	if cfg.VipsEnabled {
		if err := media.InitVips(); err != nil {
			logging.Warn("libvips unavailable, using pure Go decoders: %v", err)
		} else {
			a.vips = true
		}
	}

	var parser exif.Parser = exif.NewGoexif()
	var previews exif.PreviewExtractor = exif.NewGoexif()
	if cfg.ExiftoolEnabled {
		et, err := exif.NewExiftool()
		if err != nil {
			logging.Warn("exiftool unavailable, RAW files without embedded JPEG previews will be skipped: %v", err)
		} else {
			a.exiftool = et
			parser, previews = et, et
		}
	}
	startup.LogMediaToolsInit(a.vips, a.exiftool != nil)

	var sink events.Sink
	if cfg.NATSURL != "" {
		ns, err := events.NewNATSSink(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			logging.Warn("NATS unavailable at %s, progress stays in-process: %v", cfg.NATSURL, err)
		} else {
			a.nats = ns
			sink = ns
		}
	}

	if limit.Configured() {
		a.gate = memory.NewGate(memory.DefaultConfig())
		a.gate.Start()
	}

	opts := scanner.Options{
		Catalog:          db,
		Layout:           cache.New(cfg.CacheDir),
		Sink:             sink,
		ProgressInterval: cfg.ProgressInterval,
		MediaWorkers:     cfg.MediaWorkers,
		AlbumWorkers:     cfg.AlbumWorkers,
		Exif:             parser,
		Previews:         previews,
		Videos:           a.videos,
		History:          db,
	}
	if a.gate != nil {
		opts.Memory = a.gate
	}
	a.coord = scanner.NewCoordinator(opts)

	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	if a.gate != nil {
		a.gate.Stop()
	}
	if a.nats != nil {
		a.nats.Close()
	}
	if a.exiftool != nil {
		errs = append(errs, a.exiftool.Close())
	}
	a.videos.Cleanup()
	if a.vips {
		media.ShutdownVips()
	}
	errs = append(errs, a.db.Close())
	return errors.Join(errs...)
}
