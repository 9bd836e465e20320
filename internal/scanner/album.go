package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"

	"photo-library/internal/cache"
	"photo-library/internal/database"
	"photo-library/internal/filesystem"
	"photo-library/internal/logging"
	"photo-library/internal/mediatypes"
	"photo-library/internal/metrics"
	"photo-library/internal/workers"
)

// AlbumScanner reconciles the photos of one album directory with the
// catalog and fans reprocessing out on the shared media pool.
type AlbumScanner struct {
	catalog   Catalog
	processor *Processor
	pool      *workers.Pool
	progress  *Progress
	layout    cache.Layout
	classify  func(path string) (mediatypes.Kind, error)
	retry     filesystem.RetryConfig
}

// Scan lists album.Path without descending, creates rows for new media,
// queues the media that need processing and waits for them. Photos whose
// file disappeared are deleted together with their cache dir.
//
// Only catalog and listing failures are returned; per-media failures are
// logged by the processor.
func (s *AlbumScanner) Scan(ctx context.Context, album *database.Album) error {
	entries, err := filesystem.ReadDirWithRetry(album.Path, s.retry)
	if err != nil {
		return fmt.Errorf("list album %s: %w", album.Path, err)
	}

	group := s.pool.Group()
	var found []string
	// unsure is set when an unreadable file might still be cataloged; stale
	// cleanup is skipped for this pass so it is not mistaken for a deleted one.
	unsure := false

	for _, e := range entries {
		if e.IsDir {
			continue
		}
		kind, err := s.classify(e.Path)
		if err != nil {
			logging.Warn("Skipping %s: %v", e.Path, err)
			if !s.keepUnreadable(ctx, album, e.Path, &found) {
				unsure = true
			}
			continue
		}
		if !kind.IsMedia() {
			continue
		}

		s.progress.MarkEnqueued()

		photo, created, err := s.findOrCreate(ctx, album.ID, e.Path, kind)
		if err != nil {
			s.progress.MarkFinished()
			group.Wait()
			return err
		}
		found = append(found, photo.ID)

		if !created {
			metrics.ScanPhotosTotal.WithLabelValues("existing").Inc()
			need, err := s.processor.NeedsProcessing(ctx, photo)
			if err != nil {
				logging.Warn("Checking %s: %v", e.Path, err)
				need = true
			}
			if !need {
				metrics.ProcessorResultsTotal.WithLabelValues(string(kind), "skipped").Inc()
				s.progress.MarkFinished()
				continue
			}
		}

		id := photo.ID
		err = group.Go(ctx, func() {
			if err := s.processor.Process(ctx, id); err != nil {
				logging.Debug("Photo %s left for the next scan: %v", id, err)
			}
		})
		if err != nil {
			s.progress.MarkFinished()
			group.Wait()
			return err
		}
	}

	group.Wait()
	if unsure {
		logging.Warn("Keeping possibly stale photos of %s until its files read cleanly", album.Path)
		return nil
	}
	s.removeStalePhotos(ctx, album, found)
	return nil
}

// keepUnreadable adds the cataloged photo at path, if any, to found. It
// reports false when the catalog could not tell.
func (s *AlbumScanner) keepUnreadable(ctx context.Context, album *database.Album, path string, found *[]string) bool {
	photo, err := s.catalog.FindPhotoByPath(ctx, album.ID, path)
	switch {
	case err == nil:
		*found = append(*found, photo.ID)
		return true
	case errors.Is(err, database.ErrNotFound):
		return true
	default:
		logging.Warn("Checking catalog for %s: %v", path, err)
		return false
	}
}

func (s *AlbumScanner) findOrCreate(ctx context.Context, albumID, path string, kind mediatypes.Kind) (*database.Photo, bool, error) {
	photo, err := s.catalog.FindPhotoByPath(ctx, albumID, path)
	if err == nil {
		return photo, false, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, false, fmt.Errorf("find photo %s: %w", path, err)
	}

	mk := database.MediaImage
	if kind == mediatypes.KindVideo {
		mk = database.MediaVideo
	}
	photo, err = s.catalog.CreatePhoto(ctx, albumID, path, mk)
	if err != nil {
		return nil, false, fmt.Errorf("create photo %s: %w", path, err)
	}
	metrics.ScanPhotosTotal.WithLabelValues("created").Inc()
	return photo, true, nil
}

func (s *AlbumScanner) removeStalePhotos(ctx context.Context, album *database.Album, keep []string) {
	removed, err := s.catalog.DeletePhotosNotIn(ctx, album.ID, keep)
	if err != nil {
		logging.Warn("Could not clean stale photos of %s: %v", album.Path, err)
		return
	}
	for _, id := range removed {
		if err := os.RemoveAll(s.layout.ImageCacheDir(album.ID, id)); err != nil {
			logging.Warn("Could not remove cache of photo %s: %v", id, err)
		}
	}
	if len(removed) > 0 {
		metrics.ScanPhotosTotal.WithLabelValues("deleted").Add(float64(len(removed)))
		logging.Info("Removed %d missing photos from album %s", len(removed), album.Title)
	}
}
