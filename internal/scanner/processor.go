package scanner

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"photo-library/internal/cache"
	"photo-library/internal/database"
	"photo-library/internal/exif"
	"photo-library/internal/filesystem"
	"photo-library/internal/logging"
	"photo-library/internal/media"
	"photo-library/internal/mediatypes"
	"photo-library/internal/metrics"
	"photo-library/internal/transcoder"
)

// Thumbnail box and JPEG qualities for derived images.
const (
	ThumbnailMaxWidth  = 720
	ThumbnailMaxHeight = 480
	ThumbnailQuality   = 70
	ReencodeQuality    = 80
)

// ImageEncoder writes derived JPEGs. *media.Encoder implements it.
type ImageEncoder interface {
	ReencodeJPEG(src, dst string, rotation, quality int) error
	Thumbnail(ctx context.Context, src, dst string, maxWidth, maxHeight, quality int) (media.ImageDimensions, error)
	ThumbnailFromImage(img image.Image, dst string, maxWidth, maxHeight, quality int) (media.ImageDimensions, error)
}

// VideoTool probes and transcodes videos. *transcoder.Transcoder implements it.
type VideoTool interface {
	GetVideoInfo(ctx context.Context, path string) (*transcoder.VideoInfo, error)
	TranscodeToFile(ctx context.Context, src, dst string) error
}

// FrameExtractor grabs a still from a video.
type FrameExtractor func(ctx context.Context, path string) (image.Image, error)

// MemoryGate holds back processing while memory is short. *memory.Gate
// implements it.
type MemoryGate interface {
	Wait(ctx context.Context) error
}

// Processor refreshes the derived artifacts of one photo: cached thumbnail,
// served URLs, download reference and EXIF. It is idempotent; a photo whose
// thumbnail exists and whose two URLs are recorded is left alone.
type Processor struct {
	catalog    Catalog
	layout     cache.Layout
	encoder    ImageEncoder
	previews   exif.PreviewExtractor
	exif       exif.Parser
	videos     VideoTool
	frames     FrameExtractor
	dimensions func(path string) (media.ImageDimensions, error)
	classify   func(path string) (mediatypes.Kind, error)
	cacheHas   func(path string) bool
	memory     MemoryGate
	progress   *Progress
}

// NeedsProcessing is false iff the thumbnail is in the cache and the catalog
// holds exactly two URLs for the photo. Any other URL count means an earlier
// run was interrupted.
func (p *Processor) NeedsProcessing(ctx context.Context, photo *database.Photo) (bool, error) {
	if !p.cacheHas(p.layout.ThumbnailPath(photo.AlbumID, photo.ID)) {
		return true, nil
	}
	n, err := p.catalog.CountPhotoURLs(ctx, photo.ID)
	if err != nil {
		return false, fmt.Errorf("count urls of %s: %w", photo.ID, err)
	}
	return n != 2, nil
}

// Process checks and, when needed, rebuilds the artifacts of photoID. The
// photo is always counted finished. Step failures are logged and leave the
// photo for the next scan to retry.
func (p *Processor) Process(ctx context.Context, photoID string) error {
	defer p.progress.MarkFinished()

	photo, err := p.catalog.FindPhotoByID(ctx, photoID)
	if err != nil {
		p.stepFailed("lookup", photoID, err)
		return fmt.Errorf("lookup photo %s: %w", photoID, err)
	}

	need, err := p.NeedsProcessing(ctx, photo)
	if err != nil {
		p.stepFailed("lookup", photo.Path, err)
		return err
	}
	kind := p.kindOf(photo)
	if !need {
		metrics.ProcessorResultsTotal.WithLabelValues(string(kind), "skipped").Inc()
		return nil
	}

	if p.memory != nil {
		if err := p.memory.Wait(ctx); err != nil {
			metrics.ProcessorResultsTotal.WithLabelValues(string(kind), "failed").Inc()
			return fmt.Errorf("waiting for memory: %w", err)
		}
	}

	start := time.Now()
	logging.Debug("Processing %s (%s)", photo.Path, kind)

	if kind == mediatypes.KindVideo {
		err = p.processVideo(ctx, photo)
	} else {
		err = p.processImage(ctx, photo, kind == mediatypes.KindRaw)
	}

	metrics.ProcessorDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProcessorResultsTotal.WithLabelValues(string(kind), "failed").Inc()
		return err
	}
	metrics.ProcessorResultsTotal.WithLabelValues(string(kind), "processed").Inc()
	return nil
}

func (p *Processor) kindOf(photo *database.Photo) mediatypes.Kind {
	if photo.Kind == database.MediaVideo {
		return mediatypes.KindVideo
	}
	if k, err := p.classify(photo.Path); err == nil && k == mediatypes.KindRaw {
		return mediatypes.KindRaw
	}
	return mediatypes.KindImage
}

// resetCache drops the photo's URLs and cache dir so the rebuild starts clean.
func (p *Processor) resetCache(ctx context.Context, photo *database.Photo) string {
	if err := p.catalog.DeletePhotoURLs(ctx, photo.ID); err != nil {
		p.stepFailed("urls", photo.Path, err)
	}

	dir := p.layout.ImageCacheDir(photo.AlbumID, photo.ID)
	if err := os.RemoveAll(dir); err != nil {
		p.stepFailed("cache_dir", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		p.stepFailed("cache_dir", dir, err)
	}
	return dir
}

func (p *Processor) processImage(ctx context.Context, photo *database.Photo, raw bool) error {
	p.resetCache(ctx, photo)

	original := photo.Path
	if raw {
		reencoded, err := p.developRaw(photo)
		if err != nil {
			return err
		}
		original = reencoded
	}

	thumbPath := p.layout.ThumbnailPath(photo.AlbumID, photo.ID)
	thumbDims, err := p.encoder.Thumbnail(ctx, original, thumbPath, ThumbnailMaxWidth, ThumbnailMaxHeight, ThumbnailQuality)
	if err != nil {
		p.stepFailed("thumbnail", photo.Path, err)
	}
	thumbOK := err == nil

	origDims, err := p.dimensions(original)
	if err != nil {
		p.stepFailed("dimensions", original, err)
	}

	var urls []database.PhotoURL
	if thumbOK {
		urls = append(urls, p.thumbnailURL(photo, thumbPath, thumbDims))
	}
	urls = append(urls, database.PhotoURL{
		PhotoID:     photo.ID,
		Purpose:     database.PurposeOriginal,
		URL:         PhotoURL(photo.ID, filepath.Base(original)),
		Width:       origDims.Width,
		Height:      origDims.Height,
		ContentPath: original,
	})
	p.writeRecords(ctx, photo, urls)
	p.storeExif(ctx, photo)
	return nil
}

// developRaw turns the embedded preview of a RAW file into an upright JPEG
// in the cache and returns its path.
func (p *Processor) developRaw(photo *database.Photo) (string, error) {
	extracted := p.layout.ExtractedPath(photo.AlbumID, photo.ID)
	if err := p.previews.ExtractPreview(photo.Path, extracted); err != nil {
		p.stepFailed("raw_extract", photo.Path, err)
		return "", fmt.Errorf("extract preview of %s: %w", photo.Path, err)
	}
	defer func() {
		if err := os.Remove(extracted); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.Warn("Could not remove %s: %v", extracted, err)
		}
	}()

	orientation, err := p.previews.Orientation(photo.Path)
	if err != nil {
		logging.Debug("No orientation for %s: %v", photo.Path, err)
	}

	reencoded := p.layout.ReencodedPath(photo.AlbumID, photo.ID, photo.Path)
	if err := p.encoder.ReencodeJPEG(extracted, reencoded, RotationForOrientation(orientation), ReencodeQuality); err != nil {
		p.stepFailed("raw_reencode", photo.Path, err)
		return "", fmt.Errorf("re-encode preview of %s: %w", photo.Path, err)
	}
	return reencoded, nil
}

func (p *Processor) processVideo(ctx context.Context, photo *database.Photo) error {
	p.resetCache(ctx, photo)

	info, err := p.videos.GetVideoInfo(ctx, photo.Path)
	if err != nil {
		p.stepFailed("transcode", photo.Path, err)
		return fmt.Errorf("probe %s: %w", photo.Path, err)
	}

	var urls []database.PhotoURL
	thumbPath := p.layout.ThumbnailPath(photo.AlbumID, photo.ID)
	frame, err := p.frames(ctx, photo.Path)
	if err == nil {
		var dims media.ImageDimensions
		dims, err = p.encoder.ThumbnailFromImage(frame, thumbPath, ThumbnailMaxWidth, ThumbnailMaxHeight, ThumbnailQuality)
		if err == nil {
			urls = append(urls, p.thumbnailURL(photo, thumbPath, dims))
		}
	}
	if err != nil {
		p.stepFailed("thumbnail", photo.Path, err)
	}

	playable := photo.Path
	if info.NeedsTranscode {
		web := p.layout.WebVideoPath(photo.AlbumID, photo.ID)
		start := time.Now()
		if err := p.videos.TranscodeToFile(ctx, photo.Path, web); err != nil {
			metrics.TranscoderJobsTotal.WithLabelValues("error").Inc()
			p.stepFailed("transcode", photo.Path, err)
		} else {
			metrics.TranscoderJobsTotal.WithLabelValues("success").Inc()
			metrics.TranscoderJobDuration.Observe(time.Since(start).Seconds())
			playable = web
		}
	}

	urls = append(urls, database.PhotoURL{
		PhotoID:     photo.ID,
		Purpose:     database.PurposeOriginal,
		URL:         PhotoURL(photo.ID, filepath.Base(playable)),
		Width:       info.Width,
		Height:      info.Height,
		ContentPath: playable,
	})
	p.writeRecords(ctx, photo, urls)
	return nil
}

func (p *Processor) thumbnailURL(photo *database.Photo, path string, dims media.ImageDimensions) database.PhotoURL {
	return database.PhotoURL{
		PhotoID:     photo.ID,
		Purpose:     database.PurposeThumbnail,
		URL:         PhotoURL(photo.ID, filepath.Base(path)),
		Width:       dims.Width,
		Height:      dims.Height,
		ContentPath: path,
	}
}

func (p *Processor) writeRecords(ctx context.Context, photo *database.Photo, urls []database.PhotoURL) {
	if err := p.catalog.ReplacePhotoURLs(ctx, photo.ID, urls); err != nil {
		p.stepFailed("urls", photo.Path, err)
	}

	title := filepath.Base(photo.Path)
	err := p.catalog.CreatePhotoDownload(ctx, database.PhotoDownload{
		PhotoID:     photo.ID,
		Title:       title,
		URL:         DownloadURL(photo.ID, title),
		ContentPath: photo.Path,
	})
	if err != nil {
		p.stepFailed("download", photo.Path, err)
	}
}

// storeExif writes EXIF once; an existing record is never replaced.
func (p *Processor) storeExif(ctx context.Context, photo *database.Photo) {
	has, err := p.catalog.HasExifRecord(ctx, photo.ID)
	if err != nil {
		p.stepFailed("exif", photo.Path, err)
		return
	}
	if has {
		return
	}

	rec, err := p.exif.Parse(photo.Path)
	if err != nil {
		p.stepFailed("exif", photo.Path, err)
		return
	}
	if rec == nil {
		return
	}
	if rec.FileSize == 0 {
		if info, err := filesystem.StatWithRetry(photo.Path, filesystem.DefaultRetryConfig()); err == nil {
			rec.FileSize = info.Size()
		}
	}
	if err := p.catalog.CreateExifRecord(ctx, photo.ID, rec); err != nil {
		p.stepFailed("exif", photo.Path, err)
	}
}

func (p *Processor) stepFailed(step, path string, err error) {
	metrics.ProcessorStepErrors.WithLabelValues(step).Inc()
	logging.Warn("Processing %s: %s failed: %v", path, step, err)
}

// RotationForOrientation maps an EXIF orientation code to the clockwise
// rotation in degrees that makes the image upright.
func RotationForOrientation(orientation int) int {
	switch orientation {
	case 3:
		return 180
	case 6:
		return 90
	case 8:
		return -90
	default:
		return 0
	}
}

// PhotoURL is the served URL of a file in a photo's cache dir or its original.
func PhotoURL(photoID, name string) string {
	return "/api/photo/" + photoID + "/" + url.PathEscape(name)
}

// DownloadURL is the served URL of a photo's unmodified source.
func DownloadURL(photoID, name string) string {
	return "/api/download/" + photoID + "/" + url.PathEscape(name)
}
