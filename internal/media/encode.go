package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"photo-library/internal/logging"

	"github.com/disintegration/imaging"
)

// Encoder decodes, rotates, resizes and writes JPEGs. The zero value is
// ready to use; libvips is used for thumbnails when it has been initialized.
type Encoder struct{}

// NewEncoder returns an Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// ReencodeJPEG decodes src, rotates it clockwise by rotation degrees
// (0, 90, -90 or 180) and writes it to dst as a JPEG at quality. The source
// orientation tag is not applied; rotation is the only orientation input.
func (e *Encoder) ReencodeJPEG(src, dst string, rotation, quality int) error {
	img, err := LoadImageConstrained(src, false, MaxImageDimension, MaxImagePixels)
	if err != nil {
		return err
	}

	return saveJPEG(Rotate(img, rotation), dst, quality)
}

// Thumbnail fits src inside maxWidth x maxHeight (never upscaling), writes
// it to dst as a JPEG at quality and returns the thumbnail dimensions.
func (e *Encoder) Thumbnail(ctx context.Context, src, dst string, maxWidth, maxHeight, quality int) (ImageDimensions, error) {
	img, err := e.loadForThumbnail(ctx, src, maxWidth, maxHeight)
	if err != nil {
		return ImageDimensions{}, err
	}

	return e.ThumbnailFromImage(img, dst, maxWidth, maxHeight, quality)
}

// ThumbnailFromImage is Thumbnail for an already decoded image, used for
// video frames.
func (e *Encoder) ThumbnailFromImage(img image.Image, dst string, maxWidth, maxHeight, quality int) (ImageDimensions, error) {
	if img == nil {
		return ImageDimensions{}, errors.New("thumbnail: nil image")
	}

	thumb := imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)
	if err := saveJPEG(thumb, dst, quality); err != nil {
		return ImageDimensions{}, err
	}

	b := thumb.Bounds()
	return ImageDimensions{Width: b.Dx(), Height: b.Dy()}, nil
}

func (e *Encoder) loadForThumbnail(ctx context.Context, src string, maxWidth, maxHeight int) (image.Image, error) {
	// vips upscales small images, so only hand it ones that shrink.
	if IsVipsAvailable() {
		if dims, err := GetImageDimensions(src); err == nil && (dims.Width > maxWidth || dims.Height > maxHeight) {
			img, vipsErr := ShrinkWithVips(src, maxWidth, maxHeight)
			if vipsErr == nil {
				return img, nil
			}
			logging.Debug("vips failed for %s, falling back to imaging: %v", src, vipsErr)
		}
	}

	img, err := LoadImageConstrained(src, true, MaxImageDimension, MaxImagePixels)
	if err == nil {
		return img, nil
	}

	// HEIC/AVIF and friends have no pure Go decoder.
	logging.Debug("imaging could not decode %s: %v, trying ffmpeg", src, err)
	img, ffErr := DecodeWithFFmpeg(ctx, src)
	if ffErr != nil {
		return nil, fmt.Errorf("all image decode methods failed for %s: %w", src, errors.Join(err, ffErr))
	}
	return img, nil
}

// Rotate turns img clockwise by degrees. Only 90, -90 and 180 rotate;
// anything else returns img unchanged.
func Rotate(img image.Image, degrees int) image.Image {
	// imaging rotates counter-clockwise.
	switch degrees {
	case 90:
		return imaging.Rotate270(img)
	case -90:
		return imaging.Rotate90(img)
	case 180:
		return imaging.Rotate180(img)
	default:
		return img
	}
}

// saveJPEG writes through a temp file in the destination directory and
// renames it into place, so readers never see a partial file.
func saveJPEG(img image.Image, dst string, quality int) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-*.jpg")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", dst, err)
	}
	tmpPath := tmp.Name()

	encodeErr := imaging.Encode(tmp, img, imaging.JPEG, imaging.JPEGQuality(quality))
	closeErr := tmp.Close()
	if err := errors.Join(encodeErr, closeErr); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("encode %s: %w", dst, err)
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename into %s: %w", dst, err)
	}
	return nil
}
