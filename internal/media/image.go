package media

import (
	"fmt"
	"image"
	"math"

	"photo-library/internal/filesystem"
	"photo-library/internal/logging"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// MaxImageDimension is the largest width or height decoded at full size.
	// Larger images are downscaled right after decode.
	MaxImageDimension = 8192

	// MaxImagePixels caps the decoded pixel count (~40MP, ~160MB as RGBA).
	MaxImagePixels = 40_000_000
)

// ImageDimensions holds image width and height
type ImageDimensions struct {
	Width  int
	Height int
}

// GetImageDimensions returns image dimensions without fully decoding the image
func GetImageDimensions(path string) (ImageDimensions, error) {
	file, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return ImageDimensions{}, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return ImageDimensions{}, fmt.Errorf("decode config %s: %w", path, err)
	}

	return ImageDimensions{Width: config.Width, Height: config.Height}, nil
}

// LoadImageConstrained loads an image, downscaling it if it exceeds the size
// limits. autoOrient applies the EXIF orientation tag while decoding.
func LoadImageConstrained(path string, autoOrient bool, maxDimension, maxPixels int) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(autoOrient))
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", path, err)
	}

	width, height := img.Bounds().Dx(), img.Bounds().Dy()
	targetWidth, targetHeight := constrain(width, height, maxDimension, maxPixels)
	if targetWidth == width && targetHeight == height {
		return img, nil
	}

	logging.Info("Constraining large image %s from %dx%d to %dx%d", path, width, height, targetWidth, targetHeight)
	return imaging.Resize(img, targetWidth, targetHeight, imaging.Lanczos), nil
}

// constrain scales (w, h) down to fit maxDimension on both sides and
// maxPixels in total, keeping the aspect ratio.
func constrain(w, h, maxDimension, maxPixels int) (int, int) {
	if w <= 0 || h <= 0 {
		return w, h
	}

	tw, th := w, h
	if tw > maxDimension || th > maxDimension {
		if tw > th {
			th = th * maxDimension / tw
			tw = maxDimension
		} else {
			tw = tw * maxDimension / th
			th = maxDimension
		}
	}

	if tw*th > maxPixels {
		scale := math.Sqrt(float64(maxPixels) / float64(tw*th))
		tw = int(float64(tw) * scale)
		th = int(float64(th) * scale)
	}

	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}
	return tw, th
}
