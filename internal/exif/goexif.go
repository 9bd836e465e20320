package exif

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"photo-library/internal/filesystem"

	"github.com/rwcarlsen/goexif/exif"
)

// errNoExif marks files whose EXIF block is missing or unreadable.
var errNoExif = errors.New("no exif data")

// Goexif is the pure Go backend.
type Goexif struct{}

// NewGoexif returns the pure Go backend.
func NewGoexif() *Goexif {
	return &Goexif{}
}

func decode(path string) (*exif.Exif, int64, error) {
	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	x, err := exif.Decode(f)
	if err != nil && (x == nil || exif.IsCriticalError(err)) {
		return nil, size, fmt.Errorf("%w: %v", errNoExif, err)
	}
	return x, size, nil
}

// Parse implements Parser.
func (g *Goexif) Parse(path string) (*Record, error) {
	x, size, err := decode(path)
	if err != nil {
		if errors.Is(err, errNoExif) {
			return nil, nil
		}
		return nil, fmt.Errorf("read exif %s: %w", path, err)
	}

	r := &Record{FileSize: size}
	r.Camera = stringTag(x, exif.Model)
	r.Maker = stringTag(x, exif.Make)
	r.Lens = stringTag(x, exif.LensModel)

	if t, err := x.DateTime(); err == nil && !t.IsZero() {
		r.DateShot = &t
	}

	if tag, err := x.Get(exif.ExposureTime); err == nil {
		if num, den, err := tag.Rat2(0); err == nil && den != 0 {
			r.Exposure = formatExposure(num, den)
		}
	}
	if tag, err := x.Get(exif.FNumber); err == nil {
		if rat, err := tag.Rat(0); err == nil {
			f, _ := rat.Float64()
			r.Aperture = floatPtr(f)
		}
	}
	if tag, err := x.Get(exif.FocalLength); err == nil {
		if rat, err := tag.Rat(0); err == nil {
			f, _ := rat.Float64()
			r.FocalLength = floatPtr(f)
		}
	}
	if tag, err := x.Get(exif.ISOSpeedRatings); err == nil {
		if n, err := tag.Int(0); err == nil {
			r.ISO = ParseISO(n)
		} else if s, err := tag.StringVal(); err == nil {
			r.ISO = ParseISO(s)
		}
	}
	if tag, err := x.Get(exif.Flash); err == nil {
		if n, err := tag.Int(0); err == nil {
			r.Flash = flashDescription(n)
		}
	}

	return r, nil
}

// ExtractPreview implements PreviewExtractor using the IFD1 thumbnail. It is
// far smaller than the exiftool preview but needs no external binary.
func (g *Goexif) ExtractPreview(src, dst string) error {
	x, _, err := decode(src)
	if err != nil {
		return fmt.Errorf("read exif %s: %w", src, err)
	}

	thumb, err := x.JpegThumbnail()
	if err != nil || len(thumb) == 0 {
		return fmt.Errorf("%s: %w", src, ErrNoPreview)
	}

	return os.WriteFile(dst, thumb, 0o644)
}

// Orientation implements PreviewExtractor.
func (g *Goexif) Orientation(path string) (int, error) {
	x, _, err := decode(path)
	if err != nil {
		if errors.Is(err, errNoExif) {
			return 0, nil
		}
		return 0, fmt.Errorf("read exif %s: %w", path, err)
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 0, nil
	}
	n, err := tag.Int(0)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func stringTag(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return s
}

func formatExposure(num, den int64) string {
	if num == 0 {
		return "0"
	}
	if num >= den {
		return strconv.FormatFloat(float64(num)/float64(den), 'f', -1, 64)
	}
	return fmt.Sprintf("1/%d", (den+num/2)/num)
}

// flashDescription decodes the low bits of the EXIF Flash tag.
func flashDescription(v int) string {
	fired := v&0x1 != 0
	switch {
	case fired && v&0x40 != 0:
		return "Fired, Red-eye reduction"
	case fired:
		return "Fired"
	case v&0x18 == 0x10:
		return "Off, Did not fire"
	case v&0x20 != 0:
		return "No flash function"
	default:
		return "No Flash"
	}
}
