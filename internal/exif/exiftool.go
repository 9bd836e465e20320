package exif

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"photo-library/internal/logging"

	"github.com/barasher/go-exiftool"
)

// previewTags are tried in order; the first is usually the largest.
var previewTags = []string{"JpgFromRaw", "PreviewImage", "OtherImage", "ThumbnailImage"}

const base64Prefix = "base64:"

// Exiftool is the exiftool-backed backend. It keeps two exiftool processes:
// one for plain metadata and one with binary extraction enabled, so that
// metadata reads do not ship preview bytes over the pipe.
type Exiftool struct {
	meta   *exiftool.Exiftool
	binary *exiftool.Exiftool
}

// NewExiftool starts the exiftool processes. It fails when the exiftool
// binary is not installed.
func NewExiftool() (*Exiftool, error) {
	meta, err := exiftool.NewExiftool()
	if err != nil {
		return nil, fmt.Errorf("start exiftool: %w", err)
	}

	// Previews are base64 encoded on one JSON line; size the scanner for them.
	binary, err := exiftool.NewExiftool(
		exiftool.ExtractAllBinaryMetadata(),
		exiftool.Buffer(make([]byte, 256*1024), 128*1024*1024),
	)
	if err != nil {
		_ = meta.Close()
		return nil, fmt.Errorf("start exiftool (binary): %w", err)
	}

	return &Exiftool{meta: meta, binary: binary}, nil
}

// Close stops both exiftool processes.
func (e *Exiftool) Close() error {
	return errors.Join(e.meta.Close(), e.binary.Close())
}

func (e *Exiftool) extract(et *exiftool.Exiftool, path string) (exiftool.FileMetadata, error) {
	fis := et.ExtractMetadata(path)
	if len(fis) == 0 {
		return exiftool.FileMetadata{}, fmt.Errorf("exiftool returned nothing for %s", path)
	}
	fi := fis[0]
	if fi.Err != nil {
		return fi, fmt.Errorf("extract fail for %q: %w", path, fi.Err)
	}
	return fi, nil
}

// Parse implements Parser.
func (e *Exiftool) Parse(path string) (*Record, error) {
	fi, err := e.extract(e.meta, path)
	if err != nil {
		return nil, err
	}

	r := &Record{}
	r.Camera, _ = fi.GetString("Model")
	r.Maker, _ = fi.GetString("Make")
	if r.Lens, err = fi.GetString("LensModel"); err != nil {
		r.Lens, _ = fi.GetString("Lens")
	}

	if ds, err := fi.GetString("DateTimeOriginal"); err == nil {
		r.DateShot = parseDate(ds)
	} else {
		logging.Debug("no DateTimeOriginal for %s: %v", path, err)
	}

	if v, ok := fi.Fields["ExposureTime"]; ok {
		r.Exposure = strings.TrimSpace(fmt.Sprint(v))
	}
	if f, err := fi.GetFloat("FNumber"); err == nil {
		r.Aperture = floatPtr(f)
	}
	if fl, ok := fi.Fields["FocalLength"]; ok {
		r.FocalLength = leadingFloat(fl)
	}
	r.ISO = ParseISO(fi.Fields["ISO"])
	r.Flash, _ = fi.GetString("Flash")

	if info, err := os.Stat(path); err == nil {
		r.FileSize = info.Size()
	}

	if r.Empty() {
		return nil, nil
	}
	return r, nil
}

// ExtractPreview implements PreviewExtractor.
func (e *Exiftool) ExtractPreview(src, dst string) error {
	fi, err := e.extract(e.binary, src)
	if err != nil {
		return err
	}

	for _, tag := range previewTags {
		raw, err := fi.GetString(tag)
		if err != nil || !strings.HasPrefix(raw, base64Prefix) {
			continue
		}

		data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(raw, base64Prefix))
		if err != nil {
			logging.Warn("exiftool %s for %s is not valid base64: %v", tag, src, err)
			continue
		}

		logging.Debug("extracted %s (%d bytes) from %s", tag, len(data), src)
		return os.WriteFile(dst, data, 0o644)
	}

	return fmt.Errorf("%s: %w", src, ErrNoPreview)
}

// Orientation implements PreviewExtractor.
func (e *Exiftool) Orientation(path string) (int, error) {
	fi, err := e.extract(e.meta, path)
	if err != nil {
		return 0, err
	}

	switch v := fi.Fields["Orientation"].(type) {
	case float64:
		return int(v), nil
	case string:
		return orientationFromText(v), nil
	default:
		return 0, nil
	}
}

// leadingFloat parses values like 50, "50.0 mm" or "24.0 mm (35 mm equivalent: 38.0 mm)".
func leadingFloat(v interface{}) *float64 {
	switch val := v.(type) {
	case float64:
		return floatPtr(val)
	case string:
		field := strings.Fields(val)
		if len(field) == 0 {
			return nil
		}
		f, err := strconv.ParseFloat(field[0], 64)
		if err != nil {
			return nil
		}
		return floatPtr(f)
	}
	return nil
}
