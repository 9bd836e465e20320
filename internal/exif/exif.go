// Package exif reads camera metadata and embedded RAW previews.
//
// Two backends exist. Goexif is pure Go and always available; it reads the
// EXIF block of JPEG and TIFF-based files and can only pull the small
// embedded thumbnail out of RAW files. Exiftool drives a long-running
// exiftool process and handles every RAW format, including the full-size
// PreviewImage/JpgFromRaw streams.
package exif

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrNoPreview is returned when a file carries no embedded JPEG preview.
var ErrNoPreview = errors.New("no embedded preview")

// Record is the catalog's EXIF summary of one photo. Pointer fields are nil
// when the tag is absent or unparseable.
type Record struct {
	Camera      string
	Maker       string
	Lens        string
	DateShot    *time.Time
	FileSize    int64
	Exposure    string
	Aperture    *float64
	ISO         *int
	FocalLength *float64
	Flash       string
}

// Empty reports whether no tag was found at all.
func (r *Record) Empty() bool {
	return r.Camera == "" && r.Maker == "" && r.Lens == "" && r.DateShot == nil &&
		r.Exposure == "" && r.Aperture == nil && r.ISO == nil && r.FocalLength == nil && r.Flash == ""
}

// Parser reads the EXIF summary of a file. A file without EXIF returns
// (nil, nil).
type Parser interface {
	Parse(path string) (*Record, error)
}

// PreviewExtractor pulls the embedded JPEG preview out of a RAW file and
// reads its orientation tag.
type PreviewExtractor interface {
	ExtractPreview(src, dst string) error
	// Orientation returns the EXIF orientation code (1-8), or 0 when absent.
	Orientation(path string) (int, error)
}

const exifDate = "2006:01:02 15:04:05"

// ParseISO turns an ISO tag value into an int. Numbers are truncated,
// strings are parsed as base-10 integers, anything else is unset.
func ParseISO(v interface{}) *int {
	var n int
	switch val := v.(type) {
	case int:
		n = val
	case int64:
		n = int(val)
	case uint16:
		n = int(val)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil
		}
		n = int(val)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return nil
		}
		n = parsed
	default:
		return nil
	}
	return &n
}

// parseDate accepts the EXIF "2006:01:02 15:04:05" layout with optional
// sub-second and zone suffixes, which exiftool appends for some cameras.
func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if len(s) < len(exifDate) {
		return nil
	}
	t, err := time.Parse(exifDate, s[:len(exifDate)])
	if err != nil || t.IsZero() {
		return nil
	}
	return &t
}

// orientationFromText maps exiftool's printed orientation to the EXIF code.
func orientationFromText(s string) int {
	switch strings.TrimSpace(s) {
	case "Horizontal (normal)":
		return 1
	case "Mirror horizontal":
		return 2
	case "Rotate 180":
		return 3
	case "Mirror vertical":
		return 4
	case "Mirror horizontal and rotate 270 CW":
		return 5
	case "Rotate 90 CW":
		return 6
	case "Mirror horizontal and rotate 90 CW":
		return 7
	case "Rotate 270 CW":
		return 8
	}
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return n
	}
	return 0
}

func floatPtr(f float64) *float64 {
	return &f
}
