package mediatypes

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"photo-library/internal/filesystem"
)

// PrefixSize is the number of leading bytes read when classifying a file.
const PrefixSize = 12

// Classify sniffs the first PrefixSize bytes of path. Directories are
// KindOther without an error.
func Classify(path string) (Kind, error) {
	cfg := filesystem.DefaultRetryConfig()

	info, err := filesystem.StatWithRetry(path, cfg)
	if err != nil {
		return KindOther, fmt.Errorf("classify %s: %w", path, err)
	}
	if info.IsDir() {
		return KindOther, nil
	}

	f, err := filesystem.OpenWithRetry(path, cfg)
	if err != nil {
		return KindOther, fmt.Errorf("classify %s: %w", path, err)
	}
	defer f.Close()

	header := make([]byte, PrefixSize)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return KindOther, fmt.Errorf("classify %s: %w", path, err)
	}

	return Sniff(header[:n], strings.ToLower(filepath.Ext(path))), nil
}

// IsImage reports whether path is a standard or RAW image.
func IsImage(path string) (bool, error) {
	k, err := Classify(path)
	return k.IsImage(), err
}

// IsRawImage reports whether path is one of the supported RAW formats
// (CR2, CRW, ARW, DNG, NEF, ORF, RW2, RAF).
func IsRawImage(path string) (bool, error) {
	k, err := Classify(path)
	return k == KindRaw, err
}

// IsVideo reports whether path is a recognized video container.
func IsVideo(path string) (bool, error) {
	k, err := Classify(path)
	return k == KindVideo, err
}

var (
	isoImageBrands = map[string]bool{
		"heic": true, "heix": true, "hevc": true, "hevx": true,
		"mif1": true, "msf1": true, "avif": true, "avis": true,
	}
	quicktimeAtoms = []string{"moov", "mdat", "wide", "free", "skip", "pnot"}
)

// Sniff classifies a file from its leading bytes. ext is the lowercased
// extension including the dot; it only disambiguates TIFF-based RAW files
// and MPEG transport streams.
func Sniff(h []byte, ext string) Kind {
	has := func(off int, sig string) bool {
		return len(h) >= off+len(sig) && string(h[off:off+len(sig)]) == sig
	}

	switch {
	case has(0, "\xFF\xD8\xFF"):
		return KindImage
	case has(0, "\x89PNG"):
		return KindImage
	case has(0, "GIF8"):
		return KindImage
	case has(0, "RIFF") && has(8, "WEBP"):
		return KindImage
	case has(0, "RIFF") && has(8, "AVI "):
		return KindVideo
	case has(0, "BM"):
		return KindImage

	// Canon CR2: TIFF header followed by "CR" at offset 8.
	case has(0, "II*\x00") && has(8, "CR"):
		return KindRaw
	case has(0, "II\x1a\x00\x00\x00") && has(6, "HEAP"):
		return KindRaw
	case has(0, "IIRO"), has(0, "IIRS"), has(0, "MMOR"):
		return KindRaw
	case has(0, "IIU\x00"):
		return KindRaw
	case has(0, "FUJIFILM"):
		return KindRaw
	case has(0, "II*\x00"), has(0, "MM\x00*"):
		if tiffRawExtensions[ext] {
			return KindRaw
		}
		return KindImage

	case has(4, "ftyp"):
		if len(h) < 12 {
			return KindOther
		}
		brand := string(h[8:12])
		if isoImageBrands[brand] {
			return KindImage
		}
		if brand == "crx " {
			// CR3 previews are not supported.
			return KindOther
		}
		return KindVideo
	case has(0, "\x1A\x45\xDF\xA3"):
		return KindVideo
	case has(0, "\x00\x00\x01\xBA"), has(0, "\x00\x00\x01\xB3"):
		return KindVideo
	case has(0, "\x30\x26\xB2\x75"):
		return KindVideo
	case has(0, "FLV"):
		return KindVideo
	case len(h) > 0 && h[0] == 0x47 && (ext == ".ts" || ext == ".mts" || ext == ".m2ts"):
		return KindVideo
	}

	for _, atom := range quicktimeAtoms {
		if has(4, atom) {
			return KindVideo
		}
	}

	return KindOther
}
