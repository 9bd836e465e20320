// Package cache maps media identities to their derived-artifact files.
//
// Everything lives under <root>/images/<albumID>/<mediaID>/. The mapping is
// pure and stable across restarts: the processor writes through it and the
// HTTP layer reads through it.
package cache

import (
	"path/filepath"
	"strings"
)

const (
	imagesDir     = "images"
	thumbnailName = "thumbnail.jpg"
	extractedName = "extracted.jpg"
	webVideoName  = "web.mp4"
)

// Layout resolves cache paths under Root.
type Layout struct {
	Root string
}

// New returns a Layout rooted at root.
func New(root string) Layout {
	return Layout{Root: root}
}

// AlbumCacheDir is the parent of every per-media directory of an album.
// Removing it drops all cached artifacts of the album.
func (l Layout) AlbumCacheDir(albumID string) string {
	return filepath.Join(l.Root, imagesDir, albumID)
}

// ImageCacheDir is the per-media cache directory.
func (l Layout) ImageCacheDir(albumID, mediaID string) string {
	return filepath.Join(l.AlbumCacheDir(albumID), mediaID)
}

// ThumbnailPath is the 720x480-bounded JPEG thumbnail.
func (l Layout) ThumbnailPath(albumID, mediaID string) string {
	return filepath.Join(l.ImageCacheDir(albumID, mediaID), thumbnailName)
}

// ExtractedPath is the intermediate preview pulled out of a RAW file. It
// only exists while the processor runs.
func (l Layout) ExtractedPath(albumID, mediaID string) string {
	return filepath.Join(l.ImageCacheDir(albumID, mediaID), extractedName)
}

// ReencodedPath is the displayable JPEG for a RAW source: the source
// basename with its extension replaced by .jpg.
func (l Layout) ReencodedPath(albumID, mediaID, sourcePath string) string {
	return filepath.Join(l.ImageCacheDir(albumID, mediaID), ReencodedName(sourcePath))
}

// WebVideoPath is the browser-playable transcode of a video source.
func (l Layout) WebVideoPath(albumID, mediaID string) string {
	return filepath.Join(l.ImageCacheDir(albumID, mediaID), webVideoName)
}

// ReencodedName returns base(sourcePath) with the extension replaced by .jpg.
func ReencodedName(sourcePath string) string {
	base := filepath.Base(sourcePath)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".jpg"
}

// File returns a named file inside the per-media directory. It returns ""
// when name would escape that directory.
func (l Layout) File(albumID, mediaID, name string) string {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return ""
	}
	return filepath.Join(l.ImageCacheDir(albumID, mediaID), name)
}
