package filesystem

import (
	"path/filepath"
	"sort"

	"github.com/karrick/godirwalk"
)

// Entry is one immediate child of a listed directory.
type Entry struct {
	Name  string
	Path  string
	IsDir bool
	// Symlink is set for links; IsDir then describes the target.
	Symlink bool
}

// ReadDirWithRetry lists the immediate children of dir, sorted by name.
// Symlinks are resolved so a link to a directory reports IsDir; broken links
// are reported as plain files. Hidden entries (leading dot) are skipped.
func ReadDirWithRetry(dir string, config RetryConfig) ([]Entry, error) {
	dirents, err := withRetry("readdir", dir, config, func() (godirwalk.Dirents, error) {
		return godirwalk.ReadDirents(dir, nil)
	})
	if err != nil {
		return nil, err
	}

	sort.Sort(dirents)

	entries := make([]Entry, 0, len(dirents))
	for _, de := range dirents {
		name := de.Name()
		if len(name) > 0 && name[0] == '.' {
			continue
		}

		full := filepath.Join(dir, name)
		isDir := de.IsDir()
		if de.IsSymlink() {
			if info, statErr := StatWithRetry(full, config); statErr == nil {
				isDir = info.IsDir()
			}
		}

		entries = append(entries, Entry{Name: name, Path: full, IsDir: isDir, Symlink: de.IsSymlink()})
	}

	return entries, nil
}
