package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"photo-library/internal/cache"
	"photo-library/internal/database"
	"photo-library/internal/filesystem"
	"photo-library/internal/logging"
	"photo-library/internal/mediatypes"
	"photo-library/internal/metrics"
)

// TreeWalker discovers the albums below a user's root, links the album
// hierarchy, runs an AlbumScanner per album and deletes albums whose
// directory is gone.
type TreeWalker struct {
	catalog      Catalog
	albums       *AlbumScanner
	albumWorkers int
	layout       cache.Layout
	classify     func(path string) (mediatypes.Kind, error)
	retry        filesystem.RetryConfig
}

// visitResult is what one directory reports to its parent.
type visitResult struct {
	// hasMedia is true when the directory or a descendant holds media.
	hasMedia bool
	// unlinkedChildIDs are albums directly below the directory that could
	// not be linked yet because the directory had no album when they were
	// visited.
	unlinkedChildIDs []string
	// foundIDs are all albums seen in the subtree.
	foundIDs []string
}

// walk carries the per-run collaborators of one user's walk.
type walk struct {
	*TreeWalker
	owner string
	scans *errgroup.Group
	// realRoot is the user's root with symlinks resolved.
	realRoot string
	// visited holds every directory walked so far, keyed by listing path
	// for real directories and by resolved path for link targets.
	visited map[string]bool
}

// Walk scans every album of user. The root directory itself is never an
// album. A listing or catalog failure aborts the walk before any stale album
// is deleted.
func (w *TreeWalker) Walk(ctx context.Context, user *database.User) error {
	if user.RootPath == "" {
		return ErrNoRootPath
	}

	scans, scanCtx := errgroup.WithContext(ctx)
	if w.albumWorkers > 0 {
		scans.SetLimit(w.albumWorkers)
	}
	realRoot, err := filepath.EvalSymlinks(user.RootPath)
	if err != nil {
		realRoot = user.RootPath
	}
	run := &walk{
		TreeWalker: w,
		owner:      user.ID,
		scans:      scans,
		realRoot:   realRoot,
		visited:    map[string]bool{user.RootPath: true, realRoot: true},
	}

	// a failed album scan cancels scanCtx and stops the rest of the walk
	res, err := run.visit(scanCtx, user.RootPath, nil)
	if waitErr := scans.Wait(); err == nil {
		err = waitErr
	}
	if err != nil {
		return fmt.Errorf("scan %s: %w", user.Username, err)
	}

	return w.removeStaleAlbums(ctx, user, res.foundIDs)
}

func (w *walk) visit(ctx context.Context, path string, parentAlbumID *string) (visitResult, error) {
	var res visitResult

	entries, err := filesystem.ReadDirWithRetry(path, w.retry)
	if err != nil {
		return res, fmt.Errorf("list %s: %w", path, err)
	}

	for _, e := range entries {
		if !e.IsDir || !w.follow(e) {
			continue
		}

		existing, err := w.catalog.FindAlbumByPath(ctx, e.Path)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return res, fmt.Errorf("find album %s: %w", e.Path, err)
		}

		var childParent *string
		if existing != nil {
			childParent = &existing.ID
		}
		sub, err := w.visit(ctx, e.Path, childParent)
		if err != nil {
			return res, err
		}
		res.foundIDs = append(res.foundIDs, sub.foundIDs...)

		var album *database.Album
		switch {
		case existing != nil:
			album = existing
			metrics.ScanAlbumsTotal.WithLabelValues("existing").Inc()
			if parentAlbumID != nil {
				if err := w.catalog.LinkSubalbum(ctx, *parentAlbumID, album.ID); err != nil {
					return res, err
				}
			}
		case sub.hasMedia:
			album, err = w.catalog.CreateAlbum(ctx, e.Path, w.owner, parentAlbumID)
			if err != nil {
				return res, fmt.Errorf("create album %s: %w", e.Path, err)
			}
			metrics.ScanAlbumsTotal.WithLabelValues("created").Inc()
			logging.Debug("New album %s", e.Path)
		default:
			continue
		}

		if parentAlbumID == nil {
			res.unlinkedChildIDs = append(res.unlinkedChildIDs, album.ID)
		}
		for _, child := range sub.unlinkedChildIDs {
			if err := w.catalog.LinkSubalbum(ctx, album.ID, child); err != nil {
				return res, err
			}
		}

		w.enqueue(ctx, album)
		res.foundIDs = append(res.foundIDs, album.ID)
		res.hasMedia = true
	}

	for _, e := range entries {
		if e.IsDir || res.hasMedia {
			continue
		}
		kind, err := w.classify(e.Path)
		if err != nil {
			logging.Debug("Skipping %s: %v", e.Path, err)
			continue
		}
		res.hasMedia = kind.IsMedia()
	}

	return res, nil
}

// follow reports whether directory e should be walked. A link whose target
// lies inside the user's root is skipped because the real directory is
// walked on its own; any other directory is walked at most once. Together
// these stop link loops from turning into endless nested albums.
func (w *walk) follow(e filesystem.Entry) bool {
	key := e.Path
	if e.Symlink {
		target, err := filepath.EvalSymlinks(e.Path)
		if err != nil {
			logging.Debug("Skipping link %s: %v", e.Path, err)
			return false
		}
		if within(w.realRoot, target) {
			logging.Debug("Skipping link %s into the library (%s)", e.Path, target)
			return false
		}
		key = target
	}
	if w.visited[key] {
		logging.Debug("Skipping %s, already walked", e.Path)
		return false
	}
	w.visited[key] = true
	return true
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (w *walk) enqueue(ctx context.Context, album *database.Album) {
	w.scans.Go(func() error {
		return w.albums.Scan(ctx, album)
	})
}

func (w *TreeWalker) removeStaleAlbums(ctx context.Context, user *database.User, found []string) error {
	stale, err := w.catalog.ListAlbumsNotIn(ctx, user.ID, found)
	if err != nil {
		return fmt.Errorf("list stale albums of %s: %w", user.Username, err)
	}

	for _, a := range stale {
		if err := w.catalog.DeleteAlbumCascade(ctx, a.ID); err != nil {
			return fmt.Errorf("delete album %s: %w", a.Path, err)
		}
		if err := os.RemoveAll(w.layout.AlbumCacheDir(a.ID)); err != nil {
			logging.Warn("Could not remove cache of album %s: %v", a.Path, err)
		}
		metrics.ScanAlbumsTotal.WithLabelValues("deleted").Inc()
		logging.Info("Removed album %s (directory gone)", a.Path)
	}
	return nil
}
