package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/karrick/godirwalk"

	"photo-library/internal/database"
	"photo-library/internal/logging"
	"photo-library/internal/metrics"
)

// DefaultWatchDebounce is how long a user's tree must be quiet before the
// watcher rescans it.
const DefaultWatchDebounce = 10 * time.Second

// UserScanner runs a scan over one user.
type UserScanner interface {
	ScanUser(ctx context.Context, userID string) error
}

// WatchCatalog lists what the watcher subscribes to.
type WatchCatalog interface {
	ListUsersWithRootPath(ctx context.Context) ([]database.User, error)
	ListAlbumsByOwner(ctx context.Context, ownerID string) ([]database.Album, error)
}

// Watcher rescans a user's library after changes below its root settle.
// It watches each root and every album directory; a directory created later
// is added together with everything already below it.
type Watcher struct {
	fs       *fsnotify.Watcher
	catalog  WatchCatalog
	scanner  UserScanner
	debounce time.Duration

	mu      sync.Mutex
	roots   map[string]string // root path -> user id
	pending map[string]*time.Timer
	watched map[string]bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher. Call Start to load directories and begin.
func NewWatcher(catalog WatchCatalog, scanner UserScanner, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	return &Watcher{
		fs:       fsw,
		catalog:  catalog,
		scanner:  scanner,
		debounce: debounce,
		roots:    make(map[string]string),
		pending:  make(map[string]*time.Timer),
		watched:  make(map[string]bool),
	}, nil
}

// Start subscribes to every user root and album directory and starts the
// event loop.
func (w *Watcher) Start(ctx context.Context) error {
	users, err := w.catalog.ListUsersWithRootPath(ctx)
	if err != nil {
		return err
	}

	w.ctx, w.cancel = context.WithCancel(ctx)

	for _, u := range users {
		root := filepath.Clean(u.RootPath)
		w.mu.Lock()
		w.roots[root] = u.ID
		w.mu.Unlock()
		w.add(root)

		albums, err := w.catalog.ListAlbumsByOwner(ctx, u.ID)
		if err != nil {
			logging.Warn("Watcher: could not list albums of %s: %v", u.Username, err)
			continue
		}
		for _, a := range albums {
			w.add(a.Path)
		}
	}

	w.wg.Add(1)
	go w.eventLoop()

	logging.Info("Watching %d directories for %d users", w.Watched(), len(users))
	return nil
}

// Stop ends the event loop and drops pending rescans.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	if err := w.fs.Close(); err != nil {
		logging.Warn("Watcher close: %v", err)
	}
	w.wg.Wait()

	w.mu.Lock()
	for id, t := range w.pending {
		t.Stop()
		delete(w.pending, id)
	}
	w.mu.Unlock()
	metrics.WatchedDirectories.Set(0)
}

// Watched returns the number of directories subscribed.
func (w *Watcher) Watched() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watched)
}

func (w *Watcher) add(dir string) {
	dir = filepath.Clean(dir)
	w.mu.Lock()
	seen := w.watched[dir]
	w.mu.Unlock()
	if seen {
		return
	}

	if err := w.fs.Add(dir); err != nil {
		logging.Debug("Watcher: cannot watch %s: %v", dir, err)
		return
	}
	w.mu.Lock()
	w.watched[dir] = true
	metrics.WatchedDirectories.Set(float64(len(w.watched)))
	w.mu.Unlock()
}

func (w *Watcher) forget(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watched[dir] {
		delete(w.watched, dir)
		metrics.WatchedDirectories.Set(float64(len(w.watched)))
	}
}

// addTree watches dir and every directory already below it. A tree created
// in one go (mkdir -p, a copied folder) can fill up before the watch on its
// top directory exists, so no event would ever report the lower levels.
func (w *Watcher) addTree(dir string) {
	err := godirwalk.Walk(dir, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if !de.IsDir() {
				return nil
			}
			if path != dir && strings.HasPrefix(de.Name(), ".") {
				return godirwalk.SkipThis
			}
			w.add(path)
			return nil
		},
		ErrorCallback: func(path string, err error) godirwalk.ErrorAction {
			logging.Debug("Watcher: cannot list %s: %v", path, err)
			return godirwalk.SkipNode
		},
	})
	if err != nil {
		logging.Debug("Watcher: walking %s: %v", dir, err)
	}
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			metrics.WatcherErrors.Inc()
			logging.Warn("Watcher error: %v", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	metrics.WatcherEventsTotal.WithLabelValues(opName(event.Op)).Inc()

	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return
	}

	switch {
	case event.Has(fsnotify.Create):
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.addTree(event.Name)
		}
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// fsnotify drops the watch of a removed directory by itself
		w.forget(event.Name)
	}

	userID, ok := w.ownerOf(event.Name)
	if !ok {
		return
	}
	w.schedule(userID)
}

// ownerOf finds the user whose root is the longest prefix of path.
func (w *Watcher) ownerOf(path string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	best, owner := "", ""
	for root, id := range w.roots {
		if (path == root || strings.HasPrefix(path, root+string(filepath.Separator))) && len(root) > len(best) {
			best, owner = root, id
		}
	}
	return owner, best != ""
}

// schedule (re)arms the debounce timer of a user.
func (w *Watcher) schedule(userID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[userID]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[userID] = time.AfterFunc(w.debounce, func() { w.fire(userID) })
}

func (w *Watcher) fire(userID string) {
	w.mu.Lock()
	delete(w.pending, userID)
	w.mu.Unlock()

	if w.ctx.Err() != nil {
		return
	}

	logging.Debug("Watcher: changes settled, scanning user %s", userID)
	err := w.scanner.ScanUser(w.ctx, userID)
	switch {
	case errors.Is(err, ErrScanRunning):
		// the change may have landed after the running scan listed it
		w.schedule(userID)
	case err != nil:
		logging.Warn("Watcher-triggered scan of user %s failed: %v", userID, err)
	}
}

func opName(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	default:
		return "other"
	}
}
