package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"photo-library/internal/database"
	"photo-library/internal/mediatypes"
)

var mp4Header = []byte("\x00\x00\x00\x18ftypisom\x00\x00\x02\x00")

func TestScanTripScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	writeJPEG(t, filepath.Join(env.root, "Trip", "a.jpg"), 1440, 960)
	writeFile(t, filepath.Join(env.root, "Trip", "b.cr2"), cr2Header)
	writeFile(t, filepath.Join(env.root, "Trip", "notes.txt"), []byte("not media"))
	writeJPEG(t, filepath.Join(env.root, "loose.jpg"), 64, 64)

	if err := env.coord.ScanUser(ctx, env.user.ID); err != nil {
		t.Fatalf("ScanUser failed: %v", err)
	}

	album := env.albumByPath(t, "Trip")
	if album.Title != "Trip" || album.ParentAlbumID != nil || album.OwnerID != env.user.ID {
		t.Errorf("album = %+v", album)
	}

	albums, _ := env.db.ListAlbumsByOwner(ctx, env.user.ID)
	if len(albums) != 1 {
		t.Errorf("got %d albums, want only Trip (root is not an album)", len(albums))
	}

	if _, err := env.db.FindPhotoByPath(ctx, album.ID, filepath.Join(env.root, "Trip", "notes.txt")); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("notes.txt cataloged: %v", err)
	}

	a := env.photoByPath(t, "Trip", "a.jpg")
	urls, err := env.db.ListPhotoURLs(ctx, a.ID)
	if err != nil || len(urls) != 2 {
		t.Fatalf("a.jpg urls = %+v, %v", urls, err)
	}
	orig, thumb := urls[0], urls[1]
	if orig.Purpose != database.PurposeOriginal || orig.Width != 1440 || orig.Height != 960 || orig.ContentPath != a.Path {
		t.Errorf("a.jpg original = %+v", orig)
	}
	if thumb.Purpose != database.PurposeThumbnail || thumb.Width != 720 || thumb.Height != 480 {
		t.Errorf("a.jpg thumbnail = %+v", thumb)
	}
	if thumb.URL != PhotoURL(a.ID, "thumbnail.jpg") || thumb.ContentPath != env.layout.ThumbnailPath(album.ID, a.ID) {
		t.Errorf("a.jpg thumbnail location = %s %s", thumb.URL, thumb.ContentPath)
	}

	dl, err := env.db.FindPhotoDownload(ctx, a.ID)
	if err != nil || dl.Title != "a.jpg" || dl.URL != DownloadURL(a.ID, "a.jpg") || dl.ContentPath != a.Path {
		t.Errorf("a.jpg download = %+v, %v", dl, err)
	}

	rec, err := env.db.FindExifRecord(ctx, a.ID)
	if err != nil || rec.Camera != "Test Cam" || rec.ISO == nil || *rec.ISO != 400 {
		t.Errorf("a.jpg exif = %+v, %v", rec, err)
	}
	if rec != nil && rec.FileSize == 0 {
		t.Error("exif file size not filled from stat")
	}

	b := env.photoByPath(t, "Trip", "b.cr2")
	urls, _ = env.db.ListPhotoURLs(ctx, b.ID)
	if len(urls) != 2 {
		t.Fatalf("b.cr2 urls = %+v", urls)
	}
	reencoded := env.layout.ReencodedPath(album.ID, b.ID, b.Path)
	if urls[0].ContentPath != reencoded || urls[0].URL != PhotoURL(b.ID, "b.jpg") {
		t.Errorf("b.cr2 original = %+v", urls[0])
	}
	// 300x200 preview rotated by 90 degrees
	if urls[0].Width != 200 || urls[0].Height != 300 {
		t.Errorf("b.cr2 original dims = %dx%d, want 200x300", urls[0].Width, urls[0].Height)
	}
	if _, err := os.Stat(env.layout.ExtractedPath(album.ID, b.ID)); !os.IsNotExist(err) {
		t.Error("extracted preview left in cache")
	}
	if _, err := os.Stat(env.layout.ThumbnailPath(album.ID, b.ID)); err != nil {
		t.Errorf("b.cr2 thumbnail missing: %v", err)
	}

	_, rotations := env.encoder.counts()
	if len(rotations) != 1 || rotations[0] != 90 {
		t.Errorf("rotations = %v, want [90]", rotations)
	}

	enq, fin := env.coord.Progress()
	if enq != 2 || fin != 2 {
		t.Errorf("progress = %d/%d, want 2/2", fin, enq)
	}

	evs := env.sink.all()
	if len(evs) < 2 {
		t.Fatalf("got %d events", len(evs))
	}
	if evs[0].Progress != 0 || evs[0].Finished {
		t.Errorf("first event = %+v", evs[0])
	}
	last := evs[len(evs)-1]
	if !last.Finished || !last.Success || last.Progress != 100 {
		t.Errorf("last event = %+v", last)
	}
	if env.coord.IsRunning() {
		t.Error("coordinator still running")
	}
}

func TestScanIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	writeJPEG(t, filepath.Join(env.root, "Trip", "a.jpg"), 800, 600)
	writeFile(t, filepath.Join(env.root, "Trip", "b.cr2"), cr2Header)

	if err := env.coord.ScanAll(ctx); err != nil {
		t.Fatal(err)
	}
	firstThumbs, firstRot := env.encoder.counts()
	a := env.photoByPath(t, "Trip", "a.jpg")

	if err := env.coord.ScanAll(ctx); err != nil {
		t.Fatal(err)
	}
	thumbs, rot := env.encoder.counts()
	if thumbs != firstThumbs || len(rot) != len(firstRot) {
		t.Errorf("second scan reprocessed: thumbnails %d -> %d, re-encodes %d -> %d",
			firstThumbs, thumbs, len(firstRot), len(rot))
	}

	again := env.photoByPath(t, "Trip", "a.jpg")
	if again.ID != a.ID {
		t.Errorf("photo id changed: %s -> %s", a.ID, again.ID)
	}

	enq, fin := env.coord.Progress()
	if enq != 2 || fin != 2 {
		t.Errorf("skipped photos not counted: %d/%d", fin, enq)
	}
}

func TestScanRepairsPartialState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	writeJPEG(t, filepath.Join(env.root, "Trip", "a.jpg"), 800, 600)
	writeJPEG(t, filepath.Join(env.root, "Trip", "b.jpg"), 800, 600)
	if err := env.coord.ScanAll(ctx); err != nil {
		t.Fatal(err)
	}
	before, _ := env.encoder.counts()

	album := env.albumByPath(t, "Trip")
	a := env.photoByPath(t, "Trip", "a.jpg")
	b := env.photoByPath(t, "Trip", "b.jpg")

	// a loses one URL row, b loses its thumbnail file
	urls, _ := env.db.ListPhotoURLs(ctx, a.ID)
	if err := env.db.ReplacePhotoURLs(ctx, a.ID, urls[:1]); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(env.layout.ThumbnailPath(album.ID, b.ID)); err != nil {
		t.Fatal(err)
	}

	proc := env.coord.walker.albums.processor
	for _, p := range []*database.Photo{a, b} {
		need, err := proc.NeedsProcessing(ctx, p)
		if err != nil || !need {
			t.Errorf("NeedsProcessing(%s) = %v, %v, want true", p.Title, need, err)
		}
	}

	if err := env.coord.ScanAll(ctx); err != nil {
		t.Fatal(err)
	}
	after, _ := env.encoder.counts()
	if after != before+2 {
		t.Errorf("thumbnails %d -> %d, want two rebuilt", before, after)
	}
	for _, p := range []*database.Photo{a, b} {
		if n, _ := env.db.CountPhotoURLs(ctx, p.ID); n != 2 {
			t.Errorf("%s has %d urls after repair", p.Title, n)
		}
		need, _ := proc.NeedsProcessing(ctx, p)
		if need {
			t.Errorf("%s still needs processing", p.Title)
		}
	}
}

func TestScanRemovesStaleAlbums(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, dir := range []string{"A", "B", "C"} {
		writeJPEG(t, filepath.Join(env.root, dir, "x.jpg"), 32, 32)
	}
	if err := env.coord.ScanAll(ctx); err != nil {
		t.Fatal(err)
	}

	stale := env.albumByPath(t, "B")
	if _, err := os.Stat(env.layout.AlbumCacheDir(stale.ID)); err != nil {
		t.Fatalf("album cache not written: %v", err)
	}

	if err := os.RemoveAll(filepath.Join(env.root, "B")); err != nil {
		t.Fatal(err)
	}
	if err := env.coord.ScanAll(ctx); err != nil {
		t.Fatal(err)
	}

	albums, _ := env.db.ListAlbumsByOwner(ctx, env.user.ID)
	var titles []string
	for _, a := range albums {
		titles = append(titles, a.Title)
	}
	if len(titles) != 2 || titles[0] != "A" || titles[1] != "C" {
		t.Errorf("albums = %v, want [A C]", titles)
	}
	if _, err := env.db.FindAlbumByID(ctx, stale.ID); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("stale album still cataloged: %v", err)
	}
	if _, err := os.Stat(env.layout.AlbumCacheDir(stale.ID)); !os.IsNotExist(err) {
		t.Error("stale album cache dir not removed")
	}
}

func TestScanRemovesStalePhotos(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	writeJPEG(t, filepath.Join(env.root, "Trip", "a.jpg"), 32, 32)
	writeJPEG(t, filepath.Join(env.root, "Trip", "b.jpg"), 32, 32)
	if err := env.coord.ScanAll(ctx); err != nil {
		t.Fatal(err)
	}
	album := env.albumByPath(t, "Trip")
	b := env.photoByPath(t, "Trip", "b.jpg")

	if err := os.Remove(b.Path); err != nil {
		t.Fatal(err)
	}
	if err := env.coord.ScanAll(ctx); err != nil {
		t.Fatal(err)
	}

	if _, err := env.db.FindPhotoByID(ctx, b.ID); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("removed file still cataloged: %v", err)
	}
	if _, err := os.Stat(env.layout.ImageCacheDir(album.ID, b.ID)); !os.IsNotExist(err) {
		t.Error("cache of removed photo still on disk")
	}
	env.photoByPath(t, "Trip", "a.jpg")
}

func TestScanKeepsPhotosOfUnreadableFiles(t *testing.T) {
	var failA atomic.Bool
	env := newTestEnv(t, func(o *Options) {
		o.Classify = func(path string) (mediatypes.Kind, error) {
			if failA.Load() && filepath.Base(path) == "a.jpg" {
				return mediatypes.KindOther, os.ErrPermission
			}
			return mediatypes.Classify(path)
		}
	})
	ctx := context.Background()

	writeJPEG(t, filepath.Join(env.root, "Trip", "a.jpg"), 32, 32)
	writeJPEG(t, filepath.Join(env.root, "Trip", "b.jpg"), 32, 32)
	writeJPEG(t, filepath.Join(env.root, "Trip", "c.jpg"), 32, 32)
	if err := env.coord.ScanAll(ctx); err != nil {
		t.Fatal(err)
	}
	album := env.albumByPath(t, "Trip")
	a := env.photoByPath(t, "Trip", "a.jpg")
	c := env.photoByPath(t, "Trip", "c.jpg")

	failA.Store(true)
	if err := os.Remove(c.Path); err != nil {
		t.Fatal(err)
	}
	if err := env.coord.ScanAll(ctx); err != nil {
		t.Fatal(err)
	}

	if _, err := env.db.FindPhotoByID(ctx, a.ID); err != nil {
		t.Errorf("unreadable file lost its photo: %v", err)
	}
	if _, err := os.Stat(env.layout.ImageCacheDir(album.ID, a.ID)); err != nil {
		t.Errorf("cache of unreadable file removed: %v", err)
	}
	// a file that is really gone is still cleaned up in the same pass
	if _, err := env.db.FindPhotoByID(ctx, c.ID); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("deleted file still cataloged: %v", err)
	}
	env.photoByPath(t, "Trip", "b.jpg")
}

func TestWalkSkipsLinkLoops(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	writeJPEG(t, filepath.Join(env.root, "Trip", "a.jpg"), 32, 32)
	for link, target := range map[string]string{"self": ".", "up": "..", "root": env.root} {
		if err := os.Symlink(target, filepath.Join(env.root, "Trip", link)); err != nil {
			t.Skipf("symlinks unsupported: %v", err)
		}
	}

	if err := env.coord.ScanUser(ctx, env.user.ID); err != nil {
		t.Fatalf("ScanUser failed: %v", err)
	}

	albums, err := env.db.ListAlbumsByOwner(ctx, env.user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(albums) != 1 || albums[0].Path != filepath.Join(env.root, "Trip") {
		t.Errorf("albums = %+v, want only Trip", albums)
	}
	if thumbs, _ := env.encoder.counts(); thumbs != 1 {
		t.Errorf("thumbnails = %d, want 1", thumbs)
	}
}

func TestWalkFollowsOutsideLinkOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ext := filepath.Join(t.TempDir(), "Pics")
	writeJPEG(t, filepath.Join(ext, "x.jpg"), 32, 32)
	if err := os.Symlink(ext, filepath.Join(ext, "again")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if err := os.Symlink(ext, filepath.Join(env.root, "Linked")); err != nil {
		t.Fatal(err)
	}

	if err := env.coord.ScanUser(ctx, env.user.ID); err != nil {
		t.Fatalf("ScanUser failed: %v", err)
	}

	albums, err := env.db.ListAlbumsByOwner(ctx, env.user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(albums) != 1 || albums[0].Path != filepath.Join(env.root, "Linked") {
		t.Errorf("albums = %+v, want only Linked", albums)
	}
	env.photoByPath(t, "Linked", "x.jpg")
}

func TestScanFlushesProgressBeforeFinish(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	writeJPEG(t, filepath.Join(env.root, "Trip", "a.jpg"), 32, 32)
	writeJPEG(t, filepath.Join(env.root, "Trip", "b.jpg"), 32, 32)
	writeJPEG(t, filepath.Join(env.root, "Trip", "c.jpg"), 32, 32)
	if err := env.coord.ScanUser(ctx, env.user.ID); err != nil {
		t.Fatal(err)
	}

	evs := env.sink.all()
	if len(evs) < 3 {
		t.Fatalf("got %d events, want at least 3", len(evs))
	}
	flushed := evs[len(evs)-2]
	if flushed.Finished || flushed.Progress != 100 {
		t.Errorf("event before finish = %+v, want unfinished 100%%", flushed)
	}
}

func TestScanRotatesRawByOrientation(t *testing.T) {
	tests := []struct {
		name     string
		previews *fakePreviews
		want     int
	}{
		{"upside down", &fakePreviews{orientation: 3}, 180},
		{"clockwise", &fakePreviews{orientation: 6}, 90},
		{"counter clockwise", &fakePreviews{orientation: 8}, -90},
		{"upright", &fakePreviews{orientation: 1}, 0},
		{"unreadable tag", &fakePreviews{orientationErr: errors.New("no orientation tag")}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, func(o *Options) { o.Previews = tt.previews })
			writeFile(t, filepath.Join(env.root, "Trip", "b.cr2"), cr2Header)

			if err := env.coord.ScanUser(context.Background(), env.user.ID); err != nil {
				t.Fatalf("ScanUser failed: %v", err)
			}
			_, rotations := env.encoder.counts()
			if len(rotations) != 1 || rotations[0] != tt.want {
				t.Errorf("rotations = %v, want [%d]", rotations, tt.want)
			}
		})
	}
}

func TestScanLinksNestedAlbums(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	writeJPEG(t, filepath.Join(env.root, "2024", "Trip", "x.jpg"), 32, 32)
	writeJPEG(t, filepath.Join(env.root, "2024", "Summer", "y.jpg"), 32, 32)
	writeFile(t, filepath.Join(env.root, "Empty", "sub", "readme.txt"), []byte("text"))

	if err := env.coord.ScanAll(ctx); err != nil {
		t.Fatal(err)
	}

	year := env.albumByPath(t, "2024")
	if year.ParentAlbumID != nil {
		t.Errorf("top-level album has parent %s", *year.ParentAlbumID)
	}
	for _, rel := range []string{"2024/Trip", "2024/Summer"} {
		a := env.albumByPath(t, rel)
		if a.ParentAlbumID == nil || *a.ParentAlbumID != year.ID {
			t.Errorf("%s parent = %v, want %s", rel, a.ParentAlbumID, year.ID)
		}
	}
	for _, rel := range []string{"Empty", "Empty/sub"} {
		if _, err := env.db.FindAlbumByPath(ctx, filepath.Join(env.root, rel)); !errors.Is(err, database.ErrNotFound) {
			t.Errorf("%s became an album: %v", rel, err)
		}
	}

	// a new child under an existing album links straight away
	writeJPEG(t, filepath.Join(env.root, "2024", "Autumn", "z.jpg"), 32, 32)
	if err := env.coord.ScanAll(ctx); err != nil {
		t.Fatal(err)
	}
	autumn := env.albumByPath(t, "2024/Autumn")
	if autumn.ParentAlbumID == nil || *autumn.ParentAlbumID != year.ID {
		t.Errorf("Autumn parent = %v, want %s", autumn.ParentAlbumID, year.ID)
	}
	if again := env.albumByPath(t, "2024"); again.ID != year.ID {
		t.Errorf("2024 album recreated: %s -> %s", year.ID, again.ID)
	}
}

func TestScanProcessesVideos(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	writeFile(t, filepath.Join(env.root, "Clips", "v.mp4"), mp4Header)
	if err := env.coord.ScanAll(ctx); err != nil {
		t.Fatal(err)
	}

	album := env.albumByPath(t, "Clips")
	v := env.photoByPath(t, "Clips", "v.mp4")
	if v.Kind != database.MediaVideo {
		t.Errorf("kind = %s, want video", v.Kind)
	}

	urls, _ := env.db.ListPhotoURLs(ctx, v.ID)
	if len(urls) != 2 {
		t.Fatalf("video urls = %+v", urls)
	}
	if urls[0].ContentPath != env.layout.WebVideoPath(album.ID, v.ID) || urls[0].Width != 1920 {
		t.Errorf("video original = %+v", urls[0])
	}
	if urls[1].Width != 720 || urls[1].Height != 405 {
		t.Errorf("video thumbnail = %dx%d, want 720x405", urls[1].Width, urls[1].Height)
	}
	if ok, _ := env.db.HasExifRecord(ctx, v.ID); ok {
		t.Error("video got an EXIF record")
	}

	if err := env.coord.ScanAll(ctx); err != nil {
		t.Fatal(err)
	}
	if env.videos.transcodes != 1 {
		t.Errorf("transcodes = %d, want 1", env.videos.transcodes)
	}
}

func TestScanRejectsConcurrentRun(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if !env.coord.tryStart() {
		t.Fatal("tryStart on idle coordinator failed")
	}
	if !env.coord.IsRunning() {
		t.Error("IsRunning = false during a run")
	}
	if err := env.coord.ScanAll(ctx); !errors.Is(err, ErrScanRunning) {
		t.Errorf("ScanAll error = %v, want ErrScanRunning", err)
	}
	if err := env.coord.ScanUser(ctx, env.user.ID); !errors.Is(err, ErrScanRunning) {
		t.Errorf("ScanUser error = %v, want ErrScanRunning", err)
	}
	if len(env.sink.all()) != 0 {
		t.Error("rejected scan published events")
	}

	env.coord.finish()
	if err := env.coord.ScanAll(ctx); err != nil {
		t.Errorf("ScanAll after finish failed: %v", err)
	}
}

func TestScanUserPreconditions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.coord.ScanUser(ctx, "no-such-user"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("unknown user error = %v, want ErrUserNotFound", err)
	}

	bob, err := env.db.CreateUser(ctx, "bob", "pw", "", false)
	if err != nil {
		t.Fatal(err)
	}
	if err := env.coord.ScanUser(ctx, bob.ID); !errors.Is(err, ErrNoRootPath) {
		t.Errorf("rootless user error = %v, want ErrNoRootPath", err)
	}

	if len(env.sink.all()) != 0 {
		t.Error("precondition failures published events")
	}
	if env.coord.IsRunning() {
		t.Error("precondition failure left the coordinator running")
	}
}

func TestScanAllFailureKeepsCatalog(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	writeJPEG(t, filepath.Join(env.root, "Trip", "a.jpg"), 32, 32)
	if err := env.coord.ScanAll(ctx); err != nil {
		t.Fatal(err)
	}

	if err := env.db.SetUserRootPath(ctx, env.user.ID, filepath.Join(env.root, "missing")); err != nil {
		t.Fatal(err)
	}
	if err := env.coord.ScanAll(ctx); err == nil {
		t.Fatal("Expected error for missing root")
	}

	evs := env.sink.all()
	last := evs[len(evs)-1]
	if !last.Finished || last.Success || last.ErrorMessage == "" {
		t.Errorf("failure event = %+v", last)
	}
	if env.coord.IsRunning() {
		t.Error("failed scan left the coordinator running")
	}

	albums, _ := env.db.ListAlbumsByOwner(ctx, env.user.ID)
	if len(albums) != 1 {
		t.Errorf("failed walk deleted albums: %d left", len(albums))
	}
}

func TestScanAllWalksEveryUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	bobRoot := filepath.Join(t.TempDir(), "bob")
	bob, err := env.db.CreateUser(ctx, "bob", "pw", bobRoot, false)
	if err != nil {
		t.Fatal(err)
	}
	writeJPEG(t, filepath.Join(env.root, "Alice", "a.jpg"), 32, 32)
	writeJPEG(t, filepath.Join(bobRoot, "Bob", "b.jpg"), 32, 32)

	if err := env.coord.ScanAll(ctx); err != nil {
		t.Fatal(err)
	}

	for _, tc := range []struct {
		owner string
		path  string
	}{
		{env.user.ID, filepath.Join(env.root, "Alice")},
		{bob.ID, filepath.Join(bobRoot, "Bob")},
	} {
		a, err := env.db.FindAlbumByPath(ctx, tc.path)
		if err != nil || a.OwnerID != tc.owner {
			t.Errorf("album %s = %+v, %v", tc.path, a, err)
		}
	}

	last, err := env.db.GetLastScanRun(ctx)
	if err != nil || last.IsZero() {
		t.Errorf("last scan run = %v, %v", last, err)
	}
}

func TestSubscribeReceivesFinalEvent(t *testing.T) {
	env := newTestEnv(t)
	writeJPEG(t, filepath.Join(env.root, "Trip", "a.jpg"), 32, 32)

	ch, cancel := env.coord.Subscribe()
	defer cancel()

	if err := env.coord.ScanAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	var got []bool
	for {
		select {
		case ev := <-ch:
			got = append(got, ev.Finished)
			continue
		default:
		}
		break
	}
	if len(got) == 0 || !got[len(got)-1] {
		t.Errorf("subscriber events finished flags = %v", got)
	}
}

type closedGate struct{ waits atomic.Int32 }

func (g *closedGate) Wait(ctx context.Context) error {
	g.waits.Add(1)
	return context.DeadlineExceeded
}

func TestScanWaitsOnMemoryGate(t *testing.T) {
	gate := &closedGate{}
	env := newTestEnv(t, func(o *Options) { o.Memory = gate })
	ctx := context.Background()

	writeJPEG(t, filepath.Join(env.root, "Trip", "a.jpg"), 800, 600)

	if err := env.coord.ScanAll(ctx); err != nil {
		t.Fatalf("held back photo failed the scan: %v", err)
	}
	if gate.waits.Load() != 1 {
		t.Errorf("gate waited %d times, want 1", gate.waits.Load())
	}
	if thumbs, _ := env.encoder.counts(); thumbs != 0 {
		t.Errorf("photo processed past a closed gate: %d thumbnails", thumbs)
	}
	if enq, fin := env.coord.Progress(); enq != 1 || fin != 1 {
		t.Errorf("progress = %d/%d, want 1/1", fin, enq)
	}

	// Next scan with the gate open repairs the photo.
	env.coord.walker.albums.processor.memory = nil
	if err := env.coord.ScanAll(ctx); err != nil {
		t.Fatal(err)
	}
	if thumbs, _ := env.encoder.counts(); thumbs != 1 {
		t.Errorf("thumbnails after reopening gate = %d, want 1", thumbs)
	}
}

func TestStartRunsInBackground(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	writeJPEG(t, filepath.Join(env.root, "Trip", "a.jpg"), 64, 48)

	ch, cancel := env.coord.Subscribe()
	defer cancel()

	if err := env.coord.StartAll(ctx); err != nil {
		t.Fatalf("StartAll: %v", err)
	}

	deadline := time.After(10 * time.Second)
	for done := false; !done; {
		select {
		case ev := <-ch:
			done = ev.Finished
			if done && !ev.Success {
				t.Fatalf("background scan failed: %s", ev.ErrorMessage)
			}
		case <-deadline:
			t.Fatal("background scan did not finish")
		}
	}

	// The running flag clears right after the final event.
	for i := 0; env.coord.IsRunning() && i < 100; i++ {
		time.Sleep(10 * time.Millisecond)
	}
	if env.coord.IsRunning() {
		t.Fatal("coordinator still running after final event")
	}
	env.photoByPath(t, "Trip", "a.jpg")

	if err := env.coord.StartUser(ctx, "no-such-user"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("StartUser unknown = %v, want ErrUserNotFound", err)
	}
	if env.coord.IsRunning() {
		t.Error("rejected StartUser left the coordinator running")
	}
}
