package scanner

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"photo-library/internal/cache"
	"photo-library/internal/database"
	"photo-library/internal/events"
	"photo-library/internal/exif"
	"photo-library/internal/media"
	"photo-library/internal/transcoder"
)

// cr2Header is enough of a Canon CR2 file for the classifier.
var cr2Header = []byte("II*\x00\x10\x00\x00\x00CR\x02\x00")

func writeJPEG(t testing.TB, path string, w, h int) {
	t.Helper()
	if err := encodeJPEG(path, w, h); err != nil {
		t.Fatal(err)
	}
}

func encodeJPEG(path string, w, h int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 90}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeFile(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

// recordingEncoder delegates to the real encoder and records what it was asked.
type recordingEncoder struct {
	*media.Encoder
	mu         sync.Mutex
	rotations  []int
	thumbnails int
}

func (r *recordingEncoder) ReencodeJPEG(src, dst string, rotation, quality int) error {
	r.mu.Lock()
	r.rotations = append(r.rotations, rotation)
	r.mu.Unlock()
	return r.Encoder.ReencodeJPEG(src, dst, rotation, quality)
}

func (r *recordingEncoder) Thumbnail(ctx context.Context, src, dst string, maxW, maxH, q int) (media.ImageDimensions, error) {
	r.mu.Lock()
	r.thumbnails++
	r.mu.Unlock()
	return r.Encoder.Thumbnail(ctx, src, dst, maxW, maxH, q)
}

func (r *recordingEncoder) ThumbnailFromImage(img image.Image, dst string, maxW, maxH, q int) (media.ImageDimensions, error) {
	r.mu.Lock()
	r.thumbnails++
	r.mu.Unlock()
	return r.Encoder.ThumbnailFromImage(img, dst, maxW, maxH, q)
}

func (r *recordingEncoder) counts() (int, []int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.thumbnails, append([]int(nil), r.rotations...)
}

// fakePreviews stands in for exiftool: every RAW file carries a 300x200
// preview and the configured orientation, or orientationErr.
type fakePreviews struct {
	orientation    int
	orientationErr error
}

func (f *fakePreviews) ExtractPreview(src, dst string) error {
	return encodeJPEG(dst, 300, 200)
}

func (f *fakePreviews) Orientation(string) (int, error) {
	if f.orientationErr != nil {
		return 0, f.orientationErr
	}
	return f.orientation, nil
}

type fakeExif struct{}

func (fakeExif) Parse(path string) (*exif.Record, error) {
	iso := 400
	return &exif.Record{Camera: "Test Cam", Maker: "Acme", ISO: &iso}, nil
}

// fakeVideos reports every video as needing a transcode.
type fakeVideos struct {
	mu         sync.Mutex
	transcodes int
}

func (f *fakeVideos) GetVideoInfo(ctx context.Context, path string) (*transcoder.VideoInfo, error) {
	return &transcoder.VideoInfo{Width: 1920, Height: 1080, Codec: "hevc", NeedsTranscode: true}, nil
}

func (f *fakeVideos) TranscodeToFile(ctx context.Context, src, dst string) error {
	f.mu.Lock()
	f.transcodes++
	f.mu.Unlock()
	return os.WriteFile(dst, []byte("web"), 0o644)
}

func fakeFrame(ctx context.Context, path string) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 1920, 1080)), nil
}

// recordingSink collects progress events.
type recordingSink struct {
	mu     sync.Mutex
	events []events.ProgressEvent
}

func (r *recordingSink) Publish(ev events.ProgressEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recordingSink) all() []events.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.ProgressEvent(nil), r.events...)
}

type testEnv struct {
	db      *database.Database
	layout  cache.Layout
	root    string
	user    *database.User
	coord   *Coordinator
	encoder *recordingEncoder
	videos  *fakeVideos
	sink    *recordingSink
}

func newTestEnv(t *testing.T, tweaks ...func(*Options)) *testEnv {
	t.Helper()

	dir := t.TempDir()
	db, err := database.New(context.Background(), filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("database.New failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	root := filepath.Join(dir, "lib")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	user, err := db.CreateUser(context.Background(), "alice", "pw", root, false)
	if err != nil {
		t.Fatal(err)
	}

	env := &testEnv{
		db:      db,
		layout:  cache.New(filepath.Join(dir, "cache")),
		root:    root,
		user:    user,
		encoder: &recordingEncoder{Encoder: media.NewEncoder()},
		videos:  &fakeVideos{},
		sink:    &recordingSink{},
	}
	opts := Options{
		Catalog:          db,
		Layout:           env.layout,
		Sink:             env.sink,
		ProgressInterval: time.Hour,
		MediaWorkers:     4,
		AlbumWorkers:     2,
		Encoder:          env.encoder,
		Previews:         &fakePreviews{orientation: 6},
		Exif:             fakeExif{},
		Videos:           env.videos,
		Frames:           fakeFrame,
		History:          db,
	}
	for _, tweak := range tweaks {
		tweak(&opts)
	}
	env.coord = NewCoordinator(opts)
	return env
}

func (e *testEnv) albumByPath(t *testing.T, rel string) *database.Album {
	t.Helper()
	a, err := e.db.FindAlbumByPath(context.Background(), filepath.Join(e.root, rel))
	if err != nil {
		t.Fatalf("album %s: %v", rel, err)
	}
	return a
}

func (e *testEnv) photoByPath(t *testing.T, albumRel, name string) *database.Photo {
	t.Helper()
	a := e.albumByPath(t, albumRel)
	p, err := e.db.FindPhotoByPath(context.Background(), a.ID, filepath.Join(e.root, albumRel, name))
	if err != nil {
		t.Fatalf("photo %s/%s: %v", albumRel, name, err)
	}
	return p
}
