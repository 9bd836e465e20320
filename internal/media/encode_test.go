package media

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

func TestEncoderThumbnail(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name         string
		width        int
		height       int
		wantW, wantH int
	}{
		{name: "landscape shrinks to width", width: 1440, height: 960, wantW: 720, wantH: 480},
		{name: "wide shrinks to width", width: 1440, height: 480, wantW: 720, wantH: 240},
		{name: "portrait shrinks to height", width: 960, height: 1440, wantW: 320, wantH: 480},
		{name: "small image is not upscaled", width: 200, height: 100, wantW: 200, wantH: 100},
	}

	enc := NewEncoder()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := filepath.Join(tmpDir, tt.name+".jpg")
			dst := filepath.Join(tmpDir, tt.name+"-thumb.jpg")
			createTestImage(t, src, tt.width, tt.height, "jpeg")

			dims, err := enc.Thumbnail(context.Background(), src, dst, 720, 480, 70)
			if err != nil {
				t.Fatalf("Thumbnail() error = %v", err)
			}
			if dims.Width != tt.wantW || dims.Height != tt.wantH {
				t.Errorf("Thumbnail() = %dx%d, want %dx%d", dims.Width, dims.Height, tt.wantW, tt.wantH)
			}

			onDisk, err := GetImageDimensions(dst)
			if err != nil {
				t.Fatalf("Failed to read thumbnail: %v", err)
			}
			if onDisk != dims {
				t.Errorf("On-disk thumbnail %+v differs from reported %+v", onDisk, dims)
			}
		})
	}
}

func TestEncoderThumbnailLeavesNoTempFiles(t *testing.T) {
	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "src.png")
	createTestImage(t, src, 50, 50, "png")

	outDir := filepath.Join(tmpDir, "out")
	if err := os.Mkdir(outDir, 0o755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}

	if _, err := NewEncoder().Thumbnail(context.Background(), src, filepath.Join(outDir, "thumbnail.jpg"), 720, 480, 70); err != nil {
		t.Fatalf("Thumbnail() error = %v", err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("Failed to list dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "thumbnail.jpg" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("Expected only thumbnail.jpg, got %v", names)
	}
}

func TestEncoderThumbnailMissingSource(t *testing.T) {
	tmpDir := t.TempDir()
	_, err := NewEncoder().Thumbnail(context.Background(), filepath.Join(tmpDir, "missing.jpg"), filepath.Join(tmpDir, "t.jpg"), 720, 480, 70)
	if err == nil {
		t.Error("Expected error for missing source")
	}
}

func TestReencodeJPEGAppliesRotation(t *testing.T) {
	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "extracted.png")
	createTestImage(t, src, 300, 200, "png")

	tests := []struct {
		rotation     int
		wantW, wantH int
	}{
		{rotation: 0, wantW: 300, wantH: 200},
		{rotation: 90, wantW: 200, wantH: 300},
		{rotation: -90, wantW: 200, wantH: 300},
		{rotation: 180, wantW: 300, wantH: 200},
	}

	enc := NewEncoder()
	for _, tt := range tests {
		dst := filepath.Join(tmpDir, "out.jpg")
		if err := enc.ReencodeJPEG(src, dst, tt.rotation, 80); err != nil {
			t.Fatalf("ReencodeJPEG(%d) error = %v", tt.rotation, err)
		}
		dims, err := GetImageDimensions(dst)
		if err != nil {
			t.Fatalf("Failed to read output: %v", err)
		}
		if dims.Width != tt.wantW || dims.Height != tt.wantH {
			t.Errorf("rotation %d: got %dx%d, want %dx%d", tt.rotation, dims.Width, dims.Height, tt.wantW, tt.wantH)
		}
	}
}

func TestRotateDirection(t *testing.T) {
	// 2x1 image: red on the left, blue on the right.
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	red := color.NRGBA{R: 255, A: 255}
	blue := color.NRGBA{B: 255, A: 255}
	img.Set(0, 0, red)
	img.Set(1, 0, blue)

	// Clockwise: left edge moves to the top.
	cw := imaging.Clone(Rotate(img, 90))
	if got := cw.NRGBAAt(0, 0); got != red {
		t.Errorf("90 clockwise: top pixel = %v, want red", got)
	}
	if got := cw.NRGBAAt(0, 1); got != blue {
		t.Errorf("90 clockwise: bottom pixel = %v, want blue", got)
	}

	ccw := imaging.Clone(Rotate(img, -90))
	if got := ccw.NRGBAAt(0, 0); got != blue {
		t.Errorf("-90: top pixel = %v, want blue", got)
	}

	flipped := imaging.Clone(Rotate(img, 180))
	if got := flipped.NRGBAAt(0, 0); got != blue {
		t.Errorf("180: left pixel = %v, want blue", got)
	}

	if same := Rotate(img, 45); same != image.Image(img) {
		t.Error("Unsupported angle should return the image unchanged")
	}
}
