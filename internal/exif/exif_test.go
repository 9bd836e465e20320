package exif

import (
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseISO(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  *int
	}{
		{name: "float from JSON", value: float64(400), want: intPtr(400)},
		{name: "int", value: 100, want: intPtr(100)},
		{name: "uint16 from tiff", value: uint16(3200), want: intPtr(3200)},
		{name: "numeric string", value: "800", want: intPtr(800)},
		{name: "padded string", value: " 1600 ", want: intPtr(1600)},
		{name: "malformed string", value: "100, 0", want: nil},
		{name: "empty string", value: "", want: nil},
		{name: "missing", value: nil, want: nil},
		{name: "unexpected type", value: []string{"100"}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseISO(tt.value)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("ParseISO(%v) = %d, want unset", tt.value, *got)
			case tt.want != nil && got == nil:
				t.Errorf("ParseISO(%v) = unset, want %d", tt.value, *tt.want)
			case tt.want != nil && *got != *tt.want:
				t.Errorf("ParseISO(%v) = %d, want %d", tt.value, *got, *tt.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2023, 7, 14, 18, 30, 5, 0, time.UTC)

	tests := []struct {
		in   string
		want *time.Time
	}{
		{in: "2023:07:14 18:30:05", want: &want},
		{in: "2023:07:14 18:30:05.123+02:00", want: &want},
		{in: "0000:00:00 00:00:00", want: nil},
		{in: "yesterday", want: nil},
		{in: "", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := parseDate(tt.in)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("parseDate(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if got != nil && !got.Equal(*tt.want) {
				t.Errorf("parseDate(%q) = %v, want %v", tt.in, *got, *tt.want)
			}
		})
	}
}

func TestOrientationFromText(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"Horizontal (normal)", 1},
		{"Rotate 180", 3},
		{"Rotate 90 CW", 6},
		{"Rotate 270 CW", 8},
		{"Mirror horizontal", 2},
		{"6", 6},
		{"Unknown (0)", 0},
		{"", 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := orientationFromText(tt.in); got != tt.want {
				t.Errorf("orientationFromText(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestLeadingFloat(t *testing.T) {
	tests := []struct {
		in   interface{}
		want *float64
	}{
		{in: 50.0, want: floatPtr(50)},
		{in: "35.0 mm", want: floatPtr(35)},
		{in: "24.0 mm (35 mm equivalent: 38.0 mm)", want: floatPtr(24)},
		{in: "mm", want: nil},
		{in: nil, want: nil},
	}

	for _, tt := range tests {
		got := leadingFloat(tt.in)
		if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
			t.Errorf("leadingFloat(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatExposure(t *testing.T) {
	tests := []struct {
		num, den int64
		want     string
	}{
		{1, 200, "1/200"},
		{10, 2000, "1/200"},
		{3, 1, "3"},
		{5, 2, "2.5"},
		{0, 1, "0"},
	}

	for _, tt := range tests {
		if got := formatExposure(tt.num, tt.den); got != tt.want {
			t.Errorf("formatExposure(%d, %d) = %q, want %q", tt.num, tt.den, got, tt.want)
		}
	}
}

func TestFlashDescription(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0x0, "No Flash"},
		{0x1, "Fired"},
		{0x41, "Fired, Red-eye reduction"},
		{0x10, "Off, Did not fire"},
		{0x20, "No flash function"},
	}

	for _, tt := range tests {
		if got := flashDescription(tt.in); got != tt.want {
			t.Errorf("flashDescription(%#x) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRecordEmpty(t *testing.T) {
	if !(&Record{FileSize: 10}).Empty() {
		t.Error("Record with only a file size should be empty")
	}
	if (&Record{Camera: "X100V"}).Empty() {
		t.Error("Record with a camera should not be empty")
	}
}

func TestGoexifWithoutExif(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.jpg")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	if err := jpeg.Encode(f, image.NewGray(image.Rect(0, 0, 8, 8)), nil); err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}
	f.Close()

	g := NewGoexif()

	rec, err := g.Parse(path)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if rec != nil {
		t.Errorf("Parse() = %+v, want nil for a file without EXIF", rec)
	}

	orientation, err := g.Orientation(path)
	if err != nil || orientation != 0 {
		t.Errorf("Orientation() = (%d, %v), want (0, nil)", orientation, err)
	}

	if err := g.ExtractPreview(path, filepath.Join(t.TempDir(), "out.jpg")); err == nil {
		t.Error("ExtractPreview() should fail without EXIF")
	}
}

func TestGoexifMissingFile(t *testing.T) {
	if _, err := NewGoexif().Parse(filepath.Join(t.TempDir(), "missing.jpg")); err == nil {
		t.Error("Parse() should fail for a missing file")
	}
}

func intPtr(n int) *int {
	return &n
}
