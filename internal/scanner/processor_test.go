package scanner

import "testing"

func TestRotationForOrientation(t *testing.T) {
	tests := []struct {
		orientation int
		want        int
	}{
		{0, 0},
		{1, 0},
		{2, 0},
		{3, 180},
		{4, 0},
		{5, 0},
		{6, 90},
		{7, 0},
		{8, -90},
		{42, 0},
	}

	for _, tt := range tests {
		if got := RotationForOrientation(tt.orientation); got != tt.want {
			t.Errorf("RotationForOrientation(%d) = %d, want %d", tt.orientation, got, tt.want)
		}
	}
}

func TestServedURLs(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"thumbnail", PhotoURL("p1", "thumbnail.jpg"), "/api/photo/p1/thumbnail.jpg"},
		{"escaped", PhotoURL("p1", "my photo#1.jpg"), "/api/photo/p1/my%20photo%231.jpg"},
		{"download", DownloadURL("p1", "IMG_0001.CR2"), "/api/download/p1/IMG_0001.CR2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
