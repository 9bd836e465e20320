package database

import "time"

// MediaKind is the stored kind of a photo row.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// URLPurpose tags a PhotoURL.
type URLPurpose string

const (
	PurposeThumbnail URLPurpose = "THUMBNAIL_URL"
	PurposeOriginal  URLPurpose = "ORIGINAL_URL"
)

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	RootPath     string    `json:"rootPath,omitempty"` // empty: not scannable
	Admin        bool      `json:"admin"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Album struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Path          string  `json:"path"`
	ParentAlbumID *string `json:"parentAlbumId,omitempty"`
	OwnerID       string  `json:"ownerId"`
}

type Photo struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Path    string    `json:"path"`
	AlbumID string    `json:"albumId"`
	Kind    MediaKind `json:"kind"`
}

type PhotoURL struct {
	PhotoID     string     `json:"photoId"`
	Purpose     URLPurpose `json:"purpose"`
	URL         string     `json:"url"`
	Width       int        `json:"width"`
	Height      int        `json:"height"`
	ContentPath string     `json:"-"`
}

type PhotoDownload struct {
	PhotoID     string `json:"photoId"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	ContentPath string `json:"-"`
}
