package scanner

import (
	"context"

	"photo-library/internal/database"
	"photo-library/internal/exif"
)

// Catalog is the persistent store the scanner reconciles against.
// *database.Database implements it.
type Catalog interface {
	FindUserByID(ctx context.Context, id string) (*database.User, error)
	ListUsersWithRootPath(ctx context.Context) ([]database.User, error)

	FindAlbumByPath(ctx context.Context, path string) (*database.Album, error)
	CreateAlbum(ctx context.Context, path, ownerID string, parentAlbumID *string) (*database.Album, error)
	LinkSubalbum(ctx context.Context, parentID, childID string) error
	ListAlbumsNotIn(ctx context.Context, ownerID string, keepIDs []string) ([]database.Album, error)
	DeleteAlbumCascade(ctx context.Context, albumID string) error

	FindPhotoByPath(ctx context.Context, albumID, path string) (*database.Photo, error)
	FindPhotoByID(ctx context.Context, id string) (*database.Photo, error)
	CreatePhoto(ctx context.Context, albumID, path string, kind database.MediaKind) (*database.Photo, error)
	DeletePhotosNotIn(ctx context.Context, albumID string, keepIDs []string) ([]string, error)

	CountPhotoURLs(ctx context.Context, photoID string) (int, error)
	DeletePhotoURLs(ctx context.Context, photoID string) error
	ReplacePhotoURLs(ctx context.Context, photoID string, urls []database.PhotoURL) error
	CreatePhotoDownload(ctx context.Context, dl database.PhotoDownload) error
	HasExifRecord(ctx context.Context, photoID string) (bool, error)
	CreateExifRecord(ctx context.Context, photoID string, rec *exif.Record) error
}

var _ Catalog = (*database.Database)(nil)
