package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const albumColumns = "id, title, path, parent_album_id, owner_id"

func scanAlbum(row interface{ Scan(...any) error }) (*Album, error) {
	var a Album
	var parent sql.NullString
	if err := row.Scan(&a.ID, &a.Title, &a.Path, &parent, &a.OwnerID); err != nil {
		return nil, err
	}
	if parent.Valid {
		a.ParentAlbumID = &parent.String
	}
	return &a, nil
}

// FindAlbumByPath returns ErrNotFound when no album exists for the directory.
func (d *Database) FindAlbumByPath(ctx context.Context, path string) (*Album, error) {
	return d.findAlbum(ctx, "find_album_by_path", "path", path)
}

// FindAlbumByID returns ErrNotFound when no album has the id.
func (d *Database) FindAlbumByID(ctx context.Context, id string) (*Album, error) {
	return d.findAlbum(ctx, "find_album_by_id", "id", id)
}

func (d *Database) findAlbum(ctx context.Context, op, column, value string) (*Album, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery(op, start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var a *Album
	a, err = scanAlbum(d.db.QueryRowContext(ctx, "SELECT "+albumColumns+" FROM albums WHERE "+column+" = ?", value))
	if err != nil {
		err = notFound(err)
		return nil, err
	}
	return a, nil
}

// CreateAlbum inserts an album for path, titled by the directory basename.
// When an album already exists at path, the existing row is returned
// unchanged so concurrent scans agree on one id.
func (d *Database) CreateAlbum(ctx context.Context, path, ownerID string, parentAlbumID *string) (*Album, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_album", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var parent sql.NullString
	if parentAlbumID != nil {
		parent = sql.NullString{String: *parentAlbumID, Valid: true}
	}

	result, err := d.db.ExecContext(ctx, `
		INSERT INTO albums (id, title, path, parent_album_id, owner_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO NOTHING
	`, uuid.NewString(), filepath.Base(path), path, parent, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to create album %s: %w", path, err)
	}
	recordRows("create_album", result)

	var a *Album
	a, err = scanAlbum(d.db.QueryRowContext(ctx, "SELECT "+albumColumns+" FROM albums WHERE path = ?", path))
	return a, err
}

// LinkSubalbum records childID as a SUBALBUM of parentID. Linking an
// already-linked pair is a no-op.
func (d *Database) LinkSubalbum(ctx context.Context, parentID, childID string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("link_subalbum", start, err) }()

	if parentID == childID {
		err = fmt.Errorf("album %s cannot be its own parent", childID)
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx, `
		UPDATE albums SET parent_album_id = ?
		WHERE id = ? AND (parent_album_id IS NULL OR parent_album_id != ?)
	`, parentID, childID, parentID)
	if err != nil {
		return fmt.Errorf("failed to link album %s under %s: %w", childID, parentID, err)
	}
	recordRows("link_subalbum", result)
	return nil
}

// ListAlbumsByOwner returns all albums of a user ordered by path.
func (d *Database) ListAlbumsByOwner(ctx context.Context, ownerID string) ([]Album, error) {
	return d.listAlbums(ctx, "list_albums_by_owner", "SELECT "+albumColumns+" FROM albums WHERE owner_id = ? ORDER BY path", ownerID)
}

// ListAlbumsNotIn returns the albums of ownerID whose id is not in keepIDs.
func (d *Database) ListAlbumsNotIn(ctx context.Context, ownerID string, keepIDs []string) ([]Album, error) {
	keep, err := idList(keepIDs)
	if err != nil {
		return nil, err
	}
	return d.listAlbums(ctx, "list_albums_not_in", `
		SELECT `+albumColumns+` FROM albums
		WHERE owner_id = ? AND id NOT IN (SELECT value FROM json_each(?))
		ORDER BY path
	`, ownerID, keep)
}

func (d *Database) listAlbums(ctx context.Context, op, query string, args ...any) ([]Album, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery(op, start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var albums []Album
	for rows.Next() {
		var a *Album
		if a, err = scanAlbum(rows); err != nil {
			return nil, err
		}
		albums = append(albums, *a)
	}
	err = rows.Err()
	return albums, err
}

// DeleteAlbumCascade deletes an album. Its photos, their URLs, download and
// EXIF rows go with it; subalbums lose their parent link.
func (d *Database) DeleteAlbumCascade(ctx context.Context, albumID string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_album", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx, "DELETE FROM albums WHERE id = ?", albumID)
	if err != nil {
		return fmt.Errorf("failed to delete album %s: %w", albumID, err)
	}
	recordRows("delete_album", result)
	return nil
}

// idList encodes ids as a JSON array for json_each.
func idList(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
