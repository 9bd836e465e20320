package database

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"photo-library/internal/exif"
)

const photoColumns = "id, title, path, album_id, kind"

func scanPhoto(row interface{ Scan(...any) error }) (*Photo, error) {
	var p Photo
	if err := row.Scan(&p.ID, &p.Title, &p.Path, &p.AlbumID, &p.Kind); err != nil {
		return nil, err
	}
	return &p, nil
}

// FindPhotoByPath returns the photo at path inside albumID, or ErrNotFound.
func (d *Database) FindPhotoByPath(ctx context.Context, albumID, path string) (*Photo, error) {
	return d.findPhoto(ctx, "find_photo_by_path", "SELECT "+photoColumns+" FROM photos WHERE album_id = ? AND path = ?", albumID, path)
}

// FindPhotoByID returns ErrNotFound when no photo has the id.
func (d *Database) FindPhotoByID(ctx context.Context, id string) (*Photo, error) {
	return d.findPhoto(ctx, "find_photo_by_id", "SELECT "+photoColumns+" FROM photos WHERE id = ?", id)
}

func (d *Database) findPhoto(ctx context.Context, op, query string, args ...any) (*Photo, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery(op, start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var p *Photo
	p, err = scanPhoto(d.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		err = notFound(err)
		return nil, err
	}
	return p, nil
}

// CreatePhoto inserts the photo at path in albumID. An existing row for the
// same (album, path) wins and is returned.
func (d *Database) CreatePhoto(ctx context.Context, albumID, path string, kind MediaKind) (*Photo, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_photo", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx, `
		INSERT INTO photos (id, title, path, album_id, kind)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(album_id, path) DO NOTHING
	`, uuid.NewString(), filepath.Base(path), path, albumID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to create photo %s: %w", path, err)
	}
	recordRows("create_photo", result)

	var p *Photo
	p, err = scanPhoto(d.db.QueryRowContext(ctx, "SELECT "+photoColumns+" FROM photos WHERE album_id = ? AND path = ?", albumID, path))
	return p, err
}

// DeletePhotosNotIn removes the photos of albumID whose id is not in
// keepIDs and returns the removed ids.
func (d *Database) DeletePhotosNotIn(ctx context.Context, albumID string, keepIDs []string) ([]string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_photos_not_in", start, err) }()

	keep, err := idList(keepIDs)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var removed []string
	err = d.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id FROM photos
			WHERE album_id = ? AND id NOT IN (SELECT value FROM json_each(?))
		`, albumID, keep)
		if err != nil {
			return err
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			removed = append(removed, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, id := range removed {
			if _, err := tx.ExecContext(ctx, "DELETE FROM photos WHERE id = ?", id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete stale photos of album %s: %w", albumID, err)
	}
	return removed, nil
}

// CountPhotoURLs returns how many URL rows the photo has.
func (d *Database) CountPhotoURLs(ctx context.Context, photoID string) (int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("count_photo_urls", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var n int
	err = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM photo_urls WHERE photo_id = ?", photoID).Scan(&n)
	return n, err
}

// DeletePhotoURLs removes all URL rows of a photo.
func (d *Database) DeletePhotoURLs(ctx context.Context, photoID string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_photo_urls", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx, "DELETE FROM photo_urls WHERE photo_id = ?", photoID)
	if err != nil {
		return err
	}
	recordRows("delete_photo_urls", result)
	return nil
}

// ReplacePhotoURLs swaps the URL rows of a photo for urls in one transaction.
func (d *Database) ReplacePhotoURLs(ctx context.Context, photoID string, urls []PhotoURL) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("replace_photo_urls", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM photo_urls WHERE photo_id = ?", photoID); err != nil {
			return err
		}
		for _, u := range urls {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO photo_urls (photo_id, purpose, url, width, height, content_path)
				VALUES (?, ?, ?, ?, ?, ?)
			`, photoID, u.Purpose, u.URL, u.Width, u.Height, u.ContentPath); err != nil {
				return fmt.Errorf("insert %s: %w", u.Purpose, err)
			}
		}
		return nil
	})
	return err
}

// ListPhotoURLs returns the URL rows of a photo ordered by purpose.
func (d *Database) ListPhotoURLs(ctx context.Context, photoID string) ([]PhotoURL, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_photo_urls", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT photo_id, purpose, url, width, height, content_path
		FROM photo_urls WHERE photo_id = ? ORDER BY purpose
	`, photoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var urls []PhotoURL
	for rows.Next() {
		var u PhotoURL
		if err = rows.Scan(&u.PhotoID, &u.Purpose, &u.URL, &u.Width, &u.Height, &u.ContentPath); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	err = rows.Err()
	return urls, err
}

// CreatePhotoDownload sets the download reference of a photo, replacing any
// previous one.
func (d *Database) CreatePhotoDownload(ctx context.Context, dl PhotoDownload) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_photo_download", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO photo_downloads (photo_id, title, url, content_path)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(photo_id) DO UPDATE SET
			title = excluded.title,
			url = excluded.url,
			content_path = excluded.content_path
	`, dl.PhotoID, dl.Title, dl.URL, dl.ContentPath)
	return err
}

// FindPhotoDownload returns ErrNotFound when the photo has no download yet.
func (d *Database) FindPhotoDownload(ctx context.Context, photoID string) (*PhotoDownload, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("find_photo_download", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var dl PhotoDownload
	err = d.db.QueryRowContext(ctx,
		"SELECT photo_id, title, url, content_path FROM photo_downloads WHERE photo_id = ?", photoID,
	).Scan(&dl.PhotoID, &dl.Title, &dl.URL, &dl.ContentPath)
	if err != nil {
		err = notFound(err)
		return nil, err
	}
	return &dl, nil
}

// HasExifRecord reports whether the photo already has EXIF stored.
func (d *Database) HasExifRecord(ctx context.Context, photoID string) (bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("has_exif", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var exists bool
	err = d.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM photo_exif WHERE photo_id = ?)", photoID).Scan(&exists)
	return exists, err
}

// CreateExifRecord stores rec for the photo. EXIF is immutable once
// written, so a second call keeps the first record.
func (d *Database) CreateExifRecord(ctx context.Context, photoID string, rec *exif.Record) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_exif", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var dateShot sql.NullInt64
	if rec.DateShot != nil {
		dateShot = sql.NullInt64{Int64: rec.DateShot.Unix(), Valid: true}
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO photo_exif (photo_id, camera, maker, lens, date_shot, file_size, exposure, aperture, iso, focal_length, flash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(photo_id) DO NOTHING
	`, photoID, rec.Camera, rec.Maker, rec.Lens, dateShot, rec.FileSize, rec.Exposure,
		rec.Aperture, rec.ISO, rec.FocalLength, rec.Flash)
	return err
}

// FindExifRecord returns ErrNotFound when the photo has no EXIF.
func (d *Database) FindExifRecord(ctx context.Context, photoID string) (*exif.Record, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("find_exif", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rec exif.Record
	var camera, maker, lens, exposure, flash sql.NullString
	var dateShot, fileSize, iso sql.NullInt64
	var aperture, focal sql.NullFloat64

	err = d.db.QueryRowContext(ctx, `
		SELECT camera, maker, lens, date_shot, file_size, exposure, aperture, iso, focal_length, flash
		FROM photo_exif WHERE photo_id = ?
	`, photoID).Scan(&camera, &maker, &lens, &dateShot, &fileSize, &exposure, &aperture, &iso, &focal, &flash)
	if err != nil {
		err = notFound(err)
		return nil, err
	}

	rec.Camera, rec.Maker, rec.Lens = camera.String, maker.String, lens.String
	rec.Exposure, rec.Flash = exposure.String, flash.String
	rec.FileSize = fileSize.Int64
	if dateShot.Valid {
		t := time.Unix(dateShot.Int64, 0)
		rec.DateShot = &t
	}
	if aperture.Valid {
		rec.Aperture = &aperture.Float64
	}
	if iso.Valid {
		n := int(iso.Int64)
		rec.ISO = &n
	}
	if focal.Valid {
		rec.FocalLength = &focal.Float64
	}
	return &rec, nil
}
