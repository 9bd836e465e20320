// Package database is the SQLite catalog behind the photo library scanner.
//
// It stores users (and their library root), albums with their SUBALBUM
// hierarchy, photos, the two served URLs and the download reference of each
// photo, and at most one EXIF record per photo. Ids are uuids generated here.
//
// Foreign keys are enabled so deleting an album cascades to its photos and
// their derived rows. Creates are ON CONFLICT upserts, which lets concurrent
// scans race on the same path without producing duplicates.
package database
