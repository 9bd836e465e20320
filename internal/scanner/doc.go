// Package scanner turns a directory tree of photos and videos into catalog
// rows and cached derived files.
//
// A scan is layered. Coordinator guarantees a single run at a time and
// publishes progress. TreeWalker recurses through one user's root,
// creating and linking albums for every directory that holds media
// somewhere below it. AlbumScanner lists one album directory and reconciles
// its photos. Processor rebuilds the thumbnail, URLs, download reference and
// EXIF of a single photo when they are missing.
//
// Album scans run on an errgroup bounded by the album worker count; media
// processing runs on a separate semaphore pool. Processing never submits
// back to either pool.
//
// Scheduler and Watcher trigger scans from a cron schedule and from
// filesystem events.
package scanner
