// Package handlers implements the HTTP surface of the photo library.
//
// It includes handlers for:
//   - Health, liveness and readiness probes and build information
//   - Starting scans of every user or a single user
//   - Scan status and a websocket stream of progress events
//   - Serving thumbnails, displayable originals and source downloads
//     recorded by the scanner
package handlers
