package handlers

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"

	"photo-library/internal/database"
	"photo-library/internal/filesystem"
	"photo-library/internal/logging"
	"photo-library/internal/metrics"
	"photo-library/internal/scanner"
	"photo-library/internal/streaming"
)

// ServePhoto serves one of a photo's recorded URLs, the thumbnail or the
// displayable original, from the content path stored with it.
func (h *Handlers) ServePhoto(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, file := vars["id"], vars["file"]

	if _, err := h.catalog.FindPhotoByID(r.Context(), id); err != nil {
		h.catalogError(w, "photo", id, err)
		return
	}
	urls, err := h.catalog.ListPhotoURLs(r.Context(), id)
	if err != nil {
		h.catalogError(w, "photo urls", id, err)
		return
	}

	want := scanner.PhotoURL(id, file)
	for _, u := range urls {
		if u.URL == want {
			// Rebuilt in place on rescan, so clients must revalidate.
			w.Header().Set("Cache-Control", "private, max-age=3600, must-revalidate")
			serveContent(w, r, u.ContentPath, file, "photo")
			return
		}
	}
	http.Error(w, "Not found", http.StatusNotFound)
}

// ServeDownload serves the unmodified source file of a photo.
func (h *Handlers) ServeDownload(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, file := vars["id"], vars["file"]

	dl, err := h.catalog.FindPhotoDownload(r.Context(), id)
	if err != nil {
		h.catalogError(w, "download", id, err)
		return
	}
	if dl.URL != scanner.DownloadURL(id, file) {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+sanitizeFilename(dl.Title)+`"`)
	serveContent(w, r, dl.ContentPath, dl.Title, "download")
}

func (h *Handlers) catalogError(w http.ResponseWriter, what, id string, err error) {
	if errors.Is(err, database.ErrNotFound) {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	logging.Error("Lookup of %s %s failed: %v", what, id, err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

// serveContent streams path with range support. name only picks the
// Content-Type; kind labels the byte counters.
func serveContent(w http.ResponseWriter, r *http.Request, path, name, kind string) {
	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		if os.IsNotExist(err) {
			// The scanner will rebuild a missing cache file on its next run.
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		logging.Error("Open %s failed: %v", path, err)
		http.Error(w, "Failed to access file", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.Error(w, "Failed to access file", http.StatusInternalServerError)
		return
	}

	n, err := streaming.ServeContent(w, r, filepath.Base(name), info.ModTime(), f, streaming.DefaultConfig())
	metrics.HTTPBytesServedTotal.WithLabelValues(kind).Add(float64(n))
	switch {
	case errors.Is(err, streaming.ErrWriteTimeout):
		metrics.HTTPStreamAbortsTotal.WithLabelValues("timeout").Inc()
		logging.Warn("Dropped slow client %s after %d bytes of %s", r.RemoteAddr, n, path)
	case errors.Is(err, streaming.ErrClientGone):
		metrics.HTTPStreamAbortsTotal.WithLabelValues("client_gone").Inc()
		logging.Debug("Client left during %s after %d bytes", path, n)
	case err != nil:
		logging.Debug("Serving %s stopped: %v", path, err)
	}
}

func sanitizeFilename(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if r == '"' || r == '\\' || r < 0x20 {
			r = '_'
		}
		out = append(out, r)
	}
	return string(out)
}
