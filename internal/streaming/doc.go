/*
Package streaming bounds how long a photo or download response may stall.

The HTTP server is started without a WriteTimeout because originals can be
large. ServeContent wraps http.ServeContent in a Writer that sets a fresh
connection write deadline before every write, so a client that stops
reading is dropped after Config.WriteTimeout instead of pinning the
connection:

	n, err := streaming.ServeContent(w, r, name, info.ModTime(), f, streaming.DefaultConfig())
	switch {
	case errors.Is(err, streaming.ErrWriteTimeout):
		// slow client
	case errors.Is(err, streaming.ErrClientGone):
		// client went away
	}

Range requests and conditional headers are handled by http.ServeContent
unchanged. Deadlines need a writer that http.ResponseController can
unwrap to the connection; on anything else (httptest.ResponseRecorder,
for instance) Writer still enforces Config.MaxDuration and the request
context, only the per-write timeout is skipped.
*/
package streaming
