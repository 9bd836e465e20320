package streaming

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"photo-library/internal/logging"
)

var (
	// ErrWriteTimeout means the client accepted data too slowly, or the
	// response ran past Config.MaxDuration.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone means the request context ended before the body was sent.
	ErrClientGone = errors.New("client disconnected")
)

const progressStep = 1 << 20

// Config bounds how long a content response may take.
type Config struct {
	// WriteTimeout bounds each write to the connection.
	WriteTimeout time.Duration
	// MaxDuration bounds the whole response (0 = unlimited).
	MaxDuration time.Duration
	// OnProgress is called each time another MiB has been written.
	OnProgress func(bytesWritten int64, elapsed time.Duration)
}

// DefaultConfig returns a 30 second per-write timeout and no total limit.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 30 * time.Second,
	}
}

// Writer is an http.ResponseWriter that puts a deadline on every write.
// The server runs without a global WriteTimeout so large originals can
// stream; Writer keeps a stalled client from holding the connection.
type Writer struct {
	http.ResponseWriter
	ctx          context.Context
	rc           *http.ResponseController
	config       Config
	start        time.Time
	bytesWritten int64
	deadlines    bool
	err          error
}

// NewWriter wraps w. ctx is normally the request context.
func NewWriter(ctx context.Context, w http.ResponseWriter, config Config) *Writer {
	return &Writer{
		ResponseWriter: w,
		ctx:            ctx,
		rc:             http.NewResponseController(w),
		config:         config,
		start:          time.Now(),
		deadlines:      config.WriteTimeout > 0,
	}
}

func (sw *Writer) Write(p []byte) (int, error) {
	if sw.err != nil {
		return 0, sw.err
	}
	if sw.ctx.Err() != nil {
		sw.err = ErrClientGone
		return 0, sw.err
	}
	if sw.config.MaxDuration > 0 && time.Since(sw.start) > sw.config.MaxDuration {
		sw.err = ErrWriteTimeout
		return 0, sw.err
	}

	sw.extendDeadline()

	before := sw.bytesWritten
	n, err := sw.ResponseWriter.Write(p)
	sw.bytesWritten += int64(n)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			err = ErrWriteTimeout
		}
		sw.err = err
		return n, err
	}

	if sw.config.OnProgress != nil && before/progressStep != sw.bytesWritten/progressStep {
		sw.config.OnProgress(sw.bytesWritten, time.Since(sw.start))
	}
	return n, nil
}

func (sw *Writer) extendDeadline() {
	if !sw.deadlines {
		return
	}
	if err := sw.rc.SetWriteDeadline(time.Now().Add(sw.config.WriteTimeout)); err != nil {
		// Recorders and some wrappers cannot set deadlines.
		logging.Debug("Write deadlines unavailable: %v", err)
		sw.deadlines = false
	}
}

// Done clears the write deadline so the next request on a kept-alive
// connection does not inherit it.
func (sw *Writer) Done() {
	if !sw.deadlines {
		return
	}
	if err := sw.rc.SetWriteDeadline(time.Time{}); err != nil {
		logging.Debug("Clearing write deadline failed: %v", err)
	}
}

// Unwrap lets http.ResponseController reach the connection.
func (sw *Writer) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

// Stats returns the bytes written so far and the time since NewWriter.
func (sw *Writer) Stats() (bytesWritten int64, elapsed time.Duration) {
	return sw.bytesWritten, time.Since(sw.start)
}

// Err returns the error that stopped the response, if any.
func (sw *Writer) Err() error {
	return sw.err
}

// ServeContent is http.ServeContent behind a Writer. It returns the body
// bytes written and why the response was cut short, if it was.
func ServeContent(w http.ResponseWriter, r *http.Request, name string, modTime time.Time, content io.ReadSeeker, config Config) (int64, error) {
	sw := NewWriter(r.Context(), w, config)
	defer sw.Done()

	http.ServeContent(sw, r, name, modTime, content)

	n, elapsed := sw.Stats()
	logging.Debug("Served %s: %d bytes in %v", name, n, elapsed)
	return n, sw.Err()
}
