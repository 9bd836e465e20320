package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"photo-library/internal/database"
	"photo-library/internal/logging"
	"photo-library/internal/scanner"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ScanStatusResponse is the body of GET /api/scan/status.
type ScanStatusResponse struct {
	Running   bool     `json:"running"`
	Enqueued  int64    `json:"enqueued"`
	Finished  int64    `json:"finished"`
	Progress  *float64 `json:"progress,omitempty"`
	LastScan  string   `json:"lastScan,omitempty"`
	NextScan  string   `json:"nextScan,omitempty"`
	Scheduled bool     `json:"scheduled"`
}

// TriggerScanAll starts a scan of every user: 202 when started, 409 when a
// scan is already running.
func (h *Handlers) TriggerScanAll(w http.ResponseWriter, _ *http.Request) {
	h.writeScanResult(w, h.scans.StartAll(h.scanCtx))
}

// TriggerScanUser starts a scan of one user. Unknown users get 404 and users
// without a root path 422.
func (h *Handlers) TriggerScanUser(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]
	h.writeScanResult(w, h.scans.StartUser(h.scanCtx, userID))
}

func (h *Handlers) writeScanResult(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONStatus(w, http.StatusAccepted, map[string]string{"status": "started"})
	case errors.Is(err, scanner.ErrScanRunning):
		writeJSONStatus(w, http.StatusConflict, map[string]string{"status": "already_running"})
	case errors.Is(err, scanner.ErrUserNotFound):
		writeJSONError(w, "user not found", http.StatusNotFound)
	case errors.Is(err, scanner.ErrNoRootPath):
		writeJSONError(w, "user has no root path", http.StatusUnprocessableEntity)
	default:
		logging.Error("Could not start scan: %v", err)
		writeJSONError(w, "could not start scan", http.StatusInternalServerError)
	}
}

// ScanStatus reports the current or last run and the schedule.
func (h *Handlers) ScanStatus(w http.ResponseWriter, r *http.Request) {
	enqueued, finished := h.scans.Progress()
	resp := ScanStatusResponse{
		Running:  h.scans.IsRunning(),
		Enqueued: enqueued,
		Finished: finished,
	}
	if enqueued > 0 {
		p := float64(finished) * 100 / float64(enqueued)
		resp.Progress = &p
	}

	last, err := h.catalog.GetLastScanRun(r.Context())
	switch {
	case err == nil:
		resp.LastScan = last.Format(time.RFC3339)
	case !errors.Is(err, database.ErrNotFound):
		logging.Warn("Could not read last scan time: %v", err)
	}

	if h.schedule != nil {
		resp.Scheduled = true
		if next := h.schedule.Next(); !next.IsZero() {
			resp.NextScan = next.UTC().Format(time.RFC3339)
		}
	}

	w.Header().Set("Cache-Control", "no-cache")
	writeJSONStatus(w, http.StatusOK, resp)
}

// ScanProgress upgrades to a websocket and streams progress events as JSON
// until the client goes away.
func (h *Handlers) ScanProgress(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		logging.Debug("Progress websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events, cancel := h.scans.Subscribe()
	defer cancel()

	// Reads only serve to notice the close; clients send nothing.
	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				readErr <- err
				return
			}
		}
	}()

	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()

	for {
		select {
		case ev := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				logging.Debug("Progress websocket write failed: %v", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case err := <-readErr:
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Debug("Progress websocket closed: %v", err)
			}
			return
		case <-h.scanCtx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(writeWait))
			return
		}
	}
}
