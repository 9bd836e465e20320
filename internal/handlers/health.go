package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"photo-library/internal/logging"
	"photo-library/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

const probeTimeout = 2 * time.Second

// HealthResponse contains the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Scanning bool   `json:"scanning"`
	LastScan string `json:"lastScan,omitempty"`
	Error    string `json:"error,omitempty"`

	Users  int `json:"users"`
	Albums int `json:"albums"`
	Images int `json:"images"`
	Videos int `json:"videos"`

	GoVersion    string `json:"goVersion"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck reports catalog reachability, scan state and catalog totals.
// It answers 503 when the catalog cannot be reached.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:       statusHealthy,
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		Scanning:     h.scans.IsRunning(),
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	stats, err := h.catalog.CatalogStats(ctx)
	if err != nil {
		logging.Warn("Health check: catalog unavailable: %v", err)
		resp.Status = statusDegraded
		resp.Error = "catalog unavailable"
		writeJSONStatus(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.Users, resp.Albums, resp.Images, resp.Videos = stats.Users, stats.Albums, stats.Images, stats.Videos

	if last, err := h.catalog.GetLastScanRun(ctx); err == nil {
		resp.LastScan = last.Format(time.RFC3339)
	}

	writeJSONStatus(w, http.StatusOK, resp)
}

// LivenessCheck answers 200 while the process serves requests.
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}

// ReadinessCheck answers 200 only when the catalog database responds.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	if err := h.catalog.Ping(ctx); err != nil {
		logging.Warn("Readiness check failed: %v", err)
		writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSONStatus(w, http.StatusOK, map[string]string{"status": "ready"})
}
