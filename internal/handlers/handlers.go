package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"photo-library/internal/database"
	"photo-library/internal/events"
	"photo-library/internal/metrics"
)

// Catalog is the read side of the database the handlers need.
type Catalog interface {
	Ping(ctx context.Context) error
	FindPhotoByID(ctx context.Context, id string) (*database.Photo, error)
	ListPhotoURLs(ctx context.Context, photoID string) ([]database.PhotoURL, error)
	FindPhotoDownload(ctx context.Context, photoID string) (*database.PhotoDownload, error)
	GetLastScanRun(ctx context.Context) (time.Time, error)
	CatalogStats(ctx context.Context) (metrics.Stats, error)
}

// Scans starts scans and reports on them. *scanner.Coordinator implements it.
type Scans interface {
	StartAll(ctx context.Context) error
	StartUser(ctx context.Context, userID string) error
	IsRunning() bool
	Progress() (enqueued, finished int64)
	Subscribe() (<-chan events.ProgressEvent, func())
}

// Schedule reports the next periodic scan. *scanner.Scheduler implements it.
type Schedule interface {
	Next() time.Time
}

// Config wires the handlers. Schedule may be nil when periodic scans are off.
type Config struct {
	Catalog  Catalog
	Scans    Scans
	Schedule Schedule
	// ScanContext outlives requests; scans started over HTTP run on it.
	ScanContext context.Context
	// PingInterval is the keepalive period of progress websockets.
	PingInterval time.Duration
}

type Handlers struct {
	catalog      Catalog
	scans        Scans
	schedule     Schedule
	scanCtx      context.Context
	pingInterval time.Duration
	startTime    time.Time
}

func New(cfg Config) *Handlers {
	if cfg.ScanContext == nil {
		cfg.ScanContext = context.Background()
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	return &Handlers{
		catalog:      cfg.Catalog,
		scans:        cfg.Scans,
		schedule:     cfg.Schedule,
		scanCtx:      cfg.ScanContext,
		pingInterval: cfg.PingInterval,
		startTime:    time.Now(),
	}
}

// Register mounts every route on r.
func (h *Handlers) Register(r *mux.Router) {
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/scan", h.TriggerScanAll).Methods(http.MethodPost)
	api.HandleFunc("/scan/status", h.ScanStatus).Methods(http.MethodGet)
	api.HandleFunc("/scan/progress", h.ScanProgress).Methods(http.MethodGet)
	api.HandleFunc("/scan/{userID}", h.TriggerScanUser).Methods(http.MethodPost)
	api.HandleFunc("/photo/{id}/{file}", h.ServePhoto).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/download/{id}/{file}", h.ServeDownload).Methods(http.MethodGet, http.MethodHead)
}
