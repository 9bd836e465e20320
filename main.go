package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"photo-library/internal/events"
	"photo-library/internal/handlers"
	"photo-library/internal/logging"
	"photo-library/internal/metrics"
	"photo-library/internal/middleware"
	"photo-library/internal/scanner"
	"photo-library/internal/startup"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "photo-library",
		Short:        "Photo Library - scans user photo folders into a browsable catalog",
		SilenceUsage: true,
		RunE:         serve,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and scan triggers (default)",
		RunE:  serve,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "scan [userID]",
		Short: "Run one scan over every user, or only the given user, and exit",
		Args:  cobra.MaximumNArgs(1),
		RunE:  scanOnce,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := startup.GetBuildInfo()
			fmt.Printf("photo-library %s (commit: %s, built: %s, %s)\n", info.Version, info.Commit, info.BuildTime, info.GoVersion)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve(cmd *cobra.Command, args []string) error {
	startTime := time.Now()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := startup.LoadConfig()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	info := startup.GetBuildInfo()
	metrics.SetAppInfo(info.Version, info.Commit, info.GoVersion)
	metrics.InitializeMetrics()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logging.Warn("Shutdown error: %v", err)
		}
		logging.Close()
	}()

	var sched *scanner.Scheduler
	if cfg.ScanSchedule != "" {
		sched, err = scanner.NewScheduler(ctx, cfg.ScanSchedule, a.coord)
		if err != nil {
			return err
		}
		sched.Start()
	}

	var watcher *scanner.Watcher
	if cfg.WatchEnabled {
		watcher, err = scanner.NewWatcher(a.db, a.coord, cfg.WatchDebounce)
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			logging.Warn("File watching disabled: %v", err)
			watcher.Stop()
			watcher = nil
		}
	}

	scanInfo := startup.ScannerInfo{
		Schedule:      cfg.ScanSchedule,
		OnStartup:     cfg.ScanOnStartup,
		Watching:      watcher != nil,
		NATSPublisher: a.nats != nil,
	}
	if watcher != nil {
		scanInfo.WatchedDirs = watcher.Watched()
	}
	startup.LogScannerInit(scanInfo)

	if cfg.ScanOnStartup {
		if err := a.coord.StartAll(ctx); err != nil {
			logging.Warn("Startup scan not started: %v", err)
		}
	}

	collector := metrics.NewCollector(a.db, time.Minute)
	collector.Start()

	hcfg := handlers.Config{
		Catalog:     a.db,
		Scans:       a.coord,
		ScanContext: ctx,
	}
	if sched != nil {
		hcfg.Schedule = sched
	}
	router := newRouter(handlers.New(hcfg), cfg.MetricsEnabled)
	startup.LogHTTPRoutes(router, cfg.LogHealthChecks, cfg.LogMedia)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = cfg.LogHealthChecks
	loggingConfig.LogMedia = cfg.LogMedia

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     middleware.Logger(loggingConfig)(router),
		ReadTimeout: 15 * time.Second,
		// Downloads of large originals stream for longer than any fixed timeout.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if cfg.MetricsEnabled {
		metricsSrv = &http.Server{
			Addr:              ":" + cfg.MetricsPort,
			Handler:           handlers.MetricsHandler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	errCh := make(chan error, 2)
	go func() {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()
	if metricsSrv != nil {
		go func() {
			if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	startup.LogServerStarted(startup.ServerConfig{
		Port:            cfg.Port,
		MetricsPort:     cfg.MetricsPort,
		MetricsEnabled:  cfg.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	var runErr error
	select {
	case <-ctx.Done():
		startup.LogShutdownInitiated("signal")
	case runErr = <-errCh:
		startup.LogShutdownInitiated("server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if watcher != nil {
		startup.LogShutdownStep("Stopping file watcher")
		watcher.Stop()
		startup.LogShutdownStepComplete("File watcher stopped")
	}
	if sched != nil {
		startup.LogShutdownStep("Stopping scheduler")
		sched.Stop()
		startup.LogShutdownStepComplete("Scheduler stopped")
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		}
	}

	collector.Stop()
	waitForScan(shutdownCtx, a.coord)

	startup.LogShutdownComplete()
	return runErr
}

// newRouter mounts the application routes, with request metrics when enabled.
func newRouter(h *handlers.Handlers, withMetrics bool) *mux.Router {
	r := mux.NewRouter()
	if withMetrics {
		r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	}
	h.Register(r)
	return r
}

// waitForScan gives an interrupted scan time to unwind before the database closes.
func waitForScan(ctx context.Context, coord *scanner.Coordinator) {
	if !coord.IsRunning() {
		return
	}
	startup.LogShutdownStep("Waiting for running scan to stop")
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for coord.IsRunning() {
		select {
		case <-ctx.Done():
			logging.Warn("Scan still running at shutdown deadline")
			return
		case <-ticker.C:
		}
	}
	startup.LogShutdownStepComplete("Scan stopped")
}

func scanOnce(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := startup.LoadConfig()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logging.Warn("Shutdown error: %v", err)
		}
		logging.Close()
	}()

	updates, unsubscribe := a.coord.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		renderProgress(os.Stdout, updates, term.IsTerminal(int(os.Stdout.Fd())))
	}()

	if len(args) == 1 {
		err = a.coord.ScanUser(ctx, args[0])
	} else {
		err = a.coord.ScanAll(ctx)
	}
	unsubscribe()
	<-done
	return err
}

// renderProgress prints progress until updates closes or a finished event
// arrives. A terminal gets a single rewritten line.
func renderProgress(out io.Writer, updates <-chan events.ProgressEvent, tty bool) {
	for ev := range updates {
		if tty {
			fmt.Fprintf(out, "\rScanning... %5.1f%%", ev.Progress)
		} else if !ev.Finished {
			fmt.Fprintf(out, "progress %.1f%%\n", ev.Progress)
		}
		if ev.Finished {
			if tty {
				fmt.Fprintln(out)
			}
			if ev.Success {
				fmt.Fprintln(out, "Scan finished")
			} else {
				fmt.Fprintf(out, "Scan failed: %s\n", ev.ErrorMessage)
			}
			return
		}
	}
}
