package startup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"photo-library/internal/logging"
)

// Config holds all application configuration
type Config struct {
	LibraryDir  string
	CacheDir    string
	DatabaseDir string
	Port        string
	MetricsPort string

	MetricsEnabled  bool
	LogHealthChecks bool
	LogMedia        bool

	// Scanning
	ScanSchedule     string // cron spec, empty disables periodic scans
	ScanOnStartup    bool
	WatchEnabled     bool
	WatchDebounce    time.Duration
	MediaWorkers     int // 0 picks a CPU based default
	AlbumWorkers     int
	ProgressInterval time.Duration

	// Optional integrations
	NATSURL         string
	NATSSubject     string
	ExiftoolEnabled bool
	VipsEnabled     bool

	// Log file
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int

	// Derived
	DatabasePath string
}

// LoadConfig reads .env (if present) and the environment, logs the result
// and prepares the database and cache directories.
func LoadConfig() (*Config, error) {
	loadDotEnv(".env")

	printBanner()
	logSystemInfo()

	cfg, err := configFromEnv()
	if err != nil {
		return nil, err
	}
	logConfig(cfg)

	if err := prepareDirectories(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv loads path without overriding variables already set.
func loadDotEnv(path string) {
	err := godotenv.Load(path)
	switch {
	case err == nil:
		logging.Info("Loaded environment from %s", path)
	case errors.Is(err, fs.ErrNotExist):
	default:
		logging.Warn("Could not read %s: %v", path, err)
	}
}

func configFromEnv() (*Config, error) {
	cfg := &Config{
		LibraryDir:       getEnv("LIBRARY_DIR", "/photos"),
		CacheDir:         getEnv("CACHE_DIR", "/cache"),
		DatabaseDir:      getEnv("DATABASE_DIR", "/database"),
		Port:             getEnv("PORT", "8080"),
		MetricsPort:      getEnv("METRICS_PORT", "9090"),
		MetricsEnabled:   getEnvBool("METRICS_ENABLED", true),
		LogHealthChecks:  getEnvBool("LOG_HEALTH_CHECKS", true),
		LogMedia:         getEnvBool("LOG_MEDIA_REQUESTS", false),
		ScanSchedule:     getEnv("SCAN_SCHEDULE", ""),
		ScanOnStartup:    getEnvBool("SCAN_ON_STARTUP", true),
		WatchEnabled:     getEnvBool("WATCH_ENABLED", false),
		WatchDebounce:    getEnvDuration("WATCH_DEBOUNCE", 10*time.Second),
		MediaWorkers:     getEnvInt("SCAN_MEDIA_WORKERS", 0),
		AlbumWorkers:     getEnvInt("SCAN_ALBUM_WORKERS", 0),
		ProgressInterval: getEnvDuration("PROGRESS_INTERVAL", 250*time.Millisecond),
		NATSURL:          getEnv("NATS_URL", ""),
		NATSSubject:      getEnv("NATS_SUBJECT", "photo-library.scan.progress"),
		ExiftoolEnabled:  getEnvBool("EXIFTOOL_ENABLED", true),
		VipsEnabled:      getEnvBool("VIPS_ENABLED", false),
		LogFile:          getEnv("LOG_FILE", ""),
		LogMaxSizeMB:     getEnvInt("LOG_MAX_SIZE_MB", 50),
		LogMaxBackups:    getEnvInt("LOG_MAX_BACKUPS", 3),
	}

	for _, dir := range []*string{&cfg.LibraryDir, &cfg.CacheDir, &cfg.DatabaseDir} {
		abs, err := filepath.Abs(*dir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", *dir, err)
		}
		*dir = abs
	}
	cfg.DatabasePath = filepath.Join(cfg.DatabaseDir, "photo-library.db")

	if cfg.MediaWorkers < 0 || cfg.AlbumWorkers < 0 {
		return nil, fmt.Errorf("worker counts must not be negative")
	}
	return cfg, nil
}

func logConfig(cfg *Config) {
	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  LIBRARY_DIR:         %s", cfg.LibraryDir)
	logging.Info("  CACHE_DIR:           %s", cfg.CacheDir)
	logging.Info("  DATABASE_DIR:        %s", cfg.DatabaseDir)
	logging.Info("  PORT:                %s", cfg.Port)
	logging.Info("  METRICS_PORT:        %s", cfg.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", cfg.MetricsEnabled)
	logging.Info("  SCAN_SCHEDULE:       %s", valueOr(cfg.ScanSchedule, "(disabled)"))
	logging.Info("  SCAN_ON_STARTUP:     %v", cfg.ScanOnStartup)
	logging.Info("  WATCH_ENABLED:       %v", cfg.WatchEnabled)
	logging.Info("  WATCH_DEBOUNCE:      %v", cfg.WatchDebounce)
	logging.Info("  SCAN_MEDIA_WORKERS:  %s", workersString(cfg.MediaWorkers))
	logging.Info("  SCAN_ALBUM_WORKERS:  %s", workersString(cfg.AlbumWorkers))
	logging.Info("  PROGRESS_INTERVAL:   %v", cfg.ProgressInterval)
	logging.Info("  NATS_URL:            %s", valueOr(cfg.NATSURL, "(disabled)"))
	logging.Info("  EXIFTOOL_ENABLED:    %v", cfg.ExiftoolEnabled)
	logging.Info("  VIPS_ENABLED:        %v", cfg.VipsEnabled)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())
	logging.Info("  LOG_FILE:            %s", valueOr(cfg.LogFile, "(console only)"))
	logging.Info("")
}

func prepareDirectories(cfg *Config) error {
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	if err := ensureDirectory(cfg.DatabaseDir, "database"); err != nil {
		return fmt.Errorf("database directory error: %w", err)
	}
	if err := testWriteAccess(cfg.DatabaseDir); err != nil {
		return fmt.Errorf("database directory is not writable: %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	// Thumbnails and re-encoded RAWs live here; a scan cannot work without it.
	if err := ensureDirectory(cfg.CacheDir, "cache"); err != nil {
		return fmt.Errorf("cache directory error: %w", err)
	}
	if err := testWriteAccess(cfg.CacheDir); err != nil {
		return fmt.Errorf("cache directory is not writable: %w", err)
	}
	logging.Info("  [OK] Cache directory is writable")

	if info, err := os.Stat(cfg.LibraryDir); err != nil || !info.IsDir() {
		logging.Warn("  Library directory %s is not available; users may still have roots elsewhere", cfg.LibraryDir)
	} else {
		logging.Info("  [OK] Library directory present")
	}
	logging.Info("")
	return nil
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func workersString(n int) string {
	if n == 0 {
		return "auto"
	}
	return strconv.Itoa(n)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
