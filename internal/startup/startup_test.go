package startup

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"photo-library/internal/memory"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" || info.GoVersion == "" || info.OS == "" || info.Arch == "" {
		t.Errorf("incomplete build info: %+v", info)
	}
	if info.GoVersion != GoVersion {
		t.Errorf("GoVersion = %s, want %s", info.GoVersion, GoVersion)
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("PL_TEST_SET", "custom")
	t.Setenv("PL_TEST_EMPTY", "")

	tests := []struct {
		key  string
		want string
	}{
		{"PL_TEST_SET", "custom"},
		{"PL_TEST_EMPTY", "default"},
		{"PL_TEST_UNSET", "default"},
	}
	for _, tt := range tests {
		if got := getEnv(tt.key, "default"); got != tt.want {
			t.Errorf("getEnv(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"", true, true},
		{"", false, false},
		{"true", false, true},
		{"1", false, true},
		{"false", true, false},
		{"0", true, false},
		{"maybe", true, true},
	}
	for _, tt := range tests {
		t.Setenv("PL_TEST_BOOL", tt.value)
		if got := getEnvBool("PL_TEST_BOOL", tt.def); got != tt.want {
			t.Errorf("getEnvBool(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.want)
		}
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"", 7},
		{"12", 12},
		{"twelve", 7},
	}
	for _, tt := range tests {
		t.Setenv("PL_TEST_INT", tt.value)
		if got := getEnvInt("PL_TEST_INT", 7); got != tt.want {
			t.Errorf("getEnvInt(%q) = %d, want %d", tt.value, got, tt.want)
		}
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", time.Second},
		{"250ms", 250 * time.Millisecond},
		{"6h", 6 * time.Hour},
		{"soon", time.Second},
		{"-5s", time.Second},
	}
	for _, tt := range tests {
		t.Setenv("PL_TEST_DUR", tt.value)
		if got := getEnvDuration("PL_TEST_DUR", time.Second); got != tt.want {
			t.Errorf("getEnvDuration(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestConfigFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"SCAN_SCHEDULE", "NATS_URL", "SCAN_MEDIA_WORKERS", "PROGRESS_INTERVAL", "WATCH_ENABLED"} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	t.Setenv("DATABASE_DIR", dir)

	cfg, err := configFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DatabasePath != filepath.Join(dir, "photo-library.db") {
		t.Errorf("DatabasePath = %s", cfg.DatabasePath)
	}
	if cfg.ScanSchedule != "" || cfg.NATSURL != "" || cfg.WatchEnabled {
		t.Errorf("optional features on by default: %+v", cfg)
	}
	if cfg.ProgressInterval != 250*time.Millisecond || cfg.MediaWorkers != 0 {
		t.Errorf("defaults = %v / %d", cfg.ProgressInterval, cfg.MediaWorkers)
	}
	if cfg.NATSSubject != "photo-library.scan.progress" {
		t.Errorf("NATSSubject = %q", cfg.NATSSubject)
	}
}

func TestConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("SCAN_SCHEDULE", "@every 6h")
	t.Setenv("SCAN_MEDIA_WORKERS", "3")
	t.Setenv("WATCH_ENABLED", "true")
	t.Setenv("WATCH_DEBOUNCE", "30s")
	t.Setenv("CACHE_DIR", "relative-cache")

	cfg, err := configFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ScanSchedule != "@every 6h" || cfg.MediaWorkers != 3 || !cfg.WatchEnabled || cfg.WatchDebounce != 30*time.Second {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if !filepath.IsAbs(cfg.CacheDir) {
		t.Errorf("CacheDir %q not absolute", cfg.CacheDir)
	}
}

func TestConfigFromEnvRejectsNegativeWorkers(t *testing.T) {
	t.Setenv("SCAN_ALBUM_WORKERS", "-1")
	if _, err := configFromEnv(); err == nil {
		t.Error("expected error for negative worker count")
	}
}

func TestLoadDotEnvKeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("PL_DOTENV_NEW=from-file\nPL_DOTENV_SET=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PL_DOTENV_SET", "from-env")
	t.Setenv("PL_DOTENV_NEW", "")
	os.Unsetenv("PL_DOTENV_NEW")

	loadDotEnv(path)

	if got := os.Getenv("PL_DOTENV_NEW"); got != "from-file" {
		t.Errorf("PL_DOTENV_NEW = %q, want from-file", got)
	}
	if got := os.Getenv("PL_DOTENV_SET"); got != "from-env" {
		t.Errorf("PL_DOTENV_SET = %q, want from-env", got)
	}

	// A missing file is not an error.
	loadDotEnv(filepath.Join(t.TempDir(), "missing.env"))
}

func TestPrepareDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		LibraryDir:  filepath.Join(dir, "photos"),
		CacheDir:    filepath.Join(dir, "cache", "nested"),
		DatabaseDir: filepath.Join(dir, "db"),
	}
	if err := prepareDirectories(cfg); err != nil {
		t.Fatal(err)
	}
	for _, d := range []string{cfg.CacheDir, cfg.DatabaseDir} {
		if info, err := os.Stat(d); err != nil || !info.IsDir() {
			t.Errorf("%s not created: %v", d, err)
		}
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.DatabaseDir = file
	if err := prepareDirectories(cfg); err == nil {
		t.Error("expected error when database dir is a file")
	}
}

func TestGetRoutes(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", func(http.ResponseWriter, *http.Request) {}).Methods(http.MethodGet, http.MethodHead)
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/scan", func(http.ResponseWriter, *http.Request) {}).Methods(http.MethodPost)

	routes, err := GetRoutes(router)
	if err != nil {
		t.Fatal(err)
	}
	if len(routes) != 3 {
		t.Fatalf("routes = %+v, want 3", routes)
	}
	if routes[2] != (RouteInfo{Method: http.MethodPost, Path: "/api/scan"}) {
		t.Errorf("last route = %+v", routes[2])
	}

	LogHTTPRoutes(router, true, false)
}

func TestGetRouteGroup(t *testing.T) {
	tests := map[string]string{
		"/":                      "root",
		"/healthz":               "healthz",
		"/api/scan":              "api/scan",
		"/api/scan/{userID}":     "api/scan",
		"/api/photo/{id}/{file}": "api/photo",
	}
	for in, want := range tests {
		if got := getRouteGroup(in); got != want {
			t.Errorf("getRouteGroup(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLifecycleLogging(_ *testing.T) {
	LogMemoryConfig(memory.Limit{Source: "none"})
	LogMemoryConfig(memory.Limit{Source: "MEMORY_LIMIT", ContainerLimit: 1 << 30, GoMemLimit: 858993459, Ratio: 0.8})
	LogDatabaseInit(time.Millisecond)
	LogScannerInit(ScannerInfo{Schedule: "@every 6h", Watching: true, WatchedDirs: 3})
	LogServerStarted(ServerConfig{Port: "8080", MetricsPort: "9090", MetricsEnabled: true})
	LogShutdownInitiated("SIGTERM")
	LogShutdownStepComplete("HTTP server stopped")
	LogShutdownComplete()
}
