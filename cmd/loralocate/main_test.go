package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"loralocate/config"
)

func TestLoadConfigFlagOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loralocate.yaml")
	if err := os.WriteFile(path, []byte("dataset:\n  path: from-yaml.json\nestimator:\n  limit: 9\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadConfig(options{configPath: path, limit: -1})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Dataset.Path != "from-yaml.json" || cfg.Estimator.Limit != 9 {
		t.Fatalf("expected YAML values without flags, got path=%q limit=%d", cfg.Dataset.Path, cfg.Estimator.Limit)
	}

	cfg, err = loadConfig(options{configPath: path, dataPath: " other.json ", limit: 0})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Dataset.Path != "other.json" {
		t.Fatalf("expected -data override, got %q", cfg.Dataset.Path)
	}
	if cfg.Estimator.Limit != 0 {
		t.Fatalf("expected -limit 0 to process all events, got %d", cfg.Estimator.Limit)
	}
}

func TestOpenRecorderDisabled(t *testing.T) {
	cfg, err := loadConfig(options{limit: -1})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	rec, err := openRecorder(cfg, "run", "model", 3, testLogger())
	if err != nil || rec != nil {
		t.Fatalf("expected no recorder when disabled, got %v, %v", rec, err)
	}

	cfg.Recorder.Enabled = true
	cfg.Recorder.Path = filepath.Join(t.TempDir(), "results.db")
	rec, err = openRecorder(cfg, "run-42", "model", 3, testLogger())
	if err != nil {
		t.Fatalf("openRecorder: %v", err)
	}
	defer rec.Close()
	if rec.RunID() != "run-42" {
		t.Fatalf("expected shared run id, got %q", rec.RunID())
	}
}

const oneEventExport = `[{"decoded":{"payload":{"lat":36.2,"long":-94.1,"timestamp":1}},` +
	`"hotspots":[{"name":"a","lat":36.21,"long":-94.13,"rssi":-110,"snr":-7.5}]}]`

func TestRefreshDataset(t *testing.T) {
	var body atomic.Value
	body.Store(oneEventExport)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body.Load().(string)))
	}))
	t.Cleanup(server.Close)

	ctx := context.Background()
	cfg := config.DatasetConfig{
		Path:         filepath.Join(t.TempDir(), "data.json"),
		URL:          server.URL,
		FetchTimeout: 5 * time.Second,
	}
	if err := refreshDataset(ctx, cfg, false, testLogger()); err != nil {
		t.Fatalf("refreshDataset: %v", err)
	}
	if data, err := os.ReadFile(cfg.Path); err != nil || string(data) != oneEventExport {
		t.Fatalf("expected export written, got %q (err=%v)", data, err)
	}

	// A broken upstream falls back to the local copy.
	body.Store("<html>maintenance</html>")
	if err := refreshDataset(ctx, cfg, true, testLogger()); err != nil {
		t.Fatalf("expected fallback to local copy, got %v", err)
	}
	if data, _ := os.ReadFile(cfg.Path); string(data) != oneEventExport {
		t.Fatalf("local copy replaced by invalid body: %q", data)
	}

	// Without a local copy the failure is fatal.
	cfg.Path = filepath.Join(t.TempDir(), "missing.json")
	if err := refreshDataset(ctx, cfg, false, testLogger()); err == nil {
		t.Fatalf("expected error without a local copy")
	}
}

func TestRefreshDatasetWithoutURL(t *testing.T) {
	cfg := config.DatasetConfig{Path: filepath.Join(t.TempDir(), "data.json")}
	if err := refreshDataset(context.Background(), cfg, true, testLogger()); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
