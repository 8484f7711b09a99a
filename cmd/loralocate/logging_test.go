package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"loralocate/config"
)

func TestLogFileNameForDate(t *testing.T) {
	when := time.Date(2026, time.January, 22, 12, 0, 0, 0, time.UTC)
	if got := logFileNameForDate(when); got != "22-Jan-2026.log" {
		t.Fatalf("expected log filename to be 22-Jan-2026.log, got %q", got)
	}
}

func TestParseLogFileDate(t *testing.T) {
	parsed, ok := parseLogFileDate("22-Jan-2026.log")
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if parsed.Year() != 2026 || parsed.Month() != time.January || parsed.Day() != 22 {
		t.Fatalf("unexpected parsed date: %s", parsed.Format(time.RFC3339))
	}
	if _, ok := parseLogFileDate("notes.txt"); ok {
		t.Fatalf("expected non-log file to be rejected")
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"20-Jan-2026.log", "21-Jan-2026.log", "22-Jan-2026.log", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	now := time.Date(2026, time.January, 22, 12, 0, 0, 0, time.UTC)
	if err := cleanupOldLogs(dir, now, 2); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "20-Jan-2026.log")); !os.IsNotExist(err) {
		t.Fatalf("expected 20-Jan-2026.log to be removed, stat err=%v", err)
	}
	for _, name := range []string{"21-Jan-2026.log", "22-Jan-2026.log", "notes.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s to remain: %v", name, err)
		}
	}
}

func TestDailyFileSinkRotatesAtMidnight(t *testing.T) {
	dir := t.TempDir()
	sink, err := newDailyFileSink(dir, 7)
	if err != nil {
		t.Fatalf("newDailyFileSink: %v", err)
	}
	defer sink.Close()

	now := time.Date(2026, time.March, 1, 23, 59, 0, 0, time.UTC)
	sink.now = func() time.Time { return now }
	if _, err := sink.Write([]byte("{\"message\":\"first\"}\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := sink.Write([]byte("{\"message\":\"second\"}\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	first, err := os.ReadFile(filepath.Join(dir, "01-Mar-2026.log"))
	if err != nil || !strings.Contains(string(first), "first") || strings.Contains(string(first), "second") {
		t.Fatalf("unexpected first day file %q (err=%v)", first, err)
	}
	second, err := os.ReadFile(filepath.Join(dir, "02-Mar-2026.log"))
	if err != nil || !strings.Contains(string(second), "second") {
		t.Fatalf("unexpected second day file %q (err=%v)", second, err)
	}
}

func TestSetupLoggingFansOutToFile(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer
	logger, closer, err := setupLogging(config.LoggingConfig{Enabled: true, Dir: dir, Level: "debug"}, &console)
	if err != nil {
		t.Fatalf("setupLogging: %v", err)
	}
	logger.Debug().Int("event", 3).Msg("estimated")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if !strings.Contains(console.String(), "estimated") {
		t.Fatalf("console missing record: %q", console.String())
	}
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one log file, got %v (err=%v)", entries, err)
	}
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"message":"estimated"`) || !strings.Contains(string(data), `"event":3`) {
		t.Fatalf("file missing JSON record: %q", data)
	}
}

func TestSetupLoggingConsoleOnly(t *testing.T) {
	var console bytes.Buffer
	logger, closer, err := setupLogging(config.LoggingConfig{Level: "warn"}, &console)
	if err != nil {
		t.Fatalf("setupLogging: %v", err)
	}
	defer closer.Close()
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	if strings.Contains(console.String(), "hidden") || !strings.Contains(console.String(), "shown") {
		t.Fatalf("unexpected console output %q", console.String())
	}
}
