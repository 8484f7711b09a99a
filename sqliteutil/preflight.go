// Package sqliteutil guards SQLite files opened at startup.
package sqliteutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	_ "modernc.org/sqlite"
)

const defaultPreflightTimeout = 2 * time.Second

var sidecarSuffixes = []string{"-wal", "-shm", "-journal"}

// PreflightResult reports what Preflight found.
type PreflightResult struct {
	Healthy        bool
	Quarantined    bool
	QuarantinePath string // main file only
	Elapsed        time.Duration
	CheckError     error
}

// Preflight checkpoints the WAL and runs quick_check on an existing database.
// A file that fails either step is renamed, sidecars included, to
// <path>.bad-<timestamp> so the caller can start with a fresh file. A missing
// file is healthy.
func Preflight(path, role string, timeout time.Duration, logger zerolog.Logger) (PreflightResult, error) {
	var res PreflightResult
	if strings.TrimSpace(path) == "" {
		return res, errors.New("preflight: empty path")
	}
	if timeout <= 0 {
		timeout = defaultPreflightTimeout
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return res, fmt.Errorf("preflight: ensure dir: %w", err)
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		res.Healthy = true
		return res, nil
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	checkErr := check(ctx, path, timeout)
	res.Elapsed = time.Since(start)
	if checkErr == nil {
		res.Healthy = true
		return res, nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return res, fmt.Errorf("preflight: %s db timed out after %s", role, timeout)
	}
	res.CheckError = checkErr

	dest, err := quarantine(path, time.Now().UTC())
	if err != nil {
		return res, fmt.Errorf("preflight: %s db quarantine failed: %w (check=%v)", role, err, checkErr)
	}
	res.Quarantined = true
	res.QuarantinePath = dest
	logger.Warn().Err(checkErr).
		Str("role", role).
		Str("quarantined_to", dest).
		Dur("elapsed", res.Elapsed).
		Msg("sqlite preflight failed")
	return res, nil
}

func check(ctx context.Context, path string, timeout time.Duration) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, fmt.Sprintf("pragma busy_timeout=%d", timeout.Milliseconds())); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "pragma wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	rows, err := db.QueryContext(ctx, "pragma quick_check")
	if err != nil {
		return fmt.Errorf("quick_check: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return err
		}
		if strings.TrimSpace(status) != "ok" {
			return fmt.Errorf("quick_check reported %q", status)
		}
	}
	return rows.Err()
}

func quarantine(path string, now time.Time) (string, error) {
	suffix := ".bad-" + now.Format("20060102T150405Z")
	for _, p := range append([]string{path}, sidecars(path)...) {
		if err := os.Rename(p, p+suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}
	return path + suffix, nil
}

func sidecars(path string) []string {
	out := make([]string, 0, len(sidecarSuffixes))
	for _, s := range sidecarSuffixes {
		out = append(out, path+s)
	}
	return out
}
