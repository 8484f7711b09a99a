// Package recorder persists every finalized estimate of a run to SQLite for
// offline analysis of oracle accuracy.
package recorder

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"loralocate/estimate"
	"loralocate/sqliteutil"

	_ "modernc.org/sqlite"
)

// RunInfo describes a run at start.
type RunInfo struct {
	RunID   string // generated when empty
	Dataset string
	Model   string
	Events  int
}

// Recorder writes one row per run and one row per estimated event. It
// implements estimate.Reporter.
type Recorder struct {
	db     *sql.DB
	runID  string
	logger zerolog.Logger
	now    func() time.Time

	mu     sync.Mutex
	failed int
}

// NewRecorder opens (or creates) the SQLite database at path, ensures the
// schema exists and inserts the run row.
func NewRecorder(path string, info RunInfo, logger zerolog.Logger) (*Recorder, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("recorder: empty path")
	}
	if _, err := sqliteutil.Preflight(path, "results", 0, logger); err != nil {
		return nil, fmt.Errorf("recorder: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("recorder: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("recorder: schema: %w", err)
	}
	runID := info.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	r := &Recorder{
		db:     db,
		runID:  runID,
		logger: logger.With().Str("component", "recorder").Logger(),
		now:    time.Now,
	}
	if _, err := db.Exec(`INSERT INTO runs (run_id, started_at, dataset, model, events, status) VALUES (?, ?, ?, ?, ?, 'running')`,
		r.runID, r.now().UTC().Unix(), info.Dataset, info.Model, info.Events); err != nil {
		db.Close()
		return nil, fmt.Errorf("recorder: insert run: %w", err)
	}
	return r, nil
}

func initSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    started_at INTEGER,
    finished_at INTEGER,
    dataset TEXT,
    model TEXT,
    events INTEGER,
    processed INTEGER,
    retries INTEGER,
    avg_error_miles REAL,
    status TEXT,
    error TEXT
);
CREATE TABLE IF NOT EXISTS estimates (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    event_index INTEGER,
    event_ts INTEGER,
    truth_lat REAL,
    truth_lon REAL,
    est_lat REAL,
    est_lon REAL,
    source TEXT,
    observations INTEGER,
    attempts INTEGER,
    retries INTEGER,
    error_miles REAL,
    avg_error_miles REAL,
    prompt_fingerprint TEXT,
    response TEXT
);
CREATE INDEX IF NOT EXISTS estimates_run ON estimates(run_id, event_index);`
	_, err := db.Exec(schema)
	return err
}

// RunID identifies this run's rows.
func (r *Recorder) RunID() string {
	if r == nil {
		return ""
	}
	return r.runID
}

// Close closes the underlying database.
func (r *Recorder) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Recorder) BeginEvent(estimate.EventStart) {}

func (r *Recorder) Response(int, string) {}

// Retry counts failed attempts; the total lands on the run row.
func (r *Recorder) Retry(estimate.RetryNotice) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.failed++
	r.mu.Unlock()
}

// EndEvent inserts the finalized estimate.
func (r *Recorder) EndEvent(rep estimate.EventReport) {
	if r == nil || r.db == nil {
		return
	}
	fingerprint := ""
	if rep.Source == estimate.SourceOracle {
		fingerprint = fmt.Sprintf("%016x", rep.Fingerprint)
	}
	truth := rep.Event.Truth()
	_, err := r.db.Exec(`
INSERT INTO estimates (
    run_id, event_index, event_ts, truth_lat, truth_lon, est_lat, est_lon,
    source, observations, attempts, retries, error_miles, avg_error_miles,
    prompt_fingerprint, response
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.runID,
		rep.Index,
		rep.Event.Timestamp,
		truth.Lat,
		truth.Lon,
		rep.Estimate.Lat,
		rep.Estimate.Lon,
		string(rep.Source),
		len(rep.Event.Observations),
		rep.Attempts,
		rep.Retries,
		rep.ErrorMiles,
		rep.Stats.AverageError,
		fingerprint,
		rep.Response,
	)
	if err != nil {
		r.logger.Error().Err(err).Int("event", rep.Index).Msg("failed to insert estimate")
	}
}

// Finish stamps the run row with its outcome. runErr nil marks it complete.
func (r *Recorder) Finish(res estimate.Result, runErr error) error {
	if r == nil || r.db == nil {
		return nil
	}
	status, errText := "complete", ""
	if runErr != nil {
		status, errText = "aborted", runErr.Error()
	}
	r.mu.Lock()
	failed := r.failed
	r.mu.Unlock()
	_, err := r.db.Exec(`
UPDATE runs SET finished_at = ?, processed = ?, retries = ?, avg_error_miles = ?, status = ?, error = ?
WHERE run_id = ?`,
		r.now().UTC().Unix(),
		res.State.Processed,
		failed,
		res.State.AverageError(),
		status,
		errText,
		r.runID,
	)
	if err != nil {
		return fmt.Errorf("recorder: finish run: %w", err)
	}
	return nil
}
