// Package stats tracks running accuracy and throughput for an estimation run
// and projects how long the remaining events will take.
package stats

import (
	"fmt"
	"time"
)

// Totals is the error accumulator for a run. The estimator folds it forward
// once per finalized event; the Tracker only reads it.
type Totals struct {
	Processed int
	ErrorSum  float64
}

// Add folds one event's error in miles.
func (t Totals) Add(errMiles float64) Totals {
	return Totals{Processed: t.Processed + 1, ErrorSum: t.ErrorSum + errMiles}
}

// Average is the mean error in miles, zero before the first event.
func (t Totals) Average() float64 {
	if t.Processed == 0 {
		return 0
	}
	return t.ErrorSum / float64(t.Processed)
}

// Tracker owns the run's wall clock. It is not safe for concurrent use.
type Tracker struct {
	total int
	start time.Time
	now   func() time.Time
}

// Snapshot is a point-in-time view of a run.
type Snapshot struct {
	Processed    int
	Total        int
	LastError    float64 // miles, most recent event
	AverageError float64 // miles, over processed events
	Elapsed      time.Duration
	PerEvent     time.Duration
	Remaining    time.Duration
}

// NewTracker starts the wall clock for a run of total events. now may be nil.
func NewTracker(total int, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{total: total, now: now, start: now()}
}

// Snapshot derives the running metrics from the run's totals.
func (t *Tracker) Snapshot(totals Totals, lastError float64) Snapshot {
	s := Snapshot{
		Processed:    totals.Processed,
		Total:        t.total,
		LastError:    lastError,
		AverageError: totals.Average(),
		Elapsed:      t.now().Sub(t.start),
	}
	if totals.Processed == 0 {
		return s
	}
	s.PerEvent = s.Elapsed / time.Duration(totals.Processed)
	if left := t.total - totals.Processed; left > 0 {
		s.Remaining = time.Duration(left) * s.PerEvent
	}
	return s
}

// Lines renders the snapshot for console display, minutes like the run log.
func (s Snapshot) Lines() []string {
	return []string{
		fmt.Sprintf("Current running error average in miles: %.3f", s.AverageError),
		fmt.Sprintf("Runtime so far in minutes: %.2f", s.Elapsed.Minutes()),
		fmt.Sprintf("Runtime per record in minutes: %.2f", s.PerEvent.Minutes()),
		fmt.Sprintf("Time remaining in minutes: %.2f", s.Remaining.Minutes()),
	}
}
