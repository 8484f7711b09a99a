package estimate

import (
	"loralocate/dataset"
	"loralocate/geo"
	"loralocate/prompt"
	"loralocate/stats"
)

// Previous is the last finalized event's timestamp and estimate.
type Previous struct {
	Timestamp int64
	Estimate  geo.Point
}

// RunningState is the accumulator threaded through the event sequence.
// Each event consumes the prior value and produces the next via Advance.
// A nil Previous means no event has been finalized yet. The embedded totals
// are the run's only error sum and count; stats snapshots read them.
type RunningState struct {
	stats.Totals
	Previous *Previous
}

// Hint returns the last-known-position clause input for an event at ts, or
// nil before the first event.
func (s RunningState) Hint(ts int64) *prompt.Hint {
	if s.Previous == nil {
		return nil
	}
	return &prompt.Hint{
		Estimate:       s.Previous.Estimate,
		ElapsedSeconds: ts - s.Previous.Timestamp,
	}
}

// Advance folds one finalized event into the state.
func (s RunningState) Advance(ev dataset.Event, estimate geo.Point, errMiles float64) RunningState {
	return RunningState{
		Totals:   s.Totals.Add(errMiles),
		Previous: &Previous{Timestamp: ev.Timestamp, Estimate: estimate},
	}
}

// AverageError is the mean error in miles over processed events.
func (s RunningState) AverageError() float64 {
	return s.Totals.Average()
}
