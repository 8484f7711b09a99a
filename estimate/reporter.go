package estimate

import (
	"loralocate/dataset"
	"loralocate/geo"
	"loralocate/stats"
)

// Source says how an estimate was produced.
type Source string

const (
	SourceShortcut Source = "shortcut"
	SourceOracle   Source = "oracle"
)

// EventStart is emitted before an event is estimated.
type EventStart struct {
	Index         int
	Event         dataset.Event
	HasPrevious   bool
	SincePrevious int64 // seconds since the previous event's timestamp
	Prompt        string
	Fingerprint   uint64
	ShowPrompt    bool // true for the first few oracle-bound events
}

// RetryNotice is emitted for every recoverable failure before the retry.
type RetryNotice struct {
	Index   int
	Attempt int // 1-based attempt that failed
	Kind    Kind
	Err     error
}

// EventReport is emitted once an event's estimate is final.
type EventReport struct {
	Index       int
	Event       dataset.Event
	Estimate    geo.Point
	Source      Source
	Attempts    int
	Retries     int
	ErrorMiles  float64
	Fingerprint uint64
	Response    string
	Stats       stats.Snapshot
}

// Reporter receives progress from a run, in order, on the run goroutine.
type Reporter interface {
	BeginEvent(EventStart)
	Retry(RetryNotice)
	Response(index int, raw string)
	EndEvent(EventReport)
}

// Reporters fans out to each non-nil reporter in order.
type Reporters []Reporter

func (rs Reporters) BeginEvent(s EventStart) {
	for _, r := range rs {
		if r != nil {
			r.BeginEvent(s)
		}
	}
}

func (rs Reporters) Retry(n RetryNotice) {
	for _, r := range rs {
		if r != nil {
			r.Retry(n)
		}
	}
}

func (rs Reporters) Response(index int, raw string) {
	for _, r := range rs {
		if r != nil {
			r.Response(index, raw)
		}
	}
}

func (rs Reporters) EndEvent(rep EventReport) {
	for _, r := range rs {
		if r != nil {
			r.EndEvent(rep)
		}
	}
}

type nopReporter struct{}

func (nopReporter) BeginEvent(EventStart) {}
func (nopReporter) Retry(RetryNotice)     {}
func (nopReporter) Response(int, string)  {}
func (nopReporter) EndEvent(EventReport)  {}
