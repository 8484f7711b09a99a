// Package estimate drives the per-event loop: build a prompt, ask the
// oracle, parse and classify the reply, retry recoverable failures against a
// per-event budget, then score the estimate against ground truth.
package estimate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"loralocate/dataset"
	"loralocate/geo"
	"loralocate/prompt"
	"loralocate/stats"
)

// DefaultMaxAttempts bounds the failed oracle calls allowed for one event.
const DefaultMaxAttempts = 16

var (
	// ErrEmptyEvent is returned for an event with no hotspot reports.
	ErrEmptyEvent = errors.New("event has no observations")
	// ErrAttemptsExhausted stops the run once an event spends its retry budget.
	ErrAttemptsExhausted = errors.New("retry budget exhausted")
)

// Asker is the single-shot oracle call, cooldown included.
type Asker interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

type Options struct {
	// MaxAttempts is the per-event retry budget. Zero selects DefaultMaxAttempts.
	MaxAttempts int
	// PromptPreviewEvents marks the first N oracle-bound events for prompt display.
	PromptPreviewEvents int
	// WarnErrorMiles logs a warning when an estimate misses by more. Zero disables.
	WarnErrorMiles float64
	// Limit caps how many events are processed. Zero processes all.
	Limit    int
	Builder  prompt.Builder
	Reporter Reporter
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Result summarizes a completed (or aborted) run. Retries is the sum of
// failed calls over all events and is informational only.
type Result struct {
	State   RunningState
	Stats   stats.Snapshot
	Retries int
	Reports []EventReport
}

// Estimator runs events strictly in order; the hint for each event depends on
// the previous estimate, so events are never processed concurrently.
type Estimator struct {
	oracle Asker
	opts   Options
}

func New(oracle Asker, opts Options) *Estimator {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Reporter == nil {
		opts.Reporter = nopReporter{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Estimator{oracle: oracle, opts: opts}
}

// run carries the mutable per-run bookkeeping.
type run struct {
	state        RunningState
	tracker      *stats.Tracker
	lastError    float64
	retries      int // reporting total; budgets are per event
	oracleEvents int
}

// Run processes events in order. It stops at the first fatal condition (an
// empty event, an exhausted retry budget or a cancelled context) and returns
// what was finalized up to that point together with the error.
func (e *Estimator) Run(ctx context.Context, events []dataset.Event) (Result, error) {
	if e.opts.Limit > 0 && e.opts.Limit < len(events) {
		events = events[:e.opts.Limit]
	}
	r := &run{tracker: stats.NewTracker(len(events), e.opts.Now)}
	var reports []EventReport

	for i, ev := range events {
		rep, err := e.estimateEvent(ctx, r, i, ev)
		if err != nil {
			return r.result(reports), err
		}
		reports = append(reports, rep)
	}
	return r.result(reports), nil
}

func (r *run) result(reports []EventReport) Result {
	return Result{
		State:   r.state,
		Stats:   r.tracker.Snapshot(r.state.Totals, r.lastError),
		Retries: r.retries,
		Reports: reports,
	}
}

func (e *Estimator) estimateEvent(ctx context.Context, r *run, index int, ev dataset.Event) (EventReport, error) {
	ctx, span := otel.Tracer("loralocate/estimate").Start(ctx, "estimate.event")
	defer span.End()
	span.SetAttributes(
		attribute.Int("event.index", index),
		attribute.Int("event.observations", len(ev.Observations)),
	)

	log := e.opts.Logger.With().Int("event", index).Logger()

	if len(ev.Observations) == 0 {
		span.SetStatus(codes.Error, "empty event")
		return EventReport{}, fmt.Errorf("event %d: %w", index, ErrEmptyEvent)
	}

	start := EventStart{Index: index, Event: ev}
	if r.state.Previous != nil {
		start.HasPrevious = true
		start.SincePrevious = ev.Timestamp - r.state.Previous.Timestamp
	}

	rep := EventReport{Index: index, Event: ev}
	if len(ev.Observations) == 1 {
		e.opts.Reporter.BeginEvent(start)
		rep.Source = SourceShortcut
		rep.Estimate = ev.Observations[0].Position()
	} else {
		start.Prompt = e.opts.Builder.Build(ev.Observations, r.state.Hint(ev.Timestamp))
		start.Fingerprint = prompt.Fingerprint(start.Prompt)
		start.ShowPrompt = r.oracleEvents < e.opts.PromptPreviewEvents
		r.oracleEvents++
		e.opts.Reporter.BeginEvent(start)

		out, attempts, err := e.query(ctx, r, index, start.Prompt, log)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "aborted")
			return EventReport{}, err
		}
		rep.Source = SourceOracle
		rep.Estimate = out.Point
		rep.Response = out.Raw
		rep.Attempts = attempts
		rep.Retries = attempts - 1
		rep.Fingerprint = start.Fingerprint
	}

	rep.ErrorMiles = geo.DistanceMiles(ev.Truth(), rep.Estimate)
	r.state = r.state.Advance(ev, rep.Estimate, rep.ErrorMiles)
	r.lastError = rep.ErrorMiles
	rep.Stats = r.tracker.Snapshot(r.state.Totals, r.lastError)

	span.SetAttributes(
		attribute.String("estimate.source", string(rep.Source)),
		attribute.Int("estimate.attempts", rep.Attempts),
		attribute.Float64("estimate.error_miles", rep.ErrorMiles),
	)
	evt := log.Debug()
	if e.opts.WarnErrorMiles > 0 && rep.ErrorMiles > e.opts.WarnErrorMiles {
		evt = log.Warn()
	}
	evt.Str("source", string(rep.Source)).
		Str("estimate", rep.Estimate.String()).
		Float64("error_miles", rep.ErrorMiles).
		Int("attempts", rep.Attempts).
		Msg("event estimated")

	e.opts.Reporter.EndEvent(rep)
	return rep, nil
}

// query asks the oracle until a usable reply arrives. The retry counter
// starts at zero for every event and is checked before each call, so one
// event makes at most MaxAttempts failed calls and never spends another
// event's budget.
func (e *Estimator) query(ctx context.Context, r *run, index int, text string, log zerolog.Logger) (Outcome, int, error) {
	var last Outcome
	retries := 0
	for attempts := 0; ; {
		if retries >= e.opts.MaxAttempts {
			return Outcome{}, attempts, fmt.Errorf("event %d: %w after %d failed calls (last %s: %v)",
				index, ErrAttemptsExhausted, retries, last.Kind, last.Err)
		}
		raw, err := e.oracle.Ask(ctx, text)
		attempts++
		if err != nil && ctx.Err() != nil {
			// shutdown, not the oracle's fault
			return Outcome{}, attempts, fmt.Errorf("event %d: %w", index, ctx.Err())
		}
		if err == nil {
			e.opts.Reporter.Response(index, raw)
		}

		last = classify(raw, err)
		if !last.Retryable() {
			return last, attempts, nil
		}
		retries++
		r.retries++
		log.Warn().Err(last.Err).
			Str("kind", last.Kind.String()).
			Int("attempt", attempts).
			Int("retries", retries).
			Msg("oracle attempt failed; retrying")
		e.opts.Reporter.Retry(RetryNotice{Index: index, Attempt: attempts, Kind: last.Kind, Err: last.Err})
	}
}
