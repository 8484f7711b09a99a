// Package metrics exposes estimation progress as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"loralocate/estimate"
)

// Collector bundles the run metrics. It implements estimate.Reporter.
type Collector struct {
	gatherer prometheus.Gatherer

	Events         *prometheus.CounterVec
	Attempts       *prometheus.CounterVec
	ErrorMiles     prometheus.Histogram
	AverageError   prometheus.Gauge
	PendingEvents  prometheus.Gauge
	ResponseLength prometheus.Histogram
}

// NewCollector registers the metrics against reg, defaulting to the global
// registry when nil. Registering twice returns the existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	events, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loralocate_events_total",
		Help: "Events estimated, labeled by estimate source (shortcut or oracle).",
	}, []string{"source"}), "loralocate_events_total")
	if err != nil {
		return nil, err
	}
	attempts, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loralocate_oracle_attempts_total",
		Help: "Oracle attempts, labeled by outcome.",
	}, []string{"outcome"}), "loralocate_oracle_attempts_total")
	if err != nil {
		return nil, err
	}
	errorMiles, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "loralocate_error_miles",
		Help:    "Distance between estimate and ground truth in miles.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 25, 50, 100},
	}), "loralocate_error_miles")
	if err != nil {
		return nil, err
	}
	responseLength, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "loralocate_oracle_response_bytes",
		Help:    "Size of oracle replies.",
		Buckets: prometheus.ExponentialBuckets(64, 2, 8),
	}), "loralocate_oracle_response_bytes")
	if err != nil {
		return nil, err
	}
	avg, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "loralocate_average_error_miles",
		Help: "Running average estimation error in miles.",
	}), "loralocate_average_error_miles")
	if err != nil {
		return nil, err
	}
	pending, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "loralocate_pending_events",
		Help: "Events left in the current run.",
	}), "loralocate_pending_events")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:       gatherer,
		Events:         events,
		Attempts:       attempts,
		ErrorMiles:     errorMiles,
		AverageError:   avg,
		PendingEvents:  pending,
		ResponseLength: responseLength,
	}, nil
}

func (c *Collector) BeginEvent(estimate.EventStart) {}

func (c *Collector) Retry(n estimate.RetryNotice) {
	if c == nil {
		return
	}
	c.Attempts.WithLabelValues(n.Kind.String()).Inc()
}

func (c *Collector) Response(_ int, raw string) {
	if c == nil {
		return
	}
	c.ResponseLength.Observe(float64(len(raw)))
}

func (c *Collector) EndEvent(rep estimate.EventReport) {
	if c == nil {
		return
	}
	c.Events.WithLabelValues(string(rep.Source)).Inc()
	if rep.Source == estimate.SourceOracle {
		c.Attempts.WithLabelValues(estimate.Success.String()).Inc()
	}
	c.ErrorMiles.Observe(rep.ErrorMiles)
	c.AverageError.Set(rep.Stats.AverageError)
	c.PendingEvents.Set(float64(rep.Stats.Total - rep.Stats.Processed))
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Serve listens on addr until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("metrics listening")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
