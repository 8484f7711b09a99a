// Command loralocate estimates LoRa transmitter positions from hotspot
// reports by asking a language model, then scores each estimate against the
// device's own GPS fix.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"loralocate/config"
	"loralocate/console"
	"loralocate/dataset"
	"loralocate/download"
	"loralocate/estimate"
	"loralocate/internal/openaiutil"
	"loralocate/internal/tracing"
	"loralocate/metrics"
	"loralocate/mqttpub"
	"loralocate/oracle"
	"loralocate/prompt"
	"loralocate/recorder"
)

const (
	appTitle      = "LoRa Location Prediction V2"
	envConfigPath = "LORALOCATE_CONFIG"
)

type options struct {
	configPath string
	dataPath   string
	limit      int
	noSummary  bool
	forceFetch bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", os.Getenv(envConfigPath), "YAML config file or directory")
	flag.StringVar(&opts.dataPath, "data", "", "tracker export to process (overrides dataset.path)")
	flag.IntVar(&opts.limit, "limit", -1, "process at most N events (overrides estimator.limit; 0 = all)")
	flag.BoolVar(&opts.noSummary, "no-summary", false, "skip the data-set diagnostics")
	flag.BoolVar(&opts.forceFetch, "fetch", false, "re-download dataset.url even if the server reports no change")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "loralocate: %v\n", err)
		os.Exit(1)
	}
}

// Purpose: Load config and apply command-line overrides.
// Key aspects: Flags win over YAML; an unset -limit keeps the configured value.
// Upstream: run.
// Downstream: config.Load.
func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if p := strings.TrimSpace(opts.dataPath); p != "" {
		cfg.Dataset.Path = p
	}
	if opts.limit >= 0 {
		cfg.Estimator.Limit = opts.limit
	}
	return cfg, nil
}

func run(opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger, logCloser, err := setupLogging(cfg.Logging, os.Stderr)
	if err != nil {
		logger.Warn().Err(err).Msg("file logging disabled")
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{Enabled: cfg.Tracing.Enabled}, logger)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer tracing.ShutdownWithTimeout(shutdownTracing, logger)

	printer := console.New(os.Stdout, console.Options{
		WrapWidth:      console.FitWidth(cfg.Console.WrapWidth, os.Stdout),
		WarnErrorMiles: cfg.Estimator.WarnErrorMiles,
		Color:          console.IsTTY(os.Stdout),
	})
	printer.Header(appTitle, cfg.Dataset.Path)
	cfg.Print()

	if err := refreshDataset(ctx, cfg.Dataset, opts.forceFetch, logger); err != nil {
		return err
	}
	events, err := dataset.Load(cfg.Dataset.Path)
	if err != nil {
		return err
	}
	logger.Info().Str("dataset", cfg.Dataset.Path).Msgf("loaded %s events", humanize.Comma(int64(len(events))))

	if !opts.noSummary {
		sumOpts := dataset.SummaryOptions{
			Blocked:           cfg.Dataset.BlockedHotspots,
			MisplacementMiles: cfg.Dataset.MisplacementMiles,
			MisplacementRSSI:  cfg.Dataset.MisplacementRSSI,
		}
		printer.Summary(dataset.Summarize(events, sumOpts), sumOpts)
	}

	gen, err := openaiutil.New(openaiutil.Config{
		APIKey:       cfg.OpenAI.APIKey,
		Model:        cfg.OpenAI.Model,
		Endpoint:     cfg.OpenAI.Endpoint,
		MaxTokens:    cfg.OpenAI.MaxTokens,
		Temperature:  cfg.OpenAI.Temperature,
		SystemPrompt: cfg.OpenAI.SystemPrompt,
		Timeout:      cfg.OpenAI.Timeout,
	}, nil)
	if err != nil {
		return err
	}
	client := oracle.NewClient(gen, oracle.Options{Cooldown: cfg.Estimator.Cooldown})

	builder := prompt.Builder{Preamble: cfg.Estimator.Preamble}
	preamble := builder.Preamble
	if strings.TrimSpace(preamble) == "" {
		preamble = prompt.DefaultPreamble
	}
	printer.Prompt(preamble)

	runID := uuid.NewString()
	logger = logger.With().Str("run_id", runID).Logger()
	reporters := estimate.Reporters{printer}

	rec, err := openRecorder(cfg, runID, gen.Model(), len(events), logger)
	if err != nil {
		return err
	}
	if rec != nil {
		defer rec.Close()
		reporters = append(reporters, rec)
	}

	if cfg.Metrics.Enabled {
		collector, err := metrics.NewCollector(nil)
		if err != nil {
			return err
		}
		reporters = append(reporters, collector)
		go func() {
			if err := collector.Serve(ctx, cfg.Metrics.Listen, logger); err != nil {
				logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	if cfg.MQTT.Enabled {
		pub, err := mqttpub.Connect(mqttpub.Options{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			ClientID: cfg.MQTT.ClientID,
			QoS:      cfg.MQTT.QoS,
			RunID:    runID,
		}, logger)
		if err != nil {
			// estimates are still printed and recorded
			logger.Warn().Err(err).Msg("mqtt publishing disabled")
		} else {
			defer func() {
				if n := pub.Failures(); n > 0 {
					logger.Warn().Uint64("failures", n).Msg("some estimates were not published")
				}
				pub.Close()
			}()
			reporters = append(reporters, pub)
		}
	}

	est := estimate.New(client, estimate.Options{
		MaxAttempts:         cfg.Estimator.MaxAttempts,
		PromptPreviewEvents: cfg.Estimator.PromptPreviewEvents,
		WarnErrorMiles:      cfg.Estimator.WarnErrorMiles,
		Limit:               cfg.Estimator.Limit,
		Builder:             builder,
		Reporter:            reporters,
		Logger:              logger,
	})
	res, runErr := est.Run(ctx, events)
	printer.Final(res, runErr)

	if rec != nil {
		if err := rec.Finish(res, runErr); err != nil {
			logger.Error().Err(err).Msg("failed to finalize run record")
		}
	}
	if runErr != nil {
		logger.Error().Err(runErr).
			Int("processed", res.State.Processed).
			Bool("budget_exhausted", errors.Is(runErr, estimate.ErrAttemptsExhausted)).
			Msg("run stopped")
		return runErr
	}
	logger.Info().
		Int("processed", res.State.Processed).
		Float64("avg_error_miles", res.State.AverageError()).
		Msg("run complete")
	return nil
}

// Purpose: Open the results database when enabled.
// Key aspects: Returns nil, nil when recording is off.
// Upstream: run.
// Downstream: recorder.NewRecorder.
func openRecorder(cfg *config.Config, runID, model string, events int, logger zerolog.Logger) (*recorder.Recorder, error) {
	if !cfg.Recorder.Enabled {
		return nil, nil
	}
	limit := events
	if cfg.Estimator.Limit > 0 && cfg.Estimator.Limit < events {
		limit = cfg.Estimator.Limit
	}
	rec, err := recorder.NewRecorder(cfg.Recorder.Path, recorder.RunInfo{
		RunID:   runID,
		Dataset: cfg.Dataset.Path,
		Model:   model,
		Events:  limit,
	}, logger)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("path", cfg.Recorder.Path).Msg("recording estimates")
	return rec, nil
}

// Purpose: Bring the local export up to date before loading it.
// Key aspects: No-op without dataset.url; a rejected or failed fetch is fatal
// only when there is no local copy to fall back to.
// Upstream: run.
// Downstream: download.Download, dataset.Decode.
func refreshDataset(ctx context.Context, cfg config.DatasetConfig, force bool, logger zerolog.Logger) error {
	if cfg.URL == "" {
		return nil
	}
	res, err := download.Download(ctx, download.Request{
		URL:         cfg.URL,
		Destination: cfg.Path,
		Timeout:     cfg.FetchTimeout,
		Force:       force,
		Validate: func(body []byte) error {
			_, err := dataset.Decode(body)
			return err
		},
		Logger: logger,
	})
	if err != nil {
		if _, statErr := os.Stat(cfg.Path); statErr == nil {
			logger.Warn().Err(err).Str("path", cfg.Path).Msg("dataset refresh failed; using local copy")
			return nil
		}
		return fmt.Errorf("fetch dataset: %w", err)
	}
	logger.Info().
		Str("url", cfg.URL).
		Str("status", string(res.Status)).
		Str("size", humanize.Bytes(uint64(res.Bytes))).
		Msg("dataset refreshed")
	return nil
}
