// Package mqttpub publishes each finalized estimate to an MQTT broker so
// live maps and dashboards can follow a run.
package mqttpub

import (
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"loralocate/estimate"
	"loralocate/internal/ratelimit"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	publishTimeout  = 5 * time.Second
	failureLogEvery = 30 * time.Second
)

// Client is the subset of mqtt.Client used for publishing.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type Options struct {
	Broker   string
	Topic    string
	ClientID string
	QoS      byte
	RunID    string
}

// Payload is the JSON body of one estimate message.
type Payload struct {
	RunID        string  `json:"run_id"`
	Index        int     `json:"index"`
	Timestamp    int64   `json:"timestamp"`
	Source       string  `json:"source"`
	Observations int     `json:"observations"`
	Attempts     int     `json:"attempts"`
	TruthLat     float64 `json:"truth_lat"`
	TruthLon     float64 `json:"truth_lon"`
	EstimateLat  float64 `json:"estimate_lat"`
	EstimateLon  float64 `json:"estimate_lon"`
	ErrorMiles   float64 `json:"error_miles"`
	AverageError float64 `json:"average_error_miles"`
}

// Publisher implements estimate.Reporter; only EndEvent publishes.
type Publisher struct {
	client Client
	closer mqtt.Client
	topic  string
	qos    byte
	runID  string
	logger zerolog.Logger

	failures *ratelimit.Counter
}

// New publishes through an existing client to <topic>/<runID>.
func New(client Client, opts Options, logger zerolog.Logger) *Publisher {
	return &Publisher{
		client: client,
		topic:  opts.Topic + "/" + opts.RunID,
		qos:    opts.QoS,
		runID:  opts.RunID,
		logger: logger.With().Str("component", "mqtt").Logger(),

		failures: ratelimit.NewCounter(failureLogEvery),
	}
}

// Connect dials the broker and returns a publisher that owns the connection.
func Connect(opts Options, logger zerolog.Logger) (*Publisher, error) {
	if opts.Broker == "" {
		return nil, errors.New("mqtt: broker is required")
	}
	co := mqtt.NewClientOptions()
	co.AddBroker(opts.Broker)
	co.SetClientID(fmt.Sprintf("%s-%d", opts.ClientID, time.Now().Unix()))
	co.SetKeepAlive(60 * time.Second)
	co.SetConnectTimeout(10 * time.Second)
	co.SetAutoReconnect(true)
	co.SetMaxReconnectInterval(time.Minute)
	co.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn().Err(err).Str("broker", opts.Broker).Msg("mqtt connection lost")
	})

	client := mqtt.NewClient(co)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt: connect %s: %w", opts.Broker, token.Error())
	}
	p := New(client, opts, logger)
	p.closer = client
	p.logger.Info().Str("broker", opts.Broker).Str("topic", p.topic).Msg("mqtt connected")
	return p, nil
}

// Topic is the full topic estimates are published on.
func (p *Publisher) Topic() string {
	return p.topic
}

func (p *Publisher) BeginEvent(estimate.EventStart) {}
func (p *Publisher) Retry(estimate.RetryNotice)     {}
func (p *Publisher) Response(int, string)           {}

// EndEvent publishes the estimate. Failures are logged at most once per
// failureLogEvery with a running total; the run continues.
func (p *Publisher) EndEvent(rep estimate.EventReport) {
	if p == nil || p.client == nil {
		return
	}
	body, err := json.Marshal(NewPayload(p.runID, rep))
	if err != nil {
		p.logger.Error().Err(err).Int("event", rep.Index).Msg("mqtt payload encode failed")
		return
	}
	token := p.client.Publish(p.topic, p.qos, false, body)
	if !token.WaitTimeout(publishTimeout) {
		p.publishFailed(rep.Index, errors.New("publish timed out"))
		return
	}
	if err := token.Error(); err != nil {
		p.publishFailed(rep.Index, err)
	}
}

// Failures reports how many publishes did not complete.
func (p *Publisher) Failures() uint64 {
	if p == nil {
		return 0
	}
	return p.failures.Total()
}

func (p *Publisher) publishFailed(index int, err error) {
	total, ok := p.failures.Inc()
	if !ok {
		return
	}
	p.logger.Warn().Err(err).Int("event", index).Uint64("failures", total).Msg("mqtt publish failed")
}

// Close disconnects when the publisher owns the connection.
func (p *Publisher) Close() {
	if p == nil || p.closer == nil {
		return
	}
	p.closer.Disconnect(250)
}

// NewPayload flattens a report for the wire.
func NewPayload(runID string, rep estimate.EventReport) Payload {
	truth := rep.Event.Truth()
	return Payload{
		RunID:        runID,
		Index:        rep.Index,
		Timestamp:    rep.Event.Timestamp,
		Source:       string(rep.Source),
		Observations: len(rep.Event.Observations),
		Attempts:     rep.Attempts,
		TruthLat:     truth.Lat,
		TruthLon:     truth.Lon,
		EstimateLat:  rep.Estimate.Lat,
		EstimateLon:  rep.Estimate.Lon,
		ErrorMiles:   rep.ErrorMiles,
		AverageError: rep.Stats.AverageError,
	}
}
