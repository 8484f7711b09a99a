// Package dataset loads transmission events exported from the Helium console
// (one record per uplink, each listing the hotspots that heard it) and
// exposes them as ground-truth Events with receiver Observations.
package dataset

import (
	"errors"
	"fmt"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"loralocate/geo"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNoEvents is returned when an export contains no records.
var ErrNoEvents = errors.New("dataset: no events")

// Observation is one hotspot's report of a received uplink. The reported
// position is the hotspot's asserted location, which may be wrong.
type Observation struct {
	Name      string  `json:"name"`
	ID        string  `json:"id"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"long"`
	RSSI      float64 `json:"rssi"`
	SNR       float64 `json:"snr"`
	Frequency float64 `json:"frequency"`
}

// Position returns the hotspot's reported location.
func (o Observation) Position() geo.Point {
	return geo.Point{Lat: o.Latitude, Lon: o.Longitude}
}

// Event is a single uplink: the GPS fix the device reported (ground truth)
// plus every hotspot that heard it, in export order.
type Event struct {
	Latitude     float64
	Longitude    float64
	Timestamp    int64
	Observations []Observation
}

// Truth returns the ground-truth transmitter position.
func (e Event) Truth() geo.Point {
	return geo.Point{Lat: e.Latitude, Lon: e.Longitude}
}

type rawRecord struct {
	Decoded struct {
		Payload struct {
			Lat       float64 `json:"lat"`
			Long      float64 `json:"long"`
			Timestamp float64 `json:"timestamp"`
		} `json:"payload"`
	} `json:"decoded"`
	Hotspots []Observation `json:"hotspots"`
}

// Load reads a console export from path.
func Load(path string) ([]Event, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("dataset: path is empty")
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: read %s: %w", path, err)
	}
	events, err := Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("dataset: parse %s: %w", path, err)
	}
	return events, nil
}

// Decode converts a console export document into Events, preserving record
// and hotspot order.
func Decode(payload []byte) ([]Event, error) {
	var records []rawRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoEvents
	}
	events := make([]Event, 0, len(records))
	for _, rec := range records {
		obs := make([]Observation, len(rec.Hotspots))
		copy(obs, rec.Hotspots)
		events = append(events, Event{
			Latitude:     rec.Decoded.Payload.Lat,
			Longitude:    rec.Decoded.Payload.Long,
			Timestamp:    int64(rec.Decoded.Payload.Timestamp),
			Observations: obs,
		})
	}
	return events, nil
}
