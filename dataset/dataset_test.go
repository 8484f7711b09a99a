package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleExport = `[
  {"decoded":{"payload":{"lat":36.2248,"long":-94.14006,"timestamp":1678400000}},
   "hotspots":[
     {"name":"short-tin-pig","id":"112a","lat":36.21,"long":-94.13,"rssi":-110,"snr":-7.5,"frequency":904.1},
     {"name":"brave-lime-owl","id":"112b","lat":36.3,"long":-94.2,"rssi":-118,"snr":-12.25,"frequency":904.1}
   ]},
  {"decoded":{"payload":{"lat":36.23,"long":-94.15,"timestamp":1678400060}},
   "hotspots":[
     {"name":"brave-lime-owl","id":"112b","lat":36.3,"long":-94.2,"rssi":-101,"snr":3,"frequency":904.3}
   ]}
]`

func writeExport(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.json")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write export: %v", err)
	}
	return path
}

func TestLoadPreservesOrder(t *testing.T) {
	events, err := Load(writeExport(t, sampleExport))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	first := events[0]
	if first.Timestamp != 1678400000 {
		t.Fatalf("unexpected timestamp %d", first.Timestamp)
	}
	if first.Latitude != 36.2248 || first.Longitude != -94.14006 {
		t.Fatalf("unexpected truth %v", first.Truth())
	}
	if len(first.Observations) != 2 || first.Observations[0].Name != "short-tin-pig" {
		t.Fatalf("unexpected observations %+v", first.Observations)
	}
	obs := first.Observations[1]
	if obs.RSSI != -118 || obs.SNR != -12.25 || obs.Frequency != 904.1 || obs.ID != "112b" {
		t.Fatalf("unexpected observation fields %+v", obs)
	}
}

func TestDecodeRejectsEmptyExport(t *testing.T) {
	if _, err := Decode([]byte(`[]`)); !errors.Is(err, ErrNoEvents) {
		t.Fatalf("expected ErrNoEvents, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDecodeKeepsHotspotlessRecords(t *testing.T) {
	events, err := Decode([]byte(`[{"decoded":{"payload":{"lat":1,"long":2,"timestamp":3}},"hotspots":[]}]`))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if len(events) != 1 || len(events[0].Observations) != 0 {
		t.Fatalf("expected one empty event, got %+v", events)
	}
}
