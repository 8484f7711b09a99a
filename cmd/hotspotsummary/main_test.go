package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"loralocate/config"
)

const export = `[
  {"decoded":{"payload":{"lat":36.0,"long":-94.0,"timestamp":1700000000}},
   "hotspots":[{"name":"short-tin-pig","id":"a","lat":36.0,"long":-94.0,"rssi":-100,"snr":1,"frequency":904.1},
               {"name":"far-off-owl","id":"b","lat":37.0,"long":-94.0,"rssi":-80,"snr":5,"frequency":904.1}]},
  {"decoded":{"payload":{"lat":36.1,"long":-94.0,"timestamp":1700000600}},
   "hotspots":[{"name":"short-tin-pig","id":"a","lat":36.0,"long":-94.0,"rssi":-99,"snr":2,"frequency":904.3}]}
]`

func writeExport(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte(export), 0o644); err != nil {
		t.Fatalf("write export: %v", err)
	}
	return path
}

func TestSummarizeText(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.DatasetConfig{
		Path:              writeExport(t),
		BlockedHotspots:   []string{"short-tin-pgi"},
		MisplacementMiles: 10,
		MisplacementRSSI:  -95,
	}
	if err := summarize(&buf, cfg, false); err != nil {
		t.Fatalf("summarize: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Number of position / transmit records: 2",
		"Number of unique hotspots: 2",
		"did you mean short-tin-pig?",
		"far-off-owl",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestSummarizeJSON(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.DatasetConfig{Path: writeExport(t), MisplacementMiles: 10, MisplacementRSSI: -95}
	if err := summarize(&buf, cfg, true); err != nil {
		t.Fatalf("summarize: %v", err)
	}
	var got struct {
		Events        int
		SingleHotspot int
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode JSON summary: %v\n%s", err, buf.String())
	}
	if got.Events != 2 || got.SingleHotspot != 1 {
		t.Fatalf("unexpected JSON summary %+v", got)
	}
}
