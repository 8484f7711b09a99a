package console

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"loralocate/dataset"
	"loralocate/estimate"
	"loralocate/geo"
	"loralocate/stats"
)

func TestWrapBreaksAfterWidthAtWordBoundary(t *testing.T) {
	got := Wrap("aaa bbb ccc", 4)
	if got != "aaa bbb \nccc" {
		t.Fatalf("unexpected wrap %q", got)
	}
}

func TestWrapResetsOnNewline(t *testing.T) {
	got := Wrap("aaaaa\nbb cc", 4)
	if got != "aaaaa\nbb cc" {
		t.Fatalf("newline should reset the column, got %q", got)
	}
	if Wrap("no width", 0) != "no width" {
		t.Fatalf("zero width should leave text alone")
	}
}

func TestWrapKeepsLongWords(t *testing.T) {
	word := strings.Repeat("x", 30)
	if got := Wrap(word, 10); got != word {
		t.Fatalf("a single word must not be split, got %q", got)
	}
}

func sampleReport() estimate.EventReport {
	return estimate.EventReport{
		Index: 0,
		Event: dataset.Event{
			Latitude:     36.5,
			Longitude:    -94.25,
			Timestamp:    1700000000,
			Observations: []dataset.Observation{{Name: "a"}, {Name: "b"}},
		},
		Estimate:   geo.Point{Lat: 36.75, Lon: -94},
		Source:     estimate.SourceOracle,
		Attempts:   1,
		ErrorMiles: 21.1234,
		Stats:      stats.Snapshot{Processed: 1, Total: 2, AverageError: 21.1234},
	}
}

func TestCSVLine(t *testing.T) {
	got := CSVLine(sampleReport())
	want := "CSV 1700000000 1 21.123 21.123 36.5 -94.25 36.75 -94"
	if got != want {
		t.Fatalf("CSVLine() = %q, want %q", got, want)
	}
}

func TestEndEventWarnsOnLargeError(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, Options{WrapWidth: 60, WarnErrorMiles: 5})
	p.EndEvent(sampleReport())
	out := buf.String()
	for _, want := range []string{
		"Oracle location: 36.75",
		"Distance error in miles: 21.123",
		"WARNING - error greater than 5 miles",
		"Current running error average in miles: 21.123",
		"CSV 1700000000 1",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, ansiYellow) {
		t.Fatalf("color disabled but escape codes present")
	}
}

func TestEndEventShortcut(t *testing.T) {
	var buf bytes.Buffer
	rep := sampleReport()
	rep.Source = estimate.SourceShortcut
	rep.ErrorMiles = 1
	New(&buf, Options{WarnErrorMiles: 5}).EndEvent(rep)
	out := buf.String()
	if !strings.Contains(out, "skipping the oracle") || strings.Contains(out, "WARNING") {
		t.Fatalf("unexpected shortcut output:\n%s", out)
	}
}

func TestBeginEventShowsPromptOnlyWhenAsked(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, Options{WrapWidth: 60})
	start := estimate.EventStart{
		Index:         4,
		Event:         sampleReport().Event,
		HasPrevious:   true,
		SincePrevious: 30,
		Prompt:        "the prompt text",
	}
	p.BeginEvent(start)
	if strings.Contains(buf.String(), "the prompt text") {
		t.Fatalf("prompt printed without ShowPrompt")
	}
	if !strings.Contains(buf.String(), "Previous timestamp: 1699999970 Seconds from current: 30") {
		t.Fatalf("missing previous timestamp line:\n%s", buf.String())
	}
	buf.Reset()
	start.ShowPrompt = true
	p.BeginEvent(start)
	if !strings.Contains(buf.String(), "the prompt text") {
		t.Fatalf("expected prompt preview:\n%s", buf.String())
	}
}

func TestRetryAndFinal(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, Options{Color: true})
	p.Retry(estimate.RetryNotice{Attempt: 2, Kind: estimate.TransportFailure, Err: errors.New("timeout")})
	if !strings.Contains(buf.String(), ansiYellow+"Oracle call failed on attempt 2, retrying: timeout") {
		t.Fatalf("unexpected retry output %q", buf.String())
	}
	buf.Reset()
	res := estimate.Result{
		State:   estimate.RunningState{Totals: stats.Totals{ErrorSum: 3, Processed: 2}},
		Stats:   stats.Snapshot{Total: 1500, Elapsed: 90 * time.Second},
		Retries: 1200,
	}
	p.Final(res, errors.New("retry budget exhausted"))
	out := buf.String()
	for _, want := range []string{
		"Run time in minutes: 1.5",
		"Events estimated: 2 of 1,500 (retries 1,200)",
		"Final average error in miles for data set: 1.500",
		"Run stopped early: retry budget exhausted",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSummaryListsDiagnostics(t *testing.T) {
	var buf bytes.Buffer
	s := dataset.Summary{
		Events:         1200,
		Start:          time.Unix(1700000000, 0),
		Span:           90 * time.Minute,
		Sightings:      4321,
		UniqueHotspots: 12,
		MissingBlocked: []dataset.BlockedMiss{{Name: "short-tin-pgi", Suggestion: "short-tin-pig", Distance: 2}},
		Misplacements:  []dataset.Misplacement{{Index: 3, Name: "far-away-hotspot", RSSI: -80, DistanceMiles: 42}},
	}
	New(&buf, Options{}).Summary(s, dataset.SummaryOptions{MisplacementMiles: 10, MisplacementRSSI: -95})
	out := buf.String()
	for _, want := range []string{
		"Number of position / transmit records: 1,200",
		"Number of hotspots seen: 4,321",
		"Run time in minutes: 90",
		"short-tin-pgi (did you mean short-tin-pig?)",
		"more than 10 miles from GPS coordinates and RSSI greater than -95",
		"42 3 far-away-hotspot",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}
