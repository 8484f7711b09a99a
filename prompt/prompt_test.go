package prompt

import (
	"strings"
	"testing"

	"loralocate/dataset"
	"loralocate/geo"
)

func sampleObservations() []dataset.Observation {
	return []dataset.Observation{
		{Name: "short-tin-pig", Latitude: 36.21, Longitude: -94.13, RSSI: -110, SNR: -7.5, Frequency: 904.1},
		{Name: "brave-lime-owl", Latitude: 36.3, Longitude: -94.2, RSSI: -118, SNR: -12.25, Frequency: 904.3},
	}
}

func TestBuildAppendsObservationClauses(t *testing.T) {
	got := Builder{}.Build(sampleObservations(), nil)
	if !strings.HasPrefix(got, DefaultPreamble) {
		t.Fatalf("expected prompt to start with the default preamble")
	}
	want := "(latitude=36.21, longitude=-94.13, rssi=-110, snr=-7.5, frequency=904.1) " +
		"(latitude=36.3, longitude=-94.2, rssi=-118, snr=-12.25, frequency=904.3) "
	if tail := strings.TrimPrefix(got, DefaultPreamble); tail != want {
		t.Fatalf("unexpected observation clauses:\n got %q\nwant %q", tail, want)
	}
	if strings.Contains(got, "last known position") {
		t.Fatalf("first-event prompt must not carry a hint")
	}
}

func TestBuildAppendsHint(t *testing.T) {
	hint := &Hint{Estimate: geo.Point{Lat: 36.25, Lon: -94.15}, ElapsedSeconds: 60}
	got := Builder{Preamble: "P. "}.Build(sampleObservations()[:1], hint)
	want := "P. (latitude=36.21, longitude=-94.13, rssi=-110, snr=-7.5, frequency=904.1) " +
		"The last known position for the transmitter was (latitude=36.25, longitude=-94.15) 60 seconds ago.  " +
		"The transmitter is likely nearby."
	if got != want {
		t.Fatalf("unexpected prompt:\n got %q\nwant %q", got, want)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	b := Builder{}
	hint := &Hint{Estimate: geo.Point{Lat: 1.5, Lon: -2.25}, ElapsedSeconds: 42}
	first := b.Build(sampleObservations(), hint)
	for i := 0; i < 10; i++ {
		again := b.Build(sampleObservations(), &Hint{Estimate: geo.Point{Lat: 1.5, Lon: -2.25}, ElapsedSeconds: 42})
		if again != first {
			t.Fatalf("prompt changed between invocations")
		}
		if Fingerprint(again) != Fingerprint(first) {
			t.Fatalf("fingerprint changed between invocations")
		}
	}
}

func TestFingerprintDistinguishesPrompts(t *testing.T) {
	a := Builder{}.Build(sampleObservations(), nil)
	b := Builder{}.Build(sampleObservations()[:1], nil)
	if Fingerprint(a) == Fingerprint(b) {
		t.Fatalf("expected different fingerprints for different prompts")
	}
}
