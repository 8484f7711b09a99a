// Package console renders a run for a human watching the terminal: data-set
// diagnostics, per-event observation tables, oracle answers and running
// accuracy, plus one machine-greppable CSV line per event.
package console

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"

	"loralocate/dataset"
	"loralocate/estimate"
)

const (
	ansiYellow = "\x1b[33m"
	ansiReset  = "\x1b[0m"
)

type Options struct {
	WrapWidth      int
	WarnErrorMiles float64 // zero disables the large-error warning
	Color          bool
}

// Printer writes human-readable progress. It implements estimate.Reporter.
type Printer struct {
	mu   sync.Mutex
	w    io.Writer
	opts Options
}

func New(w io.Writer, opts Options) *Printer {
	return &Printer{w: w, opts: opts}
}

func (p *Printer) printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

func (p *Printer) wrapped(text string) {
	p.printf("%s\n", Wrap(text, p.opts.WrapWidth))
}

func (p *Printer) warn(msg string) {
	if p.opts.Color {
		msg = ansiYellow + msg + ansiReset
	}
	p.printf("%s\n", msg)
}

// Header prints the run banner and data-set name.
func (p *Printer) Header(title, datasetPath string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printf("%s\n", title)
	p.printf("Data set name: %s\n", datasetPath)
}

// Prompt prints the instructional preamble once before the run.
func (p *Printer) Prompt(preamble string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printf("\n\nPrompt being sent to the oracle with appended hotspot information:\n\n")
	p.wrapped(preamble)
}

func (p *Printer) BeginEvent(s estimate.EventStart) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printf("\n*********************** Message index: %d *************************\n\n", s.Index)
	p.printf("Unix epoch timestamp of this record: %d\n", s.Event.Timestamp)
	if s.HasPrevious {
		p.printf("Previous timestamp: %d Seconds from current: %d\n", s.Event.Timestamp-s.SincePrevious, s.SincePrevious)
	}
	p.printf("\n%-31s %-5s %-19s %-19s %-19s %-19s\n\n", "Name", "RSSI", "SNR", "Frequency", "Latitude", "Longitude")
	for _, o := range s.Event.Observations {
		p.printf("%-31s %-5s %-19s %-19s %-19s %-19s\n",
			o.Name, num(o.RSSI), num(o.SNR), num(o.Frequency), num(o.Latitude), num(o.Longitude))
	}
	if s.ShowPrompt {
		p.printf("\nComplete message being sent to the oracle (fingerprint %016x)\n\n", s.Fingerprint)
		p.wrapped(s.Prompt)
	}
}

func (p *Printer) Retry(n estimate.RetryNotice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch n.Kind {
	case estimate.TransportFailure:
		p.warn(fmt.Sprintf("Oracle call failed on attempt %d, retrying: %v", n.Attempt, n.Err))
	case estimate.InvalidValue:
		p.warn(fmt.Sprintf("Oracle answer had a non-finite coordinate, retrying: %v", n.Err))
	default:
		p.warn(fmt.Sprintf("Could not decode oracle answer, retrying: %v", n.Err))
	}
}

func (p *Printer) Response(_ int, raw string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printf("\nBegin oracle answer >>>>>>>>\n\n")
	p.wrapped(raw)
	p.printf("\nEnd oracle answer ########\n")
}

func (p *Printer) EndEvent(rep estimate.EventReport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	truth := rep.Event.Truth()
	if rep.Source == estimate.SourceShortcut {
		p.printf("\nSince number of hotspots is one, skipping the oracle\n")
		p.printf("Single hotspot location: %s %s\n", num(rep.Estimate.Lat), num(rep.Estimate.Lon))
	} else {
		p.printf("\nOracle location: %-18s %-18s\n", num(rep.Estimate.Lat), num(rep.Estimate.Lon))
	}
	p.printf("GPS location: %-18s %-18s\n", num(truth.Lat), num(truth.Lon))
	p.printf("\nDistance error in miles: %.3f\n", rep.ErrorMiles)
	if p.opts.WarnErrorMiles > 0 && rep.ErrorMiles > p.opts.WarnErrorMiles {
		p.warn(fmt.Sprintf("WARNING - error greater than %s miles", num(p.opts.WarnErrorMiles)))
	}
	lines := rep.Stats.Lines()
	p.printf("%s\n\n", lines[0])
	for _, l := range lines[1:] {
		p.printf("%s\n", l)
	}
	p.printf("\n%s\n", CSVLine(rep))
}

// Final prints the end-of-run totals. A non-nil runErr is reported after
// whatever was finalized before the run stopped.
func (p *Printer) Final(res estimate.Result, runErr error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printf("\n#################################################\n\n")
	p.printf("Run time in minutes: %.1f\n", res.Stats.Elapsed.Minutes())
	p.printf("Events estimated: %s of %s (retries %s)\n",
		humanize.Comma(int64(res.State.Processed)), humanize.Comma(int64(res.Stats.Total)), humanize.Comma(int64(res.Retries)))
	p.printf("Final average error in miles for data set: %.3f\n", res.State.AverageError())
	if runErr != nil {
		p.warn(fmt.Sprintf("Run stopped early: %v", runErr))
	}
}

// CSVLine renders the per-event record: timestamp, 1-based count, error,
// running average, truth and estimate.
func CSVLine(rep estimate.EventReport) string {
	truth := rep.Event.Truth()
	return strings.Join([]string{
		"CSV",
		strconv.FormatInt(rep.Event.Timestamp, 10),
		strconv.Itoa(rep.Stats.Processed),
		fmt.Sprintf("%.3f", rep.ErrorMiles),
		fmt.Sprintf("%.3f", rep.Stats.AverageError),
		num(truth.Lat),
		num(truth.Lon),
		num(rep.Estimate.Lat),
		num(rep.Estimate.Lon),
	}, " ")
}

// Summary prints the data-set diagnostics gathered before estimation.
func (p *Printer) Summary(s dataset.Summary, opts dataset.SummaryOptions) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printf("Number of position / transmit records: %s\n", humanize.Comma(int64(s.Events)))
	if s.Events == 0 {
		return
	}
	p.printf("Data set start time: %s\n", s.Start.Local().Format("01-02-06 15:04:05"))
	p.printf("Run time in minutes: %.0f\n", s.Span.Minutes())
	p.printf("Number of hotspots seen: %s\n", humanize.Comma(int64(s.Sightings)))
	p.printf("Number of unique hotspots: %s\n", humanize.Comma(int64(s.UniqueHotspots)))
	p.printf("Max number of hotspots seen on a single transmit: %d %s\n", s.MaxHotspots, s.MaxHotspotsAt)
	p.printf("Average number of hotspots per transmit: %.2f\n", s.AvgHotspots)
	p.printf("Data set distance in miles: %.1f\n", s.DistanceMiles)
	p.printf("Number of transmits with only one hotspot seen: %s\n", humanize.Comma(int64(s.SingleHotspot)))

	if len(s.MissingBlocked) > 0 {
		p.warn("\n****** WARNING - Not all blocked hotspots are in data set")
		for _, m := range s.MissingBlocked {
			if m.Suggestion != "" {
				p.printf("  %s (did you mean %s?)\n", m.Name, m.Suggestion)
			} else {
				p.printf("  %s\n", m.Name)
			}
		}
	}
	if len(s.DuplicateNames) > 0 {
		p.warn("******* WARNING - Found duplicated hotspot name id pair")
		p.printf("  %s\n", strings.Join(s.DuplicateNames, ", "))
	}

	p.printf("\nHotspots that are more than %s miles from GPS coordinates and RSSI greater than %s -> possible placement error\n",
		num(opts.MisplacementMiles), num(opts.MisplacementRSSI))
	p.printf("%s\n", strings.Repeat("*", 82))
	for _, m := range s.Misplacements {
		p.printf("%.0f %d %-25s %s %.5f %.5f %.5f %.5f\n",
			m.DistanceMiles, m.Index, m.Name, num(m.RSSI), m.Truth.Lat, m.Truth.Lon, m.Reported.Lat, m.Reported.Lon)
	}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
