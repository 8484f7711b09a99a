// Command hotspotsummary prints data-set diagnostics for a tracker export
// without contacting the oracle: coverage counts, blocked-list typos,
// duplicate hotspot names and likely misplaced hotspots.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"loralocate/config"
	"loralocate/console"
	"loralocate/dataset"
	"loralocate/strutil"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	configPath := flag.String("config", os.Getenv("LORALOCATE_CONFIG"), "YAML config file or directory")
	dataPath := flag.String("data", "", "tracker export (overrides dataset.path)")
	blocked := flag.String("blocked", "", "comma-separated blocked hotspot names (overrides dataset.blocked_hotspots)")
	asJSON := flag.Bool("json", false, "emit the summary as JSON")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}
	if p := strings.TrimSpace(*dataPath); p != "" {
		cfg.Dataset.Path = p
	}
	if *blocked != "" {
		cfg.Dataset.BlockedHotspots = strutil.SplitList(*blocked)
	}

	if err := summarize(os.Stdout, cfg.Dataset, *asJSON); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func summarize(w io.Writer, cfg config.DatasetConfig, asJSON bool) error {
	events, err := dataset.Load(cfg.Path)
	if err != nil {
		return err
	}
	opts := dataset.SummaryOptions{
		Blocked:           cfg.BlockedHotspots,
		MisplacementMiles: cfg.MisplacementMiles,
		MisplacementRSSI:  cfg.MisplacementRSSI,
	}
	summary := dataset.Summarize(events, opts)
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	fmt.Fprintf(w, "Data set name: %s\n", cfg.Path)
	console.New(w, console.Options{}).Summary(summary, opts)
	return nil
}
