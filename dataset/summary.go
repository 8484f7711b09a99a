package dataset

import (
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"loralocate/geo"
)

// maxSuggestionDistance bounds how far a blocked name may be from a seen
// hotspot name before no suggestion is offered.
const maxSuggestionDistance = 3

// SummaryOptions tunes the diagnostics pass.
type SummaryOptions struct {
	Blocked           []string // hotspot names suspected of bad placement
	MisplacementMiles float64  // flag hotspots farther than this from the fix
	MisplacementRSSI  float64  // ... that still heard the uplink louder than this
}

// Summary describes a data set before estimation starts.
type Summary struct {
	Events          int
	Start           time.Time
	Span            time.Duration
	Sightings       int
	UniqueHotspots  int
	MaxHotspots     int
	MaxHotspotsAt   geo.Point
	AvgHotspots     float64
	DistanceMiles   float64
	SingleHotspot   int
	MissingBlocked  []BlockedMiss
	DuplicateNames  []string
	Misplacements   []Misplacement
	HotspotsByCount []string
}

// BlockedMiss is a blocked-list entry that never appears in the data set,
// usually a typo. Suggestion is the closest seen name, if any is near.
type BlockedMiss struct {
	Name       string
	Suggestion string
	Distance   int
}

// Misplacement is a hotspot that heard an uplink strongly while reporting a
// position far from the device's GPS fix.
type Misplacement struct {
	Index         int
	Name          string
	RSSI          float64
	DistanceMiles float64
	Truth         geo.Point
	Reported      geo.Point
}

// Summarize walks the events once and gathers data-set diagnostics.
func Summarize(events []Event, opts SummaryOptions) Summary {
	var s Summary
	s.Events = len(events)
	if len(events) == 0 {
		return s
	}
	first := events[0].Timestamp
	last := events[len(events)-1].Timestamp
	s.Start = time.Unix(first, 0).UTC()
	s.Span = time.Duration(last-first) * time.Second

	seen := make(map[string]string)
	counts := make(map[string]int)
	dupes := make(map[string]struct{})
	for i, ev := range events {
		if i > 0 {
			s.DistanceMiles += geo.DistanceMiles(events[i-1].Truth(), ev.Truth())
		}
		n := len(ev.Observations)
		s.Sightings += n
		if n == 1 {
			s.SingleHotspot++
		}
		if n > s.MaxHotspots {
			s.MaxHotspots = n
			s.MaxHotspotsAt = ev.Truth()
		}
		for _, obs := range ev.Observations {
			counts[obs.Name]++
			if id, ok := seen[obs.Name]; ok {
				if id != obs.ID {
					dupes[obs.Name] = struct{}{}
				}
			} else {
				seen[obs.Name] = obs.ID
			}
			if opts.MisplacementMiles > 0 {
				d := geo.DistanceMiles(ev.Truth(), obs.Position())
				if d > opts.MisplacementMiles && obs.RSSI > opts.MisplacementRSSI {
					s.Misplacements = append(s.Misplacements, Misplacement{
						Index:         i,
						Name:          obs.Name,
						RSSI:          obs.RSSI,
						DistanceMiles: d,
						Truth:         ev.Truth(),
						Reported:      obs.Position(),
					})
				}
			}
		}
	}
	s.UniqueHotspots = len(seen)
	s.AvgHotspots = float64(s.Sightings) / float64(len(events))

	for name := range dupes {
		s.DuplicateNames = append(s.DuplicateNames, name)
	}
	sort.Strings(s.DuplicateNames)

	s.HotspotsByCount = make([]string, 0, len(counts))
	for name := range counts {
		s.HotspotsByCount = append(s.HotspotsByCount, name)
	}
	sort.Slice(s.HotspotsByCount, func(i, j int) bool {
		a, b := s.HotspotsByCount[i], s.HotspotsByCount[j]
		if counts[a] != counts[b] {
			return counts[a] > counts[b]
		}
		return a < b
	})

	s.MissingBlocked = missingBlocked(opts.Blocked, seen)
	return s
}

func missingBlocked(blocked []string, seen map[string]string) []BlockedMiss {
	var out []BlockedMiss
	for _, raw := range blocked {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		miss := BlockedMiss{Name: name, Distance: -1}
		for candidate := range seen {
			d := levenshtein.ComputeDistance(name, candidate)
			if d > maxSuggestionDistance {
				continue
			}
			if miss.Distance < 0 || d < miss.Distance || (d == miss.Distance && candidate < miss.Suggestion) {
				miss.Suggestion = candidate
				miss.Distance = d
			}
		}
		out = append(out, miss)
	}
	return out
}
