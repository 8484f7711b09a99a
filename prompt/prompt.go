// Package prompt assembles the text sent to the estimation oracle for one
// uplink: a fixed instructional preamble, one clause per hotspot report and,
// after the first event, a hint carrying the previous estimate.
package prompt

import (
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"

	"loralocate/dataset"
	"loralocate/geo"
)

// DefaultPreamble instructs the model how to treat the hotspot data and how
// to format the answer.
const DefaultPreamble = "Provide back the estimated latitude and longitude of the transmitting device " +
	"given the data set at the end of this message that contains the latitude, longitude, rssi, snr and frequency " +
	"values of the radio receivers getting the transmission.  The radios involved are LoRa based.  " +
	"Remove radio receiver outliers as needed.  " +
	"When determining if a receiver is an outlier assume that the rssi, snr, and frequency are correct but the " +
	"latitude and longitude positional information might be wrong.  " +
	"If there is not enough information for better methods " +
	"average the remaining receiver positions to provide the position of the transmitter answer.  " +
	"Provide back the latitude and longitude answer inside braces " +
	"with a space in between the latitude and longitude numerical answer.  " +
	"Let's take it step by step.  " +
	"Describe how you arrived at the answer.  Always provide an answer even if uncertain.  " +
	"Here is an example of the answer format {36.2248 -94.14006}.  The data set follows. "

// Hint is the last finalized estimate and how long ago it was produced.
type Hint struct {
	Estimate       geo.Point
	ElapsedSeconds int64
}

// Builder renders prompts. The zero value uses DefaultPreamble.
type Builder struct {
	Preamble string
}

// Build returns the full prompt for the given hotspot reports. Ground truth
// never enters the prompt; callers pass only observations and the hint.
func (b Builder) Build(observations []dataset.Observation, hint *Hint) string {
	preamble := b.Preamble
	if strings.TrimSpace(preamble) == "" {
		preamble = DefaultPreamble
	}

	var sb strings.Builder
	sb.Grow(len(preamble) + len(observations)*96 + 160)
	sb.WriteString(preamble)
	for _, obs := range observations {
		sb.WriteString("(latitude=")
		sb.WriteString(formatFloat(obs.Latitude))
		sb.WriteString(", longitude=")
		sb.WriteString(formatFloat(obs.Longitude))
		sb.WriteString(", rssi=")
		sb.WriteString(formatFloat(obs.RSSI))
		sb.WriteString(", snr=")
		sb.WriteString(formatFloat(obs.SNR))
		sb.WriteString(", frequency=")
		sb.WriteString(formatFloat(obs.Frequency))
		sb.WriteString(") ")
	}
	if hint != nil {
		sb.WriteString("The last known position for the transmitter was (latitude=")
		sb.WriteString(formatFloat(hint.Estimate.Lat))
		sb.WriteString(", longitude=")
		sb.WriteString(formatFloat(hint.Estimate.Lon))
		sb.WriteString(") ")
		sb.WriteString(strconv.FormatInt(hint.ElapsedSeconds, 10))
		sb.WriteString(" seconds ago.  The transmitter is likely nearby.")
	}
	return sb.String()
}

// Fingerprint identifies a prompt text in logs and recordings.
func Fingerprint(text string) uint64 {
	return xxh3.HashString(text)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
