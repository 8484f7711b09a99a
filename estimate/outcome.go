package estimate

import (
	"errors"

	"loralocate/answer"
	"loralocate/geo"
)

// Kind tags the result of one oracle attempt.
type Kind int

const (
	Success Kind = iota
	TransportFailure
	MalformedResponse
	InvalidValue
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case TransportFailure:
		return "transport_failure"
	case MalformedResponse:
		return "malformed_response"
	case InvalidValue:
		return "invalid_value"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of a single attempt. Point is meaningful only
// for Success; Raw holds the reply text whenever one arrived.
type Outcome struct {
	Kind  Kind
	Point geo.Point
	Raw   string
	Err   error
}

// Retryable reports whether the attempt loop should try again.
func (o Outcome) Retryable() bool {
	return o.Kind != Success
}

// classify maps an oracle reply (or failure) onto an Outcome. Any call error
// is a transport failure; shutdown is filtered out before classify runs.
func classify(raw string, askErr error) Outcome {
	if askErr != nil {
		return Outcome{Kind: TransportFailure, Err: askErr}
	}
	point, err := answer.Parse(raw)
	switch {
	case err == nil:
		return Outcome{Kind: Success, Point: point, Raw: raw}
	case errors.Is(err, answer.ErrInvalidValue):
		return Outcome{Kind: InvalidValue, Raw: raw, Err: err}
	default:
		return Outcome{Kind: MalformedResponse, Raw: raw, Err: err}
	}
}
