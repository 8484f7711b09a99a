// Package answer extracts the coordinate pair from an oracle's free-text
// reply. The reply is expected to contain "{<lat> <lon>}" somewhere in the
// text; everything outside the first brace pair is ignored.
package answer

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"loralocate/geo"
)

var (
	// ErrMalformedResponse means no usable "{lat lon}" pair was found,
	// including numbers that overflow or spell out an infinity.
	ErrMalformedResponse = errors.New("answer: malformed response")
	// ErrInvalidValue means the pair parsed but holds NaN.
	ErrInvalidValue = errors.New("answer: invalid value")
)

// ParseError carries which failure occurred and why. It matches
// ErrMalformedResponse or ErrInvalidValue under errors.Is.
type ParseError struct {
	Kind   error
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Detail)
}

func (e *ParseError) Unwrap() error {
	return e.Kind
}

func malformed(format string, args ...any) error {
	return &ParseError{Kind: ErrMalformedResponse, Detail: fmt.Sprintf(format, args...)}
}

func invalid(format string, args ...any) error {
	return &ParseError{Kind: ErrInvalidValue, Detail: fmt.Sprintf(format, args...)}
}

// Parse returns the first brace-delimited coordinate pair in text. Numbers
// may be separated by whitespace and/or commas; tokens past the second are
// ignored. Nested braces are not supported.
func Parse(text string) (geo.Point, error) {
	open := strings.IndexByte(text, '{')
	if open < 0 {
		return geo.Point{}, malformed("no opening brace")
	}
	rest := text[open+1:]
	end := strings.IndexByte(rest, '}')
	if end < 0 {
		return geo.Point{}, malformed("no closing brace after offset %d", open)
	}
	body := strings.ReplaceAll(rest[:end], ",", " ")
	tokens := strings.Fields(body)
	if len(tokens) < 2 {
		return geo.Point{}, malformed("expected two numbers inside braces, got %d token(s)", len(tokens))
	}

	lat, err := parseNumber(tokens[0], "latitude")
	if err != nil {
		return geo.Point{}, err
	}
	lon, err := parseNumber(tokens[1], "longitude")
	if err != nil {
		return geo.Point{}, err
	}
	p := geo.Point{Lat: lat, Lon: lon}
	if !p.IsFinite() {
		if math.IsNaN(lat) || math.IsNaN(lon) {
			return geo.Point{}, invalid("pair {%s %s} contains NaN", tokens[0], tokens[1])
		}
		return geo.Point{}, malformed("pair {%s %s} is not finite", tokens[0], tokens[1])
	}
	return p, nil
}

func parseNumber(token, field string) (float64, error) {
	v, err := strconv.ParseFloat(token, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, malformed("%s %q out of range", field, token)
		}
		return 0, malformed("%s %q is not a number", field, token)
	}
	return v, nil
}
