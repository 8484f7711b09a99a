package console

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// Wrap breaks text at the first word boundary after width columns. Existing
// line breaks reset the column count; spaces are never dropped.
func Wrap(text string, width int) string {
	if width <= 0 {
		return text
	}
	var sb strings.Builder
	sb.Grow(len(text) + len(text)/width + 1)
	col := 0
	var last rune
	for _, r := range text {
		if col > width && last == ' ' && r != ' ' {
			sb.WriteByte('\n')
			col = 0
		}
		sb.WriteRune(r)
		last = r
		col++
		if r == '\n' || r == '\r' {
			col = 0
		}
	}
	return sb.String()
}

// Purpose: Pick the wrap width for console output.
// Key aspects: Narrows the configured width to fit a smaller terminal; never widens it.
// Upstream: cmd/loralocate startup.
// Downstream: term.IsTerminal, term.GetSize.
func FitWidth(configured int, f *os.File) int {
	if f == nil || !term.IsTerminal(int(f.Fd())) {
		return configured
	}
	cols, _, err := term.GetSize(int(f.Fd()))
	if err != nil || cols <= 0 {
		return configured
	}
	// leave room for the word that crosses the boundary
	if limit := cols - 20; limit > 0 && limit < configured {
		return limit
	}
	return configured
}

// IsTTY reports whether f is an interactive terminal.
func IsTTY(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}
