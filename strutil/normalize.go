// Package strutil holds small string helpers shared by config loading and
// the command-line tools.
package strutil

import "strings"

// NormalizeLower trims surrounding whitespace and converts to lower case.
// Use for log levels and other tokens where case is not significant.
func NormalizeLower(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// SplitList splits a comma-separated flag value, trimming each entry and
// dropping blanks. It returns nil when nothing remains.
func SplitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// CompactList trims every entry and drops blanks, reusing the backing array.
func CompactList(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
