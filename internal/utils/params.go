// Package utils has small parsing helpers shared by the HTTP handlers.
package utils

import (
	"strconv"
	"strings"
)

// IntParam parses a query value. Blank or malformed input yields def; the
// result is clamped to [min, max].
func IntParam(raw string, def, min, max int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		n = def
	}
	switch {
	case n < min:
		return min
	case n > max:
		return max
	}
	return n
}
