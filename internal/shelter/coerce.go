package shelter

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrNotNumeric is returned by ParseCapacity for text that is not an integer.
var ErrNotNumeric = errors.New("not numeric")

// Normalize applies NFKC compatibility normalization, folding full-width
// digits and letters and half-width katakana into their canonical forms.
func Normalize(s string) string {
	return norm.NFKC.String(s)
}

// cleanNumber prepares numeric cell text for parsing.
// Thousands separators and a trailing "人" or "世帯" unit are dropped.
func cleanNumber(text string) string {
	s := strings.TrimSpace(Normalize(text))
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(s, "世帯")
	s = strings.TrimSuffix(s, "人")
	return strings.TrimSpace(s)
}

// ParseCapacity parses a shelter capacity. Capacity is always published as a
// number, so anything else is an error and the row should be rejected.
func ParseCapacity(text string) (int, error) {
	s := cleanNumber(text)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("capacity %q: %w", text, ErrNotNumeric)
	}
	if n < 0 {
		return 0, fmt.Errorf("capacity %q: negative", text)
	}
	return n, nil
}

// ParseCount parses a household or occupant count.
// Blank cells, placeholders such as "-" and negative values all yield 0.
// Fractional values are truncated, and values too large for an int also
// yield 0. The second result reports whether the value had to be defaulted.
func ParseCount(text string) (int, bool) {
	s := cleanNumber(text)
	if s == "" {
		return 0, true
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, true
		}
		return n, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f >= math.MaxInt {
		return 0, true
	}
	return int(f), false
}
