package shelter

import (
	"strings"
	"time"
)

// DateLayout is the layout used when dates are written to and read from exports.
const DateLayout = "2006-01-02 15:04:05"

var dateLayouts = []string{
	DateLayout,
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/1/2 15:04:05",
	"2006/01/02 15:04",
	"2006/1/2 15:04",
	"2006/01/02",
	"2006/1/2",
	"2006年1月2日 15時04分",
	"2006年1月2日15時04分",
	"2006年1月2日 15:04",
	"2006年1月2日15:04",
	"2006年1月2日",
}

// ParseDate parses announcement date text in loc.
// Returns time.Time{} (zero value) if parsing fails.
// Supports ISO-like, slash separated and Japanese "年月日 時分" forms;
// full-width digits are accepted.
func ParseDate(text string, loc *time.Location) time.Time {
	s := strings.Join(strings.Fields(Normalize(text)), " ")
	if s == "" {
		return time.Time{}
	}
	if loc == nil {
		loc = time.UTC
	}

	// Weekday annotations like "2025年3月23日(日)" carry no information.
	if i := strings.Index(s, "("); i >= 0 {
		if j := strings.Index(s[i:], ")"); j >= 0 {
			s = strings.TrimSpace(s[:i] + " " + strings.TrimSpace(s[i+j+1:]))
		}
	}

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc)
	}

	return time.Time{}
}

// FormatDate renders t with DateLayout, or "" for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}
