package timeseries

import (
	"sort"
	"time"

	"github.com/pfrederiksen/shelter-watch/internal/shelter"
)

// Column names of exported views besides the shelters.
const (
	DateColumn  = "date"
	TotalColumn = "total"
)

type cellKey struct {
	date    string
	shelter string
}

// Matrix maps (announcement date, shelter name) to an occupant count.
// Dates keep the order of the announcement axis and may repeat; shelters are
// sorted by name.
type Matrix struct {
	dates    []time.Time
	shelters []string
	cells    map[cellKey]int
}

// Axis returns the announcement dates in their original order.
func Axis(announcements []shelter.Announcement) []time.Time {
	axis := make([]time.Time, len(announcements))
	for i, a := range announcements {
		axis[i] = a.Date
	}
	return axis
}

// New builds the matrix for the given time axis. Only snapshots with at least
// one occupant are pivoted; every other (date, shelter) cell reads as 0. When a
// shelter appears twice at the same date the later snapshot wins. A shelter
// whose only occupied snapshots fall outside the axis still gets a column.
func New(axis []time.Time, snapshots []shelter.Snapshot) *Matrix {
	m := &Matrix{
		dates: append([]time.Time(nil), axis...),
		cells: make(map[cellKey]int),
	}

	seen := make(map[string]bool)
	for _, s := range snapshots {
		if s.Occupants <= 0 {
			continue
		}
		m.cells[cellKey{date: dateKey(s.Date), shelter: s.ShelterName}] = s.Occupants
		if !seen[s.ShelterName] {
			seen[s.ShelterName] = true
			m.shelters = append(m.shelters, s.ShelterName)
		}
	}
	sort.Strings(m.shelters)

	return m
}

// Build is New over the axis of announcements.
func Build(announcements []shelter.Announcement, snapshots []shelter.Snapshot) *Matrix {
	return New(Axis(announcements), snapshots)
}

// dateKey identifies a timestamp independent of its location.
// The zero time (an unparsed date) has its own key.
func dateKey(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Dates returns the row axis.
func (m *Matrix) Dates() []time.Time {
	return append([]time.Time(nil), m.dates...)
}

// Shelters returns the column names in order.
func (m *Matrix) Shelters() []string {
	return append([]string(nil), m.shelters...)
}

// Value returns the occupant count of shelter at date, or 0 if none was reported.
func (m *Matrix) Value(date time.Time, shelterName string) int {
	return m.cells[cellKey{date: dateKey(date), shelter: shelterName}]
}

// Cumulative returns the counts as published, one row per axis date.
func (m *Matrix) Cumulative() *View {
	v := newView(m.dates, m.shelters)
	for i, date := range m.dates {
		for j, name := range m.shelters {
			v.Rows[i][j] = m.Value(date, name)
		}
	}
	v.computeTotals()
	return v
}

// Delta returns the row-over-row change of the cumulative view. The first row
// has nothing to diff against and equals its cumulative row.
func (m *Matrix) Delta() *View {
	cum := m.Cumulative()
	v := newView(m.dates, m.shelters)
	for i := range cum.Rows {
		for j := range cum.Rows[i] {
			if i == 0 {
				v.Rows[i][j] = cum.Rows[i][j]
				continue
			}
			v.Rows[i][j] = cum.Rows[i][j] - cum.Rows[i-1][j]
		}
	}
	v.computeTotals()
	return v
}
