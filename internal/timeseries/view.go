package timeseries

import (
	"fmt"
	"time"
)

// View is a dense rendering of the matrix: Rows[i][j] is the value of
// Shelters[j] at Dates[i], and Totals[i] is the sum of Rows[i].
type View struct {
	Dates    []time.Time
	Shelters []string
	Rows     [][]int
	Totals   []int
}

func newView(dates []time.Time, shelters []string) *View {
	v := &View{
		Dates:    append([]time.Time(nil), dates...),
		Shelters: append([]string(nil), shelters...),
		Rows:     make([][]int, len(dates)),
		Totals:   make([]int, len(dates)),
	}
	for i := range v.Rows {
		v.Rows[i] = make([]int, len(shelters))
	}
	return v
}

func (v *View) computeTotals() {
	for i, row := range v.Rows {
		sum := 0
		for _, n := range row {
			sum += n
		}
		v.Totals[i] = sum
	}
}

// Header returns the export column names: DateColumn, one per shelter, then
// TotalColumn. A shelter whose name collides with another column gets a
// numeric suffix, so a shelter named "total" is exported as "total_2".
func (v *View) Header() []string {
	used := map[string]bool{DateColumn: true, TotalColumn: true}
	header := make([]string, 0, len(v.Shelters)+2)
	header = append(header, DateColumn)
	for _, name := range v.Shelters {
		col := name
		for n := 2; used[col]; n++ {
			col = fmt.Sprintf("%s_%d", name, n)
		}
		used[col] = true
		header = append(header, col)
	}
	return append(header, TotalColumn)
}

// Column returns the values of one shelter down the time axis, or nil if the
// shelter is not a column of the view.
func (v *View) Column(shelterName string) []int {
	for j, name := range v.Shelters {
		if name != shelterName {
			continue
		}
		col := make([]int, len(v.Rows))
		for i, row := range v.Rows {
			col[i] = row[j]
		}
		return col
	}
	return nil
}

// Len returns the number of rows.
func (v *View) Len() int {
	return len(v.Rows)
}
