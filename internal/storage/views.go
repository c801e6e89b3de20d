package storage

import (
	"io"
	"strconv"

	"github.com/pfrederiksen/shelter-watch/internal/shelter"
	"github.com/pfrederiksen/shelter-watch/internal/timeseries"
)

// WriteView writes a matrix view as CSV: a date column, one column per
// shelter, and a trailing total column. Header names are those of
// View.Header, so shelter columns never duplicate date or total.
func WriteView(w io.Writer, v *timeseries.View) error {
	header := v.Header()

	rows := make([][]string, v.Len())
	for i, values := range v.Rows {
		row := make([]string, 0, len(header))
		row = append(row, shelter.FormatDate(v.Dates[i]))
		for _, n := range values {
			row = append(row, strconv.Itoa(n))
		}
		row = append(row, strconv.Itoa(v.Totals[i]))
		rows[i] = row
	}
	return writeTable(w, header, rows)
}

// SaveView writes a matrix view to name in the data directory.
func (s *Storage) SaveView(name string, v *timeseries.View) error {
	return s.writeFile(name, func(w io.Writer) error {
		return WriteView(w, v)
	})
}
