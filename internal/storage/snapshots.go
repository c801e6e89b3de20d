package storage

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pfrederiksen/shelter-watch/internal/shelter"
)

// SnapshotColumns is the header of the shelter snapshot table.
var SnapshotColumns = []string{
	"date",
	"shelter_name",
	"open_status",
	"capacity",
	"households",
	"occupants",
	"latitude",
	"longitude",
	"address",
	"phone",
}

func formatCoord(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func parseCoord(text string) (*float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// WriteSnapshots writes shelter snapshots as CSV to w.
func WriteSnapshots(w io.Writer, snapshots []shelter.Snapshot) error {
	rows := make([][]string, len(snapshots))
	for i, s := range snapshots {
		rows[i] = []string{
			shelter.FormatDate(s.Date),
			s.ShelterName,
			s.OpenStatus,
			strconv.Itoa(s.Capacity),
			strconv.Itoa(s.Households),
			strconv.Itoa(s.Occupants),
			formatCoord(s.Latitude),
			formatCoord(s.Longitude),
			s.Address,
			s.Phone,
		}
	}
	return writeTable(w, SnapshotColumns, rows)
}

// SaveSnapshots writes the shelter snapshot table to name in the data directory.
func (s *Storage) SaveSnapshots(name string, snapshots []shelter.Snapshot) error {
	return s.writeFile(name, func(w io.Writer) error {
		return WriteSnapshots(w, snapshots)
	})
}

// LoadSnapshots reads the shelter snapshot table back in file order.
// Capacity and coordinates must be numeric (or empty, for coordinates);
// household and occupant counts follow the lenient default-to-zero policy.
func (s *Storage) LoadSnapshots(name string) ([]shelter.Snapshot, error) {
	records, err := s.readFile(name, SnapshotColumns)
	if err != nil {
		return nil, fmt.Errorf("loading snapshots: %w", err)
	}

	snapshots := make([]shelter.Snapshot, 0, len(records))
	for _, r := range records {
		capacity, err := shelter.ParseCapacity(r.get("capacity"))
		if err != nil {
			return nil, fmt.Errorf("loading snapshots: line %d: %w", r.line, err)
		}
		lat, err := parseCoord(r.get("latitude"))
		if err != nil {
			return nil, fmt.Errorf("loading snapshots: line %d: latitude: %w", r.line, err)
		}
		lng, err := parseCoord(r.get("longitude"))
		if err != nil {
			return nil, fmt.Errorf("loading snapshots: line %d: longitude: %w", r.line, err)
		}
		households, _ := shelter.ParseCount(r.get("households"))
		occupants, _ := shelter.ParseCount(r.get("occupants"))

		snapshots = append(snapshots, shelter.Snapshot{
			Date:        shelter.ParseDate(r.get("date"), s.loc),
			ShelterName: r.get("shelter_name"),
			OpenStatus:  r.get("open_status"),
			Capacity:    capacity,
			Households:  households,
			Occupants:   occupants,
			Latitude:    lat,
			Longitude:   lng,
			Address:     r.get("address"),
			Phone:       r.get("phone"),
		})
	}
	return snapshots, nil
}
