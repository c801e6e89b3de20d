package shelter

import "time"

// Open-status values as published by the city.
const (
	StatusOpen   = "開設"
	StatusClosed = "閉鎖"
)

// Marker colours used by map renderers.
const (
	ColorOccupied = "#228B22"
	ColorOpen     = "#0000CD"
	ColorClosed   = "#A9A9A9"
)

// Announcement represents one qualifying entry of the announcement index
type Announcement struct {
	Title       string    `json:"title"`
	Status      string    `json:"status"`
	Date        time.Time `json:"date"` // zero when the source text could not be parsed
	Link        string    `json:"link"`
	Information string    `json:"information"`
}

// HasDate reports whether the announcement date was parsed successfully.
func (a *Announcement) HasDate() bool {
	return !a.Date.IsZero()
}

// LatLng is a coordinate pair in decimal degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Snapshot represents one shelter row from an announcement's detail page
type Snapshot struct {
	Date        time.Time `json:"date"`
	ShelterName string    `json:"shelter_name"`
	OpenStatus  string    `json:"open_status"`
	Capacity    int       `json:"capacity"`
	Households  int       `json:"households"`
	Occupants   int       `json:"occupants"`
	Latitude    *float64  `json:"latitude"`
	Longitude   *float64  `json:"longitude"`
	Address     string    `json:"address"`
	Phone       string    `json:"phone"`
}

// SetLocation stores both coordinates of p on the snapshot.
func (s *Snapshot) SetLocation(p LatLng) {
	lat, lng := p.Lat, p.Lng
	s.Latitude = &lat
	s.Longitude = &lng
}

// Location returns the snapshot coordinates, or false when either is missing.
func (s *Snapshot) Location() (LatLng, bool) {
	if s.Latitude == nil || s.Longitude == nil {
		return LatLng{}, false
	}
	return LatLng{Lat: *s.Latitude, Lng: *s.Longitude}, true
}

// MarkerColor returns the map marker colour for the snapshot.
// Occupied shelters win over the open status. Unknown statuses get no colour.
func (s *Snapshot) MarkerColor() string {
	if s.Occupants > 0 {
		return ColorOccupied
	}
	switch s.OpenStatus {
	case StatusOpen:
		return ColorOpen
	case StatusClosed:
		return ColorClosed
	default:
		return ""
	}
}

// Stamp returns copies of rows with Date set to date. The input is not modified.
func Stamp(rows []Snapshot, date time.Time) []Snapshot {
	out := make([]Snapshot, len(rows))
	for i, row := range rows {
		row.Date = date
		out[i] = row
	}
	return out
}
