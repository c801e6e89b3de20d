package scraper

import (
	"errors"
	"regexp"
	"strconv"

	"github.com/pfrederiksen/shelter-watch/internal/shelter"
)

// ErrCoordinateNotFound is returned when an action string carries no lat/lng pair.
var ErrCoordinateNotFound = errors.New("coordinate not found")

var (
	latLngPattern = regexp.MustCompile(`lat=(-?[0-9.]+)(?:&amp;|[&,;\s])+lng=(-?[0-9.]+)`)
	lngLatPattern = regexp.MustCompile(`lng=(-?[0-9.]+)(?:&amp;|[&,;\s])+lat=(-?[0-9.]+)`)
)

// ExtractLatLng pulls the "lat=..&lng=.." pair out of a click handler or URL.
// Surrounding text is ignored. Both keys must be present with numeric values,
// separated by "&", "&amp;", commas, semicolons, or whitespace.
func ExtractLatLng(action string) (shelter.LatLng, error) {
	if m := latLngPattern.FindStringSubmatch(action); m != nil {
		return parseLatLng(m[1], m[2])
	}
	if m := lngLatPattern.FindStringSubmatch(action); m != nil {
		return parseLatLng(m[2], m[1])
	}
	return shelter.LatLng{}, ErrCoordinateNotFound
}

func parseLatLng(latText, lngText string) (shelter.LatLng, error) {
	lat, err := strconv.ParseFloat(latText, 64)
	if err != nil {
		return shelter.LatLng{}, ErrCoordinateNotFound
	}
	lng, err := strconv.ParseFloat(lngText, 64)
	if err != nil {
		return shelter.LatLng{}, ErrCoordinateNotFound
	}
	return shelter.LatLng{Lat: lat, Lng: lng}, nil
}
