package scraper

import "fmt"

// AnomalyKind classifies a structural irregularity found while parsing
type AnomalyKind string

const (
	AnomalyTableNotFound      AnomalyKind = "table_not_found"
	AnomalyMapLinkMissing     AnomalyKind = "map_link_missing"
	AnomalyCoordinateNotFound AnomalyKind = "coordinate_not_found"
	AnomalyCapacity           AnomalyKind = "capacity_not_numeric"
	AnomalyEntryMalformed     AnomalyKind = "entry_malformed"
	AnomalyLinkMissing        AnomalyKind = "link_missing"
	AnomalyDateUnparsed       AnomalyKind = "date_unparsed"
)

// Anomaly is a row- or entry-scoped parsing problem. Anomalies are recovered
// from locally and reported to the caller for logging.
type Anomaly struct {
	Kind    AnomalyKind
	Row     int    // zero-based row or entry position in the source page, -1 for page-level
	Shelter string // shelter name or announcement title, if known
	Err     error
}

func (a Anomaly) String() string {
	if a.Shelter != "" {
		return fmt.Sprintf("%s (row %d, %s): %v", a.Kind, a.Row, a.Shelter, a.Err)
	}
	return fmt.Sprintf("%s (row %d): %v", a.Kind, a.Row, a.Err)
}
