package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/shelter-watch/internal/shelter"
)

const (
	// InformationMarker introduces the free-text note on a detail page.
	InformationMarker = "補足情報"
	// ShelterRowSelector selects the rows of the shelter listing.
	ShelterRowSelector = "table.listViewTable > tbody > tr"

	shelterTableSelector = "table.listViewTable"
	shelterCellCount     = 8
)

// Column order of the shelter listing.
const (
	colName = iota
	colOpenStatus
	colAddress
	colMapLink
	colPhone
	colCapacity
	colHouseholds
	colOccupants
)

// Detail is the parsed content of one announcement's detail page.
// Rows carry no date; the caller stamps them with the announcement date.
type Detail struct {
	Rows        []shelter.Snapshot
	Information string
	Anomalies   []Anomaly
	Defaulted   int // household or occupant cells coerced to 0
}

// ParseDetail extracts the shelter rows and supplementary note from doc.
// Rows without exactly eight cells are legend or layout rows and are skipped
// silently. A page without the listing yields no rows and one anomaly.
func ParseDetail(doc *goquery.Document) *Detail {
	d := &Detail{
		Rows:        make([]shelter.Snapshot, 0),
		Information: parseInformation(doc),
	}

	if doc.Find(shelterTableSelector).Length() == 0 {
		d.Anomalies = append(d.Anomalies, Anomaly{Kind: AnomalyTableNotFound, Row: -1, Err: ErrTableNotFound})
		return d
	}

	doc.Find(ShelterRowSelector).Each(func(i int, tr *goquery.Selection) {
		tds := tr.Find("td")
		if tds.Length() != shelterCellCount {
			return
		}

		snap, anomalies, defaulted, ok := parseShelterRow(i, tds)
		d.Anomalies = append(d.Anomalies, anomalies...)
		d.Defaulted += defaulted
		if ok {
			d.Rows = append(d.Rows, snap)
		}
	})

	return d
}

// parseInformation returns the normalized text of the block holding the
// supplementary marker, one sentence per line, or "" when there is none.
func parseInformation(doc *goquery.Document) string {
	if len(doc.Nodes) == 0 {
		return ""
	}
	node := findTextNode(doc.Nodes[0], InformationMarker)
	if node == nil || node.Parent == nil {
		return ""
	}

	var b strings.Builder
	appendText(&b, node.Parent)

	text := strings.ReplaceAll(shelter.Normalize(b.String()), "。", "。\n")

	lines := make([]string, 0)
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func parseShelterRow(row int, tds *goquery.Selection) (shelter.Snapshot, []Anomaly, int, bool) {
	cells := make([]string, shelterCellCount)
	tds.Each(func(i int, td *goquery.Selection) {
		cells[i] = strippedText(td)
	})

	name := cells[colName]
	var anomalies []Anomaly

	capacity, err := shelter.ParseCapacity(cells[colCapacity])
	if err != nil {
		anomalies = append(anomalies, Anomaly{Kind: AnomalyCapacity, Row: row, Shelter: name, Err: err})
		return shelter.Snapshot{}, anomalies, 0, false
	}

	households, householdsDefaulted := shelter.ParseCount(cells[colHouseholds])
	occupants, occupantsDefaulted := shelter.ParseCount(cells[colOccupants])
	defaulted := 0
	for _, d := range []bool{householdsDefaulted, occupantsDefaulted} {
		if d {
			defaulted++
		}
	}

	snap := shelter.Snapshot{
		ShelterName: name,
		OpenStatus:  cells[colOpenStatus],
		Capacity:    capacity,
		Households:  households,
		Occupants:   occupants,
		Address:     cells[colAddress],
		Phone:       cells[colPhone],
	}

	link, ok := mapLinkOf(tds.Eq(colMapLink))
	if !ok {
		anomalies = append(anomalies, Anomaly{Kind: AnomalyMapLinkMissing, Row: row, Shelter: name, Err: ErrCoordinateNotFound})
		return snap, anomalies, defaulted, true
	}

	p, err := ExtractLatLng(link.action())
	if err != nil {
		anomalies = append(anomalies, Anomaly{Kind: AnomalyCoordinateNotFound, Row: row, Shelter: name, Err: err})
		return snap, anomalies, defaulted, true
	}
	snap.SetLocation(p)

	return snap, anomalies, defaulted, true
}
