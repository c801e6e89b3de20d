package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pfrederiksen/shelter-watch/internal/pipeline"
	"github.com/pfrederiksen/shelter-watch/internal/shelter"
	"github.com/pfrederiksen/shelter-watch/internal/storage"
	"github.com/pfrederiksen/shelter-watch/internal/timeseries"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText  OutputFormat = "text"
	FormatJSON  OutputFormat = "json"
	FormatTable OutputFormat = "table"
	FormatCSV   OutputFormat = "csv"
)

// ShelterOutput is the latest state of one shelter, for map renderers.
type ShelterOutput struct {
	Name        string   `json:"name"`
	Date        string   `json:"date"`
	OpenStatus  string   `json:"open_status"`
	Capacity    int      `json:"capacity"`
	Households  int      `json:"households"`
	Occupants   int      `json:"occupants"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Address     string   `json:"address"`
	MarkerColor string   `json:"marker_color,omitempty"`
}

// ScrapeOutput contains data to be output after a scrape
type ScrapeOutput struct {
	StartedAt          time.Time       `json:"started_at"`
	DurationSeconds    float64         `json:"duration_seconds"`
	Announcements      int             `json:"announcements"`
	Snapshots          int             `json:"snapshots"`
	DetailPagesSkipped int             `json:"detail_pages_skipped"`
	Anomalies          map[string]int  `json:"anomalies"`
	AnnouncementsFile  string          `json:"announcements_file"`
	SnapshotsFile      string          `json:"snapshots_file"`
	Shelters           []ShelterOutput `json:"shelters"`
}

func newScrapeOutput(result *pipeline.Result, announcementsFile, snapshotsFile string, order SortOrder) *ScrapeOutput {
	s := result.Summary
	out := &ScrapeOutput{
		StartedAt:          s.StartedAt.UTC(),
		DurationSeconds:    s.Duration().Seconds(),
		Announcements:      s.Announcements,
		Snapshots:          s.Snapshots,
		DetailPagesSkipped: s.DetailPagesSkipped,
		Anomalies:          make(map[string]int, len(s.Anomalies)),
		AnnouncementsFile:  announcementsFile,
		SnapshotsFile:      snapshotsFile,
		Shelters:           make([]ShelterOutput, 0),
	}
	for kind, n := range s.Anomalies {
		out.Anomalies[string(kind)] = n
	}

	latest := latestByShelter(result.Snapshots)
	sortSnapshots(latest, order)
	for _, snap := range latest {
		out.Shelters = append(out.Shelters, ShelterOutput{
			Name:        snap.ShelterName,
			Date:        shelter.FormatDate(snap.Date),
			OpenStatus:  snap.OpenStatus,
			Capacity:    snap.Capacity,
			Households:  snap.Households,
			Occupants:   snap.Occupants,
			Latitude:    snap.Latitude,
			Longitude:   snap.Longitude,
			Address:     snap.Address,
			MarkerColor: snap.MarkerColor(),
		})
	}
	return out
}

// WriteScrapeOutput writes the scrape result in the specified format
func WriteScrapeOutput(w io.Writer, out *ScrapeOutput, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, out)
	case FormatText:
		return writeScrapeText(w, out)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeJSON outputs results as JSON
func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// writeScrapeText outputs the run summary and shelter list as tables
func writeScrapeText(w io.Writer, out *ScrapeOutput) error {
	summary := table.NewWriter()
	summary.SetOutputMirror(w)
	summary.SetStyle(table.StyleLight)
	summary.AppendRows([]table.Row{
		{"Announcements", out.Announcements},
		{"Shelter snapshots", out.Snapshots},
		{"Detail pages skipped", out.DetailPagesSkipped},
		{"Duration", time.Duration(out.DurationSeconds * float64(time.Second)).Round(time.Millisecond).String()},
	})
	kinds := make([]string, 0, len(out.Anomalies))
	for kind := range out.Anomalies {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		summary.AppendRow(table.Row{"Anomalies: " + kind, out.Anomalies[kind]})
	}
	summary.Render()

	fmt.Fprintf(w, "\nWrote %s\nWrote %s\n", out.AnnouncementsFile, out.SnapshotsFile)

	if len(out.Shelters) == 0 {
		fmt.Fprintln(w, "\nNo shelters found.")
		return nil
	}

	fmt.Fprintln(w)
	shelters := table.NewWriter()
	shelters.SetOutputMirror(w)
	shelters.SetStyle(table.StyleLight)
	shelters.AppendHeader(table.Row{"Shelter", "Status", "Capacity", "Households", "Occupants", "As of"})
	for _, s := range out.Shelters {
		shelters.AppendRow(table.Row{s.Name, s.OpenStatus, s.Capacity, s.Households, s.Occupants, s.Date})
	}
	shelters.Render()
	return nil
}

type namedView struct {
	Name ViewKind
	View *timeseries.View
}

// ViewOutput is the JSON form of one matrix view.
type ViewOutput struct {
	View     ViewKind `json:"view"`
	Dates    []string `json:"dates"`
	Shelters []string `json:"shelters"`
	Rows     [][]int  `json:"rows"`
	Totals   []int    `json:"totals"`
}

// WriteMatrixOutput writes the matrix views in the specified format
func WriteMatrixOutput(w io.Writer, views []namedView, format OutputFormat) error {
	switch format {
	case FormatJSON:
		out := make([]ViewOutput, 0, len(views))
		for _, nv := range views {
			out = append(out, newViewOutput(nv))
		}
		return writeJSON(w, out)
	case FormatCSV:
		for _, nv := range views {
			if err := storage.WriteView(w, nv.View); err != nil {
				return err
			}
		}
		return nil
	case FormatTable:
		for i, nv := range views {
			if i > 0 {
				fmt.Fprintln(w)
			}
			writeViewTable(w, nv)
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func newViewOutput(nv namedView) ViewOutput {
	out := ViewOutput{
		View:     nv.Name,
		Dates:    make([]string, len(nv.View.Dates)),
		Shelters: nv.View.Shelters,
		Rows:     nv.View.Rows,
		Totals:   nv.View.Totals,
	}
	for i, d := range nv.View.Dates {
		out.Dates[i] = shelter.FormatDate(d)
	}
	return out
}

func writeViewTable(w io.Writer, nv namedView) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(string(nv.Name))

	header := table.Row{}
	for _, name := range nv.View.Header() {
		header = append(header, name)
	}
	t.AppendHeader(header)

	for i, values := range nv.View.Rows {
		row := table.Row{shelter.FormatDate(nv.View.Dates[i])}
		for _, n := range values {
			row = append(row, strconv.Itoa(n))
		}
		row = append(row, strconv.Itoa(nv.View.Totals[i]))
		t.AppendRow(row)
	}
	t.Render()
}
