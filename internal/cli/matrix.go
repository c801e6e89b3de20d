package cli

import (
	"fmt"
	"strings"

	"github.com/pfrederiksen/shelter-watch/internal/logger"
	"github.com/pfrederiksen/shelter-watch/internal/storage"
	"github.com/pfrederiksen/shelter-watch/internal/timeseries"
	"github.com/spf13/cobra"
)

const (
	CumulativeFile = "cumulative.csv"
	DeltaFile      = "delta.csv"
)

// ViewKind selects which matrix views are rendered
type ViewKind string

const (
	ViewCumulative ViewKind = "cumulative"
	ViewDelta      ViewKind = "delta"
	ViewBoth       ViewKind = "both"
)

var (
	flagView       string
	flagMatrixFmt  string
	flagMatrixDest string
)

func newMatrixCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "matrix",
		Short: "Render the occupancy matrix from exported tables",
		Long: `Read info.csv and data.csv back, build the per-shelter occupancy matrix
over the announcement dates, and render its cumulative and delta views.
Only shelters with at least one non-zero occupant count appear as columns.`,
		Args: cobra.NoArgs,
		RunE: runMatrix,
	}

	cmd.Flags().StringVar(&flagView, "view", string(ViewBoth), "View to render: cumulative, delta, or both")
	cmd.Flags().StringVar(&flagMatrixFmt, "format", string(FormatTable), "Output format: table, csv, or json")
	cmd.Flags().StringVar(&flagMatrixDest, "out-dir", "", "Also write cumulative.csv and delta.csv to this directory")

	return cmd
}

// runMatrix is the matrix command logic
func runMatrix(cmd *cobra.Command, args []string) error {
	kind := ViewKind(strings.ToLower(flagView))
	if kind != ViewCumulative && kind != ViewDelta && kind != ViewBoth {
		return fmt.Errorf("invalid view: %s (must be 'cumulative', 'delta', or 'both')", flagView)
	}
	format := OutputFormat(strings.ToLower(flagMatrixFmt))
	if format != FormatTable && format != FormatCSV && format != FormatJSON {
		return fmt.Errorf("invalid format: %s (must be 'table', 'csv', or 'json')", flagMatrixFmt)
	}
	if format == FormatCSV && kind == ViewBoth {
		return fmt.Errorf("csv output needs a single --view; use --out-dir to export both")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := setupLogger(cfg)
	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	store, err := storage.New(cfg.OutputDir, loc)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	announcements, err := store.LoadAnnouncements(cfg.AnnouncementsFile)
	if err != nil {
		return err
	}
	snapshots, err := store.LoadSnapshots(cfg.SnapshotsFile)
	if err != nil {
		return err
	}

	m := timeseries.Build(announcements, snapshots)
	log.Debug("Built occupancy matrix", logger.Fields{
		"dates":    len(m.Dates()),
		"shelters": len(m.Shelters()),
	})

	views := make([]namedView, 0, 2)
	if kind == ViewCumulative || kind == ViewBoth {
		views = append(views, namedView{Name: ViewCumulative, View: m.Cumulative()})
	}
	if kind == ViewDelta || kind == ViewBoth {
		views = append(views, namedView{Name: ViewDelta, View: m.Delta()})
	}

	if flagMatrixDest != "" {
		dest, err := storage.New(flagMatrixDest, loc)
		if err != nil {
			return fmt.Errorf("initializing output directory: %w", err)
		}
		if err := dest.SaveView(CumulativeFile, m.Cumulative()); err != nil {
			return fmt.Errorf("saving cumulative view: %w", err)
		}
		if err := dest.SaveView(DeltaFile, m.Delta()); err != nil {
			return fmt.Errorf("saving delta view: %w", err)
		}
	}

	if err := WriteMatrixOutput(cmd.OutOrStdout(), views, format); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}
