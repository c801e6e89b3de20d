package cli

import (
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/pfrederiksen/shelter-watch/internal/config"
	"github.com/pfrederiksen/shelter-watch/internal/logger"
	"github.com/pfrederiksen/shelter-watch/internal/observability"
	"github.com/pfrederiksen/shelter-watch/internal/pipeline"
	"github.com/pfrederiksen/shelter-watch/internal/scraper"
	"github.com/pfrederiksen/shelter-watch/internal/storage"
	"github.com/spf13/cobra"
)

var (
	flagIndexURL    string
	flagKeyword     string
	flagConcurrency int
	flagMetricsFile string
	flagFormat      string
	flagSort        string
)

func newScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Fetch announcements and export info.csv and data.csv",
		Long: `Fetch the announcement index, follow every announcement whose title
contains the disaster keyword, parse the shelter table of each detail page,
and export the announcement and shelter-snapshot tables.`,
		Args: cobra.NoArgs,
		RunE: runScrape,
	}

	cmd.Flags().StringVar(&flagIndexURL, "index-url", "", "Announcement index URL (overrides index_url)")
	cmd.Flags().StringVar(&flagKeyword, "keyword", "", "Disaster keyword matched against titles (overrides keyword)")
	cmd.Flags().IntVar(&flagConcurrency, "concurrency", 0, "Detail pages fetched at once (overrides concurrency)")
	cmd.Flags().StringVar(&flagMetricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile (overrides metrics_file)")
	cmd.Flags().StringVar(&flagFormat, "format", "text", "Output format: text or json")
	cmd.Flags().StringVar(&flagSort, "sort", string(SortByName), "Shelter list order: name, occupants, or capacity")

	return cmd
}

func applyScrapeFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("index-url") {
		cfg.IndexURL = flagIndexURL
	}
	if cmd.Flags().Changed("keyword") {
		cfg.Keyword = flagKeyword
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Concurrency = flagConcurrency
	}
	if cmd.Flags().Changed("metrics-file") {
		cfg.MetricsFile = flagMetricsFile
	}
}

// runScrape is the scrape command logic
func runScrape(cmd *cobra.Command, args []string) error {
	format := OutputFormat(strings.ToLower(flagFormat))
	if format != FormatText && format != FormatJSON {
		return fmt.Errorf("invalid format: %s (must be 'text' or 'json')", flagFormat)
	}
	order, ok := parseSortOrder(strings.ToLower(flagSort))
	if !ok {
		return fmt.Errorf("invalid sort: %s (must be 'name', 'occupants', or 'capacity')", flagSort)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyScrapeFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	log := setupLogger(cfg)
	loc, _ := cfg.Location()

	store, err := storage.New(cfg.OutputDir, loc)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	sc := scraper.New(
		scraper.WithUserAgent(cfg.UserAgent),
		scraper.WithTimeout(cfg.TimeoutDuration()),
	)
	metrics := observability.NewMetrics()
	p := pipeline.New(sc, pipeline.Options{
		IndexURL: cfg.IndexURL,
		List: scraper.ListOptions{
			Keyword:     cfg.Keyword,
			TitlePrefix: cfg.TitlePrefix,
			Location:    loc,
		},
		Concurrency:     cfg.Concurrency,
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: cfg.RetryInitialInterval(),
		MaxInterval:     cfg.RetryMaxInterval(),
	}, log, metrics, clockwork.NewRealClock())

	result, runErr := p.Run(cmd.Context())

	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			log.Error("Failed to write metrics", logger.Fields{"path": cfg.MetricsFile}, err)
		}
	}
	if runErr != nil {
		return runErr
	}

	if err := store.SaveAnnouncements(cfg.AnnouncementsFile, result.Announcements); err != nil {
		return fmt.Errorf("saving announcements: %w", err)
	}
	if err := store.SaveSnapshots(cfg.SnapshotsFile, result.Snapshots); err != nil {
		return fmt.Errorf("saving snapshots: %w", err)
	}

	log.Debug("Exported tables", logger.Fields{
		"announcements_file": store.Path(cfg.AnnouncementsFile),
		"snapshots_file":     store.Path(cfg.SnapshotsFile),
	})

	out := newScrapeOutput(result, store.Path(cfg.AnnouncementsFile), store.Path(cfg.SnapshotsFile), order)
	if err := WriteScrapeOutput(cmd.OutOrStdout(), out, format); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}
