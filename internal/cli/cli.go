package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pfrederiksen/shelter-watch/internal/config"
	"github.com/pfrederiksen/shelter-watch/internal/logger"
	"github.com/spf13/cobra"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

var (
	flagConfig  string
	flagVerbose bool
	flagOutDir  string
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shelter-watch",
		Short: "Scrape evacuation shelter announcements into occupancy time series",
		Long: `A CLI tool that collects evacuation shelter announcements for one disaster,
exports them as announcement and shelter-snapshot tables, and renders the
per-shelter occupancy matrix with cumulative and delta views.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default $XDG_CONFIG_HOME/shelter-watch/config.yaml)")
	cmd.PersistentFlags().StringVar(&flagOutDir, "output-dir", "", "Directory for the exported tables (overrides output_dir)")
	cmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable verbose logging")

	cmd.AddCommand(newScrapeCmd(), newMatrixCmd(), newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "shelter-watch %s\n", Version)
			return err
		},
	}
}

// loadConfig loads the layered configuration and applies the persistent flags.
// Command-specific flags are applied by the caller before Validate.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if flagOutDir != "" {
		cfg.OutputDir = flagOutDir
	}
	if flagVerbose {
		cfg.Log.Level = string(logger.LevelDebug)
	}
	return cfg, nil
}

// setupLogger installs a stderr logger at the configured level.
func setupLogger(cfg *config.Config) *logger.Logger {
	log := logger.New(logger.ParseLevel(cfg.Log.Level), os.Stderr)
	logger.SetDefault(log)
	return log
}

// Execute runs the CLI
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	_ = logger.Default().Sync()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}
	os.Exit(ExitSuccess)
}
