package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nhle/outline-metrics/internal/model"
	"github.com/nhle/outline-metrics/internal/store"
)

var (
	configPath string
	dbOverride string
	verbose    bool

	cfg *model.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "outline-metrics",
	Short: "Extract tasks and metrics from a Workflowy outline into a database",
	Long: `outline-metrics syncs a Workflowy-style outline into a relational
database, parsing inline tags (#Action, #4STP, @office, due dates) into
structured work items, and reports completion and budget aggregates.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})))

		// Configuration problems are fatal before any I/O happens.
		var err error
		cfg, err = model.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if dbOverride != "" {
			cfg.Database.DSN = dbOverride
		}
		return nil
	},
}

func openStore() (*store.Store, error) {
	s, err := store.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return s, nil
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config",
		model.DefaultConfigPath(), "path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&dbOverride, "db", "",
		"override the configured database DSN")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable debug logging")

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
