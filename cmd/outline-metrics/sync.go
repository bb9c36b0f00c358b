package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/outline-metrics/internal/credential"
	"github.com/nhle/outline-metrics/internal/source/workflowy"
	"github.com/nhle/outline-metrics/internal/sync"
	"github.com/nhle/outline-metrics/internal/tagparse"
)

var (
	syncFromFile     string
	syncFromSnapshot bool
	syncCached       bool
	syncDryRun       bool
	syncSaveSnapshot bool
	syncDateJoined   string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync pass: fetch, parse, and load the outline",
	RunE:  runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncFromFile, "from-file", "",
		"load the tree export from a local JSON file instead of the service")
	syncCmd.Flags().BoolVar(&syncFromSnapshot, "from-snapshot", false,
		"load the most recent tree snapshot instead of fetching")
	syncCmd.Flags().BoolVar(&syncCached, "cached", false,
		"reuse cached API responses instead of fetching")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false,
		"parse and report without writing to the database")
	syncCmd.Flags().BoolVar(&syncSaveSnapshot, "save-snapshot", false,
		"record the fetched tree export as a timestamped snapshot")
	syncCmd.Flags().StringVar(&syncDateJoined, "date-joined", "",
		"account join date (RFC 3339) anchoring completion offsets; "+
			"fetched from the service when omitted")

	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	parser, err := tagparse.New(cfg.Tags)
	if err != nil {
		return fmt.Errorf("building tag parser: %w", err)
	}

	export, err := loadExport(ctx)
	if err != nil {
		return err
	}

	dateJoined, err := resolveDateJoined(ctx)
	if err != nil {
		return err
	}

	runner := sync.NewRunner(s, parser, slog.Default())
	res, err := runner.Run(ctx, export, dateJoined, sync.Options{DryRun: syncDryRun})
	if err != nil {
		return err
	}

	fmt.Printf("Synced %d items in %s: %d inserted, %d updated, %d unchanged",
		res.Loaded, res.Duration.Round(time.Millisecond),
		res.Inserted, res.Updated, res.Unchanged)
	if res.Skipped > 0 {
		fmt.Printf(", %d skipped", res.Skipped)
	}
	if res.Warnings > 0 {
		fmt.Printf(", %d warnings", res.Warnings)
	}
	fmt.Println()

	return nil
}

// loadExport resolves the tree export bytes from the selected source:
// a local file, the snapshot history, or the service (optionally via
// the response cache).
func loadExport(ctx context.Context) ([]byte, error) {
	switch {
	case syncFromFile != "":
		data, err := os.ReadFile(syncFromFile)
		if err != nil {
			return nil, fmt.Errorf("reading export file: %w", err)
		}
		return data, nil

	case syncFromSnapshot:
		history, err := workflowy.NewHistory(cfg.Source.HistoryDir)
		if err != nil {
			return nil, err
		}
		return history.Latest()

	default:
		client, err := newClient()
		if err != nil {
			return nil, err
		}
		export, err := client.FetchTreeData(ctx)
		if err != nil {
			return nil, err
		}
		if syncSaveSnapshot {
			history, err := workflowy.NewHistory(cfg.Source.HistoryDir)
			if err != nil {
				return nil, err
			}
			path, err := history.Save(export, time.Now())
			if err != nil {
				return nil, err
			}
			slog.Info("snapshot saved", "path", path)
		}
		return export, nil
	}
}

// resolveDateJoined returns the account join time that anchors the
// export's relative completion offsets. Offline sources need --date-joined
// or a warm cache.
func resolveDateJoined(ctx context.Context) (time.Time, error) {
	if syncDateJoined != "" {
		t, err := time.Parse(time.RFC3339, syncDateJoined)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing --date-joined: %w", err)
		}
		return t.UTC(), nil
	}

	client, err := newClient()
	if err != nil {
		return time.Time{}, err
	}
	init, err := client.FetchInitializationData(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf(
			"resolving account join date (pass --date-joined to skip): %w", err)
	}
	return time.Unix(init.DateJoined(), 0).UTC(), nil
}

func newClient() (*workflowy.Client, error) {
	session, err := credential.Get(credential.SessionKey)
	if err != nil {
		return nil, fmt.Errorf(
			"no stored session, run 'outline-metrics login' first: %w", err)
	}

	cache, err := workflowy.NewCache(cfg.Source.CacheDir)
	if err != nil {
		return nil, err
	}

	// Offline sources still read initialization data through the cache.
	readCache := syncCached || syncFromFile != "" || syncFromSnapshot

	timeout := time.Duration(cfg.Source.TimeoutSec) * time.Second
	return workflowy.NewClient(cfg.Source.BaseURL, session, timeout, cache, readCache), nil
}
