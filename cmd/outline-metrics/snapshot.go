package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/outline-metrics/internal/source/workflowy"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage timestamped tree snapshots",
}

var snapshotSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Fetch the tree export and record it as a snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		export, err := client.FetchTreeData(cmd.Context())
		if err != nil {
			return err
		}

		history, err := workflowy.NewHistory(cfg.Source.HistoryDir)
		if err != nil {
			return err
		}
		path, err := history.Save(export, time.Now())
		if err != nil {
			return err
		}
		fmt.Println("Saved", path)
		return nil
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded snapshots, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		history, err := workflowy.NewHistory(cfg.Source.HistoryDir)
		if err != nil {
			return err
		}
		names, err := history.List()
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

func init() {
	snapshotCmd.AddCommand(snapshotSaveCmd)
	snapshotCmd.AddCommand(snapshotListCmd)
	rootCmd.AddCommand(snapshotCmd)
}
