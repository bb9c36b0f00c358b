package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/outline-metrics/internal/report"
)

var (
	reportPeriod string
	reportFrom   string
	reportTo     string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show completion counts and rates per period",
	RunE:  runReport,
}

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Show daily story point burn against the budget",
	RunE:  runBudget,
}

func init() {
	for _, c := range []*cobra.Command{reportCmd, budgetCmd} {
		c.Flags().StringVar(&reportFrom, "from", "",
			"window start date (YYYY-MM-DD, default 4 weeks ago)")
		c.Flags().StringVar(&reportTo, "to", "",
			"window end date, exclusive (YYYY-MM-DD, default tomorrow)")
	}
	reportCmd.Flags().StringVar(&reportPeriod, "period", "week",
		"reporting period: day, week, or month")

	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(budgetCmd)
}

// reportWindow resolves the [from, to) window from flags. The default
// covers the last four weeks up to and including today.
func reportWindow() (time.Time, time.Time, error) {
	today := time.Now().UTC().Truncate(24 * time.Hour)

	from := today.AddDate(0, 0, -28)
	to := today.AddDate(0, 0, 1)

	var err error
	if reportFrom != "" {
		from, err = time.Parse("2006-01-02", reportFrom)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parsing --from: %w", err)
		}
	}
	if reportTo != "" {
		to, err = time.Parse("2006-01-02", reportTo)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parsing --to: %w", err)
		}
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf(
			"--from %s must be before --to %s",
			from.Format("2006-01-02"), to.Format("2006-01-02"))
	}
	return from, to, nil
}

func runReport(cmd *cobra.Command, args []string) error {
	g, err := report.ParseGranularity(reportPeriod)
	if err != nil {
		return err
	}
	from, to, err := reportWindow()
	if err != nil {
		return err
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	r := report.New(s, cfg.Budget.DailyStoryPoints)
	stats, err := r.CompletionStats(cmd.Context(), g, from, to)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PERIOD\tGOALS\tACTIONS\tTASKS\tPLANNED\tRATE\tUNPLANNED\tPOINTS")
	for _, p := range stats {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%.0f%%\t%.0f%%\t%d\n",
			p.Label,
			p.Completed.Goals, p.Completed.Actions, p.Completed.Tasks,
			p.Planned,
			p.CompletionRate*100,
			p.UnplannedRate*100,
			p.StoryPoints,
		)
	}
	return w.Flush()
}

func runBudget(cmd *cobra.Command, args []string) error {
	from, to, err := reportWindow()
	if err != nil {
		return err
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	r := report.New(s, cfg.Budget.DailyStoryPoints)
	days, err := r.BudgetBurn(cmd.Context(), from, to)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tPOINTS\tBUDGET\tUSED")
	for _, d := range days {
		fmt.Fprintf(w, "%s\t%d\t%d\t%.0f%%\n",
			d.Date.Format("2006-01-02"), d.Points, d.Budget, d.Utilization*100)
	}
	return w.Flush()
}
