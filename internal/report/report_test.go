package report_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/outline-metrics/internal/model"
	"github.com/nhle/outline-metrics/internal/report"
	"github.com/nhle/outline-metrics/internal/store"
	"github.com/nhle/outline-metrics/tests/testutil"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func timePtr(t time.Time) *time.Time { return &t }
func intPtr(n int) *int              { return &n }

// seedStore loads a small fixed history:
//
//	Mon Jan 1: planned action completed (4 pts), unplanned task completed
//	Tue Jan 2: planned goal due but not completed
//	Mon Jan 8: recurring task completed (2 pts)
func seedStore(t *testing.T) *store.Store {
	t.Helper()

	s := testutil.NewTestStore(t)

	items := []model.WorkItem{
		{
			ID: "a1", Title: "Ship report", Kind: model.KindAction,
			Recurrence:  model.RecurrenceNone,
			StoryPoints: intPtr(4),
			DueDate:     timePtr(date(2024, 1, 1)),
			CompletedAt: timePtr(date(2024, 1, 1).Add(17 * time.Hour)),
		},
		{
			ID: "t1", Title: "Impulse errand", Kind: model.KindTask,
			Recurrence:  model.RecurrenceNone,
			CompletedAt: timePtr(date(2024, 1, 1).Add(9 * time.Hour)),
		},
		{
			ID: "g1", Title: "Quarterly review", Kind: model.KindGoal,
			GoalTimeframe: model.TimeframeQuarter,
			Recurrence:    model.RecurrenceNone,
			DueDate:       timePtr(date(2024, 1, 2)),
		},
		{
			ID: "r1", Title: "Standup", Kind: model.KindTask,
			Recurrence:  model.RecurrenceDaily,
			StoryPoints: intPtr(2),
			CompletedAt: timePtr(date(2024, 1, 8).Add(10 * time.Hour)),
		},
	}

	_, err := s.UpsertPass(context.Background(), items, model.SyncRun{
		ID:         "seed",
		StartedAt:  date(2024, 1, 9),
		FinishedAt: date(2024, 1, 9),
	})
	require.NoError(t, err)

	return s
}

func TestCompletionStatsDaily(t *testing.T) {
	r := report.New(seedStore(t), 48)

	stats, err := r.CompletionStats(context.Background(), report.Daily,
		date(2024, 1, 1), date(2024, 1, 3))
	require.NoError(t, err)
	require.Len(t, stats, 2)

	jan1 := stats[0]
	assert.Equal(t, "2024-01-01", jan1.Label)
	assert.Equal(t, 1, jan1.Completed.Actions)
	assert.Equal(t, 1, jan1.Completed.Tasks)
	assert.Equal(t, 0, jan1.Completed.Goals)
	assert.Equal(t, 1, jan1.Planned)
	assert.InDelta(t, 2.0, jan1.CompletionRate, 1e-9)
	assert.Equal(t, 1, jan1.Unplanned)
	assert.InDelta(t, 0.5, jan1.UnplannedRate, 1e-9)
	assert.Equal(t, 4, jan1.StoryPoints)

	jan2 := stats[1]
	assert.Equal(t, 1, jan2.Planned)
	assert.Equal(t, 0, jan2.Completed.Total())
	assert.InDelta(t, 0.0, jan2.CompletionRate, 1e-9)
}

func TestCompletionStatsZeroPlannedPeriod(t *testing.T) {
	r := report.New(seedStore(t), 48)

	stats, err := r.CompletionStats(context.Background(), report.Daily,
		date(2024, 2, 1), date(2024, 2, 2))
	require.NoError(t, err)
	require.Len(t, stats, 1)

	assert.Equal(t, 0, stats[0].Planned)
	assert.Equal(t, 0, stats[0].Completed.Total())
	assert.Equal(t, 0.0, stats[0].CompletionRate)
	assert.Equal(t, 0.0, stats[0].UnplannedRate)
}

func TestCompletionStatsWeekly(t *testing.T) {
	r := report.New(seedStore(t), 48)

	stats, err := r.CompletionStats(context.Background(), report.Weekly,
		date(2024, 1, 1), date(2024, 1, 15))
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, "2024-W01", stats[0].Label)
	assert.Equal(t, 2, stats[0].Completed.Total())
	assert.Equal(t, "2024-W02", stats[1].Label)
	assert.Equal(t, 1, stats[1].Completed.Total())
	// The recurring standup is planned by its tag, not unplanned.
	assert.Equal(t, 0, stats[1].Unplanned)
}

func TestCompletionStatsMonthly(t *testing.T) {
	r := report.New(seedStore(t), 48)

	stats, err := r.CompletionStats(context.Background(), report.Monthly,
		date(2024, 1, 1), date(2024, 2, 1))
	require.NoError(t, err)
	require.Len(t, stats, 1)

	assert.Equal(t, "2024-01", stats[0].Label)
	assert.Equal(t, 3, stats[0].Completed.Total())
	assert.Equal(t, 2, stats[0].Planned)
	assert.InDelta(t, 1.5, stats[0].CompletionRate, 1e-9)
}

func TestBudgetBurn(t *testing.T) {
	r := report.New(seedStore(t), 48)

	days, err := r.BudgetBurn(context.Background(),
		date(2024, 1, 1), date(2024, 1, 3))
	require.NoError(t, err)
	require.Len(t, days, 2)

	assert.Equal(t, 4, days[0].Points)
	assert.Equal(t, 48, days[0].Budget)
	assert.InDelta(t, 4.0/48.0, days[0].Utilization, 1e-9)

	assert.Equal(t, 0, days[1].Points)
	assert.Equal(t, 0.0, days[1].Utilization)
}

func TestParseGranularity(t *testing.T) {
	g, err := report.ParseGranularity("week")
	require.NoError(t, err)
	assert.Equal(t, report.Weekly, g)

	_, err = report.ParseGranularity("fortnight")
	assert.Error(t, err)
}
