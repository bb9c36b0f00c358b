// Package report computes the derived aggregates the dashboard shows:
// completion counts and rates per day/week/month, and story point burn
// against the configured daily budget. All queries are read-only; the
// bucketing happens here rather than in SQL so it is identical across
// database backends.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/nhle/outline-metrics/internal/model"
	"github.com/nhle/outline-metrics/internal/store"
)

// Granularity selects the reporting period size.
type Granularity string

const (
	Daily   Granularity = "day"
	Weekly  Granularity = "week"
	Monthly Granularity = "month"
)

// ParseGranularity validates a user-supplied granularity string.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case Daily, Weekly, Monthly:
		return Granularity(s), nil
	default:
		return "", fmt.Errorf("unknown period %q (want day, week, or month)", s)
	}
}

// KindCounts breaks completed items down by kind.
type KindCounts struct {
	Goals   int
	Actions int
	Tasks   int
}

// Total returns the number of completions across all kinds.
func (k KindCounts) Total() int {
	return k.Goals + k.Actions + k.Tasks
}

// PeriodStats holds the aggregates for one reporting period. Rates are
// defined as 0 when their denominator is 0, never an error.
type PeriodStats struct {
	// Start is the first instant of the period.
	Start time.Time

	// Label names the period ("2024-01-02", "2024-W05", "2024-01").
	Label string

	Completed KindCounts

	// Planned is the number of items due within the period.
	Planned int

	// CompletionRate is completed / planned.
	CompletionRate float64

	// Unplanned counts completions of items with neither a due date nor
	// a recurrence tag.
	Unplanned int

	// UnplannedRate is unplanned / completed.
	UnplannedRate float64

	// StoryPoints sums the estimates of completed items.
	StoryPoints int
}

// BudgetDay is one day of story point burn against the daily budget.
type BudgetDay struct {
	Date        time.Time
	Points      int
	Budget      int
	Utilization float64
}

// Reporter runs aggregate queries against one store.
type Reporter struct {
	store       *store.Store
	dailyBudget int
}

// New creates a Reporter with the configured daily story point budget.
func New(s *store.Store, dailyBudget int) *Reporter {
	return &Reporter{store: s, dailyBudget: dailyBudget}
}

// CompletionStats aggregates completions and plans over [from, to),
// one entry per period at the given granularity. Every period in the
// window is present, including empty ones.
func (r *Reporter) CompletionStats(
	ctx context.Context,
	g Granularity,
	from, to time.Time,
) ([]PeriodStats, error) {
	events, err := r.store.CompletionEventsBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	planned, err := r.store.DueItemsBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	buckets := make(map[time.Time]*PeriodStats)
	bucket := func(t time.Time) *PeriodStats {
		start := periodStart(t, g)
		b, ok := buckets[start]
		if !ok {
			b = &PeriodStats{Start: start, Label: periodLabel(start, g)}
			buckets[start] = b
		}
		return b
	}

	// Materialize every period in the window so empty ones report a
	// zero rate instead of being missing.
	for cur := periodStart(from, g); cur.Before(to); cur = nextPeriod(cur, g) {
		bucket(cur)
	}

	for _, item := range planned {
		bucket(*item.DueDate).Planned++
	}

	for _, e := range events {
		b := bucket(e.CompletedAt)
		switch e.Kind {
		case model.KindGoal:
			b.Completed.Goals++
		case model.KindAction:
			b.Completed.Actions++
		default:
			b.Completed.Tasks++
		}
		if !e.Planned() {
			b.Unplanned++
		}
		if e.StoryPoints != nil {
			b.StoryPoints += *e.StoryPoints
		}
	}

	var stats []PeriodStats
	for cur := periodStart(from, g); cur.Before(to); cur = nextPeriod(cur, g) {
		b := buckets[cur]
		b.CompletionRate = safeRate(b.Completed.Total(), b.Planned)
		b.UnplannedRate = safeRate(b.Unplanned, b.Completed.Total())
		stats = append(stats, *b)
	}

	return stats, nil
}

// BudgetBurn computes story points completed per day over [from, to)
// against the daily budget, one entry per day.
func (r *Reporter) BudgetBurn(
	ctx context.Context,
	from, to time.Time,
) ([]BudgetDay, error) {
	events, err := r.store.CompletionEventsBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	points := make(map[time.Time]int)
	for _, e := range events {
		if e.StoryPoints == nil {
			continue
		}
		points[periodStart(e.CompletedAt, Daily)] += *e.StoryPoints
	}

	var days []BudgetDay
	for cur := periodStart(from, Daily); cur.Before(to); cur = nextPeriod(cur, Daily) {
		p := points[cur]
		days = append(days, BudgetDay{
			Date:        cur,
			Points:      p,
			Budget:      r.dailyBudget,
			Utilization: safeRate(p, r.dailyBudget),
		})
	}

	return days, nil
}

// periodStart returns the first instant of t's period in UTC. Weeks are
// ISO weeks starting Monday.
func periodStart(t time.Time, g Granularity) time.Time {
	t = t.UTC()
	switch g {
	case Weekly:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
		return day.AddDate(0, 0, -offset)
	case Monthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

func nextPeriod(start time.Time, g Granularity) time.Time {
	switch g {
	case Weekly:
		return start.AddDate(0, 0, 7)
	case Monthly:
		return start.AddDate(0, 1, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}

func periodLabel(start time.Time, g Granularity) string {
	switch g {
	case Weekly:
		year, week := start.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case Monthly:
		return start.Format("2006-01")
	default:
		return start.Format("2006-01-02")
	}
}

// safeRate divides, defining x/0 as 0.
func safeRate(num, denom int) float64 {
	if denom == 0 {
		return 0
	}
	return float64(num) / float64(denom)
}
