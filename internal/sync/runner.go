// Package sync runs one batch pass of the pipeline: decode the tree
// export, flatten it, parse tag annotations, and load the normalized
// records into the store. One pass runs to completion before the next;
// there is no background polling.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/outline-metrics/internal/model"
	"github.com/nhle/outline-metrics/internal/outline"
	"github.com/nhle/outline-metrics/internal/store"
	"github.com/nhle/outline-metrics/internal/tagparse"
)

// Diagnostic records a per-item problem from a pass: either a skipped
// item or a parse warning on an item that was still loaded.
type Diagnostic struct {
	ItemID  string
	Reason  string
	Skipped bool
}

// Options tunes a single pass.
type Options struct {
	// DryRun parses and reports but writes nothing.
	DryRun bool
}

// Result summarizes a completed pass.
type Result struct {
	RunID    string
	Seen     int
	Loaded   int
	Skipped  int
	Warnings int

	Inserted  int
	Updated   int
	Unchanged int

	Diagnostics []Diagnostic
	Duration    time.Duration
}

// Runner executes sync passes against one store with one tag grammar.
type Runner struct {
	store  *store.Store
	parser *tagparse.Parser
	log    *slog.Logger
}

// NewRunner creates a Runner. A nil logger falls back to slog.Default.
func NewRunner(s *store.Store, p *tagparse.Parser, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{store: s, parser: p, log: log}
}

// Run executes one pass over a raw tree export. dateJoined anchors the
// export's relative completion offsets. Per-item problems are recorded
// and skipped over; only a malformed payload or a storage failure aborts
// the pass, and a storage failure rolls the whole pass back.
func (r *Runner) Run(
	ctx context.Context,
	export []byte,
	dateJoined time.Time,
	opts Options,
) (*Result, error) {
	started := time.Now()

	tree, problems, err := outline.ParseExport(export)
	if err != nil {
		return nil, err
	}

	flat, flatProblems := outline.Flatten(tree)
	problems = append(problems, flatProblems...)

	res := &Result{
		RunID: uuid.New().String(),
		Seen:  len(flat),
	}
	for _, p := range problems {
		d := Diagnostic{ItemID: p.NodeID, Reason: p.Reason, Skipped: p.Dropped}
		res.Diagnostics = append(res.Diagnostics, d)
		if p.Dropped {
			// Dropped nodes never made it into flat, so they count as
			// seen here.
			res.Seen++
			res.Skipped++
			r.log.Warn("item skipped", "item", p.NodeID, "reason", p.Reason)
		} else {
			res.Warnings++
			r.log.Warn("item degraded", "item", p.NodeID, "reason", p.Reason)
		}
	}

	items := r.normalize(flat, dateJoined, res)
	res.Loaded = len(items)

	if !opts.DryRun {
		pass, err := r.store.UpsertPass(ctx, items, model.SyncRun{
			ID:           res.RunID,
			StartedAt:    started,
			FinishedAt:   time.Now(),
			ItemsSeen:    res.Seen,
			ItemsLoaded:  res.Loaded,
			ItemsSkipped: res.Skipped,
			Warnings:     res.Warnings,
		})
		if err != nil {
			return nil, fmt.Errorf("loading pass: %w", err)
		}
		res.Inserted = pass.Inserted
		res.Updated = pass.Updated
		res.Unchanged = pass.Unchanged
	}

	res.Duration = time.Since(started)
	r.log.Info("sync pass finished",
		"run", res.RunID,
		"seen", res.Seen,
		"loaded", res.Loaded,
		"skipped", res.Skipped,
		"warnings", res.Warnings,
		"dry_run", opts.DryRun,
	)

	return res, nil
}

// normalize turns flat nodes into work items: tag annotations, resolved
// completion times, and rendered ancestor chains. Parse warnings are
// appended to the result; the items still load with the affected field
// empty.
func (r *Runner) normalize(
	flat []outline.FlatNode,
	dateJoined time.Time,
	res *Result,
) []model.WorkItem {
	parsed := make(map[string]tagparse.Annotations, len(flat))
	parents := make(map[string]*string, len(flat))
	for _, f := range flat {
		parsed[f.ID] = r.parser.Parse(f.Text)
		parents[f.ID] = f.ParentID
	}

	items := make([]model.WorkItem, 0, len(flat))
	for _, f := range flat {
		a := parsed[f.ID]

		for _, w := range a.Warnings {
			res.Warnings++
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				ItemID: f.ID,
				Reason: w.String(),
			})
			r.log.Warn("parse warning",
				"item", f.ID, "field", w.Field, "token", w.Token,
				"reason", w.Reason)
		}

		item := model.WorkItem{
			ID:            f.ID,
			ParentID:      f.ParentID,
			Title:         a.Title,
			RawText:       f.Text,
			Ancestors:     ancestorChain(f.ID, parents, parsed),
			Depth:         f.Depth,
			Position:      f.Position,
			Kind:          a.Kind,
			GoalTimeframe: a.GoalTimeframe,
			Recurrence:    a.Recurrence,
			StoryPoints:   a.StoryPoints,
			Contexts:      a.Contexts,
			DueDate:       a.DueDate,
			Milestone:     a.Milestone,
			OnDeck:        a.OnDeck,
		}
		if f.Completed != nil {
			done := dateJoined.Add(time.Duration(*f.Completed) * time.Second).UTC()
			item.CompletedAt = &done
		}

		items = append(items, item)
	}

	return items
}

// ancestorChain renders the parent chain as cleaned titles, immediate
// parent first ("August < Q3 < 2025"). The flattener guarantees the
// chain is acyclic; the hop limit is a backstop.
func ancestorChain(
	id string,
	parents map[string]*string,
	parsed map[string]tagparse.Annotations,
) string {
	var names []string
	cur := parents[id]
	for hops := 0; cur != nil && hops < len(parents); hops++ {
		names = append(names, parsed[*cur].Title)
		cur = parents[*cur]
	}
	return strings.Join(names, " < ")
}
