package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/outline-metrics/internal/model"
)

// passLockKey is the advisory lock id serializing sync passes on
// Postgres. SQLite passes serialize on the write transaction itself.
const passLockKey int64 = 0x6f75746c

// PassResult summarizes what a single upsert pass changed.
type PassResult struct {
	Inserted  int
	Updated   int
	Unchanged int
}

const itemColumns = `id, parent_id, title, raw_text, ancestors, depth,
	position, kind, goal_timeframe, recurrence, story_points, due_date,
	completed_at, milestone, on_deck, created_at, updated_at`

// UpsertPass applies one full sync pass inside a single transaction: each
// item's external id is the natural key, existing rows are updated in
// place, and rows absent from items are left untouched (the source is
// authoritative; absence is not deletion). Rows whose derived state is
// unchanged are not written at all, so re-running a pass on identical
// input produces zero row diffs. A failure anywhere rolls the whole pass
// back, including its sync_runs record.
func (s *Store) UpsertPass(
	ctx context.Context,
	items []model.WorkItem,
	run model.SyncRun,
) (*PassResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning pass transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.lockPass(ctx, tx); err != nil {
		return nil, err
	}

	now := run.StartedAt.UTC()
	res := &PassResult{}

	for _, item := range items {
		existing, err := getItemTx(ctx, tx, item.ID)
		if err != nil {
			return nil, err
		}

		switch {
		case existing == nil:
			if err := insertItemTx(ctx, tx, item, now); err != nil {
				return nil, err
			}
			if err := setItemContextsTx(ctx, tx, item.ID, item.Contexts, now); err != nil {
				return nil, err
			}
			res.Inserted++
		case derivedEqual(*existing, item):
			res.Unchanged++
		default:
			if err := updateItemTx(ctx, tx, item, now); err != nil {
				return nil, err
			}
			if err := setItemContextsTx(ctx, tx, item.ID, item.Contexts, now); err != nil {
				return nil, err
			}
			res.Updated++
		}
	}

	if err := insertRunTx(ctx, tx, run); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing pass: %w", err)
	}
	return res, nil
}

// lockPass takes the advisory lock that keeps two passes from
// interleaving. On sqlite the write transaction plus busy_timeout
// already serializes writers.
func (s *Store) lockPass(ctx context.Context, tx *sqlx.Tx) error {
	if s.driver != "postgres" {
		return nil
	}
	query := tx.Rebind("SELECT pg_advisory_xact_lock(?)")
	if _, err := tx.ExecContext(ctx, query, passLockKey); err != nil {
		return fmt.Errorf("acquiring pass lock: %w", err)
	}
	return nil
}

// GetItem retrieves a single work item with its contexts, or (nil, nil)
// when no row exists.
func (s *Store) GetItem(ctx context.Context, id string) (*model.WorkItem, error) {
	var item model.WorkItem
	query := s.db.Rebind("SELECT " + itemColumns + " FROM work_items WHERE id = ?")
	err := s.db.GetContext(ctx, &item, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item %s: %w", id, err)
	}

	query = s.db.Rebind(`
		SELECT c.name FROM contexts c
		JOIN item_contexts ic ON ic.context_id = c.id
		WHERE ic.item_id = ?
		ORDER BY c.name`)
	if err := s.db.SelectContext(ctx, &item.Contexts, query, id); err != nil {
		return nil, fmt.Errorf("getting contexts for item %s: %w", id, err)
	}

	return &item, nil
}

// ItemCount returns the number of work item rows.
func (s *Store) ItemCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM work_items")
	if err != nil {
		return 0, fmt.Errorf("counting items: %w", err)
	}
	return count, nil
}

// CompletionEventsBetween returns completion events with
// from <= completed_at < to, in completion order.
func (s *Store) CompletionEventsBetween(
	ctx context.Context,
	from, to time.Time,
) ([]model.CompletionEvent, error) {
	query := s.db.Rebind(`
		SELECT item_id, kind, recurrence, story_points, due_date, completed_at
		FROM completion_events
		WHERE completed_at >= ? AND completed_at < ?
		ORDER BY completed_at`)

	var events []model.CompletionEvent
	err := s.db.SelectContext(ctx, &events, query, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("querying completion events: %w", err)
	}
	return events, nil
}

// DueItemsBetween returns items with from <= due_date < to. These are
// the "planned" items of a reporting period.
func (s *Store) DueItemsBetween(
	ctx context.Context,
	from, to time.Time,
) ([]model.WorkItem, error) {
	query := s.db.Rebind(`
		SELECT ` + itemColumns + `
		FROM work_items
		WHERE due_date >= ? AND due_date < ?
		ORDER BY due_date`)

	var items []model.WorkItem
	err := s.db.SelectContext(ctx, &items, query, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("querying due items: %w", err)
	}
	return items, nil
}

// LatestRun returns the most recent sync pass record, or (nil, nil) when
// no pass has run yet.
func (s *Store) LatestRun(ctx context.Context) (*model.SyncRun, error) {
	var run model.SyncRun
	err := s.db.GetContext(ctx, &run, `
		SELECT id, started_at, finished_at, items_seen, items_loaded,
		       items_skipped, warnings
		FROM sync_runs
		ORDER BY started_at DESC
		LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting latest run: %w", err)
	}
	return &run, nil
}

// getItemTx loads an item and its contexts inside the pass transaction;
// nil when absent.
func getItemTx(ctx context.Context, tx *sqlx.Tx, id string) (*model.WorkItem, error) {
	var item model.WorkItem
	query := tx.Rebind("SELECT " + itemColumns + " FROM work_items WHERE id = ?")
	err := tx.GetContext(ctx, &item, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item %s: %w", id, err)
	}

	query = tx.Rebind(`
		SELECT c.name FROM contexts c
		JOIN item_contexts ic ON ic.context_id = c.id
		WHERE ic.item_id = ?
		ORDER BY c.name`)
	if err := tx.SelectContext(ctx, &item.Contexts, query, id); err != nil {
		return nil, fmt.Errorf("getting contexts for item %s: %w", id, err)
	}

	return &item, nil
}

func insertItemTx(ctx context.Context, tx *sqlx.Tx, item model.WorkItem, now time.Time) error {
	query := tx.Rebind(`
		INSERT INTO work_items (` + itemColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := tx.ExecContext(ctx, query,
		item.ID, item.ParentID, item.Title, item.RawText, item.Ancestors,
		item.Depth, item.Position, string(item.Kind), item.GoalTimeframe,
		string(item.Recurrence), item.StoryPoints,
		utcPtr(item.DueDate), utcPtr(item.CompletedAt),
		boolToInt(item.Milestone), boolToInt(item.OnDeck),
		now, now,
	)
	if err != nil {
		return fmt.Errorf("inserting item %s: %w", item.ID, err)
	}
	return nil
}

func updateItemTx(ctx context.Context, tx *sqlx.Tx, item model.WorkItem, now time.Time) error {
	query := tx.Rebind(`
		UPDATE work_items SET
			parent_id = ?, title = ?, raw_text = ?, ancestors = ?,
			depth = ?, position = ?, kind = ?, goal_timeframe = ?,
			recurrence = ?, story_points = ?, due_date = ?,
			completed_at = ?, milestone = ?, on_deck = ?, updated_at = ?
		WHERE id = ?`)

	_, err := tx.ExecContext(ctx, query,
		item.ParentID, item.Title, item.RawText, item.Ancestors,
		item.Depth, item.Position, string(item.Kind), item.GoalTimeframe,
		string(item.Recurrence), item.StoryPoints,
		utcPtr(item.DueDate), utcPtr(item.CompletedAt),
		boolToInt(item.Milestone), boolToInt(item.OnDeck),
		now, item.ID,
	)
	if err != nil {
		return fmt.Errorf("updating item %s: %w", item.ID, err)
	}
	return nil
}

// setItemContextsTx rebuilds the item's context links from scratch.
func setItemContextsTx(
	ctx context.Context,
	tx *sqlx.Tx,
	itemID string,
	names []string,
	now time.Time,
) error {
	query := tx.Rebind("DELETE FROM item_contexts WHERE item_id = ?")
	if _, err := tx.ExecContext(ctx, query, itemID); err != nil {
		return fmt.Errorf("clearing contexts for item %s: %w", itemID, err)
	}

	for _, name := range names {
		contextID, err := ensureContextTx(ctx, tx, name, now)
		if err != nil {
			return err
		}
		query := tx.Rebind(
			"INSERT INTO item_contexts (item_id, context_id) VALUES (?, ?)")
		if _, err := tx.ExecContext(ctx, query, itemID, contextID); err != nil {
			return fmt.Errorf("linking context %q to item %s: %w", name, itemID, err)
		}
	}
	return nil
}

// ensureContextTx returns the id of the named context, creating the row
// on first use.
func ensureContextTx(ctx context.Context, tx *sqlx.Tx, name string, now time.Time) (string, error) {
	var id string
	query := tx.Rebind("SELECT id FROM contexts WHERE name = ?")
	err := tx.GetContext(ctx, &id, query, name)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("looking up context %q: %w", name, err)
	}

	id = uuid.New().String()
	query = tx.Rebind(
		"INSERT INTO contexts (id, name, created_at) VALUES (?, ?, ?)")
	if _, err := tx.ExecContext(ctx, query, id, name, now); err != nil {
		return "", fmt.Errorf("creating context %q: %w", name, err)
	}
	return id, nil
}

func insertRunTx(ctx context.Context, tx *sqlx.Tx, run model.SyncRun) error {
	query := tx.Rebind(`
		INSERT INTO sync_runs
			(id, started_at, finished_at, items_seen, items_loaded,
			 items_skipped, warnings)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)

	_, err := tx.ExecContext(ctx, query,
		run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(),
		run.ItemsSeen, run.ItemsLoaded, run.ItemsSkipped, run.Warnings,
	)
	if err != nil {
		return fmt.Errorf("recording sync run %s: %w", run.ID, err)
	}
	return nil
}

// derivedEqual reports whether the stored row already carries the same
// derived state as the freshly parsed item. Timestamps of the row itself
// (created_at, updated_at) are bookkeeping, not derived state.
func derivedEqual(stored, parsed model.WorkItem) bool {
	return strPtrEqual(stored.ParentID, parsed.ParentID) &&
		stored.Title == parsed.Title &&
		stored.RawText == parsed.RawText &&
		stored.Ancestors == parsed.Ancestors &&
		stored.Depth == parsed.Depth &&
		stored.Position == parsed.Position &&
		stored.Kind == parsed.Kind &&
		stored.GoalTimeframe == parsed.GoalTimeframe &&
		stored.Recurrence == parsed.Recurrence &&
		intPtrEqual(stored.StoryPoints, parsed.StoryPoints) &&
		timePtrEqual(stored.DueDate, parsed.DueDate) &&
		timePtrEqual(stored.CompletedAt, parsed.CompletedAt) &&
		stored.Milestone == parsed.Milestone &&
		stored.OnDeck == parsed.OnDeck &&
		contextsEqual(stored.Contexts, parsed.Contexts)
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.UTC().Equal(b.UTC())
}

// contextsEqual compares context sets; order is presentation detail.
func contextsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
