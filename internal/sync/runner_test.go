package sync_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/outline-metrics/internal/model"
	"github.com/nhle/outline-metrics/internal/store"
	"github.com/nhle/outline-metrics/internal/sync"
	"github.com/nhle/outline-metrics/internal/tagparse"
	"github.com/nhle/outline-metrics/tests/testutil"
)

var dateJoined = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func newRunner(t *testing.T) (*sync.Runner, *store.Store) {
	t.Helper()

	s := testutil.NewTestStore(t)
	p, err := tagparse.New(model.DefaultAppConfig().Tags)
	require.NoError(t, err)
	p = p.WithReference(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))

	return sync.NewRunner(s, p, nil), s
}

const threeItemOutline = `{
	"items": [
		{"id": "root", "nm": "2024 Plans", "prnt": "None"},
		{"id": "t1", "nm": "Ship report #Action #4STP @office Due Jan 1, 2024", "prnt": "root", "cp": 126180000},
		{"id": "t2", "nm": "Standup #Daily", "prnt": "root"}
	]
}`

func TestRunLoadsOutline(t *testing.T) {
	r, s := newRunner(t)
	ctx := context.Background()

	res, err := r.Run(ctx, []byte(threeItemOutline), dateJoined, sync.Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Seen)
	assert.Equal(t, 3, res.Loaded)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, 3, res.Inserted)

	item, err := s.GetItem(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, item)

	assert.Equal(t, "Ship report", item.Title)
	assert.Equal(t, model.KindAction, item.Kind)
	require.NotNil(t, item.StoryPoints)
	assert.Equal(t, 4, *item.StoryPoints)
	assert.Equal(t, []string{"office"}, item.Contexts)
	require.NotNil(t, item.DueDate)
	assert.True(t, item.DueDate.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NotNil(t, item.CompletedAt)
	assert.True(t, item.CompletedAt.Equal(dateJoined.Add(126180000*time.Second)))
	assert.Equal(t, "2024 Plans", item.Ancestors)
	assert.Equal(t, 1, item.Depth)
}

func TestRunTwiceIsIdempotent(t *testing.T) {
	r, s := newRunner(t)
	ctx := context.Background()

	first, err := r.Run(ctx, []byte(threeItemOutline), dateJoined, sync.Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, first.Inserted)

	countAfterFirst, err := s.ItemCount(ctx)
	require.NoError(t, err)

	second, err := r.Run(ctx, []byte(threeItemOutline), dateJoined, sync.Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, 3, second.Unchanged)

	countAfterSecond, err := s.ItemCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, countAfterFirst, countAfterSecond)
}

func TestRunSkipsBrokenItemsAndContinues(t *testing.T) {
	r, s := newRunner(t)
	ctx := context.Background()

	payload := `{
		"items": [
			{"id": "", "nm": "no identifier", "prnt": "None"},
			{"id": "ok", "nm": "Survivor #Action", "prnt": "None"}
		]
	}`

	res, err := r.Run(ctx, []byte(payload), dateJoined, sync.Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Seen)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Loaded)

	item, err := s.GetItem(ctx, "ok")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, model.KindAction, item.Kind)
}

func TestRunLoadsItemWithUnparseableDueDate(t *testing.T) {
	r, s := newRunner(t)
	ctx := context.Background()

	payload := `{
		"items": [
			{"id": "fence", "nm": "Fix the fence Due Soonish", "prnt": "None"}
		]
	}`

	res, err := r.Run(ctx, []byte(payload), dateJoined, sync.Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Loaded)
	assert.Equal(t, 1, res.Warnings)
	require.Len(t, res.Diagnostics, 1)
	assert.False(t, res.Diagnostics[0].Skipped)

	item, err := s.GetItem(ctx, "fence")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Nil(t, item.DueDate)
	assert.Equal(t, "Fix the fence", item.Title)
}

func TestRunDryRunWritesNothing(t *testing.T) {
	r, s := newRunner(t)
	ctx := context.Background()

	res, err := r.Run(ctx, []byte(threeItemOutline), dateJoined, sync.Options{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Loaded)

	count, err := s.ItemCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	run, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestRunMalformedExportFails(t *testing.T) {
	r, _ := newRunner(t)

	_, err := r.Run(context.Background(), []byte("not json"), dateJoined, sync.Options{})
	assert.Error(t, err)
}

func TestRunRecordsSyncRun(t *testing.T) {
	r, s := newRunner(t)
	ctx := context.Background()

	res, err := r.Run(ctx, []byte(threeItemOutline), dateJoined, sync.Options{})
	require.NoError(t, err)

	run, err := s.LatestRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, res.RunID, run.ID)
	assert.Equal(t, 3, run.ItemsSeen)
	assert.Equal(t, 3, run.ItemsLoaded)
}
