package workflowy_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/outline-metrics/internal/source/workflowy"
)

func TestHistorySaveAndLatest(t *testing.T) {
	h, err := workflowy.NewHistory(t.TempDir())
	require.NoError(t, err)

	_, err = h.Save([]byte("old"), time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	path, err := h.Save([]byte("new"), time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2024.03.15.09.30.00.json", filepath.Base(path))

	latest, err := h.Latest()
	require.NoError(t, err)
	assert.Equal(t, "new", string(latest))
}

func TestHistoryListIsChronological(t *testing.T) {
	h, err := workflowy.NewHistory(t.TempDir())
	require.NoError(t, err)

	// Saved out of order; List must still sort oldest first.
	_, err = h.Save([]byte("b"), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	_, err = h.Save([]byte("a"), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	names, err := h.List()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"2024.01.01.00.00.00.json",
		"2024.02.01.00.00.00.json",
	}, names)
}

func TestHistoryLatestEmpty(t *testing.T) {
	h, err := workflowy.NewHistory(t.TempDir())
	require.NoError(t, err)

	_, err = h.Latest()
	assert.ErrorIs(t, err, workflowy.ErrNoSnapshots)
}
