package workflowy_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/outline-metrics/internal/source/workflowy"
)

const initPayload = `{
	"projectTreeData": {
		"mainProjectTreeInfo": {
			"dateJoinedTimestampInSeconds": 1577836800
		}
	}
}`

func TestFetchInitializationData(t *testing.T) {
	var gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("sessionid"); err == nil {
			gotCookie = c.Value
		}
		w.Write([]byte(initPayload))
	}))
	defer srv.Close()

	c := workflowy.NewClient(srv.URL, "s3cret", 5*time.Second, nil, false)

	init, err := c.FetchInitializationData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1577836800), init.DateJoined())
	assert.Equal(t, "s3cret", gotCookie)
}

func TestFetchTreeDataReturnsRawBytes(t *testing.T) {
	payload := `{"items": []}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	c := workflowy.NewClient(srv.URL, "s3cret", 5*time.Second, nil, false)

	raw, err := c.FetchTreeData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, payload, string(raw))
}

func TestRejectedSessionIsAuthError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := workflowy.NewClient(srv.URL, "expired", 5*time.Second, nil, false)

	_, err := c.FetchTreeData(context.Background())
	require.Error(t, err)
	assert.True(t, workflowy.IsAuthError(err))
	// Auth failures are permanent; no retries.
	assert.Equal(t, 1, calls)
}

func TestRetriesTransientServerError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"items": []}`))
	}))
	defer srv.Close()

	c := workflowy.NewClient(srv.URL, "s3cret", 5*time.Second, nil, false)

	_, err := c.FetchTreeData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCachedResponseSkipsNetwork(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"items": []}`))
	}))
	defer srv.Close()

	cache, err := workflowy.NewCache(t.TempDir())
	require.NoError(t, err)

	// First client populates the cache over the network.
	warm := workflowy.NewClient(srv.URL, "s3cret", 5*time.Second, cache, false)
	_, err = warm.FetchTreeData(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	// Second client reads the cache without touching the server.
	cold := workflowy.NewClient(srv.URL, "s3cret", 5*time.Second, cache, true)
	raw, err := cold.FetchTreeData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"items": []}`, string(raw))
	assert.Equal(t, 1, calls)
}
