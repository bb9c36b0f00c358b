// Package workflowy fetches the outline service's export endpoints: the
// initialization payload and the full tree export. It is transport only;
// decoding the tree into nodes lives in the outline package.
package workflowy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	initializationPath = "/get_initialization_data" +
		"?client_version=21&client_version_v2=28&no_root_children=1"
	treeDataPath = "/get_tree_data"

	initializationCacheName = "initialization_data.json"
	treeDataCacheName       = "tree_data.json"

	maxRetries = 3
)

// AuthError indicates the session id is missing, expired, or rejected.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error: %s", e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// Client is a thin HTTP client for the outline service export API. It
// authenticates with the session cookie and retries transient failures
// (network errors, 429, 5xx) with exponential backoff.
type Client struct {
	baseURL    string
	session    string
	httpClient *http.Client
	cache      *Cache
	readCache  bool
}

// NewClient creates a client for the service rooted at baseURL. The
// session is the value of the service's session cookie. A non-nil cache
// receives every successful response; with readCache set, cached
// responses short-circuit the network entirely.
func NewClient(baseURL, session string, timeout time.Duration, cache *Cache, readCache bool) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		session: session,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		cache:     cache,
		readCache: readCache,
	}
}

// FetchInitializationData retrieves and decodes the initialization
// payload.
func (c *Client) FetchInitializationData(ctx context.Context) (*InitializationData, error) {
	body, err := c.get(ctx, initializationPath, initializationCacheName)
	if err != nil {
		return nil, err
	}

	var init InitializationData
	if err := json.Unmarshal(body, &init); err != nil {
		return nil, fmt.Errorf("decoding initialization data: %w", err)
	}
	return &init, nil
}

// FetchTreeData retrieves the raw tree export payload. Decoding is left
// to the caller so the same bytes can be snapshotted verbatim.
func (c *Client) FetchTreeData(ctx context.Context) ([]byte, error) {
	return c.get(ctx, treeDataPath, treeDataCacheName)
}

// get performs a GET with session auth, retry, and cache read/write.
func (c *Client) get(ctx context.Context, path, cacheName string) ([]byte, error) {
	if c.readCache && c.cache != nil {
		if data, ok := c.cache.Load(cacheName); ok {
			return data, nil
		}
	}

	var body []byte
	op := func() error {
		req, err := http.NewRequestWithContext(
			ctx, http.MethodGet, c.baseURL+path, nil,
		)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		req.AddCookie(&http.Cookie{Name: "sessionid", Value: c.session})

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing request GET %s: %w", path, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized ||
			resp.StatusCode == http.StatusForbidden:
			return backoff.Permanent(&AuthError{
				Message: "session rejected, log in again",
			})
		case resp.StatusCode == http.StatusTooManyRequests ||
			resp.StatusCode >= 500:
			return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(
				fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response body: %w", err)
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Save(cacheName, body); err != nil {
			return nil, fmt.Errorf("caching %s: %w", cacheName, err)
		}
	}

	return body, nil
}
