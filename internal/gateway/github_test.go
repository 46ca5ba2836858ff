package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"
)

// setupTestClient creates a Client that communicates with a mock HTTP server.
func setupTestClient(t *testing.T, handler http.Handler, maxConnections int64) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	// Point the REST client at the mock server.
	restClient := github.NewClient(server.Client())
	baseURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	restClient.BaseURL = baseURL

	client := &Client{
		restClient:    restClient,
		httpClient:    server.Client(),
		graphURL:      server.URL + "/graphql",
		sem:           semaphore.NewWeighted(maxConnections),
		logger:        log.New(io.Discard, "", 0),
		retryLimit:    5,
		retryInterval: time.Millisecond,
	}
	return client, server
}

func TestClient_GraphQL(t *testing.T) {
	testCases := []struct {
		name        string
		handlerFunc func(w http.ResponseWriter, r *http.Request)
		expectBody  string
		expectError bool
	}{
		{
			name: "happy path - posts the document and returns the body",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				body, err := io.ReadAll(r.Body)
				require.NoError(t, err)
				var payload map[string]string
				require.NoError(t, json.Unmarshal(body, &payload))
				assert.Equal(t, "query { viewer { login } }", payload["query"])
				fmt.Fprint(w, `{"data":{"viewer":{"login":"octocat"}}}`)
			},
			expectBody: `{"data":{"viewer":{"login":"octocat"}}}`,
		},
		{
			name: "error case - response is not JSON",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `<html>bad gateway</html>`)
			},
			expectError: true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := setupTestClient(t, http.HandlerFunc(tc.handlerFunc), 1)
			result, err := client.GraphQL(context.Background(), "query { viewer { login } }")
			if tc.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.JSONEq(t, tc.expectBody, string(result))
			}
		})
	}
}

func TestClient_REST(t *testing.T) {
	t.Run("happy path - returns a JSON list", func(t *testing.T) {
		handler := func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/repos/org/repo/stats/contributors", r.URL.Path)
			fmt.Fprint(w, `[{"total": 3}]`)
		}
		client, _ := setupTestClient(t, http.HandlerFunc(handler), 1)
		result, err := client.REST(context.Background(), "/repos/org/repo/stats/contributors", nil)
		assert.NoError(t, err)
		assert.JSONEq(t, `[{"total": 3}]`, string(result))
	})

	t.Run("query parameters are encoded into the request", func(t *testing.T) {
		handler := func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "weekly", r.URL.Query().Get("per"))
			fmt.Fprint(w, `{}`)
		}
		client, _ := setupTestClient(t, http.HandlerFunc(handler), 1)
		_, err := client.REST(context.Background(), "repos/org/repo/traffic/views", url.Values{"per": {"weekly"}})
		assert.NoError(t, err)
	})

	t.Run("202 is retried until the data is ready", func(t *testing.T) {
		var calls atomic.Int64
		handler := func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusAccepted)
				return
			}
			fmt.Fprint(w, `{"ready": true}`)
		}
		client, _ := setupTestClient(t, http.HandlerFunc(handler), 1)
		result, err := client.REST(context.Background(), "repos/org/repo/stats/contributors", nil)
		assert.NoError(t, err)
		assert.JSONEq(t, `{"ready": true}`, string(result))
		assert.EqualValues(t, 3, calls.Load())
	})

	t.Run("retry bound - exactly the configured attempts, then an empty result", func(t *testing.T) {
		var calls atomic.Int64
		handler := func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusAccepted)
		}
		client, _ := setupTestClient(t, http.HandlerFunc(handler), 1)
		result, err := client.REST(context.Background(), "repos/org/repo/stats/contributors", nil)
		assert.NoError(t, err)
		assert.JSONEq(t, `{}`, string(result))
		assert.EqualValues(t, client.retryLimit, calls.Load())
	})

	t.Run("hard failure short-circuits with an error", func(t *testing.T) {
		var calls atomic.Int64
		handler := func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"message": "boom"}`)
		}
		client, _ := setupTestClient(t, http.HandlerFunc(handler), 1)
		_, err := client.REST(context.Background(), "repos/org/repo/stats/contributors", nil)
		assert.Error(t, err)
		assert.EqualValues(t, 1, calls.Load())
	})
}

// TestClient_ConcurrencyCeiling verifies the shared gate bounds in-flight
// requests across both endpoints and never leaks permits.
func TestClient_ConcurrencyCeiling(t *testing.T) {
	const ceiling = 3
	var inFlight, peak atomic.Int64
	handler := func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		fmt.Fprint(w, `{}`)
	}
	client, _ := setupTestClient(t, http.HandlerFunc(handler), ceiling)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = client.GraphQL(context.Background(), "query {}")
			} else {
				_, err = client.REST(context.Background(), "repos/org/repo/traffic/views", nil)
			}
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(ceiling))
	// All permits released: the full ceiling is immediately acquirable.
	assert.True(t, client.sem.TryAcquire(ceiling))
}

func TestNewClient_Defaults(t *testing.T) {
	client, err := NewClient("token", 0, log.New(io.Discard, "", 0))
	require.NoError(t, err)
	assert.True(t, client.sem.TryAcquire(defaultMaxConnections))
	assert.False(t, client.sem.TryAcquire(1))
	assert.Equal(t, defaultRetryLimit, client.retryLimit)
}
