// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL transports.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"
	"golang.org/x/sync/semaphore"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
)

const (
	defaultGraphURL       = "https://api.github.com/graphql"
	defaultMaxConnections = 10

	// GitHub answers 202 while it computes repository statistics in the
	// background; the request is retried this many times before giving up.
	defaultRetryLimit    = 67
	defaultRetryInterval = 2 * time.Second
)

// Querier defines the behavior of a gateway executing GitHub API requests.
type Querier interface {
	// GraphQL posts a query document to the v4 endpoint and returns the raw
	// response body. Any transport or decode failure is returned as an
	// error; callers are expected to treat it as absent data.
	GraphQL(ctx context.Context, document string) (json.RawMessage, error)
	// REST issues a GET against the v3 endpoint. The result may be a JSON
	// array or object depending on the path. A 202 "still processing"
	// response is retried up to a bounded number of attempts; exhausting
	// the bound yields an empty result and no error.
	REST(ctx context.Context, path string, params url.Values) (json.RawMessage, error)
}

// Client is the concrete implementation of the Querier interface. A single
// weighted semaphore bounds in-flight requests across both endpoints.
type Client struct {
	restClient *github.Client
	httpClient *http.Client
	graphURL   string
	sem        *semaphore.Weighted
	logger     *log.Logger

	retryLimit    int
	retryInterval time.Duration
}

// NewClient builds a Client whose requests are authenticated with the given
// token and throttled to maxConnections concurrent calls (the default of 10
// applies when maxConnections is zero or negative).
func NewClient(token string, maxConnections int64, logger *log.Logger) (*Client, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}
	if maxConnections <= 0 {
		maxConnections = defaultMaxConnections
	}
	return &Client{
		restClient:    github.NewClient(httpClient),
		httpClient:    httpClient,
		graphURL:      defaultGraphURL,
		sem:           semaphore.NewWeighted(maxConnections),
		logger:        logger,
		retryLimit:    defaultRetryLimit,
		retryInterval: defaultRetryInterval,
	}, nil
}

// GraphQL implements Querier.
func (c *Client) GraphQL(ctx context.Context, document string) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]string{"query": document})
	if err != nil {
		return nil, fmt.Errorf("failed to encode GraphQL request: %w", err)
	}
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GraphQL request failed: %w", err)
	}
	defer resp.Body.Close()

	var result json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode GraphQL response: %w", err)
	}
	return result, nil
}

// REST implements Querier.
func (c *Client) REST(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	path = strings.TrimPrefix(path, "/")
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}
	for attempt := 0; attempt < c.retryLimit; attempt++ {
		result, retry, err := c.restOnce(ctx, path)
		if err != nil {
			return nil, err
		}
		if !retry {
			return result, nil
		}
		c.logger.Printf("Path %s returned 202 (Processing). Retrying...", path)
		select {
		case <-time.After(c.retryInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	c.logger.Printf("There were too many 202s. Data for %s will be incomplete.", path)
	return json.RawMessage("{}"), nil
}

// restOnce performs a single REST attempt. The retry flag reports a 202
// response. The semaphore is held only for the duration of the attempt so
// a sleeping retry never consumes capacity.
func (c *Client) restOnce(ctx context.Context, path string) (json.RawMessage, bool, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, false, err
	}
	defer c.sem.Release(1)

	req, err := c.restClient.NewRequest(http.MethodGet, path, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to build REST request: %w", err)
	}
	var result json.RawMessage
	_, err = c.restClient.Do(ctx, req, &result)
	if err != nil {
		var accepted *github.AcceptedError
		if errors.As(err, &accepted) {
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("REST request for %s failed: %w", path, err)
	}
	return result, false, nil
}
