// Package api provides the request/response client for the dashboard
// backend: full snapshot fetches, playbook fetches, and the shared error
// taxonomy every endpoint follows.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/c360studio/repopulse/metrics"
	"github.com/c360studio/repopulse/snapshot"
)

// maxResponseSize limits response bodies to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Client fetches authoritative repository state from the backend.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	retryConfig RetryConfig
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(client *Client) {
		client.retryConfig = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(client *Client) {
		client.logger = logger
	}
}

// NewClient creates a backend client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		retryConfig: DefaultRetryConfig(),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FetchRepository fetches the full repository snapshot. This is both the
// initial load and the authoritative refetch that settles optimistic state.
func (c *Client) FetchRepository(ctx context.Context, owner, repo string) (*snapshot.RepoSnapshot, error) {
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("owner and repo are required")
	}

	path := fmt.Sprintf("/api/repos/%s/%s", url.PathEscape(owner), url.PathEscape(repo))

	var snap snapshot.RepoSnapshot
	if err := c.getJSON(ctx, path, &snap); err != nil {
		return nil, fmt.Errorf("fetch repository %s/%s: %w", owner, repo, err)
	}

	metrics.SnapshotRefetches.Inc()
	return &snap, nil
}

// Playbook is the playbook document re-fetched whenever the push channel
// bumps the playbook generation.
type Playbook struct {
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// FetchPlaybook fetches the current playbook content for a repository.
func (c *Client) FetchPlaybook(ctx context.Context, owner, repo string) (*Playbook, error) {
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("owner and repo are required")
	}

	path := fmt.Sprintf("/api/repos/%s/%s/playbook", url.PathEscape(owner), url.PathEscape(repo))

	var pb Playbook
	if err := c.getJSON(ctx, path, &pb); err != nil {
		return nil, fmt.Errorf("fetch playbook %s/%s: %w", owner, repo, err)
	}

	return &pb, nil
}

// getJSON performs a GET with retry on transient failures and decodes the
// JSON response into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	var lastErr error

	for attempt := 1; attempt <= c.retryConfig.MaxAttempts; attempt++ {
		err := c.doGet(ctx, path, out)
		if err == nil {
			return nil
		}

		lastErr = err

		if IsFatal(err) {
			return err
		}

		if attempt < c.retryConfig.MaxAttempts {
			backoff := c.calculateBackoff(attempt)
			c.logger.Debug("Request failed, retrying",
				"path", path,
				"attempt", attempt,
				"max_attempts", c.retryConfig.MaxAttempts,
				"backoff", backoff,
				"error", err)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				// Continue to retry
			}
		}
	}

	return lastErr
}

func (c *Client) doGet(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return NewFatalError(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors are transient
		return NewTransientError(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return NewTransientError(fmt.Errorf("read response body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return ClassifyHTTPError(resp.StatusCode, resp.Header.Get("Content-Type"), body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return NewFatalError(fmt.Errorf("decode response: %w", err))
	}

	return nil
}

// calculateBackoff computes exponential backoff duration with jitter.
// Jitter prevents thundering herd when multiple clients retry simultaneously.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= c.retryConfig.BackoffMultiplier
	}

	backoff := time.Duration(float64(c.retryConfig.BackoffBase) * multiplier)
	if backoff > c.retryConfig.MaxBackoff {
		backoff = c.retryConfig.MaxBackoff
	}

	// Add jitter: +/- 25% to prevent synchronized retries
	jitter := float64(backoff) * 0.25 * (rand.Float64()*2 - 1)
	return backoff + time.Duration(jitter)
}
