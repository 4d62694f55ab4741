package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/c360studio/repopulse/api"
	"github.com/c360studio/repopulse/metrics"
)

// Client sends chat requests and consumes the streamed responses.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(client *Client) {
		client.logger = logger
	}
}

// NewClient creates a chat client for the given backend base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		// No Timeout: responses stream for as long as generation takes.
		// Lifetime is governed by the request context.
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// sendRequest is the chat request wire shape.
type sendRequest struct {
	Messages    []Message   `json:"messages"`
	RepoContext RepoContext `json:"repoContext"`
}

// Send posts the message history with its repo context and streams the
// response, delivering each delta to onChunk. It returns the final response
// text. Failures carried as {error} records or non-2xx statuses come back
// as *ResponseError.
func (c *Client) Send(ctx context.Context, messages []Message, repoCtx RepoContext, onChunk ChunkFunc) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("at least one message is required")
	}

	requestID := uuid.New().String()
	log := c.logger.With("request_id", requestID)

	body, err := json.Marshal(sendRequest{Messages: messages, RepoContext: repoCtx})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	log.Debug("Sending chat request", "messages", len(messages))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ChatFailures.Inc()
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		metrics.ChatFailures.Inc()
		return "", &ResponseError{
			Message: api.ErrorMessage(resp.StatusCode, resp.Header.Get("Content-Type"), respBody),
		}
	}

	full, err := ReadStream(ctx, resp.Body, onChunk)
	if err != nil {
		metrics.ChatFailures.Inc()
		log.Debug("Chat stream failed", "error", err)
		return "", err
	}

	return full, nil
}
