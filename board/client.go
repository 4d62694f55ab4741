package board

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/c360studio/repopulse/api"
)

// maxResponseSize limits task endpoint response bodies.
const maxResponseSize = 1 * 1024 * 1024 // 1MB

// Client calls the task board endpoints. Every error payload follows the
// {error} convention; non-2xx responses are decoded through it.
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

// NewClient creates a task board client for the given backend base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ListTasks fetches the authoritative task list.
func (c *Client) ListTasks(ctx context.Context) ([]Task, error) {
	var tasks []Task
	if err := c.do(ctx, http.MethodGet, "/api/tasks", nil, &tasks); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// CreateTask creates a task and returns the server's version of it.
func (c *Client) CreateTask(ctx context.Context, task Task) (*Task, error) {
	var created Task
	if err := c.do(ctx, http.MethodPost, "/api/tasks", task, &created); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return &created, nil
}

// UpdateTask updates a task and returns the server's version of it.
func (c *Client) UpdateTask(ctx context.Context, task Task) (*Task, error) {
	var updated Task
	path := "/api/tasks/" + url.PathEscape(task.ID)
	if err := c.do(ctx, http.MethodPatch, path, task, &updated); err != nil {
		return nil, fmt.Errorf("update task %s: %w", task.ID, err)
	}
	return &updated, nil
}

// DeleteTask deletes a task.
func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	path := "/api/tasks/" + url.PathEscape(taskID)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("delete task %s: %w", taskID, err)
	}
	return nil
}

// moveRequest is the wire shape of a move call.
type moveRequest struct {
	Column Column `json:"column"`
}

// MoveTask moves a task to another column and returns the server's version,
// which may carry server-side side effects beyond the column change.
func (c *Client) MoveTask(ctx context.Context, taskID string, column Column) (*Task, error) {
	var moved Task
	path := "/api/tasks/" + url.PathEscape(taskID) + "/move"
	if err := c.do(ctx, http.MethodPost, path, moveRequest{Column: column}, &moved); err != nil {
		return nil, fmt.Errorf("move task %s: %w", taskID, err)
	}
	return &moved, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return api.NewTransientError(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return api.NewTransientError(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return api.ClassifyHTTPError(resp.StatusCode, resp.Header.Get("Content-Type"), respBody)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}
