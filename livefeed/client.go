package livefeed

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/c360studio/repopulse/apierrors"
	"github.com/c360studio/repopulse/metrics"
)

// Handler receives decoded events in transport delivery order.
type Handler func(Event)

// Client establishes push-channel connections against the dashboard backend.
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

// NewClient creates a push-channel client for the given backend base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		// No Timeout on the client: the connection is long-lived by design.
		// Lifetime is governed by the subscription context instead.
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Subscription is the resource handle for one live connection. Its owner
// must Close it before subscribing to another repository; the client does
// not enforce that ordering itself.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	closed atomic.Bool
}

// Close tears down the connection and waits for the read loop to exit.
// It is idempotent: repeated calls are no-ops.
func (s *Subscription) Close() {
	if s == nil || !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.cancel()
	<-s.done
}

// Done is closed once the read loop has exited, whether via Close, context
// cancellation, or a transport failure.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Subscribe opens the push channel for one (owner, repo) pair and delivers
// every decoded event to handler, in delivery order, from a single goroutine.
//
// A transport failure is delivered as *StreamErrorEvent and terminates the
// loop; the client never reconnects on its own. The caller re-subscribes
// when its own lifecycle demands it. Malformed individual events are logged
// and dropped without disturbing the connection.
func (c *Client) Subscribe(ctx context.Context, owner, repo string, handler Handler) (*Subscription, error) {
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("owner and repo are required")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}

	streamURL := fmt.Sprintf("%s/api/repos/%s/%s/events",
		c.baseURL, url.PathEscape(owner), url.PathEscape(repo))

	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("connect stream: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		contentType := resp.Header.Get("Content-Type")
		resp.Body.Close()
		cancel()
		return nil, apierrors.ClassifyHTTPError(resp.StatusCode, contentType, body)
	}

	sub := &Subscription{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go c.readLoop(ctx, resp.Body, owner, repo, handler, sub)

	return sub, nil
}

// readLoop parses the SSE wire format: "event:" and "data:" lines accumulate
// until a blank line dispatches the pending event. bufio handles record
// fragments split across network chunks.
func (c *Client) readLoop(ctx context.Context, body io.ReadCloser, owner, repo string, handler Handler, sub *Subscription) {
	defer close(sub.done)
	defer body.Close()

	log := c.logger.With("owner", owner, "repo", repo)
	reader := bufio.NewReader(body)

	var eventName string
	var data strings.Builder

	dispatch := func() {
		if eventName == "" && data.Len() == 0 {
			return
		}
		name := eventName
		payload := data.String()
		eventName = ""
		data.Reset()

		// Nameless events are keep-alive padding.
		if name == "" {
			return
		}

		ev, err := DecodeEvent(name, []byte(payload))
		if err != nil {
			metrics.FeedEventsDropped.WithLabelValues("decode").Inc()
			log.Warn("Dropping malformed event", "event", name, "error", err)
			return
		}

		metrics.FeedEventsReceived.WithLabelValues(name).Inc()
		handler(ev)
	}

	for {
		line, err := reader.ReadString('\n')

		if len(line) > 0 {
			line = strings.TrimRight(line, "\r\n")

			switch {
			case line == "":
				dispatch()
			case strings.HasPrefix(line, ":"):
				// SSE comment, used for keep-alive.
			case strings.HasPrefix(line, "event:"):
				eventName = strings.TrimSpace(line[len("event:"):])
			case strings.HasPrefix(line, "data:"):
				if data.Len() > 0 {
					data.WriteByte('\n')
				}
				data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			default:
				// Unknown field (id:, retry:, ...): no client-side meaning.
			}
		}

		if err != nil {
			if sub.closed.Load() || ctx.Err() != nil {
				// Teardown requested by the owner; not a failure.
				return
			}

			msg := "connection lost"
			if !errors.Is(err, io.EOF) {
				msg = err.Error()
			}

			metrics.FeedStreamErrors.Inc()
			log.Warn("Push channel dropped", "error", err)
			handler(&StreamErrorEvent{Message: msg})
			return
		}
	}
}
