package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Session ties a Client to a Transcript: it appends the user's message,
// streams the response through the draft, and finalizes the exchange one
// way or the other. A failed exchange keeps the user's input and records an
// assistant-role error message in its place.
type Session struct {
	client     *Client
	transcript *Transcript
	logger     *slog.Logger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionLogger sets the logger.
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// NewSession creates a session with an empty transcript.
func NewSession(client *Client, opts ...SessionOption) *Session {
	s := &Session{
		client:     client,
		transcript: NewTranscript(),
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Transcript exposes the session's transcript.
func (s *Session) Transcript() *Transcript {
	return s.transcript
}

// Send runs one exchange: append the user message, stream the assistant
// response into the draft, then promote it. On failure the draft is
// replaced by an error message and the error is returned. An empty input is
// rejected synchronously and never reaches the network or the transcript.
func (s *Session) Send(ctx context.Context, userText string, repoCtx RepoContext, onChunk ChunkFunc) (Message, error) {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return Message{}, fmt.Errorf("message is empty")
	}

	if err := s.transcript.BeginDraft(); err != nil {
		return Message{}, err
	}

	s.transcript.Append(Message{Role: RoleUser, Text: userText})

	full, err := s.client.Send(ctx, s.transcript.Messages(), repoCtx, func(delta, total string) {
		s.transcript.UpdateDraft(total)
		if onChunk != nil {
			onChunk(delta, total)
		}
	})
	if err != nil {
		s.logger.Warn("Chat exchange failed", "error", err)
		msg := s.transcript.FailDraft(errorText(err))
		return msg, err
	}

	return s.transcript.PromoteDraft(full), nil
}

// errorText renders a failure for the transcript. Server-reported messages
// pass through as-is; transport failures get a generic line.
func errorText(err error) string {
	if respErr, ok := err.(*ResponseError); ok {
		return respErr.Message
	}
	return fmt.Sprintf("Sorry, something went wrong: %v", err)
}
