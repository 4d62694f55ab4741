package chat

import (
	"fmt"
	"sync"
)

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one finalized transcript entry.
type Message struct {
	Role    Role   `json:"role"`
	Text    string `json:"text"`
	IsError bool   `json:"isError,omitempty"`
}

// Transcript is the append-only message history plus the single in-progress
// draft. The draft and the transcript are never both final for the same
// exchange: the draft is either promoted into the transcript or discarded.
type Transcript struct {
	mu       sync.Mutex
	messages []Message

	// draftActive guards the at-most-one-draft invariant; draftText is the
	// partial assistant response while one is streaming.
	draftActive bool
	draftText   string
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append adds a finalized message.
func (t *Transcript) Append(msg Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, msg)
}

// Messages returns a copy of the finalized history.
func (t *Transcript) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Message(nil), t.messages...)
}

// Len returns the number of finalized messages.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}

// BeginDraft starts the streaming draft. It fails if one is already active.
func (t *Transcript) BeginDraft() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.draftActive {
		return fmt.Errorf("a response is already streaming")
	}
	t.draftActive = true
	t.draftText = ""
	return nil
}

// UpdateDraft replaces the draft's partial text.
func (t *Transcript) UpdateDraft(total string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.draftActive {
		t.draftText = total
	}
}

// Draft returns the partial text and whether a draft is active.
func (t *Transcript) Draft() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.draftText, t.draftActive
}

// PromoteDraft finalizes the draft as an assistant message with the given
// text and returns it.
func (t *Transcript) PromoteDraft(finalText string) Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	msg := Message{Role: RoleAssistant, Text: finalText}
	t.messages = append(t.messages, msg)
	t.draftActive = false
	t.draftText = ""
	return msg
}

// FailDraft discards the draft and appends an assistant-role error message
// in its place, so the user's input is not lost with the failure.
func (t *Transcript) FailDraft(errMsg string) Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	msg := Message{Role: RoleAssistant, Text: errMsg, IsError: true}
	t.messages = append(t.messages, msg)
	t.draftActive = false
	t.draftText = ""
	return msg
}
