// Package livefeed owns the push channel: one server-sent-events connection
// per (owner, repo) pair, decoded into a closed set of typed events.
package livefeed

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies one named wire event on the push channel.
type Kind string

// The full wire vocabulary. The set is closed: the reconciler switches
// exhaustively over the concrete event types, so a new kind is a
// compile-time obligation there, not a silently-ignored default.
const (
	KindConnected         Kind = "connected"
	KindSummary           Kind = "summary"
	KindPlaybook          Kind = "playbook"
	KindWebhookReceived   Kind = "webhook_received"
	KindNewCommit         Kind = "new_event"
	KindCommitProcessed   Kind = "event_processed"
	KindPlaybookUpdated   Kind = "playbook_updated"
	KindStreamError       Kind = "event_error"
	KindAnalysisStarted   Kind = "background_analysis_started"
	KindCommitAnalyzed    Kind = "commit_analyzed"
	KindAnalysisCompleted Kind = "background_analysis_completed"
	KindAnalysisError     Kind = "background_analysis_error"
)

// Event is the closed union of events delivered on a repository feed.
// Only types in this package implement it.
type Event interface {
	Kind() Kind
}

// ConnectedEvent signals that the push channel is established.
type ConnectedEvent struct{}

// SummaryEvent carries a fresh AI summary state. The three fields replace
// their snapshot counterparts together, as one update.
type SummaryEvent struct {
	Summary           string `json:"summary"`
	SummaryError      string `json:"summaryError"`
	PlaybookAvailable bool   `json:"playbookAvailable"`
}

// PlaybookEvent signals that a playbook document exists (or no longer does).
type PlaybookEvent struct {
	Available bool `json:"available"`
}

// WebhookReceivedEvent signals that the backend accepted a forge webhook.
// Display-only; it carries provenance, not repository data.
type WebhookReceivedEvent struct {
	Source     string `json:"source,omitempty"`
	DeliveryID string `json:"deliveryId,omitempty"`
}

// CommitEvent reports a newly observed commit. CommitID is the merge key.
type CommitEvent struct {
	CommitID  string    `json:"commitId"`
	Author    string    `json:"author"`
	Message   string    `json:"message"`
	Branch    string    `json:"branch,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// CommitProcessedEvent reports that background processing enriched a
// previously observed commit.
type CommitProcessedEvent struct {
	CommitID  string  `json:"commitId"`
	Category  string  `json:"category,omitempty"`
	RiskScore float64 `json:"riskScore,omitempty"`
	Summary   string  `json:"summary,omitempty"`
}

// PlaybookUpdatedEvent signals that the playbook content changed server-side.
// It carries no payload; consumers re-fetch the content out of band.
type PlaybookUpdatedEvent struct{}

// StreamErrorEvent reports a failure on the push channel, either a wire-level
// event_error or a transport drop synthesized by the client.
type StreamErrorEvent struct {
	Message string `json:"message"`
}

// AnalysisStartedEvent signals the start of a commit-scoped background
// analysis run.
type AnalysisStartedEvent struct {
	CommitID string `json:"commitId"`
	Total    int    `json:"total,omitempty"`
}

// CommitAnalyzedEvent reports progress within a background analysis run.
type CommitAnalyzedEvent struct {
	CommitID string `json:"commitId"`
	Index    int    `json:"index,omitempty"`
	Total    int    `json:"total,omitempty"`
}

// AnalysisCompletedEvent signals a finished background analysis run.
type AnalysisCompletedEvent struct {
	CommitID string `json:"commitId"`
	Analyzed int    `json:"analyzed,omitempty"`
}

// AnalysisErrorEvent signals a failed background analysis run.
type AnalysisErrorEvent struct {
	CommitID string `json:"commitId"`
	Message  string `json:"message"`
}

func (ConnectedEvent) Kind() Kind { return KindConnected }

func (SummaryEvent) Kind() Kind { return KindSummary }

func (PlaybookEvent) Kind() Kind { return KindPlaybook }

func (WebhookReceivedEvent) Kind() Kind { return KindWebhookReceived }

func (CommitEvent) Kind() Kind { return KindNewCommit }

func (CommitProcessedEvent) Kind() Kind { return KindCommitProcessed }

func (PlaybookUpdatedEvent) Kind() Kind { return KindPlaybookUpdated }

func (StreamErrorEvent) Kind() Kind { return KindStreamError }

func (AnalysisStartedEvent) Kind() Kind { return KindAnalysisStarted }

func (CommitAnalyzedEvent) Kind() Kind { return KindCommitAnalyzed }

func (AnalysisCompletedEvent) Kind() Kind { return KindAnalysisCompleted }

func (AnalysisErrorEvent) Kind() Kind { return KindAnalysisError }

// DecodeEvent parses the data payload of one named wire event into its typed
// form. Unknown names are an error; the caller drops them without tearing
// down the connection.
func DecodeEvent(name string, data []byte) (Event, error) {
	unmarshal := func(v Event) (Event, error) {
		if len(data) == 0 {
			return v, nil
		}
		if err := json.Unmarshal(data, v); err != nil {
			return nil, fmt.Errorf("decode %s event: %w", name, err)
		}
		return v, nil
	}

	switch Kind(name) {
	case KindConnected:
		return &ConnectedEvent{}, nil
	case KindSummary:
		return unmarshal(&SummaryEvent{})
	case KindPlaybook:
		return unmarshal(&PlaybookEvent{})
	case KindWebhookReceived:
		return unmarshal(&WebhookReceivedEvent{})
	case KindNewCommit:
		return unmarshal(&CommitEvent{})
	case KindCommitProcessed:
		return unmarshal(&CommitProcessedEvent{})
	case KindPlaybookUpdated:
		return &PlaybookUpdatedEvent{}, nil
	case KindStreamError:
		return unmarshal(&StreamErrorEvent{})
	case KindAnalysisStarted:
		return unmarshal(&AnalysisStartedEvent{})
	case KindCommitAnalyzed:
		return unmarshal(&CommitAnalyzedEvent{})
	case KindAnalysisCompleted:
		return unmarshal(&AnalysisCompletedEvent{})
	case KindAnalysisError:
		return unmarshal(&AnalysisErrorEvent{})
	default:
		return nil, fmt.Errorf("unrecognized event name: %s", name)
	}
}
