package snapshot

import (
	"log/slog"
	"time"

	"github.com/c360studio/repopulse/livefeed"
)

// DefaultMaxNotifications bounds the recent-activity list. The push channel
// is long-lived; an unbounded list would grow for as long as the dashboard
// stays open.
const DefaultMaxNotifications = 50

// Reconciler merges push-channel events into the canonical state. Apply is
// deterministic in (state, event); events must be applied in delivery order
// and are never reordered or batched.
type Reconciler struct {
	maxNotifications int
	logger           *slog.Logger
	now              func() time.Time

	// nextNoteID assigns client-side monotonic notification ids,
	// independent of the commit identity key.
	nextNoteID uint64
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithMaxNotifications overrides the notification list bound.
func WithMaxNotifications(n int) ReconcilerOption {
	return func(r *Reconciler) {
		if n > 0 {
			r.maxNotifications = n
		}
	}
}

// WithReconcilerLogger sets the logger.
func WithReconcilerLogger(logger *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		r.now = now
	}
}

// NewReconciler creates a reconciler with the default notification bound.
func NewReconciler(opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		maxNotifications: DefaultMaxNotifications,
		logger:           slog.Default(),
		now:              time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Apply merges one event into the state. The switch is exhaustive over the
// closed event union; adding a wire event means deciding its merge rule here.
// It returns true when the merge changed anything observable.
func (r *Reconciler) Apply(st *State, ev livefeed.Event) bool {
	switch ev := ev.(type) {
	case *livefeed.ConnectedEvent:
		changed := !st.Connected || st.LastStreamError != ""
		st.Connected = true
		st.LastStreamError = ""
		return changed

	case *livefeed.SummaryEvent:
		return r.applySummary(st, ev)

	case *livefeed.PlaybookEvent:
		if st.Snapshot == nil {
			return false
		}
		st.Snapshot.PlaybookAvailable = ev.Available
		st.Snapshot.PlaybookGeneration++
		return true

	case *livefeed.WebhookReceivedEvent:
		// Provenance only; nothing in the state to update.
		r.logger.Debug("Webhook received", "source", ev.Source, "delivery_id", ev.DeliveryID)
		return false

	case *livefeed.CommitEvent:
		return r.applyCommit(st, ev)

	case *livefeed.CommitProcessedEvent:
		return r.applyEnrichment(st, ev)

	case *livefeed.PlaybookUpdatedEvent:
		if st.Snapshot == nil {
			return false
		}
		st.Snapshot.PlaybookGeneration++
		return true

	case *livefeed.StreamErrorEvent:
		// Connection-lost signal; already-rendered data stays untouched.
		st.Connected = false
		st.LastStreamError = ev.Message
		return true

	case *livefeed.AnalysisStartedEvent:
		r.setAnalysis(st, Analysis{CommitID: ev.CommitID, Status: AnalysisRunning, Total: ev.Total})
		return true

	case *livefeed.CommitAnalyzedEvent:
		a := st.Analyses[ev.CommitID]
		a.CommitID = ev.CommitID
		a.Status = AnalysisRunning
		a.Analyzed = ev.Index
		if ev.Total > 0 {
			a.Total = ev.Total
		}
		r.setAnalysis(st, a)
		return true

	case *livefeed.AnalysisCompletedEvent:
		a := st.Analyses[ev.CommitID]
		a.CommitID = ev.CommitID
		a.Status = AnalysisCompleted
		if ev.Analyzed > 0 {
			a.Analyzed = ev.Analyzed
		}
		r.setAnalysis(st, a)
		return true

	case *livefeed.AnalysisErrorEvent:
		r.setAnalysis(st, Analysis{CommitID: ev.CommitID, Status: AnalysisFailed, Error: ev.Message})
		return true

	default:
		// Unreachable for the closed union; a new event type must be given
		// a case above before it can exist.
		r.logger.Warn("Event kind without merge rule", "kind", ev.Kind())
		return false
	}
}

// applySummary replaces the summary state and playbook availability as one
// update, so readers never observe a stale summary paired with a fresh flag.
func (r *Reconciler) applySummary(st *State, ev *livefeed.SummaryEvent) bool {
	if st.Snapshot == nil {
		return false
	}
	st.Snapshot.Summary = ev.Summary
	st.Snapshot.SummaryError = ev.SummaryError
	st.Snapshot.PlaybookAvailable = ev.PlaybookAvailable
	return true
}

// applyCommit inserts a newly observed commit. Repeated deliveries of the
// same identity key are discarded, so the insert is idempotent.
func (r *Reconciler) applyCommit(st *State, ev *livefeed.CommitEvent) bool {
	if st.Snapshot == nil {
		return false
	}
	if ev.CommitID == "" {
		r.logger.Warn("Dropping commit event without id")
		return false
	}
	if st.Snapshot.HasCommit(ev.CommitID) {
		r.logger.Debug("Duplicate commit delivery", "commit_id", ev.CommitID)
		return false
	}

	commit := Commit{
		CommitID:  ev.CommitID,
		Author:    ev.Author,
		Message:   ev.Message,
		Branch:    ev.Branch,
		Timestamp: ev.Timestamp,
	}

	// Most-recent-first: delivery order is recency order.
	st.Snapshot.Commits = append([]Commit{commit}, st.Snapshot.Commits...)

	r.nextNoteID++
	st.Notifications = append(st.Notifications, Notification{
		ID:         r.nextNoteID,
		Commit:     commit,
		ReceivedAt: r.now(),
	})

	// Enforce the bound by dropping the oldest entries.
	if overflow := len(st.Notifications) - r.maxNotifications; overflow > 0 {
		st.Notifications = append([]Notification(nil), st.Notifications[overflow:]...)
	}

	return true
}

// applyEnrichment updates the notification whose commit matches, in place,
// keeping its notification id so the entry does not appear to jump. An
// enrichment that races ahead of its observation has no entry to update and
// is dropped; it never inserts a commit record.
func (r *Reconciler) applyEnrichment(st *State, ev *livefeed.CommitProcessedEvent) bool {
	changed := false

	for i := range st.Notifications {
		if st.Notifications[i].Commit.CommitID != ev.CommitID {
			continue
		}
		enrich(&st.Notifications[i].Commit, ev)
		changed = true
		break
	}

	if st.Snapshot != nil {
		for i := range st.Snapshot.Commits {
			if st.Snapshot.Commits[i].CommitID != ev.CommitID {
				continue
			}
			enrich(&st.Snapshot.Commits[i], ev)
			changed = true
			break
		}
	}

	if !changed {
		r.logger.Debug("Enrichment before observation, dropped", "commit_id", ev.CommitID)
	}
	return changed
}

func enrich(c *Commit, ev *livefeed.CommitProcessedEvent) {
	c.Enriched = true
	c.Category = ev.Category
	c.RiskScore = ev.RiskScore
	c.Summary = ev.Summary
}

func (r *Reconciler) setAnalysis(st *State, a Analysis) {
	if st.Analyses == nil {
		st.Analyses = make(map[string]Analysis)
	}
	st.Analyses[a.CommitID] = a
}
