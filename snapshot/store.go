package snapshot

import (
	"log/slog"
	"sync"

	"github.com/c360studio/repopulse/livefeed"
)

// Change describes what a store update touched, so listeners can re-render
// only the affected surface.
type Change string

const (
	ChangeSnapshot      Change = "snapshot"
	ChangeNotifications Change = "notifications"
	ChangeConnection    Change = "connection"
	ChangeAnalyses      Change = "analyses"
)

// Listener is notified after the store state changed. It runs outside the
// store lock and receives a read-only clone via View if it needs data.
type Listener func(Change)

// Store owns the canonical state. All mutation goes through Load, Clear,
// Apply, and DismissNotification; readers get deep copies and can never
// reach the canonical slices.
type Store struct {
	mu         sync.Mutex
	state      State
	reconciler *Reconciler
	logger     *slog.Logger

	listenerMu sync.Mutex
	listeners  map[int]Listener
	nextLis    int
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithReconciler sets the reconciler used by Apply.
func WithReconciler(r *Reconciler) StoreOption {
	return func(s *Store) {
		s.reconciler = r
	}
}

// WithStoreLogger sets the logger.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates an empty store (no repository loaded).
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		logger:    slog.Default(),
		listeners: make(map[int]Listener),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.reconciler == nil {
		s.reconciler = NewReconciler(WithReconcilerLogger(s.logger))
	}

	return s
}

// Load replaces the canonical snapshot wholesale. Switching to a different
// repository also resets the notification list and transient signals;
// refreshing the same repository keeps them.
func (s *Store) Load(snap *RepoSnapshot) {
	s.mu.Lock()
	switched := s.state.Snapshot == nil ||
		s.state.Snapshot.Repo.Owner != snap.Repo.Owner ||
		s.state.Snapshot.Repo.Name != snap.Repo.Name
	if !switched {
		// Preserve state the refetch cannot know about.
		snap.PlaybookGeneration = s.state.Snapshot.PlaybookGeneration
	}
	s.state.Snapshot = snap
	if switched {
		s.state.Notifications = nil
		s.state.Analyses = nil
		s.state.LastStreamError = ""
	}
	s.mu.Unlock()

	s.notify(ChangeSnapshot)
	if switched {
		s.notify(ChangeNotifications)
	}
}

// Clear returns the store to the repository-less state.
func (s *Store) Clear() {
	s.mu.Lock()
	s.state = State{}
	s.mu.Unlock()

	s.notify(ChangeSnapshot)
}

// Apply merges one push-channel event under the store lock. Events arriving
// before a snapshot is loaded can only touch transient signals; the
// reconciler ignores the rest.
func (s *Store) Apply(ev livefeed.Event) {
	s.mu.Lock()
	changed := s.reconciler.Apply(&s.state, ev)
	s.mu.Unlock()

	if !changed {
		return
	}

	switch ev.(type) {
	case *livefeed.ConnectedEvent, *livefeed.StreamErrorEvent:
		s.notify(ChangeConnection)
	case *livefeed.CommitEvent, *livefeed.CommitProcessedEvent:
		s.notify(ChangeSnapshot)
		s.notify(ChangeNotifications)
	case *livefeed.AnalysisStartedEvent, *livefeed.CommitAnalyzedEvent,
		*livefeed.AnalysisCompletedEvent, *livefeed.AnalysisErrorEvent:
		s.notify(ChangeAnalyses)
	default:
		s.notify(ChangeSnapshot)
	}
}

// View returns a deep copy of the current state.
func (s *Store) View() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// DismissNotification removes one notification by its client-side id.
func (s *Store) DismissNotification(id uint64) {
	s.mu.Lock()
	removed := false
	for i, n := range s.state.Notifications {
		if n.ID == id {
			s.state.Notifications = append(
				s.state.Notifications[:i:i], s.state.Notifications[i+1:]...)
			removed = true
			break
		}
	}
	s.mu.Unlock()

	if removed {
		s.notify(ChangeNotifications)
	}
}

// AddListener registers a change listener and returns its removal func.
// The returned func is idempotent.
func (s *Store) AddListener(l Listener) (remove func()) {
	s.listenerMu.Lock()
	id := s.nextLis
	s.nextLis++
	s.listeners[id] = l
	s.listenerMu.Unlock()

	return func() {
		s.listenerMu.Lock()
		delete(s.listeners, id)
		s.listenerMu.Unlock()
	}
}

// notify fans a change out to every registered listener, outside the state
// lock so listeners may call View.
func (s *Store) notify(change Change) {
	s.listenerMu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.listenerMu.Unlock()

	for _, l := range listeners {
		if l == nil {
			continue
		}
		l(change)
	}
}
