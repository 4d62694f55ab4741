// Package metrics defines the Prometheus instrumentation shared by the
// client core. Counters only; exposition is left to the embedding program.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "repopulse"

var (
	// FeedEventsReceived counts decoded push-channel events by wire name.
	FeedEventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "livefeed",
		Name:      "events_received_total",
		Help:      "Push-channel events decoded and delivered, by event name.",
	}, []string{"event"})

	// FeedEventsDropped counts events discarded without delivery.
	FeedEventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "livefeed",
		Name:      "events_dropped_total",
		Help:      "Push-channel events dropped, by reason.",
	}, []string{"reason"})

	// FeedStreamErrors counts transport-level push channel failures.
	FeedStreamErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "livefeed",
		Name:      "stream_errors_total",
		Help:      "Push-channel connections terminated by transport failure.",
	})

	// ChatChunks counts streamed chat text deltas.
	ChatChunks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chat",
		Name:      "chunks_total",
		Help:      "Chat response chunks received.",
	})

	// ChatFailures counts chat exchanges that ended in an error.
	ChatFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chat",
		Name:      "failures_total",
		Help:      "Chat exchanges that failed.",
	})

	// MutationsApplied counts optimistic mutations applied locally.
	MutationsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "board",
		Name:      "mutations_applied_total",
		Help:      "Optimistic mutations applied to the local cache.",
	})

	// MutationsCommitted counts mutations confirmed by the server.
	MutationsCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "board",
		Name:      "mutations_committed_total",
		Help:      "Optimistic mutations confirmed by the server.",
	})

	// MutationsRolledBack counts mutations undone after a failure.
	MutationsRolledBack = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "board",
		Name:      "mutations_rolled_back_total",
		Help:      "Optimistic mutations rolled back after a failed request.",
	})

	// SnapshotRefetches counts authoritative snapshot fetches.
	SnapshotRefetches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "snapshot_fetches_total",
		Help:      "Full repository snapshot fetches from the backend.",
	})
)
