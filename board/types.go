// Package board implements the task board's optimistic mutation layer: a
// local task cache that reflects user actions instantly, with rollback when
// the server disagrees.
package board

import "time"

// Column identifies a board column.
type Column string

const (
	ColumnTodo       Column = "todo"
	ColumnInProgress Column = "in_progress"
	ColumnDone       Column = "done"
)

// ValidColumn reports whether c is a known board column.
func ValidColumn(c Column) bool {
	switch c {
	case ColumnTodo, ColumnInProgress, ColumnDone:
		return true
	default:
		return false
	}
}

// Task is one board card.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Column      Column    `json:"column"`
	Flagged     bool      `json:"flagged,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitzero"`
}

// IntentStatus is the lifecycle state of one optimistic mutation.
type IntentStatus string

const (
	IntentPending    IntentStatus = "pending"
	IntentCommitted  IntentStatus = "committed"
	IntentRolledBack IntentStatus = "rolled_back"

	// IntentSuperseded marks an intent whose rollback responsibility was
	// taken over by a newer mutation on the same task. Its request stays in
	// flight, but its failure no longer restores anything.
	IntentSuperseded IntentStatus = "superseded"
)

// MutationIntent records one pending optimistic change: what it replaced,
// what it proposed, and where it stands. Previous is nil for a create;
// Proposed is nil for a delete.
type MutationIntent struct {
	ID       string
	TaskID   string
	Previous *Task
	Proposed *Task
	Status   IntentStatus
	Started  time.Time
}
