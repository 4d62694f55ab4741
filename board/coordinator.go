package board

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/repopulse/metrics"
)

// Coordinator gives board mutations the appearance of instant effect. Each
// mutation is applied to the local cache synchronously, recorded as a
// MutationIntent, and settled when the network call returns: success
// replaces local data with the authoritative server state, failure restores
// the intent's rollback point.
//
// One intent may be pending per task id. A newer mutation on the same task
// supersedes the older intent: the old request stays in flight, but its
// failure no longer rolls anything back, so it cannot clobber the newer
// optimistic value.
type Coordinator struct {
	client *Client
	logger *slog.Logger

	mu      sync.Mutex
	tasks   map[string]Task
	intents map[string]*MutationIntent

	onChange func()
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithCoordinatorLogger sets the logger.
func WithCoordinatorLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithOnChange registers a callback invoked after the local cache changed.
func WithOnChange(fn func()) CoordinatorOption {
	return func(c *Coordinator) {
		c.onChange = fn
	}
}

// NewCoordinator creates a coordinator with an empty cache.
func NewCoordinator(client *Client, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		client:  client,
		logger:  slog.Default(),
		tasks:   make(map[string]Task),
		intents: make(map[string]*MutationIntent),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Seed replaces the local cache with an authoritative task list.
func (c *Coordinator) Seed(tasks []Task) {
	c.mu.Lock()
	c.tasks = make(map[string]Task, len(tasks))
	for _, t := range tasks {
		c.tasks[t.ID] = t
	}
	c.mu.Unlock()
	c.changed()
}

// Refresh fetches the task list and seeds the cache with it.
func (c *Coordinator) Refresh(ctx context.Context) error {
	tasks, err := c.client.ListTasks(ctx)
	if err != nil {
		return err
	}
	c.Seed(tasks)
	return nil
}

// Tasks returns a copy of the local cache.
func (c *Coordinator) Tasks() []Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Task, 0, len(c.tasks))
	for _, t := range c.tasks {
		out = append(out, t)
	}
	return out
}

// Task returns the cached task with the given id.
func (c *Coordinator) Task(id string) (Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tasks[id]
	return t, ok
}

// PendingIntent returns a copy of the pending intent for a task, if any.
func (c *Coordinator) PendingIntent(taskID string) (MutationIntent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	intent, ok := c.intents[taskID]
	if !ok {
		return MutationIntent{}, false
	}
	return *intent, true
}

// Move applies a column change optimistically and settles it against the
// server. Validation failures return synchronously without touching the
// cache or the network.
func (c *Coordinator) Move(ctx context.Context, taskID string, column Column) error {
	if taskID == "" {
		return fmt.Errorf("task id is required")
	}
	if !ValidColumn(column) {
		return fmt.Errorf("unknown column: %s", column)
	}

	c.mu.Lock()
	current, ok := c.tasks[taskID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("unknown task: %s", taskID)
	}
	proposed := current
	proposed.Column = column
	intent := c.beginLocked(taskID, &current, &proposed)
	c.mu.Unlock()
	c.changed()

	_, err := c.client.MoveTask(ctx, taskID, column)
	return c.settle(ctx, intent, err)
}

// Update applies a full-task edit optimistically.
func (c *Coordinator) Update(ctx context.Context, task Task) error {
	if task.ID == "" {
		return fmt.Errorf("task id is required")
	}
	if task.Title == "" {
		return fmt.Errorf("task title is required")
	}

	c.mu.Lock()
	current, ok := c.tasks[task.ID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("unknown task: %s", task.ID)
	}
	intent := c.beginLocked(task.ID, &current, &task)
	c.mu.Unlock()
	c.changed()

	_, err := c.client.UpdateTask(ctx, task)
	return c.settle(ctx, intent, err)
}

// Create inserts a new task optimistically. A client-side id is assigned
// when the caller did not provide one; the authoritative refetch replaces
// it with the server's record.
func (c *Coordinator) Create(ctx context.Context, task Task) error {
	if task.Title == "" {
		return fmt.Errorf("task title is required")
	}
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.Column == "" {
		task.Column = ColumnTodo
	}

	c.mu.Lock()
	intent := c.beginLocked(task.ID, nil, &task)
	c.mu.Unlock()
	c.changed()

	_, err := c.client.CreateTask(ctx, task)
	return c.settle(ctx, intent, err)
}

// Delete removes a task optimistically.
func (c *Coordinator) Delete(ctx context.Context, taskID string) error {
	if taskID == "" {
		return fmt.Errorf("task id is required")
	}

	c.mu.Lock()
	current, ok := c.tasks[taskID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("unknown task: %s", taskID)
	}
	intent := c.beginLocked(taskID, &current, nil)
	c.mu.Unlock()
	c.changed()

	err := c.client.DeleteTask(ctx, taskID)
	return c.settle(ctx, intent, err)
}

// beginLocked installs a pending intent and applies the proposed value to
// the cache. The rollback point is the value immediately before this
// mutation, not the value before the whole chain: any older pending intent
// on the task is marked superseded and loses its rollback responsibility.
func (c *Coordinator) beginLocked(taskID string, previous, proposed *Task) *MutationIntent {
	if old, ok := c.intents[taskID]; ok && old.Status == IntentPending {
		old.Status = IntentSuperseded
	}

	intent := &MutationIntent{
		ID:       uuid.New().String(),
		TaskID:   taskID,
		Previous: cloneTask(previous),
		Proposed: cloneTask(proposed),
		Status:   IntentPending,
		Started:  time.Now(),
	}
	c.intents[taskID] = intent

	if proposed == nil {
		delete(c.tasks, taskID)
	} else {
		c.tasks[taskID] = *proposed
	}

	metrics.MutationsApplied.Inc()
	return intent
}

// settle resolves an intent once its request returned.
func (c *Coordinator) settle(ctx context.Context, intent *MutationIntent, callErr error) error {
	if callErr != nil {
		c.mu.Lock()
		if c.intents[intent.TaskID] == intent && intent.Status == IntentPending {
			// Restore the rollback point verbatim.
			if intent.Previous == nil {
				delete(c.tasks, intent.TaskID)
			} else {
				c.tasks[intent.TaskID] = *intent.Previous
			}
			intent.Status = IntentRolledBack
			delete(c.intents, intent.TaskID)
			metrics.MutationsRolledBack.Inc()
		}
		c.mu.Unlock()
		c.changed()

		return fmt.Errorf("mutation failed for task %s: %w", intent.TaskID, callErr)
	}

	c.mu.Lock()
	if c.intents[intent.TaskID] == intent {
		intent.Status = IntentCommitted
		delete(c.intents, intent.TaskID)
	}
	c.mu.Unlock()
	metrics.MutationsCommitted.Inc()

	// The optimistic guess is not trusted: refetch the authoritative state
	// so server-side side effects are reflected. A failed refetch keeps the
	// accepted optimistic value and is not an error for the caller.
	tasks, err := c.client.ListTasks(ctx)
	if err != nil {
		c.logger.Warn("Refetch after commit failed, keeping optimistic state",
			"task_id", intent.TaskID, "error", err)
		return nil
	}

	c.mu.Lock()
	fresh := make(map[string]Task, len(tasks))
	for _, t := range tasks {
		fresh[t.ID] = t
	}
	// Tasks with still-pending intents keep their optimistic values; the
	// refetch may predate those requests.
	for id, pending := range c.intents {
		if pending.Status != IntentPending {
			continue
		}
		if pending.Proposed == nil {
			delete(fresh, id)
		} else {
			fresh[id] = *pending.Proposed
		}
	}
	c.tasks = fresh
	c.mu.Unlock()
	c.changed()

	return nil
}

func (c *Coordinator) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}

func cloneTask(t *Task) *Task {
	if t == nil {
		return nil
	}
	out := *t
	return &out
}
