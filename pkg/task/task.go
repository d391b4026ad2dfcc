package task

import (
	"context"
	"errors"
	"time"
)

// Status values used by the continuity engine. Other strings are accepted
// from maintenance flows and stored as-is.
const (
	StatusOpen       = "Open"
	StatusInProgress = "In Progress"
	StatusCompleted  = "Completed"
	StatusBlocked    = "Blocked"
)

// ErrNotFound is returned when a task id has no row.
var ErrNotFound = errors.New("task not found")

// Task is one mention of a piece of work in a meeting session. A task that is
// re-mentioned in a later session gets its own row linked to the earlier one
// through ParentTaskID.
type Task struct {
	ID              string    `json:"id"`
	SessionID       string    `json:"session_id"`
	Title           string    `json:"task_title"`
	Description     string    `json:"task_description"`
	ParentTaskID    string    `json:"parent_task_id,omitempty"` // empty for root tasks
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_date"`
	UpdatedAt       time.Time `json:"updated_date"`
	Blockers        []Entry   `json:"blockers"`
	HelpNeeded      []Entry   `json:"help_needed"`
	EstimatedDays   *int      `json:"estimated_days,omitempty"`
	ActualDaysTaken *int      `json:"actual_days_taken,omitempty"`
	Assignee        string    `json:"participant_assigned,omitempty"`
}

// IsRoot reports whether t is a top-level topic.
func (t *Task) IsRoot() bool { return t.ParentTaskID == "" }

// Draft is a task freshly extracted from a transcript, before it is linked.
type Draft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Store is the contract for task persistence.
type Store interface {
	// Roots returns every task without a parent, oldest first.
	Roots(ctx context.Context) ([]Task, error)

	// Create stores d for sessionID with status "In Progress". An empty
	// parentID stores a root task.
	Create(ctx context.Context, sessionID string, d Draft, parentID string) (*Task, error)

	// Subtree returns the task and all of its transitive descendants, the
	// task itself first. An unknown id yields an empty slice.
	Subtree(ctx context.Context, id string) ([]Task, error)

	// SessionParents returns the distinct parent tasks referenced by the
	// tasks recorded for sessionID.
	SessionParents(ctx context.Context, sessionID string) ([]Task, error)

	Get(ctx context.Context, id string) (*Task, error)

	// Update modifies task fields and bumps updated_date. Supported keys:
	// status, title, description, assignee, blockers, help_needed,
	// estimated_days, actual_days_taken.
	Update(ctx context.Context, id string, updates map[string]any) (*Task, error)

	Count(ctx context.Context) (int, error)
	EnsureTable(ctx context.Context) error
}
