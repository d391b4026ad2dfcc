package task

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgColumns = `id, session_id, task_title, task_description, COALESCE(parent_task_id, ''), status,
	created_date, updated_date, blockers, help_needed, estimated_days, actual_days_taken, participant_assigned`

// PgStore is a PostgreSQL-backed task store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the task_history table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS task_history (
			id                   TEXT PRIMARY KEY,
			session_id           TEXT NOT NULL,
			task_title           TEXT NOT NULL,
			task_description     TEXT NOT NULL DEFAULT '',
			parent_task_id       TEXT REFERENCES task_history(id),
			status               TEXT NOT NULL DEFAULT 'Open',
			created_date         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_date         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			estimated_days       INTEGER,
			actual_days_taken    INTEGER,
			blockers             TEXT,
			help_needed          TEXT,
			participant_assigned TEXT NOT NULL DEFAULT ''
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_task_history_parent ON task_history(parent_task_id) WHERE parent_task_id IS NOT NULL`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_task_history_session ON task_history(session_id)`)
	return err
}

// Roots returns all tasks without a parent, oldest first.
func (s *PgStore) Roots(ctx context.Context) ([]Task, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pgColumns+`
		FROM task_history WHERE parent_task_id IS NULL ORDER BY created_date ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("root tasks: %w", err)
	}
	defer rows.Close()
	return scanTaskRows(rows)
}

// Create inserts a new task mention.
func (s *PgStore) Create(ctx context.Context, sessionID string, d Draft, parentID string) (*Task, error) {
	now := time.Now().Truncate(time.Microsecond)
	t := &Task{
		ID:           uuid.Must(uuid.NewV7()).String(),
		SessionID:    sessionID,
		Title:        d.Title,
		Description:  d.Description,
		ParentTaskID: parentID,
		Status:       StatusInProgress,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO task_history (id, session_id, task_title, task_description, parent_task_id, status, created_date, updated_date)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)`,
		t.ID, t.SessionID, t.Title, t.Description, t.ParentTaskID, t.Status, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

// Subtree walks parent_task_id links downwards from id. Rows are ordered by
// depth so the requested task always comes first.
func (s *PgStore) Subtree(ctx context.Context, id string) ([]Task, error) {
	rows, err := s.pool.Query(ctx, `
		WITH RECURSIVE task_hierarchy AS (
			SELECT t.*, 0 AS depth FROM task_history t WHERE t.id = $1
			UNION ALL
			SELECT t.*, th.depth + 1 FROM task_history t
			JOIN task_hierarchy th ON t.parent_task_id = th.id
		)
		SELECT `+pgColumns+`
		FROM task_hierarchy ORDER BY depth ASC, created_date ASC, id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("subtree %s: %w", id, err)
	}
	defer rows.Close()
	return scanTaskRows(rows)
}

// SessionParents returns the parents referenced by a session's tasks.
func (s *PgStore) SessionParents(ctx context.Context, sessionID string) ([]Task, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pgColumns+`
		FROM task_history WHERE id IN (
			SELECT DISTINCT parent_task_id FROM task_history
			WHERE session_id = $1 AND parent_task_id IS NOT NULL
		) ORDER BY created_date ASC, id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session parents %s: %w", sessionID, err)
	}
	defer rows.Close()
	return scanTaskRows(rows)
}

// Get retrieves a single task by ID.
func (s *PgStore) Get(ctx context.Context, id string) (*Task, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pgColumns+` FROM task_history WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	defer rows.Close()
	tasks, err := scanTaskRows(rows)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("get task %s: %w", id, ErrNotFound)
	}
	return &tasks[0], nil
}

// Update modifies task fields.
func (s *PgStore) Update(ctx context.Context, id string, updates map[string]any) (*Task, error) {
	now := time.Now().Truncate(time.Microsecond)

	setClauses := "updated_date = $1"
	args := []any{now}
	argIdx := 2

	for k, v := range updates {
		column, value, err := updateColumn(k, v)
		if err != nil {
			return nil, err
		}
		setClauses += fmt.Sprintf(", %s = $%d", column, argIdx)
		args = append(args, value)
		argIdx++
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE task_history SET %s WHERE id = $%d", setClauses, argIdx)
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update task %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("update task %s: %w", id, ErrNotFound)
	}
	return s.Get(ctx, id)
}

// Count returns the total number of task rows.
func (s *PgStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM task_history`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return n, nil
}

func scanTaskRows(rows pgx.Rows) ([]Task, error) {
	tasks := []Task{}
	for rows.Next() {
		var t Task
		var blockers, helpNeeded *string
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Title, &t.Description, &t.ParentTaskID, &t.Status,
			&t.CreatedAt, &t.UpdatedAt, &blockers, &helpNeeded, &t.EstimatedDays, &t.ActualDaysTaken, &t.Assignee); err != nil {
			return nil, err
		}
		t.Blockers = decodeEntries(t.ID, blockers)
		t.HelpNeeded = decodeEntries(t.ID, helpNeeded)
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return tasks, nil
}
