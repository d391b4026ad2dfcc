package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// timeLayout keeps timestamps fixed-width so text ordering is chronological.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// taskRow is the SQLite shape of a task. Dates are ISO 8601 text and the
// entry lists are JSON text, matching how the meeting backend has always
// stored them.
type taskRow struct {
	ID              string  `gorm:"primaryKey;column:id"`
	SessionID       string  `gorm:"column:session_id;not null;index"`
	Title           string  `gorm:"column:task_title;not null"`
	Description     string  `gorm:"column:task_description;not null"`
	ParentTaskID    *string `gorm:"column:parent_task_id;index"`
	Status          string  `gorm:"column:status;not null"`
	CreatedDate     string  `gorm:"column:created_date;not null"`
	UpdatedDate     string  `gorm:"column:updated_date;not null"`
	EstimatedDays   *int    `gorm:"column:estimated_days"`
	ActualDaysTaken *int    `gorm:"column:actual_days_taken"`
	Blockers        *string `gorm:"column:blockers"`
	HelpNeeded      *string `gorm:"column:help_needed"`
	Assignee        string  `gorm:"column:participant_assigned;not null"`
}

func (taskRow) TableName() string { return "task_history" }

// GormStore is a gorm-backed task store, used with SQLite.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GormStore.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// EnsureTable migrates the task_history table.
func (s *GormStore) EnsureTable(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&taskRow{})
}

// Roots returns all tasks without a parent, oldest first.
func (s *GormStore) Roots(ctx context.Context) ([]Task, error) {
	var rows []taskRow
	err := s.db.WithContext(ctx).
		Where("parent_task_id IS NULL").
		Order("created_date ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("root tasks: %w", err)
	}
	return toTasks(rows)
}

// Create inserts a new task mention.
func (s *GormStore) Create(ctx context.Context, sessionID string, d Draft, parentID string) (*Task, error) {
	now := time.Now().UTC().Truncate(time.Microsecond).Format(timeLayout)
	row := taskRow{
		ID:          uuid.Must(uuid.NewV7()).String(),
		SessionID:   sessionID,
		Title:       d.Title,
		Description: d.Description,
		Status:      StatusInProgress,
		CreatedDate: now,
		UpdatedDate: now,
	}
	if parentID != "" {
		row.ParentTaskID = &parentID
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return row.toTask()
}

// Subtree walks parent_task_id links downwards from id, requested task first.
func (s *GormStore) Subtree(ctx context.Context, id string) ([]Task, error) {
	var rows []taskRow
	err := s.db.WithContext(ctx).Raw(`
		WITH RECURSIVE task_hierarchy AS (
			SELECT task_history.*, 0 AS depth FROM task_history WHERE id = ?
			UNION ALL
			SELECT t.*, th.depth + 1 FROM task_history t
			JOIN task_hierarchy th ON t.parent_task_id = th.id
		)
		SELECT * FROM task_hierarchy ORDER BY depth ASC, created_date ASC, id ASC`, id).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("subtree %s: %w", id, err)
	}
	return toTasks(rows)
}

// SessionParents returns the parents referenced by a session's tasks.
func (s *GormStore) SessionParents(ctx context.Context, sessionID string) ([]Task, error) {
	db := s.db.WithContext(ctx)
	parentIDs := db.Model(&taskRow{}).
		Distinct("parent_task_id").
		Where("session_id = ? AND parent_task_id IS NOT NULL", sessionID)

	var rows []taskRow
	err := db.Where("id IN (?)", parentIDs).
		Order("created_date ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("session parents %s: %w", sessionID, err)
	}
	return toTasks(rows)
}

// Get retrieves a single task by ID.
func (s *GormStore) Get(ctx context.Context, id string) (*Task, error) {
	var row taskRow
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("get task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return row.toTask()
}

// Update modifies task fields.
func (s *GormStore) Update(ctx context.Context, id string, updates map[string]any) (*Task, error) {
	columns := map[string]any{
		"updated_date": time.Now().UTC().Truncate(time.Microsecond).Format(timeLayout),
	}
	for k, v := range updates {
		column, value, err := updateColumn(k, v)
		if err != nil {
			return nil, err
		}
		columns[column] = value
	}

	res := s.db.WithContext(ctx).Model(&taskRow{}).Where("id = ?", id).Updates(columns)
	if res.Error != nil {
		return nil, fmt.Errorf("update task %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("update task %s: %w", id, ErrNotFound)
	}
	return s.Get(ctx, id)
}

// Count returns the total number of task rows.
func (s *GormStore) Count(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&taskRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return int(n), nil
}

func (r *taskRow) toTask() (*Task, error) {
	created, err := time.Parse(time.RFC3339Nano, r.CreatedDate)
	if err != nil {
		return nil, fmt.Errorf("task %s created_date: %w", r.ID, err)
	}
	updated, err := time.Parse(time.RFC3339Nano, r.UpdatedDate)
	if err != nil {
		return nil, fmt.Errorf("task %s updated_date: %w", r.ID, err)
	}
	t := &Task{
		ID:              r.ID,
		SessionID:       r.SessionID,
		Title:           r.Title,
		Description:     r.Description,
		Status:          r.Status,
		CreatedAt:       created,
		UpdatedAt:       updated,
		Blockers:        decodeEntries(r.ID, r.Blockers),
		HelpNeeded:      decodeEntries(r.ID, r.HelpNeeded),
		EstimatedDays:   r.EstimatedDays,
		ActualDaysTaken: r.ActualDaysTaken,
		Assignee:        r.Assignee,
	}
	if r.ParentTaskID != nil {
		t.ParentTaskID = *r.ParentTaskID
	}
	return t, nil
}

func toTasks(rows []taskRow) ([]Task, error) {
	tasks := make([]Task, 0, len(rows))
	for i := range rows {
		t, err := rows[i].toTask()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, nil
}
