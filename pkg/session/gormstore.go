package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type sessionRow struct {
	ID              string    `gorm:"primaryKey;column:session_id"`
	CreatedAt       time.Time `gorm:"column:created_at;not null;index"`
	Name            string    `gorm:"column:meeting_name;not null"`
	ParentSessionID string    `gorm:"column:parent_session_id;not null"`
	Transcript      string    `gorm:"column:transcript;not null"`
	Summary         string    `gorm:"column:summary;not null"`
}

func (sessionRow) TableName() string { return "meeting_sessions" }

func (r sessionRow) toSession() *Session {
	return &Session{
		ID:              r.ID,
		CreatedAt:       r.CreatedAt,
		Name:            r.Name,
		ParentSessionID: r.ParentSessionID,
		Transcript:      r.Transcript,
		Summary:         r.Summary,
	}
}

// GormStore is a gorm-backed session store, used with SQLite.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GormStore.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// EnsureTable migrates the meeting_sessions table.
func (s *GormStore) EnsureTable(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&sessionRow{})
}

// Ensure inserts the session if missing, then returns the stored row.
func (s *GormStore) Ensure(ctx context.Context, id string) (*Session, error) {
	row := sessionRow{ID: id, CreatedAt: time.Now().UTC().Truncate(time.Microsecond)}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("ensure session %s: %w", id, err)
	}
	return s.Get(ctx, id)
}

// Get retrieves a single session.
func (s *GormStore) Get(ctx context.Context, id string) (*Session, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).Where("session_id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("get session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return row.toSession(), nil
}

// List returns the most recent sessions.
func (s *GormStore) List(ctx context.Context, limit int) ([]Session, error) {
	var rows []sessionRow
	err := s.db.WithContext(ctx).Order("created_at DESC, session_id DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	sessions := make([]Session, 0, len(rows))
	for _, r := range rows {
		sessions = append(sessions, *r.toSession())
	}
	return sessions, nil
}

// SaveTranscript stores the transcript and its summary.
func (s *GormStore) SaveTranscript(ctx context.Context, id, transcript, summary string) error {
	res := s.db.WithContext(ctx).Model(&sessionRow{}).Where("session_id = ?", id).
		Updates(map[string]any{"transcript": transcript, "summary": summary})
	if res.Error != nil {
		return fmt.Errorf("save transcript %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("save transcript %s: %w", id, ErrNotFound)
	}
	return nil
}

// Rename sets the meeting name and the meeting it follows up.
func (s *GormStore) Rename(ctx context.Context, id, name, parentSessionID string) (*Session, error) {
	res := s.db.WithContext(ctx).Model(&sessionRow{}).Where("session_id = ?", id).
		Updates(map[string]any{"meeting_name": name, "parent_session_id": parentSessionID})
	if res.Error != nil {
		return nil, fmt.Errorf("rename session %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("rename session %s: %w", id, ErrNotFound)
	}
	return s.Get(ctx, id)
}
