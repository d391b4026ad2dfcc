package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const timeLayout = "2006-01-02T15:04:05.000000Z"

type eventRow struct {
	ID        string `gorm:"primaryKey;column:id"`
	Type      string `gorm:"column:type;not null"`
	Timestamp string `gorm:"column:timestamp;not null;index"`
	SessionID string `gorm:"column:session_id;not null;index"`
	Content   string `gorm:"column:content;not null"`
	Hash      string `gorm:"column:hash;not null"`
	PrevHash  string `gorm:"column:prev_hash;not null"`
}

func (eventRow) TableName() string { return "journal" }

func (r eventRow) toEvent() (*Event, error) {
	ts, err := time.Parse(time.RFC3339Nano, r.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("event %s timestamp: %w", r.ID, err)
	}
	e := &Event{
		ID:        r.ID,
		Type:      r.Type,
		Timestamp: ts,
		SessionID: r.SessionID,
		Hash:      r.Hash,
		PrevHash:  r.PrevHash,
	}
	if err := json.Unmarshal([]byte(r.Content), &e.Content); err != nil {
		return nil, fmt.Errorf("unmarshal content: %w", err)
	}
	return e, nil
}

// GormStore is a gorm-backed journal, used with SQLite.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GormStore.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// EnsureTable migrates the journal table.
func (s *GormStore) EnsureTable(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&eventRow{})
}

// Append creates and stores a new event, extending the hash chain.
func (s *GormStore) Append(ctx context.Context, eventType, sessionID string, content map[string]any) (*Event, error) {
	if content == nil {
		content = map[string]any{}
	}
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("marshal content: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	e := &Event{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Type:      eventType,
		Timestamp: now,
		SessionID: sessionID,
		Content:   content,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var head eventRow
		err := tx.Order("timestamp DESC, id DESC").Take(&head).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("read chain head: %w", err)
		}
		e.PrevHash = head.Hash
		e.Hash = computeHash(e.PrevHash, e.ID, e.Type, e.SessionID, e.Timestamp, contentJSON)

		row := eventRow{
			ID:        e.ID,
			Type:      e.Type,
			Timestamp: now.Format(timeLayout),
			SessionID: e.SessionID,
			Content:   string(contentJSON),
			Hash:      e.Hash,
			PrevHash:  e.PrevHash,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// BySession returns a session's events in chronological order.
func (s *GormStore) BySession(ctx context.Context, sessionID string, limit int) ([]Event, error) {
	return s.find(s.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("timestamp ASC, id ASC").Limit(limit))
}

// Recent returns the most recent events in reverse chronological order.
func (s *GormStore) Recent(ctx context.Context, limit int) ([]Event, error) {
	return s.find(s.db.WithContext(ctx).Order("timestamp DESC, id DESC").Limit(limit))
}

// Since returns events created after the given ID, for polling/SSE.
func (s *GormStore) Since(ctx context.Context, afterID string, limit int) ([]Event, error) {
	db := s.db.WithContext(ctx)
	var anchor eventRow
	if err := db.Where("id = ?", afterID).Take(&anchor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []Event{}, nil
		}
		return nil, fmt.Errorf("since %s: %w", afterID, err)
	}
	return s.find(db.Where("timestamp > ? OR (timestamp = ? AND id > ?)", anchor.Timestamp, anchor.Timestamp, anchor.ID).
		Order("timestamp ASC, id ASC").Limit(limit))
}

// Count returns the total number of events.
func (s *GormStore) Count(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&eventRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return int(n), nil
}

// VerifyChain walks the entire chain chronologically and verifies hash integrity.
func (s *GormStore) VerifyChain(ctx context.Context) error {
	var rows []eventRow
	if err := s.db.WithContext(ctx).Order("timestamp ASC, id ASC").Find(&rows).Error; err != nil {
		return fmt.Errorf("verify chain query: %w", err)
	}
	prevHash := ""
	for i, r := range rows {
		e, err := r.toEvent()
		if err != nil {
			return fmt.Errorf("verify chain row %d: %w", i, err)
		}
		if err := verifyLink(i, e, prevHash, []byte(r.Content)); err != nil {
			return err
		}
		prevHash = e.Hash
	}
	return nil
}

func (s *GormStore) find(q *gorm.DB) ([]Event, error) {
	var rows []eventRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(rows))
	for _, r := range rows {
		e, err := r.toEvent()
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, nil
}
