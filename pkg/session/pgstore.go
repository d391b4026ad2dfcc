package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgColumns = `session_id, created_at, meeting_name, parent_session_id, transcript, summary`

// PgStore is a PostgreSQL-backed session store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the meeting_sessions table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS meeting_sessions (
			session_id        TEXT PRIMARY KEY,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			meeting_name      TEXT NOT NULL DEFAULT '',
			parent_session_id TEXT NOT NULL DEFAULT '',
			transcript        TEXT NOT NULL DEFAULT '',
			summary           TEXT NOT NULL DEFAULT ''
		)`)
	return err
}

// Ensure inserts the session if missing, then returns the stored row.
func (s *PgStore) Ensure(ctx context.Context, id string) (*Session, error) {
	now := time.Now().Truncate(time.Microsecond)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO meeting_sessions (session_id, created_at) VALUES ($1, $2)
		ON CONFLICT (session_id) DO NOTHING`, id, now)
	if err != nil {
		return nil, fmt.Errorf("ensure session %s: %w", id, err)
	}
	return s.Get(ctx, id)
}

// Get retrieves a single session.
func (s *PgStore) Get(ctx context.Context, id string) (*Session, error) {
	var ss Session
	err := s.pool.QueryRow(ctx, `SELECT `+pgColumns+` FROM meeting_sessions WHERE session_id = $1`, id).
		Scan(&ss.ID, &ss.CreatedAt, &ss.Name, &ss.ParentSessionID, &ss.Transcript, &ss.Summary)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return &ss, nil
}

// List returns the most recent sessions.
func (s *PgStore) List(ctx context.Context, limit int) ([]Session, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pgColumns+`
		FROM meeting_sessions ORDER BY created_at DESC, session_id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var ss Session
		if err := rows.Scan(&ss.ID, &ss.CreatedAt, &ss.Name, &ss.ParentSessionID, &ss.Transcript, &ss.Summary); err != nil {
			return nil, err
		}
		sessions = append(sessions, ss)
	}
	return sessions, rows.Err()
}

// SaveTranscript stores the transcript and its summary.
func (s *PgStore) SaveTranscript(ctx context.Context, id, transcript, summary string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE meeting_sessions SET transcript = $1, summary = $2 WHERE session_id = $3`,
		transcript, summary, id)
	if err != nil {
		return fmt.Errorf("save transcript %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("save transcript %s: %w", id, ErrNotFound)
	}
	return nil
}

// Rename sets the meeting name and the meeting it follows up.
func (s *PgStore) Rename(ctx context.Context, id, name, parentSessionID string) (*Session, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE meeting_sessions SET meeting_name = $1, parent_session_id = $2 WHERE session_id = $3`,
		name, parentSessionID, id)
	if err != nil {
		return nil, fmt.Errorf("rename session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("rename session %s: %w", id, ErrNotFound)
	}
	return s.Get(ctx, id)
}
