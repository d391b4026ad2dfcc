package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgColumns = `id, type, timestamp, session_id, content, hash, prev_hash`

// PgStore is a PostgreSQL-backed journal.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the journal table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS journal (
			id         TEXT PRIMARY KEY,
			type       TEXT NOT NULL,
			timestamp  TIMESTAMPTZ NOT NULL,
			session_id TEXT NOT NULL DEFAULT '',
			content    TEXT NOT NULL DEFAULT '{}',
			hash       TEXT NOT NULL,
			prev_hash  TEXT NOT NULL DEFAULT ''
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_journal_timestamp_id ON journal(timestamp, id)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_journal_session ON journal(session_id) WHERE session_id != ''`)
	return err
}

// Append creates and stores a new event, extending the hash chain.
func (s *PgStore) Append(ctx context.Context, eventType, sessionID string, content map[string]any) (*Event, error) {
	if content == nil {
		content = map[string]any{}
	}
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("marshal content: %w", err)
	}

	now := time.Now().Truncate(time.Microsecond)
	id := uuid.Must(uuid.NewV7()).String()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var prevHash string
	err = tx.QueryRow(ctx, `SELECT hash FROM journal ORDER BY timestamp DESC, id DESC LIMIT 1 FOR UPDATE`).Scan(&prevHash)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("read chain head: %w", err)
	}

	e := &Event{
		ID:        id,
		Type:      eventType,
		Timestamp: now,
		SessionID: sessionID,
		Content:   content,
		PrevHash:  prevHash,
		Hash:      computeHash(prevHash, id, eventType, sessionID, now, contentJSON),
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO journal (id, type, timestamp, session_id, content, hash, prev_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.Type, e.Timestamp, e.SessionID, string(contentJSON), e.Hash, e.PrevHash)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit event: %w", err)
	}
	return e, nil
}

// BySession returns a session's events in chronological order.
func (s *PgStore) BySession(ctx context.Context, sessionID string, limit int) ([]Event, error) {
	return s.scanMany(ctx, `SELECT `+pgColumns+`
		FROM journal WHERE session_id = $1 ORDER BY timestamp ASC, id ASC LIMIT $2`, sessionID, limit)
}

// Recent returns the most recent events in reverse chronological order.
func (s *PgStore) Recent(ctx context.Context, limit int) ([]Event, error) {
	return s.scanMany(ctx, `SELECT `+pgColumns+`
		FROM journal ORDER BY timestamp DESC, id DESC LIMIT $1`, limit)
}

// Since returns events created after the given ID, for polling/SSE.
func (s *PgStore) Since(ctx context.Context, afterID string, limit int) ([]Event, error) {
	return s.scanMany(ctx, `SELECT `+pgColumns+`
		FROM journal WHERE (timestamp, id) > (SELECT timestamp, id FROM journal WHERE id = $1)
		ORDER BY timestamp ASC, id ASC LIMIT $2`, afterID, limit)
}

// Count returns the total number of events.
func (s *PgStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM journal`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// VerifyChain walks the entire chain chronologically and verifies hash integrity.
func (s *PgStore) VerifyChain(ctx context.Context) error {
	rows, err := s.pool.Query(ctx, `SELECT `+pgColumns+` FROM journal ORDER BY timestamp ASC, id ASC`)
	if err != nil {
		return fmt.Errorf("verify chain query: %w", err)
	}
	defer rows.Close()

	prevHash := ""
	i := 0
	for rows.Next() {
		e, contentJSON, err := scanEvent(rows)
		if err != nil {
			return fmt.Errorf("verify chain scan row %d: %w", i, err)
		}
		if err := verifyLink(i, e, prevHash, contentJSON); err != nil {
			return err
		}
		prevHash = e.Hash
		i++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("verify chain rows: %w", err)
	}
	return nil
}

func (s *PgStore) scanMany(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		e, _, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return events, nil
}

func scanEvent(rows pgx.Rows) (*Event, []byte, error) {
	var e Event
	var content string
	if err := rows.Scan(&e.ID, &e.Type, &e.Timestamp, &e.SessionID, &content, &e.Hash, &e.PrevHash); err != nil {
		return nil, nil, err
	}
	if err := json.Unmarshal([]byte(content), &e.Content); err != nil {
		return nil, nil, fmt.Errorf("unmarshal content: %w", err)
	}
	return &e, []byte(content), nil
}
