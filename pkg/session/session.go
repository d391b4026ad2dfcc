package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a session id has no row.
var ErrNotFound = errors.New("session not found")

// Session is one recorded meeting.
type Session struct {
	ID              string    `json:"session_id"`
	CreatedAt       time.Time `json:"created_at"`
	Name            string    `json:"meeting_name,omitempty"`
	ParentSessionID string    `json:"parent_session_id,omitempty"` // earlier meeting this one follows up
	Transcript      string    `json:"transcript,omitempty"`
	Summary         string    `json:"summary,omitempty"`
}

// Store is the contract for session persistence.
type Store interface {
	// Ensure creates the session if it does not exist and returns it.
	// Idempotent: an existing session is returned unchanged.
	Ensure(ctx context.Context, id string) (*Session, error)

	Get(ctx context.Context, id string) (*Session, error)

	// List returns sessions newest first.
	List(ctx context.Context, limit int) ([]Session, error)

	SaveTranscript(ctx context.Context, id, transcript, summary string) error
	Rename(ctx context.Context, id, name, parentSessionID string) (*Session, error)
	EnsureTable(ctx context.Context) error
}
