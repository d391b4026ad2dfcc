// Package journal keeps an append-only, hash-chained record of what the
// continuity engine did for each meeting session.
package journal

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"
)

// Event types appended by the continuity engine.
const (
	TypeTaskRooted        = "task.rooted"
	TypeTaskLinked        = "task.linked"
	TypeLinkUnresolved    = "task.link.unresolved"
	TypeContinuityCreated = "continuity.generated"
	TypeTranscriptSaved   = "session.transcript.saved"
)

// Event is one journal entry.
type Event struct {
	ID        string         `json:"id"` // UUID v7 (time-ordered)
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id"`
	Content   map[string]any `json:"content"`
	Hash      string         `json:"hash"`      // SHA-256 of canonical form
	PrevHash  string         `json:"prev_hash"` // hash chain link
}

// Store is the contract for journal persistence.
type Store interface {
	Append(ctx context.Context, eventType, sessionID string, content map[string]any) (*Event, error)
	BySession(ctx context.Context, sessionID string, limit int) ([]Event, error)
	Recent(ctx context.Context, limit int) ([]Event, error)
	Since(ctx context.Context, afterID string, limit int) ([]Event, error)
	Count(ctx context.Context) (int, error)
	VerifyChain(ctx context.Context) error
	EnsureTable(ctx context.Context) error
}

// computeHash computes a SHA-256 hash for chain integrity.
func computeHash(prevHash, id, eventType, sessionID string, timestamp time.Time, contentJSON []byte) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d|%s", prevHash, id, eventType, sessionID, timestamp.UnixMicro(), string(contentJSON))
	h := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", h)
}

// verifyLink checks one event against the hash of its predecessor.
func verifyLink(i int, e *Event, prevHash string, contentJSON []byte) error {
	if e.PrevHash != prevHash {
		return fmt.Errorf("event %d (%s): prev_hash mismatch: got %s, want %s", i, e.ID, e.PrevHash, prevHash)
	}
	if want := computeHash(prevHash, e.ID, e.Type, e.SessionID, e.Timestamp, contentJSON); e.Hash != want {
		return fmt.Errorf("event %d (%s): hash mismatch: got %s, want %s", i, e.ID, e.Hash, want)
	}
	return nil
}
