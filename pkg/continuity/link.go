package continuity

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"meeting-continuity/pkg/journal"
	"meeting-continuity/pkg/task"
)

// ErrInvalidDraft is returned when a new task has no title.
var ErrInvalidDraft = errors.New("task draft has no title")

// LinkTasks stores every draft for sessionID. When root tasks already exist,
// each draft is classified against them and stored under the resolved
// parent, or as a new root when no parent resolves. The root pool is read
// once, so drafts in one batch never link to each other.
//
// Drafts are handled one at a time. The first matcher or store failure stops
// the batch and is returned; drafts stored before it stay stored.
func (e *Engine) LinkTasks(ctx context.Context, sessionID string, drafts []task.Draft) error {
	cleaned := make([]task.Draft, len(drafts))
	for i, d := range drafts {
		d.Title = strings.TrimSpace(d.Title)
		if d.Title == "" {
			return fmt.Errorf("draft %d: %w", i, ErrInvalidDraft)
		}
		cleaned[i] = d
	}
	drafts = cleaned

	roots, err := e.tasks.Roots(ctx)
	if err != nil {
		return fmt.Errorf("load root tasks: %w", err)
	}

	if len(roots) == 0 {
		for _, d := range drafts {
			if _, err := e.store(ctx, sessionID, d, nil, ""); err != nil {
				return err
			}
		}
		return nil
	}

	for _, d := range drafts {
		dec, err := e.matcher.Decide(ctx, d, roots)
		if err != nil {
			return err
		}

		var parent *task.Task
		if dec.LinksToParent() {
			if p, ok := ResolveParent(dec.ParentTitle, roots); ok {
				parent = p
			} else {
				log.Printf("continuity: WARNING: suggested parent %q for %q not found, storing as root", dec.ParentTitle, d.Title)
				e.logEvent(ctx, journal.TypeLinkUnresolved, sessionID, map[string]any{
					"title":           d.Title,
					"relationship":    string(dec.Relationship),
					"suggested_title": dec.ParentTitle,
				})
			}
		}

		if _, err := e.store(ctx, sessionID, d, parent, dec.Relationship); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) store(ctx context.Context, sessionID string, d task.Draft, parent *task.Task, rel Relationship) (*task.Task, error) {
	parentID := ""
	if parent != nil {
		parentID = parent.ID
	}
	t, err := e.tasks.Create(ctx, sessionID, d, parentID)
	if err != nil {
		return nil, fmt.Errorf("store task %q: %w", d.Title, err)
	}

	if parent == nil {
		e.logEvent(ctx, journal.TypeTaskRooted, sessionID, map[string]any{
			"task_id": t.ID,
			"title":   t.Title,
		})
		return t, nil
	}

	log.Printf("continuity: linked %q to %q (%s)", t.Title, parent.Title, rel)
	e.logEvent(ctx, journal.TypeTaskLinked, sessionID, map[string]any{
		"task_id":      t.ID,
		"title":        t.Title,
		"parent_id":    parent.ID,
		"parent_title": parent.Title,
		"relationship": string(rel),
	})
	return t, nil
}
