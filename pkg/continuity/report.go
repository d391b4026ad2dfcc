package continuity

import (
	"context"
	"fmt"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"

	"meeting-continuity/pkg/journal"
	"meeting-continuity/pkg/task"
)

// Report is the continuity report for one session: progress and narrative
// for every earlier task the session's new tasks were linked under.
type Report struct {
	PreviousTasks []Metrics    `json:"previousTasks"`
	Blockers      []task.Entry `json:"blockers"`
	AIAnalysis    string       `json:"aiAnalysis"`
}

type parentResult struct {
	metrics  *Metrics
	analysis string
}

// Generate links drafts into the task history for sessionID and reports on
// each parent task the session now references, in store order. Any failure
// fails the whole call.
func (e *Engine) Generate(ctx context.Context, sessionID string, drafts []task.Draft) (*Report, error) {
	if err := e.LinkTasks(ctx, sessionID, drafts); err != nil {
		return nil, fmt.Errorf("link tasks: %w", err)
	}

	parents, err := e.tasks.SessionParents(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session parents: %w", err)
	}

	// Each worker writes only its own slot; the report is assembled after
	// Wait so the order never depends on scheduling.
	results := make([]parentResult, len(parents))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, p := range parents {
		g.Go(func() error {
			m, err := e.Progress(gctx, p.ID)
			if err != nil {
				return err
			}
			if m == nil {
				return nil
			}
			text, err := e.Analyze(gctx, m)
			if err != nil {
				return err
			}
			results[i] = parentResult{metrics: m, analysis: text}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{
		PreviousTasks: []Metrics{},
		Blockers:      []task.Entry{},
	}
	var analysis strings.Builder
	for _, r := range results {
		if r.metrics == nil {
			continue
		}
		report.PreviousTasks = append(report.PreviousTasks, *r.metrics)
		report.Blockers = append(report.Blockers, r.metrics.Blockers...)
		analysis.WriteString(r.analysis)
		analysis.WriteString("\n\n")
	}
	report.AIAnalysis = strings.TrimSpace(analysis.String())

	log.Printf("continuity: session %s report covers %d earlier task(s)", sessionID, len(report.PreviousTasks))
	e.logEvent(ctx, journal.TypeContinuityCreated, sessionID, map[string]any{
		"new_tasks":      len(drafts),
		"previous_tasks": len(report.PreviousTasks),
		"blockers":       len(report.Blockers),
	})
	return report, nil
}
