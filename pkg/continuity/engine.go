// Package continuity links the tasks extracted from a meeting to the tasks
// recorded in earlier meetings, then reports progress on every earlier task
// the meeting touched:
//   - Matcher asks the text-generation service how a new task relates to the existing root tasks
//   - LinkTasks stores each new task, under its parent when one is found
//   - Progress walks a task's subtree and derives completion and velocity figures
//   - Analyze turns those figures into a short status narrative
//   - Generate runs the whole pipeline for one session
package continuity

import (
	"context"
	"log"
	"time"

	"meeting-continuity/pkg/journal"
	"meeting-continuity/pkg/llm"
	"meeting-continuity/pkg/task"
)

// Engine is the task continuity engine. It holds no state of its own between
// calls; everything durable lives in the task store.
type Engine struct {
	tasks   task.Store
	gen     llm.Generator
	matcher *Matcher
	journal journal.Store // optional

	now         func() time.Time
	concurrency int
}

// Option configures an Engine.
type Option func(*Engine)

// WithJournal records every linking step and report in j.
func WithJournal(j journal.Store) Option {
	return func(e *Engine) { e.journal = j }
}

// WithAnalysisConcurrency sets how many parent tasks Generate analyzes at
// once. Values below 1 mean one at a time.
func WithAnalysisConcurrency(n int) Option {
	return func(e *Engine) {
		if n < 1 {
			n = 1
		}
		e.concurrency = n
	}
}

// WithClock replaces time.Now for progress calculations.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine.
func New(tasks task.Store, gen llm.Generator, opts ...Option) *Engine {
	e := &Engine{
		tasks:       tasks,
		gen:         gen,
		matcher:     NewMatcher(gen),
		now:         time.Now,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// logEvent appends to the journal if one is configured. Failures are logged
// and never interrupt the pipeline.
func (e *Engine) logEvent(ctx context.Context, eventType, sessionID string, content map[string]any) {
	if e.journal == nil {
		return
	}
	if _, err := e.journal.Append(ctx, eventType, sessionID, content); err != nil {
		log.Printf("continuity: journal %s: %v", eventType, err)
	}
}
