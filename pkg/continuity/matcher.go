package continuity

import (
	"context"
	"fmt"
	"log"
	"strings"

	"meeting-continuity/pkg/llm"
	"meeting-continuity/pkg/task"
)

const matchPrompt = `Decide how a task raised in a meeting relates to the project's existing top-level tasks.

New task: %q
Description: %q
Existing tasks: [%s]

Answer "continuation" if the new task is further progress on, or a restatement of, one existing task,
"subtask" if it is a narrower piece of work under one existing task, or "new" if it belongs to none of them.

Reply with a JSON object:
{"relationship": "continuation" | "subtask" | "new", "parent_task_title": "the EXACT title of the parent copied from the list, or null"}`

// Matcher asks the text-generation service whether a new task continues one
// of the existing root tasks.
type Matcher struct {
	gen llm.Generator
}

// NewMatcher creates a Matcher.
func NewMatcher(gen llm.Generator) *Matcher {
	return &Matcher{gen: gen}
}

// Decide classifies d against roots. Upstream failures and malformed replies
// are returned to the caller; nothing is retried.
func (m *Matcher) Decide(ctx context.Context, d task.Draft, roots []task.Task) (Decision, error) {
	titles := make([]string, len(roots))
	for i, r := range roots {
		titles[i] = "'" + r.Title + "'"
	}
	prompt := fmt.Sprintf(matchPrompt, d.Title, d.Description, strings.Join(titles, ", "))

	raw, err := m.gen.Generate(ctx, llm.Request{Prompt: prompt, JSON: true})
	if err != nil {
		return Decision{}, fmt.Errorf("relationship call for %q: %w", d.Title, err)
	}

	dec, err := ParseDecision(raw)
	if err != nil {
		log.Printf("continuity: unusable relationship reply for %q: %v (payload: %s)", d.Title, err, raw)
		return Decision{}, err
	}
	log.Printf("continuity: relationship for %q: %s %q", d.Title, dec.Relationship, dec.ParentTitle)
	return dec, nil
}

// ResolveParent maps a suggested title back to a candidate. A trimmed,
// case-insensitive exact match wins; otherwise the first candidate whose
// title contains, or is contained in, the suggestion is used.
func ResolveParent(title string, candidates []task.Task) (*task.Task, bool) {
	target := strings.ToLower(strings.TrimSpace(title))
	if target == "" {
		return nil, false
	}
	for i := range candidates {
		if strings.ToLower(strings.TrimSpace(candidates[i].Title)) == target {
			return &candidates[i], true
		}
	}
	for i := range candidates {
		have := strings.ToLower(strings.TrimSpace(candidates[i].Title))
		if have == "" {
			continue
		}
		if strings.Contains(have, target) || strings.Contains(target, have) {
			return &candidates[i], true
		}
	}
	return nil, false
}
