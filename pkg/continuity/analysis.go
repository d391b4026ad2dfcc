package continuity

import (
	"context"
	"fmt"
	"strings"

	"meeting-continuity/pkg/llm"
	"meeting-continuity/pkg/task"
)

// NoDataMessage is the narrative for a task with no progress data.
const NoDataMessage = "No progress data available for analysis."

const analysisTemplate = `You are a concise project manager. Based on the following data, write a brief analysis of 3-4 sentences.

Task: %q
Progress: %d%% complete (%d/%d subtasks)
Velocity: %s subtasks/day
Projected Completion: %s
Blockers: %s
Help Needed: %s

Cover the current status, the velocity, and the projected completion. End with a call to action for any blockers or help needed.`

// Analyze writes a short status narrative for m. Nil metrics produce
// NoDataMessage without contacting the service; a failed call is returned
// as is, with no substitute text.
func (e *Engine) Analyze(ctx context.Context, m *Metrics) (string, error) {
	if m == nil {
		return NoDataMessage, nil
	}
	text, err := e.gen.Generate(ctx, llm.Request{Prompt: analysisPrompt(m)})
	if err != nil {
		return "", fmt.Errorf("analyze %q: %w", m.TaskTitle, err)
	}
	return text, nil
}

func analysisPrompt(m *Metrics) string {
	return fmt.Sprintf(analysisTemplate,
		m.TaskTitle,
		m.ProgressPercent, m.SubtasksCompleted, m.SubtasksTotal,
		m.Velocity,
		m.EstimatedCompletionDate,
		joinNames(m.Blockers),
		joinNames(m.HelpNeeded),
	)
}

func joinNames(entries []task.Entry) string {
	if len(entries) == 0 {
		return "None"
	}
	return strings.Join(task.Names(entries), ", ")
}
