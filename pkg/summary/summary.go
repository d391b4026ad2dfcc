// Package summary turns a meeting transcript into a summary, labelled
// insights and the task drafts the continuity engine links.
package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"

	"meeting-continuity/pkg/llm"
	"meeting-continuity/pkg/task"
)

// Insight labels.
const (
	LabelDecision   = "Decision"
	LabelActionItem = "Action Item"
	LabelImportant  = "Important"
)

const systemPrompt = "You are a meeting assistant. Summarize multi-speaker meetings without missing explicit points. " +
	"Return JSON only. If no decisions or action items are stated, return empty lists."

const userTemplate = `Transcript:
%s

Reply with a JSON object of this shape:
{
  "summary": "A short executive summary of the meeting",
  "insights": [{"label": "Decision" | "Action Item" | "Important", "content": "What was decided, assigned or stressed"}],
  "tasks": [{"title": "Task title", "description": "At least one line describing what is expected"}]
}`

// Insight is one labelled point from a meeting.
type Insight struct {
	Label   string `json:"label"`
	Content string `json:"content"`
}

// Summary is the structured result of summarizing a transcript.
type Summary struct {
	Summary  string       `json:"summary"`
	Insights []Insight    `json:"insights"`
	Tasks    []task.Draft `json:"tasks"`
}

// Drafts returns the tasks to link for the meeting. When the model named no
// tasks, the action items stand in for them.
func (s *Summary) Drafts() []task.Draft {
	if len(s.Tasks) > 0 {
		return s.Tasks
	}
	var drafts []task.Draft
	for _, in := range s.Insights {
		if in.Label != LabelActionItem {
			continue
		}
		title := stripNumber(in.Content)
		if title == "" {
			continue
		}
		drafts = append(drafts, task.Draft{Title: title, Description: defaultDescription(title)})
	}
	return drafts
}

// Summarizer summarizes transcripts with a text generator.
type Summarizer struct {
	gen llm.Generator
}

// New creates a Summarizer.
func New(gen llm.Generator) *Summarizer {
	return &Summarizer{gen: gen}
}

// Summarize summarizes transcript. An empty transcript yields an empty
// summary without calling the service.
func (s *Summarizer) Summarize(ctx context.Context, transcript string) (*Summary, error) {
	if strings.TrimSpace(transcript) == "" {
		log.Println("summary: empty transcript, skipping summarization")
		return &Summary{Insights: []Insight{}, Tasks: []task.Draft{}}, nil
	}

	raw, err := s.gen.Generate(ctx, llm.Request{
		System: systemPrompt,
		Prompt: fmt.Sprintf(userTemplate, transcript),
		JSON:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}

	var out Summary
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		log.Printf("summary: unparseable reply: %v (payload: %s)", err, raw)
		return nil, fmt.Errorf("summarize: parse reply: %w", err)
	}
	normalize(&out)
	return &out, nil
}

var numberPrefix = regexp.MustCompile(`^\d+\.\s*`)

func stripNumber(s string) string {
	return strings.TrimSpace(numberPrefix.ReplaceAllString(strings.TrimSpace(s), ""))
}

func defaultDescription(title string) string {
	if title == "" {
		return "Discussed topics relevant to the meeting."
	}
	return title + " was discussed and captured for follow-up."
}

// normalize numbers insights, folds unknown labels into Important, drops
// untitled tasks and fills in missing descriptions.
func normalize(s *Summary) {
	s.Summary = strings.TrimSpace(s.Summary)

	insights := make([]Insight, 0, len(s.Insights))
	for _, in := range s.Insights {
		switch in.Label {
		case LabelDecision, LabelActionItem, LabelImportant:
		default:
			in.Label = LabelImportant
		}
		content := stripNumber(in.Content)
		if content == "" {
			content = "No detail provided."
		}
		in.Content = fmt.Sprintf("%d. %s", len(insights)+1, content)
		insights = append(insights, in)
	}
	s.Insights = insights

	tasks := make([]task.Draft, 0, len(s.Tasks))
	for _, d := range s.Tasks {
		d.Title = strings.TrimSpace(d.Title)
		if d.Title == "" {
			continue
		}
		if strings.TrimSpace(d.Description) == "" {
			d.Description = defaultDescription(d.Title)
		}
		tasks = append(tasks, d)
	}
	s.Tasks = tasks
}
