package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"meeting-continuity/pkg/continuity"
	"meeting-continuity/pkg/journal"
	"meeting-continuity/pkg/session"
	"meeting-continuity/pkg/task"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type progressView struct {
	ProgressMetrics *continuity.Metrics `json:"progressMetrics"`
	AIAnalysis      string              `json:"aiAnalysis,omitempty"`
}

// output writes v in the selected format; text uses the given renderer.
func output(cmd *cobra.Command, opts *options, v any, text func(*renderer)) error {
	w := cmd.OutOrStdout()
	switch opts.format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		return writeYAML(w, v)
	}
	text(&renderer{w: w})
	return nil
}

// writeYAML goes through the JSON form so custom JSON encodings, such as
// "N/A" estimates, look the same in both formats.
func writeYAML(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

type renderer struct {
	w io.Writer
}

func (r *renderer) line(format string, args ...any) {
	fmt.Fprintf(r.w, format+"\n", args...)
}

func (r *renderer) text(s string) {
	fmt.Fprintln(r.w, s)
}

func statusStyle(status string) lipgloss.Style {
	switch status {
	case task.StatusCompleted:
		return doneStyle
	case task.StatusBlocked:
		return errStyle
	case task.StatusInProgress:
		return warnStyle
	}
	return dimStyle
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[len(id)-8:]
	}
	return id
}

func (r *renderer) tasks(tasks []task.Task) {
	if len(tasks) == 0 {
		r.text(dimStyle.Render("No tasks."))
		return
	}
	r.text(headerStyle.Render(fmt.Sprintf("%-10s %-12s %-12s %s", "ID", "STATUS", "SESSION", "TITLE")))
	for _, t := range tasks {
		title := t.Title
		if !t.IsRoot() {
			title = dimStyle.Render("↳ ") + title
		}
		r.line("%-10s %s %-12s %s",
			shortID(t.ID),
			statusStyle(t.Status).Render(fmt.Sprintf("%-12s", t.Status)),
			shortID(t.SessionID),
			title)
	}
}

func (r *renderer) task(t *task.Task) {
	r.text(headerStyle.Render(t.Title))
	r.line("id:       %s", t.ID)
	r.line("session:  %s", t.SessionID)
	if !t.IsRoot() {
		r.line("parent:   %s", t.ParentTaskID)
	}
	r.line("status:   %s", statusStyle(t.Status).Render(t.Status))
	r.line("created:  %s", t.CreatedAt.Format("2006-01-02 15:04"))
	if t.Description != "" {
		r.text(dimStyle.Render(t.Description))
	}
	r.list("blockers", t.Blockers)
	r.list("help needed", t.HelpNeeded)
}

func (r *renderer) list(label string, entries []task.Entry) {
	if len(entries) == 0 {
		return
	}
	r.line("%s:", label)
	for _, name := range task.Names(entries) {
		r.line("  - %s", name)
	}
}

// bar draws a fixed-width completion bar.
func bar(percent int) string {
	const width = 20
	filled := percent * width / 100
	if filled > width {
		filled = width
	}
	return doneStyle.Render(strings.Repeat("█", filled)) + dimStyle.Render(strings.Repeat("░", width-filled))
}

func (r *renderer) metrics(m *continuity.Metrics) {
	r.text(headerStyle.Render(m.TaskTitle) + dimStyle.Render(" since "+m.CreatedDate))
	r.line("%s %d%% (%d/%d done)", bar(m.ProgressPercent), m.ProgressPercent, m.SubtasksCompleted, m.SubtasksTotal)
	r.line("velocity:  %s/day over %d day(s)", m.Velocity, m.DaysElapsed)
	r.line("remaining: %s day(s), projected %s", m.EstimatedDaysRemaining, m.EstimatedCompletionDate)
	r.list("blockers", m.Blockers)
	r.list("help needed", m.HelpNeeded)
}

func (r *renderer) progress(v progressView) {
	r.metrics(v.ProgressMetrics)
	if v.AIAnalysis != "" {
		r.text(boxStyle.Render(v.AIAnalysis))
	}
}

func (r *renderer) report(rep *continuity.Report) {
	if len(rep.PreviousTasks) == 0 {
		r.text(dimStyle.Render("No earlier tasks were continued in this meeting."))
		return
	}
	for i := range rep.PreviousTasks {
		if i > 0 {
			r.text("")
		}
		r.metrics(&rep.PreviousTasks[i])
	}
	if rep.AIAnalysis != "" {
		r.text("")
		r.text(boxStyle.Render(rep.AIAnalysis))
	}
}

func (r *renderer) sessions(sessions []session.Session) {
	if len(sessions) == 0 {
		r.text(dimStyle.Render("No sessions."))
		return
	}
	r.text(headerStyle.Render(fmt.Sprintf("%-38s %-17s %s", "SESSION", "CREATED", "NAME")))
	for _, s := range sessions {
		r.line("%-38s %-17s %s", s.ID, s.CreatedAt.Format("2006-01-02 15:04"), s.Name)
	}
}

func (r *renderer) session(s *session.Session) {
	name := s.Name
	if name == "" {
		name = s.ID
	}
	r.text(headerStyle.Render(name))
	r.line("id:       %s", s.ID)
	r.line("created:  %s", s.CreatedAt.Format("2006-01-02 15:04"))
	if s.ParentSessionID != "" {
		r.line("follows:  %s", s.ParentSessionID)
	}
	if s.Summary != "" {
		r.text(boxStyle.Render(s.Summary))
	}
}

func (r *renderer) events(events []journal.Event) {
	if len(events) == 0 {
		r.text(dimStyle.Render("No events."))
		return
	}
	for _, e := range events {
		content, _ := json.Marshal(e.Content)
		r.line("%s %-22s %s", dimStyle.Render(e.Timestamp.Format("15:04:05")), e.Type, content)
	}
}

func (r *renderer) status(s statusView) {
	chain := doneStyle.Render(s.Chain)
	if s.Chain != "ok" {
		chain = errStyle.Render(s.Chain)
	}
	r.line("store:   %s", s.Driver)
	r.line("tasks:   %d", s.Tasks)
	r.line("events:  %d", s.Events)
	r.line("journal: %s", chain)
}
