package continuity

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"meeting-continuity/pkg/task"
)

// NotAvailable marks a projection that cannot be made because nothing has
// been completed yet.
const NotAvailable = "N/A"

// Metrics is the progress of one task and everything below it.
type Metrics struct {
	TaskID                  string       `json:"taskId"`
	TaskTitle               string       `json:"taskTitle"`
	CreatedDate             string       `json:"createdDate"`
	DaysElapsed             int          `json:"daysElapsed"`
	ProgressPercent         int          `json:"progressPercent"`
	SubtasksCompleted       int          `json:"subtasksCompleted"`
	SubtasksTotal           int          `json:"subtasksTotal"`
	Velocity                Velocity     `json:"velocity"`
	EstimatedDaysRemaining  DaysEstimate `json:"estimatedDaysRemaining"`
	EstimatedCompletionDate string       `json:"estimatedCompletionDate"`
	Blockers                []task.Entry `json:"blockers"`
	HelpNeeded              []task.Entry `json:"helpNeeded"`
}

// Velocity is completed subtasks per day. It is reported with two decimals.
type Velocity float64

func (v Velocity) String() string {
	return strconv.FormatFloat(float64(v), 'f', 2, 64)
}

// MarshalJSON implements json.Marshaler.
func (v Velocity) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON accepts the string form as well as a bare number.
func (v *Velocity) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var f float64
		if err := json.Unmarshal(b, &f); err != nil {
			return fmt.Errorf("velocity: %w", err)
		}
		*v = Velocity(f)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("velocity: %w", err)
	}
	*v = Velocity(f)
	return nil
}

// DaysEstimate is a projected number of days. An estimate that is not Known
// is reported as "N/A", never as zero.
type DaysEstimate struct {
	Days  float64
	Known bool
}

func (d DaysEstimate) String() string {
	if !d.Known {
		return NotAvailable
	}
	return strconv.FormatFloat(d.Days, 'f', 1, 64)
}

// MarshalJSON implements json.Marshaler.
func (d DaysEstimate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *DaysEstimate) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("days estimate: %w", err)
	}
	if s == NotAvailable {
		*d = DaysEstimate{}
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("days estimate: %w", err)
	}
	*d = DaysEstimate{Days: f, Known: true}
	return nil
}

// Progress computes metrics for taskID and its descendants. An unknown task
// yields nil metrics and no error.
func (e *Engine) Progress(ctx context.Context, taskID string) (*Metrics, error) {
	rows, err := e.tasks.Subtree(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("progress %s: %w", taskID, err)
	}
	return computeMetrics(rows, e.now()), nil
}

// computeMetrics derives metrics from a subtree whose first row is the root.
func computeMetrics(rows []task.Task, now time.Time) *Metrics {
	if len(rows) == 0 {
		return nil
	}
	root := rows[0]

	daysElapsed := int(roundHalfUp(now.Sub(root.CreatedAt).Hours() / 24))

	total := len(rows)
	completed := 0
	blockers := []task.Entry{}
	helpNeeded := []task.Entry{}
	for _, t := range rows {
		if t.Status == task.StatusCompleted {
			completed++
		}
		blockers = append(blockers, t.Blockers...)
		helpNeeded = append(helpNeeded, t.HelpNeeded...)
	}

	percent := 0
	if total > 0 {
		percent = int(roundHalfUp(float64(completed) / float64(total) * 100))
	}

	var velocity float64
	if daysElapsed > 0 {
		velocity = float64(completed) / float64(daysElapsed)
	}

	remaining := DaysEstimate{}
	completion := NotAvailable
	if velocity > 0 {
		remaining = DaysEstimate{Days: float64(total-completed) / velocity, Known: true}
		completion = now.UTC().AddDate(0, 0, int(remaining.Days)).Format(time.DateOnly)
	}

	return &Metrics{
		TaskID:                  root.ID,
		TaskTitle:               root.Title,
		CreatedDate:             root.CreatedAt.UTC().Format(time.DateOnly),
		DaysElapsed:             daysElapsed,
		ProgressPercent:         percent,
		SubtasksCompleted:       completed,
		SubtasksTotal:           total,
		Velocity:                Velocity(velocity),
		EstimatedDaysRemaining:  remaining,
		EstimatedCompletionDate: completion,
		Blockers:                blockers,
		HelpNeeded:              helpNeeded,
	}
}

// roundHalfUp rounds to the nearest integer with halves going up.
func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}
