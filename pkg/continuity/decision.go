package continuity

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Relationship is how a new task relates to the existing root tasks.
type Relationship string

const (
	RelationshipContinuation Relationship = "continuation"
	RelationshipSubtask      Relationship = "subtask"
	RelationshipNew          Relationship = "new"
)

// ErrMalformedDecision is returned when the relationship reply does not have
// the expected shape.
var ErrMalformedDecision = errors.New("malformed relationship decision")

// Decision is the validated reply of the relationship call. ParentTitle is
// set exactly when Relationship is continuation or subtask.
type Decision struct {
	Relationship Relationship `json:"relationship"`
	ParentTitle  string       `json:"parent_task_title,omitempty"`
}

// LinksToParent reports whether the decision names a parent task.
func (d Decision) LinksToParent() bool {
	return d.Relationship != RelationshipNew
}

// ParseDecision validates a raw JSON reply. Anything other than
// {"relationship":"new"} or {"relationship":"continuation"|"subtask",
// "parent_task_title":"<non-empty>"} is rejected.
func ParseDecision(raw string) (Decision, error) {
	var payload struct {
		Relationship *string `json:"relationship"`
		ParentTitle  *string `json:"parent_task_title"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrMalformedDecision, err)
	}
	if payload.Relationship == nil {
		return Decision{}, fmt.Errorf("%w: missing relationship", ErrMalformedDecision)
	}

	rel := Relationship(strings.ToLower(strings.TrimSpace(*payload.Relationship)))
	switch rel {
	case RelationshipNew:
		return Decision{Relationship: RelationshipNew}, nil
	case RelationshipContinuation, RelationshipSubtask:
		if payload.ParentTitle == nil || strings.TrimSpace(*payload.ParentTitle) == "" {
			return Decision{}, fmt.Errorf("%w: %s without parent_task_title", ErrMalformedDecision, rel)
		}
		return Decision{Relationship: rel, ParentTitle: *payload.ParentTitle}, nil
	}
	return Decision{}, fmt.Errorf("%w: unknown relationship %q", ErrMalformedDecision, *payload.Relationship)
}
