package continuity

import (
	"errors"
	"testing"
)

func TestParseDecision(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Decision
		wantErr bool
	}{
		{"new", `{"relationship":"new","parent_task_title":null}`, Decision{Relationship: RelationshipNew}, false},
		{"new ignores title", `{"relationship":"new","parent_task_title":"Build recorder"}`, Decision{Relationship: RelationshipNew}, false},
		{"continuation", `{"relationship":"continuation","parent_task_title":"Build recorder"}`,
			Decision{Relationship: RelationshipContinuation, ParentTitle: "Build recorder"}, false},
		{"subtask mixed case", `{"relationship":" Subtask ","parent_task_title":"Setup DB"}`,
			Decision{Relationship: RelationshipSubtask, ParentTitle: "Setup DB"}, false},
		{"extra fields tolerated", `{"relationship":"new","confidence":0.9}`, Decision{Relationship: RelationshipNew}, false},
		{"missing relationship", `{"parent_task_title":"Build recorder"}`, Decision{}, true},
		{"unknown relationship", `{"relationship":"duplicate","parent_task_title":"Build recorder"}`, Decision{}, true},
		{"continuation without title", `{"relationship":"continuation","parent_task_title":null}`, Decision{}, true},
		{"subtask blank title", `{"relationship":"subtask","parent_task_title":"  "}`, Decision{}, true},
		{"title not a string", `{"relationship":"subtask","parent_task_title":42}`, Decision{}, true},
		{"not json", `Sure! The task is new.`, Decision{}, true},
		{"empty", ``, Decision{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDecision(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedDecision) {
					t.Fatalf("err = %v, want ErrMalformedDecision", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecisionLinksToParent(t *testing.T) {
	if (Decision{Relationship: RelationshipNew}).LinksToParent() {
		t.Error("new should not link to a parent")
	}
	if !(Decision{Relationship: RelationshipSubtask, ParentTitle: "x"}).LinksToParent() {
		t.Error("subtask should link to a parent")
	}
}
