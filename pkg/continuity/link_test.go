package continuity

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"meeting-continuity/pkg/journal"
	"meeting-continuity/pkg/llm"
	"meeting-continuity/pkg/task"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func decisionReply(raw string) func(llm.Request) (string, error) {
	return func(llm.Request) (string, error) { return raw, nil }
}

func TestLinkTasksEmptyPoolStoresRootsWithoutCalls(t *testing.T) {
	store := newMockTaskStore(testNow)
	j := &mockJournal{}
	gen := &fakeGenerator{respond: func(llm.Request) (string, error) {
		t.Fatal("generator must not be called when no root tasks exist")
		return "", nil
	}}
	e := New(store, gen, WithJournal(j))

	drafts := []task.Draft{{Title: "Build recorder"}, {Title: "Setup DB"}}
	if err := e.LinkTasks(context.Background(), "A", drafts); err != nil {
		t.Fatalf("LinkTasks: %v", err)
	}

	roots, _ := store.Roots(context.Background())
	if len(roots) != 2 {
		t.Fatalf("roots = %d, want 2", len(roots))
	}
	for _, r := range roots {
		if r.SessionID != "A" || r.Status != task.StatusInProgress {
			t.Errorf("root %q: session=%q status=%q", r.Title, r.SessionID, r.Status)
		}
	}
	if got := j.types(); len(got) != 2 || got[0] != journal.TypeTaskRooted || got[1] != journal.TypeTaskRooted {
		t.Errorf("journal = %v, want two %s events", got, journal.TypeTaskRooted)
	}
}

func TestLinkTasksExactMatchPrecedence(t *testing.T) {
	store := newMockTaskStore(testNow)
	recorder := store.add(task.Task{SessionID: "A", Title: "Build recorder"})
	store.add(task.Task{SessionID: "A", Title: "Add multi-user support"})

	gen := &fakeGenerator{respond: decisionReply(`{"relationship":"continuation","parent_task_title":"Build Recorder"}`)}
	e := New(store, gen)

	if err := e.LinkTasks(context.Background(), "B", []task.Draft{{Title: "Record tab audio"}}); err != nil {
		t.Fatalf("LinkTasks: %v", err)
	}

	got := store.byTitle("Record tab audio")
	if got == nil {
		t.Fatal("task not stored")
	}
	if got.ParentTaskID != recorder.ID {
		t.Errorf("parent = %q, want %q", got.ParentTaskID, recorder.ID)
	}
}

func TestLinkTasksUnresolvedParentStoresRoot(t *testing.T) {
	store := newMockTaskStore(testNow)
	store.add(task.Task{SessionID: "A", Title: "Build recorder"})
	j := &mockJournal{}

	gen := &fakeGenerator{respond: decisionReply(`{"relationship":"subtask","parent_task_title":"Migrate billing"}`)}
	e := New(store, gen, WithJournal(j))

	if err := e.LinkTasks(context.Background(), "B", []task.Draft{{Title: "Write invoices"}}); err != nil {
		t.Fatalf("LinkTasks: %v", err)
	}

	got := store.byTitle("Write invoices")
	if got == nil || !got.IsRoot() {
		t.Fatalf("task = %+v, want a root", got)
	}
	types := j.types()
	if len(types) != 2 || types[0] != journal.TypeLinkUnresolved || types[1] != journal.TypeTaskRooted {
		t.Errorf("journal = %v", types)
	}
}

func TestLinkTasksNewRelationship(t *testing.T) {
	store := newMockTaskStore(testNow)
	store.add(task.Task{SessionID: "A", Title: "Build recorder"})
	gen := &fakeGenerator{respond: decisionReply(`{"relationship":"new","parent_task_title":null}`)}

	if err := New(store, gen).LinkTasks(context.Background(), "B", []task.Draft{{Title: "Plan offsite"}}); err != nil {
		t.Fatalf("LinkTasks: %v", err)
	}
	if got := store.byTitle("Plan offsite"); got == nil || !got.IsRoot() {
		t.Fatalf("task = %+v, want a root", got)
	}
}

func TestLinkTasksMatchesAgainstPreBatchPool(t *testing.T) {
	store := newMockTaskStore(testNow)
	store.add(task.Task{SessionID: "A", Title: "Build recorder"})
	gen := &fakeGenerator{respond: decisionReply(`{"relationship":"new"}`)}

	drafts := []task.Draft{{Title: "Plan offsite"}, {Title: "Book venue"}}
	if err := New(store, gen).LinkTasks(context.Background(), "B", drafts); err != nil {
		t.Fatalf("LinkTasks: %v", err)
	}

	if gen.callCount() != 2 {
		t.Fatalf("calls = %d, want 2", gen.callCount())
	}
	second := gen.calls[1].Prompt
	if !strings.Contains(second, "['Build recorder']") {
		t.Errorf("second prompt should list only the pre-batch roots:\n%s", second)
	}
	if strings.Contains(second, "'Plan offsite'") {
		t.Error("a task from the same batch must not be offered as a parent")
	}
}

func TestLinkTasksAbortsOnMatcherError(t *testing.T) {
	store := newMockTaskStore(testNow)
	store.add(task.Task{SessionID: "A", Title: "Build recorder"})

	errBoom := errors.New("service unavailable")
	gen := &fakeGenerator{respond: func(req llm.Request) (string, error) {
		if strings.Contains(req.Prompt, "Second") {
			return "", errBoom
		}
		return `{"relationship":"new"}`, nil
	}}

	drafts := []task.Draft{{Title: "First"}, {Title: "Second"}, {Title: "Third"}}
	err := New(store, gen).LinkTasks(context.Background(), "B", drafts)
	if !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want %v", err, errBoom)
	}

	if store.byTitle("First") == nil {
		t.Error("task stored before the failure should remain")
	}
	if store.byTitle("Third") != nil {
		t.Error("tasks after the failure must not be stored")
	}
	if gen.callCount() != 2 {
		t.Errorf("calls = %d, want 2", gen.callCount())
	}
}

func TestLinkTasksAbortsOnStoreError(t *testing.T) {
	store := newMockTaskStore(testNow)
	errDisk := errors.New("disk full")
	store.createErr = errDisk
	store.failAfter = 1

	gen := &fakeGenerator{respond: decisionReply(`{"relationship":"new"}`)}
	err := New(store, gen).LinkTasks(context.Background(), "A", []task.Draft{{Title: "One"}, {Title: "Two"}})
	if !errors.Is(err, errDisk) {
		t.Fatalf("err = %v, want %v", err, errDisk)
	}
	if n, _ := store.Count(context.Background()); n != 1 {
		t.Errorf("stored = %d, want 1", n)
	}
}

func TestLinkTasksRejectsUntitledDraft(t *testing.T) {
	store := newMockTaskStore(testNow)
	gen := &fakeGenerator{respond: decisionReply(`{"relationship":"new"}`)}

	drafts := []task.Draft{{Title: "Fine"}, {Title: "   "}}
	err := New(store, gen).LinkTasks(context.Background(), "A", drafts)
	if !errors.Is(err, ErrInvalidDraft) {
		t.Fatalf("err = %v, want ErrInvalidDraft", err)
	}
	if n, _ := store.Count(context.Background()); n != 0 {
		t.Errorf("stored = %d, want 0", n)
	}
	if drafts[0].Title != "Fine" {
		t.Error("caller's drafts should not be modified")
	}
}
