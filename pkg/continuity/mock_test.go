package continuity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"meeting-continuity/pkg/journal"
	"meeting-continuity/pkg/llm"
	"meeting-continuity/pkg/task"
)

// --- Mock task store ---

type mockTaskStore struct {
	mu        sync.Mutex
	tasks     []*task.Task // creation order
	seq       int
	now       time.Time
	createErr error
	failAfter int // Create fails once this many rows were created; 0 disables
}

func newMockTaskStore(now time.Time) *mockTaskStore {
	return &mockTaskStore{now: now}
}

// add inserts a prepared row, assigning an id when it has none.
func (s *mockTaskStore) add(t task.Task) *task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if t.ID == "" {
		t.ID = fmt.Sprintf("task-%d", s.seq)
	}
	if t.Status == "" {
		t.Status = task.StatusInProgress
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now
	}
	t.UpdatedAt = t.CreatedAt
	cp := t
	s.tasks = append(s.tasks, &cp)
	return &cp
}

func (s *mockTaskStore) Roots(_ context.Context) ([]task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []task.Task
	for _, t := range s.tasks {
		if t.ParentTaskID == "" {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *mockTaskStore) Create(_ context.Context, sessionID string, d task.Draft, parentID string) (*task.Task, error) {
	s.mu.Lock()
	created := len(s.tasks)
	s.mu.Unlock()
	if s.createErr != nil && s.failAfter > 0 && created >= s.failAfter {
		return nil, s.createErr
	}
	return s.add(task.Task{
		SessionID:    sessionID,
		Title:        d.Title,
		Description:  d.Description,
		ParentTaskID: parentID,
	}), nil
}

func (s *mockTaskStore) Subtree(_ context.Context, id string) ([]task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []task.Task
	for _, t := range s.tasks {
		if t.ID == id {
			out = append(out, *t)
		}
	}
	for i := 0; i < len(out); i++ {
		for _, t := range s.tasks {
			if t.ParentTaskID == out[i].ID {
				out = append(out, *t)
			}
		}
	}
	return out, nil
}

func (s *mockTaskStore) SessionParents(_ context.Context, sessionID string) ([]task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := map[string]bool{}
	for _, t := range s.tasks {
		if t.SessionID == sessionID && t.ParentTaskID != "" {
			ids[t.ParentTaskID] = true
		}
	}
	var out []task.Task
	for _, t := range s.tasks {
		if ids[t.ID] {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *mockTaskStore) Get(_ context.Context, id string) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID == id {
			cp := *t
			return &cp, nil
		}
	}
	return nil, task.ErrNotFound
}

func (s *mockTaskStore) Update(_ context.Context, id string, updates map[string]any) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID != id {
			continue
		}
		if v, ok := updates["status"]; ok {
			t.Status = v.(string)
		}
		cp := *t
		return &cp, nil
	}
	return nil, task.ErrNotFound
}

func (s *mockTaskStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks), nil
}

func (s *mockTaskStore) EnsureTable(_ context.Context) error { return nil }

func (s *mockTaskStore) byTitle(title string) *task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.Title == title {
			cp := *t
			return &cp
		}
	}
	return nil
}

// --- Fake text generator ---

type fakeGenerator struct {
	mu      sync.Mutex
	calls   []llm.Request
	respond func(req llm.Request) (string, error)
}

func (g *fakeGenerator) Generate(_ context.Context, req llm.Request) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	g.mu.Unlock()
	return g.respond(req)
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// --- Mock journal ---

type mockJournal struct {
	mu     sync.Mutex
	events []journal.Event
}

func (j *mockJournal) Append(_ context.Context, eventType, sessionID string, content map[string]any) (*journal.Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	e := journal.Event{
		ID:        fmt.Sprintf("evt-%d", len(j.events)+1),
		Type:      eventType,
		SessionID: sessionID,
		Content:   content,
		Timestamp: time.Now(),
	}
	j.events = append(j.events, e)
	return &e, nil
}

func (j *mockJournal) BySession(_ context.Context, sessionID string, _ int) ([]journal.Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []journal.Event
	for _, e := range j.events {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (j *mockJournal) Recent(_ context.Context, _ int) ([]journal.Event, error) { return j.events, nil }
func (j *mockJournal) Since(_ context.Context, _ string, _ int) ([]journal.Event, error) {
	return nil, nil
}
func (j *mockJournal) Count(_ context.Context) (int, error) { return len(j.events), nil }
func (j *mockJournal) VerifyChain(_ context.Context) error { return nil }
func (j *mockJournal) EnsureTable(_ context.Context) error { return nil }

func (j *mockJournal) types() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.events))
	for i, e := range j.events {
		out[i] = e.Type
	}
	return out
}
