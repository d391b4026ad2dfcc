package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meeting-continuity/internal/db"
	"meeting-continuity/pkg/continuity"
	"meeting-continuity/pkg/journal"
	"meeting-continuity/pkg/llm"
	"meeting-continuity/pkg/session"
	"meeting-continuity/pkg/summary"
	"meeting-continuity/pkg/task"
)

type testEnv struct {
	srv      *Server
	tasks    task.Store
	sessions session.Store
	bus      *journal.Bus
}

// fakeService answers the three kinds of calls the server makes: transcript
// summaries carry a system prompt, relationship decisions request JSON, and
// everything else is a progress narrative.
func fakeService(_ context.Context, req llm.Request) (string, error) {
	switch {
	case req.System != "":
		return `{"summary":"Recorder follow-up.","insights":[{"label":"Action Item","content":"Add multi-user support"}],"tasks":[]}`, nil
	case req.JSON:
		return `{"relationship":"subtask","parent_task_title":"Build recorder"}`, nil
	default:
		return "Build recorder is progressing.", nil
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	gdb, err := db.OpenSQLite(filepath.Join(t.TempDir(), "api.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.CloseSQLite(gdb) })

	sessions := session.NewGormStore(gdb)
	tasks := task.NewGormStore(gdb)
	events := journal.NewGormStore(gdb)
	require.NoError(t, sessions.EnsureTable(ctx))
	require.NoError(t, tasks.EnsureTable(ctx))
	require.NoError(t, events.EnsureTable(ctx))

	bus := journal.NewBus(events)
	gen := llm.GeneratorFunc(fakeService)
	engine := continuity.New(tasks, gen, continuity.WithJournal(bus))

	return &testEnv{
		srv:      New(sessions, tasks, bus, engine, summary.New(gen)),
		tasks:    tasks,
		sessions: sessions,
		bus:      bus,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func drafts(titles ...string) map[string]any {
	out := make([]task.Draft, len(titles))
	for i, title := range titles {
		out[i] = task.Draft{Title: title}
	}
	return map[string]any{"tasks": out}
}

func TestServer_Health(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, "GET", "/health", nil)
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_Preflight(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, "OPTIONS", "/api/sessions/A/continuity", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestServer_ContinuityAcrossSessions(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "POST", "/api/sessions/A/continuity", drafts("Build recorder", "Setup DB"))
	require.Equal(t, 200, rec.Code, rec.Body.String())
	first := decode[continuity.Report](t, rec)
	assert.Empty(t, first.PreviousTasks)
	assert.Empty(t, first.AIAnalysis)

	rec = env.do(t, "POST", "/api/sessions/B/continuity", map[string]any{
		"tasks": []task.Draft{{Title: "Add multi-user support", Description: "extends recorder"}},
	})
	require.Equal(t, 200, rec.Code, rec.Body.String())
	second := decode[continuity.Report](t, rec)
	require.Len(t, second.PreviousTasks, 1)
	assert.Equal(t, "Build recorder", second.PreviousTasks[0].TaskTitle)
	assert.Equal(t, 2, second.PreviousTasks[0].SubtasksTotal)
	assert.Equal(t, 0, second.PreviousTasks[0].SubtasksCompleted)
	assert.Equal(t, "Build recorder is progressing.", second.AIAnalysis)
	assert.Contains(t, rec.Body.String(), `"estimatedDaysRemaining":"N/A"`)

	rec = env.do(t, "GET", "/api/tasks", nil)
	require.Equal(t, 200, rec.Code)
	roots := decode[[]task.Task](t, rec)
	assert.Len(t, roots, 2)

	rec = env.do(t, "GET", "/api/sessions/B/events", nil)
	require.Equal(t, 200, rec.Code)
	events := decode[[]journal.Event](t, rec)
	var types []string
	for _, e := range events {
		types = append(types, e.Type)
	}
	assert.Contains(t, types, journal.TypeTaskLinked)
	assert.Contains(t, types, journal.TypeContinuityCreated)
}

func TestServer_ContinuityRejectsUntitledTask(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, "POST", "/api/sessions/A/continuity", drafts(""))
	assert.Equal(t, 400, rec.Code)

	rec = env.do(t, "POST", "/api/sessions/A/continuity", nil)
	assert.Equal(t, 400, rec.Code)
}

func TestServer_TaskHistoryAndProgress(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	root, err := env.tasks.Create(ctx, "A", task.Draft{Title: "Build recorder"}, "")
	require.NoError(t, err)
	_, err = env.tasks.Create(ctx, "B", task.Draft{Title: "Capture mic"}, root.ID)
	require.NoError(t, err)

	rec := env.do(t, "GET", "/api/tasks/"+root.ID+"/history", nil)
	require.Equal(t, 200, rec.Code)
	history := decode[[]task.Task](t, rec)
	require.Len(t, history, 2)
	assert.Equal(t, root.ID, history[0].ID)

	rec = env.do(t, "GET", "/api/tasks/missing/history", nil)
	assert.Equal(t, 404, rec.Code)

	rec = env.do(t, "GET", "/api/tasks/"+root.ID+"/progress", nil)
	require.Equal(t, 200, rec.Code, rec.Body.String())
	progress := decode[struct {
		ProgressMetrics continuity.Metrics `json:"progressMetrics"`
		AIAnalysis      string             `json:"aiAnalysis"`
	}](t, rec)
	assert.Equal(t, 2, progress.ProgressMetrics.SubtasksTotal)
	assert.Equal(t, "Build recorder is progressing.", progress.AIAnalysis)

	rec = env.do(t, "GET", "/api/tasks/missing/progress", nil)
	assert.Equal(t, 404, rec.Code)
}

func TestServer_TaskUpdate(t *testing.T) {
	env := newTestEnv(t)
	created, err := env.tasks.Create(context.Background(), "A", task.Draft{Title: "Build recorder"}, "")
	require.NoError(t, err)

	rec := env.do(t, "PATCH", "/api/tasks/"+created.ID, map[string]any{
		"status":   task.StatusCompleted,
		"blockers": []string{"API rate limit"},
	})
	require.Equal(t, 200, rec.Code, rec.Body.String())
	updated := decode[task.Task](t, rec)
	assert.Equal(t, task.StatusCompleted, updated.Status)
	assert.Equal(t, []string{"API rate limit"}, task.Names(updated.Blockers))

	rec = env.do(t, "GET", "/api/tasks/"+created.ID, nil)
	assert.Equal(t, 200, rec.Code)

	rec = env.do(t, "PATCH", "/api/tasks/"+created.ID, map[string]any{"priority": 1})
	assert.Equal(t, 400, rec.Code)

	rec = env.do(t, "PATCH", "/api/tasks/missing", map[string]any{"status": task.StatusOpen})
	assert.Equal(t, 404, rec.Code)

	rec = env.do(t, "GET", "/api/tasks/missing", nil)
	assert.Equal(t, 404, rec.Code)
}

func TestServer_Transcript(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.tasks.Create(ctx, "A", task.Draft{Title: "Build recorder"}, "")
	require.NoError(t, err)

	rec := env.do(t, "POST", "/api/sessions/B/transcript", map[string]string{
		"transcript": "Alice: next we add multi-user support to the recorder.",
	})
	require.Equal(t, 200, rec.Code, rec.Body.String())

	body := decode[struct {
		Summary        string            `json:"summary"`
		Tasks          []task.Draft      `json:"tasks"`
		TaskContinuity continuity.Report `json:"taskContinuity"`
	}](t, rec)
	assert.Equal(t, "Recorder follow-up.", body.Summary)
	require.Len(t, body.Tasks, 1)
	assert.Equal(t, "Add multi-user support", body.Tasks[0].Title)
	require.Len(t, body.TaskContinuity.PreviousTasks, 1)

	sess, err := env.sessions.Get(ctx, "B")
	require.NoError(t, err)
	assert.Contains(t, sess.Transcript, "multi-user support")
	assert.Equal(t, "Recorder follow-up.", sess.Summary)

	events, err := env.bus.BySession(ctx, "B", 10)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, journal.TypeTranscriptSaved, events[0].Type)
}

func TestServer_Sessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.sessions.Ensure(ctx, "A")
	require.NoError(t, err)
	_, err = env.sessions.Ensure(ctx, "B")
	require.NoError(t, err)

	rec := env.do(t, "GET", "/api/sessions", nil)
	require.Equal(t, 200, rec.Code)
	assert.Len(t, decode[[]session.Session](t, rec), 2)

	rec = env.do(t, "PATCH", "/api/sessions/B", map[string]string{
		"meeting_name":      "Recorder sync",
		"parent_session_id": "A",
	})
	require.Equal(t, 200, rec.Code, rec.Body.String())
	renamed := decode[session.Session](t, rec)
	assert.Equal(t, "Recorder sync", renamed.Name)
	assert.Equal(t, "A", renamed.ParentSessionID)

	rec = env.do(t, "PATCH", "/api/sessions/B", map[string]string{"parent_session_id": "B"})
	assert.Equal(t, 400, rec.Code)

	rec = env.do(t, "GET", "/api/sessions/missing", nil)
	assert.Equal(t, 404, rec.Code)

	rec = env.do(t, "GET", "/api/status", nil)
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `"journal_chain":"ok"`)
}

func TestServer_EventStream(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.srv)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", ts.URL+"/api/events/stream?session=B", nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	_, err = env.bus.Append(ctx, journal.TypeTaskRooted, "A", map[string]any{"title": "skipped"})
	require.NoError(t, err)
	_, err = env.bus.Append(ctx, journal.TypeTaskRooted, "B", map[string]any{"title": "Build recorder"})
	require.NoError(t, err)

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var e journal.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &e))
		assert.Equal(t, "B", e.SessionID)
		assert.Equal(t, "Build recorder", e.Content["title"])
		return
	}
}
