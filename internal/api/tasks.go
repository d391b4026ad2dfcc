package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"meeting-continuity/pkg/task"
)

func (s *Server) handleTaskRoots(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.Roots(r.Context())
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, tasks)
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t, err := s.tasks.Get(r.Context(), id)
	if errors.Is(err, task.ErrNotFound) {
		writeError(w, 404, err.Error())
		return
	}
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, t)
}

func (s *Server) handleTaskUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var updates map[string]any
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	if len(updates) == 0 {
		writeError(w, 400, "no fields to update")
		return
	}
	t, err := s.tasks.Update(r.Context(), id, updates)
	switch {
	case errors.Is(err, task.ErrNotFound):
		writeError(w, 404, err.Error())
		return
	case errors.Is(err, task.ErrUnsupportedField), errors.Is(err, task.ErrInvalidValue):
		writeError(w, 400, err.Error())
		return
	case err != nil:
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, t)
}

// handleTaskHistory returns a task and every task linked beneath it.
func (s *Server) handleTaskHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	history, err := s.tasks.Subtree(r.Context(), id)
	if err != nil {
		log.Printf("api: task history %s: %v", id, err)
		writeError(w, 500, "internal server error")
		return
	}
	if len(history) == 0 {
		writeError(w, 404, "task not found")
		return
	}
	writeJSON(w, 200, history)
}

func (s *Server) handleTaskProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	metrics, err := s.engine.Progress(ctx, id)
	if err != nil {
		log.Printf("api: task progress %s: %v", id, err)
		writeError(w, 500, "internal server error")
		return
	}
	if metrics == nil {
		writeError(w, 404, "could not calculate progress for task")
		return
	}

	analysis, err := s.engine.Analyze(ctx, metrics)
	if err != nil {
		log.Printf("api: task analysis %s: %v", id, err)
		writeError(w, 500, "internal server error")
		return
	}
	writeJSON(w, 200, map[string]any{
		"progressMetrics": metrics,
		"aiAnalysis":      analysis,
	})
}
