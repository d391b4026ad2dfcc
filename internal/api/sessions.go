package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"meeting-continuity/pkg/continuity"
	"meeting-continuity/pkg/journal"
	"meeting-continuity/pkg/session"
	"meeting-continuity/pkg/task"
)

func (s *Server) handleSessionList(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	sessions, err := s.sessions.List(r.Context(), limit)
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, sessions)
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, err := s.sessions.Get(r.Context(), id)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, 404, err.Error())
		return
	}
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, sess)
}

func (s *Server) handleSessionRename(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req struct {
		Name            string `json:"meeting_name"`
		ParentSessionID string `json:"parent_session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.ParentSessionID == id {
		writeError(w, 400, "a session cannot follow up itself")
		return
	}
	sess, err := s.sessions.Rename(r.Context(), id, req.Name, req.ParentSessionID)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, 404, err.Error())
		return
	}
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, sess)
}

func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	limit := queryInt(r, "limit", 100)
	events, err := s.journal.BySession(r.Context(), id, limit)
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, events)
}

// handleTranscript stores a meeting transcript, summarizes it and links the
// tasks it names into the task history.
func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req struct {
		Transcript string `json:"transcript"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}

	// The pipeline writes as it goes, so it runs to completion even if the
	// caller disconnects.
	ctx := context.WithoutCancel(r.Context())

	if _, err := s.sessions.Ensure(ctx, id); err != nil {
		writeError(w, 500, err.Error())
		return
	}
	sum, err := s.summarizer.Summarize(ctx, req.Transcript)
	if err != nil {
		log.Printf("api: summarize %s: %v", id, err)
		writeError(w, 500, "summarization failed")
		return
	}
	if err := s.sessions.SaveTranscript(ctx, id, req.Transcript, sum.Summary); err != nil {
		writeError(w, 500, err.Error())
		return
	}
	if _, err := s.journal.Append(ctx, journal.TypeTranscriptSaved, id, map[string]any{
		"chars":    len(req.Transcript),
		"insights": len(sum.Insights),
		"tasks":    len(sum.Tasks),
	}); err != nil {
		log.Printf("api: journal transcript %s: %v", id, err)
	}

	drafts := sum.Drafts()
	report, err := s.engine.Generate(ctx, id, drafts)
	if err != nil {
		log.Printf("api: continuity %s: %v", id, err)
		writeError(w, 500, "continuity report failed")
		return
	}

	writeJSON(w, 200, map[string]any{
		"session_id":     id,
		"summary":        sum.Summary,
		"insights":       sum.Insights,
		"tasks":          drafts,
		"taskContinuity": report,
	})
}

// handleContinuity links already-extracted tasks and returns the report.
func (s *Server) handleContinuity(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req struct {
		Tasks []task.Draft `json:"tasks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}

	ctx := context.WithoutCancel(r.Context())
	if _, err := s.sessions.Ensure(ctx, id); err != nil {
		writeError(w, 500, err.Error())
		return
	}

	report, err := s.engine.Generate(ctx, id, req.Tasks)
	if errors.Is(err, continuity.ErrInvalidDraft) {
		writeError(w, 400, err.Error())
		return
	}
	if err != nil {
		log.Printf("api: continuity %s: %v", id, err)
		writeError(w, 500, "continuity report failed")
		return
	}
	writeJSON(w, 200, report)
}
