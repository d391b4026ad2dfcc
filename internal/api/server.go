package api

import (
	"encoding/json"
	"log"
	"net/http"

	"meeting-continuity/pkg/continuity"
	"meeting-continuity/pkg/journal"
	"meeting-continuity/pkg/session"
	"meeting-continuity/pkg/summary"
	"meeting-continuity/pkg/task"
)

// Server is the HTTP API server.
type Server struct {
	sessions   session.Store
	tasks      task.Store
	journal    *journal.Bus
	engine     *continuity.Engine
	summarizer *summary.Summarizer
	mux        *http.ServeMux
}

// New creates a new Server.
func New(sessions session.Store, tasks task.Store, bus *journal.Bus, engine *continuity.Engine, summarizer *summary.Summarizer) *Server {
	s := &Server{
		sessions:   sessions,
		tasks:      tasks,
		journal:    bus,
		engine:     engine,
		summarizer: summarizer,
		mux:        http.NewServeMux(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler. Every response allows cross-origin
// callers, since the meeting recorder runs as a browser extension.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,OPTIONS")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	// Sessions
	s.mux.HandleFunc("GET /api/sessions", s.handleSessionList)
	s.mux.HandleFunc("GET /api/sessions/{id}", s.handleSessionGet)
	s.mux.HandleFunc("PATCH /api/sessions/{id}", s.handleSessionRename)
	s.mux.HandleFunc("GET /api/sessions/{id}/events", s.handleSessionEvents)
	s.mux.HandleFunc("POST /api/sessions/{id}/transcript", s.handleTranscript)
	s.mux.HandleFunc("POST /api/sessions/{id}/continuity", s.handleContinuity)

	// Tasks
	s.mux.HandleFunc("GET /api/tasks", s.handleTaskRoots)
	s.mux.HandleFunc("GET /api/tasks/{id}", s.handleTaskGet)
	s.mux.HandleFunc("PATCH /api/tasks/{id}", s.handleTaskUpdate)
	s.mux.HandleFunc("GET /api/tasks/{id}/history", s.handleTaskHistory)
	s.mux.HandleFunc("GET /api/tasks/{id}/progress", s.handleTaskProgress)

	// Journal
	s.mux.HandleFunc("GET /api/events", s.handleEventList)
	s.mux.HandleFunc("GET /api/events/stream", s.handleEventStream)

	// System
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tasks, err := s.tasks.Count(ctx)
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	events, err := s.journal.Count(ctx)
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	chain := "ok"
	if err := s.journal.VerifyChain(ctx); err != nil {
		log.Printf("api: journal chain: %v", err)
		chain = "broken"
	}
	writeJSON(w, 200, map[string]any{
		"tasks":         tasks,
		"events":        events,
		"journal_chain": chain,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write json: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
