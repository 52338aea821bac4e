package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"MarineIntel/internal/ports"
	"MarineIntel/internal/usecase"
)

// Server exposes the status/control surface over the engine. It is a thin
// read-mostly layer; all invariants live in the engine and the pipeline.
type Server struct {
	engine  *usecase.Engine
	archive ports.Archive
	logger  *slog.Logger
}

// New wires the control surface.
func New(engine *usecase.Engine, archive ports.Archive, logger *slog.Logger) *Server {
	return &Server{engine: engine, archive: archive, logger: logger}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /report/force", s.handleForce)
	mux.HandleFunc("GET /report/latest", s.handleLatest)
	mux.HandleFunc("GET /reports", s.handleList)
	return mux
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	labels, err := s.archive.List()
	if err != nil {
		s.logger.Warn("listing archive failed", "error", err)
	}

	status := s.engine.Status()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"lastReportDate":  status.LastReportDate,
		"lastPollAt":      status.LastPollAt,
		"bufferSize":      status.BufferSize,
		"seenCount":       status.SeenCount,
		"archivedReports": len(labels),
	})
}

func (s *Server) handleForce(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ForceReport(r.Context(), time.Now()); err != nil {
		s.logger.Error("forced report failed", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "report generated"})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	label, body, err := s.archive.Latest()
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, map[string]any{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"label": label, "report": body})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	labels, err := s.archive.List()
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"reports": labels})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encode response failed", "error", err)
	}
}
