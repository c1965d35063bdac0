package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	h := s.orchestrator.History()
	if h == nil {
		jsonError(w, "history unavailable", http.StatusServiceUnavailable)
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	runs, err := h.Runs(r.Context(), limit)
	if err != nil {
		s.log.Error("list history", "error", err)
		jsonError(w, "failed to read history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleHistoryRun(w http.ResponseWriter, r *http.Request) {
	h := s.orchestrator.History()
	if h == nil {
		jsonError(w, "history unavailable", http.StatusServiceUnavailable)
		return
	}
	id := chi.URLParam(r, "runID")
	run, err := h.Run(r.Context(), id)
	if err != nil {
		s.log.Error("read history run", "run_id", id, "error", err)
		jsonError(w, "failed to read history", http.StatusInternalServerError)
		return
	}
	if run == nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}
	corrections, err := h.Corrections(r.Context(), id)
	if err != nil {
		s.log.Error("read history corrections", "run_id", id, "error", err)
		jsonError(w, "failed to read history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run, "corrections": corrections})
}
