package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dgallion1/docrevise/internal/changes"
	"github.com/dgallion1/docrevise/internal/pipeline"
	"github.com/dgallion1/docrevise/internal/review"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// LLM exposes the review client's model and call statistics.
type LLM interface {
	Model() string
	Stats() *review.Stats
}

type Options struct {
	// APIKey is the bearer token required on /api routes.
	APIKey         string
	MaxUploadBytes int64
	// Compare tunes change classification for /api/compare.
	Compare changes.Options
}

// Server is the HTTP API server for docrevise.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	llm          LLM
	log          *slog.Logger
	opts         Options
}

// NewServer creates and configures the HTTP server. llm may be nil.
func NewServer(orch *pipeline.Orchestrator, llm LLM, log *slog.Logger, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 50 << 20
	}
	s := &Server{
		orchestrator: orch,
		llm:          llm,
		log:          log,
		opts:         opts,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.opts.APIKey, s.log))

		r.Post("/api/revisions", s.handleSubmitRevision)
		r.Get("/api/revisions/{jobID}/status", s.handleRevisionStatus)
		r.Get("/api/revisions/{jobID}/document", s.handleRevisionDocument)
		r.Get("/api/revisions/{jobID}/report", s.handleRevisionReport)

		r.Post("/api/compare", s.handleCompare)

		r.Get("/api/history", s.handleHistory)
		r.Get("/api/history/{runID}", s.handleHistoryRun)

		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
