package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/docgraph/internal/config"
	"github.com/dgallion1/docgraph/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for docgraph.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	runner       *pipeline.Runner
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. Storage, catalog and
// analyzer stats are taken from the orchestrator's runner.
func NewServer(orch *pipeline.Orchestrator, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		runner:       orch.Runner(),
		log:          log,
		cfg:          cfg,
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
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/documents", s.handleIngest)
		r.Get("/api/jobs/{jobID}", s.handleJobStatus)
		r.Get("/api/stats/analyzers", s.handleAnalyzerStats)

		r.Get("/api/documents", s.handleListDocuments)
		r.Get("/api/documents/{docID}", s.handleGetDocument)
		r.Get("/api/documents/{docID}/{artifact}", s.handleGetArtifact)
		r.Delete("/api/documents/{docID}", s.handleDeleteDocument)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}

func (s *Server) handleAnalyzerStats(w http.ResponseWriter, r *http.Request) {
	e := s.runner.Enricher
	if e == nil || e.Stats == nil {
		jsonError(w, "analyzer stats unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": e.Stats.Snapshot()})
}
