// Package api exposes document structure analysis over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/docstruct/internal/analyzer"
	"github.com/dgallion1/docstruct/internal/config"
	"github.com/dgallion1/docstruct/internal/metrics"
	"github.com/dgallion1/docstruct/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for docstruct.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	analyzer     *analyzer.Analyzer
	window       *metrics.Window
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. window may be nil.
func NewServer(orch *pipeline.Orchestrator, window *metrics.Window, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		analyzer:     orch.Analyzer(),
		window:       window,
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

	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Post("/api/analyze", s.handleAnalyze)
		r.Post("/api/analyze/async", s.handleAnalyzeAsync)
		r.Get("/api/jobs", s.handleListJobs)
		r.Get("/api/jobs/{jobID}", s.handleJobStatus)

		r.Post("/api/validate", s.handleValidate)
		r.Post("/api/report", s.handleReport)
		r.Post("/api/tree", s.handleTree)
		r.Post("/api/chunks", s.handleChunks)

		r.Post("/api/corrections", s.handleCorrections)
		r.Post("/api/corrections/{docID}/save", s.handleSaveCorrections)
		r.Post("/api/corrections/{docID}/review", s.handleReview)
		r.Get("/api/corrections/{docID}/history", s.handleHistory)
		r.Get("/api/profiles", s.handleListProfiles)

		r.Get("/api/stats", s.handleStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
