package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/docsift/internal/config"
	"github.com/dgallion1/docsift/internal/export"
	"github.com/dgallion1/docsift/internal/pipeline"
)

// Server is the HTTP API server for docsift.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	service      *pipeline.Service
	exporter     *export.Exporter
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, exp *export.Exporter, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		service:      orch.Service(),
		exporter:     exp,
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

	// Authenticated endpoints, when an API key is configured.
	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Post("/api/analyze", s.handleAnalyze)
		r.Post("/api/structure", s.handleStructure)
		r.Post("/api/persona", s.handlePersona)

		r.Route("/api/persona/jobs", func(r chi.Router) {
			r.Post("/", s.handleSubmitJob)
			r.Get("/{jobID}", s.handleJobStatus)
			r.Get("/{jobID}/result", s.handleJobResult)
			r.Delete("/{jobID}", s.handleCancelJob)
		})

		r.Get("/api/stats", s.handleStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
