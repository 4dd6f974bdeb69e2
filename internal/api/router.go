// Package api wires HTTP handlers and middleware into a router.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/dvloznov/auditor-agent/internal/api/handlers"
	"github.com/dvloznov/auditor-agent/internal/api/middleware"
	"github.com/dvloznov/auditor-agent/internal/jobs"
	"github.com/dvloznov/auditor-agent/internal/llm"
	"github.com/dvloznov/auditor-agent/internal/metrics"
)

// RouterConfig collects everything the router serves.
type RouterConfig struct {
	Log            zerolog.Logger
	AllowedOrigins []string
	MaxUploadBytes int64

	Analyzer  handlers.Analyzer
	Runs      handlers.RunLister
	Publisher jobs.Publisher // nil disables POST /api/analyses
	JobStore  jobs.JobStore
	LLM       llm.Prober // nil omits LLM status from /health
}

// NewRouter builds the HTTP handler for the service.
func NewRouter(cfg RouterConfig) http.Handler {
	analyzeHandler := handlers.NewAnalyzeHandler(cfg.Analyzer, cfg.Log)
	analysesHandler := handlers.NewAnalysesHandler(cfg.Publisher, cfg.JobStore, cfg.Log)
	runsHandler := handlers.NewRunsHandler(cfg.Runs, cfg.Log)
	healthHandler := handlers.NewHealthHandler(cfg.LLM)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID(cfg.Log))
	r.Use(middleware.Logger(cfg.Log))
	r.Use(middleware.Recovery(cfg.Log))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", healthHandler.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.With(middleware.MaxBytes(cfg.MaxUploadBytes)).Post("/analyze", analyzeHandler.Analyze)

	r.Route("/api", func(r chi.Router) {
		r.Use(chimw.NoCache)

		r.Route("/analyses", func(r chi.Router) {
			r.With(middleware.MaxBytes(1<<20)).Post("/", analysesHandler.Enqueue)
			r.Get("/", analysesHandler.List)
			r.Get("/{id}", analysesHandler.Get)
		})

		r.Get("/runs", runsHandler.List)
	})

	return r
}
