package handlers

import (
	"net/http"

	"github.com/akuvvet/Automatisierung/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "mieten-abgleich"

// RouterConfig wires the handlers into a router. Runs is optional.
type RouterConfig struct {
	Reconcile      *ReconcileHandler
	Jobs           *JobsHandler
	Runs           *RunsHandler
	AllowedOrigins []string
	Log            zerolog.Logger
}

// NewRouter builds the HTTP routes behind Recovery, Logger, RequestID and
// CORS.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(cfg.Log))
	r.Use(middleware.Logger(cfg.Log))
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	endpoints := []string{
		"GET /health",
		"POST /process",
		"POST /api/reconcile",
		"GET /results/{filename}",
		"POST /api/jobs",
		"GET /api/jobs",
		"GET /api/jobs/{id}",
		"GET /api/jobs/{id}/result",
	}

	r.Get("/health", Health)
	r.Post("/process", cfg.Reconcile.Process)
	r.Get("/results/{filename}", cfg.Reconcile.Download)

	r.Route("/api", func(r chi.Router) {
		r.Post("/reconcile", cfg.Reconcile.Process)

		r.Post("/jobs", cfg.Jobs.EnqueueJob)
		r.Get("/jobs", cfg.Jobs.ListJobs)
		r.Get("/jobs/{id}", cfg.Jobs.GetJob)
		r.Get("/jobs/{id}/result", cfg.Jobs.JobResult)

		if cfg.Runs != nil {
			r.Get("/runs", cfg.Runs.ListRuns)
		}
	})
	if cfg.Runs != nil {
		endpoints = append(endpoints, "GET /api/runs")
	}

	r.Get("/", Index(endpoints))
	return r
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"service": ServiceName,
	})
}

// Index handles GET / with the list of endpoints.
func Index(endpoints []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]any{
			"service":   ServiceName,
			"endpoints": endpoints,
		})
	}
}
