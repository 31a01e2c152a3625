// Package server assembles the HTTP surface: middleware chain, routes,
// and the JSON fallbacks for unknown paths and methods.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/repomotion/repomotion/internal/errors"
	"github.com/repomotion/repomotion/internal/server/handlers"
	"github.com/repomotion/repomotion/internal/server/middleware"
	"github.com/repomotion/repomotion/pkg/jobregistry"
	"github.com/repomotion/repomotion/pkg/orchestrator"
)

// Options carries everything the router needs. All fields are required
// except Health, which defaults to an empty manager.
type Options struct {
	Registry     *jobregistry.Registry
	Orchestrator *orchestrator.Orchestrator
	OutputDir    string
	Health       *handlers.HealthManager
	Version      string
	Logger       *zap.Logger
}

// Server is the assembled HTTP handler.
type Server struct {
	router  chi.Router
	version string
}

func New(opts Options) *Server {
	if opts.Health == nil {
		opts.Health = handlers.NewHealthManager(opts.Version)
	}

	jobs := handlers.NewJobsHandler(opts.Orchestrator, opts.Registry, opts.OutputDir, opts.Logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logger(opts.Logger))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.WriteError(w, http.StatusNotFound, apperrors.HTTPError{
			Code:      apperrors.CodeNotFound,
			Message:   "resource not found",
			RequestID: middleware.GetRequestID(req.Context()),
		})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.WriteError(w, http.StatusMethodNotAllowed, apperrors.HTTPError{
			Code:      apperrors.CodeMethodNotAllowed,
			Message:   "method not allowed",
			RequestID: middleware.GetRequestID(req.Context()),
		})
	})

	r.Post("/gource/start", jobs.Start)
	r.Get("/gource/status/{jobID}", jobs.Status)
	r.Post("/gource/stop/{jobID}", jobs.Stop)
	r.Get("/gource/video/{jobID}", jobs.Video)

	r.Get("/health", opts.Health.HealthHandler)
	r.Get("/health/live", opts.Health.LivenessHandler)
	r.Get("/health/ready", opts.Health.ReadinessHandler)

	version := opts.Version
	r.Get("/version", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"version":"` + version + `"}`))
	})

	return &Server{router: r, version: opts.Version}
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}
