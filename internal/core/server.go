// Package core provides the chassis for the read-only analytics API: a chi
// router with request-ID and logging middleware, JSON response envelopes,
// and AppError-to-status mapping. The API exposes the artifacts the
// pipeline produced; it performs no computation of its own.
package core

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gridpulse/internal/config"
)

// ArtifactReader is the artifact store surface the API serves from.
type ArtifactReader interface {
	// ReadArtifact returns the raw bytes of a named artifact, or an
	// ErrCodeNotFoundArtifact AppError when it has not been produced yet.
	ReadArtifact(name string) ([]byte, error)
}

// Server bundles the API dependencies and router.
type Server struct {
	Config    *config.Config
	Artifacts ArtifactReader
	Logger    *slog.Logger

	router *chi.Mux
}

// NewServer constructs the server and mounts its routes.
func NewServer(cfg *config.Config, artifacts ArtifactReader, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if artifacts == nil {
		return nil, fmt.Errorf("artifact reader must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		Config:    cfg,
		Artifacts: artifacts,
		Logger:    logger,
		router:    chi.NewRouter(),
	}
	s.mountRoutes()

	return s, nil
}

// Handler returns the router as an http.Handler for ListenAndServe.
func (s *Server) Handler() http.Handler {
	return s.router
}

// mountRoutes wires middleware and the artifact endpoints.
func (s *Server) mountRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLogMiddleware)

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/analytics/correlations", s.handleCorrelations)
		r.Get("/analytics/summary", s.handleSummary)
		r.Get("/analytics/heatmap", s.handleHeatmap)
		r.Get("/quality/report", s.handleQualityReport)
	})
}
