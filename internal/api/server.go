// Package api exposes the authenticated admin surface over the monitor
// registry: project CRUD, pause/resume, manual trigger and a liveness probe.
package api

import (
	"context"
	"net/http"
	"time"

	"tagwatch/internal/config"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Server wraps chi and the stdlib http.Server.
type Server struct {
	cfg         config.ServerConfig
	defaults    config.MonitorDefaultsConfig
	coordinator Coordinator
	validate    *validator.Validate
	logger      zerolog.Logger

	router *chi.Mux
	srv    *http.Server
}

// NewServer builds the admin API server around the given coordinator.
func NewServer(
	cfg config.ServerConfig,
	defaults config.MonitorDefaultsConfig,
	coordinator Coordinator,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		cfg:         cfg,
		defaults:    defaults,
		coordinator: coordinator,
		validate:    validator.New(),
		logger:      logger.With().Str("component", "api_server").Logger(),
	}
	s.router = s.buildRouter()
	s.srv = &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      s.router,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
	}
	return s
}

func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog(s.logger))
	r.Use(recoverer(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", headerAuthKey, headerRequestID},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealthz)

	r.Route("/api/projects", func(r chi.Router) {
		r.Use(authKey(s.cfg.AuthKey))
		r.Get("/", s.handleListProjects)
		r.Post("/", s.handleCreateProject)
		r.Delete("/", s.handleDeleteProject)
		r.Delete("/pop", s.handlePopProject)
		r.Post("/switch", s.handleSwitchMonitor)
		r.Post("/trigger", s.handleTriggerCheck)
	})

	return r
}

// Handler returns the assembled router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts listening and blocks until the server is shut down.
func (s *Server) Run() error {
	s.logger.Info().Str("address", s.cfg.ListenAddress).Msg("Admin API listening")
	if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
