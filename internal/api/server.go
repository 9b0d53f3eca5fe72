package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/org/vaultadmin/internal/storage"
	"github.com/rs/zerolog/log"
)

// Config holds server configuration.
type Config struct {
	ListenAddr string
}

// Server exposes a read-only admin surface: health, schema verification and
// record counts. It never mutates the database.
type Server struct {
	store   storage.Store
	cfg     Config
	httpSrv *http.Server
}

// NewServer creates a Server over an open store.
func NewServer(store storage.Store, cfg Config) *Server {
	return &Server{store: store, cfg: cfg}
}

// BuildRouter wires up all routes and returns a chi router.
func (s *Server) BuildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(metricsMiddleware)

	r.Handle("/metrics", MetricsHandler())
	r.Get("/healthz", s.HealthHandler)
	r.Get("/v1/verify", s.VerifyHandler)
	r.Get("/v1/status", s.StatusHandler)

	return r
}

// Start begins listening on the configured address.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s.BuildRouter(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	log.Info().Str("addr", s.cfg.ListenAddr).Msg("starting admin HTTP server")
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
