package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/kozaktomas/lost-trace/internal/blobstore"
	"github.com/kozaktomas/lost-trace/internal/config"
	"github.com/kozaktomas/lost-trace/internal/correlation"
	"github.com/kozaktomas/lost-trace/internal/web/middleware"
)

// Dependencies are the services the HTTP layer is wired to
type Dependencies struct {
	Service *correlation.Service
	Blobs   blobstore.Store
}

// Server represents the web server
type Server struct {
	config      *config.Config
	deps        Dependencies
	router      *chi.Mux
	httpServer  *http.Server
	rateLimiter *middleware.SubmitterRateLimiter
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, deps Dependencies) *Server {
	r := chi.NewRouter()

	s := &Server{
		config:      cfg,
		deps:        deps,
		router:      r,
		rateLimiter: middleware.NewSubmitterRateLimiter(cfg.Matching.SubmitRatePerMinute),
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(2 * time.Minute))
	r.Use(middleware.CORS(cfg.Web.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute, // extraction of large uploads
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.WithField("addr", s.httpServer.Addr).Info("Starting web server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info("Shutting down web server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
