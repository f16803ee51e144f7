package web

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/lost-trace/internal/blobstore"
	"github.com/kozaktomas/lost-trace/internal/web/handlers"
	"github.com/kozaktomas/lost-trace/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	statsHandler := handlers.NewStatsHandler(s.deps.Service.Threshold())
	reportsHandler := handlers.NewReportsHandler(s.deps.Service, s.deps.Blobs, statsHandler)
	configHandler := handlers.NewConfigHandler(s.config)

	// Health check (no submitter required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/config", configHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSubmitter())

			// Reports
			r.With(middleware.RateLimitSubmitter(s.rateLimiter)).Post("/reports", reportsHandler.Create)
			r.Get("/reports", reportsHandler.List)
			r.Get("/reports/mine", reportsHandler.Mine)
			r.Post("/reports/search", reportsHandler.Search)
			r.Get("/reports/{id}", reportsHandler.Get)
			r.Delete("/reports/{id}", reportsHandler.Delete)

			// Stats
			r.Get("/stats", statsHandler.Get)
		})
	})

	s.mountImages()
}

// mountImages serves locally stored report images under the configured public path.
// Remote blob stores serve their own URLs.
func (s *Server) mountImages() {
	local, ok := s.deps.Blobs.(*blobstore.LocalStore)
	if !ok {
		return
	}
	prefix := strings.TrimRight(s.config.Storage.PublicURL, "/")
	if !strings.HasPrefix(prefix, "/") {
		return
	}

	files := http.StripPrefix(prefix, http.FileServer(http.Dir(local.Root())))
	s.router.Get(prefix+"/*", func(w http.ResponseWriter, r *http.Request) {
		// no directory listings
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=86400")
		files.ServeHTTP(w, r)
	})
}
