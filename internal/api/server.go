package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/docsite/internal/config"
	"github.com/dgallion1/docsite/internal/pipeline"
	"github.com/dgallion1/docsite/internal/watch"
)

// Server is the development server: it serves the built site and exposes
// the build state as JSON.
type Server struct {
	router  chi.Router
	builder *pipeline.Builder
	watcher *watch.Watcher
	log     *slog.Logger
	cfg     config.Config
}

// NewServer creates and configures the HTTP server. watcher may be nil.
func NewServer(b *pipeline.Builder, watcher *watch.Watcher, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		builder: b,
		watcher: watcher,
		log:     log,
		cfg:     cfg,
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

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/report", s.handleReport)
		r.Post("/rebuild", s.handleRebuild)
		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{jobID}", s.handleJob)
		r.Get("/search", s.handleSearch)
		r.Get("/stats/queries", s.handleQueryStats)
		r.Get("/stats/watch", s.handleWatchStats)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.NoCache)
		r.Handle("/*", SiteHandler(s.builder.Output().Dir(), s.cfg.BaseURL))
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
