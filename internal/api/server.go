// Package api exposes tracks, modules and topics over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/cors"

	"github.com/p-n-ai/pai-roadmap/internal/content"
	"github.com/p-n-ai/pai-roadmap/internal/curriculum"
	"github.com/p-n-ai/pai-roadmap/internal/navigator"
)

const readyTimeout = 2 * time.Second

// Track binds a loaded track to the navigator serving it.
type Track struct {
	Track     *curriculum.Track
	Navigator *navigator.Navigator
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Config holds dependencies for a Server.
type Config struct {
	Tracks      []Track
	Content     *content.Registry // defaults to an empty registry
	Hub         *Hub              // defaults to a fresh hub
	Checks      map[string]HealthCheck
	CORSOrigins []string
}

// Server serves the roadmap HTTP API.
type Server struct {
	tracks   map[string]Track
	order    []string
	content  *content.Registry
	hub      *Hub
	checks   map[string]HealthCheck
	origins  []string
	validate *validator.Validate
	unsubs   []func()
}

// New creates a server and subscribes its hub to every track's progress store.
func New(cfg Config) *Server {
	s := &Server{
		tracks:   make(map[string]Track, len(cfg.Tracks)),
		content:  cfg.Content,
		hub:      cfg.Hub,
		checks:   cfg.Checks,
		origins:  cfg.CORSOrigins,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	if s.content == nil {
		s.content = content.NewRegistry()
	}
	if s.hub == nil {
		s.hub = NewHub()
	}
	if len(s.origins) == 0 {
		s.origins = []string{"*"}
	}

	for _, t := range cfg.Tracks {
		folder := t.Track.Folder
		if _, dup := s.tracks[folder]; dup {
			slog.Warn("duplicate track folder, keeping first", "folder", folder)
			continue
		}
		s.tracks[folder] = t
		s.order = append(s.order, folder)
		s.unsubs = append(s.unsubs, t.Navigator.Progress().Subscribe(s.hub.Publish))
	}
	sort.Strings(s.order)

	return s
}

// Close detaches the server from the progress stores.
func (s *Server) Close() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil
}

// Hub returns the hub broadcasting progress events.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler builds the HTTP router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}).Handler)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	r.Route("/tracks", func(r chi.Router) {
		r.Get("/", s.handleListTracks)
		r.Route("/{track}", func(r chi.Router) {
			r.Get("/modules", s.handleListModules)
			r.Get("/progress.xlsx", s.handleExport)
			r.Get("/events", s.handleEvents)
			r.Route("/modules/{slug}", func(r chi.Router) {
				r.Get("/", s.handleGetModule)
				r.Get("/topics/{index}", s.handleGetTopic)
				r.Get("/resume", s.handleResume)
				r.Put("/completed", s.handleSetCompleted)
				r.Delete("/progress", s.handleResetModule)
			})
		})
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", chimiddleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	failures := make(map[string]string)
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			slog.Warn("readiness check failed", "check", name, "error", err)
			failures[name] = err.Error()
		}
	}
	if len(failures) > 0 {
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unavailable",
			"checks": failures,
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
