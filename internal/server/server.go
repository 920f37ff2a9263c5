// Package server exposes the memory service over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rcliao/team-memory/internal/auth"
	"github.com/rcliao/team-memory/internal/service"
)

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tunes a Server.
type Options struct {
	Version string
	// RateLimit is the request allowance per identity per RateWindow.
	// Zero disables limiting.
	RateLimit  int
	RateWindow time.Duration
	Logger     *slog.Logger
}

// Server is the team-memory HTTP API server.
type Server struct {
	svc     *service.Service
	gate    *auth.Gate
	db      Pinger
	limiter *limiter
	log     *slog.Logger
	version string
	started time.Time
	router  chi.Router
}

// New creates a Server over svc, authenticating requests through gate.
func New(svc *service.Service, gate *auth.Gate, db Pinger, opts Options) *Server {
	s := &Server{
		svc:     svc,
		gate:    gate,
		db:      db,
		log:     opts.Logger,
		version: opts.Version,
		started: time.Now(),
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if opts.RateLimit > 0 {
		s.limiter = newLimiter(opts.RateLimit, opts.RateWindow)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)

	r.Get("/health", s.handleHealth)
	r.Get("/categories", s.handleCategories)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Use(s.rateLimit)

		r.Post("/store", s.handleStore)
		r.Get("/context/{projectID}", s.handleContext)
		r.Get("/search", s.handleSearch)

		r.Route("/memory/{id}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Patch("/", s.handleUpdate)
			r.Delete("/", s.handleDelete)
			r.Patch("/deprecate", s.handleDeprecate)
		})

		r.Get("/tags/{scopeID}", s.handleTags)
		r.Get("/my/todos", s.handleTodos)
		r.Get("/projects", s.handleProjects)
		r.Get("/projects/suggest", s.handleSuggestProject)
		r.Get("/projects/{projectID}/members", s.handleListMembers)
		r.Post("/projects/{projectID}/members", s.handleAddMember)
		r.Get("/stats/{projectID}", s.handleStats)

		r.Post("/cleanup", s.handleCleanup)
		r.Get("/export/{projectID}", s.handleExport)
		r.Post("/import", s.handleImport)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/teams", s.handleListTeams)
			r.Post("/teams", s.handleCreateTeam)
			r.Get("/users", s.handleListUsers)
			r.Post("/users", s.handleCreateUser)
			r.Post("/users/{userID}/regenerate-key", s.handleRegenerateKey)
			r.Get("/audit-logs", s.handleAuditLogs)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := s.db == nil || s.db.Ping(r.Context()) == nil
	status := "healthy"
	if !dbOK {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        status,
		"service":       "team-memory",
		"version":       s.version,
		"uptime":        time.Since(s.started).Seconds(),
		"db":            dbOK,
		"auth_required": s.gate.Policy().Required,
	})
}
