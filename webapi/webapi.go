// Package webapi is the HTTP surface: subject accounts, application history,
// and run launching with live progress forwarded as Server-Sent Events. The
// handlers forward stream lines as-is; parsing stays with the consumers.
package webapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/postulo/postulo/ledger"
	"github.com/postulo/postulo/profile"
	"github.com/postulo/postulo/scraper"
)

// Runner launches application runs. Satisfied by EngineRunner in production
// and by scripted channels in tests.
type Runner interface {
	Run(ctx context.Context, in scraper.RunInput) <-chan scraper.Event
}

// EngineRunner adapts a scraper.Engine to the Runner interface.
type EngineRunner struct {
	Engine *scraper.Engine
}

func (r EngineRunner) Run(ctx context.Context, in scraper.RunInput) <-chan scraper.Event {
	return r.Engine.Run(ctx, in).Events()
}

// Service carries the API dependencies.
type Service struct {
	profiles *profile.Store
	apps     *ledger.Store
	runner   Runner
	logger   *slog.Logger
}

// New creates the API service.
func New(profiles *profile.Store, apps *ledger.Store, runner Runner, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{profiles: profiles, apps: apps, runner: runner, logger: logger}
}

// RegisterHTTP mounts the API endpoints on a Chi router.
func (s *Service) RegisterHTTP(r chi.Router) {
	r.Post("/api/subjects", s.handleSubjectCreate)
	r.Post("/api/login", s.handleLogin)
	r.Get("/api/subjects/{id}", s.handleSubjectGet)
	r.Put("/api/subjects/{id}/preferences", s.handlePreferencesUpdate)
	r.Delete("/api/subjects/{id}", s.handleSubjectDelete)
	r.Get("/api/subjects/{id}/applications", s.handleApplicationsList)

	r.Post("/api/runs", s.handleRun)
}

// Router builds a standalone router with the standard middleware stack.
func (s *Service) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	s.RegisterHTTP(r)
	return r
}
