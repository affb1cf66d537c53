// Package web exposes the catalogue over a JSON API for the map UI.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/avogel/teamap/internal/domain"
	"github.com/avogel/teamap/internal/suggest"
	appsync "github.com/avogel/teamap/internal/sync"
)

// Coordinator is the session the handlers operate on. Defining the
// interface here lets handler tests inject a stub without a cache or
// remote store behind it.
type Coordinator interface {
	LoadAll(ctx context.Context) (*appsync.Snapshot, error)
	SaveTea(ctx context.Context, tea domain.Tea) (*domain.Tea, error)
	DeleteTea(ctx context.Context, id string) error
	HideStarter(ctx context.Context, id string) error
	UnhideStarter(ctx context.Context, id string) error
	Degraded() bool
}

type Server struct {
	session   Coordinator
	suggester suggest.Suggester
	router    chi.Router
	logger    *slog.Logger
}

// NewServer wires the routes. suggester may be nil; the suggest
// endpoint then reports the feature as unavailable.
func NewServer(session Coordinator, suggester suggest.Suggester, corsOrigins []string, logger *slog.Logger) *Server {
	s := &Server{
		session:   session,
		suggester: suggester,
		router:    chi.NewRouter(),
		logger:    logger,
	}

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(requestLogger(logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s.router.Get("/healthz", s.handleHealth)
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/teas", s.handleListTeas)
		r.Post("/teas", s.handleCreateTea)
		r.Put("/teas/{id}", s.handleUpdateTea)
		r.Delete("/teas/{id}", s.handleDeleteTea)
		r.Post("/starters/{id}/hide", s.handleHideStarter)
		r.Delete("/starters/{id}/hide", s.handleUnhideStarter)
		r.Post("/suggest", s.handleSuggest)
	})
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return srv.ListenAndServe()
}

// requestLogger logs each request as a structured line, including the
// request ID set by chi's RequestID middleware.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", chimiddleware.GetReqID(r.Context()),
			)
		})
	}
}
