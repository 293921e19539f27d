// Package server exposes the interpreter over a local HTTP API: execute,
// reset, artifact listing and fetch, execution history, and a WebSocket
// endpoint that streams output as it is produced.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/michaelbrown/crucible/internal/history"
	"github.com/michaelbrown/crucible/internal/interp"
)

// Server is the HTTP server for the crucible API.
type Server struct {
	interp *interp.Interpreter
	store  history.Store
	router chi.Router
	http   *http.Server
}

// New creates a Server. The history store may be nil, in which case the
// executions endpoint reports an empty list.
func New(engine *interp.Interpreter, store history.Store) *Server {
	s := &Server{
		interp: engine,
		store:  store,
		router: chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Route("/api", func(r chi.Router) {
		r.Use(jsonContentType)

		r.Post("/execute", s.handleExecute)
		r.Post("/reset", s.handleReset)

		r.Get("/files", s.handleListFiles)
		r.Get("/files/{filename}", s.handleGetFile)

		r.Get("/executions", s.handleListExecutions)

		// WebSocket (no JSON content-type)
		r.Get("/execute/ws", s.handleExecuteWS)
	})
}

// jsonContentType sets Content-Type to application/json for API routes.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start begins listening on the given port.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.http = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	slog.Info("crucible server starting", "addr", "http://localhost"+addr)
	return s.http.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.http.Shutdown(shutdownCtx)
}
