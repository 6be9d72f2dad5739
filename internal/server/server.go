// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	cerebroerr "github.com/cerebro-notes/cerebro/pkg/errors"
)

// Server wraps a chi router with a huma API over the app state.
type Server struct {
	router chi.Router
	api    huma.API
	app    *App
	addr   string
}

// New creates a Server bound to the app. The listen address comes from
// the frozen config and is expected to be a loopback address.
func New(app *App) (*Server, error) {
	if app == nil || app.Config == nil {
		return nil, cerebroerr.New(cerebroerr.CodeServerStartFailure, "server requires a wired app")
	}

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware())

	humaConfig := huma.DefaultConfig("Cerebro", app.Version)
	humaConfig.Info.Description = "Question answering over a local Markdown vault"
	api := humachi.New(r, humaConfig)

	srv := &Server{
		router: r,
		api:    api,
		app:    app,
		addr:   app.Config.ListenAddr(),
	}

	srv.registerRoutes()
	srv.registerStreamRoute()

	return srv, nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server and blocks until the context is cancelled,
// then performs graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return cerebroerr.Errorf(cerebroerr.CodeServerStartFailure, "listening on %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:     s.router,
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: /ask/stream is a long-lived SSE response with
		// its own idle-between-tokens bound.
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return cerebroerr.Wrap(err, cerebroerr.CodeServerStartFailure, "shutting down")
	}

	return <-errCh
}

func corsMiddleware() func(http.Handler) http.Handler {
	// The client plugin runs inside the note editor; its webview origins
	// are app-specific, so allow any origin on this loopback-only server.
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})
}
