// Package server exposes the application over a local JSON HTTP API.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bobmcallan/networth/internal/app"
	"github.com/bobmcallan/networth/internal/common"
)

// Server wraps the HTTP server and application reference.
type Server struct {
	app    *app.App
	server *http.Server
	logger *common.Logger
}

// NewServer creates the HTTP API server.
func NewServer(a *app.App) *Server {
	s := &Server{
		app:    a,
		logger: a.Logger,
	}

	handler := chain(s.router(),
		recoverPanics(a.Logger),
		correlate,
		logRequests(a.Logger),
		allowBrowser,
		reportSyncState(s.syncState),
	)

	s.server = &http.Server{
		Addr:         a.Config.Server.Address(),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) syncState() string {
	return string(s.app.Data.Status().State)
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server (blocking). It returns http.ErrServerClosed
// after Shutdown.
func (s *Server) Start() error {
	s.logger.Info().
		Str("addr", s.server.Addr).
		Msg("Starting REST API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
