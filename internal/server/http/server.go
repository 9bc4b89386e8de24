// Package http exposes the model manager over a huma REST API.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
)

const (
	apiTitle          = "stylus"
	apiVersion        = "1.0.0"
	readHeaderTimeout = 10 * time.Second
)

// Server serves the REST API.
type Server struct {
	srv *http.Server
	api huma.API
}

// Option configures a Server.
type Option func(*http.ServeMux)

// WithMetrics serves h on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(mux *http.ServeMux) {
		mux.Handle("GET /metrics", h)
	}
}

// NewServer creates a Server listening on port.
func NewServer(port int, models Models, opts ...Option) *Server {
	mux := http.NewServeMux()
	api := humago.New(mux, huma.DefaultConfig(apiTitle, apiVersion))
	NewModelsHandler(api, models)

	for _, opt := range opts {
		opt(mux)
	}

	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		api: api,
	}
}

// API returns the huma API.
func (s *Server) API() huma.API {
	return s.api
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Serve serves on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	slog.Info("HTTP server listening", "addr", l.Addr().String())
	if err := s.srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http: serve: %w", err)
	}
	return nil
}

// ListenAndServe listens on the configured port and serves until Shutdown.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("http: listen: %w", err)
	}
	return s.Serve(l)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
