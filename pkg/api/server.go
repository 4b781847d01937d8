// Package api provides HTTP API server components.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/goclaw/recall/config"
	"github.com/goclaw/recall/pkg/logger"
)

// HTTPServer serves the recall API. Listen binds the address so bind errors
// surface before serving starts; Serve then blocks until Shutdown.
type HTTPServer struct {
	server   *http.Server
	listener net.Listener
	logger   logger.Logger
}

// NewHTTPServer creates a new HTTP server instance.
func NewHTTPServer(cfg *config.Config, log logger.Logger, handlers *Handlers) *HTTPServer {
	httpCfg := cfg.Server.HTTP
	return &HTTPServer{
		server: &http.Server{
			Addr:           net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
			Handler:        NewRouter(cfg, log, handlers),
			ReadTimeout:    httpCfg.ReadTimeout,
			WriteTimeout:   httpCfg.WriteTimeout,
			IdleTimeout:    httpCfg.IdleTimeout,
			MaxHeaderBytes: httpCfg.MaxHeaderBytes,
		},
		logger: log,
	}
}

// Handler returns the routed handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Addr returns the bound address once Listen succeeded, the configured one
// before that. With port 0 this is where the kernel-chosen port shows up.
func (s *HTTPServer) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

// Listen binds the configured address.
func (s *HTTPServer) Listen() error {
	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	s.listener = ln
	return nil
}

// Serve accepts connections until Shutdown, binding first if needed.
// A clean shutdown returns nil.
func (s *HTTPServer) Serve() error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.logger.Info("Starting HTTP server",
		"addr", s.Addr(),
		"read_timeout", s.server.ReadTimeout,
		"write_timeout", s.server.WriteTimeout,
	)
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("HTTP server failed", "error", err)
		return fmt.Errorf("HTTP server: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown failed", "error", err)
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}
