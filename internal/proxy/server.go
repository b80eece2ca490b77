// Package proxy implements the HTTP proxy server for keygated.
package proxy

import (
	"context"
	"net/http"
	"time"
)

// Server wraps http.Server with keygated configuration.
type Server struct {
	httpServer *http.Server
	addr       string
}

// NewServer creates a new Server with timeouts suited to a small JSON status
// endpoint rather than long-lived streaming traffic.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		addr: addr,
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// ListenAndServe starts the server (blocks).
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
