// Package server constructs, starts and stops the relay's HTTP service.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Tyrowin/auction-relay/internal/history"
)

// Server owns the relay state for one process: the connection registry, the
// room history store and the pumps of every accepted client.
type Server struct {
	cfg      *Config
	logger   *zap.Logger
	registry *Registry
	store    *history.Store
	relay    *Relay
	upgrader websocket.Upgrader
	wg       sync.WaitGroup
}

// New builds a Server from cfg. cfg is sanitized in place.
func New(cfg *Config, logger *zap.Logger) *Server {
	if cfg == nil {
		cfg = NewConfig()
	}
	cfg.Sanitize()
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := NewRegistry(logger.Named("registry"))
	store := history.NewStore(cfg.HistoryLimit)
	origins := newOriginPolicy(cfg.AllowedOrigins, logger)

	return &Server{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		store:    store,
		relay:    NewRelay(registry, store, cfg.BroadcastScope, logger.Named("relay")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.checkOrigin,
		},
	}
}

// Relay returns the server's message relay.
func (s *Server) Relay() *Relay {
	return s.relay
}

func (s *Server) startPumps(c *Client) {
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		c.writePump()
	}()
	go func() {
		defer s.wg.Done()
		c.readPump(s.relay, s.cfg.MaxMessageSize)
	}()
}

// CreateServer creates and configures an HTTP server with the specified
// address and handler.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// HTTPServer builds the http.Server for this relay's configured port.
func (s *Server) HTTPServer() *http.Server {
	return CreateServer(s.cfg.Addr(), s.SetupRoutes())
}

// StartServer starts the HTTP server and blocks until it exits. A clean
// shutdown returns nil.
func (s *Server) StartServer(httpServer *http.Server) error {
	s.logger.Info("Server listening", zap.String("addr", httpServer.Addr))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, closes every WebSocket connection and
// waits for all client pumps to exit or for ctx to expire.
func (s *Server) Shutdown(ctx context.Context, httpServer *http.Server) error {
	s.logger.Info("Shutting down HTTP server...")

	var shutdownErr error
	if httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil {
			s.logger.Warn("HTTP server shutdown error", zap.Error(err))
			shutdownErr = err
		}
	}

	s.registry.CloseAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Shutdown completed",
			zap.Int("rooms", s.store.Rooms()))
		return shutdownErr
	case <-ctx.Done():
		s.logger.Warn("Shutdown timeout reached, some client goroutines may still be running")
		return ctx.Err()
	}
}
