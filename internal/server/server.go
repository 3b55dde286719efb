// Package server ties configuration, the chat hub, and the WebSocket
// upgrader together in the Server type.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Tyrowin/chatrelay/internal/chat"
	"github.com/gorilla/websocket"
)

// Server serves the chat relay's WebSocket and HTTP endpoints for one hub.
type Server struct {
	hub      *chat.Hub
	cfg      Config
	origins  originPolicy
	upgrader websocket.Upgrader
	logger   *slog.Logger

	// mu guards closing and every clients.Add made from a zero count.
	mu      sync.Mutex
	closing bool
	clients sync.WaitGroup
}

// New creates a Server for hub. A nil cfg uses defaults and a nil logger
// uses slog.Default().
func New(cfg *Config, hub *chat.Hub, logger *slog.Logger) *Server {
	if cfg == nil {
		cfg = NewConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		hub:     hub,
		cfg:     sanitizeConfig(*cfg),
		origins: newOriginPolicy(cfg.AllowedOrigins, logger),
		logger:  logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// trackClient counts a new WebSocket handler. It reports false once
// Shutdown has started.
func (s *Server) trackClient() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.clients.Add(1)
	return true
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if s.origins.allows(r) {
		return true
	}

	s.logger.Warn("blocked websocket connection from disallowed origin", "origin", r.Header.Get("Origin"))
	return false
}

// Shutdown waits for every client pump to finish, or until the timeout is
// reached. Stop the hub first so the pumps are told to hang up.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.clients.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("all client connections closed")
		return nil
	case <-time.After(timeout):
		s.logger.Warn("client shutdown timeout reached, some connections may still be open")
		return context.DeadlineExceeded
	}
}
