// Package server wires HTTP handlers into a ServeMux for the chat relay
// via routing helpers.
package server

import (
	"net/http"

	"github.com/rs/cors"
)

// SetupRoutes configures and returns the application handler. It sets up
// the status endpoints, the WebSocket endpoint, and the test page, wrapped
// in CORS handling for the configured origins.
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", IndexHandler)
	mux.HandleFunc("GET /health", s.HealthHandler)
	mux.HandleFunc("GET /users", s.UsersHandler)
	mux.HandleFunc("GET /messages", s.MessagesHandler)
	mux.HandleFunc("/ws", s.WebSocketHandler)
	mux.HandleFunc("GET /test", s.TestPageHandler)

	return cors.New(s.origins.corsOptions()).Handler(mux)
}
