// Package server implements the HTTP and WebSocket transport for the chat
// relay.
//
// The implementation is organized into specialized files for configuration,
// origin policy, clients, routing, and HTTP handlers. All chat state lives in
// the chat.Hub handed to New; this package only moves frames between sockets
// and the hub and projects hub snapshots as JSON.
package server
