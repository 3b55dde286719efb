// Package server defines the wire envelope exchanged over WebSocket frames
// and utility helpers that are reused across client and handler logic.
package server

import (
	"encoding/json"
	"strings"

	"github.com/Tyrowin/chatrelay/internal/chat"
)

// Inbound event names.
const (
	EventJoin    = "join"
	EventMessage = "message"
	EventTyping  = "typing"
)

// Envelope is one WebSocket text frame: a named event and its payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinPayload is the data of a join event.
type JoinPayload struct {
	FullName string `json:"fullName"`
}

// MessagePayload is the data of a message event.
type MessagePayload struct {
	Content string `json:"content"`
}

// HealthResponse is the body served by GET /health.
type HealthResponse struct {
	Status         string `json:"status"`
	ConnectedUsers int    `json:"connectedUsers"`
	TotalMessages  int    `json:"totalMessages"`
}

type outboundEnvelope struct {
	Event chat.EventName `json:"event"`
	Data  any            `json:"data"`
}

func encodeEvent(ev chat.Event) ([]byte, error) {
	return json.Marshal(outboundEnvelope{Event: ev.Name, Data: ev.Data})
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
