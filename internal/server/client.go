// Package server manages individual WebSocket clients, handling read/write
// pumps, frame decoding, and lifecycle control for each connection.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/Tyrowin/chatrelay/internal/chat"
	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// Client represents a WebSocket client connection in the chat system.
// It pairs the socket with the hub-side connection handle that carries
// outbound events.
type Client struct {
	conn           *websocket.Conn
	hub            *chat.Hub
	session        *chat.Conn
	addr           string
	maxMessageSize int64
	logger         *slog.Logger
}

// NewClient creates a new Client for an upgraded connection and its hub
// session.
func NewClient(conn *websocket.Conn, hub *chat.Hub, session *chat.Conn, addr string, maxMessageSize int64, logger *slog.Logger) *Client {
	if conn != nil {
		conn.SetReadLimit(maxMessageSize)
	}
	return &Client{
		conn:           conn,
		hub:            hub,
		session:        session,
		addr:           addr,
		maxMessageSize: maxMessageSize,
		logger:         logger.With("conn", session.ID(), "addr", addr),
	}
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Warn("error setting initial read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.logger.Warn("error setting read deadline in pong handler", "error", err)
		}
		return nil
	})
}

// logReadError logs the reason the read loop stopped.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger.Warn("frame exceeded maximum size", "limit", c.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.logger.Info("client disconnected", "reason", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.logger.Info("client connection closed", "reason", err)
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		c.logger.Warn("unexpected websocket close", "error", err)
	default:
		c.logger.Warn("websocket read error", "error", err)
	}
}

// processFrame decodes one inbound frame and hands it to the hub. Frames
// that cannot be decoded or name an unknown event are dropped. Only hub
// errors are returned.
func (c *Client) processFrame(ctx context.Context, raw []byte) error {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.Debug("invalid frame", "error", err)
		return nil
	}

	id := c.session.ID()
	switch env.Event {
	case EventJoin:
		// A malformed payload reads as an empty name and fails validation.
		var payload JoinPayload
		_ = json.Unmarshal(env.Data, &payload)
		return c.hub.Join(ctx, id, payload.FullName)
	case EventMessage:
		var payload MessagePayload
		_ = json.Unmarshal(env.Data, &payload)
		return c.hub.Post(ctx, id, payload.Content)
	case EventTyping:
		var isTyping bool
		if err := json.Unmarshal(env.Data, &isTyping); err != nil {
			c.logger.Debug("ignoring non-boolean typing payload", "data", string(env.Data))
			return nil
		}
		return c.hub.Typing(ctx, id, isTyping)
	default:
		c.logger.Debug("ignoring unknown event", "event", env.Event)
		return nil
	}
}

// readPump feeds inbound frames to the hub until the socket fails, then
// reports the disconnect exactly once.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		if err := c.hub.Disconnect(context.WithoutCancel(ctx), c.session.ID()); err != nil && !errors.Is(err, chat.ErrHubClosed) {
			c.logger.Error("error reporting disconnect", "error", err)
		}
		c.closeConnection()
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		if err := c.processFrame(ctx, raw); err != nil {
			if !errors.Is(err, chat.ErrHubClosed) {
				c.logger.Error("error dispatching frame", "error", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case ev, ok := <-c.session.Events():
		return c.handleEvent(ev, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.Warn("error closing connection", "error", err)
		}
	}
}

// handleEvent writes one outbound event and returns false if the connection should be closed
func (c *Client) handleEvent(ev chat.Event, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Warn("error setting write deadline", "error", err)
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	payload, err := encodeEvent(ev)
	if err != nil {
		c.logger.Error("error encoding event", "event", ev.Name, "error", err)
		return true
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.Warn("error writing event", "event", ev.Name, "error", err)
		}
		return false
	}
	return true
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.Warn("error writing close message", "error", err)
		}
	}
	return false
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Warn("error setting write deadline for ping", "error", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Warn("error writing ping message", "error", err)
		return false
	}
	return true
}
