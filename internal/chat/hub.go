package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultSendBuffer = 256
	tracerName        = "github.com/Tyrowin/chatrelay/internal/chat"
)

type inboundKind int

const (
	inboundConnect inboundKind = iota
	inboundJoin
	inboundPost
	inboundTyping
	inboundDisconnect
)

func (k inboundKind) spanName() string {
	switch k {
	case inboundConnect:
		return "chat.connect"
	case inboundJoin:
		return "chat.join"
	case inboundPost:
		return "chat.message"
	case inboundTyping:
		return "chat.typing"
	default:
		return "chat.disconnect"
	}
}

type inbound struct {
	ctx      context.Context
	kind     inboundKind
	connID   string
	conn     *Conn
	text     string
	isTyping bool
	applied  chan struct{}
}

// Conn is the hub side of one connection. Events addressed to the
// connection are queued on its channel, which the hub closes when the
// connection is released or evicted.
type Conn struct {
	id   string
	send chan Event
}

// ID returns the connection identifier.
func (c *Conn) ID() string {
	return c.id
}

// Events returns the outbound event stream for the connection.
func (c *Conn) Events() <-chan Event {
	return c.send
}

// Hub owns the registry and the message log and is their only writer.
// Inbound events are applied one at a time by Run; the exported event
// methods return once their event has been fully applied.
type Hub struct {
	mu       sync.RWMutex
	registry *Registry
	log      *MessageLog

	// conns is only touched by the Run goroutine.
	conns map[string]*Conn

	inbound chan inbound
	done    chan struct{}

	sendBuffer int
	messageID  IDFunc
	connID     IDFunc
	now        func() time.Time
	logger     *slog.Logger
	tracer     trace.Tracer
	running    atomic.Bool
	stopOnce   sync.Once
}

// Option customizes a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithClock sets the time source for join times and message timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		if now != nil {
			h.now = now
		}
	}
}

// WithMessageIDs sets the message id generator.
func WithMessageIDs(fn IDFunc) Option {
	return func(h *Hub) {
		if fn != nil {
			h.messageID = fn
		}
	}
}

// WithConnectionIDs sets the connection id generator.
func WithConnectionIDs(fn IDFunc) Option {
	return func(h *Hub) {
		if fn != nil {
			h.connID = fn
		}
	}
}

// WithSendBuffer sets the capacity of each connection's outbound queue.
func WithSendBuffer(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.sendBuffer = size
		}
	}
}

// WithTracerProvider sets the provider used for per-event spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(h *Hub) {
		if tp != nil {
			h.tracer = tp.Tracer(tracerName)
		}
	}
}

// NewHub creates a Hub. Call Run to start processing events.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		registry:   NewRegistry(),
		log:        NewMessageLog(),
		conns:      make(map[string]*Conn),
		inbound:    make(chan inbound),
		done:       make(chan struct{}),
		sendBuffer: defaultSendBuffer,
		messageID:  NewMessageID,
		connID:     NewConnectionID,
		now:        time.Now,
		logger:     slog.Default(),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run applies inbound events until ctx is cancelled. On return every open
// connection queue is closed and later calls fail with ErrHubClosed.
// Run must be called at most once.
func (h *Hub) Run(ctx context.Context) {
	if !h.running.CompareAndSwap(false, true) {
		h.logger.Warn("hub already running")
		return
	}
	defer h.stop()

	h.logger.Info("hub started")
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-h.inbound:
			h.apply(ev)
			close(ev.applied)
		}
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		for id, conn := range h.conns {
			delete(h.conns, id)
			close(conn.send)
		}
		h.logger.Info("hub stopped")
	})
}

// Connect adds an unauthenticated connection and returns its handle.
func (h *Hub) Connect(ctx context.Context) (*Conn, error) {
	conn := &Conn{id: h.connID(), send: make(chan Event, h.sendBuffer)}
	if err := h.dispatch(ctx, inbound{kind: inboundConnect, connID: conn.id, conn: conn}); err != nil {
		return nil, err
	}
	return conn, nil
}

// Join registers fullName for the connection. Validation failures are
// reported to the connection as an error event.
func (h *Hub) Join(ctx context.Context, connID, fullName string) error {
	return h.dispatch(ctx, inbound{kind: inboundJoin, connID: connID, text: fullName})
}

// Post appends a user message from the connection and broadcasts it.
func (h *Hub) Post(ctx context.Context, connID, content string) error {
	return h.dispatch(ctx, inbound{kind: inboundPost, connID: connID, text: content})
}

// Typing relays a typing indicator to every other connection.
func (h *Hub) Typing(ctx context.Context, connID string, isTyping bool) error {
	return h.dispatch(ctx, inbound{kind: inboundTyping, connID: connID, isTyping: isTyping})
}

// Disconnect releases the connection. It must be called exactly once per
// connection, whether or not the connection joined.
func (h *Hub) Disconnect(ctx context.Context, connID string) error {
	return h.dispatch(ctx, inbound{kind: inboundDisconnect, connID: connID})
}

func (h *Hub) dispatch(ctx context.Context, ev inbound) error {
	ev.ctx = ctx
	ev.applied = make(chan struct{})
	select {
	case h.inbound <- ev:
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return fmt.Errorf("dispatch %s: %w", ev.kind.spanName(), ctx.Err())
	}
	<-ev.applied
	return nil
}

func (h *Hub) apply(ev inbound) {
	_, span := h.tracer.Start(ev.ctx, ev.kind.spanName(),
		trace.WithAttributes(attribute.String("chat.connection_id", ev.connID)))
	defer span.End()

	switch ev.kind {
	case inboundConnect:
		h.conns[ev.connID] = ev.conn
		h.logger.Info("client connected", "conn", ev.connID, "connections", len(h.conns))
	case inboundJoin:
		h.handleJoin(ev.connID, ev.text)
	case inboundPost:
		h.handlePost(ev.connID, ev.text)
	case inboundTyping:
		h.handleTyping(ev.connID, ev.isTyping)
	case inboundDisconnect:
		h.handleDisconnect(ev.connID)
	}
}

func (h *Hub) handleJoin(connID, fullName string) {
	conn, ok := h.conns[connID]
	if !ok {
		h.logger.Debug("join from unknown connection dropped", "conn", connID)
		return
	}

	h.mu.Lock()
	user, err := h.registry.Register(connID, fullName, h.now())
	if err != nil {
		h.mu.Unlock()
		h.logger.Debug("join rejected", "conn", connID, "error", err)
		h.deliver(conn, errorEvent(errFullNameRequired))
		return
	}
	history := h.log.Snapshot()
	joined := h.appendSystemLocked(fmt.Sprintf("%s joined the chat", user.FullName))
	users := h.registry.List()
	h.mu.Unlock()

	h.logger.Info("user joined", "conn", connID, "name", user.FullName, "users", len(users))
	h.deliver(conn, Event{Name: EventMessages, Data: history})
	h.broadcast(Event{Name: EventMessage, Data: joined}, "")
	h.broadcast(Event{Name: EventUsers, Data: users}, "")
}

func (h *Hub) handlePost(connID, content string) {
	conn, ok := h.conns[connID]
	if !ok {
		h.logger.Debug("message from unknown connection dropped", "conn", connID)
		return
	}

	h.mu.Lock()
	user, joined := h.registry.Lookup(connID)
	if !joined {
		h.mu.Unlock()
		h.deliver(conn, errorEvent(errUserNotFound))
		return
	}
	text, err := normalizeContent(content)
	if err != nil {
		h.mu.Unlock()
		h.deliver(conn, errorEvent(errEmptyMessage))
		return
	}
	msg := Message{
		ID:        h.messageID(),
		Type:      MessageTypeUser,
		Content:   text,
		Timestamp: h.timestamp(),
		Sender:    user.FullName,
		SenderID:  connID,
	}
	h.log.Append(msg)
	h.mu.Unlock()

	h.logger.Debug("message posted", "conn", connID, "sender", user.FullName, "id", msg.ID)
	h.broadcast(Event{Name: EventMessage, Data: msg}, "")
}

func (h *Hub) handleTyping(connID string, isTyping bool) {
	h.mu.RLock()
	user, joined := h.registry.Lookup(connID)
	h.mu.RUnlock()
	if !joined {
		return
	}
	h.broadcast(Event{
		Name: EventUserTyping,
		Data: TypingPayload{User: user.FullName, IsTyping: isTyping},
	}, connID)
}

func (h *Hub) handleDisconnect(connID string) {
	if conn, ok := h.conns[connID]; ok {
		delete(h.conns, connID)
		close(conn.send)
	}

	h.mu.Lock()
	user, joined := h.registry.Unregister(connID)
	if !joined {
		h.mu.Unlock()
		h.logger.Info("client disconnected", "conn", connID, "connections", len(h.conns))
		return
	}
	left := h.appendSystemLocked(fmt.Sprintf("%s left the chat", user.FullName))
	users := h.registry.List()
	h.mu.Unlock()

	h.logger.Info("user left", "conn", connID, "name", user.FullName, "users", len(users))
	h.broadcast(Event{Name: EventMessage, Data: left}, "")
	h.broadcast(Event{Name: EventUsers, Data: users}, "")
}

// appendSystemLocked must be called with h.mu held for writing.
func (h *Hub) appendSystemLocked(content string) Message {
	msg := Message{
		ID:        h.messageID(),
		Type:      MessageTypeSystem,
		Content:   content,
		Timestamp: h.timestamp(),
		Sender:    SystemSender,
	}
	h.log.Append(msg)
	return msg
}

func (h *Hub) timestamp() string {
	return h.now().UTC().Format(timestampLayout)
}

// broadcast queues ev for every connection except the one named by except.
func (h *Hub) broadcast(ev Event, except string) {
	for id, conn := range h.conns {
		if id == except {
			continue
		}
		h.deliver(conn, ev)
	}
}

// deliver never blocks the loop. A connection whose queue is full is
// evicted: its queue is closed so the writer hangs up, and the user entry
// goes away when the transport reports the disconnect.
func (h *Hub) deliver(conn *Conn, ev Event) {
	select {
	case conn.send <- ev:
	default:
		delete(h.conns, conn.id)
		close(conn.send)
		h.logger.Warn("client evicted due to full send buffer", "conn", conn.id)
	}
}

// Stats returns the joined user count and the message count.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Stats{ConnectedUsers: h.registry.Len(), TotalMessages: h.log.Len()}
}

// Users returns the joined users in registration order.
func (h *Hub) Users() []UserSummary {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.registry.List()
}

// Messages returns a copy of the whole message log.
func (h *Hub) Messages() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.log.Snapshot()
}
