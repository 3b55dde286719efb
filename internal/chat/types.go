package chat

import "time"

// MessageType distinguishes relay-generated messages from user messages.
type MessageType string

const (
	MessageTypeSystem MessageType = "system"
	MessageTypeUser   MessageType = "user"
)

// SystemSender is the display name attached to system messages.
const SystemSender = "System"

// timestampLayout matches ISO-8601 with millisecond precision, e.g.
// 2024-05-01T09:30:00.000Z.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// User is a joined connection.
type User struct {
	ID       string
	FullName string
	JoinedAt time.Time
}

// UserSummary is the public projection of a User.
type UserSummary struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
}

// Summary projects the user onto its public fields.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, FullName: u.FullName}
}

// Message is one entry of the chat log. SenderID is only set on user
// messages and keeps pointing at the connection even after it leaves.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Content   string      `json:"content"`
	Timestamp string      `json:"timestamp"`
	Sender    string      `json:"sender"`
	SenderID  string      `json:"senderId,omitempty"`
}

// Stats is the aggregate view served by the health endpoint.
type Stats struct {
	ConnectedUsers int
	TotalMessages  int
}

// EventName names an outbound event.
type EventName string

const (
	EventMessages   EventName = "messages"
	EventMessage    EventName = "message"
	EventUsers      EventName = "users"
	EventError      EventName = "error"
	EventUserTyping EventName = "userTyping"
)

// Event is pushed by the hub to a connection. Data is one of []Message,
// Message, []UserSummary, ErrorPayload or TypingPayload depending on Name.
type Event struct {
	Name EventName
	Data any
}

// ErrorPayload is the body of an error event.
type ErrorPayload struct {
	Message string `json:"message"`
}

// TypingPayload is the body of a userTyping event.
type TypingPayload struct {
	User     string `json:"user"`
	IsTyping bool   `json:"isTyping"`
}

func errorEvent(err *ClientError) Event {
	return Event{Name: EventError, Data: ErrorPayload{Message: err.Message}}
}
