package chat

// MessageLog is the append-only chat history. Entries are never removed
// or modified and the log has no size bound.
//
// MessageLog is not safe for concurrent use; the Hub serializes access.
type MessageLog struct {
	messages []Message
}

// NewMessageLog returns an empty log.
func NewMessageLog() *MessageLog {
	return &MessageLog{}
}

// Append adds msg at the end of the log.
func (l *MessageLog) Append(msg Message) {
	l.messages = append(l.messages, msg)
}

// Snapshot returns a copy of the log in arrival order. The result is never
// nil so it encodes as an empty JSON array.
func (l *MessageLog) Snapshot() []Message {
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len reports the number of messages in the log.
func (l *MessageLog) Len() int {
	return len(l.messages)
}
