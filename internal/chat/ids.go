package chat

import "github.com/google/uuid"

// IDFunc produces identifiers for messages or connections.
type IDFunc func() string

// NewMessageID returns a UUIDv7. Version 7 ids sort by creation time and
// stay unique when several messages share the same millisecond.
func NewMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// NewConnectionID returns a random connection identifier.
func NewConnectionID() string {
	return uuid.NewString()
}
