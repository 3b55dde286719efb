package chat

import "errors"

var (
	// ErrValidation marks an empty or whitespace-only name or message.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthenticated marks a chat message sent before a successful join.
	ErrUnauthenticated = errors.New("user not joined")
	// ErrHubClosed is returned by Hub calls once Run has stopped.
	ErrHubClosed = errors.New("hub closed")
)

// ClientError is reported to the offending connection through an error
// event. It unwraps to its kind so callers can match with errors.Is.
type ClientError struct {
	Kind    error
	Message string
}

func newClientError(kind error, message string) *ClientError {
	return &ClientError{Kind: kind, Message: message}
}

func (e *ClientError) Error() string {
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Kind
}

var (
	errFullNameRequired = newClientError(ErrValidation, "Full name is required")
	errEmptyMessage     = newClientError(ErrValidation, "Message cannot be empty")
	errUserNotFound     = newClientError(ErrUnauthenticated, "User not found")
)
