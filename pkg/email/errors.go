package email

import "fmt"

// ErrDisabled is returned when sending is attempted on a disabled client.
type ErrDisabled struct{}

func (ErrDisabled) Error() string { return "email: client is disabled" }

// ErrInvalidMessage marks a message that cannot be built.
type ErrInvalidMessage struct{ Reason string }

func (e ErrInvalidMessage) Error() string { return "email: invalid message: " + e.Reason }

// ErrSend wraps a provider delivery failure.
type ErrSend struct {
	Provider string
	Err      error
}

func (e ErrSend) Error() string { return fmt.Sprintf("email: send via %s failed: %v", e.Provider, e.Err) }

func (e ErrSend) Unwrap() error { return e.Err }
