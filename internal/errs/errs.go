package errs

import "errors"

var (
	ErrTicketNotFound = errors.New("ticket not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrMediaNotFound  = errors.New("media not found")
	ErrInvalidStatus  = errors.New("invalid status: must be 'open', 'in_progress' or 'resolved'")
	ErrEmptyMessage   = errors.New("message is required")

	// ErrTransportUnavailable is returned when no chat transport is configured.
	ErrTransportUnavailable = errors.New("chat transport is not configured")
)

// TransportError wraps a failure reported by the chat platform.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return "transport: " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err came from the chat platform.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ErrTicketNotOpen is returned when media is attached to a ticket that is no longer open.
var ErrTicketNotOpen = errors.New("ticket is not open")
