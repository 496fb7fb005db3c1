package realtime

import "errors"

var (
	// ErrValidation marks a malformed inbound payload. Rejected; only the
	// sender is informed.
	ErrValidation = errors.New("realtime: invalid payload")

	// ErrUnauthenticated marks any event other than authenticate arriving on
	// a connection that has not authenticated yet.
	ErrUnauthenticated = errors.New("realtime: not authenticated")

	// ErrAlreadyAuthenticated rejects a second authenticate on the same
	// connection.
	ErrAlreadyAuthenticated = errors.New("realtime: already authenticated")

	// ErrTooManyConnections rejects authenticate when the user's connection
	// cap is exhausted.
	ErrTooManyConnections = errors.New("realtime: too many connections")
)
