package chat

import "errors"

// Operation errors returned to the originating connection only, never
// broadcast.
var (
	// ErrUnauthenticated: no identity bound to the connection.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrNotInRoom: sending to a public room the connection has not
	// joined. Recoverable by joining first.
	ErrNotInRoom = errors.New("not in room")

	// ErrInvalidPayload: malformed request (both or neither of
	// text/file, empty room name, unknown message id, ...).
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrNotApplicable: pin operation on a direct-message room.
	ErrNotApplicable = errors.New("not applicable")

	// ErrPersistence wraps store failures. The send that hit it is
	// never fanned out; retrying is up to the caller.
	ErrPersistence = errors.New("persistence failure")
)

// errorCode maps an operation error to its wire code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrNotInRoom):
		return "not_in_room"
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, ErrNotApplicable):
		return "not_applicable"
	case errors.Is(err, ErrPersistence):
		return "persistence_failure"
	default:
		return "internal"
	}
}
