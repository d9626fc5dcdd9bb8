package websocket

import "errors"

var (
	// ErrDecode marks malformed control or binary frames. Frames that
	// fail to decode are logged and skipped, never fatal.
	ErrDecode = errors.New("malformed frame")

	// ErrSessionNotFound is returned by registry lookups for unknown ids.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists is returned when a connection that already owns a
	// session asks for another one.
	ErrSessionExists = errors.New("connection already has an active session")

	// ErrSessionClosed is returned when work is offered to a session that
	// has begun closing.
	ErrSessionClosed = errors.New("session closed")
)

// CloseReasonHandshakeTimeout is reported to peers that never start a
// session within the handshake window.
const CloseReasonHandshakeTimeout = "no start_session received within handshake window"
