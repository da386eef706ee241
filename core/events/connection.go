package events

const (
	// KindConnectionConnecting identifies an in-progress session handshake.
	KindConnectionConnecting Kind = "connection.connecting"
	// KindConnectionConnected identifies a live session.
	KindConnectionConnected Kind = "connection.connected"
	// KindConnectionDisconnected identifies session termination.
	KindConnectionDisconnected Kind = "connection.disconnected"
)

// ConnectionConnecting marks the start of the session handshake.
type ConnectionConnecting struct{ Base }

// NewConnectionConnecting creates a connection connecting event.
func NewConnectionConnecting() ConnectionConnecting {
	return ConnectionConnecting{Base: NewBase(KindConnectionConnecting)}
}

// ConnectionConnected marks a completed handshake.
type ConnectionConnected struct {
	Base
	SessionID string
}

// NewConnectionConnected creates a connection connected event.
func NewConnectionConnected(sessionID string) ConnectionConnected {
	return ConnectionConnected{Base: NewBase(KindConnectionConnected), SessionID: sessionID}
}

// ConnectionDisconnected marks session termination, local or remote.
type ConnectionDisconnected struct {
	Base
	Reason string
}

// NewConnectionDisconnected creates a connection disconnected event.
func NewConnectionDisconnected(reason string) ConnectionDisconnected {
	return ConnectionDisconnected{Base: NewBase(KindConnectionDisconnected), Reason: reason}
}
