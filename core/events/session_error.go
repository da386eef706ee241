package events

const (
	// KindSessionErrorReported identifies a non-fatal remote error report.
	KindSessionErrorReported Kind = "session.error_reported"
)

// SessionErrorReported carries a fatal condition reported by the remote
// side without closing the session. The engine surfaces the message and
// leaves the session connected; whether to disconnect is the user's call.
type SessionErrorReported struct {
	Base
	Message string
}

// NewSessionErrorReported creates a session error reported event.
func NewSessionErrorReported(message string) SessionErrorReported {
	return SessionErrorReported{Base: NewBase(KindSessionErrorReported), Message: message}
}
