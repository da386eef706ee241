package events

const (
	// KindAssistantTextStarted identifies the start of a streamed assistant reply.
	KindAssistantTextStarted Kind = "assistant_text.started"
	// KindAssistantTextDelta identifies a streamed assistant text fragment.
	KindAssistantTextDelta Kind = "assistant_text.delta"
	// KindAssistantTextStopped identifies assistant text stream completion.
	KindAssistantTextStopped Kind = "assistant_text.stopped"
)

// AssistantTextStarted marks the start of a streamed assistant reply.
type AssistantTextStarted struct{ Base }

// NewAssistantTextStarted creates an assistant text started event.
func NewAssistantTextStarted() AssistantTextStarted {
	return AssistantTextStarted{Base: NewBase(KindAssistantTextStarted)}
}

// AssistantTextDelta carries an append-only fragment of the currently
// streaming assistant reply.
type AssistantTextDelta struct {
	Base
	Text string
}

// NewAssistantTextDelta creates an assistant text delta event.
func NewAssistantTextDelta(text string) AssistantTextDelta {
	return AssistantTextDelta{Base: NewBase(KindAssistantTextDelta), Text: text}
}

// AssistantTextStopped marks the end of the delta stream. The
// authoritative final text follows as a MessageFinal.
type AssistantTextStopped struct{ Base }

// NewAssistantTextStopped creates an assistant text stopped event.
func NewAssistantTextStopped() AssistantTextStopped {
	return AssistantTextStopped{Base: NewBase(KindAssistantTextStopped)}
}
