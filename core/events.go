package conversation

import (
	"github.com/charlescrowellnv/mindvalley-eve-ai/core/events"
)

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

// respondToEvent applies one validated agent event to the engine state
// and then forwards it to the configured observer. Events arrive from the
// transport's read loop; per-stream ordering is preserved by handling
// them inline.
func (s *Session) respondToEvent(event events.Event) {
	switch typedEvent := event.(type) {
	case events.ConnectionConnected:
		s.handleConnected()
	case events.ConnectionDisconnected:
		s.handleDisconnected()
	case events.AssistantTextStarted:
		s.timeline.startAssistantStream()
	case events.AssistantTextDelta:
		s.timeline.appendAssistantDelta(typedEvent.Text)
	case events.AssistantTextStopped:
		// The streaming identity is retained until the authoritative
		// final arrives, so a MessageFinal can still close the open
		// message by identity.
	case events.MessageFinal:
		switch typedEvent.Source {
		case events.MessageSourceUser:
			s.timeline.reconcileUserEcho(typedEvent.Text)
		case events.MessageSourceAgent:
			s.timeline.finalizeAssistant(typedEvent.Text)
		}
	case events.SessionErrorReported:
		// Non-fatal by contract: surface the message, stay connected,
		// and let the user decide whether to disconnect.
		s.setError(typedEvent.Message)
	}

	s.emitEvent(event)
}
