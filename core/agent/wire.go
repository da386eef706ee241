package agent

import (
	"encoding/json"
	"fmt"

	"github.com/charlescrowellnv/mindvalley-eve-ai/core/events"
)

// Inbound wire envelopes. The remote side multiplexes every event kind
// over one socket; each type tags exactly one payload field. Anything
// that does not decode into a known variant is rejected at this boundary
// and never reaches the session engine.
type envelope struct {
	Type string `json:"type"`

	ConversationInitiationMetadataEvent *initiationMetadataEvent `json:"conversation_initiation_metadata_event,omitempty"`
	AgentResponseEvent                  *agentResponseEvent      `json:"agent_response_event,omitempty"`
	UserTranscriptionEvent              *userTranscriptionEvent  `json:"user_transcription_event,omitempty"`
	TextResponsePart                    *textResponsePart        `json:"text_response_part,omitempty"`
	ClientToolCall                      *clientToolCall          `json:"client_tool_call,omitempty"`
	PingEvent                           *pingEvent               `json:"ping_event,omitempty"`
	Message                             string                   `json:"message,omitempty"`
}

type initiationMetadataEvent struct {
	ConversationID string `json:"conversation_id"`
}

type agentResponseEvent struct {
	AgentResponse string `json:"agent_response"`
}

type userTranscriptionEvent struct {
	UserTranscript string `json:"user_transcript"`
}

type textResponsePart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type clientToolCall struct {
	ToolName   string          `json:"tool_name"`
	ToolCallID string          `json:"tool_call_id"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

type pingEvent struct {
	EventID int `json:"event_id"`
}

// Outbound wire messages.
type initiationClientData struct {
	Type string `json:"type"`
}

type userMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type setVolume struct {
	Type   string  `json:"type"`
	Volume float64 `json:"volume"`
}

type userAudioChunk struct {
	UserAudioChunk string `json:"user_audio_chunk"`
}

type pong struct {
	Type    string `json:"type"`
	EventID int    `json:"event_id"`
}

type clientToolResult struct {
	Type       string `json:"type"`
	ToolCallID string `json:"tool_call_id"`
	Result     string `json:"result"`
	IsError    bool   `json:"is_error"`
}

// toolInvocation is a decoded client_tool_call ready for dispatch.
type toolInvocation struct {
	id        string
	name      string
	arguments string
}

// decoded is the result of validating one inbound envelope: at most one
// of event, tool call, or ping reply is set.
type decoded struct {
	event    events.Event
	toolCall *toolInvocation
	pingID   *int
}

func decodeEnvelope(data []byte) (decoded, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return decoded{}, fmt.Errorf("failed to decode envelope: %w", err)
	}

	switch env.Type {
	case "conversation_initiation_metadata":
		if env.ConversationInitiationMetadataEvent == nil {
			return decoded{}, fmt.Errorf("initiation metadata envelope missing payload")
		}
		return decoded{event: events.NewConnectionConnected(env.ConversationInitiationMetadataEvent.ConversationID)}, nil

	case "agent_response":
		if env.AgentResponseEvent == nil {
			return decoded{}, fmt.Errorf("agent response envelope missing payload")
		}
		return decoded{event: events.NewMessageFinal(events.MessageSourceAgent, env.AgentResponseEvent.AgentResponse)}, nil

	case "user_transcript":
		if env.UserTranscriptionEvent == nil {
			return decoded{}, fmt.Errorf("user transcript envelope missing payload")
		}
		return decoded{event: events.NewMessageFinal(events.MessageSourceUser, env.UserTranscriptionEvent.UserTranscript)}, nil

	case "agent_chat_response_part":
		if env.TextResponsePart == nil {
			return decoded{}, fmt.Errorf("chat response part envelope missing payload")
		}
		switch env.TextResponsePart.Type {
		case "start":
			return decoded{event: events.NewAssistantTextStarted()}, nil
		case "delta":
			return decoded{event: events.NewAssistantTextDelta(env.TextResponsePart.Text)}, nil
		case "stop":
			return decoded{event: events.NewAssistantTextStopped()}, nil
		}
		return decoded{}, fmt.Errorf("unknown text response part type %q", env.TextResponsePart.Type)

	case "client_tool_call":
		if env.ClientToolCall == nil {
			return decoded{}, fmt.Errorf("tool call envelope missing payload")
		}
		return decoded{toolCall: &toolInvocation{
			id:        env.ClientToolCall.ToolCallID,
			name:      env.ClientToolCall.ToolName,
			arguments: string(env.ClientToolCall.Parameters),
		}}, nil

	case "ping":
		if env.PingEvent == nil {
			return decoded{}, fmt.Errorf("ping envelope missing payload")
		}
		id := env.PingEvent.EventID
		return decoded{pingID: &id}, nil

	case "error":
		return decoded{event: events.NewSessionErrorReported(env.Message)}, nil
	}

	return decoded{}, fmt.Errorf("unknown envelope type %q", env.Type)
}
