package agent

import (
	"testing"

	"github.com/charlescrowellnv/mindvalley-eve-ai/core/events"
)

func TestDecodeEnvelopeProducesExpectedEventKinds(t *testing.T) {
	testCases := []struct {
		name     string
		payload  string
		expected events.Kind
	}{
		{
			name:     "initiation metadata",
			payload:  `{"type":"conversation_initiation_metadata","conversation_initiation_metadata_event":{"conversation_id":"conv-1"}}`,
			expected: events.KindConnectionConnected,
		},
		{
			name:     "agent response",
			payload:  `{"type":"agent_response","agent_response_event":{"agent_response":"Hi there!"}}`,
			expected: events.KindMessageFinal,
		},
		{
			name:     "user transcript",
			payload:  `{"type":"user_transcript","user_transcription_event":{"user_transcript":"Hello"}}`,
			expected: events.KindMessageFinal,
		},
		{
			name:     "chat response part start",
			payload:  `{"type":"agent_chat_response_part","text_response_part":{"type":"start"}}`,
			expected: events.KindAssistantTextStarted,
		},
		{
			name:     "chat response part delta",
			payload:  `{"type":"agent_chat_response_part","text_response_part":{"type":"delta","text":"Hi"}}`,
			expected: events.KindAssistantTextDelta,
		},
		{
			name:     "chat response part stop",
			payload:  `{"type":"agent_chat_response_part","text_response_part":{"type":"stop"}}`,
			expected: events.KindAssistantTextStopped,
		},
		{
			name:     "error report",
			payload:  `{"type":"error","message":"quota exceeded"}`,
			expected: events.KindSessionErrorReported,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			result, err := decodeEnvelope([]byte(testCase.payload))
			if err != nil {
				t.Fatalf("expected decode to succeed, got %v", err)
			}
			if result.event == nil {
				t.Fatalf("expected an event, got none")
			}
			if got := result.event.Kind(); got != testCase.expected {
				t.Fatalf("expected kind %q, got %q", testCase.expected, got)
			}
		})
	}
}

func TestDecodeEnvelopeRoutesSourcesOnFinalMessages(t *testing.T) {
	result, err := decodeEnvelope([]byte(`{"type":"user_transcript","user_transcription_event":{"user_transcript":"Hello"}}`))
	if err != nil {
		t.Fatalf("expected decode to succeed, got %v", err)
	}

	message, ok := result.event.(events.MessageFinal)
	if !ok {
		t.Fatalf("expected a MessageFinal, got %T", result.event)
	}
	if message.Source != events.MessageSourceUser {
		t.Fatalf("expected user source, got %q", message.Source)
	}
	if message.Text != "Hello" {
		t.Fatalf("expected text %q, got %q", "Hello", message.Text)
	}
}

func TestDecodeEnvelopeExtractsToolInvocations(t *testing.T) {
	result, err := decodeEnvelope([]byte(`{"type":"client_tool_call","client_tool_call":{"tool_name":"lookup","tool_call_id":"call-1","parameters":{"id":1}}}`))
	if err != nil {
		t.Fatalf("expected decode to succeed, got %v", err)
	}

	if result.toolCall == nil {
		t.Fatalf("expected a tool invocation, got none")
	}
	if result.toolCall.name != "lookup" {
		t.Fatalf("expected tool name %q, got %q", "lookup", result.toolCall.name)
	}
	if result.toolCall.id != "call-1" {
		t.Fatalf("expected tool call id %q, got %q", "call-1", result.toolCall.id)
	}
	if result.toolCall.arguments != `{"id":1}` {
		t.Fatalf("expected raw arguments preserved, got %q", result.toolCall.arguments)
	}
}

func TestDecodeEnvelopeAnswersPings(t *testing.T) {
	result, err := decodeEnvelope([]byte(`{"type":"ping","ping_event":{"event_id":7}}`))
	if err != nil {
		t.Fatalf("expected decode to succeed, got %v", err)
	}

	if result.pingID == nil || *result.pingID != 7 {
		t.Fatalf("expected ping id 7, got %v", result.pingID)
	}
}

func TestDecodeEnvelopeRejectsUnknownAndMalformedPayloads(t *testing.T) {
	testCases := []struct {
		name    string
		payload string
	}{
		{name: "unknown type", payload: `{"type":"telemetry"}`},
		{name: "missing payload", payload: `{"type":"agent_response"}`},
		{name: "unknown part type", payload: `{"type":"agent_chat_response_part","text_response_part":{"type":"flush"}}`},
		{name: "not json", payload: `agent says hi`},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if _, err := decodeEnvelope([]byte(testCase.payload)); err == nil {
				t.Fatalf("expected decode to fail")
			}
		})
	}
}
