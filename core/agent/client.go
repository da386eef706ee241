// Package agent implements the remote conversational agent session
// protocol over a websocket transport. It is the only package that sees
// the wire format; everything inbound is validated here and delivered to
// the session engine as typed events.
package agent

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/charlescrowellnv/mindvalley-eve-ai/core/events"
)

const scopeName = "github.com/charlescrowellnv/mindvalley-eve-ai/core/agent"

var (
	tracer = otel.Tracer(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

// ToolHandler executes one remote-invoked tool call and returns a short
// natural-language summary for the agent's follow-on dialogue.
type ToolHandler func(ctx context.Context, arguments string) (string, error)

// SessionParams configures one agent session.
type SessionParams struct {
	AgentID string

	// OnEvent receives every validated inbound event, in arrival order.
	OnEvent func(events.Event)

	// Tools maps tool names to handlers invoked on client_tool_call.
	Tools map[string]ToolHandler
}

type Client struct {
	endpoint string
	dialer   *websocket.Dialer
}

func NewClient(endpoint string) *Client {
	return &Client{endpoint: endpoint, dialer: websocket.DefaultDialer}
}

// Start dials the agent service and begins the session handshake. The
// remote "connected" event is delivered asynchronously through OnEvent
// once initiation metadata arrives.
func (c *Client) Start(ctx context.Context, params SessionParams) (*Session, error) {
	ctx, span := tracer.Start(ctx, "start agent session")
	defer span.End()

	sessionURL, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid agent endpoint: %w", err)
	}
	queryParams := sessionURL.Query()
	queryParams.Set("agent_id", params.AgentID)
	sessionURL.RawQuery = queryParams.Encode()

	conn, _, err := c.dialer.DialContext(ctx, sessionURL.String(), nil)
	if err != nil {
		recordedErr := fmt.Errorf("failed to open agent session: %w", err)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		return nil, recordedErr
	}

	onEvent := params.OnEvent
	if onEvent == nil {
		onEvent = func(events.Event) {}
	}

	session := &Session{
		conn:    conn,
		onEvent: onEvent,
		tools:   params.Tools,
	}

	if err := session.writeJSON(initiationClientData{Type: "conversation_initiation_client_data"}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send initiation data: %w", err)
	}

	go session.readLoop(ctx)

	return session, nil
}

// Session is one live agent session handle.
type Session struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	onEvent func(events.Event)
	tools   map[string]ToolHandler

	closeOnce sync.Once
}

func (s *Session) SendUserMessage(text string) error {
	return s.writeJSON(userMessage{Type: "user_message", Text: text})
}

func (s *Session) SetVolume(level float64) error {
	return s.writeJSON(setVolume{Type: "set_volume", Volume: level})
}

func (s *Session) SendAudio(audio []byte) error {
	return s.writeJSON(userAudioChunk{UserAudioChunk: base64.StdEncoding.EncodeToString(audio)})
}

// End closes the session. The disconnected event fires exactly once, from
// whichever of End or the read loop wins.
func (s *Session) End() error {
	var err error
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		err = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
		s.writeMu.Unlock()
		s.conn.Close()
		s.onEvent(events.NewConnectionDisconnected("local teardown"))
	})
	return err
}

func (s *Session) writeJSON(message any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(message)
}

func (s *Session) readLoop(ctx context.Context) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.closeOnce.Do(func() {
				s.conn.Close()
				s.onEvent(events.NewConnectionDisconnected(err.Error()))
			})
			return
		}

		result, err := decodeEnvelope(data)
		if err != nil {
			logger.Warn("dropping unrecognized agent payload", "error", err)
			continue
		}

		switch {
		case result.pingID != nil:
			if err := s.writeJSON(pong{Type: "pong", EventID: *result.pingID}); err != nil {
				logger.Warn("failed to answer ping", "error", err)
			}
		case result.toolCall != nil:
			go s.invokeTool(ctx, *result.toolCall)
		case result.event != nil:
			s.onEvent(result.event)
		}
	}
}

func (s *Session) invokeTool(ctx context.Context, invocation toolInvocation) {
	ctx, span := tracer.Start(ctx, "handle tool invocation")
	defer span.End()
	span.AddEvent("tool invocation received", trace.WithAttributes(attribute.String("tool.name", invocation.name)))

	handler, ok := s.tools[invocation.name]
	if !ok {
		err := fmt.Errorf("tool not found: %s", invocation.name)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.sendToolResult(invocation.id, err.Error(), true)
		return
	}

	result, err := handler(ctx, invocation.arguments)
	if err != nil {
		recordedErr := fmt.Errorf("tool %q failed: %w", invocation.name, err)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		s.sendToolResult(invocation.id, recordedErr.Error(), true)
		return
	}

	s.sendToolResult(invocation.id, result, false)
}

func (s *Session) sendToolResult(id, result string, isError bool) {
	if err := s.writeJSON(clientToolResult{
		Type:       "client_tool_result",
		ToolCallID: id,
		Result:     result,
		IsError:    isError,
	}); err != nil {
		logger.Warn("failed to send tool result", "tool_call_id", id, "error", err)
	}
}
