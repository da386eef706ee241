package conversation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/charlescrowellnv/mindvalley-eve-ai/core/agent"
)

// Tool is one client-exposed handler the remote agent may invoke. The
// parameter schema is reflected from the handler's argument struct and
// shared with the agent on session start.
type Tool struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema

	execute func(arguments string) (string, error)
}

// NewTool builds a tool whose wire arguments are unmarshalled into T
// before the handler runs. The handler returns a short natural-language
// summary consumed by the agent for follow-on dialogue.
func NewTool[T any](name, description string, execute func(parameters T) (string, error)) Tool {
	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(*new(T))

	return Tool{
		Name:        name,
		Description: description,
		Schema:      schema,
		execute: func(arguments string) (string, error) {
			var parameters T
			if arguments != "" {
				if err := json.Unmarshal([]byte(arguments), &parameters); err != nil {
					return "", fmt.Errorf("failed to parse arguments for tool %q: %w", name, err)
				}
			}
			return execute(parameters)
		},
	}
}

// Execute runs the tool against raw wire arguments.
func (t Tool) Execute(arguments string) (string, error) {
	return t.execute(arguments)
}

// toolHandlers wraps the registered tools into the name-to-handler map
// the agent session consumes. Each wrapper calls the tracker's
// begin/complete/fail exactly once per invocation; a handler error never
// propagates past the tool, it becomes the execution's terminal error
// state and an apologetic summary for the agent.
func (s *Session) toolHandlers() map[string]agent.ToolHandler {
	handlers := make(map[string]agent.ToolHandler, len(s.tools))
	for _, tool := range s.tools {
		handlers[tool.Name] = s.wrapTool(tool)
	}
	return handlers
}

func (s *Session) wrapTool(tool Tool) agent.ToolHandler {
	return func(ctx context.Context, arguments string) (string, error) {
		ctx, span := tracer.Start(ctx, "execute tool")
		defer span.End()
		span.SetAttributes(attribute.String("tool.name", tool.Name))

		parameters := map[string]any{}
		if arguments != "" {
			if err := json.Unmarshal([]byte(arguments), &parameters); err != nil {
				logger.Warn("tool arguments are not a JSON object", "tool", tool.Name, "error", err)
			}
		}

		id := s.tracker.Begin(tool.Name, parameters, arguments)
		s.tracker.MarkExecuting(id)

		response, err := tool.Execute(arguments)
		if err != nil {
			err = fmt.Errorf("failed to execute tool %q: %w", tool.Name, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.tracker.Fail(id, err.Error())
			return fmt.Sprintf("Sorry, the %s tool failed: %s", tool.Name, err.Error()), nil
		}

		s.tracker.Complete(id, response)
		return response, nil
	}
}
