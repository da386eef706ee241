package conversation

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"

	"github.com/charlescrowellnv/mindvalley-eve-ai/core/events"
)

// ToolExecutionState is the lifecycle state of one tool execution. The
// progression is strictly linear: pending, executing, then exactly one of
// completed or error. No state is reachable twice.
type ToolExecutionState string

const (
	ToolStatePending   ToolExecutionState = "pending"
	ToolStateExecuting ToolExecutionState = "executing"
	ToolStateCompleted ToolExecutionState = "completed"
	ToolStateError     ToolExecutionState = "error"
)

func (s ToolExecutionState) isTerminal() bool {
	return s == ToolStateCompleted || s == ToolStateError
}

// ToolExecution records one remote-invoked side-effecting call.
// Parameters are immutable once recorded.
type ToolExecution struct {
	ID         string
	ToolName   string
	Parameters map[string]any
	State      ToolExecutionState
	Result     any
	Error      string
	Timestamp  time.Time
}

// toolTracker owns every ToolExecution record. The timeline reconciler
// references executions through snapshots but never mutates them.
type toolTracker struct {
	mu sync.Mutex

	executions []ToolExecution
	index      map[string]int

	emitEvent eventEmitter
	now       func() time.Time
}

func newToolTracker() *toolTracker {
	return &toolTracker{
		index:     map[string]int{},
		emitEvent: noopEventEmitter,
		now:       time.Now,
	}
}

func (t *toolTracker) SetEventEmitter(emitEvent eventEmitter) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if emitEvent != nil {
		t.emitEvent = emitEvent
	} else {
		t.emitEvent = noopEventEmitter
	}
}

// Begin records a new execution in state pending and returns its id.
func (t *toolTracker) Begin(name string, parameters map[string]any, rawArguments string) string {
	t.mu.Lock()

	id := uuid.NewString()
	t.executions = append(t.executions, ToolExecution{
		ID:         id,
		ToolName:   name,
		Parameters: parameters,
		State:      ToolStatePending,
		Timestamp:  t.now(),
	})
	t.index[id] = len(t.executions) - 1
	emitEvent := t.emitEvent
	t.mu.Unlock()

	emitEvent(events.NewToolCallStarted(id, name, rawArguments))
	return id
}

// MarkExecuting advances a pending execution to executing. Unknown or
// already advanced ids are ignored.
func (t *toolTracker) MarkExecuting(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i, ok := t.index[id]
	if !ok || t.executions[i].State != ToolStatePending {
		return
	}
	t.executions[i].State = ToolStateExecuting
}

// Complete transitions an execution to completed and attaches the result.
// Unknown or already terminal ids are no-ops with a logged warning.
func (t *toolTracker) Complete(id string, result any) {
	t.mu.Lock()

	i, ok := t.index[id]
	if !ok {
		t.mu.Unlock()
		logger.Warn("ignoring completion for unknown tool execution", "id", id)
		return
	}
	if state := t.executions[i].State; state.isTerminal() {
		t.mu.Unlock()
		logger.Warn("ignoring completion for terminal tool execution", "id", id, "state", string(state))
		return
	}

	t.executions[i].State = ToolStateCompleted
	t.executions[i].Result = result
	name := t.executions[i].ToolName
	emitEvent := t.emitEvent
	t.mu.Unlock()

	emitEvent(events.NewToolCallCompleted(id, name, ""))
}

// Fail transitions an execution to error with a message, analogously to
// Complete.
func (t *toolTracker) Fail(id string, errMessage string) {
	t.mu.Lock()

	i, ok := t.index[id]
	if !ok {
		t.mu.Unlock()
		logger.Warn("ignoring failure for unknown tool execution", "id", id)
		return
	}
	if state := t.executions[i].State; state.isTerminal() {
		t.mu.Unlock()
		logger.Warn("ignoring failure for terminal tool execution", "id", id, "state", string(state))
		return
	}

	t.executions[i].State = ToolStateError
	t.executions[i].Error = errMessage
	name := t.executions[i].ToolName
	emitEvent := t.emitEvent
	t.mu.Unlock()

	emitEvent(events.NewToolCallFailed(id, name, errMessage))
}

// Clear drops every record. Invoked only when a new session starts;
// completions for abandoned executions arriving afterwards fall into the
// unknown-id no-op path.
func (t *toolTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.executions = nil
	t.index = map[string]int{}
}

// Executions returns a deep-copied point-in-time snapshot. Results may
// hold nested structures from tool handlers, so a shallow copy is not
// enough to keep consumers read-only.
func (t *toolTracker) Executions() []ToolExecution {
	t.mu.Lock()
	defer t.mu.Unlock()

	executions := []ToolExecution{}
	if err := copier.CopyWithOption(&executions, &t.executions, copier.Option{DeepCopy: true}); err != nil {
		logger.Warn("failed to deep-copy tool executions", "error", err)
		executions = make([]ToolExecution, len(t.executions))
		copy(executions, t.executions)
	}
	return executions
}
