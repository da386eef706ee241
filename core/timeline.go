package conversation

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MessageRole describes who a chat message came from.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// ChatMessage is one entry in the conversation. Content is mutable while
// the message is streaming and immutable once closed.
type ChatMessage struct {
	Role      MessageRole
	Content   string
	Timestamp time.Time

	// streamID tracks a still-streaming assistant message or a pending
	// user placeholder. Cleared once the message closes.
	streamID string
	open     bool
}

// IsOpen reports whether the message is still receiving delta appends.
func (m ChatMessage) IsOpen() bool { return m.open }

// TimelineItem is a tagged union over a chat message and a tool
// execution, ordered by timestamp. Exactly one field is set.
type TimelineItem struct {
	Message *ChatMessage
	Tool    *ToolExecution
}

func (i TimelineItem) Timestamp() time.Time {
	if i.Message != nil {
		return i.Message.Timestamp
	}
	return i.Tool.Timestamp
}

// timeline reconciles user text, streamed assistant deltas, and finalized
// messages into one ordered sequence. Open-message and placeholder
// resolution is identity-keyed, not positional: messages live in an arena
// slice and the index maps stream identities to arena offsets.
type timeline struct {
	mu sync.Mutex

	messages []ChatMessage
	index    map[string]int

	// openStreamID identifies the single assistant message currently
	// receiving deltas. At most one is open at a time.
	openStreamID      string
	openStreamStarted time.Time

	// pendingUserID identifies the optimistic placeholder inserted on
	// local submission, awaiting the agent's echo.
	pendingUserID string

	now func() time.Time
}

func newTimeline() *timeline {
	return &timeline{
		index: map[string]int{},
		now:   time.Now,
	}
}

// startAssistantStream opens a new, empty assistant message with a fresh
// streaming identity. Any previously open message is left as-is; the
// remote contract guarantees a final closes it first, and if it does not,
// the stale identity simply stops matching future deltas.
func (t *timeline) startAssistantStream() {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := uuid.NewString()
	now := t.now()
	t.messages = append(t.messages, ChatMessage{
		Role:      MessageRoleAssistant,
		Timestamp: now,
		streamID:  id,
		open:      true,
	})
	t.index[id] = len(t.messages) - 1
	t.openStreamID = id
	t.openStreamStarted = now
}

// appendAssistantDelta appends text to the currently open assistant
// message. Deltas that arrive with no open message are dropped rather
// than misattributed.
func (t *timeline) appendAssistantDelta(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.openStreamID == "" {
		logger.Debug("dropping assistant delta with no open message")
		return
	}

	i, ok := t.index[t.openStreamID]
	if !ok {
		logger.Debug("dropping assistant delta with unknown stream identity")
		return
	}

	t.messages[i].Content += text
}

// finalizeAssistant closes the open assistant message with the
// authoritative final text, which always wins over accumulated deltas.
// With no open message the final is appended as a new closed message
// instead of being lost.
func (t *timeline) finalizeAssistant(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.openStreamID != "" {
		if i, ok := t.index[t.openStreamID]; ok {
			t.messages[i].Content = text
			t.messages[i].open = false
			t.messages[i].streamID = ""
			delete(t.index, t.openStreamID)
			t.openStreamID = ""
			t.openStreamStarted = time.Time{}
			return
		}
	}

	// Fallback path: a final with no matching open message appends
	// rather than dropping. This can mask duplicate-message bugs
	// upstream, so tests watch it explicitly.
	t.openStreamID = ""
	t.openStreamStarted = time.Time{}
	t.messages = append(t.messages, ChatMessage{
		Role:      MessageRoleAssistant,
		Content:   text,
		Timestamp: t.now(),
	})
}

// submitUserPlaceholder optimistically inserts a user message on local
// submission, to be reconciled against the agent's asynchronous echo.
func (t *timeline) submitUserPlaceholder(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := uuid.NewString()
	t.messages = append(t.messages, ChatMessage{
		Role:      MessageRoleUser,
		Content:   text,
		Timestamp: t.now(),
		streamID:  id,
	})
	t.index[id] = len(t.messages) - 1
	t.pendingUserID = id
}

// reconcileUserEcho applies the agent's authoritative echo of a user
// utterance. A still-pending placeholder is updated in place, keeping its
// original timeline position; otherwise the echo is appended with a
// timestamp one millisecond before any concurrently streaming assistant
// message, so the user's turn sorts before the reply it triggered even
// under clock skew.
func (t *timeline) reconcileUserEcho(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pendingUserID != "" {
		if i, ok := t.index[t.pendingUserID]; ok {
			t.messages[i].Content = text
			t.messages[i].streamID = ""
			delete(t.index, t.pendingUserID)
			t.pendingUserID = ""
			return
		}
		t.pendingUserID = ""
	}

	timestamp := t.now()
	if !t.openStreamStarted.IsZero() {
		timestamp = t.openStreamStarted.Add(-time.Millisecond)
	}

	t.messages = append(t.messages, ChatMessage{
		Role:      MessageRoleUser,
		Content:   text,
		Timestamp: timestamp,
	})
}

func (t *timeline) clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.messages = nil
	t.index = map[string]int{}
	t.openStreamID = ""
	t.openStreamStarted = time.Time{}
	t.pendingUserID = ""
}

// snapshotMessages returns a point-in-time copy of the message list.
func (t *timeline) snapshotMessages() []ChatMessage {
	t.mu.Lock()
	defer t.mu.Unlock()

	messages := make([]ChatMessage, len(t.messages))
	copy(messages, t.messages)
	return messages
}

// merge produces the derived, display-ready timeline: messages and tool
// executions concatenated and stable-sorted by timestamp ascending. Ties
// keep source-list order with messages before tool executions, which is
// deterministic across passes. The result is produced fresh every call.
func (t *timeline) merge(executions []ToolExecution) []TimelineItem {
	messages := t.snapshotMessages()

	items := make([]TimelineItem, 0, len(messages)+len(executions))
	for i := range messages {
		items = append(items, TimelineItem{Message: &messages[i]})
	}
	for i := range executions {
		items = append(items, TimelineItem{Tool: &executions[i]})
	}

	sort.SliceStable(items, func(a, b int) bool {
		return items[a].Timestamp().Before(items[b].Timestamp())
	})
	return items
}
