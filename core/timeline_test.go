package conversation

import (
	"testing"
	"time"
)

func fixedClock(start time.Time, step time.Duration) func() time.Time {
	current := start
	return func() time.Time {
		now := current
		current = current.Add(step)
		return now
	}
}

func TestStreamedDeltasAccumulateIntoOneMessage(t *testing.T) {
	tl := newTimeline()

	tl.startAssistantStream()
	tl.appendAssistantDelta("Hi ")
	tl.appendAssistantDelta("there")

	messages := tl.snapshotMessages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if messages[0].Content != "Hi there" {
		t.Fatalf("expected accumulated content %q, got %q", "Hi there", messages[0].Content)
	}
	if !messages[0].IsOpen() {
		t.Fatal("expected streaming message to still be open")
	}
}

func TestAuthoritativeFinalOverwritesAccumulatedDeltas(t *testing.T) {
	tl := newTimeline()

	tl.startAssistantStream()
	tl.appendAssistantDelta("Hi th")
	tl.appendAssistantDelta("ere")
	tl.finalizeAssistant("Hi there!")

	messages := tl.snapshotMessages()
	if len(messages) != 1 {
		t.Fatalf("expected final to close the open message, got %d messages", len(messages))
	}
	if messages[0].Content != "Hi there!" {
		t.Fatalf("expected final content to win, got %q", messages[0].Content)
	}
	if messages[0].IsOpen() {
		t.Fatal("expected finalized message to be closed")
	}
}

func TestDeltaWithNoOpenMessageIsDropped(t *testing.T) {
	tl := newTimeline()

	tl.appendAssistantDelta("orphan")

	if messages := tl.snapshotMessages(); len(messages) != 0 {
		t.Fatalf("expected orphan delta to be dropped, got %d messages", len(messages))
	}
}

func TestFinalWithNoOpenMessageAppendsClosedMessage(t *testing.T) {
	tl := newTimeline()

	tl.finalizeAssistant("Hello!")

	messages := tl.snapshotMessages()
	if len(messages) != 1 {
		t.Fatalf("expected final without open message to append, got %d messages", len(messages))
	}
	if messages[0].IsOpen() {
		t.Fatal("expected appended final to be closed")
	}
	if messages[0].Content != "Hello!" {
		t.Fatalf("expected appended final content %q, got %q", "Hello!", messages[0].Content)
	}
}

func TestUserPlaceholderIsUpdatedInPlace(t *testing.T) {
	tl := newTimeline()

	tl.submitUserPlaceholder("helo")
	tl.startAssistantStream()
	tl.reconcileUserEcho("hello")

	messages := tl.snapshotMessages()
	if len(messages) != 2 {
		t.Fatalf("expected placeholder plus streaming message, got %d messages", len(messages))
	}
	if messages[0].Role != MessageRoleUser {
		t.Fatalf("expected placeholder to keep its position, got role %q first", messages[0].Role)
	}
	if messages[0].Content != "hello" {
		t.Fatalf("expected echo to update placeholder in place, got %q", messages[0].Content)
	}
}

func TestUserEchoWithoutPlaceholderSortsBeforeOpenStream(t *testing.T) {
	tl := newTimeline()
	tl.now = fixedClock(time.Unix(0, 0), time.Second)

	tl.startAssistantStream()
	tl.reconcileUserEcho("what is mindfulness?")

	messages := tl.snapshotMessages()
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}

	user := messages[1]
	assistant := messages[0]
	if user.Role != MessageRoleUser {
		t.Fatalf("expected appended echo to be a user message, got %q", user.Role)
	}
	if !user.Timestamp.Before(assistant.Timestamp) {
		t.Fatalf("expected echo timestamp %v to precede stream start %v", user.Timestamp, assistant.Timestamp)
	}
	if got := assistant.Timestamp.Sub(user.Timestamp); got != time.Millisecond {
		t.Fatalf("expected echo to be backdated exactly 1ms, got %v", got)
	}
}

func TestMergeOrdersByTimestampWithMessagesFirstOnTies(t *testing.T) {
	tl := newTimeline()
	base := time.Unix(1000, 0)

	tl.mu.Lock()
	tl.messages = []ChatMessage{
		{Role: MessageRoleUser, Content: "question", Timestamp: base.Add(100 * time.Millisecond)},
		{Role: MessageRoleAssistant, Content: "answer", Timestamp: base.Add(150 * time.Millisecond)},
	}
	tl.mu.Unlock()

	executions := []ToolExecution{
		{ID: "t1", ToolName: "get_program_recommendations", Timestamp: base.Add(50 * time.Millisecond)},
	}

	items := tl.merge(executions)
	if len(items) != 3 {
		t.Fatalf("expected 3 timeline items, got %d", len(items))
	}
	if items[0].Tool == nil || items[0].Tool.ID != "t1" {
		t.Fatalf("expected tool execution first, got %+v", items[0])
	}
	if items[1].Message == nil || items[1].Message.Role != MessageRoleUser {
		t.Fatalf("expected user message second, got %+v", items[1])
	}
	if items[2].Message == nil || items[2].Message.Role != MessageRoleAssistant {
		t.Fatalf("expected assistant message third, got %+v", items[2])
	}
}

func TestMergeKeepsMessageBeforeToolOnEqualTimestamps(t *testing.T) {
	tl := newTimeline()
	at := time.Unix(2000, 0)

	tl.mu.Lock()
	tl.messages = []ChatMessage{{Role: MessageRoleUser, Content: "hi", Timestamp: at}}
	tl.mu.Unlock()

	items := tl.merge([]ToolExecution{{ID: "t1", Timestamp: at}})
	if items[0].Message == nil {
		t.Fatal("expected message before tool execution on equal timestamps")
	}
	if items[1].Tool == nil {
		t.Fatal("expected tool execution after message on equal timestamps")
	}
}

func TestClearResetsStreamAndPlaceholderState(t *testing.T) {
	tl := newTimeline()

	tl.submitUserPlaceholder("hi")
	tl.startAssistantStream()
	tl.clear()

	if messages := tl.snapshotMessages(); len(messages) != 0 {
		t.Fatalf("expected empty timeline after clear, got %d messages", len(messages))
	}

	// A stale identity must not resurrect after clear.
	tl.appendAssistantDelta("stale")
	tl.reconcileUserEcho("hello")

	messages := tl.snapshotMessages()
	if len(messages) != 1 {
		t.Fatalf("expected only the appended echo, got %d messages", len(messages))
	}
	if messages[0].Role != MessageRoleUser {
		t.Fatalf("expected echo message, got role %q", messages[0].Role)
	}
}
