package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/charlescrowellnv/mindvalley-eve-ai/core/agent"
	"github.com/charlescrowellnv/mindvalley-eve-ai/core/audio"
	"github.com/charlescrowellnv/mindvalley-eve-ai/core/events"
	"github.com/charlescrowellnv/mindvalley-eve-ai/core/speechtotext"
)

type fakeAgentSession struct {
	mu       sync.Mutex
	messages []string
	volumes  []float64
	audio    [][]byte
	ended    bool

	onEvent func(events.Event)
	endOnce sync.Once
}

func (s *fakeAgentSession) SendUserMessage(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, text)
	return nil
}

func (s *fakeAgentSession) SetVolume(level float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volumes = append(s.volumes, level)
	return nil
}

func (s *fakeAgentSession) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	owned := make([]byte, len(chunk))
	copy(owned, chunk)
	s.audio = append(s.audio, owned)
	return nil
}

func (s *fakeAgentSession) End() error {
	s.mu.Lock()
	s.ended = true
	s.mu.Unlock()

	s.endOnce.Do(func() {
		if s.onEvent != nil {
			s.onEvent(events.NewConnectionDisconnected("client closed"))
		}
	})
	return nil
}

type fakeAgentClient struct {
	session *fakeAgentSession
	err     error
}

func (c *fakeAgentClient) Start(_ context.Context, params agent.SessionParams) (AgentSession, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.session.onEvent = params.OnEvent
	// The remote acknowledges the session asynchronously in production;
	// delivering it inline keeps tests deterministic.
	params.OnEvent(events.NewConnectionConnected("session-1"))
	return c.session, nil
}

type fakeCaptureDevice struct {
	mu        sync.Mutex
	capturing bool
	closed    bool
	onAudio   func(audio []byte)
}

func (d *fakeCaptureDevice) StartCapture(_ context.Context, onAudio func(audio []byte)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.capturing = true
	d.onAudio = onAudio
	return nil
}

func (d *fakeCaptureDevice) StopCapture() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.capturing = false
	return nil
}

func (d *fakeCaptureDevice) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.capturing = false
}

func (d *fakeCaptureDevice) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}

func (d *fakeCaptureDevice) emit(frame []byte) {
	d.mu.Lock()
	onAudio := d.onAudio
	capturing := d.capturing
	d.mu.Unlock()
	if capturing && onAudio != nil {
		onAudio(frame)
	}
}

func newConnectedSession(t *testing.T, opts ...SessionOption) (*Session, *fakeAgentSession) {
	t.Helper()

	agentSession := &fakeAgentSession{}
	opts = append([]SessionOption{WithAgentClient(&fakeAgentClient{session: agentSession})}, opts...)
	s := NewSession(opts...)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}
	if got := s.State(); got != SessionStateConnected {
		t.Fatalf("expected connected state, got %q", got)
	}
	return s, agentSession
}

func TestSubmitWhileDisconnectedIsANoOp(t *testing.T) {
	s := NewSession()

	s.SubmitText("hello?")

	if got := len(s.Timeline()); got != 0 {
		t.Fatalf("expected no timeline entries while disconnected, got %d", got)
	}
}

func TestSubmitInsertsPlaceholderAndSendsMessage(t *testing.T) {
	s, agentSession := newConnectedSession(t)

	s.SubmitText("  what is lucid dreaming?  ")

	items := s.Timeline()
	if len(items) != 1 {
		t.Fatalf("expected 1 timeline item, got %d", len(items))
	}
	if items[0].Message == nil || items[0].Message.Content != "what is lucid dreaming?" {
		t.Fatalf("expected trimmed placeholder, got %+v", items[0])
	}
	if len(agentSession.messages) != 1 || agentSession.messages[0] != "what is lucid dreaming?" {
		t.Fatalf("expected message sent to agent, got %v", agentSession.messages)
	}
}

func TestConnectClearsPreviousConversation(t *testing.T) {
	s, _ := newConnectedSession(t)

	s.SubmitText("first session message")
	s.Disconnect()

	if got := s.State(); got != SessionStateDisconnected {
		t.Fatalf("expected disconnected state, got %q", got)
	}

	agentSession := &fakeAgentSession{}
	s.client = &fakeAgentClient{session: agentSession}
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("expected reconnect to succeed, got %v", err)
	}

	if got := len(s.Timeline()); got != 0 {
		t.Fatalf("expected fresh session to start with empty timeline, got %d items", got)
	}
}

func TestConnectInVoiceModeWithFailingMicrophoneTearsDown(t *testing.T) {
	agentSession := &fakeAgentSession{}
	s := NewSession(
		WithAgentClient(&fakeAgentClient{session: agentSession}),
		WithInputMode(InputModeVoice),
		WithCaptureDeviceFactory(func() (CaptureDevice, error) {
			return nil, errors.New("device busy")
		}),
	)

	if err := s.Connect(context.Background()); err == nil {
		t.Fatal("expected connect to fail when microphone is unavailable")
	}
	if got := s.State(); got != SessionStateDisconnected {
		t.Fatalf("expected teardown to disconnected, got %q", got)
	}
	if s.Error() == "" {
		t.Fatal("expected microphone failure to surface as session error")
	}
	if !agentSession.ended {
		t.Fatal("expected agent session to be ended on microphone failure")
	}
}

func TestDisconnectInVoiceModeReleasesDeviceAndForcesText(t *testing.T) {
	device := &fakeCaptureDevice{}
	s, _ := newConnectedSession(t,
		WithInputMode(InputModeVoice),
		WithCaptureDeviceFactory(func() (CaptureDevice, error) { return device, nil }),
	)

	if !device.capturing {
		t.Fatal("expected voice mode connect to start capture")
	}

	s.Disconnect()

	if !device.closed {
		t.Fatal("expected disconnect to release the capture device")
	}
	if got := s.InputMode(); got != InputModeText {
		t.Fatalf("expected voice mode to fall back to text on disconnect, got %q", got)
	}
	if s.IsMuted() {
		t.Fatal("expected mute gate reset on disconnect")
	}
}

func TestVoiceModeForwardsCapturedFramesToAgent(t *testing.T) {
	device := &fakeCaptureDevice{}
	s, agentSession := newConnectedSession(t,
		WithInputMode(InputModeVoice),
		WithCaptureDeviceFactory(func() (CaptureDevice, error) { return device, nil }),
	)

	device.emit([]byte{1, 2, 3})

	if len(agentSession.audio) != 1 {
		t.Fatalf("expected 1 forwarded frame, got %d", len(agentSession.audio))
	}

	s.ToggleMute()
	device.emit([]byte{4, 5, 6})

	if len(agentSession.audio) != 1 {
		t.Fatalf("expected muted frame to be dropped, got %d frames", len(agentSession.audio))
	}
}

func TestToggleVoiceVolumeSetsAgentVolume(t *testing.T) {
	s, agentSession := newConnectedSession(t)

	if muted := s.ToggleVoiceVolume(); !muted {
		t.Fatal("expected first toggle to mute the agent voice")
	}
	if muted := s.ToggleVoiceVolume(); muted {
		t.Fatal("expected second toggle to unmute the agent voice")
	}

	expected := []float64{0.0, 1.0}
	if len(agentSession.volumes) != len(expected) {
		t.Fatalf("expected %d volume updates, got %d", len(expected), len(agentSession.volumes))
	}
	for i, volume := range expected {
		if agentSession.volumes[i] != volume {
			t.Fatalf("expected volume update %d to be %v, got %v", i, volume, agentSession.volumes[i])
		}
	}
}

func TestCycleInputModeOrder(t *testing.T) {
	s := NewSession()
	ctx := context.Background()

	expected := []InputMode{InputModePushToTalk, InputModeVoice, InputModeText}
	for i, mode := range expected {
		if got := s.CycleInputMode(ctx); got != mode {
			t.Fatalf("expected cycle step %d to yield %q, got %q", i, mode, got)
		}
	}
}

func TestEnteringVoiceModeWithoutMicrophoneFallsBackToText(t *testing.T) {
	s, _ := newConnectedSession(t, WithCaptureDeviceFactory(func() (CaptureDevice, error) {
		return nil, errors.New("device busy")
	}))

	ctx := context.Background()
	s.CycleInputMode(ctx) // push-to-talk
	if got := s.CycleInputMode(ctx); got != InputModeText {
		t.Fatalf("expected fallback to text on microphone failure, got %q", got)
	}
	if s.Error() == "" {
		t.Fatal("expected microphone failure to surface as session error")
	}
}

func TestSessionErrorIsNonFatalAndDismissible(t *testing.T) {
	s, agentSession := newConnectedSession(t)

	agentSession.onEvent(events.NewSessionErrorReported("agent overloaded"))

	if got := s.State(); got != SessionStateConnected {
		t.Fatalf("expected session to stay connected on error, got %q", got)
	}
	if got := s.Error(); got != "agent overloaded" {
		t.Fatalf("expected error banner, got %q", got)
	}

	s.ClearError()
	if got := s.Error(); got != "" {
		t.Fatalf("expected dismissed error banner, got %q", got)
	}
}

func TestStreamedReplyReconcilesIntoTimeline(t *testing.T) {
	s, agentSession := newConnectedSession(t)

	s.SubmitText("hi")
	agentSession.onEvent(events.NewMessageFinal(events.MessageSourceUser, "hi"))
	agentSession.onEvent(events.NewAssistantTextStarted())
	agentSession.onEvent(events.NewAssistantTextDelta("Hi th"))
	agentSession.onEvent(events.NewAssistantTextDelta("ere"))
	agentSession.onEvent(events.NewAssistantTextStopped())
	agentSession.onEvent(events.NewMessageFinal(events.MessageSourceAgent, "Hi there!"))

	items := s.Timeline()
	if len(items) != 2 {
		t.Fatalf("expected user and assistant messages, got %d items", len(items))
	}
	if items[0].Message.Role != MessageRoleUser || items[0].Message.Content != "hi" {
		t.Fatalf("expected reconciled user echo first, got %+v", items[0].Message)
	}
	if items[1].Message.Role != MessageRoleAssistant || items[1].Message.Content != "Hi there!" {
		t.Fatalf("expected authoritative assistant final, got %+v", items[1].Message)
	}
}

type fakeSpeechToText struct {
	mu        sync.Mutex
	encodings []audio.EncodingInfo
}

func (f *fakeSpeechToText) Transcribe(_ context.Context, opts ...speechtotext.TranscriptionOption) error {
	options := speechtotext.TranscriptionOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.encodings = append(f.encodings, options.EncodingInfo)
	return nil
}

func (f *fakeSpeechToText) SendAudio(audio []byte) error { return nil }

func (f *fakeSpeechToText) Close(_ context.Context) error { return nil }

type narrowbandCaptureDevice struct {
	fakeCaptureDevice
}

func (d *narrowbandCaptureDevice) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{SampleRate: 16000, Format: audio.EncodingLinear16}
}

func TestBeginPushToTalkPassesCaptureEncodingToTranscriber(t *testing.T) {
	device := &narrowbandCaptureDevice{}
	stt := &fakeSpeechToText{}
	s, _ := newConnectedSession(t,
		WithInputMode(InputModePushToTalk),
		WithCaptureDeviceFactory(func() (CaptureDevice, error) { return device, nil }),
		WithSpeechToTextClient(stt),
	)

	ctx := context.Background()
	if err := s.BeginPushToTalk(ctx); err != nil {
		t.Fatalf("expected push-to-talk to start, got %v", err)
	}
	if _, err := s.EndPushToTalk(ctx); err != nil {
		t.Fatalf("expected push-to-talk to end, got %v", err)
	}

	if len(stt.encodings) != 1 {
		t.Fatalf("expected 1 transcription stream, got %d", len(stt.encodings))
	}
	if got := stt.encodings[0]; got != device.EncodingInfo() {
		t.Fatalf("expected device encoding %+v, got %+v", device.EncodingInfo(), got)
	}
}

func TestPushToTalkBeginEndIsSafeUnderConcurrency(t *testing.T) {
	device := &fakeCaptureDevice{}
	stt := &fakeSpeechToText{}
	s, _ := newConnectedSession(t,
		WithInputMode(InputModePushToTalk),
		WithCaptureDeviceFactory(func() (CaptureDevice, error) { return device, nil }),
		WithSpeechToTextClient(stt),
	)

	// Begin reads the capture handle while End releases it; interleaving
	// the two from several goroutines must stay race free.
	ctx := context.Background()
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 25 {
				_ = s.BeginPushToTalk(ctx)
				_, _ = s.EndPushToTalk(ctx)
			}
		}()
	}
	wg.Wait()

	if got := s.State(); got != SessionStateConnected {
		t.Fatalf("expected session to stay connected, got %q", got)
	}
}

func TestRemoteDisconnectRoutesThroughSharedCleanup(t *testing.T) {
	device := &fakeCaptureDevice{}
	s, agentSession := newConnectedSession(t,
		WithInputMode(InputModeVoice),
		WithCaptureDeviceFactory(func() (CaptureDevice, error) { return device, nil }),
	)

	// Remote closure, not a local Disconnect call.
	agentSession.onEvent(events.NewConnectionDisconnected("server closed"))

	if got := s.State(); got != SessionStateDisconnected {
		t.Fatalf("expected disconnected state, got %q", got)
	}
	if !device.closed {
		t.Fatal("expected remote disconnect to release the capture device")
	}
	if got := s.InputMode(); got != InputModeText {
		t.Fatalf("expected voice mode to fall back to text, got %q", got)
	}
}
