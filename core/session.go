package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/codes"

	"github.com/charlescrowellnv/mindvalley-eve-ai/core/agent"
	"github.com/charlescrowellnv/mindvalley-eve-ai/core/events"
	"github.com/charlescrowellnv/mindvalley-eve-ai/core/speechtotext"
)

// SessionState is the connection lifecycle state.
type SessionState string

const (
	SessionStateDisconnected  SessionState = "disconnected"
	SessionStateConnecting    SessionState = "connecting"
	SessionStateConnected     SessionState = "connected"
	SessionStateDisconnecting SessionState = "disconnecting"
)

// InputMode selects how user turns are produced.
type InputMode string

const (
	InputModeText       InputMode = "text"
	InputModePushToTalk InputMode = "push-to-talk"
	InputModeVoice      InputMode = "voice"
)

var (
	ErrAlreadyConnected = errors.New("session is already connected or connecting")
	ErrNoAgentClient    = errors.New("no agent client configured")
	ErrNoCaptureDevice  = errors.New("no capture device configured")
	ErrNoSpeechStream   = errors.New("no speech endpoint configured")
	ErrNoSpeechToText   = errors.New("no speech-to-text client configured")
)

// Session is the conversation engine: it owns the agent connection, the
// reconciled timeline, tool execution tracking, microphone capture, and
// utterance playback. All exported methods are safe for concurrent use.
type Session struct {
	mu sync.Mutex

	state      SessionState
	inputMode  InputMode
	voiceMuted bool
	// errorMessage is the currently displayed, dismissible error banner.
	// Session errors are non-fatal and never tear the connection down.
	errorMessage string

	agentID      string
	client       AgentClient
	agentSession AgentSession

	timeline *timeline
	tracker  *toolTracker
	tools    []Tool

	input          *audioInput
	captureFactory func() (CaptureDevice, error)

	speechToText SpeechToText
	pttActive    bool
	transcriptMu sync.Mutex
	transcript   []string

	speech            *speechStream
	playbackSink      PlaybackSink
	playbackCallbacks playbackCallbacks
	playback          *playbackBuffer
	playbackCancel    context.CancelFunc

	audioTap  func(audio []byte)
	emitEvent eventEmitter
}

func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		state:     SessionStateDisconnected,
		inputMode: InputModeText,
		timeline:  newTimeline(),
		tracker:   newToolTracker(),
		emitEvent: noopEventEmitter,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.tracker.SetEventEmitter(func(event events.Event) { s.emitEvent(event) })

	return s
}

// Connect opens an agent session. In voice mode the microphone is
// acquired as part of connecting; if acquisition fails the session is
// torn back down to disconnected with the failure surfaced as a session
// error rather than a half-connected state.
func (s *Session) Connect(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "connect session")
	defer span.End()

	s.mu.Lock()
	if s.state != SessionStateDisconnected {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.state = SessionStateConnecting
	s.errorMessage = ""
	client := s.client
	agentID := s.agentID
	s.mu.Unlock()

	s.emitEvent(events.NewConnectionConnecting())

	if client == nil {
		s.mu.Lock()
		s.state = SessionStateDisconnected
		s.mu.Unlock()
		span.RecordError(ErrNoAgentClient)
		return ErrNoAgentClient
	}

	agentSession, err := client.Start(ctx, agent.SessionParams{
		AgentID: agentID,
		OnEvent: s.respondToEvent,
		Tools:   s.toolHandlers(),
	})
	if err != nil {
		recordedErr := fmt.Errorf("failed to connect: %w", err)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())

		s.mu.Lock()
		s.state = SessionStateDisconnected
		s.mu.Unlock()
		s.setError(recordedErr.Error())
		return recordedErr
	}

	s.mu.Lock()
	s.agentSession = agentSession
	mode := s.inputMode
	s.mu.Unlock()

	if mode == InputModeVoice {
		if err := s.acquireCapture(ctx); err != nil {
			recordedErr := fmt.Errorf("failed to acquire microphone: %w", err)
			span.RecordError(recordedErr)
			span.SetStatus(codes.Error, recordedErr.Error())

			s.Disconnect()
			s.setError(recordedErr.Error())
			return recordedErr
		}
	}

	return nil
}

// Disconnect ends the agent session. Cleanup happens in the shared
// disconnected handler, which also runs when the remote side closes.
func (s *Session) Disconnect() {
	s.mu.Lock()
	agentSession := s.agentSession
	s.agentSession = nil
	if s.state == SessionStateConnected || s.state == SessionStateConnecting {
		s.state = SessionStateDisconnecting
	}
	s.mu.Unlock()

	if agentSession != nil {
		// End emits the disconnected event exactly once, which routes
		// back through handleDisconnected.
		_ = agentSession.End()
		return
	}

	s.handleDisconnected()
}

// handleConnected applies the remote session-start acknowledgement. A
// new session always starts from an empty timeline.
func (s *Session) handleConnected() {
	s.mu.Lock()
	s.state = SessionStateConnected
	s.mu.Unlock()

	s.timeline.clear()
	s.tracker.Clear()
}

// handleDisconnected resets everything that only makes sense while
// connected. The microphone is released unconditionally, and voice mode
// falls back to text so a later reconnect does not grab the microphone
// the user no longer expects to be open.
func (s *Session) handleDisconnected() {
	s.mu.Lock()
	s.state = SessionStateDisconnected
	s.agentSession = nil
	s.voiceMuted = false
	s.pttActive = false
	if s.inputMode == InputModeVoice {
		s.inputMode = InputModeText
	}
	s.mu.Unlock()

	s.releaseCapture()
	s.StopPlayback()
}

// State returns the current connection lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SubmitText sends one user turn. Submissions while not connected are
// dropped. The text is inserted optimistically as a placeholder that the
// agent's echo later reconciles.
func (s *Session) SubmitText(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	s.mu.Lock()
	connected := s.state == SessionStateConnected
	agentSession := s.agentSession
	s.mu.Unlock()

	if !connected || agentSession == nil {
		return
	}

	s.timeline.submitUserPlaceholder(text)

	if err := agentSession.SendUserMessage(text); err != nil {
		logger.Warn("failed to send user message", "error", err)
		s.setError(fmt.Sprintf("failed to send message: %s", err.Error()))
	}
}

// CycleInputMode advances text to push-to-talk to voice and back to
// text. Entering voice while connected acquires the microphone; a
// failure surfaces as a session error and the mode falls back to text.
// Leaving voice releases the microphone and resets the mute gate.
func (s *Session) CycleInputMode(ctx context.Context) InputMode {
	s.mu.Lock()
	previous := s.inputMode
	var next InputMode
	switch previous {
	case InputModeText:
		next = InputModePushToTalk
	case InputModePushToTalk:
		next = InputModeVoice
	default:
		next = InputModeText
	}
	s.inputMode = next
	s.pttActive = false
	connected := s.state == SessionStateConnected
	s.mu.Unlock()

	if previous == InputModeVoice {
		s.releaseCapture()
	}

	if next == InputModeVoice && connected {
		if err := s.acquireCapture(ctx); err != nil {
			logger.Warn("failed to acquire microphone", "error", err)
			s.setError(fmt.Sprintf("failed to acquire microphone: %s", err.Error()))

			s.mu.Lock()
			s.inputMode = InputModeText
			next = s.inputMode
			s.mu.Unlock()
		}
	}

	return next
}

func (s *Session) InputMode() InputMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputMode
}

// ToggleMute flips the capture mute gate. The device stays open; frames
// are dropped in the callback.
func (s *Session) ToggleMute() bool {
	s.mu.Lock()
	input := s.input
	s.mu.Unlock()

	if input == nil {
		return false
	}
	muted := !input.IsMuted()
	input.SetMuted(muted)
	return muted
}

func (s *Session) IsMuted() bool {
	s.mu.Lock()
	input := s.input
	s.mu.Unlock()
	return input.IsMuted()
}

// ToggleVoiceVolume flips the agent voice between full volume and
// silent. This controls remote synthesis volume, not local playback.
func (s *Session) ToggleVoiceVolume() bool {
	s.mu.Lock()
	s.voiceMuted = !s.voiceMuted
	voiceMuted := s.voiceMuted
	agentSession := s.agentSession
	s.mu.Unlock()

	if agentSession != nil {
		volume := 1.0
		if voiceMuted {
			volume = 0.0
		}
		if err := agentSession.SetVolume(volume); err != nil {
			logger.Warn("failed to set agent voice volume", "error", err)
		}
	}

	return voiceMuted
}

func (s *Session) IsVoiceMuted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voiceMuted
}

// BeginPushToTalk opens a bounded transcription stream and starts
// feeding it microphone audio. Only valid in push-to-talk mode.
func (s *Session) BeginPushToTalk(ctx context.Context) error {
	s.mu.Lock()
	if s.inputMode != InputModePushToTalk || s.pttActive {
		s.mu.Unlock()
		return nil
	}
	speechToText := s.speechToText
	if speechToText == nil {
		s.mu.Unlock()
		return ErrNoSpeechToText
	}
	input := s.input
	s.pttActive = true
	s.mu.Unlock()

	s.transcriptMu.Lock()
	s.transcript = nil
	s.transcriptMu.Unlock()

	encodingInfo := input.EncodingInfo()
	if err := speechToText.Transcribe(ctx,
		speechtotext.WithEncodingInfo(encodingInfo),
		speechtotext.WithTranscriptionCallback(func(transcript string) {
			s.transcriptMu.Lock()
			s.transcript = append(s.transcript, transcript)
			s.transcriptMu.Unlock()
		}),
	); err != nil {
		s.mu.Lock()
		s.pttActive = false
		s.mu.Unlock()
		return fmt.Errorf("failed to start transcription: %w", err)
	}

	if err := s.acquireCapture(ctx); err != nil {
		_ = speechToText.Close(ctx)
		s.mu.Lock()
		s.pttActive = false
		s.mu.Unlock()
		return fmt.Errorf("failed to acquire microphone: %w", err)
	}

	return nil
}

// EndPushToTalk releases the microphone, finalizes the transcription
// stream, and submits the collected transcript as a user turn. The
// transcript is returned so callers can surface it even when the
// session is not connected.
func (s *Session) EndPushToTalk(ctx context.Context) (string, error) {
	s.mu.Lock()
	if !s.pttActive {
		s.mu.Unlock()
		return "", nil
	}
	s.pttActive = false
	speechToText := s.speechToText
	s.mu.Unlock()

	s.releaseCapture()

	// Close blocks until pending finals have been flushed through the
	// transcription callback.
	if err := speechToText.Close(ctx); err != nil {
		return "", fmt.Errorf("failed to finalize transcription: %w", err)
	}

	s.transcriptMu.Lock()
	transcript := strings.TrimSpace(strings.Join(s.transcript, " "))
	s.transcript = nil
	s.transcriptMu.Unlock()

	if transcript != "" {
		s.SubmitText(transcript)
	}
	return transcript, nil
}

// Speak streams synthesis of text into a fresh playback buffer. A still
// running previous utterance is aborted first; its partially transferred
// audio is discarded, not played.
func (s *Session) Speak(ctx context.Context, text string) error {
	s.mu.Lock()
	speech := s.speech
	sink := s.playbackSink
	if speech == nil || sink == nil {
		s.mu.Unlock()
		return ErrNoSpeechStream
	}

	if s.playbackCancel != nil {
		s.playbackCancel()
		s.playback.Stop()
	}

	buffer := newPlaybackBuffer(sink, s.playbackCallbacks)
	streamCtx, cancel := context.WithCancel(ctx)
	s.playback = buffer
	s.playbackCancel = cancel
	s.mu.Unlock()

	go func() {
		defer cancel()
		if err := speech.Stream(streamCtx, text, buffer); err != nil && streamCtx.Err() == nil {
			logger.Warn("speech synthesis failed", "error", err)
		}
	}()

	return nil
}

func (s *Session) PausePlayback() {
	if buffer := s.currentPlayback(); buffer != nil {
		buffer.Pause()
	}
}

func (s *Session) ResumePlayback() {
	if buffer := s.currentPlayback(); buffer != nil {
		buffer.Resume()
	}
}

// StopPlayback aborts the in-flight transfer and discards buffered
// audio.
func (s *Session) StopPlayback() {
	s.mu.Lock()
	buffer := s.playback
	cancel := s.playbackCancel
	s.playback = nil
	s.playbackCancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if buffer != nil {
		buffer.Stop()
	}
}

func (s *Session) PlaybackState() PlaybackState {
	if buffer := s.currentPlayback(); buffer != nil {
		return buffer.State()
	}
	return PlaybackIdle
}

func (s *Session) currentPlayback() *playbackBuffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playback
}

// Timeline returns the display-ready merged view of chat messages and
// tool executions, ordered by timestamp. Produced fresh on every call.
func (s *Session) Timeline() []TimelineItem {
	return s.timeline.merge(s.tracker.Executions())
}

// Error returns the current dismissible error banner, empty when none.
func (s *Session) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorMessage
}

// ClearError dismisses the error banner.
func (s *Session) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorMessage = ""
}

func (s *Session) setError(message string) {
	s.mu.Lock()
	s.errorMessage = message
	s.mu.Unlock()

	logger.Warn("session error", "message", message)
}

func (s *Session) acquireCapture(ctx context.Context) error {
	s.mu.Lock()
	if s.input != nil {
		s.mu.Unlock()
		return nil
	}
	factory := s.captureFactory
	s.mu.Unlock()

	if factory == nil {
		return ErrNoCaptureDevice
	}

	device, err := factory()
	if err != nil {
		return fmt.Errorf("failed to open capture device: %w", err)
	}

	input := newAudioInput(device, s.handleInputAudio)
	if err := input.Capture(ctx); err != nil {
		input.Close()
		return err
	}

	s.mu.Lock()
	s.input = input
	s.mu.Unlock()
	return nil
}

func (s *Session) releaseCapture() {
	s.mu.Lock()
	input := s.input
	s.input = nil
	s.mu.Unlock()

	input.Close()
}

// handleInputAudio routes captured frames by input mode. Frames arrive
// on the device callback and must not block.
func (s *Session) handleInputAudio(frame []byte) {
	if tap := s.audioTap; tap != nil {
		tap(frame)
	}

	s.mu.Lock()
	mode := s.inputMode
	agentSession := s.agentSession
	speechToText := s.speechToText
	pttActive := s.pttActive
	s.mu.Unlock()

	switch mode {
	case InputModeVoice:
		if agentSession != nil {
			if err := agentSession.SendAudio(frame); err != nil {
				logger.Warn("failed to send audio to agent", "error", err)
			}
		}
	case InputModePushToTalk:
		if pttActive && speechToText != nil {
			if err := speechToText.SendAudio(frame); err != nil {
				logger.Warn("failed to send audio to transcriber", "error", err)
			}
		}
	}
}
