package conversation

import (
	"context"

	"github.com/charlescrowellnv/mindvalley-eve-ai/core/agent"
	"github.com/charlescrowellnv/mindvalley-eve-ai/core/events"
	"github.com/charlescrowellnv/mindvalley-eve-ai/core/speechtotext"
)

type SessionOption func(*Session)

// AgentSession is one live connection to the remote agent.
type AgentSession interface {
	SendUserMessage(text string) error
	SetVolume(level float64) error
	SendAudio(audio []byte) error
	End() error
}

// AgentClient opens agent sessions.
type AgentClient interface {
	Start(ctx context.Context, params agent.SessionParams) (AgentSession, error)
}

// agentClientAdapter narrows the concrete websocket client's session
// handle to the AgentSession interface.
type agentClientAdapter struct {
	client *agent.Client
}

func (a agentClientAdapter) Start(ctx context.Context, params agent.SessionParams) (AgentSession, error) {
	session, err := a.client.Start(ctx, params)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func WithAgentEndpoint(endpoint string) SessionOption {
	return func(s *Session) {
		s.client = agentClientAdapter{client: agent.NewClient(endpoint)}
	}
}

func WithAgentClient(client AgentClient) SessionOption {
	return func(s *Session) { s.client = client }
}

func WithAgentID(agentID string) SessionOption {
	return func(s *Session) { s.agentID = agentID }
}

func WithTools(tools ...Tool) SessionOption {
	return func(s *Session) { s.tools = append(s.tools, tools...) }
}

// WithCaptureDeviceFactory configures how a microphone handle is opened.
// The factory runs on every capture acquisition; the session owns the
// returned device until it releases capture.
func WithCaptureDeviceFactory(factory func() (CaptureDevice, error)) SessionOption {
	return func(s *Session) { s.captureFactory = factory }
}

// WithPlaybackSink configures where synthesized speech is played.
func WithPlaybackSink(sink PlaybackSink) SessionOption {
	return func(s *Session) { s.playbackSink = sink }
}

// WithSpeechEndpoint configures the synthesis service used by Speak.
func WithSpeechEndpoint(endpoint string) SessionOption {
	return func(s *Session) { s.speech = newSpeechStream(endpoint) }
}

// SpeechToText transcribes bounded audio captures. Transcribe opens a
// transcription stream, SendAudio feeds it, and Close finalizes it,
// flushing any pending final transcripts through the registered
// callbacks before returning.
type SpeechToText interface {
	Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error
	SendAudio(audio []byte) error
	Close(ctx context.Context) error
}

func WithSpeechToTextClient(client SpeechToText) SessionOption {
	return func(s *Session) { s.speechToText = client }
}

// WithEventObserver registers a callback receiving every engine event
// after it has been applied to session state.
func WithEventObserver(observer func(events.Event)) SessionOption {
	return func(s *Session) {
		if observer == nil {
			s.emitEvent = noopEventEmitter
			return
		}
		s.emitEvent = observer
	}
}

// WithAudioTap registers a callback receiving every captured audio frame
// that passes the mute gate, regardless of input mode. The slice is
// passed through without copying and must not be retained.
func WithAudioTap(tap func(audio []byte)) SessionOption {
	return func(s *Session) { s.audioTap = tap }
}

// WithInputMode sets the initial input mode. Defaults to text.
func WithInputMode(mode InputMode) SessionOption {
	return func(s *Session) { s.inputMode = mode }
}

// WithPlaybackStateCallback registers a callback for utterance playback
// state transitions.
func WithPlaybackStateCallback(callback func(state PlaybackState)) SessionOption {
	return func(s *Session) { s.playbackCallbacks.onStateChange = callback }
}

// WithPlaybackProgressCallback registers a callback reporting cumulative
// bytes received for the in-flight utterance.
func WithPlaybackProgressCallback(callback func(bytesReceived int)) SessionOption {
	return func(s *Session) { s.playbackCallbacks.onProgress = callback }
}
