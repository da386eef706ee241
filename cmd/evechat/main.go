package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	conversation "github.com/charlescrowellnv/mindvalley-eve-ai/core"
	"github.com/charlescrowellnv/mindvalley-eve-ai/core/audio/miniaudio"
	"github.com/charlescrowellnv/mindvalley-eve-ai/core/audio/portaudio"
	"github.com/charlescrowellnv/mindvalley-eve-ai/core/events"
	"github.com/charlescrowellnv/mindvalley-eve-ai/core/oscilloscope"
	"github.com/charlescrowellnv/mindvalley-eve-ai/core/speechtotext/deepgram"
	"github.com/charlescrowellnv/mindvalley-eve-ai/internal/config"
)

const playbackBufferSize = 2048

func init() {
	godotenv.Load()
}

// tappedSink forwards playback audio to the real sink while feeding the
// output oscilloscope.
type tappedSink struct {
	sink conversation.PlaybackSink
	feed func([]byte)
}

func (t *tappedSink) Write(audio []byte) error {
	t.feed(audio)
	return t.sink.Write(audio)
}

func (t *tappedSink) Flush() error {
	return t.sink.Flush()
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	micSampler := oscilloscope.NewSampler(
		oscilloscope.WithFFTSize(cfg.UI.FFTSize),
		oscilloscope.WithSmoothing(cfg.UI.Smoothing),
	)
	outSampler := oscilloscope.NewSampler(
		oscilloscope.WithFFTSize(cfg.UI.FFTSize),
		oscilloscope.WithSmoothing(cfg.UI.Smoothing),
	)

	uiUpdateChan := make(chan tea.Msg, 16)
	notify := func(msg tea.Msg) {
		select {
		case uiUpdateChan <- msg:
		default:
		}
	}

	opts := []conversation.SessionOption{
		conversation.WithAgentEndpoint(cfg.Agent.Endpoint),
		conversation.WithAgentID(cfg.Agent.ID),
		conversation.WithTools(conversation.ProgramTools()...),
		conversation.WithCaptureDeviceFactory(func() (conversation.CaptureDevice, error) {
			return miniaudio.NewClient()
		}),
		conversation.WithAudioTap(micSampler.Feed),
		conversation.WithEventObserver(func(event events.Event) {
			notify(sessionEventMsg{event: event})
		}),
		conversation.WithPlaybackStateCallback(func(state conversation.PlaybackState) {
			notify(playbackStateMsg(state))
		}),
	}

	speakReplies := false
	playback, playbackErr := portaudio.NewClient(playbackBufferSize)
	if playbackErr != nil {
		log.Printf("audio playback unavailable: %v", playbackErr)
	} else {
		defer playback.Close()
		speakReplies = true
		opts = append(opts,
			conversation.WithPlaybackSink(&tappedSink{sink: playback, feed: outSampler.Feed}),
			conversation.WithSpeechEndpoint(cfg.Speech.Endpoint),
		)
	}

	transcriber, transcriberErr := deepgram.NewTranscriptionClient(
		deepgram.WithAPIKey(cfg.Deepgram.APIKey),
	)
	if transcriberErr != nil {
		log.Printf("push-to-talk unavailable: %v", transcriberErr)
	} else {
		opts = append(opts, conversation.WithSpeechToTextClient(transcriber))
	}

	session := conversation.NewSession(opts...)
	defer session.Disconnect()

	m := newModel(ctx, session, micSampler, outSampler, cfg.UI.Sensitivity, speakReplies, uiUpdateChan)

	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error running program: %v\n", err)
		os.Exit(1)
	}
}
