package conversation

import (
	"bytes"
	"sync"

	"github.com/google/uuid"
)

// PlaybackState is the lifecycle state of one utterance's playback.
type PlaybackState string

const (
	PlaybackIdle       PlaybackState = "idle"
	PlaybackConnecting PlaybackState = "connecting"
	PlaybackBuffering  PlaybackState = "buffering"
	PlaybackStreaming  PlaybackState = "streaming"
	PlaybackPlaying    PlaybackState = "playing"
	PlaybackPaused     PlaybackState = "paused"
	PlaybackError      PlaybackState = "error"
)

// PlaybackSink accepts materialized linear16 audio for one utterance.
type PlaybackSink interface {
	Write(audio []byte) error
	Flush() error
}

type playbackCallbacks struct {
	onStateChange func(state PlaybackState)
	onProgress    func(bytesReceived int)
}

// playbackBuffer accumulates the inbound byte stream for one utterance
// and materializes it into a single playable unit only once the stream
// completes. Deferring playback to completion trades latency for gapless
// output; incremental playback of a partially delivered stream drops out
// at every chunk boundary.
type playbackBuffer struct {
	mu sync.Mutex

	utteranceID   string
	chunks        [][]byte
	bytesReceived int
	state         PlaybackState

	paused  bool
	stopped bool

	sink      PlaybackSink
	callbacks playbackCallbacks

	updateSignal chan struct{}
}

func newPlaybackBuffer(sink PlaybackSink, callbacks playbackCallbacks) *playbackBuffer {
	return &playbackBuffer{
		utteranceID:  uuid.NewString(),
		state:        PlaybackIdle,
		sink:         sink,
		callbacks:    callbacks,
		updateSignal: make(chan struct{}, 1),
	}
}

func (b *playbackBuffer) setState(state PlaybackState) {
	b.mu.Lock()
	if b.state == state {
		b.mu.Unlock()
		return
	}
	b.state = state
	onStateChange := b.callbacks.onStateChange
	b.mu.Unlock()

	if onStateChange != nil {
		onStateChange(state)
	}
}

func (b *playbackBuffer) Connecting() { b.setState(PlaybackConnecting) }

// AddChunk appends one chunk in arrival order and reports cumulative
// progress.
func (b *playbackBuffer) AddChunk(chunk []byte) {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}

	owned := make([]byte, len(chunk))
	copy(owned, chunk)
	b.chunks = append(b.chunks, owned)
	b.bytesReceived += len(owned)
	bytesReceived := b.bytesReceived
	onProgress := b.callbacks.onProgress
	b.mu.Unlock()

	b.setState(PlaybackBuffering)
	if onProgress != nil {
		onProgress(bytesReceived)
	}
}

// Complete materializes the accumulated chunks and starts playback on its
// own goroutine.
func (b *playbackBuffer) Complete() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	materialized := bytes.Join(b.chunks, nil)
	b.mu.Unlock()

	b.setState(PlaybackPlaying)
	go b.play(materialized)
}

func (b *playbackBuffer) play(audio []byte) {
	const step = 8192

	for offset := 0; offset < len(audio); offset += step {
		if ok := b.waitIfPaused(); !ok {
			return
		}

		end := min(offset+step, len(audio))
		if err := b.sink.Write(audio[offset:end]); err != nil {
			logger.Warn("playback write failed", "utterance_id", b.utteranceID, "error", err)
			b.setState(PlaybackError)
			return
		}
	}

	if err := b.sink.Flush(); err != nil {
		logger.Warn("playback flush failed", "utterance_id", b.utteranceID, "error", err)
		b.setState(PlaybackError)
		return
	}

	b.mu.Lock()
	stopped := b.stopped
	b.mu.Unlock()
	if !stopped {
		b.setState(PlaybackIdle)
	}
}

func (b *playbackBuffer) waitIfPaused() (ok bool) {
	for {
		b.mu.Lock()
		paused := b.paused
		stopped := b.stopped
		b.mu.Unlock()

		if stopped {
			return false
		}
		if !paused {
			return true
		}

		<-b.updateSignal
	}
}

// Fail marks this utterance's playback as terminally failed. A subsequent
// utterance starts a fresh buffer.
func (b *playbackBuffer) Fail() {
	b.setState(PlaybackError)
}

// Pause suspends playback without touching the underlying transfer.
func (b *playbackBuffer) Pause() {
	b.mu.Lock()
	if b.paused || b.stopped || b.state != PlaybackPlaying {
		b.mu.Unlock()
		return
	}
	b.paused = true
	b.mu.Unlock()

	b.setState(PlaybackPaused)
	b.signalUpdate()
}

func (b *playbackBuffer) Resume() {
	b.mu.Lock()
	if !b.paused || b.stopped {
		b.mu.Unlock()
		return
	}
	b.paused = false
	b.mu.Unlock()

	b.setState(PlaybackPlaying)
	b.signalUpdate()
}

// Stop aborts playback and clears accumulated chunks. The in-flight
// transfer is aborted by the caller cancelling the stream context.
func (b *playbackBuffer) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	b.chunks = nil
	b.bytesReceived = 0
	b.mu.Unlock()

	b.setState(PlaybackIdle)
	b.signalUpdate()
}

func (b *playbackBuffer) State() PlaybackState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *playbackBuffer) BytesReceived() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bytesReceived
}

func (b *playbackBuffer) signalUpdate() {
	select {
	case b.updateSignal <- struct{}{}:
	default:
	}
}
