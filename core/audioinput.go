package conversation

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/charlescrowellnv/mindvalley-eve-ai/core/audio"
)

// CaptureDevice is a microphone handle with explicit capture controls.
type CaptureDevice interface {
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
	Close()
	EncodingInfo() audio.EncodingInfo
}

// audioInput wraps a single capture device handle for the lifetime of one
// connected session. Muting gates frames in the callback instead of
// closing the device, so unmuting never pays device reacquisition.
type audioInput struct {
	device CaptureDevice

	// capturing reports whether the device callback is currently armed.
	capturing atomic.Bool
	// muted drops captured frames without touching the device.
	muted atomic.Bool

	// onAudio receives every frame that passes the mute gate.
	onAudio func(audio []byte)
}

func newAudioInput(device CaptureDevice, onAudio func(audio []byte)) *audioInput {
	if onAudio == nil {
		onAudio = func(audio []byte) {}
	}

	return &audioInput{device: device, onAudio: onAudio}
}

func (a *audioInput) Capture(ctx context.Context) error {
	if a == nil || a.device == nil {
		return nil
	}

	if !a.capturing.CompareAndSwap(false, true) {
		return nil
	}

	if err := a.device.StartCapture(ctx, a.onFrame); err != nil {
		a.capturing.Store(false)
		return fmt.Errorf("failed to start audio capture: %w", err)
	}
	return nil
}

func (a *audioInput) StopCapture() error {
	if a == nil || a.device == nil {
		return nil
	}

	if !a.capturing.CompareAndSwap(true, false) {
		return nil
	}

	return a.device.StopCapture()
}

func (a *audioInput) SetMuted(muted bool) {
	if a == nil {
		return
	}
	a.muted.Store(muted)
}

func (a *audioInput) IsMuted() bool     { return a != nil && a.muted.Load() }
func (a *audioInput) IsCapturing() bool { return a != nil && a.capturing.Load() }

// Close releases the device handle unconditionally and resets the mute
// gate so the next session starts unmuted.
func (a *audioInput) Close() {
	if a == nil || a.device == nil {
		return
	}

	if a.capturing.CompareAndSwap(true, false) {
		_ = a.device.StopCapture()
	}
	a.muted.Store(false)
	a.device.Close()
	a.device = nil
}

func (a *audioInput) EncodingInfo() audio.EncodingInfo {
	if a == nil || a.device == nil {
		return audio.GetDefaultEncodingInfo()
	}
	if enc := a.device.EncodingInfo(); !enc.IsZero() {
		return enc
	}
	// A device that cannot report its encoding still captures at the
	// default rate and format.
	return audio.GetDefaultEncodingInfo()
}

func (a *audioInput) onFrame(frame []byte) {
	if a.muted.Load() {
		return
	}
	a.onAudio(frame)
}
