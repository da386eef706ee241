package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/charlescrowellnv/mindvalley-eve-ai/core/audio"
)

const (
	captureChannels     = 1
	capturePeriodFrames = 480
	capturePeriods      = 3
)

// captureDevice wraps a single malgo capture device. The device callback
// runs on miniaudio's own thread, so the sink is swapped under the mutex
// and read the same way from the callback.
type captureDevice struct {
	device *malgo.Device
	config malgo.DeviceConfig

	mu   sync.Mutex
	sink func(frame []byte)
}

// open initializes the device against the shared context. Frames are
// captured as 16-bit little-endian mono at the engine's default rate,
// which is what the rest of the pipeline expects.
func (d *captureDevice) open(audioContext *malgo.AllocatedContext) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.config = malgo.DefaultDeviceConfig(malgo.Capture)
	d.config.SampleRate = uint32(audio.DefaultSampleRate)
	d.config.Capture.Format = malgo.FormatS16
	d.config.Capture.Channels = captureChannels
	d.config.Alsa.NoMMap = 1
	d.config.PerformanceProfile = malgo.LowLatency
	d.config.PeriodSizeInFrames = capturePeriodFrames
	d.config.Periods = capturePeriods

	frameBytes := malgo.SampleSizeInBytes(d.config.Capture.Format) * captureChannels

	device, err := malgo.InitDevice(audioContext.Context, d.config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * frameBytes
			if n == 0 || len(pInput) < n {
				return
			}
			d.mu.Lock()
			sink := d.sink
			d.mu.Unlock()
			if sink != nil {
				sink(pInput[:n])
			}
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	d.device = device
	return nil
}

// start installs the sink and starts the device. The sink is in place
// before the device runs so no early frame is dropped.
func (d *captureDevice) start(sink func(frame []byte)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device == nil {
		return fmt.Errorf("capture device not open")
	}
	if d.device.IsStarted() {
		return nil
	}

	d.sink = sink
	if err := d.device.Start(); err != nil {
		d.sink = nil
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	return nil
}

func (d *captureDevice) stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device == nil {
		return fmt.Errorf("capture device not open")
	}
	if !d.device.IsStarted() {
		return nil
	}

	if err := d.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}
	d.sink = nil
	return nil
}

func (d *captureDevice) release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device != nil {
		d.device.Uninit()
		d.device = nil
	}
	d.sink = nil
}

// encoding reports the format the open device captures in.
func (d *captureDevice) encoding() audio.EncodingInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device == nil {
		return audio.EncodingInfo{}
	}
	return audio.EncodingInfo{
		SampleRate: int(d.config.SampleRate),
		Format:     audio.EncodingLinear16,
	}
}
