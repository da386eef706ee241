package oscilloscope

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/charlescrowellnv/mindvalley-eve-ai/core/audio"
)

// Source selects where the sampler's audio comes from.
type Source string

const (
	// SourceNone disables sampling; the visualization falls back to its
	// idle state.
	SourceNone Source = "none"
	// SourceCapture samples the local microphone feed.
	SourceCapture Source = "capture"
	// SourceExternal samples an externally supplied stream such as the
	// agent's voice. External sources are considered ready as soon as
	// they are selected.
	SourceExternal Source = "external"
)

const (
	defaultFFTSize   = 2048
	defaultSmoothing = 0.8

	// Decibel range mapped onto the 0..255 magnitude scale.
	minDecibels = -100.0
	maxDecibels = -30.0
)

// Sampler converts a raw linear16 audio feed into smoothed frequency
// magnitudes on a 0..255 scale. One sampler serves one source at a time.
type Sampler struct {
	mu sync.Mutex

	source Source
	ready  bool

	fftSize   int
	smoothing float64
	encoding  audio.EncodingInfo

	// samples is a ring holding the most recent fftSize mono samples.
	samples  []float64
	writePos int

	window   []float64
	smoothed []float64
	scratch  []complex128

	// snapshot is refreshed in place on every Frequencies call. Callers
	// must copy it if they retain it across frames.
	snapshot []byte
}

type SamplerOption func(*Sampler)

// WithFFTSize sets the transform size. Values that are not powers of two
// fall back to the default.
func WithFFTSize(size int) SamplerOption {
	return func(s *Sampler) {
		if isPowerOfTwo(size) {
			s.fftSize = size
		}
	}
}

// WithSmoothing sets the time-smoothing constant, clamped to [0, 1).
// Higher values favor the previous frame.
func WithSmoothing(smoothing float64) SamplerOption {
	return func(s *Sampler) {
		s.smoothing = math.Min(math.Max(smoothing, 0), 0.99)
	}
}

func WithSampleRate(sampleRate float64) SamplerOption {
	return func(s *Sampler) {
		if sampleRate > 0 {
			s.encoding.SampleRate = int(sampleRate)
		}
	}
}

func NewSampler(opts ...SamplerOption) *Sampler {
	s := &Sampler{
		source:    SourceNone,
		fftSize:   defaultFFTSize,
		smoothing: defaultSmoothing,
		encoding:  audio.GetDefaultEncodingInfo(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.samples = make([]float64, s.fftSize)
	s.window = hannWindow(s.fftSize)
	s.smoothed = make([]float64, s.fftSize/2)
	s.scratch = make([]complex128, s.fftSize)
	s.snapshot = make([]byte, s.fftSize/2)

	return s
}

// UseCapture switches to the microphone source. Readiness is deferred
// until the first frame arrives, mirroring device startup latency.
func (s *Sampler) UseCapture() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = SourceCapture
	s.ready = false
	s.resetLocked()
}

// UseExternal switches to an externally fed stream, ready immediately.
func (s *Sampler) UseExternal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = SourceExternal
	s.ready = true
	s.resetLocked()
}

// Disable detaches the sampler from any source and clears its state, so
// a stale spectrum never outlives the device that produced it.
func (s *Sampler) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = SourceNone
	s.ready = false
	s.resetLocked()
}

func (s *Sampler) resetLocked() {
	for i := range s.samples {
		s.samples[i] = 0
	}
	for i := range s.smoothed {
		s.smoothed[i] = 0
	}
	s.writePos = 0
}

func (s *Sampler) Source() Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

func (s *Sampler) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *Sampler) SampleRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(s.encoding.SampleRate)
}

// Nyquist returns the highest frequency the configured encoding can
// represent.
func (s *Sampler) Nyquist() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.encoding.Nyquist()
}

func (s *Sampler) FFTSize() int { return s.fftSize }
func (s *Sampler) BinCount() int {
	return s.fftSize / 2
}

// Feed pushes one linear16 little-endian frame into the sample ring.
// Frames arriving while no source is selected are dropped.
func (s *Sampler) Feed(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.source == SourceNone {
		return
	}
	s.ready = true

	for i := 0; i+1 < len(frame); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(frame[i:]))
		s.samples[s.writePos] = float64(sample) / 32768.0
		s.writePos = (s.writePos + 1) % s.fftSize
	}
}

// Frequencies computes the current smoothed magnitude spectrum. The
// returned slice is the sampler's internal snapshot, refreshed in place;
// it stays valid until the next call.
func (s *Sampler) Frequencies() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		for i := range s.snapshot {
			s.snapshot[i] = 0
		}
		return s.snapshot
	}

	// Unroll the ring into scratch, oldest sample first, windowed.
	for i := 0; i < s.fftSize; i++ {
		sample := s.samples[(s.writePos+i)%s.fftSize]
		s.scratch[i] = complex(sample*s.window[i], 0)
	}

	fft(s.scratch)

	for k := 0; k < s.fftSize/2; k++ {
		magnitude := math.Hypot(real(s.scratch[k]), imag(s.scratch[k])) / float64(s.fftSize)
		s.smoothed[k] = s.smoothing*s.smoothed[k] + (1-s.smoothing)*magnitude

		db := 20 * math.Log10(s.smoothed[k]+math.SmallestNonzeroFloat64)
		normalized := (db - minDecibels) / (maxDecibels - minDecibels)
		normalized = math.Min(math.Max(normalized, 0), 1)
		s.snapshot[k] = byte(math.Round(normalized * 255))
	}

	return s.snapshot
}
