package oscilloscope

import (
	"math"
	"sync"
)

// Mode is the visualization's display state.
type Mode string

const (
	// ModeIdle renders a flat center line.
	ModeIdle Mode = "idle"
	// ModeProcessing renders an ambient synthetic wave while the agent
	// is thinking and no audio is flowing.
	ModeProcessing Mode = "processing"
	// ModeActive renders the live frequency spectrum as a waveform.
	ModeActive Mode = "active"
)

// Point is one waveform coordinate in virtual pixel space.
type Point struct {
	X float64
	Y float64
}

// Frame is one rendered animation step.
type Frame struct {
	Mode    Mode
	Points  []Point
	Opacity float64
}

const (
	minFrequency = 20.0
	maxFrequency = 20000.0

	// amplitudeHeadroom keeps peaks just inside the drawing area.
	amplitudeHeadroom = 0.9

	// idleOpacity dims the flat baseline relative to live waveforms.
	idleOpacity = 0.3

	phaseStep      = 0.05
	transitionStep = 0.02
)

// Renderer turns sampled frequency data into waveform frames. It owns
// the animation phase, so resizing or switching modes never restarts the
// motion.
type Renderer struct {
	mu sync.Mutex

	sampler *Sampler
	mode    Mode

	width  int
	height int

	sensitivity float64

	phase      float64
	transition float64
}

type RendererOption func(*Renderer)

// WithSensitivity scales the normalized spectrum amplitude. Defaults
// to 1.
func WithSensitivity(sensitivity float64) RendererOption {
	return func(r *Renderer) {
		if sensitivity > 0 {
			r.sensitivity = sensitivity
		}
	}
}

func WithSize(width, height int) RendererOption {
	return func(r *Renderer) {
		r.width = width
		r.height = height
	}
}

func NewRenderer(sampler *Sampler, opts ...RendererOption) *Renderer {
	r := &Renderer{
		sampler:     sampler,
		mode:        ModeIdle,
		width:       80,
		height:      16,
		sensitivity: 1,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// SetMode switches the display state. Entering processing restarts the
// fade-in; the wave phase itself is continuous across switches.
func (r *Renderer) SetMode(mode Mode) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mode == mode {
		return
	}
	r.mode = mode
	r.transition = 0
}

func (r *Renderer) Mode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// Resize adjusts the drawing area. The animation phase is preserved, so
// a window resize never visibly restarts the wave.
func (r *Renderer) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if width > 0 {
		r.width = width
	}
	if height > 0 {
		r.height = height
	}
}

// Frame advances the animation by one step and returns the waveform for
// the current mode.
func (r *Renderer) Frame() Frame {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.phase += phaseStep
	if r.transition < 1 {
		r.transition = math.Min(r.transition+transitionStep, 1)
	}

	switch r.mode {
	case ModeActive:
		if r.sampler != nil && r.sampler.Ready() {
			return Frame{Mode: ModeActive, Points: r.spectrumPoints(), Opacity: 1}
		}
		// No data yet, fall back to the baseline instead of garbage.
		return Frame{Mode: ModeIdle, Points: r.idlePoints(), Opacity: idleOpacity}
	case ModeProcessing:
		return Frame{Mode: ModeProcessing, Points: r.processingPoints(), Opacity: r.processingOpacity()}
	default:
		return Frame{Mode: ModeIdle, Points: r.idlePoints(), Opacity: idleOpacity}
	}
}

func (r *Renderer) processingOpacity() float64 {
	return 0.4 + 0.4*r.transition
}

func (r *Renderer) idlePoints() []Point {
	centerY := float64(r.height) / 2
	return []Point{{X: 0, Y: centerY}, {X: float64(r.width - 1), Y: centerY}}
}

// processingPoints renders a slow three-harmonic wave. The harmonics
// drift at different phase rates so the shape never visibly loops.
func (r *Renderer) processingPoints() []Point {
	centerY := float64(r.height) / 2
	points := make([]Point, r.width)
	for x := 0; x < r.width; x++ {
		fx := float64(x)
		amplitude := math.Sin(fx*0.02+r.phase)*0.3 +
			math.Sin(fx*0.045+r.phase*1.5)*0.15 +
			math.Sin(fx*0.01+r.phase*0.5)*0.2
		points[x] = Point{X: fx, Y: centerY + amplitude*centerY*amplitudeHeadroom}
	}
	return points
}

// spectrumPoints maps the sampled spectrum onto the drawing width using
// a logarithmic frequency axis, with a sine taper pinning both ends of
// the waveform to the center line.
func (r *Renderer) spectrumPoints() []Point {
	frequencies := r.sampler.Frequencies()
	centerY := float64(r.height) / 2

	n := r.width
	if n < 2 {
		n = 2
	}

	points := make([]Point, n)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(n-1)
		frequency := r.frequencyForPosition(t)
		bin := r.binForFrequency(frequency)
		value := bandAverage(frequencies, bin)

		normalized := value / 255 * r.sensitivity
		amplitude := normalized * centerY * amplitudeHeadroom * math.Sin(math.Pi*t)
		points[i] = Point{X: t * float64(r.width-1), Y: centerY - amplitude}
	}
	return points
}

// frequencyForPosition maps t in [0, 1] onto [20Hz, min(20kHz, Nyquist)]
// logarithmically, giving low frequencies the same visual weight the ear
// gives them.
func (r *Renderer) frequencyForPosition(t float64) float64 {
	upper := maxFrequency
	if r.sampler != nil {
		upper = math.Min(maxFrequency, r.sampler.Nyquist())
	}
	return minFrequency * math.Pow(upper/minFrequency, t)
}

func (r *Renderer) binForFrequency(frequency float64) int {
	if r.sampler == nil {
		return 0
	}
	bin := int(math.Floor(frequency * float64(r.sampler.FFTSize()) / r.sampler.SampleRate()))
	if bin < 0 {
		bin = 0
	}
	if max := r.sampler.BinCount() - 1; bin > max {
		bin = max
	}
	return bin
}

// bandAverage averages the two neighbouring bins on each side, clamped
// at the spectrum edges.
func bandAverage(frequencies []byte, bin int) float64 {
	sum := 0.0
	count := 0
	for offset := -2; offset <= 2; offset++ {
		i := bin + offset
		if i < 0 || i >= len(frequencies) {
			continue
		}
		sum += float64(frequencies[i])
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// SmoothPath interpolates the waveform with quadratic curves through
// segment midpoints, matching the soft line the points alone would not
// give on a coarse canvas. steps controls samples per segment.
func SmoothPath(points []Point, steps int) []Point {
	if len(points) < 3 || steps < 1 {
		return points
	}

	smoothed := make([]Point, 0, (len(points)-1)*steps+1)
	smoothed = append(smoothed, points[0])

	previous := points[0]
	for i := 1; i < len(points)-1; i++ {
		control := points[i]
		next := Point{
			X: (points[i].X + points[i+1].X) / 2,
			Y: (points[i].Y + points[i+1].Y) / 2,
		}
		for step := 1; step <= steps; step++ {
			t := float64(step) / float64(steps)
			smoothed = append(smoothed, quadraticAt(previous, control, next, t))
		}
		previous = next
	}
	smoothed = append(smoothed, points[len(points)-1])
	return smoothed
}

func quadraticAt(p0, p1, p2 Point, t float64) Point {
	u := 1 - t
	return Point{
		X: u*u*p0.X + 2*u*t*p1.X + t*t*p2.X,
		Y: u*u*p0.Y + 2*u*t*p1.Y + t*t*p2.Y,
	}
}
