package oscilloscope

import (
	"math"
	"testing"
)

func TestFrequencyAxisIsLogarithmicAndBounded(t *testing.T) {
	s := NewSampler(WithSampleRate(48000), WithFFTSize(2048))
	r := NewRenderer(s, WithSize(120, 16))

	first := r.frequencyForPosition(0)
	if math.Abs(first-20) > 1e-9 {
		t.Fatalf("expected axis to start at 20Hz, got %v", first)
	}

	last := r.frequencyForPosition(1)
	if last > 20000 {
		t.Fatalf("expected axis to end at or below 20kHz, got %v", last)
	}
	if math.Abs(last-20000) > 1e-6 {
		t.Fatalf("expected 48kHz input to reach the full 20kHz, got %v", last)
	}

	previous := first
	for i := 1; i <= 100; i++ {
		frequency := r.frequencyForPosition(float64(i) / 100)
		if frequency <= previous {
			t.Fatalf("expected strictly increasing axis, got %v after %v", frequency, previous)
		}
		previous = frequency
	}
}

func TestFrequencyAxisClampsToNyquist(t *testing.T) {
	s := NewSampler(WithSampleRate(16000), WithFFTSize(2048))
	r := NewRenderer(s, WithSize(120, 16))

	last := r.frequencyForPosition(1)
	if math.Abs(last-8000) > 1e-6 {
		t.Fatalf("expected 16kHz input to clamp the axis at 8kHz, got %v", last)
	}
}

func TestBinForFrequencyClampsToSpectrum(t *testing.T) {
	s := NewSampler(WithSampleRate(48000), WithFFTSize(2048))
	r := NewRenderer(s, WithSize(120, 16))

	if got := r.binForFrequency(20); got != 0 {
		t.Fatalf("expected 20Hz to land in bin 0, got %d", got)
	}

	// 1500Hz at 48kHz/2048 bins is exactly bin 64.
	if got := r.binForFrequency(1500); got != 64 {
		t.Fatalf("expected 1500Hz in bin 64, got %d", got)
	}

	if got := r.binForFrequency(1e9); got != s.BinCount()-1 {
		t.Fatalf("expected absurd frequency to clamp to last bin, got %d", got)
	}
}

func TestActiveWaveformIsPinnedToCenterAtEdges(t *testing.T) {
	s := NewSampler(WithSmoothing(0))
	s.UseExternal()
	s.Feed(sineFrame(1500, s.SampleRate(), s.FFTSize()))

	r := NewRenderer(s, WithSize(120, 16))
	r.SetMode(ModeActive)

	frame := r.Frame()
	if frame.Mode != ModeActive {
		t.Fatalf("expected active frame, got %q", frame.Mode)
	}

	centerY := 8.0
	first := frame.Points[0]
	last := frame.Points[len(frame.Points)-1]
	if math.Abs(first.Y-centerY) > 1e-9 {
		t.Fatalf("expected left edge pinned to center %v, got %v", centerY, first.Y)
	}
	if math.Abs(last.Y-centerY) > 1e-9 {
		t.Fatalf("expected right edge pinned to center %v, got %v", centerY, last.Y)
	}

	deviates := false
	for _, point := range frame.Points {
		if math.Abs(point.Y-centerY) > 0.5 {
			deviates = true
			break
		}
	}
	if !deviates {
		t.Fatal("expected interior points to deviate from the center line")
	}
}

func TestActiveModeWithoutDataFallsBackToIdleBaseline(t *testing.T) {
	s := NewSampler()
	s.UseCapture() // no frames fed yet

	r := NewRenderer(s, WithSize(80, 16))
	r.SetMode(ModeActive)

	frame := r.Frame()
	if frame.Mode != ModeIdle {
		t.Fatalf("expected fallback to the idle baseline, got %q", frame.Mode)
	}

	centerY := 8.0
	for _, point := range frame.Points {
		if math.Abs(point.Y-centerY) > 1e-9 {
			t.Fatalf("expected a flat baseline at %v, got %v", centerY, point.Y)
		}
	}
}

func TestIdleBaselineDrawsAtReducedOpacity(t *testing.T) {
	r := NewRenderer(nil, WithSize(80, 16))

	frame := r.Frame()
	if frame.Mode != ModeIdle {
		t.Fatalf("expected an idle frame, got %q", frame.Mode)
	}
	if math.Abs(frame.Opacity-0.3) > 1e-9 {
		t.Fatalf("expected the baseline dimmed to 0.3, got %v", frame.Opacity)
	}
}

func TestProcessingOpacityFadesIn(t *testing.T) {
	r := NewRenderer(nil, WithSize(80, 16))
	r.SetMode(ModeProcessing)

	first := r.Frame()
	if first.Opacity <= 0.4 || first.Opacity >= 0.8 {
		t.Fatalf("expected opacity mid-fade, got %v", first.Opacity)
	}

	var last Frame
	for i := 0; i < 60; i++ {
		last = r.Frame()
	}
	if math.Abs(last.Opacity-0.8) > 1e-9 {
		t.Fatalf("expected opacity to settle at 0.8, got %v", last.Opacity)
	}
}

func TestProcessingWaveAdvancesEachFrame(t *testing.T) {
	r := NewRenderer(nil, WithSize(80, 16))
	r.SetMode(ModeProcessing)

	first := r.Frame()
	second := r.Frame()

	moved := false
	for i := range first.Points {
		if first.Points[i].Y != second.Points[i].Y {
			moved = true
			break
		}
	}
	if !moved {
		t.Fatal("expected the wave to move between frames")
	}
}

func TestResizePreservesPhase(t *testing.T) {
	r := NewRenderer(nil, WithSize(80, 16))
	r.SetMode(ModeProcessing)

	for i := 0; i < 10; i++ {
		r.Frame()
	}
	phaseBefore := r.phase

	r.Resize(120, 24)
	frame := r.Frame()

	if r.phase <= phaseBefore {
		t.Fatal("expected phase to keep advancing across resize")
	}
	if len(frame.Points) != 120 {
		t.Fatalf("expected resized frame width 120, got %d points", len(frame.Points))
	}
}

func TestSmoothPathKeepsEndpoints(t *testing.T) {
	points := []Point{{X: 0, Y: 5}, {X: 10, Y: 0}, {X: 20, Y: 10}, {X: 30, Y: 5}}

	smoothed := SmoothPath(points, 4)
	if len(smoothed) <= len(points) {
		t.Fatalf("expected interpolation to add points, got %d", len(smoothed))
	}
	if smoothed[0] != points[0] {
		t.Fatalf("expected first point preserved, got %+v", smoothed[0])
	}
	if smoothed[len(smoothed)-1] != points[len(points)-1] {
		t.Fatalf("expected last point preserved, got %+v", smoothed[len(smoothed)-1])
	}
}
