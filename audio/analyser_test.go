package audio

import (
	"math"
	"testing"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/generators"
)

// streamFrames pulls frames samples through a streamer in speaker-sized
// chunks, the way the device would.
func streamFrames(t *testing.T, s beep.Streamer, frames int) {
	t.Helper()
	buf := make([][2]float64, 512)
	for frames > 0 {
		n := len(buf)
		if n > frames {
			n = frames
		}
		got, ok := s.Stream(buf[:n])
		if !ok {
			t.Fatalf("streamer drained with %d frames left", frames)
		}
		frames -= got
	}
}

func sine(t *testing.T, freq float64) beep.Streamer {
	t.Helper()
	s, err := generators.SineTone(beep.SampleRate(44100), freq)
	if err != nil {
		t.Fatalf("SineTone(%v) = %v, want nil", freq, err)
	}
	return s
}

func TestAnalyserPassesAudioThrough(t *testing.T) {
	t.Parallel()
	a := newAnalyser()
	a.attach(sine(t, 440))

	buf := make([][2]float64, 512)
	n, ok := a.Stream(buf)
	if n != len(buf) || !ok {
		t.Fatalf("Stream() = (%d, %v), want (%d, true)", n, ok, len(buf))
	}

	silent := true
	for _, frame := range buf {
		if frame[0] != 0 || frame[1] != 0 {
			silent = false
			break
		}
	}
	if silent {
		t.Error("attached tone streamed as silence")
	}
	if err := a.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestAnalyserIdleStreamsSilence(t *testing.T) {
	t.Parallel()
	a := newAnalyser()

	buf := make([][2]float64, 256)
	buf[0][0] = 123 // must be overwritten
	n, ok := a.Stream(buf)
	if n != len(buf) || !ok {
		t.Fatalf("Stream() = (%d, %v), want (%d, true)", n, ok, len(buf))
	}
	for i, frame := range buf {
		if frame[0] != 0 || frame[1] != 0 {
			t.Fatalf("frame %d = %v, want silence", i, frame)
		}
	}

	wave := make([]float64, WindowSize)
	if got := a.Waveform(wave); got != WindowSize {
		t.Fatalf("Waveform() = %d, want %d", got, WindowSize)
	}
	for i, v := range wave {
		if v != 0 {
			t.Fatalf("waveform[%d] = %v, want 0 while idle", i, v)
		}
	}

	spectrum := make([]float64, SpectrumBins)
	a.Spectrum(spectrum)
	for i, v := range spectrum {
		if v != 0 {
			t.Fatalf("spectrum[%d] = %v, want 0 while idle", i, v)
		}
	}
}

func TestAnalyserWaveformHoldsRecentSamples(t *testing.T) {
	t.Parallel()
	a := newAnalyser()
	a.attach(sine(t, 440))
	streamFrames(t, a, WindowSize*2)

	full := make([]float64, WindowSize)
	if got := a.Waveform(full); got != WindowSize {
		t.Fatalf("Waveform(full) = %d, want %d", got, WindowSize)
	}

	peak := 0.0
	for _, v := range full {
		if v < -1 || v > 1 {
			t.Fatalf("waveform sample %v outside [-1, 1]", v)
		}
		if math.Abs(v) > peak {
			peak = math.Abs(v)
		}
	}
	if peak < 0.5 {
		t.Errorf("waveform peak = %v, want a full-scale tone", peak)
	}

	// A short destination receives the newest samples.
	tail := make([]float64, 16)
	if got := a.Waveform(tail); got != len(tail) {
		t.Fatalf("Waveform(tail) = %d, want %d", got, len(tail))
	}
	for i, v := range tail {
		if v != full[WindowSize-len(tail)+i] {
			t.Fatalf("tail[%d] = %v, want %v (newest samples)", i, v, full[WindowSize-len(tail)+i])
		}
	}

	// An oversized destination is capped at the window.
	huge := make([]float64, WindowSize*2)
	if got := a.Waveform(huge); got != WindowSize {
		t.Errorf("Waveform(huge) = %d, want %d", got, WindowSize)
	}
}

func TestAnalyserSpectrumPeaksAtTone(t *testing.T) {
	t.Parallel()
	a := newAnalyser()
	a.attach(sine(t, 440))
	streamFrames(t, a, WindowSize*4)

	spectrum := make([]float64, SpectrumBins)
	// Smoothing blends frames, so let the spectrum settle.
	for i := 0; i < 20; i++ {
		if got := a.Spectrum(spectrum); got != SpectrumBins {
			t.Fatalf("Spectrum() = %d, want %d", got, SpectrumBins)
		}
	}

	peakBin, peak := 0, 0.0
	for i, v := range spectrum {
		if v > peak {
			peakBin, peak = i, v
		}
	}

	// 440 Hz at 44100 Hz with a 2048 window lands around bin 20.
	wantBin := 440 * WindowSize / 44100
	if diff := peakBin - wantBin; diff < -3 || diff > 3 {
		t.Errorf("spectrum peaks at bin %d, want near %d", peakBin, wantBin)
	}
	if peak <= 0 {
		t.Errorf("peak magnitude = %v, want > 0", peak)
	}
	if far := spectrum[SpectrumBins/2]; far >= peak {
		t.Errorf("bin far from the tone = %v, want below peak %v", far, peak)
	}
}

func TestAnalyserSpectrumDecaysAfterSignal(t *testing.T) {
	t.Parallel()
	a := newAnalyser()
	// A finite burst: the source mixer streams silence once it drains.
	a.attach(beep.Take(WindowSize*2, sine(t, 440)))
	streamFrames(t, a, WindowSize*2)

	spectrum := make([]float64, SpectrumBins)
	for i := 0; i < 10; i++ {
		a.Spectrum(spectrum)
	}
	loud := append([]float64(nil), spectrum...)

	// Ring now refills with silence; smoothing lets the meter down slowly
	// instead of snapping to zero.
	streamFrames(t, a, WindowSize)
	for i := 0; i < 12; i++ {
		a.Spectrum(spectrum)
	}

	peakBin, peak := 0, 0.0
	for i, v := range loud {
		if v > peak {
			peakBin, peak = i, v
		}
	}
	if peak == 0 {
		t.Fatal("no energy measured during the burst")
	}
	got := spectrum[peakBin]
	if got >= peak {
		t.Errorf("spectrum still at %v after silence, want decay from %v", got, peak)
	}
	if got == 0 {
		t.Error("spectrum snapped to zero, want gradual decay")
	}
}

func TestAnalyserCloseDrains(t *testing.T) {
	t.Parallel()
	a := newAnalyser()
	a.attach(sine(t, 440))

	a.Close()
	a.Close() // second close is a no-op

	buf := make([][2]float64, 64)
	if n, ok := a.Stream(buf); n != 0 || ok {
		t.Errorf("Stream() after Close = (%d, %v), want (0, false)", n, ok)
	}
	if !a.isClosed() {
		t.Error("isClosed() = false after Close")
	}
}

func TestNormalizeDB(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		mag  float64
		want float64
	}{
		{"silence clamps to zero", 0, 0},
		{"full scale clamps to one", 1, 1},
		{"below range clamps to zero", 1e-7, 0}, // -140 dB
		{"midpoint of range", math.Pow(10, -65.0/20), 0.5},
	}
	for _, tt := range tests {
		got := normalizeDB(tt.mag)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s: normalizeDB(%v) = %v, want %v", tt.name, tt.mag, got, tt.want)
		}
	}
}
