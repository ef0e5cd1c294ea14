package audio

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	"clipdeck/playback"
)

const (
	// WindowSize is the analysis resolution: how many time-domain samples a
	// tap retains and transforms.
	WindowSize = 2048

	// SpectrumBins is how many frequency bins Spectrum reports; bin i covers
	// frequencies around i*sampleRate/WindowSize.
	SpectrumBins = WindowSize / 2

	// smoothing is the weight of the previous frame when blending magnitude
	// spectra, keeping meters from flickering.
	smoothing = 0.8

	// Magnitudes are mapped to [0, 1] across this decibel range.
	minDB = -100.0
	maxDB = -30.0
)

// Analyser taps one clip's audio on its way to the master mixer. The graph
// side streams through it; consumers read the waveform and spectrum of
// whatever passed through most recently. All instances of a clip feed one
// analyser, so what it reports is the clip's combined signal.
type Analyser struct {
	source *beep.Mixer
	fft    *fourier.FFT

	mu       sync.Mutex
	ring     [WindowSize]float64
	pos      int
	scratch  []float64
	coeffs   []complex128
	smoothed []float64
	closed   bool
}

var (
	_ beep.Streamer = (*Analyser)(nil)
	_ playback.Tap  = (*Analyser)(nil)
)

func newAnalyser() *Analyser {
	return &Analyser{
		source:   &beep.Mixer{},
		fft:      fourier.NewFFT(WindowSize),
		scratch:  make([]float64, WindowSize),
		coeffs:   make([]complex128, WindowSize/2+1),
		smoothed: make([]float64, SpectrumBins),
	}
}

// attach wires one instance streamer into the tap.
func (a *Analyser) attach(s beep.Streamer) {
	speaker.Lock()
	a.source.Add(s)
	speaker.Unlock()
}

// Stream passes the combined instance audio through while folding it to mono
// into the analysis ring. A closed analyser reports drained so the master
// mixer drops it.
func (a *Analyser) Stream(samples [][2]float64) (n int, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return 0, false
	}

	// The source mixer keeps streaming silence when empty, so the ring keeps
	// advancing and idle meters decay to zero.
	n, ok = a.source.Stream(samples)
	for i := 0; i < n; i++ {
		a.ring[a.pos] = (samples[i][0] + samples[i][1]) / 2
		a.pos = (a.pos + 1) % WindowSize
	}
	return n, ok
}

// Err implements beep.Streamer. The analyser itself never fails.
func (a *Analyser) Err() error {
	return nil
}

// Waveform copies the most recent time-domain samples into dst, oldest
// first, and returns how many values were written. Values are mono in
// [-1, 1]. At most WindowSize samples are available.
func (a *Analyser) Waveform(dst []float64) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(dst)
	if n > WindowSize {
		n = WindowSize
	}
	start := a.pos + WindowSize - n
	for i := 0; i < n; i++ {
		dst[i] = a.ring[(start+i)%WindowSize]
	}
	return n
}

// Spectrum writes the current magnitude spectrum into dst, low frequencies
// first, and returns how many bins were written (at most SpectrumBins). Bins
// are normalized to [0, 1] across a [-100, -30] dB range and smoothed
// between frames.
func (a *Analyser) Spectrum(dst []float64) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := 0; i < WindowSize; i++ {
		a.scratch[i] = a.ring[(a.pos+i)%WindowSize]
	}
	window.Blackman(a.scratch)
	a.fft.Coefficients(a.coeffs, a.scratch)

	n := len(dst)
	if n > SpectrumBins {
		n = SpectrumBins
	}
	for i := 0; i < SpectrumBins; i++ {
		mag := cmplx.Abs(a.coeffs[i]) / WindowSize
		a.smoothed[i] = smoothing*a.smoothed[i] + (1-smoothing)*mag
		if i < n {
			dst[i] = normalizeDB(a.smoothed[i])
		}
	}
	return n
}

// Close detaches the analyser: the next Stream call reports drained and the
// master mixer drops it. Safe to call more than once.
func (a *Analyser) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
}

func (a *Analyser) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// normalizeDB maps a linear magnitude onto [0, 1] across the analyser's
// decibel range.
func normalizeDB(mag float64) float64 {
	if mag <= 0 {
		return 0
	}
	db := 20 * math.Log10(mag)
	v := (db - minDB) / (maxDB - minDB)
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
