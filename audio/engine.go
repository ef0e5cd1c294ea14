// Package audio implements the output side of the board with beep: one
// speaker, one master mixer and one gain stage shared by every clip. Each
// playing clip hangs off the master through its own analysis tap, so
// overlapping instances of a clip are mixed before they are analysed.
package audio

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"

	"clipdeck/playback"
)

// Config controls the output device and gain stage.
type Config struct {
	// SampleRate is the output rate in Hz. Sources at other rates are
	// resampled while decoding.
	SampleRate int

	// Buffer is the speaker buffer length. Larger values survive scheduling
	// hiccups, smaller ones react faster.
	Buffer time.Duration

	// Volume is the linear master gain in [0, 1].
	Volume float64

	// Mute silences the output without tearing the graph down.
	Mute bool
}

// DefaultConfig returns the engine defaults used by the board.
func DefaultConfig() Config {
	return Config{
		SampleRate: 44100,
		Buffer:     100 * time.Millisecond,
		Volume:     1.0,
	}
}

// Engine owns the process-wide output graph. Create at most one per process:
// it initializes the speaker, which is global.
type Engine struct {
	sampleRate beep.SampleRate
	master     *beep.Mixer
	gain       *effects.Volume
	loader     *Loader
	logger     *slog.Logger

	mu     sync.Mutex
	closed bool
}

var _ playback.Output = (*Engine)(nil)

// NewEngine initializes the output device and builds the shared graph.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultConfig().SampleRate
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultConfig().Buffer
	}

	sr := beep.SampleRate(cfg.SampleRate)
	if err := speaker.Init(sr, sr.N(cfg.Buffer)); err != nil {
		return nil, fmt.Errorf("failed to initialize speaker: %w", err)
	}

	e := &Engine{
		sampleRate: sr,
		master:     &beep.Mixer{},
		loader:     NewLoader(sr),
		logger:     slog.With("component", "audio"),
	}
	e.gain = &effects.Volume{
		Streamer: e.master,
		Base:     2,
		Volume:   gainExponent(cfg.Volume),
		Silent:   cfg.Mute || cfg.Volume <= 0,
	}
	speaker.Play(e.gain)

	e.logger.Info("audio engine ready",
		slog.Int("sample_rate", cfg.SampleRate),
		slog.Duration("buffer", cfg.Buffer))
	return e, nil
}

// SampleRate returns the output rate of the graph.
func (e *Engine) SampleRate() beep.SampleRate {
	return e.sampleRate
}

// Resume restarts a suspended output device. Fire and forget: the device may
// simply not be suspended, and the next toggle retries anyway.
func (e *Engine) Resume() {
	go func() {
		if err := speaker.Resume(); err != nil {
			e.logger.Debug("speaker resume", slog.Any("error", err))
		}
	}()
}

// Suspend pauses the output device until Resume. Playback state is kept.
func (e *Engine) Suspend() error {
	if err := speaker.Suspend(); err != nil {
		return fmt.Errorf("failed to suspend speaker: %w", err)
	}
	return nil
}

// NewTap creates an analysis tap feeding the master mixer. The tap streams
// silence until playables are connected to it.
func (e *Engine) NewTap() playback.Tap {
	t := newAnalyser()
	speaker.Lock()
	e.master.Add(t)
	speaker.Unlock()
	return t
}

// NewPlayable decodes the clip at url through the loader cache and builds a
// fresh instance of it wired into tap. The instance is silent until Start.
func (e *Engine) NewPlayable(ctx context.Context, url string, loop bool, tap playback.Tap) (playback.Playable, error) {
	analyser, ok := tap.(*Analyser)
	if !ok {
		return nil, ErrForeignTap
	}
	buf, err := e.loader.Load(ctx, url)
	if err != nil {
		return nil, err
	}
	return newPlayable(buf, loop, analyser)
}

// Preload decodes every source into the cache ahead of playback and returns
// how many loaded. Failures are logged and skipped so one broken clip does
// not block the rest of the board.
func (e *Engine) Preload(ctx context.Context, urls []string) int {
	loaded := 0
	for _, url := range urls {
		if _, err := e.loader.Load(ctx, url); err != nil {
			e.logger.Warn("failed to preload clip",
				slog.String("url", url),
				slog.Any("error", err))
			continue
		}
		loaded++
	}
	return loaded
}

// SetVolume adjusts the master gain (0.0 to 1.0) while playing.
func (e *Engine) SetVolume(volume float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	speaker.Lock()
	e.gain.Volume = gainExponent(volume)
	e.gain.Silent = volume <= 0
	speaker.Unlock()
}

// Volume reports the current linear master gain.
func (e *Engine) Volume() float64 {
	speaker.Lock()
	defer speaker.Unlock()

	if e.gain.Silent {
		return 0
	}
	return math.Pow(e.gain.Base, e.gain.Volume)
}

// Close silences the graph and shuts the output device down.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	speaker.Lock()
	e.master.Clear()
	speaker.Unlock()
	speaker.Close()

	e.logger.Info("audio engine closed")
	return nil
}

// gainExponent converts a linear gain in (0, 1] to the exponent the volume
// effect expects. effects.Volume scales by Base**Volume, so with Base 2 the
// exponent log2(v) reproduces v exactly.
func gainExponent(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Log2(v)
}
