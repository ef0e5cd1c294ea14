package playback

import (
	"context"
	"time"
)

// Clip identifies one playable sound: a key unique across the board and the
// location of its audio data. Clips are supplied by the caller; the manager
// only tracks playback state for them.
type Clip struct {
	Key string
	URL string
}

// Options control how Toggle starts playback.
type Options struct {
	// Spam starts an additional overlapping instance instead of toggling,
	// leaving everything already sounding untouched.
	Spam bool

	// Loop makes the new instance repeat until it is stopped.
	Loop bool
}

// Output is the host audio subsystem the manager plays through. An Output
// owns the shared gain stage and output device; the manager never touches
// them directly.
type Output interface {
	// Resume asks a suspended output to start running. Best effort: it must
	// not block the caller and failures are not reported, since the next
	// toggle retries anyway.
	Resume()

	// NewTap creates an analysis tap routed into the output's gain stage.
	// The tap streams silence until playables are connected to it.
	NewTap() Tap

	// NewPlayable constructs a playable bound to url, connected to tap and
	// looping if requested. The tap must have been created by this Output.
	// Decode and fetch failures surface here; the playable stays silent
	// until Start.
	NewPlayable(ctx context.Context, url string, loop bool, tap Tap) (Playable, error)
}

// Playable is one sounding occurrence of a clip.
type Playable interface {
	// Start begins playback. An error means playback never began and the
	// playable can be discarded.
	Start() error

	// Stop silences and detaches the playable, releasing its stream. Safe to
	// call repeatedly and concurrently with natural completion.
	Stop()

	// Progress reports elapsed/duration in [0, 1] for this instance. The
	// value is NaN when the duration is unknown; callers must tolerate it.
	Progress() float64

	// Done is closed exactly once when playback ends on its own. An
	// explicitly stopped playable never closes it.
	Done() <-chan struct{}
}

// Tap exposes frequency and waveform data for everything currently sounding
// of one clip. All overlapping instances of a clip feed the same tap;
// instances of different clips never share one.
type Tap interface {
	// Waveform copies the most recent time-domain samples into dst, oldest
	// first, and returns how many values were written.
	Waveform(dst []float64) int

	// Spectrum copies the current magnitude spectrum into dst, low
	// frequencies first, and returns how many bins were written.
	Spectrum(dst []float64) int

	// Close detaches the tap from the output graph. Safe to call more than
	// once.
	Close()
}

// Scheduler invokes callbacks roughly once per display refresh. The progress
// watch loop reschedules itself through it one frame at a time.
type Scheduler interface {
	AfterFrame(fn func())
}

// DefaultFrameInterval approximates one display refresh at 60 Hz.
const DefaultFrameInterval = time.Second / 60

// frameScheduler fires callbacks off a one-shot timer per frame.
type frameScheduler struct {
	interval time.Duration
}

// NewFrameScheduler returns a Scheduler that fires callbacks every interval.
// A non-positive interval falls back to DefaultFrameInterval.
func NewFrameScheduler(interval time.Duration) Scheduler {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &frameScheduler{interval: interval}
}

func (s *frameScheduler) AfterFrame(fn func()) {
	time.AfterFunc(s.interval, fn)
}
