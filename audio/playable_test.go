package audio

import (
	"errors"
	"math"
	"testing"

	"github.com/gopxl/beep/v2"
)

// toneBuffer builds a decoded buffer holding frames constant samples, the
// shape a loaded clip has.
func toneBuffer(frames int) *beep.Buffer {
	buf := beep.NewBuffer(beep.Format{SampleRate: 44100, NumChannels: 2, Precision: 2})
	written := 0
	buf.Append(beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if written >= frames {
			return 0, false
		}
		n := len(samples)
		if n > frames-written {
			n = frames - written
		}
		for i := 0; i < n; i++ {
			samples[i][0], samples[i][1] = 0.5, 0.5
		}
		written += n
		return n, true
	}))
	return buf
}

// pump streams frames samples out of the tap, draining whatever is attached.
func pump(a *Analyser, frames int) {
	buf := make([][2]float64, 256)
	for frames > 0 {
		n := len(buf)
		if n > frames {
			n = frames
		}
		a.Stream(buf[:n])
		frames -= n
	}
}

func TestPlayableRunsToCompletion(t *testing.T) {
	t.Parallel()
	tap := newAnalyser()
	p, err := newPlayable(toneBuffer(256), false, tap)
	if err != nil {
		t.Fatalf("newPlayable() = %v, want nil", err)
	}
	if err := p.Start(); err != nil {
		t.Fatalf("Start() = %v, want nil", err)
	}

	select {
	case <-p.Done():
		t.Fatal("Done closed before any audio streamed")
	default:
	}

	// Stream past the end of the clip; the completion callback fires from
	// inside the graph.
	pump(tap, 512)

	select {
	case <-p.Done():
	default:
		t.Fatal("Done not closed after the clip played out")
	}
	if got := p.Progress(); got != 1 {
		t.Errorf("Progress() = %v at completion, want 1", got)
	}
}

func TestPlayableProgressTracksPosition(t *testing.T) {
	t.Parallel()
	tap := newAnalyser()
	p, err := newPlayable(toneBuffer(256), false, tap)
	if err != nil {
		t.Fatalf("newPlayable() = %v, want nil", err)
	}
	if got := p.Progress(); got != 0 {
		t.Errorf("Progress() = %v before starting, want 0", got)
	}

	if err := p.Start(); err != nil {
		t.Fatalf("Start() = %v, want nil", err)
	}
	pump(tap, 128)

	if got := p.Progress(); got != 0.5 {
		t.Errorf("Progress() = %v halfway through, want 0.5", got)
	}
}

func TestPlayableProgressUnknownDuration(t *testing.T) {
	t.Parallel()
	tap := newAnalyser()
	p, err := newPlayable(toneBuffer(0), false, tap)
	if err != nil {
		t.Fatalf("newPlayable() = %v, want nil", err)
	}
	if got := p.Progress(); !math.IsNaN(got) {
		t.Errorf("Progress() = %v for an empty clip, want NaN", got)
	}
}

func TestPlayableStopSilencesWithoutDone(t *testing.T) {
	t.Parallel()
	tap := newAnalyser()
	p, err := newPlayable(toneBuffer(256), false, tap)
	if err != nil {
		t.Fatalf("newPlayable() = %v, want nil", err)
	}
	if err := p.Start(); err != nil {
		t.Fatalf("Start() = %v, want nil", err)
	}
	pump(tap, 64)

	p.Stop()
	p.Stop() // idempotent

	// The detached instance streams nothing more; only silence remains.
	buf := make([][2]float64, 64)
	tap.Stream(buf)
	for i, frame := range buf {
		if frame[0] != 0 || frame[1] != 0 {
			t.Fatalf("frame %d = %v after Stop, want silence", i, frame)
		}
	}

	select {
	case <-p.Done():
		t.Error("Done closed by an explicit stop")
	default:
	}
}

func TestPlayableStartTwice(t *testing.T) {
	t.Parallel()
	tap := newAnalyser()
	p, err := newPlayable(toneBuffer(16), false, tap)
	if err != nil {
		t.Fatalf("newPlayable() = %v, want nil", err)
	}
	if err := p.Start(); err != nil {
		t.Fatalf("first Start() = %v, want nil", err)
	}
	if err := p.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() = %v, want ErrAlreadyStarted", err)
	}
}

func TestPlayableStartOnClosedTap(t *testing.T) {
	t.Parallel()
	tap := newAnalyser()
	tap.Close()

	p, err := newPlayable(toneBuffer(16), false, tap)
	if err != nil {
		t.Fatalf("newPlayable() = %v, want nil", err)
	}
	if err := p.Start(); !errors.Is(err, ErrTapClosed) {
		t.Errorf("Start() = %v, want ErrTapClosed", err)
	}
}

func TestPlayableLoopKeepsPlaying(t *testing.T) {
	t.Parallel()
	tap := newAnalyser()
	p, err := newPlayable(toneBuffer(256), true, tap)
	if err != nil {
		t.Fatalf("newPlayable() = %v, want nil", err)
	}
	if err := p.Start(); err != nil {
		t.Fatalf("Start() = %v, want nil", err)
	}

	// Stream well past the clip length: a looping instance neither drains
	// nor completes.
	pump(tap, 256*3+128)

	select {
	case <-p.Done():
		t.Fatal("looping instance reported completion")
	default:
	}
	got := p.Progress()
	if math.IsNaN(got) || got < 0 || got > 1 {
		t.Fatalf("Progress() = %v while looping, want within [0, 1]", got)
	}

	// Still audible after wrapping.
	buf := make([][2]float64, 32)
	tap.Stream(buf)
	if buf[0][0] == 0 {
		t.Error("looping instance went silent after wrapping")
	}
}
