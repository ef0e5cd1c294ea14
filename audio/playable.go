package audio

import (
	"fmt"
	"math"
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"

	"clipdeck/playback"
)

// Playable is one sounding occurrence of a clip, built over the clip's
// decoded buffer so overlapping instances never decode twice. Its streamer
// chain is buffer slice, optional loop, an end-of-stream callback and a
// control wrapper used to detach it again.
type Playable struct {
	tap    *Analyser
	seeker beep.StreamSeeker
	ctrl   *beep.Ctrl
	loop   bool

	done    chan struct{}
	endOnce sync.Once

	mu      sync.Mutex
	started bool
	stopped bool
}

var _ playback.Playable = (*Playable)(nil)

func newPlayable(buf *beep.Buffer, loop bool, tap *Analyser) (*Playable, error) {
	p := &Playable{
		tap:  tap,
		loop: loop,
		done: make(chan struct{}),
	}
	p.seeker = buf.Streamer(0, buf.Len())

	var body beep.Streamer = p.seeker
	if loop {
		looped, err := beep.Loop2(p.seeker)
		if err != nil {
			return nil, fmt.Errorf("failed to loop stream: %w", err)
		}
		body = looped
	}

	// The callback runs on the speaker goroutine with the speaker locked; it
	// must only signal, never call back into playback state.
	p.ctrl = &beep.Ctrl{Streamer: beep.Seq(body, beep.Callback(p.markDone))}
	return p, nil
}

func (p *Playable) markDone() {
	p.endOnce.Do(func() {
		close(p.done)
	})
}

// Start makes the instance audible by attaching it to its tap.
func (p *Playable) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrAlreadyStarted
	}
	if p.tap.isClosed() {
		return ErrTapClosed
	}
	p.started = true
	p.tap.attach(p.ctrl)
	return nil
}

// Stop silences and detaches the instance. Safe to call repeatedly and after
// natural completion.
func (p *Playable) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	speaker.Lock()
	p.ctrl.Streamer = nil
	speaker.Unlock()
}

// Progress reports elapsed/duration in [0, 1]. A looping instance reports
// progress within its current pass. NaN when the buffer length is unknown.
func (p *Playable) Progress() float64 {
	speaker.Lock()
	pos, length := p.seeker.Position(), p.seeker.Len()
	speaker.Unlock()

	if length <= 0 {
		return math.NaN()
	}
	return float64(pos) / float64(length)
}

// Done is closed when the instance plays out on its own. A stopped instance
// never closes it.
func (p *Playable) Done() <-chan struct{} {
	return p.done
}
