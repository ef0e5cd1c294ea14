package playback

import (
	"context"
	"sync"
	"testing"
)

// fakeOutput implements Output entirely in memory so manager behavior can be
// tested without an audio device.
type fakeOutput struct {
	mu        sync.Mutex
	taps      []*fakeTap
	playables []*fakePlayable
	resumes   int
	loadErr   error
	startErr  error
}

func newFakeOutput() *fakeOutput {
	return &fakeOutput{}
}

func (o *fakeOutput) Resume() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resumes++
}

func (o *fakeOutput) NewTap() Tap {
	o.mu.Lock()
	defer o.mu.Unlock()
	t := &fakeTap{}
	o.taps = append(o.taps, t)
	return t
}

func (o *fakeOutput) NewPlayable(_ context.Context, url string, loop bool, tap Tap) (Playable, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.loadErr != nil {
		err := o.loadErr
		o.loadErr = nil
		return nil, err
	}
	p := &fakePlayable{
		url:      url,
		loop:     loop,
		tap:      tap.(*fakeTap),
		done:     make(chan struct{}),
		progress: 0.25,
		startErr: o.startErr,
	}
	o.startErr = nil
	o.playables = append(o.playables, p)
	return p, nil
}

// failNextLoad makes the next NewPlayable call fail with err.
func (o *fakeOutput) failNextLoad(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.loadErr = err
}

// failNextStart makes the next playable's Start call fail with err.
func (o *fakeOutput) failNextStart(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.startErr = err
}

func (o *fakeOutput) tapCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.taps)
}

func (o *fakeOutput) playable(i int) *fakePlayable {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.playables[i]
}

func (o *fakeOutput) playableCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.playables)
}

type fakeTap struct {
	mu     sync.Mutex
	closes int
}

func (t *fakeTap) Waveform(dst []float64) int {
	for i := range dst {
		dst[i] = 0.5
	}
	return len(dst)
}

func (t *fakeTap) Spectrum(dst []float64) int {
	for i := range dst {
		dst[i] = 0.25
	}
	return len(dst)
}

func (t *fakeTap) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closes++
}

func (t *fakeTap) closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closes > 0
}

type fakePlayable struct {
	url  string
	loop bool
	tap  *fakeTap

	done     chan struct{}
	endOnce  sync.Once
	startErr error

	mu       sync.Mutex
	started  bool
	stops    int
	progress float64
}

func (p *fakePlayable) Start() error {
	if p.startErr != nil {
		return p.startErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = true
	return nil
}

func (p *fakePlayable) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
}

func (p *fakePlayable) Progress() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

func (p *fakePlayable) Done() <-chan struct{} {
	return p.done
}

// finish simulates the playable running out on its own. Extra calls model a
// duplicate completion signal and must stay harmless.
func (p *fakePlayable) finish() {
	p.endOnce.Do(func() {
		close(p.done)
	})
}

func (p *fakePlayable) setProgress(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress = v
}

func (p *fakePlayable) stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stops > 0
}

// manualScheduler lets tests advance watch frames by hand.
type manualScheduler struct {
	mu    sync.Mutex
	queue []func()
}

func (s *manualScheduler) AfterFrame(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, fn)
}

// step runs the oldest scheduled frame and reports whether one was pending.
func (s *manualScheduler) step() bool {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return false
	}
	fn := s.queue[0]
	s.queue = s.queue[1:]
	s.mu.Unlock()

	fn()
	return true
}

func (s *manualScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// newTestManager wires a manager to in-memory fakes with a hand-driven
// scheduler.
func newTestManager(t *testing.T) (*Manager, *fakeOutput, *manualScheduler) {
	t.Helper()
	out := newFakeOutput()
	sched := &manualScheduler{}
	m := New(out, WithScheduler(sched))
	t.Cleanup(func() {
		if err := m.Close(); err != nil {
			t.Errorf("Close() = %v, want nil", err)
		}
	})
	return m, out, sched
}

// drain empties a subscription channel, returning how many events were
// buffered.
func drain(s *Subscription) int {
	n := 0
	for {
		select {
		case <-s.C:
			n++
		default:
			return n
		}
	}
}
