// Package playback tracks which clips of a soundboard are sounding, lets any
// number of instances of the same clip overlap, and notifies subscribers as
// playback starts, progresses and ends. It talks to the audio device only
// through the Output interface, so it carries no audio dependency itself.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// ErrClosed is returned when a manager is used after Close.
var ErrClosed = errors.New("playback manager closed")

// Manager owns all playback state for one output. Every clip key maps to at
// most one session holding that clip's live instances and their shared
// analysis tap; a key is tracked if and only if at least one instance of it
// is sounding.
type Manager struct {
	out    Output
	sched  Scheduler
	logger *slog.Logger
	events *emitter

	mu       sync.Mutex
	sessions map[string]*session
	watching bool
	closed   bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithScheduler replaces the default frame scheduler. Tests use this to
// drive the watch loop by hand.
func WithScheduler(s Scheduler) Option {
	return func(m *Manager) {
		m.sched = s
	}
}

// WithLogger sets the logger used for background activity.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// New creates a Manager that plays through out.
func New(out Output, opts ...Option) *Manager {
	m := &Manager{
		out:      out,
		sched:    NewFrameScheduler(DefaultFrameInterval),
		logger:   slog.With("component", "playback"),
		events:   newEmitter(),
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IsPlaying reports whether at least one instance of key is sounding.
func (m *Manager) IsPlaying(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.sessions[key]
	return ok
}

// Progress returns elapsed/duration for every live instance of key in the
// order the instances started, or nil when the clip is idle. Entries are NaN
// when an instance's duration is unknown.
func (m *Manager) Progress(key string) []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[key]
	if !ok {
		return nil
	}
	return sess.progress()
}

// Analysis returns the tap shared by key's instances, or nil when the clip
// is idle. The tap stays valid until the clip's last instance ends.
func (m *Manager) Analysis(key string) Tap {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[key]
	if !ok {
		return nil
	}
	return sess.tap
}

// Keys returns the keys of every playing clip, sorted.
func (m *Manager) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.sessions))
	for key := range m.sessions {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Toggle is the board's main affordance. Without Spam it keeps at most one
// clip audible: toggling a playing clip stops it, toggling an idle one stops
// everything else and starts it. With Spam one more instance starts on top
// of whatever is already sounding, the clip's own instances included.
//
// Toggle returns once the new instance is audible, or with the reason it
// never started. Nothing is tracked for a failed start.
func (m *Manager) Toggle(ctx context.Context, clip Clip, opts Options) error {
	m.out.Resume()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if !opts.Spam {
		if _, playing := m.sessions[clip.Key]; playing {
			m.stopLocked(clip.Key)
			return nil
		}
		for key := range m.sessions {
			m.stopLocked(key)
		}
	}
	return m.startLocked(ctx, clip, opts)
}

// Stop ends every instance of key immediately. Stopping an idle clip is a
// no-op.
func (m *Manager) Stop(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked(key)
}

// StopAll silences the whole board.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.sessions {
		m.stopLocked(key)
	}
}

// On subscribes to kind events for key. Deliveries never block: the
// subscription buffers a handful of events and drops the rest, so consumers
// must drain promptly and re-pull state instead of counting on every event.
func (m *Manager) On(kind EventKind, key string) *Subscription {
	return m.events.on(kind, key)
}

// Close stops all playback and shuts the manager down. Every subscription
// channel is closed; further calls are no-ops.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	for key := range m.sessions {
		m.stopLocked(key)
	}
	m.mu.Unlock()

	m.events.closeAll()
	return nil
}

// startLocked launches one new instance of clip, creating the session if it
// is the clip's first. On failure no state is left behind: a tap created for
// this start is closed again and no event fires.
func (m *Manager) startLocked(ctx context.Context, clip Clip, opts Options) error {
	sess := m.sessions[clip.Key]

	var tap Tap
	fresh := false
	if sess != nil {
		tap = sess.tap
	} else {
		tap = m.out.NewTap()
		fresh = true
	}

	p, err := m.out.NewPlayable(ctx, clip.URL, opts.Loop, tap)
	if err != nil {
		if fresh {
			tap.Close()
		}
		return fmt.Errorf("failed to load clip %q: %w", clip.Key, err)
	}
	if err := p.Start(); err != nil {
		if fresh {
			tap.Close()
		}
		return fmt.Errorf("failed to start clip %q: %w", clip.Key, err)
	}

	if sess == nil {
		sess = &session{key: clip.Key, tap: tap}
		m.sessions[clip.Key] = sess
	}
	sess.instances = append(sess.instances, &instance{playable: p, loop: opts.Loop})

	m.logger.Debug("clip started",
		slog.String("key", clip.Key),
		slog.Bool("loop", opts.Loop),
		slog.Int("instances", len(sess.instances)))

	m.events.emit(EventPlay, clip.Key)
	m.watchLocked()
	return nil
}

// stopLocked tears down key's session, if any: every instance is stopped,
// the shared tap is closed and a single ended event fires.
func (m *Manager) stopLocked(key string) {
	sess, ok := m.sessions[key]
	if !ok {
		return
	}
	sess.stop()
	m.endSessionLocked(sess)
}

// endSessionLocked removes an empty session from the registry. The ended
// event fires here and nowhere else, so a clip ends exactly once per
// session no matter how its instances went away.
func (m *Manager) endSessionLocked(sess *session) {
	sess.tap.Close()
	delete(m.sessions, sess.key)

	m.logger.Debug("clip ended", slog.String("key", sess.key))
	m.events.emit(EventEnded, sess.key)
}
