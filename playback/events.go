package playback

import "sync"

// EventKind enumerates the playback lifecycle notifications the manager
// emits.
type EventKind int

const (
	// EventPlay fires after a new instance of a clip has started sounding.
	EventPlay EventKind = iota

	// EventProgress fires once per watch frame for every clip that is
	// playing. Subscribers pull Progress or Analysis when they receive it.
	EventProgress

	// EventEnded fires when the last instance of a clip has finished, by
	// running out or by being stopped.
	EventEnded
)

// String returns a human-readable name for the event kind.
func (k EventKind) String() string {
	switch k {
	case EventPlay:
		return "play"
	case EventProgress:
		return "progress"
	case EventEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Event is one notification. It carries no payload beyond the clip key;
// subscribers re-query the manager for current state.
type Event struct {
	Kind EventKind
	Key  string
}

// subscriptionBuffer is how many undelivered events a subscription holds
// before further deliveries are dropped.
const subscriptionBuffer = 16

// subKey routes events to the subscriptions of one (kind, clip) pair.
type subKey struct {
	kind EventKind
	key  string
}

// Subscription receives the events of a single (kind, clip) pair on C. The
// channel is closed by Off and by the manager shutting down; draining it
// with range is safe either way.
type Subscription struct {
	C <-chan Event

	c  chan Event
	em *emitter
	id subKey
}

// Off unregisters the subscription and closes its channel. Events already
// buffered remain readable. Calling Off more than once is a no-op.
func (s *Subscription) Off() {
	s.em.off(s)
}

// emitter is a keyed multi-map from (kind, clip) to subscriptions.
type emitter struct {
	mu     sync.Mutex
	subs   map[subKey][]*Subscription
	closed bool
}

func newEmitter() *emitter {
	return &emitter{subs: make(map[subKey][]*Subscription)}
}

// on registers a new subscription for (kind, key). On a closed emitter the
// returned subscription's channel is already closed.
func (e *emitter) on(kind EventKind, key string) *Subscription {
	s := &Subscription{
		c:  make(chan Event, subscriptionBuffer),
		em: e,
		id: subKey{kind: kind, key: key},
	}
	s.C = s.c

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		close(s.c)
		return s
	}
	e.subs[s.id] = append(e.subs[s.id], s)
	return s
}

func (e *emitter) off(s *Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()
	subs := e.subs[s.id]
	for i, cur := range subs {
		if cur != s {
			continue
		}
		e.subs[s.id] = append(subs[:i], subs[i+1:]...)
		if len(e.subs[s.id]) == 0 {
			delete(e.subs, s.id)
		}
		close(s.c)
		return
	}
}

// emit delivers an event to every subscription of (kind, key). Sends never
// block: a subscriber that stopped draining loses events rather than
// stalling playback.
func (e *emitter) emit(kind EventKind, key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.subs[subKey{kind: kind, key: key}] {
		select {
		case s.c <- Event{Kind: kind, Key: key}:
		default:
		}
	}
}

// closeAll closes every subscription channel and refuses new registrations.
func (e *emitter) closeAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	for id, subs := range e.subs {
		for _, s := range subs {
			close(s.c)
		}
		delete(e.subs, id)
	}
}
