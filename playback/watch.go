package playback

// watchLocked makes sure the progress loop is scheduled. The loop starts
// lazily with the first playing clip; calling this while it already runs is
// a no-op, so overlapping starts never pile up extra frames.
func (m *Manager) watchLocked() {
	if m.watching || m.closed || len(m.sessions) == 0 {
		return
	}
	m.watching = true
	m.sched.AfterFrame(m.tick)
}

// tick advances the watch loop by one frame: instances that finished on
// their own are reaped, every clip still playing gets a progress event, and
// the loop reschedules itself. Once the registry drains the loop parks
// until the next start.
func (m *Manager) tick() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		m.watching = false
		return
	}

	for _, sess := range m.sessions {
		if !sess.reap() {
			m.endSessionLocked(sess)
		}
	}

	if len(m.sessions) == 0 {
		m.watching = false
		return
	}
	for key := range m.sessions {
		m.events.emit(EventProgress, key)
	}
	m.sched.AfterFrame(m.tick)
}
