package playback

// instance is one sounding occurrence of a clip. It exists from the moment
// its playable started until teardown removes it.
type instance struct {
	playable Playable
	loop     bool
}

// session tracks every live instance of one clip together with their shared
// analysis tap. A session exists exactly as long as it has instances; the
// manager creates it with the first and removes it with the last.
type session struct {
	key       string
	tap       Tap
	instances []*instance
}

// progress reports elapsed/duration per instance, in starting order.
func (s *session) progress() []float64 {
	out := make([]float64, len(s.instances))
	for i, in := range s.instances {
		out[i] = in.playable.Progress()
	}
	return out
}

// reap drops every instance whose playable finished on its own, stopping it
// to release the underlying stream. It reports whether any instance remains.
func (s *session) reap() bool {
	live := s.instances[:0]
	for _, in := range s.instances {
		select {
		case <-in.playable.Done():
			in.playable.Stop()
		default:
			live = append(live, in)
		}
	}
	for i := len(live); i < len(s.instances); i++ {
		s.instances[i] = nil
	}
	s.instances = live
	return len(live) > 0
}

// stop ends every instance immediately.
func (s *session) stop() {
	for _, in := range s.instances {
		in.playable.Stop()
	}
	s.instances = nil
}
