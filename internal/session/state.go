// Package session holds the editor state shared by the timeline, the
// playback clock and the interaction controller. It replaces process-wide
// globals with one owned container that is passed explicitly.
package session

import "sync"

// Snapshot is an immutable copy of the state
type Snapshot struct {
	CurrentTime float64
	Playing     bool
	Language    string
}

// State holds the current playback position (timeline pixels), the playing
// flag and the selected transcript language.
type State struct {
	mu          sync.RWMutex
	currentTime float64
	playing     bool
	language    string
	subscribers []func(Snapshot)
}

// New creates a state positioned at zero with the given language
func New(language string) *State {
	return &State{language: language}
}

// Snapshot returns a consistent copy of the state
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// CurrentTime returns the playback position in timeline pixels
func (s *State) CurrentTime() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentTime
}

// SetCurrentTime moves the playback position. Negative values clamp to zero.
func (s *State) SetCurrentTime(t float64) {
	if t < 0 {
		t = 0
	}
	s.update(func() bool {
		if s.currentTime == t {
			return false
		}
		s.currentTime = t
		return true
	})
}

// Advance moves the position forward by delta. When the new position reaches
// maxEnd, playback stops and the position wraps to zero; wrapped is true then.
func (s *State) Advance(delta, maxEnd float64) (wrapped bool) {
	s.update(func() bool {
		next := s.currentTime + delta
		if next >= maxEnd {
			s.playing = false
			s.currentTime = 0
			wrapped = true
			return true
		}
		s.currentTime = next
		return true
	})
	return wrapped
}

// Playing reports whether playback is active
func (s *State) Playing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.playing
}

// SetPlaying sets the playing flag
func (s *State) SetPlaying(playing bool) {
	s.update(func() bool {
		if s.playing == playing {
			return false
		}
		s.playing = playing
		return true
	})
}

// Language returns the selected transcript language
func (s *State) Language() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.language
}

// SetLanguage selects the transcript language shown on the canvas
func (s *State) SetLanguage(lang string) {
	s.update(func() bool {
		if s.language == lang {
			return false
		}
		s.language = lang
		return true
	})
}

// Subscribe registers a callback invoked with a snapshot after each change
func (s *State) Subscribe(fn func(Snapshot)) {
	s.mu.Lock()
	s.subscribers = append(s.subscribers, fn)
	s.mu.Unlock()
}

func (s *State) update(mutate func() bool) {
	s.mu.Lock()
	changed := mutate()
	snap := s.snapshotLocked()
	subs := append([]func(Snapshot){}, s.subscribers...)
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range subs {
		fn(snap)
	}
}

func (s *State) snapshotLocked() Snapshot {
	return Snapshot{
		CurrentTime: s.currentTime,
		Playing:     s.playing,
		Language:    s.language,
	}
}
