package player

import "sync"

// Status is a point-in-time view of the player.
type Status struct {
	Connected bool
	Source    string
	Time      float64
	Duration  float64
	Playing   bool
	Ended     bool
}

// StatusFrom builds a Status from a status response.
func StatusFrom(resp Response) Status {
	st := Status{Connected: true, Source: resp.Source}
	if resp.Time != nil {
		st.Time = *resp.Time
	}
	if resp.Duration != nil {
		st.Duration = *resp.Duration
	}
	if resp.Playing != nil {
		st.Playing = *resp.Playing
	}
	return st
}

// Attached reports whether audio is loaded and reachable.
func (s Status) Attached() bool { return s.Connected && s.Source != "" }

// CurrentTime returns the playback position in seconds.
func (s Status) CurrentTime() float64 { return s.Time }

// Apply returns the status after ev.
func (s Status) Apply(ev Event) Status {
	if ev.Time != nil {
		s.Time = *ev.Time
	}
	if ev.Source != "" {
		s.Source = ev.Source
	}
	switch ev.Event {
	case EventPlay:
		s.Playing = true
		s.Ended = false
	case EventPause:
		s.Playing = false
	case EventSeeked:
		s.Ended = false
	case EventDurationChange:
		if ev.Duration != nil {
			s.Duration = *ev.Duration
		}
	case EventEnded:
		s.Playing = false
		s.Ended = true
		if s.Duration > 0 {
			s.Time = s.Duration
		}
	}
	return s
}

// Tracker keeps a live Status fed by daemon responses and events. It is a
// recording session's playback source: CurrentTime is read at each tap.
type Tracker struct {
	mu sync.RWMutex
	st Status
}

// Set replaces the tracked status.
func (t *Tracker) Set(st Status) {
	t.mu.Lock()
	t.st = st
	t.mu.Unlock()
}

// Apply folds ev into the tracked status and returns the result.
func (t *Tracker) Apply(ev Event) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.st = t.st.Apply(ev)
	return t.st
}

// Disconnect marks the player unreachable, keeping the last known position.
func (t *Tracker) Disconnect() {
	t.mu.Lock()
	t.st.Connected = false
	t.st.Playing = false
	t.mu.Unlock()
}

// Status returns the tracked status.
func (t *Tracker) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.st
}

// Attached reports whether the tracked player has audio loaded.
func (t *Tracker) Attached() bool { return t.Status().Attached() }

// CurrentTime returns the tracked playback position.
func (t *Tracker) CurrentTime() float64 { return t.Status().Time }
