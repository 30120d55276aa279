// Package state holds the shared playback state every view renders from:
// the current time and the active segment and station it maps to.
//
// Only two writers recompute the active segment: Tick, driven by playback
// time updates, and SetPoints, driven by a committed recording, an import or
// the initial load. Views read snapshots and never write.
package state

import (
	"sort"
	"sync"

	"github.com/damgoweb/tokaido-orai/internal/catalog"
	"github.com/damgoweb/tokaido-orai/internal/syncpoint"
)

// Snapshot is an immutable copy of the shared state.
type Snapshot struct {
	Time       float64
	Duration   float64
	Playing    bool
	SegmentID  string
	StationID  int
	HasSegment bool
	HasStation bool
	PointCount int
	Version    uint64 // increments on every change
}

// Store is the observable shared state. It is safe for concurrent use.
type Store struct {
	catalog *catalog.Catalog

	mu     sync.RWMutex
	snap   Snapshot
	points []syncpoint.Point
	subs   map[int]*subscriber
	nextID int
}

type subscriber struct {
	name string
	ch   chan Snapshot
}

// New creates a Store resolving stations through cat. cat may be nil, in
// which case no station is ever active.
func New(cat *catalog.Catalog) *Store {
	return &Store{catalog: cat, subs: make(map[int]*subscriber)}
}

// Tick records a playback time update and recomputes the active segment.
func (s *Store) Tick(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Time = t
	s.resolve()
	s.publish()
}

// SetPoints replaces the sync points views resolve against. points are
// sorted before use.
func (s *Store) SetPoints(points []syncpoint.Point) {
	sorted := syncpoint.Sort(points)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = sorted
	s.snap.PointCount = len(sorted)
	s.resolve()
	s.publish()
}

// SetPlaying records a play or pause.
func (s *Store) SetPlaying(playing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.Playing == playing {
		return
	}
	s.snap.Playing = playing
	s.publish()
}

// SetDuration records the loaded media duration.
func (s *Store) SetDuration(d float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.Duration == d {
		return
	}
	s.snap.Duration = d
	s.publish()
}

// resolve recomputes the active segment and station. Caller holds mu.
func (s *Store) resolve() {
	id, ok := syncpoint.ActiveSegmentAt(s.snap.Time, s.points)
	s.snap.SegmentID = id
	s.snap.HasSegment = ok
	s.snap.StationID, s.snap.HasStation = 0, false
	if ok {
		s.snap.StationID, s.snap.HasStation = s.catalog.StationForSegment(id)
	}
}

// publish delivers the snapshot to every subscriber. A subscriber that has
// not read the previous snapshot has it replaced, so delivery never blocks.
// Caller holds mu.
func (s *Store) publish() {
	s.snap.Version++
	snap := s.snap
	for _, sub := range s.subs {
		select {
		case sub.ch <- snap:
		default:
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- snap:
			default:
			}
		}
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Points returns a copy of the sorted sync points.
func (s *Store) Points() []syncpoint.Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]syncpoint.Point, len(s.points))
	copy(out, s.points)
	return out
}

// Subscribe returns a channel receiving the latest snapshot after every
// change, primed with the current one. cancel closes the channel.
func (s *Store) Subscribe(name string) (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	sub := &subscriber{name: name, ch: make(chan Snapshot, 1)}
	sub.ch <- s.snap
	s.subs[id] = sub

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Subscribers returns the names of current subscribers, sorted.
func (s *Store) Subscribers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.subs))
	for _, sub := range s.subs {
		names = append(names, sub.name)
	}
	sort.Strings(names)
	return names
}
