// Package recorder implements the manual sync authoring session: while the
// narration plays, the author taps once per segment and each tap records
// the current playback time against the next segment in catalog order.
package recorder

import (
	"context"
	"fmt"
	"sync"

	"github.com/damgoweb/tokaido-orai/internal/catalog"
	"github.com/damgoweb/tokaido-orai/internal/syncpoint"
)

// State is the session lifecycle state.
type State int

const (
	Idle State = iota
	Recording
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// PlaybackSource is the audio the session records against.
type PlaybackSource interface {
	Attached() bool
	CurrentTime() float64
}

// Committer persists a finished session.
type Committer interface {
	ReplaceAll(ctx context.Context, points []syncpoint.Point) error
}

// Session is a sync recording session. It is safe for concurrent use.
type Session struct {
	catalog   *catalog.Catalog
	committer Committer

	mu         sync.Mutex
	state      State
	source     PlaybackSource
	cursor     int
	buffer     []syncpoint.Point
	committing bool
	commitGen  uint64 // generation being committed
	generation uint64 // bumped on start and discard
}

// New creates an idle session over cat that commits to c.
func New(cat *catalog.Catalog, c Committer) *Session {
	return &Session{catalog: cat, committer: c}
}

// Start begins recording from the first catalog segment. It requires an
// attached playback source; otherwise it returns a *PreconditionError and
// leaves the session untouched. Starting while already recording restarts.
func (s *Session) Start(src PlaybackSource) error {
	if src == nil || !src.Attached() {
		return &syncpoint.PreconditionError{Reason: "start recording", Err: syncpoint.ErrNoPlaybackSource}
	}
	if s.catalog == nil || s.catalog.Len() == 0 {
		return &syncpoint.PreconditionError{Reason: "start recording: catalog is empty"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Recording
	s.source = src
	s.cursor = 0
	s.buffer = nil
	s.generation++
	return nil
}

// RecordNext anchors the next segment at time t and advances the cursor.
// Once every segment is recorded it returns syncpoint.ErrNothingLeft and
// records nothing. Taps are refused while this session's buffer is being
// committed, since the write has already taken its copy.
func (s *Session) RecordNext(t float64) (syncpoint.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Recording {
		return syncpoint.Point{}, &syncpoint.PreconditionError{Reason: "record next", Err: syncpoint.ErrNotRecording}
	}
	if s.committing && s.commitGen == s.generation {
		return syncpoint.Point{}, &syncpoint.PreconditionError{Reason: "record next: commit in progress"}
	}
	if s.cursor >= s.catalog.Len() {
		return syncpoint.Point{}, syncpoint.ErrNothingLeft
	}
	if verr := syncpoint.CheckTime(t); verr != nil {
		return syncpoint.Point{}, verr
	}

	p := syncpoint.Point{Time: t, SegmentID: s.catalog.At(s.cursor).ID}
	s.buffer = append(s.buffer, p)
	s.cursor++
	return p, nil
}

// RecordNow records the next segment at the playback source's current time.
func (s *Session) RecordNow() (syncpoint.Point, error) {
	s.mu.Lock()
	src := s.source
	s.mu.Unlock()
	if src == nil {
		return syncpoint.Point{}, &syncpoint.PreconditionError{Reason: "record next", Err: syncpoint.ErrNotRecording}
	}
	return s.RecordNext(src.CurrentTime())
}

// Commit sorts the buffer by time and replaces the stored sync points with
// it, then returns to Idle. If the write fails the session stays in
// Recording with the buffer intact so Commit can be retried.
//
// A Discard or Start while the write is in flight does not cancel it, but
// the finished commit then leaves the new session alone.
func (s *Session) Commit(ctx context.Context) ([]syncpoint.Point, error) {
	s.mu.Lock()
	if s.state != Recording {
		s.mu.Unlock()
		return nil, &syncpoint.PreconditionError{Reason: "commit", Err: syncpoint.ErrNotRecording}
	}
	if s.committing {
		s.mu.Unlock()
		return nil, &syncpoint.PreconditionError{Reason: "commit already in progress"}
	}
	points := syncpoint.Sort(s.buffer)
	gen := s.generation
	s.committing = true
	s.commitGen = gen
	s.mu.Unlock()

	err := s.committer.ReplaceAll(ctx, points)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.committing = false
	if err != nil {
		return nil, fmt.Errorf("commit sync points: %w", err)
	}
	if s.generation == gen {
		s.state = Idle
		s.buffer = nil
		s.cursor = 0
		s.source = nil
	}
	return points, nil
}

// Discard drops the buffer and returns to Idle without persisting.
func (s *Session) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Idle
	s.buffer = nil
	s.cursor = 0
	s.source = nil
	s.generation++
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cursor returns the index of the next segment to record.
func (s *Session) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Total returns the number of segments in the catalog.
func (s *Session) Total() int {
	if s.catalog == nil {
		return 0
	}
	return s.catalog.Len()
}

// Next returns the segment the next tap will record.
func (s *Session) Next() (catalog.Segment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Recording || s.cursor >= s.catalog.Len() {
		return catalog.Segment{}, false
	}
	return s.catalog.At(s.cursor), true
}

// Buffer returns a copy of the points recorded so far, in tap order.
func (s *Session) Buffer() []syncpoint.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]syncpoint.Point, len(s.buffer))
	copy(out, s.buffer)
	return out
}

// Committing reports whether a commit is in flight.
func (s *Session) Committing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committing
}
