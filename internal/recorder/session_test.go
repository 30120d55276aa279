package recorder

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/damgoweb/tokaido-orai/internal/catalog"
	"github.com/damgoweb/tokaido-orai/internal/syncpoint"
)

type fakeSource struct {
	attached bool
	now      float64
}

func (f *fakeSource) Attached() bool       { return f.attached }
func (f *fakeSource) CurrentTime() float64 { return f.now }

// memStore is a Committer that can be told to fail or to block.
type memStore struct {
	mu      sync.Mutex
	points  []syncpoint.Point
	fail    error
	calls   int
	release chan struct{}
	entered chan struct{}
}

func (m *memStore) ReplaceAll(_ context.Context, points []syncpoint.Point) error {
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.release != nil {
		<-m.release
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.fail != nil {
		return m.fail
	}
	m.points = append([]syncpoint.Point(nil), points...)
	return nil
}

func threeSegments(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]catalog.Segment{
		{ID: "s1", StationID: 0, Text: "一"},
		{ID: "s2", StationID: 1, Text: "二"},
		{ID: "s3", StationID: 1, Text: "三"},
	}, []catalog.Station{{ID: 0, Name: "日本橋"}, {ID: 1, Name: "品川"}})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return cat
}

func TestSessionScenario(t *testing.T) {
	store := &memStore{}
	s := New(threeSegments(t), store)
	src := &fakeSource{attached: true}

	if err := s.Start(src); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, tap := range []float64{0, 12.5, 30} {
		if _, err := s.RecordNext(tap); err != nil {
			t.Fatalf("RecordNext(%v): %v", tap, err)
		}
	}
	if _, err := s.RecordNext(31); !errors.Is(err, syncpoint.ErrNothingLeft) {
		t.Errorf("fourth tap error = %v, want ErrNothingLeft", err)
	}
	if len(s.Buffer()) != 3 {
		t.Errorf("buffer has %d points after extra tap, want 3", len(s.Buffer()))
	}

	got, err := s.Commit(context.Background())
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	want := []syncpoint.Point{{Time: 0, SegmentID: "s1"}, {Time: 12.5, SegmentID: "s2"}, {Time: 30, SegmentID: "s3"}}
	for i := range want {
		if got[i] != want[i] || store.points[i] != want[i] {
			t.Errorf("points[%d] = %+v (stored %+v), want %+v", i, got[i], store.points[i], want[i])
		}
	}
	if s.State() != Idle {
		t.Errorf("State() = %v, want idle", s.State())
	}
	if len(s.Buffer()) != 0 {
		t.Error("buffer should be cleared after commit")
	}

	if id, _ := syncpoint.ActiveSegmentAt(15, store.points); id != "s2" {
		t.Errorf("ActiveSegmentAt(15) = %q, want s2", id)
	}
}

func TestStartRequiresPlaybackSource(t *testing.T) {
	s := New(threeSegments(t), &memStore{})

	for _, src := range []PlaybackSource{nil, &fakeSource{attached: false}} {
		err := s.Start(src)
		if !errors.Is(err, syncpoint.ErrNoPlaybackSource) || !syncpoint.IsPrecondition(err) {
			t.Errorf("Start(%v) error = %v, want precondition", src, err)
		}
		if s.State() != Idle {
			t.Errorf("State() = %v, want idle", s.State())
		}
	}
}

func TestRecordNextWhileIdle(t *testing.T) {
	s := New(threeSegments(t), &memStore{})
	if _, err := s.RecordNext(1); !errors.Is(err, syncpoint.ErrNotRecording) {
		t.Errorf("RecordNext error = %v, want ErrNotRecording", err)
	}
	if _, err := s.Commit(context.Background()); !syncpoint.IsPrecondition(err) {
		t.Errorf("Commit error = %v, want precondition", err)
	}
}

func TestRecordNextRejectsBadTime(t *testing.T) {
	s := New(threeSegments(t), &memStore{})
	s.Start(&fakeSource{attached: true})

	if _, err := s.RecordNext(-1); !syncpoint.IsValidation(err) {
		t.Errorf("RecordNext(-1) error = %v, want ValidationError", err)
	}
	if s.Cursor() != 0 {
		t.Errorf("Cursor() = %d, want 0", s.Cursor())
	}
}

func TestRecordNowUsesSourceTime(t *testing.T) {
	s := New(threeSegments(t), &memStore{})
	src := &fakeSource{attached: true, now: 7.25}
	s.Start(src)

	p, err := s.RecordNow()
	if err != nil {
		t.Fatalf("RecordNow: %v", err)
	}
	if p.Time != 7.25 || p.SegmentID != "s1" {
		t.Errorf("RecordNow = %+v", p)
	}
	if next, ok := s.Next(); !ok || next.ID != "s2" {
		t.Errorf("Next() = %+v, %v", next, ok)
	}
}

func TestCommitSortsOutOfOrderTaps(t *testing.T) {
	store := &memStore{}
	s := New(threeSegments(t), store)
	s.Start(&fakeSource{attached: true})
	s.RecordNext(5)
	s.RecordNext(2) // user seeked back between taps
	s.RecordNext(9)

	if _, err := s.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !syncpoint.IsSorted(store.points) {
		t.Errorf("stored points not sorted: %+v", store.points)
	}
	if store.points[0].SegmentID != "s2" {
		t.Errorf("first point = %+v, want s2 at 2", store.points[0])
	}
}

func TestCommitFailureKeepsBuffer(t *testing.T) {
	store := &memStore{fail: &syncpoint.PersistenceError{Op: "replace sync points", Err: errors.New("disk full"), Quota: true}}
	s := New(threeSegments(t), store)
	s.Start(&fakeSource{attached: true})
	s.RecordNext(0)
	s.RecordNext(4)

	_, err := s.Commit(context.Background())
	if !syncpoint.IsPersistence(err) {
		t.Fatalf("Commit error = %v, want PersistenceError", err)
	}
	if s.State() != Recording || len(s.Buffer()) != 2 {
		t.Errorf("state = %v, buffer = %d; want recording with 2 points", s.State(), len(s.Buffer()))
	}

	// Retry succeeds once storage recovers.
	store.mu.Lock()
	store.fail = nil
	store.mu.Unlock()
	if _, err := s.Commit(context.Background()); err != nil {
		t.Fatalf("retry Commit: %v", err)
	}
	if len(store.points) != 2 || s.State() != Idle {
		t.Errorf("after retry: %d stored, state %v", len(store.points), s.State())
	}
}

func TestDiscard(t *testing.T) {
	store := &memStore{}
	s := New(threeSegments(t), store)
	s.Start(&fakeSource{attached: true})
	s.RecordNext(0)

	s.Discard()
	if s.State() != Idle || len(s.Buffer()) != 0 || s.Cursor() != 0 {
		t.Errorf("after Discard: state %v, buffer %d, cursor %d", s.State(), len(s.Buffer()), s.Cursor())
	}
	if store.calls != 0 {
		t.Error("Discard must not persist")
	}
}

func TestDiscardDuringCommit(t *testing.T) {
	store := &memStore{release: make(chan struct{}), entered: make(chan struct{})}
	s := New(threeSegments(t), store)
	src := &fakeSource{attached: true}
	s.Start(src)
	s.RecordNext(0)
	s.RecordNext(3)

	done := make(chan error, 1)
	go func() {
		_, err := s.Commit(context.Background())
		done <- err
	}()
	<-store.entered
	if !s.Committing() {
		t.Error("Committing() should be true while the write is in flight")
	}
	if _, err := s.Commit(context.Background()); !syncpoint.IsPrecondition(err) {
		t.Errorf("concurrent Commit error = %v, want precondition", err)
	}

	// Discard and restart while the first commit is still writing.
	s.Discard()
	s.Start(src)
	s.RecordNext(1)
	close(store.release)

	if err := <-done; err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(store.points) != 2 {
		t.Errorf("in-flight commit stored %d points, want 2", len(store.points))
	}
	if s.State() != Recording || len(s.Buffer()) != 1 {
		t.Errorf("new session clobbered: state %v, buffer %d", s.State(), len(s.Buffer()))
	}
}

func TestRecordNextDuringCommit(t *testing.T) {
	store := &memStore{release: make(chan struct{}), entered: make(chan struct{})}
	s := New(threeSegments(t), store)
	s.Start(&fakeSource{attached: true})
	s.RecordNext(0)

	done := make(chan error, 1)
	go func() {
		_, err := s.Commit(context.Background())
		done <- err
	}()
	<-store.entered

	if _, err := s.RecordNext(4); !syncpoint.IsPrecondition(err) {
		t.Errorf("RecordNext during commit error = %v, want precondition", err)
	}
	if s.Cursor() != 1 || len(s.Buffer()) != 1 {
		t.Errorf("rejected tap changed the session: cursor %d, buffer %d", s.Cursor(), len(s.Buffer()))
	}

	close(store.release)
	if err := <-done; err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(store.points) != 1 {
		t.Errorf("stored %d points, want 1", len(store.points))
	}
	if s.State() != Idle {
		t.Errorf("state after commit = %v, want idle", s.State())
	}
}

func TestRecordNextAfterFailedCommit(t *testing.T) {
	store := &memStore{fail: errors.New("disk full")}
	s := New(threeSegments(t), store)
	s.Start(&fakeSource{attached: true})
	s.RecordNext(0)

	if _, err := s.Commit(context.Background()); err == nil {
		t.Fatal("expected Commit to fail")
	}
	if _, err := s.RecordNext(2); err != nil {
		t.Errorf("RecordNext after failed commit: %v", err)
	}
}

func TestStateString(t *testing.T) {
	if Idle.String() != "idle" || Recording.String() != "recording" {
		t.Errorf("String() = %q, %q", Idle, Recording)
	}
}
