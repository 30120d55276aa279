package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/damgoweb/tokaido-orai/internal/backup"
	"github.com/damgoweb/tokaido-orai/internal/catalog"
	"github.com/damgoweb/tokaido-orai/internal/db"
	"github.com/damgoweb/tokaido-orai/internal/player"
	"github.com/damgoweb/tokaido-orai/internal/recorder"
	"github.com/damgoweb/tokaido-orai/internal/syncpoint"
)

// fakeStore is an in-memory Store whose writes can be made to fail.
type fakeStore struct {
	mu     sync.Mutex
	points []syncpoint.Point
	fail   error
}

func (f *fakeStore) All(context.Context) ([]syncpoint.Point, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]syncpoint.Point{}, f.points...), nil
}

func (f *fakeStore) Recordings(context.Context) ([]db.Recording, error) { return nil, nil }

func (f *fakeStore) Setting(context.Context, string) (json.RawMessage, bool, error) {
	return nil, false, nil
}

func (f *fakeStore) ReplaceAll(_ context.Context, points []syncpoint.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.points = append([]syncpoint.Point(nil), points...)
	return nil
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]catalog.Segment{
		{ID: "s1", StationID: 0, Text: "お江戸日本橋七つ立ち"},
		{ID: "s2", StationID: 1, Text: "品川宿に着く", Ruby: "しながわしゅくにつく"},
		{ID: "s3", StationID: 1, Text: "海を眺める"},
		{ID: "s4", StationID: 2, Text: "川崎の渡し"},
	}, []catalog.Station{
		{ID: 0, Name: "日本橋", ModernName: "Nihonbashi"},
		{ID: 1, Name: "品川", ModernName: "Shinagawa"},
		{ID: 2, Name: "川崎", ModernName: "Kawasaki"},
	})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return cat
}

var testPoints = []syncpoint.Point{
	{Time: 0, SegmentID: "s1"},
	{Time: 10, SegmentID: "s2"},
	{Time: 20, SegmentID: "s3"},
	{Time: 30, SegmentID: "s4"},
}

func newTestModel(t *testing.T, store Store) Model {
	t.Helper()
	m := New(Options{
		Store:      store,
		Catalog:    testCatalog(t),
		SocketPath: filepath.Join(t.TempDir(), "player.sock"),
		ExportDir:  t.TempDir(),
	})
	t.Cleanup(m.Close)
	return m
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case KeySpace:
		return tea.KeyMsg{Type: tea.KeySpace}
	case KeyTab:
		return tea.KeyMsg{Type: tea.KeyTab}
	case KeyEnter:
		return tea.KeyMsg{Type: tea.KeyEnter}
	case KeyLeft:
		return tea.KeyMsg{Type: tea.KeyLeft}
	case KeyRight:
		return tea.KeyMsg{Type: tea.KeyRight}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func attachPlayer(m *Model, at float64) {
	m.connected = true
	m.tracker.Set(player.Status{Connected: true, Source: "tokaido.mp3", Time: at, Duration: 60})
}

func TestNewModel(t *testing.T) {
	m := newTestModel(t, &fakeStore{})
	if m.connected {
		t.Error("new model should not be connected")
	}
	if !m.syncEnabled {
		t.Error("new model should have sync enabled")
	}
	if m.focusedPanel != FocusText {
		t.Error("new model should focus text")
	}
	if m.session.State() != recorder.Idle {
		t.Errorf("session state = %v, want idle", m.session.State())
	}
}

func TestPlayerConnectError(t *testing.T) {
	m := newTestModel(t, &fakeStore{})
	m.width = 80
	m.height = 24

	updated, cmd := m.Update(PlayerConnectErrorMsg{Err: fmt.Errorf("connection refused")})
	model := updated.(Model)

	if model.connected {
		t.Error("should not be connected after error")
	}
	if !model.reconnecting {
		t.Error("should be reconnecting after connect error")
	}
	if cmd == nil {
		t.Error("expected reconnect command")
	}
}

func TestPlayerEventErrorDisconnects(t *testing.T) {
	m := newTestModel(t, &fakeStore{})
	attachPlayer(&m, 5)

	m, _ = applyUpdate(m, PlayerEventErrorMsg{Err: player.ErrConnectionClosed})
	if m.connected {
		t.Error("should be disconnected")
	}
	if m.tracker.Attached() {
		t.Error("tracker should be detached after disconnect")
	}
	if m.shared.Snapshot().Playing {
		t.Error("playing should be false after disconnect")
	}
}

func TestReconnectDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{10, 16 * time.Second},
	}
	for _, tt := range tests {
		if got := reconnectDelay(tt.attempt); got != tt.want {
			t.Errorf("reconnectDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestTimeUpdateMovesActiveSegment(t *testing.T) {
	m := newTestModel(t, &fakeStore{})
	m, _ = applyUpdate(m, PointsLoadedMsg{Points: testPoints})

	m.handleEvent(player.Event{Event: player.EventTimeUpdate, Time: player.FloatPtr(15)})

	snap := m.shared.Snapshot()
	if snap.SegmentID != "s2" {
		t.Errorf("segment = %q, want s2", snap.SegmentID)
	}
	if !snap.HasStation || snap.StationID != 1 {
		t.Errorf("station = %d (has=%v), want 1", snap.StationID, snap.HasStation)
	}
	if snap.Time != 15 {
		t.Errorf("time = %v, want 15", snap.Time)
	}
}

func TestSyncOffFreezesActiveSegment(t *testing.T) {
	m := newTestModel(t, &fakeStore{})
	m, _ = applyUpdate(m, PointsLoadedMsg{Points: testPoints})
	m.handleEvent(player.Event{Event: player.EventTimeUpdate, Time: player.FloatPtr(15)})

	m, _ = applyUpdate(m, keyMsg(KeySyncToggle))
	if m.syncEnabled {
		t.Fatal("sync should be off")
	}

	m.handleEvent(player.Event{Event: player.EventTimeUpdate, Time: player.FloatPtr(35)})
	if got := m.shared.Snapshot().SegmentID; got != "s2" {
		t.Errorf("segment = %q, want s2 while sync is off", got)
	}
	if got := m.tracker.CurrentTime(); got != 35 {
		t.Errorf("tracker time = %v, want 35", got)
	}

	// Turning sync back on catches up with the player.
	m, _ = applyUpdate(m, keyMsg(KeySyncToggle))
	if got := m.shared.Snapshot().SegmentID; got != "s4" {
		t.Errorf("segment = %q, want s4 after re-enabling sync", got)
	}
}

func TestPlayPauseEvents(t *testing.T) {
	m := newTestModel(t, &fakeStore{})

	m.handleEvent(player.Event{Event: player.EventPlay})
	if !m.shared.Snapshot().Playing {
		t.Error("should be playing after play event")
	}
	m.handleEvent(player.Event{Event: player.EventPause})
	if m.shared.Snapshot().Playing {
		t.Error("should be paused after pause event")
	}
	m.handleEvent(player.Event{Event: player.EventDurationChange, Duration: player.FloatPtr(120)})
	if got := m.shared.Snapshot().Duration; got != 120 {
		t.Errorf("duration = %v, want 120", got)
	}
}

func TestErrorEvent(t *testing.T) {
	m := newTestModel(t, &fakeStore{})

	cmd := m.handleEvent(player.Event{Event: player.EventError, Message: "decode failed", Transient: player.BoolPtr(true)})
	if m.errorMessage != "decode failed" {
		t.Errorf("errorMessage = %q", m.errorMessage)
	}
	if !m.errorTransient {
		t.Error("error should be transient")
	}
	if cmd == nil {
		t.Error("expected clear timer for transient error")
	}

	m, _ = applyUpdate(m, ClearTransientErrorMsg{})
	if m.errorMessage != "" {
		t.Errorf("errorMessage = %q after clear, want empty", m.errorMessage)
	}
}

func TestPersistentErrorSurvivesClear(t *testing.T) {
	m := newTestModel(t, &fakeStore{})
	m.handleEvent(player.Event{Event: player.EventError, Message: "file missing"})

	m, _ = applyUpdate(m, ClearTransientErrorMsg{})
	if m.errorMessage != "file missing" {
		t.Errorf("errorMessage = %q, want it kept", m.errorMessage)
	}
}

func TestRecordingFlow(t *testing.T) {
	store := &fakeStore{}
	m := newTestModel(t, store)
	attachPlayer(&m, 0)

	m, _ = applyUpdate(m, keyMsg(KeyRecordStart))
	if m.session.State() != recorder.Recording {
		t.Fatalf("state = %v, want recording", m.session.State())
	}

	for _, at := range []float64{0, 12.5, 30, 41} {
		m.tracker.Set(player.Status{Connected: true, Source: "tokaido.mp3", Time: at, Duration: 60})
		m, _ = applyUpdate(m, keyMsg(KeyRecordNext))
	}
	if got := m.session.Cursor(); got != 4 {
		t.Fatalf("cursor = %d, want 4", got)
	}

	// A fifth tap has nothing left to anchor.
	m, _ = applyUpdate(m, keyMsg(KeyRecordNext))
	if m.errorMessage != "" {
		t.Errorf("unexpected error %q", m.errorMessage)
	}
	if !strings.Contains(m.statusText, "All segments recorded") {
		t.Errorf("statusText = %q", m.statusText)
	}

	m, cmd := applyUpdate(m, keyMsg(KeyCommit))
	if m.busy != "commit" {
		t.Fatalf("busy = %q, want commit", m.busy)
	}
	if cmd == nil {
		t.Fatal("expected commit command")
	}

	// A second commit while one is in flight is ignored.
	if _, again := applyUpdate(m, keyMsg(KeyCommit)); again != nil {
		t.Error("commit while busy should be ignored")
	}

	m, _ = applyUpdate(m, cmd())
	if m.busy != "" {
		t.Errorf("busy = %q after commit", m.busy)
	}
	if m.session.State() != recorder.Idle {
		t.Errorf("state = %v, want idle after commit", m.session.State())
	}
	if len(store.points) != 4 {
		t.Fatalf("stored %d points, want 4", len(store.points))
	}
	if store.points[1].Time != 12.5 || store.points[1].SegmentID != "s2" {
		t.Errorf("points[1] = %+v", store.points[1])
	}
	if got := m.shared.Snapshot().PointCount; got != 4 {
		t.Errorf("shared point count = %d, want 4", got)
	}
}

func TestRecordNextIgnoredWhileSaving(t *testing.T) {
	store := &fakeStore{}
	m := newTestModel(t, store)
	attachPlayer(&m, 0)

	m, _ = applyUpdate(m, keyMsg(KeyRecordStart))
	m, _ = applyUpdate(m, keyMsg(KeyRecordNext))
	m, cmd := applyUpdate(m, keyMsg(KeyCommit))
	if cmd == nil {
		t.Fatal("expected commit command")
	}

	// Taps between the commit key and its completion must not vanish
	// silently into a buffer that is already being written.
	m.tracker.Set(player.Status{Connected: true, Source: "tokaido.mp3", Time: 9, Duration: 60})
	m, _ = applyUpdate(m, keyMsg(KeyRecordNext))
	if m.session.Cursor() != 1 {
		t.Errorf("cursor = %d, want 1", m.session.Cursor())
	}
	if !strings.Contains(m.errorMessage, "tap not recorded") {
		t.Errorf("errorMessage = %q", m.errorMessage)
	}

	m, _ = applyUpdate(m, cmd())
	if len(store.points) != 1 {
		t.Errorf("stored %d points, want 1", len(store.points))
	}
	if m.session.State() != recorder.Idle {
		t.Errorf("state = %v, want idle", m.session.State())
	}
}

func TestCommitWithoutStore(t *testing.T) {
	m := newTestModel(t, nil)
	attachPlayer(&m, 0)

	m, _ = applyUpdate(m, keyMsg(KeyRecordStart))
	m, _ = applyUpdate(m, keyMsg(KeyRecordNext))
	m, cmd := applyUpdate(m, keyMsg(KeyCommit))
	if m.busy != "" {
		t.Errorf("busy = %q, want no commit started", m.busy)
	}
	if m.errorMessage == "" {
		t.Error("expected an error message")
	}
	if cmd == nil {
		t.Error("expected the transient error timer")
	}
	if m.session.State() != recorder.Recording || m.session.Cursor() != 1 {
		t.Errorf("session changed: state %v, cursor %d", m.session.State(), m.session.Cursor())
	}
}

func TestRecordStartWithoutPlayer(t *testing.T) {
	m := newTestModel(t, &fakeStore{})

	m, cmd := applyUpdate(m, keyMsg(KeyRecordStart))
	if m.session.State() != recorder.Idle {
		t.Error("should stay idle without a player")
	}
	if m.errorMessage == "" || !m.errorTransient {
		t.Errorf("expected transient error, got %q", m.errorMessage)
	}
	if cmd == nil {
		t.Error("expected clear timer")
	}
}

func TestCommitWhileIdle(t *testing.T) {
	m := newTestModel(t, &fakeStore{})

	m, _ = applyUpdate(m, keyMsg(KeyCommit))
	if m.busy != "" {
		t.Error("commit while idle should not start a write")
	}
	if m.errorMessage == "" {
		t.Error("expected error for commit while idle")
	}
}

func TestCommitFailureKeepsRecording(t *testing.T) {
	store := &fakeStore{fail: &syncpoint.PersistenceError{Op: "replace sync points", Err: errors.New("disk full")}}
	m := newTestModel(t, store)
	attachPlayer(&m, 3)

	m, _ = applyUpdate(m, keyMsg(KeyRecordStart))
	m, _ = applyUpdate(m, keyMsg(KeyRecordNext))
	m, cmd := applyUpdate(m, keyMsg(KeyCommit))
	m, _ = applyUpdate(m, cmd())

	if m.session.State() != recorder.Recording {
		t.Fatalf("state = %v, want recording after failed commit", m.session.State())
	}
	if len(m.session.Buffer()) != 1 {
		t.Errorf("buffer = %d, want 1", len(m.session.Buffer()))
	}
	if !strings.Contains(m.errorMessage, "retry") || m.errorTransient {
		t.Errorf("errorMessage = %q transient=%v", m.errorMessage, m.errorTransient)
	}

	// Retry succeeds once the store recovers.
	store.mu.Lock()
	store.fail = nil
	store.mu.Unlock()
	m, cmd = applyUpdate(m, keyMsg(KeyCommit))
	m, _ = applyUpdate(m, cmd())
	if m.session.State() != recorder.Idle {
		t.Errorf("state = %v, want idle after retry", m.session.State())
	}
	if m.errorMessage != "" {
		t.Errorf("errorMessage = %q after successful retry", m.errorMessage)
	}
}

func TestDiscardRecording(t *testing.T) {
	store := &fakeStore{points: []syncpoint.Point{{Time: 0, SegmentID: "s1"}}}
	m := newTestModel(t, store)
	attachPlayer(&m, 0)

	m, _ = applyUpdate(m, keyMsg(KeyRecordStart))
	m, _ = applyUpdate(m, keyMsg(KeyRecordNext))
	m, _ = applyUpdate(m, keyMsg(KeyDiscard))

	if m.session.State() != recorder.Idle {
		t.Errorf("state = %v, want idle", m.session.State())
	}
	if len(store.points) != 1 {
		t.Errorf("store changed on discard: %+v", store.points)
	}
}

func TestTabTogglesFocus(t *testing.T) {
	m := newTestModel(t, &fakeStore{})

	m, _ = applyUpdate(m, keyMsg(KeyTab))
	if m.focusedPanel != FocusStations {
		t.Error("tab should focus stations")
	}
	m, _ = applyUpdate(m, keyMsg(KeyTab))
	if m.focusedPanel != FocusText {
		t.Error("second tab should focus text")
	}
}

func TestStationNavigation(t *testing.T) {
	m := newTestModel(t, &fakeStore{})
	m, _ = applyUpdate(m, keyMsg(KeyTab))

	m, _ = applyUpdate(m, keyMsg(KeyJ))
	m, _ = applyUpdate(m, keyMsg(KeyJ))
	m, _ = applyUpdate(m, keyMsg(KeyJ))
	if m.selectedStation != 2 {
		t.Errorf("selectedStation = %d, want 2 (clamped)", m.selectedStation)
	}
	m, _ = applyUpdate(m, keyMsg(KeyK))
	if m.selectedStation != 1 {
		t.Errorf("selectedStation = %d, want 1", m.selectedStation)
	}
	if m.followStation {
		t.Error("manual navigation should stop following the active station")
	}
}

func TestSnapshotFollowsStation(t *testing.T) {
	m := newTestModel(t, &fakeStore{})
	m, _ = applyUpdate(m, PointsLoadedMsg{Points: testPoints})
	m.handleEvent(player.Event{Event: player.EventTimeUpdate, Time: player.FloatPtr(31)})

	m, _ = applyUpdate(m, SnapshotMsg{Snapshot: m.shared.Snapshot()})
	if m.selectedStation != 2 {
		t.Errorf("selectedStation = %d, want 2", m.selectedStation)
	}
}

func TestStationSeekTime(t *testing.T) {
	m := newTestModel(t, &fakeStore{})
	// Station 1's first segment is unsynced; its second is at 20.
	m, _ = applyUpdate(m, PointsLoadedMsg{Points: []syncpoint.Point{
		{Time: 0, SegmentID: "s1"},
		{Time: 20, SegmentID: "s3"},
	}})

	if got, ok := m.stationSeekTime(0); !ok || got != 0 {
		t.Errorf("station 0 = %v, %v; want 0, true", got, ok)
	}
	if got, ok := m.stationSeekTime(1); !ok || got != 20 {
		t.Errorf("station 1 = %v, %v; want 20, true", got, ok)
	}
	if _, ok := m.stationSeekTime(2); ok {
		t.Error("station 2 has no sync point")
	}
}

func TestEnterOnUnsyncedStation(t *testing.T) {
	m := newTestModel(t, &fakeStore{})
	attachPlayer(&m, 0)
	m, _ = applyUpdate(m, keyMsg(KeyTab))
	m, _ = applyUpdate(m, keyMsg(KeyJ))

	m, _ = applyUpdate(m, keyMsg(KeyEnter))
	if !strings.Contains(m.errorMessage, "品川") {
		t.Errorf("errorMessage = %q", m.errorMessage)
	}
}

func TestExportWritesDocument(t *testing.T) {
	store := &fakeStore{points: testPoints}
	m := newTestModel(t, store)
	m.now = func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }

	m, cmd := applyUpdate(m, keyMsg(KeyExport))
	if m.busy != "export" || cmd == nil {
		t.Fatalf("busy = %q, cmd nil = %v", m.busy, cmd == nil)
	}
	m, _ = applyUpdate(m, cmd())
	if m.busy != "" {
		t.Errorf("busy = %q after export", m.busy)
	}

	path := filepath.Join(m.exportDir, "tokaido_settings_2024-05-01.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	doc, err := backup.Parse(data)
	if err != nil {
		t.Fatalf("parse export: %v", err)
	}
	if len(doc.SyncData) != len(testPoints) {
		t.Errorf("exported %d points, want %d", len(doc.SyncData), len(testPoints))
	}
	if !strings.Contains(m.statusText, path) {
		t.Errorf("statusText = %q", m.statusText)
	}
}

func TestRubyToggle(t *testing.T) {
	m := newTestModel(t, &fakeStore{})
	m, _ = applyUpdate(m, tea.WindowSizeMsg{Width: 100, Height: 30})
	m, _ = applyUpdate(m, PointsLoadedMsg{Points: testPoints})
	m.handleEvent(player.Event{Event: player.EventTimeUpdate, Time: player.FloatPtr(12)})
	m, _ = applyUpdate(m, SnapshotMsg{Snapshot: m.shared.Snapshot()})

	if !strings.Contains(m.View(), "しながわしゅくにつく") {
		t.Error("view should show ruby by default")
	}
	m, _ = applyUpdate(m, keyMsg(KeyRubyToggle))
	if strings.Contains(m.View(), "しながわしゅくにつく") {
		t.Error("view should hide ruby after toggle")
	}
}

func TestViewRendersWithSize(t *testing.T) {
	m := newTestModel(t, &fakeStore{})
	m.width = 80
	m.height = 24

	view := m.View()
	if view == "" {
		t.Error("view should not be empty")
	}
	if !strings.Contains(view, "TOKAIDO") {
		t.Error("view should contain title")
	}
	if !strings.Contains(view, "STATIONS") {
		t.Error("view should contain stations panel")
	}
}

func TestViewRecordingPanel(t *testing.T) {
	m := newTestModel(t, &fakeStore{})
	m.width = 100
	m.height = 30
	attachPlayer(&m, 0)
	m, _ = applyUpdate(m, keyMsg(KeyRecordStart))

	view := m.View()
	if !strings.Contains(view, "REC 0/4") {
		t.Error("view should show recording progress")
	}
	if !strings.Contains(view, "next: s1") {
		t.Error("view should show the next segment")
	}
}

func TestViewWithoutSize(t *testing.T) {
	m := newTestModel(t, &fakeStore{})
	if m.View() != "Initializing..." {
		t.Error("view without size should show initializing")
	}
}

func TestWrapWidth(t *testing.T) {
	lines := wrapWidth("あいうえおかきくけこ", 6)
	if len(lines) != 4 {
		t.Fatalf("lines = %q, want 4 lines", lines)
	}
	if lines[0] != "あいう" {
		t.Errorf("lines[0] = %q", lines[0])
	}
}

func TestFormatClock(t *testing.T) {
	if got := formatClock(125.7); got != "02:05" {
		t.Errorf("formatClock = %q", got)
	}
	if got := formatClock(-3); got != "00:00" {
		t.Errorf("formatClock(-3) = %q", got)
	}
}
