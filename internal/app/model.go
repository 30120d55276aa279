package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/damgoweb/tokaido-orai/internal/backup"
	"github.com/damgoweb/tokaido-orai/internal/catalog"
	"github.com/damgoweb/tokaido-orai/internal/logging"
	"github.com/damgoweb/tokaido-orai/internal/player"
	"github.com/damgoweb/tokaido-orai/internal/recorder"
	"github.com/damgoweb/tokaido-orai/internal/state"
	"github.com/damgoweb/tokaido-orai/internal/syncpoint"
	"github.com/damgoweb/tokaido-orai/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
)

// PanelFocus tracks which panel has keyboard focus.
type PanelFocus int

const (
	FocusStations PanelFocus = iota
	FocusText
)

// Store is the sync point store as the TUI uses it.
type Store interface {
	backup.Source
	ReplaceAll(ctx context.Context, points []syncpoint.Point) error
}

// Options wires a Model to its collaborators.
type Options struct {
	Store      Store
	Catalog    *catalog.Catalog
	State      *state.Store // created from Catalog when nil
	SocketPath string
	ExportDir  string
	Logger     *log.Logger
}

// Model is the root bubbletea model for the tokaido TUI.
type Model struct {
	store     Store
	catalog   *catalog.Catalog
	shared    *state.Store
	session   *recorder.Session
	tracker   *player.Tracker
	updates   <-chan state.Snapshot
	cancelSub func()
	logger    *log.Logger
	now       func() time.Time

	socketPath string
	exportDir  string

	// Connection state
	client           *player.Client // command connection
	evClient         *player.Client // event subscription connection
	connected        bool
	connError        string
	reconnecting     bool
	reconnectAttempt int

	// View state
	snap            state.Snapshot
	syncEnabled     bool
	showRuby        bool
	focusedPanel    PanelFocus
	selectedStation int // index into catalog.Stations()
	followStation   bool
	width           int
	height          int

	// busy names the store operation in flight; triggers are ignored until
	// it finishes.
	busy string

	errorMessage   string
	errorTransient bool
	statusText     string
}

// New creates a Model with default state.
func New(opts Options) Model {
	shared := opts.State
	if shared == nil {
		shared = state.New(opts.Catalog)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	socketPath := opts.SocketPath
	if socketPath == "" {
		socketPath = player.SocketPath()
	}
	exportDir := opts.ExportDir
	if exportDir == "" {
		exportDir = "."
	}

	updates, cancel := shared.Subscribe("tui")
	return Model{
		store:         opts.Store,
		catalog:       opts.Catalog,
		shared:        shared,
		session:       recorder.New(opts.Catalog, opts.Store),
		tracker:       &player.Tracker{},
		updates:       updates,
		cancelSub:     cancel,
		logger:        logger,
		now:           time.Now,
		socketPath:    socketPath,
		exportDir:     exportDir,
		syncEnabled:   true,
		showRuby:      true,
		focusedPanel:  FocusText,
		followStation: true,
		statusText:    "Connecting to player...",
	}
}

// Init returns the initial commands: connect to the player, load the sync
// points and start following the shared state.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		connectCmd(m.socketPath),
		waitSnapshotCmd(m.updates),
		loadPointsCmd(m.store),
	)
}

// Close releases the shared state subscription and player connections.
func (m Model) Close() {
	if m.client != nil {
		m.client.Close()
	}
	if m.evClient != nil {
		m.evClient.Close()
	}
	if m.cancelSub != nil {
		m.cancelSub()
	}
}

// connectCmd attempts to connect to the player with two connections:
// one for commands, one for event subscription.
func connectCmd(sockPath string) tea.Cmd {
	return func() tea.Msg {
		client, err := player.Connect(sockPath)
		if err != nil {
			return PlayerConnectErrorMsg{Err: err}
		}
		evClient, err := player.Connect(sockPath)
		if err != nil {
			client.Close()
			return PlayerConnectErrorMsg{Err: err}
		}
		return PlayerConnectedMsg{Client: client, EvClient: evClient}
	}
}

// subscribeCmd subscribes on the event client and starts reading events.
func subscribeCmd(evClient *player.Client) tea.Cmd {
	return func() tea.Msg {
		if err := evClient.Subscribe(); err != nil {
			return PlayerEventErrorMsg{Err: err}
		}
		return readEventCmd(evClient)()
	}
}

// readEventCmd reads the next event from the event client.
func readEventCmd(evClient *player.Client) tea.Cmd {
	return func() tea.Msg {
		ev, err := evClient.ReadEvent()
		if err != nil {
			return PlayerEventErrorMsg{Err: err}
		}
		return PlayerEventMsg{Event: ev}
	}
}

// statusCmd fetches player status.
func statusCmd(client *player.Client) tea.Cmd {
	return func() tea.Msg {
		st, err := client.Status()
		if err != nil {
			return PlayerEventErrorMsg{Err: err}
		}
		return StatusResponseMsg{Status: st}
	}
}

// playerCmd runs a play, pause or seek on the command client.
func playerCmd(fn func() error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil {
			return CommandErrorMsg{Err: err}
		}
		return nil
	}
}

// waitSnapshotCmd waits for the next shared state snapshot.
func waitSnapshotCmd(updates <-chan state.Snapshot) tea.Cmd {
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return nil
		}
		return SnapshotMsg{Snapshot: snap}
	}
}

// loadPointsCmd reads the stored sync points.
func loadPointsCmd(store Store) tea.Cmd {
	if store == nil {
		return nil
	}
	return func() tea.Msg {
		points, err := store.All(context.Background())
		return PointsLoadedMsg{Points: points, Err: err}
	}
}

// commitCmd persists the recording session.
func commitCmd(session *recorder.Session) tea.Cmd {
	return func() tea.Msg {
		points, err := session.Commit(context.Background())
		return CommitDoneMsg{Points: points, Err: err}
	}
}

// exportCmd writes a backup document into dir.
func exportCmd(store Store, dir string, now time.Time) tea.Cmd {
	return func() tea.Msg {
		doc, err := backup.Export(context.Background(), store, now)
		if err != nil {
			return ExportDoneMsg{Err: err}
		}
		path, err := backup.WriteFile(dir, doc, now)
		return ExportDoneMsg{Path: path, Err: err}
	}
}

// clearTransientErrorCmd fires after a delay to clear transient errors.
func clearTransientErrorCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return ClearTransientErrorMsg{}
	})
}

// reconnectDelay is the backoff before reconnect attempt n: 1s, 2s, 4s,
// 8s, then 16s.
func reconnectDelay(attempt int) time.Duration {
	return time.Duration(1<<min(attempt, 4)) * time.Second
}

// reconnectCmd schedules a reconnection attempt with exponential backoff.
func reconnectCmd(attempt int) tea.Cmd {
	return tea.Tick(reconnectDelay(attempt), func(time.Time) tea.Msg {
		return ReconnectTickMsg{}
	})
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case PlayerConnectedMsg:
		m.client = msg.Client
		m.evClient = msg.EvClient
		m.connected = true
		m.connError = ""
		m.reconnecting = false
		m.reconnectAttempt = 0
		m.statusText = "Connected"
		m.logger.Printf("player connected")
		return m, tea.Batch(
			subscribeCmd(m.evClient),
			statusCmd(m.client),
		)

	case PlayerConnectErrorMsg:
		m.connected = false
		m.connError = msg.Err.Error()
		m.reconnecting = true
		m.statusText = "Player not running. Reconnecting..."
		return m, reconnectCmd(m.reconnectAttempt)

	case StatusResponseMsg:
		m.tracker.Set(msg.Status)
		m.shared.SetDuration(msg.Status.Duration)
		m.shared.SetPlaying(msg.Status.Playing)
		if m.syncEnabled {
			m.shared.Tick(msg.Status.Time)
		}
		if msg.Status.Source != "" {
			m.statusText = msg.Status.Source
		}
		return m, nil

	case PlayerEventMsg:
		cmd := m.handleEvent(msg.Event)
		return m, tea.Batch(cmd, readEventCmd(m.evClient))

	case PlayerEventErrorMsg:
		m.connected = false
		m.connError = msg.Err.Error()
		m.statusText = "Disconnected. Reconnecting..."
		m.reconnecting = true
		m.tracker.Disconnect()
		m.shared.SetPlaying(false)
		if m.client != nil {
			m.client.Close()
			m.client = nil
		}
		if m.evClient != nil {
			m.evClient.Close()
			m.evClient = nil
		}
		m.logger.Printf("player disconnected: %v", msg.Err)
		return m, reconnectCmd(m.reconnectAttempt)

	case ReconnectTickMsg:
		m.reconnectAttempt++
		return m, connectCmd(m.socketPath)

	case CommandErrorMsg:
		return m, m.setTransientError(msg.Err.Error())

	case SnapshotMsg:
		m.snap = msg.Snapshot
		if m.followStation && m.snap.HasStation {
			if i, ok := m.stationIndex(m.snap.StationID); ok {
				m.selectedStation = i
			}
		}
		return m, waitSnapshotCmd(m.updates)

	case PointsLoadedMsg:
		if msg.Err != nil {
			m.errorMessage = "load sync points: " + msg.Err.Error()
			return m, nil
		}
		m.shared.SetPoints(msg.Points)
		return m, nil

	case CommitDoneMsg:
		m.busy = ""
		if msg.Err != nil {
			m.logger.Printf("commit failed: %v", msg.Err)
			if syncpoint.IsPersistence(msg.Err) {
				m.errorMessage = "Save failed, press c to retry: " + msg.Err.Error()
				m.errorTransient = false
				return m, nil
			}
			return m, m.setTransientError(msg.Err.Error())
		}
		m.shared.SetPoints(msg.Points)
		m.statusText = fmt.Sprintf("Saved %d sync points", len(msg.Points))
		m.errorMessage = ""
		m.logger.Printf("committed %d sync points", len(msg.Points))
		return m, nil

	case ExportDoneMsg:
		m.busy = ""
		if msg.Err != nil {
			m.logger.Printf("export failed: %v", msg.Err)
			return m, m.setTransientError("Export failed: " + msg.Err.Error())
		}
		m.statusText = "Exported " + msg.Path
		m.logger.Printf("exported %s", msg.Path)
		return m, nil

	case ClearTransientErrorMsg:
		if m.errorTransient {
			m.errorMessage = ""
			m.errorTransient = false
		}
		return m, nil
	}

	return m, nil
}

// handleEvent processes a player event and returns any resulting command.
// Time updates are the only path by which playback moves the active
// segment, and only while sync is on.
func (m *Model) handleEvent(ev player.Event) tea.Cmd {
	st := m.tracker.Apply(ev)

	switch ev.Event {
	case player.EventTimeUpdate, player.EventSeeked:
		if m.syncEnabled {
			m.shared.Tick(st.Time)
		}

	case player.EventEnded:
		m.shared.SetPlaying(false)
		if m.syncEnabled {
			m.shared.Tick(st.Time)
		}

	case player.EventPlay:
		m.shared.SetPlaying(true)

	case player.EventPause:
		m.shared.SetPlaying(false)

	case player.EventDurationChange:
		m.shared.SetDuration(st.Duration)

	case player.EventError:
		if ev.Transient != nil && *ev.Transient {
			return m.setTransientError(ev.Message)
		}
		m.errorMessage = ev.Message
		m.errorTransient = false
	}

	return nil
}

func (m *Model) setTransientError(text string) tea.Cmd {
	m.errorMessage = text
	m.errorTransient = true
	return clearTransientErrorCmd()
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit, KeyQuitUpper, KeyCtrlC:
		m.Close()
		return m, tea.Quit

	case KeySpace:
		if !m.connected {
			return m, nil
		}
		client := m.client
		if m.tracker.Status().Playing {
			return m, playerCmd(client.Pause)
		}
		return m, playerCmd(client.Play)

	case KeyLeft, KeyRight:
		if !m.connected {
			return m, nil
		}
		st := m.tracker.Status()
		target := st.Time + seekStep
		if msg.String() == KeyLeft {
			target = st.Time - seekStep
		}
		if st.Duration > 0 && target > st.Duration {
			target = st.Duration
		}
		client := m.client
		return m, playerCmd(func() error { return client.Seek(target) })

	case KeyTab:
		if m.focusedPanel == FocusStations {
			m.focusedPanel = FocusText
			m.followStation = true
		} else {
			m.focusedPanel = FocusStations
		}
		return m, nil

	case KeyJ, KeyDown:
		if m.focusedPanel == FocusStations && m.selectedStation < len(m.stations())-1 {
			m.selectedStation++
			m.followStation = false
		}
		return m, nil

	case KeyK, KeyUp:
		if m.focusedPanel == FocusStations && m.selectedStation > 0 {
			m.selectedStation--
			m.followStation = false
		}
		return m, nil

	case KeyEnter:
		stations := m.stations()
		if m.focusedPanel != FocusStations || m.selectedStation >= len(stations) {
			return m, nil
		}
		station := stations[m.selectedStation]
		t, ok := m.stationSeekTime(station.ID)
		if !ok {
			return m, m.setTransientError(fmt.Sprintf("%s has no synced segment", station.Name))
		}
		if !m.connected {
			return m, m.setTransientError("Player not connected")
		}
		m.followStation = true
		client := m.client
		return m, playerCmd(func() error { return client.Seek(t) })

	case KeySyncToggle:
		m.syncEnabled = !m.syncEnabled
		if m.syncEnabled {
			m.shared.Tick(m.tracker.CurrentTime())
		}
		return m, nil

	case KeyRubyToggle:
		m.showRuby = !m.showRuby
		return m, nil

	case KeyRecordStart:
		if m.busy != "" {
			return m, nil
		}
		if err := m.session.Start(m.tracker); err != nil {
			return m, m.setTransientError(err.Error())
		}
		m.statusText = "Recording sync: press n as each segment begins"
		return m, nil

	case KeyRecordNext:
		if m.busy == "commit" {
			return m, m.setTransientError("Saving in progress; tap not recorded")
		}
		if _, err := m.session.RecordNow(); err != nil {
			if errors.Is(err, syncpoint.ErrNothingLeft) {
				m.statusText = "All segments recorded; press c to save"
				return m, nil
			}
			return m, m.setTransientError(err.Error())
		}
		return m, nil

	case KeyCommit:
		if m.busy != "" {
			return m, nil
		}
		if m.session.State() != recorder.Recording {
			return m, m.setTransientError("Not recording")
		}
		if m.store == nil {
			return m, m.setTransientError("No database open; cannot save")
		}
		m.busy = "commit"
		m.statusText = "Saving sync points..."
		return m, commitCmd(m.session)

	case KeyDiscard:
		if m.session.State() == recorder.Recording {
			m.session.Discard()
			m.statusText = "Recording discarded"
		}
		return m, nil

	case KeyExport:
		if m.busy != "" || m.store == nil {
			return m, nil
		}
		m.busy = "export"
		m.statusText = "Exporting..."
		return m, exportCmd(m.store, m.exportDir, m.now())
	}

	return m, nil
}

func (m Model) stations() []catalog.Station {
	if m.catalog == nil {
		return nil
	}
	return m.catalog.Stations()
}

func (m Model) stationIndex(stationID int) (int, bool) {
	for i, st := range m.stations() {
		if st.ID == stationID {
			return i, true
		}
	}
	return 0, false
}

// stationSeekTime returns where playback should jump for a station: the
// time of its first segment that has a sync point.
func (m Model) stationSeekTime(stationID int) (float64, bool) {
	if m.catalog == nil {
		return 0, false
	}
	points := m.shared.Points()
	if seg, ok := m.catalog.FirstSegmentOfStation(stationID); ok {
		if t, ok := syncpoint.TimeForSegment(seg.ID, points); ok {
			return t, true
		}
	}
	for _, seg := range m.catalog.Segments() {
		if seg.StationID != stationID {
			continue
		}
		if t, ok := syncpoint.TimeForSegment(seg.ID, points); ok {
			return t, true
		}
	}
	return 0, false
}

func (m Model) contentHeight() int {
	if m.height == 0 {
		return 20
	}
	// Reserve: header, status, two dividers, recording, error, footer
	reserved := 8
	return max(5, m.height-reserved)
}

func (m Model) stationPanelWidth() int {
	if m.width == 0 {
		return 24
	}
	return max(18, m.width*30/100)
}

func (m Model) textPanelWidth() int {
	if m.width == 0 {
		return 60
	}
	return max(20, m.width-m.stationPanelWidth()-1)
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderStatusBar())
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))
	sections = append(sections, m.renderMainContent())
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))

	if m.session.State() == recorder.Recording {
		sections = append(sections, m.renderRecordingPanel())
	}
	if m.errorMessage != "" {
		sections = append(sections, m.renderErrorBar())
	}
	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := ui.TitleStyle.Render("東海道往来 TOKAIDO ORAI")

	badge := ui.SyncOnBadgeStyle.Render(" [SYNC ON]")
	if !m.syncEnabled {
		badge = ui.SyncOffBadgeStyle.Render(" [SYNC OFF]")
	}

	var status string
	if m.statusText != "" {
		status = ui.DimStyle.Render(" · " + m.statusText)
	}
	return title + badge + status
}

func (m Model) renderStatusBar() string {
	st := m.tracker.Status()

	var icon string
	switch {
	case !m.connected:
		icon = ui.PausedStyle.Render("○ OFFLINE")
	case st.Playing:
		icon = ui.PlayingStyle.Render("▶ PLAY")
	default:
		icon = ui.PausedStyle.Render("❚❚ PAUSE")
	}

	clock := ui.TimestampStyle.Render(fmt.Sprintf(" %s / %s ", formatClock(st.Time), formatClock(st.Duration)))
	bar := renderProgress(st.Time, st.Duration, 20)
	points := ui.DimStyle.Render(fmt.Sprintf("  %d sync points", m.snap.PointCount))

	var busy string
	if m.busy != "" {
		busy = "  " + ui.SpinnerStyle.Render("⟳ "+m.busy)
	}
	return icon + clock + bar + points + busy
}

func renderProgress(t, duration float64, width int) string {
	filled := 0
	if duration > 0 {
		filled = int(t / duration * float64(width))
	}
	filled = max(0, min(filled, width))
	return ui.ProgressFillStyle.Render(strings.Repeat("━", filled)) +
		ui.ProgressEmptyStyle.Render(strings.Repeat("─", width-filled))
}

func formatClock(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	s := int(sec)
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}

func (m Model) renderMainContent() string {
	stationW := m.stationPanelWidth()
	textW := m.textPanelWidth()
	contentH := m.contentHeight()

	stationLines := strings.Split(m.renderStationPanel(stationW, contentH), "\n")
	textLines := strings.Split(m.renderTextPanel(textW, contentH), "\n")

	divider := ui.DividerStyle.Render("│")
	rows := make([]string, 0, contentH)
	for i := 0; i < contentH; i++ {
		left := strings.Repeat(" ", stationW)
		if i < len(stationLines) {
			left = stationLines[i]
		}
		right := ""
		if i < len(textLines) {
			right = textLines[i]
		}
		rows = append(rows, left+divider+right)
	}
	return strings.Join(rows, "\n")
}

func (m Model) renderStationPanel(width, height int) string {
	stations := m.stations()

	title := fmt.Sprintf("STATIONS (%d)", len(stations))
	var header string
	if m.focusedPanel == FocusStations {
		header = ui.PanelTitleActiveStyle.Render(title)
	} else {
		header = ui.PanelTitleStyle.Render(title)
	}
	lines := []string{header}

	visible := height - 1
	start := 0
	if m.selectedStation >= visible {
		start = m.selectedStation - visible + 1
	}
	for i := start; i < len(stations) && len(lines) < height; i++ {
		st := stations[i]
		name := fmt.Sprintf("%2d %s", st.ID, st.Name)

		marker := "  "
		if m.snap.HasStation && st.ID == m.snap.StationID {
			marker = ui.CurrentStationStyle.Render("● ")
		}

		var line string
		switch {
		case i == m.selectedStation && m.focusedPanel == FocusStations:
			line = marker + ui.SelectedStyle.Render(name)
		case m.snap.HasStation && st.ID == m.snap.StationID:
			line = marker + ui.CurrentStationStyle.Render(name)
		default:
			line = marker + name
		}
		lines = append(lines, truncateToWidth(line, width))
	}

	for len(lines) < height {
		lines = append(lines, "")
	}
	for i, l := range lines {
		lines[i] = padRight(l, width)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderTextPanel(width, height int) string {
	var header string
	if m.focusedPanel == FocusText {
		header = ui.PanelTitleActiveStyle.Render("TEXT")
	} else {
		header = ui.PanelTitleStyle.Render("TEXT")
	}
	if m.snap.HasStation {
		if st, ok := m.catalog.Station(m.snap.StationID); ok {
			header += ui.DimStyle.Render("  " + st.Name + " · " + st.ModernName)
		}
	}
	lines := []string{header}

	textWidth := max(10, width-2)
	switch {
	case m.catalog == nil || m.catalog.Len() == 0:
		lines = append(lines, "", ui.DimStyle.Render("  No catalog loaded"))
	case !m.snap.HasSegment:
		lines = append(lines, "", ui.DimStyle.Render("  No sync data. Press R to record sync while the narration plays."))
	default:
		idx, ok := m.catalog.Index(m.snap.SegmentID)
		if !ok {
			lines = append(lines, "", ui.DimStyle.Render("  Unknown segment "+m.snap.SegmentID))
			break
		}
		if idx > 0 {
			for _, wl := range wrapWidth(m.catalog.At(idx-1).Text, textWidth) {
				lines = append(lines, "  "+ui.DimStyle.Render(wl))
			}
		}
		seg := m.catalog.At(idx)
		if m.showRuby && seg.Ruby != "" {
			for _, wl := range wrapWidth(seg.Ruby, textWidth) {
				lines = append(lines, "  "+ui.RubyStyle.Render(wl))
			}
		}
		for _, wl := range wrapWidth(seg.Text, textWidth) {
			lines = append(lines, "  "+ui.ActiveTextStyle.Render(wl))
		}
		if idx+1 < m.catalog.Len() {
			for _, wl := range wrapWidth(m.catalog.At(idx+1).Text, textWidth) {
				lines = append(lines, "  "+ui.DimStyle.Render(wl))
			}
		}
	}

	if len(lines) > height {
		lines = lines[:height]
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderRecordingPanel() string {
	rec := ui.RecordingDotStyle.Render(fmt.Sprintf("● REC %d/%d", m.session.Cursor(), m.session.Total()))
	if m.session.Committing() {
		return rec + "  " + ui.SpinnerStyle.Render("saving...")
	}
	next, ok := m.session.Next()
	if !ok {
		return rec + ui.DimStyle.Render("  all segments recorded")
	}
	preview := truncateToWidth(next.Text, max(10, m.width-40))
	return rec + ui.DimStyle.Render("  next: "+next.ID+" ") + preview
}

func (m Model) renderErrorBar() string {
	return ui.ErrorStyle.Render("Error: ") + ui.ErrorTextStyle.Render(m.errorMessage)
}

func (m Model) renderFooter() string {
	key := func(k, desc string) string {
		return ui.FooterKeyStyle.Render(k) + ui.FooterDescStyle.Render(" "+desc)
	}

	var parts []string
	if m.connected {
		parts = append(parts, key("Space", "Play/Pause"), key("←→", "Seek"))
	}
	if m.session.State() == recorder.Recording {
		parts = append(parts, key("n", "Tap"), key("c", "Save"), key("x", "Discard"))
	} else {
		parts = append(parts, key("R", "Record sync"))
	}
	parts = append(parts,
		key("Tab", "Focus"),
		key("j/k", "Station"),
		key("s", "Sync"),
		key("f", "Ruby"),
		key("e", "Export"),
		key("q", "Quit"),
	)
	return strings.Join(parts, "  ")
}

// Helpers

func padRight(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}

func truncateToWidth(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	if len(runes) > width-1 && width > 1 {
		return string(runes[:width-1]) + "…"
	}
	return s
}

// wrapWidth breaks text into lines no wider than width terminal cells.
// Japanese text has no spaces, so it breaks between any two runes.
func wrapWidth(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current strings.Builder
		cur := 0
		for _, r := range paragraph {
			w := lipgloss.Width(string(r))
			if cur+w > width && cur > 0 {
				lines = append(lines, current.String())
				current.Reset()
				cur = 0
			}
			current.WriteRune(r)
			cur += w
		}
		lines = append(lines, current.String())
	}
	return lines
}
