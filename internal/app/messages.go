package app

import (
	"github.com/damgoweb/tokaido-orai/internal/player"
	"github.com/damgoweb/tokaido-orai/internal/state"
	"github.com/damgoweb/tokaido-orai/internal/syncpoint"
)

// PlayerConnectedMsg is sent when both player connections are established.
type PlayerConnectedMsg struct {
	Client   *player.Client // for commands (status, play, pause, seek)
	EvClient *player.Client // for event subscription
}

// PlayerConnectErrorMsg is sent when the player connection fails.
type PlayerConnectErrorMsg struct {
	Err error
}

// PlayerEventMsg wraps a streamed event from the player.
type PlayerEventMsg struct {
	Event player.Event
}

// PlayerEventErrorMsg is sent when the event stream encounters an error.
type PlayerEventErrorMsg struct {
	Err error
}

// StatusResponseMsg carries the response to a status command.
type StatusResponseMsg struct {
	Status player.Status
}

// CommandErrorMsg reports a failed play, pause or seek.
type CommandErrorMsg struct {
	Err error
}

// SnapshotMsg carries a new shared state snapshot.
type SnapshotMsg struct {
	Snapshot state.Snapshot
}

// PointsLoadedMsg carries the sync points read at startup.
type PointsLoadedMsg struct {
	Points []syncpoint.Point
	Err    error
}

// CommitDoneMsg reports the end of a recording commit.
type CommitDoneMsg struct {
	Points []syncpoint.Point
	Err    error
}

// ExportDoneMsg reports the end of an export.
type ExportDoneMsg struct {
	Path string
	Err  error
}

// ClearTransientErrorMsg clears a transient error after a timeout.
type ClearTransientErrorMsg struct{}

// ReconnectTickMsg triggers a reconnection attempt.
type ReconnectTickMsg struct{}
