// Package player provides the client and protocol types for talking to the
// audio player daemon over a Unix socket using NDJSON. The daemon owns audio
// output; this package only observes and steers it.
package player

// Command names.
const (
	CmdStatus    = "status"
	CmdSubscribe = "subscribe"
	CmdPlay      = "play"
	CmdPause     = "pause"
	CmdSeek      = "seek"
	CmdLoad      = "load"
)

// Event names streamed after subscribe.
const (
	EventTimeUpdate     = "timeupdate"
	EventPlay           = "play"
	EventPause          = "pause"
	EventSeeked         = "seeked"
	EventDurationChange = "durationchange"
	EventEnded          = "ended"
	EventError          = "error"
)

// Command is sent from a client to the daemon.
type Command struct {
	Cmd    string   `json:"cmd"`
	Time   *float64 `json:"time,omitempty"`
	Path   string   `json:"path,omitempty"`
	Events []string `json:"events,omitempty"`
}

// Response is returned by the daemon after processing a command.
type Response struct {
	OK       bool     `json:"ok"`
	Error    string   `json:"error,omitempty"`
	Time     *float64 `json:"time,omitempty"`
	Duration *float64 `json:"duration,omitempty"`
	Playing  *bool    `json:"playing,omitempty"`
	Source   string   `json:"source,omitempty"`
}

// Event is streamed from the daemon to subscribed clients.
type Event struct {
	Event     string   `json:"event"`
	Time      *float64 `json:"time,omitempty"`
	Duration  *float64 `json:"duration,omitempty"`
	Source    string   `json:"source,omitempty"`
	Message   string   `json:"message,omitempty"`
	Transient *bool    `json:"transient,omitempty"`
}

// BoolPtr returns a pointer to a bool value.
func BoolPtr(b bool) *bool { return &b }

// FloatPtr returns a pointer to a float64 value.
func FloatPtr(f float64) *float64 { return &f }
