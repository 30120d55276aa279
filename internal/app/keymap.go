package app

// Key binding constants used in handleKey.
const (
	KeyQuit        = "q"
	KeyQuitUpper   = "Q"
	KeyCtrlC       = "ctrl+c"
	KeySpace       = " "
	KeyTab         = "tab"
	KeyLeft        = "left"
	KeyRight       = "right"
	KeyUp          = "up"
	KeyDown        = "down"
	KeyJ           = "j"
	KeyK           = "k"
	KeyEnter       = "enter"
	KeySyncToggle  = "s"
	KeyRecordStart = "R"
	KeyRecordNext  = "n"
	KeyCommit      = "c"
	KeyDiscard     = "x"
	KeyExport      = "e"
	KeyRubyToggle  = "f"
)

// seekStep is how far the arrow keys move playback, in seconds.
const seekStep = 5.0
