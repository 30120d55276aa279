package ui

import "github.com/charmbracelet/lipgloss"

// Colors used throughout the TUI.
var (
	ColorRed     = lipgloss.Color("#FF5F5F")
	ColorGreen   = lipgloss.Color("#7BC47F")
	ColorYellow  = lipgloss.Color("#E8C15A")
	ColorCyan    = lipgloss.Color("#6FB7D9") // ai-iro, Hiroshige blue
	ColorGray    = lipgloss.Color("#666666")
	ColorDimGray = lipgloss.Color("#444444")
	ColorWhite   = lipgloss.Color("#FFFFFF")
	ColorMagenta = lipgloss.Color("#B58DC8")
	ColorVermil  = lipgloss.Color("#E2543A") // torii red, the active station
)

// Base styles reused by UI components.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorCyan)

	StatusStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	PlayingStyle = lipgloss.NewStyle().
			Foreground(ColorGreen).
			Bold(true)

	PausedStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	RecordingDotStyle = lipgloss.NewStyle().
				Foreground(ColorRed).
				Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	ErrorTextStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	TimestampStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	PanelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWhite)

	PanelTitleActiveStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorCyan)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(ColorCyan).
			Bold(true)

	CurrentStationStyle = lipgloss.NewStyle().
				Foreground(ColorVermil).
				Bold(true)

	ActiveTextStyle = lipgloss.NewStyle().
			Foreground(ColorWhite).
			Bold(true)

	RubyStyle = lipgloss.NewStyle().
			Foreground(ColorMagenta)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	FooterKeyStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	FooterDescStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	DividerStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)

	SyncOnBadgeStyle = lipgloss.NewStyle().
				Foreground(ColorGreen).
				Bold(true)

	SyncOffBadgeStyle = lipgloss.NewStyle().
				Foreground(ColorYellow).
				Bold(true)

	ProgressFillStyle = lipgloss.NewStyle().
				Foreground(ColorCyan)

	ProgressEmptyStyle = lipgloss.NewStyle().
				Foreground(ColorDimGray)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ColorMagenta)
)
