// Package styles defines the visual appearance for the code-server-labs TUI.
// Using Catppuccin Mocha color palette for a modern, aesthetic look.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Catppuccin Mocha color palette
var (
	Mauve    = lipgloss.Color("#CBA6F7")
	Red      = lipgloss.Color("#F38BA8")
	Peach    = lipgloss.Color("#FAB387")
	Yellow   = lipgloss.Color("#F9E2AF")
	Green    = lipgloss.Color("#A6E3A1")
	Sapphire = lipgloss.Color("#74C7EC")
	Blue     = lipgloss.Color("#89B4FA")

	Text     = lipgloss.Color("#CDD6F4")
	Subtext0 = lipgloss.Color("#A6ADC8")
	Overlay0 = lipgloss.Color("#6C7086")
	Surface1 = lipgloss.Color("#45475A")
	Surface0 = lipgloss.Color("#313244")
	Mantle   = lipgloss.Color("#181825")
)

// Semantic colors (using the palette)
var (
	Primary   = Mauve
	Accent    = Sapphire
	Danger    = Red
	Warning   = Peach
	Success   = Green
	TextCol   = Text
	TextMuted = Subtext0
	Border    = Surface1
)

// Panel styles
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary).
		Padding(0, 1)

	BorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Border)
)

// List item styles
var (
	ListItem = lipgloss.NewStyle().
			Foreground(TextCol).
			Padding(0, 1)

	ListItemSelected = lipgloss.NewStyle().
				Foreground(TextCol).
				Background(Surface0).
				Bold(true).
				Padding(0, 1)

	ListItemDim = lipgloss.NewStyle().
			Foreground(TextMuted).
			Padding(0, 1)
)

// Transcript line styles, keyed by classification.
var (
	LinePrompt = lipgloss.NewStyle().
			Foreground(Yellow).
			Bold(true)

	LineProgress = lipgloss.NewStyle().
			Foreground(TextMuted)

	LineSuccess = lipgloss.NewStyle().
			Foreground(Success)

	LineError = lipgloss.NewStyle().
			Foreground(Danger).
			Bold(true)

	LineOther = lipgloss.NewStyle().
			Foreground(TextCol)
)

// Status indicator styles
var (
	StatusRunningStyle = lipgloss.NewStyle().
				Foreground(Green).
				Bold(true)

	StatusStoppedStyle = lipgloss.NewStyle().
				Foreground(Overlay0)

	StatusErrorStyle = lipgloss.NewStyle().
				Foreground(Red).
				Bold(true)
)

// StatusBar styles
var (
	StatusBarStyle = lipgloss.NewStyle().
			Foreground(TextMuted).
			Background(Mantle).
			Padding(0, 1)

	StatusBarKey = lipgloss.NewStyle().
			Foreground(Accent).
			Bold(true)
)

// Dialog styles
var (
	DialogBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(1, 2)

	DialogTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(TextCol).
			MarginBottom(1)
)
