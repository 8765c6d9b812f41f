// Package tui is the terminal editor for the current task description. Remote changes re-render
// the screen while the field being typed into stays local.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	ColorPrimary = lipgloss.Color("#7C3AED")
	ColorMuted   = lipgloss.Color("#6B7280")
	ColorActive  = lipgloss.Color("#3B82F6")
	ColorWarning = lipgloss.Color("#F59E0B")
	ColorError   = lipgloss.Color("#EF4444")
	ColorSuccess = lipgloss.Color("#10B981")
	ColorBorder  = lipgloss.Color("#4B5563")
)

var (
	StyleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			MarginBottom(1)

	StyleLabel = lipgloss.NewStyle().
			Foreground(ColorMuted)

	StyleTask = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorActive)

	StyleStatus = lipgloss.NewStyle().
			Foreground(ColorWarning)

	StyleError = lipgloss.NewStyle().
			Foreground(ColorError)

	StyleSaved = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	StyleHelp = lipgloss.NewStyle().
			Foreground(ColorMuted).
			MarginTop(1)

	StyleBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	// StyleEditingBox marks the field while it has focus.
	StyleEditingBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorActive).
			Padding(0, 1)
)
