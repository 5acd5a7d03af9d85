package render

import (
	"github.com/charmbracelet/lipgloss"
)

// Border styles
var (
	StyleBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

// Status styles
var (
	StyleStatusRunning = lipgloss.NewStyle().
				Foreground(lipgloss.Color("yellow")).
				Bold(true)

	StyleStatusComplete = lipgloss.NewStyle().
				Foreground(lipgloss.Color("green")).
				Bold(true)

	StyleStatusFailed = lipgloss.NewStyle().
				Foreground(lipgloss.Color("red")).
				Bold(true)

	StyleStatusPending = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))
)

// UI element styles
var (
	StyleTitle = lipgloss.NewStyle().
			Bold(true)

	StyleKey = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62"))

	StyleHelp = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// Status picks the style for a task state or outcome name.
func Status(s string) lipgloss.Style {
	switch s {
	case "running", "retrying":
		return StyleStatusRunning
	case "done", "completed", "skipped":
		return StyleStatusComplete
	case "failed", "blocked":
		return StyleStatusFailed
	default:
		return StyleStatusPending
	}
}
