// Package tui is a Bubbletea front-end over a running corectl.Orchestrator,
// rendering its Callbacks stream (state transitions, subtask status,
// structured errors, task cleanup) as a scrolling event log.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("#8BC34A")
	colorMuted   = lipgloss.Color("#6b7280")
	colorBorder  = lipgloss.Color("#2a3850")
	colorError   = lipgloss.Color("#e53935")
	colorWarning = lipgloss.Color("#FFC107")
	colorInfo    = lipgloss.Color("#2196F3")
)

// styles holds the lipgloss styles the event log renders with.
type styles struct {
	Header   lipgloss.Style
	Footer   lipgloss.Style
	Viewport lipgloss.Style

	StateLine lipgloss.Style
	Step      lipgloss.Style
	Error     lipgloss.Style
	Warning   lipgloss.Style
	Info      lipgloss.Style
	Muted     lipgloss.Style
}

func newStyles() styles {
	return styles{
		Header: lipgloss.NewStyle().
			Background(colorPrimary).
			Foreground(lipgloss.Color("#000000")).
			Bold(true).
			Padding(0, 1),

		Footer: lipgloss.NewStyle().
			Foreground(colorMuted).
			Padding(0, 1),

		Viewport: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder),

		StateLine: lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true),

		Step: lipgloss.NewStyle().
			Foreground(colorMuted),

		Error: lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true),

		Warning: lipgloss.NewStyle().
			Foreground(colorWarning),

		Info: lipgloss.NewStyle().
			Foreground(colorInfo),

		Muted: lipgloss.NewStyle().
			Foreground(colorMuted),
	}
}
