package presentation

import (
	"deskshell/internal/reporting"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	colorSuccess = lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#66BB6A"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#B26A00", Dark: "#FFB74D"}
	colorError   = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#EF5350"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#757575", Dark: "#9E9E9E"}
)

type styles struct {
	box     lipgloss.Style
	title   lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	muted   lipgloss.Style
	running lipgloss.Style
	pending lipgloss.Style
	failed  lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(0, 1),
		title:   r.NewStyle().Bold(true).Foreground(colorPrimary),
		label:   r.NewStyle().Bold(true),
		value:   r.NewStyle().Foreground(colorPrimary),
		muted:   r.NewStyle().Foreground(colorMuted),
		running: r.NewStyle().Foreground(colorSuccess),
		pending: r.NewStyle().Foreground(colorWarning),
		failed:  r.NewStyle().Foreground(colorError).Bold(true),
	}
}

func (s styles) state(st reporting.ServiceState) lipgloss.Style {
	switch st {
	case reporting.StateRunning:
		return s.running
	case reporting.StateFailed:
		return s.failed
	case reporting.StateStarting, reporting.StateStopping:
		return s.pending
	default:
		return s.muted
	}
}
