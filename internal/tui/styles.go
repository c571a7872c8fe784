package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles holds precomputed styles for the panel
type Styles struct {
	title           lipgloss.Style
	userHeader      lipgloss.Style
	assistantHeader lipgloss.Style
	noticeHeader    lipgloss.Style
	messages        lipgloss.Style
	emptyMessages   lipgloss.Style
	statusBar       lipgloss.Style
	toast           lipgloss.Style
}

// DefaultStyles creates the default panel styles
func DefaultStyles() Styles {
	return Styles{
		title: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8A7FD8")).
			Bold(true).
			PaddingLeft(1),

		userHeader: lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true),

		assistantHeader: lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true),

		noticeHeader: lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true),

		messages: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#8A7FD8")).
			Padding(0, 1),

		emptyMessages: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		statusBar: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			PaddingLeft(1),

		toast: lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("11")).
			Padding(0, 1),
	}
}
