package tui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title     lipgloss.Style
	pane      lipgloss.Style
	focused   lipgloss.Style
	selected  lipgloss.Style
	completed lipgloss.Style
	pending   lipgloss.Style
	toggleAll lipgloss.Style
	allDone   lipgloss.Style
	filter    lipgloss.Style
	filterOn  lipgloss.Style
	disabled  lipgloss.Style
	banner    lipgloss.Style
	help      lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("168")),
		pane: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		focused: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1),
		selected: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		completed: lipgloss.NewStyle().
			Strikethrough(true).
			Foreground(lipgloss.Color("240")),
		pending: lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("245")),
		toggleAll: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
		allDone: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),
		filter: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Padding(0, 1),
		filterOn: lipgloss.NewStyle().
			Bold(true).
			Underline(true).
			Foreground(lipgloss.Color("168")).
			Padding(0, 1),
		disabled: lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")),
		banner: lipgloss.NewStyle().
			Background(lipgloss.Color("203")).
			Foreground(lipgloss.Color("231")).
			Padding(0, 1),
		help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
	}
}
