package cmd

import "github.com/charmbracelet/lipgloss"

var (
	primaryColor = lipgloss.Color("#3b82f6")
	mutedColor   = lipgloss.Color("#94a3b8")
	errorColor   = lipgloss.Color("#ef4444")
	successColor = lipgloss.Color("#10b981")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	kindStyle = lipgloss.NewStyle().
			Foreground(successColor)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	criticalStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(errorColor)
)
