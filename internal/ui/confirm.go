package ui

import "github.com/charmbracelet/lipgloss"

// ConfirmStyle configures the appearance of a [TerminalView.Confirm] prompt.
type ConfirmStyle struct {
	Key lipgloss.Style // how to highlight the y/N hint
}

// DefaultConfirmStyle is the default style for a confirmation prompt.
var DefaultConfirmStyle = ConfirmStyle{
	Key: lipgloss.NewStyle().Foreground(Magenta),
}
