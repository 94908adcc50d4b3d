package statusui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the status TUI with the given control channel (nil for a
// read-only view) and returns the bubbletea program for the caller to
// drive with Send and Run/Start.
func Run(ctrl *Control) *tea.Program {
	return tea.NewProgram(NewModel(ctrl), tea.WithAltScreen())
}
