package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// waitingModel is the neutral indicator shown while the session hydrates.
type waitingModel struct {
	spinner spinner.Model
}

func newWaitingModel() waitingModel {
	s := spinner.New()
	s.Spinner = spinner.Pulse
	s.Style = accentStyle
	return waitingModel{spinner: s}
}

func (m waitingModel) Update(msg tea.Msg) (waitingModel, tea.Cmd) {
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m waitingModel) View() string {
	return "\n  " + m.spinner.View() + " " + dimStyle.Render("restoring your session...") + "\n"
}
