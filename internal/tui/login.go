package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rashiika/medtrax/internal/session"
	"github.com/rashiika/medtrax/pkg/client"
)

// loginDoneMsg carries the result of a login attempt.
type loginDoneMsg struct {
	res *client.LoginResult
	err error
}

type loginModel struct {
	auth *session.Authenticator
	form form
	busy bool
	err  string
}

func newLoginModel(auth *session.Authenticator, email string) loginModel {
	emailField := newField("you@example.com", false)
	emailField.SetValue(email)
	f := newForm(
		[]string{"Email", "Password"},
		[]textinput.Model{emailField, newField("password", true)},
	)
	if email != "" {
		f, _ = f.move(1)
	}
	return loginModel{auth: auth, form: f}
}

func (m loginModel) submit() (loginModel, tea.Cmd) {
	email := strings.TrimSpace(m.form.value(0))
	password := m.form.value(1)
	if email == "" || password == "" {
		m.err = "email and password are required"
		return m, nil
	}
	m.busy = true
	m.err = ""
	auth := m.auth
	return m, func() tea.Msg {
		res, err := auth.Login(context.Background(), email, password)
		return loginDoneMsg{res: res, err: err}
	}
}

func (m loginModel) Update(msg tea.Msg) (loginModel, tea.Cmd) {
	switch msg := msg.(type) {
	case loginDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.err = client.Message(msg.err)
		}
		return m, nil

	case tea.KeyMsg:
		if m.busy {
			return m, nil
		}
		switch msg.String() {
		case "tab", "down":
			var cmd tea.Cmd
			m.form, cmd = m.form.move(1)
			return m, cmd
		case "shift+tab", "up":
			var cmd tea.Cmd
			m.form, cmd = m.form.move(-1)
			return m, cmd
		case "enter":
			if !m.form.onLast() {
				var cmd tea.Cmd
				m.form, cmd = m.form.move(1)
				return m, cmd
			}
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.form, cmd = m.form.update(msg)
	return m, cmd
}

func (m loginModel) View() string {
	var b strings.Builder
	b.WriteString("\n  " + titleStyle.Render("Sign in") + "\n\n")
	b.WriteString(m.form.view())
	b.WriteString("\n")
	switch {
	case m.busy:
		b.WriteString("  " + dimStyle.Render("signing in...") + "\n")
	case m.err != "":
		b.WriteString("  " + errorStyle.Render(m.err) + "\n")
	}
	return b.String()
}
