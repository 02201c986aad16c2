package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/rashiika/medtrax/internal/session"
	"github.com/rashiika/medtrax/internal/tui"
)

var (
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#facc15"))
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5eead4")).Bold(true)
)

func dim(s string) string  { return dimStyle.Render(s) }
func warn(s string) string { return warnStyle.Render(s) }

// printSignedIn prints the one-line identity summary after login.
func printSignedIn(w io.Writer, sess session.Session) {
	name := ""
	if sess.User != nil {
		name = sess.User.DisplayName()
	}
	fmt.Fprintf(w, "%s %s %s\n", okStyle.Render("Signed in as"), name, tui.RoleBadge(sess.Role))
}
