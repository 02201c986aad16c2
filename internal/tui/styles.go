package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rashiika/medtrax/pkg/domain"
)

// Pulse animation for the MEDTRAX logo.
type pulseTickMsg time.Time

func pulseTickCmd() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return pulseTickMsg(t)
	})
}

// renderPulseLogo renders "M E D T R A X" with a heartbeat-like wave running
// through the letters, deep teal (#0f3b3a) to bright mint (#5eead4).
func renderPulseLogo(frame int) string {
	const text = "MEDTRAX"
	n := len(text)

	var b strings.Builder
	t := float64(frame)

	for i := 0; i < n; i++ {
		x := float64(i) / float64(n-1)

		phase := t*0.12 - x*3.0
		level := math.Sin(phase)*0.5 + 0.5
		// Sharpen the crest so it reads as a pulse rather than a glow.
		level = math.Pow(level, 2.2)
		level = level*0.8 + 0.15
		if level > 1.0 {
			level = 1.0
		}

		r := clampByte(15 + level*(94-15))
		g := clampByte(59 + level*(234-59))
		bl := clampByte(58 + level*(212-58))

		s := lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", r, g, bl)))
		b.WriteString(s.Render(string(text[i])))

		if i < n-1 {
			b.WriteString("  ")
		}
	}
	return b.String()
}

func clampByte(v float64) int {
	if v > 255 {
		return 255
	}
	if v < 0 {
		return 0
	}
	return int(v)
}

var (
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e4e4ec")).
			Bold(true)

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#c0c4d0"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#505868"))

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0"))

	helpLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#505868"))

	accentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#2dd4bf"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5eead4")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f87171"))

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#facc15"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0")).
			Width(18)

	statValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e4e4ec")).
			Bold(true)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#1e2a2a")).
			Padding(0, 2)

	inputPromptStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#2dd4bf")).
				Bold(true)

	inputPlaceholderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#343c4a"))

	roleColors = map[domain.Role]lipgloss.Color{
		domain.RoleDoctor:  lipgloss.Color("#60a5fa"),
		domain.RolePatient: lipgloss.Color("#f0944a"),
	}

	statusColors = map[string]lipgloss.Color{
		domain.AppointmentPending:  lipgloss.Color("#facc15"),
		domain.AppointmentAccepted: lipgloss.Color("#34d474"),
		domain.AppointmentRejected: lipgloss.Color("#b45555"),
	}
)

// RoleStyle returns a bold style colored for the given role.
func RoleStyle(role domain.Role) lipgloss.Style {
	if c, ok := roleColors[role]; ok {
		return lipgloss.NewStyle().Foreground(c).Bold(true)
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("#8890a0")).Bold(true)
}

// RoleBadge returns a short colored badge, e.g. "[doctor]".
func RoleBadge(role domain.Role) string {
	if role == "" {
		return ""
	}
	return RoleStyle(role).Render("[" + role.String() + "]")
}

// statusStyle returns the style for an appointment status.
func statusStyle(status string) lipgloss.Style {
	if c, ok := statusColors[status]; ok {
		return lipgloss.NewStyle().Foreground(c)
	}
	return dimStyle
}

// helpEntry renders a single "key label" pair for help bars.
func helpEntry(key, label string) string {
	return helpKeyStyle.Render(key) + " " + helpLabelStyle.Render(label)
}

// helpBar joins help entries given as key, label pairs.
func helpBar(pairs ...string) string {
	parts := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, helpEntry(pairs[i], pairs[i+1]))
	}
	return " " + strings.Join(parts, "  ")
}

// helpItem is a selectable link in the help overlay.
type helpItem struct {
	label string
	desc  string
	path  string
}

var helpItems = []helpItem{
	{"Sign up", "create a patient or doctor account", "/signup"},
	{"Book appointment", "find a doctor and pick a slot", "/patient/book"},
	{"Prescriptions", "view and write prescriptions", "/prescriptions"},
	{"Community", "health articles and discussions", "/blog"},
}

// helpView renders the interactive help overlay with a cursor.
func helpView(cursor int, portalURL string) string {
	title := titleStyle.Render("M E D T R A X")

	cmdStyle := lipgloss.NewStyle().Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	sectionStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true)
	cursorStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2dd4bf"))
	linkDescStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)

	commands := []struct{ cmd, desc string }{
		{"medtrax", "Open the portal (interactive TUI)"},
		{"medtrax login", "Sign in with email and password"},
		{"medtrax logout", "Clear your session"},
		{"medtrax status", "Show the stored session"},
		{"medtrax serve-stub", "Run the local development backend"},
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n  %s\n  %s\n\n", title, descStyle.Render("patient & doctor portal"))

	fmt.Fprintf(&b, "  %s\n", sectionStyle.Render("Commands"))
	for _, c := range commands {
		fmt.Fprintf(&b, "    %s  %s\n", cmdStyle.Render(fmt.Sprintf("%-20s", c.cmd)), descStyle.Render(c.desc))
	}

	fmt.Fprintf(&b, "\n  %s\n", sectionStyle.Render("On the web (enter to open)"))
	for i, item := range helpItems {
		label := cmdStyle.Render(fmt.Sprintf("%-20s", item.label))
		prefix := "    "
		if i == cursor {
			label = cursorStyle.Render(fmt.Sprintf("%-20s", item.label))
			prefix = "  > "
		}
		fmt.Fprintf(&b, "%s%s  %s\n", prefix, label, linkDescStyle.Render(item.desc))
	}
	if portalURL != "" {
		fmt.Fprintf(&b, "\n  %s\n", metaStyle.Render(portalURL))
	}
	return b.String()
}
