package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rashiika/medtrax/pkg/client"
	"github.com/rashiika/medtrax/pkg/domain"
)

// dashboardLoadedMsg carries a dashboard fetch result.
type dashboardLoadedMsg struct {
	role      domain.Role
	dashboard *domain.Dashboard
	err       error
}

type dashboardModel struct {
	api       *client.Client
	role      domain.Role
	dashboard *domain.Dashboard
	loading   bool
	err       string
	now       func() time.Time
}

func newDashboardModel(api *client.Client, role domain.Role, now func() time.Time) dashboardModel {
	return dashboardModel{api: api, role: role, loading: true, now: now}
}

func (m dashboardModel) Init() tea.Cmd {
	api, role := m.api, m.role
	if api == nil {
		return nil
	}
	return func() tea.Msg {
		d, err := api.GetDashboard(context.Background(), role)
		return dashboardLoadedMsg{role: role, dashboard: d, err: err}
	}
}

func (m dashboardModel) Update(msg tea.Msg) (dashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case dashboardLoadedMsg:
		if msg.role != m.role {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			m.err = client.Message(msg.err)
			return m, nil
		}
		m.err = ""
		m.dashboard = msg.dashboard
	case tea.KeyMsg:
		if msg.String() == "r" && !m.loading {
			m.loading = true
			return m, m.Init()
		}
	}
	return m, nil
}

func (m dashboardModel) View() string {
	var b strings.Builder
	title := "Doctor dashboard"
	if m.role == domain.RolePatient {
		title = "Patient dashboard"
	}
	b.WriteString("\n  " + titleStyle.Render(title) + "\n")

	switch {
	case m.loading && m.dashboard == nil:
		b.WriteString("\n  " + dimStyle.Render("loading...") + "\n")
		return b.String()
	case m.err != "":
		b.WriteString("\n  " + errorStyle.Render(m.err) + "\n")
		return b.String()
	case m.dashboard == nil:
		return b.String()
	}

	d := m.dashboard
	if d.Greeting != "" {
		b.WriteString("  " + dimStyle.Render(d.Greeting) + "\n")
	}
	b.WriteString("\n")

	stat := func(label string, v int) string {
		return statValueStyle.Render(fmt.Sprintf("%d", v)) + " " + metaStyle.Render(label)
	}
	stats := []string{
		stat("appointments", d.Stats.TotalAppointments),
		stat("pending", d.Stats.PendingAppointments),
		stat("upcoming", d.Stats.UpcomingAppointments),
	}
	if m.role == domain.RoleDoctor {
		stats = append(stats, stat("patients", d.Stats.Patients))
	} else {
		stats = append(stats, stat("prescriptions", d.Stats.Prescriptions))
	}
	b.WriteString(cardStyle.Render(strings.Join(stats, "   ")) + "\n\n")

	b.WriteString("  " + normalStyle.Render("Upcoming") + "\n")
	if len(d.Upcoming) == 0 {
		b.WriteString("  " + dimStyle.Render("nothing scheduled") + "\n")
		return b.String()
	}
	now := m.now()
	for _, a := range d.Upcoming {
		who := a.PatientName
		if m.role == domain.RolePatient {
			who = a.DoctorName
		}
		line := fmt.Sprintf("  %-10s %-22s %s  %s",
			formatWhen(a.ScheduledAt, now),
			truncStr(who, 22),
			statusStyle(a.Status).Render(fmt.Sprintf("%-9s", a.Status)),
			dimStyle.Render(truncStr(a.Reason, 30)),
		)
		b.WriteString(line + "\n")
	}
	return b.String()
}
