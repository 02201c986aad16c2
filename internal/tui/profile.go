package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rashiika/medtrax/internal/session"
	"github.com/rashiika/medtrax/pkg/client"
	"github.com/rashiika/medtrax/pkg/domain"
)

// profileDoneMsg carries the result of the profile-completion call.
type profileDoneMsg struct {
	err error
}

type profileField struct {
	label    string
	hint     string
	required bool
}

var doctorFields = []profileField{
	{"Full name", "Dr. Meera Rao", true},
	{"Specialization", "Cardiology", true},
	{"License number", "MCI-123456", true},
	{"Experience (yrs)", "8", false},
	{"Phone", "+91 98765 43210", false},
	{"Clinic address", "12 MG Road, Pune", false},
}

var patientFields = []profileField{
	{"Full name", "Arjun Mehta", true},
	{"Date of birth", "YYYY-MM-DD", true},
	{"Gender", "female / male / other", false},
	{"Blood group", "O+", false},
	{"Phone", "+91 98765 43210", false},
	{"Emergency contact", "name and phone", false},
}

type profileModel struct {
	auth   *session.Authenticator
	role   domain.Role
	email  string
	fields []profileField
	form   form
	busy   bool
	err    string
}

func newProfileModel(auth *session.Authenticator, role domain.Role, email string) profileModel {
	fields := patientFields
	if role == domain.RoleDoctor {
		fields = doctorFields
	}
	labels := make([]string, len(fields))
	inputs := make([]textinput.Model, len(fields))
	for i, f := range fields {
		labels[i] = f.label
		if f.required {
			labels[i] += " *"
		}
		inputs[i] = newField(f.hint, false)
	}
	return profileModel{
		auth:   auth,
		role:   role,
		email:  email,
		fields: fields,
		form:   newForm(labels, inputs),
	}
}

// validate checks required fields and formats before anything is sent.
func (m profileModel) validate() string {
	for i, f := range m.fields {
		if f.required && strings.TrimSpace(m.form.value(i)) == "" {
			return strings.ToLower(f.label) + " is required"
		}
	}
	if m.role == domain.RolePatient {
		if _, err := time.Parse(time.DateOnly, strings.TrimSpace(m.form.value(1))); err != nil {
			return "date of birth must be YYYY-MM-DD"
		}
	}
	return ""
}

func (m profileModel) profile() domain.Profile {
	v := func(i int) string { return strings.TrimSpace(m.form.value(i)) }
	if m.role == domain.RoleDoctor {
		return domain.DoctorProfile{
			Email:          m.email,
			FullName:       v(0),
			Specialization: v(1),
			LicenseNumber:  v(2),
			Experience:     v(3),
			Phone:          v(4),
			ClinicAddress:  v(5),
		}
	}
	return domain.PatientProfile{
		Email:            m.email,
		FullName:         v(0),
		DateOfBirth:      v(1),
		Gender:           v(2),
		BloodGroup:       v(3),
		Phone:            v(4),
		EmergencyContact: v(5),
	}
}

func (m profileModel) submit() (profileModel, tea.Cmd) {
	if msg := m.validate(); msg != "" {
		m.err = msg
		return m, nil
	}
	m.busy = true
	m.err = ""
	auth, p := m.auth, m.profile()
	return m, func() tea.Msg {
		_, err := auth.CompleteProfile(context.Background(), p)
		return profileDoneMsg{err: err}
	}
}

func (m profileModel) Update(msg tea.Msg) (profileModel, tea.Cmd) {
	switch msg := msg.(type) {
	case profileDoneMsg:
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
		case "ctrl+s":
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.form, cmd = m.form.update(msg)
	return m, cmd
}

func (m profileModel) View() string {
	var b strings.Builder
	b.WriteString("\n  " + titleStyle.Render("Complete your profile") + "  " + RoleBadge(m.role) + "\n")
	b.WriteString("  " + dimStyle.Render("One more step before you can use the portal.") + "\n\n")
	b.WriteString(m.form.view())
	b.WriteString("\n")
	switch {
	case m.busy:
		b.WriteString("  " + dimStyle.Render("saving...") + "\n")
	case m.err != "":
		b.WriteString("  " + errorStyle.Render(m.err) + "\n")
	}
	return b.String()
}
