package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/textinput"

	"github.com/rashiika/medtrax/pkg/client"
	"github.com/rashiika/medtrax/pkg/domain"
)

func TestDashboardViewDoctor(t *testing.T) {
	m := newDashboardModel(nil, domain.RoleDoctor, func() time.Time { return testNow })
	m, _ = m.Update(dashboardLoadedMsg{role: domain.RoleDoctor, dashboard: &domain.Dashboard{
		Greeting: "Welcome back, Dr. Meera Rao",
		Stats:    domain.DashboardStats{TotalAppointments: 3, PendingAppointments: 1, UpcomingAppointments: 2, Patients: 2},
		Upcoming: []domain.Appointment{
			{PatientName: "Kavya Iyer", DoctorName: "Dr. Meera Rao", ScheduledAt: testNow.Add(50 * time.Hour), Status: domain.AppointmentPending, Reason: "Chest pain"},
		},
	}})

	view := m.View()
	for _, want := range []string{"Doctor dashboard", "Welcome back", "patients", "Kavya Iyer", "in 2d", "pending", "Chest pain"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected %q in view, got:\n%s", want, view)
		}
	}
	if strings.Contains(view, "prescriptions") {
		t.Error("doctor dashboard should not show prescriptions")
	}
}

func TestDashboardViewPatientShowsDoctor(t *testing.T) {
	m := newDashboardModel(nil, domain.RolePatient, func() time.Time { return testNow })
	m, _ = m.Update(dashboardLoadedMsg{role: domain.RolePatient, dashboard: &domain.Dashboard{
		Upcoming: []domain.Appointment{
			{PatientName: "Arjun Mehta", DoctorName: "Dr. Meera Rao", ScheduledAt: testNow.Add(3 * time.Hour), Status: domain.AppointmentAccepted},
		},
	}})
	view := m.View()
	if !strings.Contains(view, "Dr. Meera Rao") || !strings.Contains(view, "in 3h") {
		t.Errorf("unexpected view:\n%s", view)
	}
	if !strings.Contains(view, "prescriptions") {
		t.Error("patient dashboard should show prescriptions")
	}
}

func TestDashboardEmptyAndErrors(t *testing.T) {
	m := newDashboardModel(nil, domain.RoleDoctor, time.Now)
	if !strings.Contains(m.View(), "loading") {
		t.Errorf("expected loading state, got:\n%s", m.View())
	}

	m, _ = m.Update(dashboardLoadedMsg{role: domain.RolePatient, dashboard: &domain.Dashboard{}})
	if !m.loading {
		t.Error("result for another role should be ignored")
	}

	m, _ = m.Update(dashboardLoadedMsg{role: domain.RoleDoctor, err: &client.HTTPError{StatusCode: 403, Message: "Please complete your profile first"}})
	if !strings.Contains(m.View(), "Please complete your profile first") {
		t.Errorf("expected server message, got:\n%s", m.View())
	}

	m, _ = m.Update(dashboardLoadedMsg{role: domain.RoleDoctor, dashboard: &domain.Dashboard{}})
	if !strings.Contains(m.View(), "nothing scheduled") {
		t.Errorf("expected empty state, got:\n%s", m.View())
	}
}

func TestDashboardReloadKey(t *testing.T) {
	m := newDashboardModel(nil, domain.RoleDoctor, time.Now)
	m.loading = false
	m, cmd := m.Update(key("r"))
	if !m.loading {
		t.Error("expected loading after r")
	}
	// No API is configured, so there is nothing to run.
	if cmd != nil {
		t.Error("expected no command without an API")
	}
}

func TestProfileFieldsByRole(t *testing.T) {
	doc := newProfileModel(nil, domain.RoleDoctor, "d@x.dev")
	if len(doc.form.fields) != len(doctorFields) {
		t.Fatalf("doctor form has %d fields", len(doc.form.fields))
	}
	for i, v := range []string{"Dr. A", "Cardiology", "MCI-1", "8", "+91", "Pune"} {
		doc.form.fields[i].SetValue(v)
	}
	p, ok := doc.profile().(domain.DoctorProfile)
	if !ok {
		t.Fatalf("expected DoctorProfile, got %T", doc.profile())
	}
	if p.Email != "d@x.dev" || p.LicenseNumber != "MCI-1" || p.ClinicAddress != "Pune" {
		t.Errorf("unexpected profile %+v", p)
	}

	pat := newProfileModel(nil, domain.RolePatient, "p@x.dev")
	pat.form.fields[0].SetValue("  Arjun  ")
	pat.form.fields[1].SetValue("1990-04-12")
	pp, ok := pat.profile().(domain.PatientProfile)
	if !ok {
		t.Fatalf("expected PatientProfile, got %T", pat.profile())
	}
	if pp.FullName != "Arjun" || pp.DateOfBirth != "1990-04-12" {
		t.Errorf("unexpected profile %+v", pp)
	}
	if msg := pat.validate(); msg != "" {
		t.Errorf("validate = %q", msg)
	}
}

func TestProfileDoctorRequiresLicense(t *testing.T) {
	m := newProfileModel(nil, domain.RoleDoctor, "d@x.dev")
	m.form.fields[0].SetValue("Dr. A")
	m.form.fields[1].SetValue("Cardiology")
	if got := m.validate(); got != "license number is required" {
		t.Errorf("validate = %q", got)
	}
}

func TestProfileShowsServerError(t *testing.T) {
	m := newProfileModel(nil, domain.RolePatient, "p@x.dev")
	m.busy = true
	m, _ = m.Update(profileDoneMsg{err: &client.RejectedError{Message: "Profile already completed"}})
	if m.busy {
		t.Error("expected busy cleared")
	}
	if !strings.Contains(m.View(), "Profile already completed") {
		t.Errorf("expected rejection in view, got:\n%s", m.View())
	}
}

func TestNoticeOpenErrors(t *testing.T) {
	m := newNoticeModel("/prescriptions", "")
	m = m.open(func(string) error { return nil })
	if m.err != "no portal URL configured" {
		t.Errorf("err = %q", m.err)
	}

	m = newNoticeModel("/prescriptions", "https://portal.test/")
	if m.url() != "https://portal.test/prescriptions" {
		t.Errorf("url = %q", m.url())
	}
	m = m.open(func(string) error { return errors.New("no browser") })
	if m.opened || m.err != "no browser" {
		t.Errorf("unexpected notice state %+v", m)
	}
}

func TestFormatWhen(t *testing.T) {
	tests := []struct {
		offset time.Duration
		want   string
	}{
		{10 * time.Second, "now"},
		{-30 * time.Second, "now"},
		{45 * time.Minute, "in 45m"},
		{-3 * time.Hour, "3h ago"},
		{26 * time.Hour, "in 1d"},
		{-72 * time.Hour, "3d ago"},
	}
	for _, tc := range tests {
		if got := formatWhen(testNow.Add(tc.offset), testNow); got != tc.want {
			t.Errorf("formatWhen(%v) = %q, want %q", tc.offset, got, tc.want)
		}
	}
}

func TestTruncStr(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 6, "hello…"},
		{"héllo wörld", 4, "hél…"},
		{"abc", 0, ""},
	}
	for _, tc := range tests {
		if got := truncStr(tc.in, tc.max); got != tc.want {
			t.Errorf("truncStr(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}

func TestTruncateToHeight(t *testing.T) {
	s := "a\nb\nc\nd\n"
	if got := truncateToHeight(s, 2); got != "a\nb\n" {
		t.Errorf("got %q", got)
	}
	if got := truncateToHeight(s, 10); got != s {
		t.Errorf("got %q", got)
	}
	if got := truncateToHeight(s, 0); got != s {
		t.Errorf("zero max should return all, got %q", got)
	}
	if got := truncateToHeight(s, -1); got != s {
		t.Errorf("negative max should return all, got %q", got)
	}
}

func TestFormFocusWraps(t *testing.T) {
	f := newForm([]string{"A", "B"}, nil)
	if f.onLast() {
		t.Error("empty form has no last field")
	}
	f = newForm([]string{"A", "B"}, []textinput.Model{newField("a", false), newField("b", true)})
	f, _ = f.move(1)
	if !f.onLast() {
		t.Error("expected focus on last field")
	}
	f, _ = f.move(1)
	if f.focus != 0 {
		t.Errorf("focus = %d, want wrap to 0", f.focus)
	}
	f, _ = f.move(-1)
	if f.focus != 1 {
		t.Errorf("focus = %d, want 1", f.focus)
	}
}

func TestRoleBadgeAndHelp(t *testing.T) {
	if got := RoleBadge(domain.RoleDoctor); !strings.Contains(got, "[doctor]") {
		t.Errorf("RoleBadge = %q", got)
	}
	if RoleBadge("") != "" {
		t.Error("empty role should have no badge")
	}
	bar := helpBar("q", "quit", "h", "help")
	for _, want := range []string{"q", "quit", "h", "help"} {
		if !strings.Contains(bar, want) {
			t.Errorf("helpBar missing %q: %q", want, bar)
		}
	}
	view := helpView(2, testPortal)
	if !strings.Contains(view, "> ") || !strings.Contains(view, helpItems[2].label) || !strings.Contains(view, testPortal) {
		t.Errorf("unexpected help view:\n%s", view)
	}
}
