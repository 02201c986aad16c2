package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rashiika/medtrax/internal/browser"
	"github.com/rashiika/medtrax/internal/guard"
	"github.com/rashiika/medtrax/internal/session"
	"github.com/rashiika/medtrax/pkg/client"
	"github.com/rashiika/medtrax/pkg/domain"
)

type view int

const (
	viewWaiting view = iota
	viewLogin
	viewProfile
	viewDashboard
	viewNotice
)

// maxRedirects bounds one navigation so a bad rule cannot spin forever.
const maxRedirects = 4

const expiredNotice = "Your session has expired. Please sign in again."

// hydratedMsg is sent once the session has been restored from storage.
type hydratedMsg struct {
	state session.State
	err   error
}

// logoutDoneMsg carries the result of a user-initiated logout.
type logoutDoneMsg struct {
	err error
}

// SessionChangedMsg delivers a session transition into the program loop.
type SessionChangedMsg struct {
	Change session.Change
}

// SessionListener adapts a program's Send into a Machine change listener.
// Delivery is asynchronous because listeners may fire from inside a Cmd.
func SessionListener(send func(tea.Msg)) func(session.Change) {
	return func(c session.Change) {
		go send(SessionChangedMsg{Change: c})
	}
}

// Options configures the interactive portal.
type Options struct {
	// PortalURL is the web portal base, used for pages the TUI does not render.
	PortalURL string
	// Start is the first route requested once hydration completes.
	Start domain.Route
	// Email pre-fills the login form when no user is remembered.
	Email string
	Now   func() time.Time
	// OpenURL opens a link in the user's browser.
	OpenURL func(string) error
}

// App is the root Bubbletea model.
type App struct {
	machine *session.Machine
	auth    *session.Authenticator
	api     *client.Client
	opts    Options

	view     view
	route    domain.Route
	returnTo domain.Route
	flash    string

	waiting   waitingModel
	login     loginModel
	profile   profileModel
	dashboard dashboardModel
	notice    noticeModel

	helpOpen   bool
	helpCursor int
	width      int
	height     int
	frame      int // logo pulse animation frame
}

// NewApp creates the portal TUI. The machine must not be hydrated yet; Init
// hydrates it and resolves the start route.
func NewApp(machine *session.Machine, auth *session.Authenticator, api *client.Client, opts Options) App {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.OpenURL == nil {
		opts.OpenURL = browser.Open
	}
	if opts.Start == "" {
		opts.Start = "/"
	}
	return App{
		machine: machine,
		auth:    auth,
		api:     api,
		opts:    opts,
		view:    viewWaiting,
		route:   opts.Start,
		waiting: newWaitingModel(),
	}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(pulseTickCmd(), a.waiting.spinner.Tick, a.hydrate())
}

func (a App) hydrate() tea.Cmd {
	m := a.machine
	return func() tea.Msg {
		st, err := m.Hydrate(context.Background())
		if errors.Is(err, session.ErrAlreadyHydrated) {
			err = nil
		}
		return hydratedMsg{state: st, err: err}
	}
}

func (a App) logout() tea.Cmd {
	auth := a.auth
	return func() tea.Msg {
		return logoutDoneMsg{err: auth.Logout(context.Background())}
	}
}

// navigate runs requested through the route guard, following redirects
// until something renders or the session is still hydrating.
func (a App) navigate(requested domain.Route) (App, tea.Cmd) {
	sess := a.machine.Session()
	for i := 0; i < maxRedirects; i++ {
		d := guard.Resolve(sess, requested)
		switch d.Kind {
		case guard.Wait:
			a.view = viewWaiting
			a.route = requested
			return a, nil
		case guard.Redirect:
			if d.ReturnTo != "" {
				a.returnTo = d.ReturnTo
			}
			requested = d.Target
		case guard.Render:
			return a.show(d.Target, sess)
		}
	}
	return a.show(domain.RouteLogin, sess)
}

// show builds the view for a route the guard has already allowed.
func (a App) show(route domain.Route, sess session.Session) (App, tea.Cmd) {
	a.route = route
	email := a.opts.Email
	if sess.User != nil {
		email = sess.User.Email
	}

	switch route {
	case domain.RouteLogin:
		a.view = viewLogin
		a.login = newLoginModel(a.auth, email)
		return a, nil
	case domain.RouteCompleteProfile:
		a.view = viewProfile
		a.profile = newProfileModel(a.auth, sess.Role, email)
		return a, nil
	case domain.RouteDoctorDashboard, domain.RoutePatientDashboard:
		role, _ := route.RoleScope()
		a.view = viewDashboard
		a.dashboard = newDashboardModel(a.api, role, a.opts.Now)
		return a, a.dashboard.Init()
	default:
		a.view = viewNotice
		a.notice = newNoticeModel(route, a.opts.PortalURL)
		return a, nil
	}
}

// afterAuth picks the destination once login or profile completion settles.
func (a App) afterAuth() (App, tea.Cmd) {
	target := domain.Route("/")
	if a.machine.State() == session.AuthenticatedComplete && a.returnTo != "" {
		target = a.returnTo
	}
	a.returnTo = ""
	return a.navigate(target)
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case pulseTickMsg:
		a.frame++
		return a, pulseTickCmd()

	case spinner.TickMsg:
		if a.view != viewWaiting {
			return a, nil
		}
		var cmd tea.Cmd
		a.waiting, cmd = a.waiting.Update(msg)
		return a, cmd

	case hydratedMsg:
		if msg.err != nil {
			a.flash = msg.err.Error()
		}
		return a.navigate(a.route)

	case SessionChangedMsg:
		c := msg.Change
		if c.Redirect == "" {
			return a, nil
		}
		if c.Reason != nil {
			a.flash = expiredNotice
		}
		if a.view != viewLogin && a.view != viewWaiting {
			a.returnTo = a.route
		}
		return a.navigate(c.Redirect)

	case loginDoneMsg:
		a.login, _ = a.login.Update(msg)
		if msg.err != nil {
			return a, nil
		}
		a.flash = ""
		return a.afterAuth()

	case profileDoneMsg:
		a.profile, _ = a.profile.Update(msg)
		if a.machine.State() == session.AuthenticatedIncomplete {
			return a, nil
		}
		next, cmd := a.afterAuth()
		if msg.err == nil {
			next.flash = "Profile saved."
		}
		return next, cmd

	case logoutDoneMsg:
		a.returnTo = ""
		a.flash = ""
		if msg.err != nil {
			a.flash = client.Message(msg.err)
		}
		return a.navigate("/")

	case dashboardLoadedMsg:
		if a.view != viewDashboard {
			return a, nil
		}
		var cmd tea.Cmd
		a.dashboard, cmd = a.dashboard.Update(msg)
		return a, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if a.helpOpen {
			return a.updateHelp(msg)
		}
		// An incomplete profile can only be finished or abandoned.
		if a.view == viewProfile {
			switch msg.String() {
			case "esc", "ctrl+x":
				return a, a.logout()
			}
		}
		if !a.isEditing() {
			switch msg.String() {
			case "q":
				return a, tea.Quit
			case "h":
				a.helpOpen = true
				a.helpCursor = 0
				return a, nil
			case "x":
				if a.machine.State().Authenticated() {
					return a, a.logout()
				}
				return a, nil
			case "esc":
				if a.view == viewNotice {
					return a.navigate("/")
				}
				return a, nil
			case "o":
				if a.view == viewNotice {
					a.notice = a.notice.open(a.opts.OpenURL)
				}
				return a, nil
			}
		}
	}

	var cmd tea.Cmd
	switch a.view {
	case viewLogin:
		a.login, cmd = a.login.Update(msg)
	case viewProfile:
		a.profile, cmd = a.profile.Update(msg)
	case viewDashboard:
		a.dashboard, cmd = a.dashboard.Update(msg)
	}
	return a, cmd
}

func (a App) updateHelp(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "h", "esc":
		a.helpOpen = false
	case "q":
		return a, tea.Quit
	case "j", "down":
		if a.helpCursor < len(helpItems)-1 {
			a.helpCursor++
		}
	case "k", "up":
		if a.helpCursor > 0 {
			a.helpCursor--
		}
	case "enter":
		if a.opts.PortalURL == "" {
			return a, nil
		}
		url := strings.TrimRight(a.opts.PortalURL, "/") + helpItems[a.helpCursor].path
		if err := a.opts.OpenURL(url); err != nil {
			a.flash = err.Error()
		}
	}
	return a, nil
}

// isEditing reports whether keys belong to a form rather than global bindings.
func (a App) isEditing() bool {
	return a.view == viewLogin || a.view == viewProfile
}

func (a App) View() string {
	logo := renderPulseLogo(a.frame)
	header := centerLine(logo, lipgloss.Width(logo), a.width)

	sess := a.machine.Session()
	if sess.IsAuthenticated() && sess.User != nil {
		who := metaStyle.Render(sess.User.DisplayName()) + " " + RoleBadge(sess.Role)
		header += "\n" + centerLine(who, lipgloss.Width(who), a.width)
	} else {
		header += "\n"
	}

	var body, help string
	switch a.view {
	case viewWaiting:
		body = a.waiting.View()
		help = helpBar("ctrl+c", "quit")
	case viewLogin:
		body = a.login.View()
		help = helpBar("tab", "next", "enter", "sign in", "ctrl+c", "quit")
	case viewProfile:
		body = a.profile.View()
		help = helpBar("tab", "next", "ctrl+s", "save", "esc", "sign out", "ctrl+c", "quit")
	case viewDashboard:
		body = a.dashboard.View()
		help = helpBar("r", "reload", "x", "sign out", "h", "help", "q", "quit")
	case viewNotice:
		body = a.notice.View()
		help = helpBar("o", "open in browser", "esc", "home", "x", "sign out", "h", "help", "q", "quit")
	}

	if a.helpOpen {
		body = helpView(a.helpCursor, a.opts.PortalURL)
		help = helpBar("j/k", "nav", "enter", "open", "esc", "close")
	}

	flash := ""
	if a.flash != "" {
		flash = " " + noticeStyle.Render(a.flash)
	}

	// Chrome: header(2) + flash(1) + help(1)
	const chrome = 4
	body = strings.TrimRight(truncateToHeight(body, a.height-chrome), "\n")

	return header + "\n" + body + "\n" + flash + "\n" + help
}
