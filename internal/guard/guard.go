// Package guard decides whether a requested route may be shown for the
// current session. It never makes network calls.
package guard

import (
	"github.com/rashiika/medtrax/internal/session"
	"github.com/rashiika/medtrax/pkg/domain"
)

// Kind is the outcome of a guard check.
type Kind int

const (
	// Wait means the session is still hydrating; show a neutral indicator.
	Wait Kind = iota
	// Redirect means navigate to Target instead.
	Redirect
	// Render means the requested route may be shown.
	Render
)

func (k Kind) String() string {
	switch k {
	case Wait:
		return "wait"
	case Redirect:
		return "redirect"
	case Render:
		return "render"
	default:
		return "unknown"
	}
}

// Decision is the guard's answer for one navigation.
type Decision struct {
	Kind   Kind
	Target domain.Route
	// ReturnTo is the originally requested route, kept so login can send the
	// user back. Empty when there is nothing to return to.
	ReturnTo domain.Route
}

// Landing returns a role's default destination.
func Landing(role domain.Role) domain.Route {
	if role == domain.RoleDoctor {
		return domain.RouteDoctorDashboard
	}
	return domain.RoutePatientDashboard
}

// Home returns where a session should start when no route was requested.
func Home(sess session.Session) domain.Route {
	switch sess.State {
	case session.AuthenticatedComplete:
		return Landing(sess.Role)
	case session.AuthenticatedIncomplete:
		return domain.RouteCompleteProfile
	default:
		return domain.RouteLogin
	}
}

// Decide gates a destination that requires role.
func Decide(sess session.Session, role domain.Role, requested domain.Route) Decision {
	switch {
	case sess.State == session.Hydrating:
		return Decision{Kind: Wait}
	case sess.State != session.AuthenticatedComplete:
		return toLogin(requested)
	case sess.Role != role:
		return Decision{Kind: Redirect, Target: Landing(sess.Role)}
	default:
		return Decision{Kind: Render, Target: requested}
	}
}

// Resolve gates any route, looking up the required role from its prefix.
func Resolve(sess session.Session, requested domain.Route) Decision {
	requested = requested.Normalize()
	if sess.State == session.Hydrating {
		return Decision{Kind: Wait}
	}
	if requested == "/" {
		return Decision{Kind: Redirect, Target: Home(sess)}
	}
	if role, ok := requested.RoleScope(); ok {
		return Decide(sess, role, requested)
	}
	if requested == domain.RouteCompleteProfile {
		switch sess.State {
		case session.AuthenticatedIncomplete:
			return Decision{Kind: Render, Target: requested}
		case session.AuthenticatedComplete:
			return Decision{Kind: Redirect, Target: Landing(sess.Role)}
		default:
			return toLogin(requested)
		}
	}
	return Decision{Kind: Render, Target: requested}
}

func toLogin(requested domain.Route) Decision {
	d := Decision{Kind: Redirect, Target: domain.RouteLogin}
	if requested != domain.RouteLogin {
		d.ReturnTo = requested
	}
	return d
}
