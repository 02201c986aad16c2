package domain

import "strings"

// Route is a navigable portal destination, written as a URL path.
type Route string

const (
	RouteLogin            Route = "/login"
	RouteSignup           Route = "/signup"
	RouteCompleteProfile  Route = "/complete-profile"
	RouteDoctorDashboard  Route = "/doctor/dashboard"
	RoutePatientDashboard Route = "/patient/dashboard"
)

// RoleScope returns the role a route belongs to, based on its first path
// segment. Routes outside /doctor and /patient are not role-scoped.
func (r Route) RoleScope() (Role, bool) {
	seg := strings.TrimPrefix(string(r), "/")
	if i := strings.IndexByte(seg, '/'); i >= 0 {
		seg = seg[:i]
	}
	role := Role(seg)
	if !role.Valid() {
		return "", false
	}
	return role, true
}

// Normalize trims whitespace and trailing slashes and ensures a leading slash.
func (r Route) Normalize() Route {
	s := strings.TrimSpace(string(r))
	s = strings.TrimRight(s, "/")
	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	return Route(s)
}
