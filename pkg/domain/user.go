package domain

import "fmt"

// Role is the portal role a user signs in as.
type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// Roles lists every valid role.
var Roles = []Role{RoleDoctor, RolePatient}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleDoctor || r == RolePatient
}

func (r Role) String() string {
	return string(r)
}

// ParseRole converts a raw role string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("domain.ParseRole: unknown role %q", s)
	}
	return r, nil
}

// User is the signed-in portal user as returned by the login endpoint.
type User struct {
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	Username string `json:"username,omitempty"`
}

// DisplayName returns the username when set, otherwise the email.
func (u User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}
