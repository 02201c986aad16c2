package domain

// Snapshot is the persisted part of a session: the four profile slots of the
// token store. Tokens are stored separately.
type Snapshot struct {
	User              *User `json:"user"`
	Role              Role  `json:"role"`
	IsAuthenticated   bool  `json:"isAuthenticated"`
	IsProfileComplete bool  `json:"isProfileComplete"`
}

// TokenPair is an access/refresh credential pair. Refresh may be empty when
// the server did not rotate it.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}
