package session

import "github.com/utafrali/marketplace/internal/auth"

// Status is the authentication state of a client.
type Status int

const (
	Guest Status = iota
	Authorized
)

func (s Status) String() string {
	if s == Authorized {
		return "authorized"
	}
	return "guest"
}

// AuthState is what a client knows about its session.
type AuthState struct {
	Status Status
	Claims *auth.Claims
	// Expired is set when a stored token was discarded because it had expired.
	Expired bool
}

// UIState is the client state that is not about authentication.
type UIState struct {
	CurrentPath string
}

// AppContext is passed explicitly from the host to everything that needs to
// know who is signed in.
type AppContext struct {
	Auth AuthState
	UI   UIState
}

// IsAuthorized reports whether the context carries a live session.
func (c AppContext) IsAuthorized() bool {
	return c.Auth.Status == Authorized && c.Auth.Claims != nil
}
