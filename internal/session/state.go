// ABOUTME: Session state snapshot, phases and route constants
// ABOUTME: Read-only projections (IsAuthenticated, IsAdmin) used by guards and views

package session

import (
	"context"

	"github.com/uvci/campus-assistant/internal/api"
)

// Phase is the session lifecycle: Loading until the stored token has been
// resolved, then Guest or Authenticated.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseGuest
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseGuest:
		return "guest"
	case PhaseAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Routes the session manager and guards navigate to.
const (
	RouteLogin     = "/login"
	RouteAdmin     = "/admin"
	RouteDashboard = "/dashboard"
	RouteHome      = "/"
)

// State is an immutable snapshot of the session. User is nil unless Phase
// is PhaseAuthenticated; treat it as read-only.
type State struct {
	Phase Phase
	User  *api.User
}

// IsAuthenticated reports whether a user is signed in.
func (s State) IsAuthenticated() bool {
	return s.Phase == PhaseAuthenticated && s.User != nil
}

// IsAdmin reports whether the signed-in user has the admin role.
func (s State) IsAdmin() bool {
	if !s.IsAuthenticated() {
		return false
	}
	switch s.User.Role {
	case api.RoleAdmin:
		return true
	case api.RoleStudent:
		return false
	default:
		return false
	}
}

// Navigator moves the front end to another view.
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) { f(route) }

// Authenticator is the subset of the API client the session needs.
type Authenticator interface {
	Me(ctx context.Context) (*api.User, error)
	Login(ctx context.Context, creds api.Credentials) (*api.LoginResponse, error)
	Register(ctx context.Context, req api.RegisterRequest) error
}

// StateSource is anything that publishes session snapshots.
type StateSource interface {
	State() State
	Subscribe(ctx context.Context) <-chan State
}
