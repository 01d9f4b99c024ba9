// ABOUTME: Auth session manager: resolves the stored token and owns login/register/logout
// ABOUTME: Single writer of session state and the token store; publishes snapshots to readers

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/uvci/campus-assistant/internal/api"
	"github.com/uvci/campus-assistant/internal/tokenstore"
)

// Manager owns the session. It is the only component that writes the token
// store or changes the session state; everything else reads snapshots.
type Manager struct {
	auth   Authenticator
	tokens tokenstore.Store
	nav    Navigator
	logger *slog.Logger
	subs   *broadcaster

	resolveOnce sync.Once

	mu    sync.Mutex
	state State
}

// NewManager creates a manager in the Loading phase. Call Resolve once at
// startup. nav may be nil when the caller does its own navigation.
func NewManager(auth Authenticator, tokens tokenstore.Store, nav Navigator, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if nav == nil {
		nav = NavigatorFunc(func(string) {})
	}
	logger = logger.With("component", "session")
	return &Manager{
		auth:   auth,
		tokens: tokens,
		nav:    nav,
		logger: logger,
		subs:   newBroadcaster(logger),
		state:  State{Phase: PhaseLoading},
	}
}

// Resolve exchanges the stored token for the user profile. Without a token
// the session becomes Guest immediately. If the profile lookup fails for
// any reason the token is cleared and the session becomes Guest; the error
// is not surfaced. Only the first call does anything.
func (m *Manager) Resolve(ctx context.Context) State {
	m.resolveOnce.Do(func() {
		m.resolve(ctx)
	})
	return m.State()
}

func (m *Manager) resolve(ctx context.Context) {
	token, ok := m.tokens.Get()
	if !ok || token == "" {
		m.settle(State{Phase: PhaseGuest})
		return
	}

	user, err := m.auth.Me(ctx)
	if err != nil {
		m.logger.Debug("stored session rejected, continuing as guest", "error", err)
		if clearErr := m.tokens.Clear(); clearErr != nil {
			m.logger.Warn("failed to clear rejected token", "error", clearErr)
		}
		m.settle(State{Phase: PhaseGuest})
		return
	}

	m.settle(State{Phase: PhaseAuthenticated, User: cloneUser(user)})
}

// settle applies a resolution result unless a login or logout already
// moved the session out of Loading.
func (m *Manager) settle(next State) {
	m.mu.Lock()
	if m.state.Phase != PhaseLoading {
		m.mu.Unlock()
		return
	}
	m.state = next
	m.subs.publish(next)
	m.mu.Unlock()

	m.logger.Info("session resolved", "phase", next.Phase)
}

// Login authenticates, stores the token and navigates. redirect wins when
// set; otherwise admins land on the admin console and everyone else on the
// dashboard. On failure the session is left untouched and the error is
// returned for the caller to show.
func (m *Manager) Login(ctx context.Context, creds api.Credentials, redirect string) error {
	resp, err := m.auth.Login(ctx, creds)
	if err != nil {
		return err
	}

	if err := m.tokens.Set(resp.AccessToken); err != nil {
		return fmt.Errorf("saving session token: %w", err)
	}

	user := cloneUser(&resp.User)
	m.setState(State{Phase: PhaseAuthenticated, User: user})
	m.logger.Info("logged in", "user_id", user.ID, "role", user.Role)

	m.nav.Navigate(landingRoute(user, redirect))
	return nil
}

// Register creates the account and then logs in with the same credentials.
func (m *Manager) Register(ctx context.Context, req api.RegisterRequest) error {
	if err := m.auth.Register(ctx, req); err != nil {
		return err
	}
	m.logger.Info("registered", "email", req.Email)
	return m.Login(ctx, api.Credentials{Email: req.Email, Password: req.Password}, "")
}

// Logout forgets the session and returns to the login view. It makes no
// network call and always succeeds.
func (m *Manager) Logout() {
	if err := m.tokens.Clear(); err != nil {
		m.logger.Warn("failed to clear session token", "error", err)
	}
	m.setState(State{Phase: PhaseGuest})
	m.logger.Info("logged out")
	m.nav.Navigate(RouteLogin)
}

// State returns the current snapshot.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// User returns a copy of the signed-in user, or nil.
func (m *Manager) User() *api.User {
	s := m.State()
	if !s.IsAuthenticated() {
		return nil
	}
	return cloneUser(s.User)
}

// IsAuthenticated reports whether a user is signed in.
func (m *Manager) IsAuthenticated() bool {
	return m.State().IsAuthenticated()
}

// IsAdmin reports whether the signed-in user is an admin.
func (m *Manager) IsAdmin() bool {
	return m.State().IsAdmin()
}

// Subscribe returns a channel that receives the current state immediately
// and every later change. It is closed when ctx is cancelled.
func (m *Manager) Subscribe(ctx context.Context) <-chan State {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Registering under mu means no change can slip between the snapshot
	// and the subscription.
	return m.subs.subscribe(ctx, m.state)
}

func (m *Manager) setState(next State) {
	m.mu.Lock()
	m.state = next
	m.subs.publish(next)
	m.mu.Unlock()
}

// landingRoute picks where to go after a successful login.
func landingRoute(user *api.User, redirect string) string {
	if redirect != "" {
		return redirect
	}
	switch user.Role {
	case api.RoleAdmin:
		return RouteAdmin
	case api.RoleStudent:
		return RouteDashboard
	default:
		return RouteDashboard
	}
}

func cloneUser(u *api.User) *api.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
