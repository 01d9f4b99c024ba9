// ABOUTME: Route guard deciding whether a protected view may be shown
// ABOUTME: Redirects guests and non-admins once per transition, never while loading

package guard

import (
	"context"
	"log/slog"
	"sync"

	"github.com/uvci/campus-assistant/internal/api"
	"github.com/uvci/campus-assistant/internal/session"
)

// Decision is what a protected view should display.
type Decision int

const (
	// ShowPlaceholder means the session is still loading.
	ShowPlaceholder Decision = iota
	// ShowNothing means a redirect has been (or is being) taken.
	ShowNothing
	// ShowContent means the viewer may see the protected view.
	ShowContent
)

func (d Decision) String() string {
	switch d {
	case ShowPlaceholder:
		return "placeholder"
	case ShowNothing:
		return "nothing"
	case ShowContent:
		return "content"
	default:
		return "unknown"
	}
}

// Guard protects one view. It is safe for concurrent use.
type Guard struct {
	requireAdmin bool
	nav          session.Navigator
	logger       *slog.Logger

	mu sync.Mutex
	// active is the redirect currently in effect, "" when none. A redirect
	// fires only when this changes.
	active string
}

// New creates a guard. With requireAdmin set, authenticated non-admins are
// sent to the home view.
func New(nav session.Navigator, requireAdmin bool, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		requireAdmin: requireAdmin,
		nav:          nav,
		logger:       logger.With("component", "guard", "require_admin", requireAdmin),
	}
}

// Evaluate decides what to show for s, navigating away if s calls for a
// redirect that is not already in effect.
func (g *Guard) Evaluate(s session.State) Decision {
	decision, redirect := g.decide(s)

	g.mu.Lock()
	fire := redirect != "" && redirect != g.active
	g.active = redirect
	g.mu.Unlock()

	if fire {
		g.logger.Debug("redirecting", "phase", s.Phase, "to", redirect)
		g.nav.Navigate(redirect)
	}
	return decision
}

// decide is the pure part of Evaluate.
func (g *Guard) decide(s session.State) (Decision, string) {
	switch s.Phase {
	case session.PhaseLoading:
		return ShowPlaceholder, ""
	case session.PhaseGuest:
		return ShowNothing, session.RouteLogin
	case session.PhaseAuthenticated:
		if s.User == nil {
			return ShowNothing, session.RouteLogin
		}
		if !g.requireAdmin {
			return ShowContent, ""
		}
		switch s.User.Role {
		case api.RoleAdmin:
			return ShowContent, ""
		case api.RoleStudent:
			return ShowNothing, session.RouteHome
		default:
			return ShowNothing, session.RouteHome
		}
	default:
		return ShowPlaceholder, ""
	}
}

// Watch evaluates every snapshot from src until ctx ends or src closes the
// channel, reporting each decision to onDecision (which may be nil).
func (g *Guard) Watch(ctx context.Context, src session.StateSource, onDecision func(Decision, session.State)) {
	states := src.Subscribe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-states:
			if !ok {
				return
			}
			d := g.Evaluate(s)
			if onDecision != nil {
				onDecision(d, s)
			}
		}
	}
}
