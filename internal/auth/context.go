// ABOUTME: Authentication context for tracking the user through request handlers
// ABOUTME: Provides WithUser/UserFromContext for propagating identity via context

package auth

import (
	"context"

	"github.com/uvci/campus-assistant/internal/store"
)

// userContextKey is the key type for storing the user in context.Context.
type userContextKey struct{}

// WithUser returns a new context with the authenticated user attached.
func WithUser(ctx context.Context, u *store.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, u)
}

// UserFromContext retrieves the authenticated user, returning nil if not present.
func UserFromContext(ctx context.Context) *store.User {
	u, _ := ctx.Value(userContextKey{}).(*store.User)
	return u
}

// MustUserFromContext retrieves the user, panicking if not present.
// Only for handlers mounted behind Middleware.
func MustUserFromContext(ctx context.Context) *store.User {
	u := UserFromContext(ctx)
	if u == nil {
		panic("auth: user not found in context")
	}
	return u
}
