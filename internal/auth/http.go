// ABOUTME: HTTP middleware for JWT authentication on API endpoints
// ABOUTME: Extracts the bearer token, loads the user and enforces the admin role

package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/uvci/campus-assistant/internal/store"
)

// UserLookup loads users by id
type UserLookup interface {
	GetUser(ctx context.Context, id int64) (*store.User, error)
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "Not authenticated"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// WriteError sends a {"detail": ...} JSON error body.
func WriteError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

// Middleware creates an HTTP middleware that validates the JWT and adds the
// user to the request context.
func Middleware(users UserLookup, verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				WriteError(w, http.StatusUnauthorized, errMsg)
				return
			}

			sub, err := verifier.Verify(token)
			if err != nil {
				WriteError(w, http.StatusUnauthorized, "Could not validate credentials")
				return
			}

			id, err := strconv.ParseInt(sub, 10, 64)
			if err != nil {
				WriteError(w, http.StatusUnauthorized, "Could not validate credentials")
				return
			}

			user, err := users.GetUser(r.Context(), id)
			if err != nil {
				WriteError(w, http.StatusUnauthorized, "Could not validate credentials")
				return
			}

			if !user.IsActive {
				WriteError(w, http.StatusForbidden, "Inactive account")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireAdmin creates an HTTP middleware that requires the admin role.
// Must be used after Middleware.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				WriteError(w, http.StatusUnauthorized, "Not authenticated")
				return
			}

			if !user.IsAdmin() {
				WriteError(w, http.StatusForbidden, "Not enough permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
