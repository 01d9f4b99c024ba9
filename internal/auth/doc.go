// Package auth provides authentication for the mock campus API.
//
// Users log in with email and password (bcrypt hashes) and receive an HS256
// JWT whose "sub" claim is their numeric id. Middleware validates the
// bearer token on every protected request, reloads the user and stores it
// in the request context; RequireAdmin then gates the document console.
//
// Password reset tokens are random, URL-safe and single use. Only their
// SHA-256 hash is stored.
package auth
