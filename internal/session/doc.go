// Package session owns the client-side authentication state.
//
// # Lifecycle
//
// A Manager starts in PhaseLoading. Resolve reads the token store once:
//
//   - no token: PhaseGuest
//   - token accepted by /api/auth/me: PhaseAuthenticated
//   - token rejected (expired, invalid, network failure): token cleared, PhaseGuest
//
// Login, Register and Logout move between Guest and Authenticated.
//
// # Ownership
//
// The Manager is the only writer of the session state and the token store.
// Other components read State snapshots or Subscribe to changes.
//
// # Navigation
//
// After login the Manager navigates to the explicit redirect, else /admin for
// admins, else /dashboard. Logout navigates to /login.
package session
