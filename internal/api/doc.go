// Package api is the HTTP client for the campus assistant backend.
//
// # Overview
//
// Client wraps every endpoint the front ends use. Requests carry the session
// token from a TokenSource as a bearer token:
//
//	Authorization: Bearer <token>
//
// # Endpoints
//
//   - /api/auth: me, login, register, forgot-password, reset-password
//   - /api/chat: stream (SSE), conversations
//   - /api/admin: documents, upload
//   - /api/settings/uvci: Moodle account link
//   - /api/dashboard: stats, announcements, calendar
//
// # Chat Stream
//
// POST /api/chat/stream answers with Server-Sent Events:
//
//	event: chunk
//	data: {"content":"Bonjour"}
//
//	event: done
//	data: {"conversation_id":"c1","message_id":"m1","timestamp":"2025-01-01T10:00:00Z"}
//
// or, on failure, a single "error" event carrying {"message": "..."}.
//
// # Errors
//
// Failed responses are returned as *Error whose Kind is one of the package
// sentinels (ErrUnauthorized, ErrInvalidCredentials, ErrEmailAlreadyExists,
// ErrValidation, ...). Match with errors.Is and show Detail(err) to the user.
// Nothing is retried.
package api
