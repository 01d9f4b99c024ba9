// Package mockapi is a local implementation of the campus assistant API.
//
// It serves the same routes as the production backend so that the terminal
// clients and the internal/api package can be developed and tested without
// it:
//
//	/api/auth/{register,login,me,forgot-password,reset-password}
//	/api/chat/stream                 SSE: chunk, done, error
//	/api/chat/conversations[/{id}]
//	/api/admin/{upload,documents[/{id}]}   admin only
//	/api/settings/uvci
//	/api/dashboard/{stats,announcements,calendar}
//
// Accounts, conversations and documents live in SQLite. Replies come from a
// conversation.Responder, by default the canned keyword responder. Document
// indexing and the Moodle platform are simulated.
package mockapi
