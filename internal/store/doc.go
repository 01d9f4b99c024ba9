// Package store provides persistent storage for the mock campus API using SQLite.
//
// # Data Models
//
//   - User: account with role, bcrypt password hash, optional reset token and
//     linked UVCI (Moodle) username
//   - Conversation: chat thread owned by one user
//   - Message: one user or assistant turn within a conversation
//   - Document: uploaded knowledge-base PDF
//
// # Usage
//
//	s, err := store.NewSQLiteStore("campus-mock.db")
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
// Deleting a conversation cascades to its messages. Lookups of
// conversations are always scoped to the owning user, so another user's id
// reads as ErrNotFound.
package store
