// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Persists users, conversations, messages and documents with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so stored timestamps sort lexicographically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed. ":memory:" opens a private
// in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL UNIQUE COLLATE NOCASE,
			password_hash TEXT NOT NULL,
			full_name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'student',
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			reset_token_hash TEXT,
			reset_token_expires TEXT,
			uvci_username TEXT,
			uvci_linked_at TEXT,

			CHECK (role IN ('student', 'admin'))
		);

		CREATE INDEX IF NOT EXISTS idx_users_reset_token ON users(reset_token_hash);

		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_user_updated
			ON conversations(user_id, updated_at);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation_created
			ON messages(conversation_id, created_at);

		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			size_bytes INTEGER NOT NULL,
			chunk_count INTEGER NOT NULL,
			uploaded_by INTEGER,
			uploaded_at TEXT NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(field, s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %s: %w", field, err)
	}
	return t, nil
}

// CreateUser inserts a user and sets its ID and CreatedAt.
// Returns ErrDuplicateEmail if the email is taken (case-insensitively).
func (s *SQLiteStore) CreateUser(ctx context.Context, u *User) error {
	if u.Role == "" {
		u.Role = RoleStudent
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (email, password_hash, full_name, role, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, u.Email, u.PasswordHash, u.FullName, u.Role, u.IsActive, formatTime(u.CreatedAt))
	if err != nil {
		if isConstraintViolation(err) && strings.Contains(err.Error(), "email") {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	u.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading user id: %w", err)
	}

	s.logger.Debug("created user", "id", u.ID, "role", u.Role)
	return nil
}

const userColumns = `id, email, password_hash, full_name, role, is_active, created_at, uvci_username, uvci_linked_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	var createdAt string
	var uvciUser, uvciAt sql.NullString

	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.IsActive, &createdAt, &uvciUser, &uvciAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	if u.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	u.UVCIUsername = uvciUser.String
	if uvciAt.Valid {
		t, err := parseTime("uvci_linked_at", uvciAt.String)
		if err != nil {
			return nil, err
		}
		u.UVCILinkedAt = &t
	}
	return &u, nil
}

// GetUser retrieves a user by ID.
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

// GetUserByEmail retrieves a user by email, ignoring case.
// Returns ErrNotFound if no user has that email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

// SetResetToken stores the hash of a password reset token, replacing any
// previous one.
func (s *SQLiteStore) SetResetToken(ctx context.Context, userID int64, tokenHash string, expires time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET reset_token_hash = ?, reset_token_expires = ? WHERE id = ?
	`, tokenHash, formatTime(expires), userID)
	if err != nil {
		return fmt.Errorf("storing reset token: %w", err)
	}
	return requireOneRow(res)
}

// ResetPassword replaces the password of the user holding an unexpired
// reset token and consumes the token.
// Returns ErrNotFound if the token is unknown or expired.
func (s *SQLiteStore) ResetPassword(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	u, err := scanUser(tx.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE reset_token_hash = ? AND reset_token_expires > ?
	`, tokenHash, formatTime(now)))
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, reset_token_hash = NULL, reset_token_expires = NULL
		WHERE id = ?
	`, passwordHash, u.ID); err != nil {
		return nil, fmt.Errorf("updating password: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing password reset: %w", err)
	}
	u.PasswordHash = passwordHash
	return u, nil
}

// SetUVCIAccount links a Moodle username to the user.
func (s *SQLiteStore) SetUVCIAccount(ctx context.Context, userID int64, username string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET uvci_username = ?, uvci_linked_at = ? WHERE id = ?
	`, username, formatTime(at), userID)
	if err != nil {
		return fmt.Errorf("linking uvci account: %w", err)
	}
	return requireOneRow(res)
}

// ClearUVCIAccount removes the linked Moodle account, if any.
func (s *SQLiteStore) ClearUVCIAccount(ctx context.Context, userID int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET uvci_username = NULL, uvci_linked_at = NULL WHERE id = ?
	`, userID)
	if err != nil {
		return fmt.Errorf("unlinking uvci account: %w", err)
	}
	return requireOneRow(res)
}

// CreateConversation inserts a new conversation
func (s *SQLiteStore) CreateConversation(ctx context.Context, c *Conversation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, c.ID, c.UserID, c.Title, formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("inserting conversation: %w", err)
	}

	s.logger.Debug("created conversation", "id", c.ID, "user_id", c.UserID)
	return nil
}

const conversationQuery = `
	SELECT c.id, c.user_id, c.title, c.created_at, c.updated_at,
		(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
	FROM conversations c
`

func scanConversation(row interface{ Scan(...any) error }) (*Conversation, error) {
	var c Conversation
	var createdAt, updatedAt string

	err := row.Scan(&c.ID, &c.UserID, &c.Title, &createdAt, &updatedAt, &c.MessageCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}

	if c.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetConversation retrieves a conversation owned by userID.
// Returns ErrNotFound if it doesn't exist or belongs to someone else.
func (s *SQLiteStore) GetConversation(ctx context.Context, userID int64, id string) (*Conversation, error) {
	return scanConversation(s.db.QueryRowContext(ctx,
		conversationQuery+` WHERE c.id = ? AND c.user_id = ?`, id, userID))
}

// ListConversations returns the user's conversations, most recently
// updated first. limit <= 0 means no limit.
func (s *SQLiteStore) ListConversations(ctx context.Context, userID int64, limit int) ([]*Conversation, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		conversationQuery+` WHERE c.user_id = ? ORDER BY c.updated_at DESC, c.rowid DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var convs []*Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversations: %w", err)
	}
	return convs, nil
}

// DeleteConversation removes a conversation and its messages.
// Returns ErrNotFound if it doesn't exist or belongs to someone else.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, userID int64, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	if err := requireOneRow(res); err != nil {
		return err
	}

	s.logger.Debug("deleted conversation", "id", id)
	return nil
}

// SaveMessage appends a message and bumps the conversation's updated_at.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, msg.ID, msg.ConversationID, msg.Role, msg.Content, formatTime(msg.CreatedAt)); err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE conversations SET updated_at = ? WHERE id = ? AND updated_at < ?
	`, formatTime(msg.CreatedAt), msg.ConversationID, formatTime(msg.CreatedAt)); err != nil {
		return fmt.Errorf("touching conversation: %w", err)
	}

	return tx.Commit()
}

// GetMessages returns the most recent messages of a conversation in
// chronological order. limit <= 0 means all.
func (s *SQLiteStore) GetMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, created_at FROM (
			SELECT id, conversation_id, role, content, created_at, rowid AS rid
			FROM messages
			WHERE conversation_id = ?
			ORDER BY created_at DESC, rowid DESC
			LIMIT ?
		) ORDER BY created_at ASC, rid ASC
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		var m Message
		var createdAt string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		if m.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return msgs, nil
}

// CreateDocument records an uploaded document
func (s *SQLiteStore) CreateDocument(ctx context.Context, d *Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, filename, size_bytes, chunk_count, uploaded_by, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, d.ID, d.Filename, d.SizeBytes, d.ChunkCount, d.UploadedBy, formatTime(d.UploadedAt))
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}

	s.logger.Debug("created document", "id", d.ID, "filename", d.Filename, "chunks", d.ChunkCount)
	return nil
}

// ListDocuments returns every document, newest first
func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, size_bytes, chunk_count, COALESCE(uploaded_by, 0), uploaded_at
		FROM documents
		ORDER BY uploaded_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		var d Document
		var uploadedAt string
		if err := rows.Scan(&d.ID, &d.Filename, &d.SizeBytes, &d.ChunkCount, &d.UploadedBy, &uploadedAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if d.UploadedAt, err = parseTime("uploaded_at", uploadedAt); err != nil {
			return nil, err
		}
		docs = append(docs, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes a document.
// Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return requireOneRow(res)
}

// requireOneRow maps "nothing changed" onto ErrNotFound
func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
