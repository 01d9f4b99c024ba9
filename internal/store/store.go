// ABOUTME: Store interface and data types for the mock API persistence
// ABOUTME: Defines User, Conversation, Message and Document records and their errors

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when registering an email that is already taken
var ErrDuplicateEmail = errors.New("email already registered")

// Roles
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// User is a registered account
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	FullName     string
	Role         string
	IsActive     bool
	CreatedAt    time.Time

	// UVCIUsername is the linked Moodle account, empty when none
	UVCIUsername string
	UVCILinkedAt *time.Time
}

// IsAdmin reports whether the user has the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Conversation is one chat thread owned by a user
type Conversation struct {
	ID           string
	UserID       int64
	Title        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
}

// Message authors
const (
	AuthorUser      = "user"
	AuthorAssistant = "assistant"
)

// Message is one turn within a conversation
type Message struct {
	ID             string
	ConversationID string
	Role           string
	Content        string
	CreatedAt      time.Time
}

// Document is an uploaded knowledge-base file
type Document struct {
	ID         string
	Filename   string
	SizeBytes  int64
	ChunkCount int
	UploadedBy int64
	UploadedAt time.Time
}

// Store defines the persistence operations used by the mock API
type Store interface {
	// Users
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	SetResetToken(ctx context.Context, userID int64, tokenHash string, expires time.Time) error
	ResetPassword(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*User, error)
	SetUVCIAccount(ctx context.Context, userID int64, username string, at time.Time) error
	ClearUVCIAccount(ctx context.Context, userID int64) error

	// Conversations
	CreateConversation(ctx context.Context, c *Conversation) error
	GetConversation(ctx context.Context, userID int64, id string) (*Conversation, error)
	ListConversations(ctx context.Context, userID int64, limit int) ([]*Conversation, error)
	DeleteConversation(ctx context.Context, userID int64, id string) error
	SaveMessage(ctx context.Context, msg *Message) error
	GetMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error)

	// Documents
	CreateDocument(ctx context.Context, d *Document) error
	ListDocuments(ctx context.Context) ([]*Document, error)
	DeleteDocument(ctx context.Context, id string) error

	Close() error
}
