// ABOUTME: Wire types for the campus assistant HTTP API
// ABOUTME: Defines User, Role, auth payloads, chat stream payloads and console/dashboard records

package api

import (
	"encoding/json"
	"time"
)

// Role is the closed set of account roles known to the client.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// ParseRole maps a wire value onto a Role. Anything unknown is treated as a
// student so that a malformed role never grants admin access.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleStudent
	}
}

// UnmarshalJSON normalizes unknown roles through ParseRole.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = ParseRole(s)
	return nil
}

// User is the authenticated account as returned by /api/auth/me and /api/auth/login.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// DisplayName returns the full name when set, else the email.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}

// Credentials is the login form.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        User   `json:"user"`
}

// RegisterRequest is the registration form.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"full_name,omitempty" validate:"max=120"`
	Role     Role   `json:"role" validate:"omitempty,oneof=student admin"`
}

// ResetPasswordRequest completes a password reset started by forgot-password.
type ResetPasswordRequest struct {
	Token           string `json:"token" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

// StreamRequest starts one assistant reply.
type StreamRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// StreamMetadata is delivered once, after the last chunk of a reply.
type StreamMetadata struct {
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	Timestamp      time.Time `json:"timestamp"`
}

// StreamHandlers receives the events of one chat stream. OnChunk fires in
// transport order; exactly one of OnComplete or OnError fires last.
type StreamHandlers struct {
	OnChunk    func(fragment string)
	OnComplete func(meta StreamMetadata)
	OnError    func(message string)
}

// Conversation is one entry of the chat history.
type Conversation struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// Document is an indexed knowledge-base file managed from the admin console.
type Document struct {
	ID         string    `json:"document_id"`
	Filename   string    `json:"filename"`
	ChunkCount int       `json:"chunks_indexed"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// UploadResult is returned after a document has been uploaded and indexed.
type UploadResult struct {
	Message    string `json:"message"`
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunks_indexed"`
}

// UVCICredentials links a Moodle (UVCI) account to the user.
type UVCICredentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UVCIStatus describes the linked Moodle account.
type UVCIStatus struct {
	IsConnected bool   `json:"is_connected"`
	Username    string `json:"username,omitempty"`
	LastCheck   string `json:"last_check,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Stats are the academic progress figures shown on the dashboard.
type Stats struct {
	OverallProgress  int     `json:"overall_progress"`
	CoursesCompleted int     `json:"courses_completed"`
	CoursesOngoing   int     `json:"courses_ongoing"`
	AverageGrade     float64 `json:"average_grade"`
	CreditsEarned    int     `json:"credits_earned"`
	CreditsTotal     int     `json:"credits_total"`
}

// Announcement is a university news item.
type Announcement struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Date     string `json:"date"`
	Category string `json:"category"`
	Content  string `json:"content"`
	Priority string `json:"priority"`
}

// CalendarEvent is a deadline or event shown on the dashboard calendar.
// Start is an ISO-8601 local date-time as sent by the server.
type CalendarEvent struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Start  string `json:"start"`
	Type   string `json:"type"`
	Source string `json:"source,omitempty"`
}

// messageResponse is the generic {"message": ...} acknowledgement.
type messageResponse struct {
	Message string `json:"message"`
}
