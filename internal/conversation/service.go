// ABOUTME: Conversation service for the mock API: persistence around streamed replies
// ABOUTME: Records the user message first, then persists the assistant reply as it completes

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/uvci/campus-assistant/internal/store"
)

// ErrEmptyMessage is returned when the user message is blank
var ErrEmptyMessage = errors.New("message is required")

// maxTitleRunes bounds conversation titles derived from the first message
const maxTitleRunes = 50

// historyWindow is how many earlier messages are handed to the responder
const historyWindow = 10

// ConversationStore defines what the service needs from storage
type ConversationStore interface {
	CreateConversation(ctx context.Context, c *store.Conversation) error
	GetConversation(ctx context.Context, userID int64, id string) (*store.Conversation, error)
	ListConversations(ctx context.Context, userID int64, limit int) ([]*store.Conversation, error)
	DeleteConversation(ctx context.Context, userID int64, id string) error
	SaveMessage(ctx context.Context, msg *store.Message) error
	GetMessages(ctx context.Context, conversationID string, limit int) ([]*store.Message, error)
}

// EventKind names a stream event sent to the client
type EventKind string

const (
	EventChunk EventKind = "chunk"
	EventDone  EventKind = "done"
	EventError EventKind = "error"
)

// Event is one step of a streamed reply as seen by the HTTP layer
type Event struct {
	Kind      EventKind
	Text      string // chunk text or error message
	MessageID string // done only
	Timestamp time.Time
}

// Service is the conversation layer that ensures messages are persisted
// before and after the responder runs.
type Service struct {
	store     ConversationStore
	responder Responder
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a new conversation Service
func New(store ConversationStore, responder Responder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		responder: responder,
		logger:    logger.With("component", "conversation"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SendRequest is one user message
type SendRequest struct {
	UserID         int64
	ConversationID string // empty starts a new conversation
	Content        string
}

// SendResponse contains the result of sending a message
type SendResponse struct {
	ConversationID string
	MessageID      string      // ID of the saved user message
	Stream         <-chan Event // closed after the terminal event
}

// SendMessage records the user message, asks the responder for a reply and
// returns a channel that streams the reply while persisting it.
// An unknown or foreign ConversationID yields store.ErrNotFound.
func (s *Service) SendMessage(ctx context.Context, req *SendRequest) (*SendResponse, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, ErrEmptyMessage
	}

	conv, err := s.ensureConversation(ctx, req.UserID, req.ConversationID, content)
	if err != nil {
		return nil, err
	}

	history, err := s.store.GetMessages(ctx, conv.ID, historyWindow)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	// Record first, then act
	userMsg := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		Role:           store.AuthorUser,
		Content:        content,
		CreatedAt:      s.now(),
	}
	if err := s.store.SaveMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("recording message: %w", err)
	}

	s.logger.Debug("user message recorded",
		"conversation_id", conv.ID,
		"message_id", userMsg.ID,
		"user_id", req.UserID)

	replies, err := s.responder.Respond(ctx, &ReplyRequest{
		ConversationID: conv.ID,
		Content:        content,
		History:        history,
	})
	if err != nil {
		return nil, fmt.Errorf("responder failed: %w", err)
	}

	return &SendResponse{
		ConversationID: conv.ID,
		MessageID:      userMsg.ID,
		Stream:         s.persistReplies(ctx, conv.ID, replies),
	}, nil
}

// ensureConversation resolves an existing conversation or creates a new one
// titled after the first message.
func (s *Service) ensureConversation(ctx context.Context, userID int64, id, content string) (*store.Conversation, error) {
	if id != "" {
		return s.store.GetConversation(ctx, userID, id)
	}

	now := s.now()
	conv := &store.Conversation{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     Title(content),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	s.logger.Debug("conversation created", "conversation_id", conv.ID)
	return conv, nil
}

// Title derives a conversation title from its first message.
func Title(content string) string {
	title := strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(title) <= maxTitleRunes {
		return title
	}
	runes := []rune(title)
	return strings.TrimSpace(string(runes[:maxTitleRunes-3])) + "..."
}

// persistReplies wraps the responder channel, forwarding chunks as they
// arrive and saving the assistant message once the reply is done.
func (s *Service) persistReplies(ctx context.Context, conversationID string, in <-chan *Reply) <-chan Event {
	out := make(chan Event, 16)

	go func() {
		defer close(out)

		var buf strings.Builder
		for reply := range in {
			var ev Event
			terminal := false

			switch reply.Event {
			case ReplyChunk:
				if reply.Text == "" {
					continue
				}
				buf.WriteString(reply.Text)
				ev = Event{Kind: EventChunk, Text: reply.Text}

			case ReplyDone:
				content := buf.String()
				if content == "" {
					content = reply.Text
				}
				msg := &store.Message{
					ID:             uuid.New().String(),
					ConversationID: conversationID,
					Role:           store.AuthorAssistant,
					Content:        content,
					CreatedAt:      s.now(),
				}
				s.saveMessage(msg)
				ev = Event{Kind: EventDone, MessageID: msg.ID, Timestamp: msg.CreatedAt}
				terminal = true

			case ReplyError:
				ev = Event{Kind: EventError, Text: reply.Error}
				terminal = true

			default:
				s.logger.Warn("ignoring unknown reply event", "event", reply.Event)
				continue
			}

			select {
			case out <- ev:
			case <-ctx.Done():
				s.logger.Debug("context cancelled during reply streaming", "conversation_id", conversationID)
				go drain(in)
				return
			}

			if terminal {
				go drain(in)
				return
			}
		}
	}()

	return out
}

// drain consumes what is left so the responder can finish
func drain(in <-chan *Reply) {
	for range in {
	}
}

// saveMessage saves with a separate timeout context so a reply that
// finished is kept even if the client went away.
func (s *Service) saveMessage(msg *store.Message) {
	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.store.SaveMessage(saveCtx, msg); err != nil {
		s.logger.Error("failed to save message",
			"error", err,
			"message_id", msg.ID,
			"conversation_id", msg.ConversationID)
		return
	}
	s.logger.Debug("assistant message saved",
		"message_id", msg.ID,
		"conversation_id", msg.ConversationID)
}

// ListConversations returns the user's conversations, most recent first
func (s *Service) ListConversations(ctx context.Context, userID int64, limit int) ([]*store.Conversation, error) {
	return s.store.ListConversations(ctx, userID, limit)
}

// DeleteConversation removes one of the user's conversations
func (s *Service) DeleteConversation(ctx context.Context, userID int64, id string) error {
	return s.store.DeleteConversation(ctx, userID, id)
}

// GetHistory returns the messages of one of the user's conversations
func (s *Service) GetHistory(ctx context.Context, userID int64, id string, limit int) ([]*store.Message, error) {
	if _, err := s.store.GetConversation(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.store.GetMessages(ctx, id, limit)
}
