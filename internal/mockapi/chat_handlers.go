// ABOUTME: Chat endpoints of the mock API: streamed replies over SSE and conversation history
// ABOUTME: Each stream ends with one done or error event unless the responder stops early

package mockapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/uvci/campus-assistant/internal/api"
	"github.com/uvci/campus-assistant/internal/auth"
	"github.com/uvci/campus-assistant/internal/conversation"
	"github.com/uvci/campus-assistant/internal/store"
)

const msgConversationNotFound = "Conversation introuvable"

// conversationListLimit caps the history list
const conversationListLimit = 50

type streamBody struct {
	Message        string `json:"message" validate:"required,max=8000"`
	ConversationID string `json:"conversation_id"`
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var body streamBody
	if !decodeBody(w, r, &body) {
		return
	}
	user := auth.MustUserFromContext(r.Context())

	resp, err := s.conversations.SendMessage(r.Context(), &conversation.SendRequest{
		UserID:         user.ID,
		ConversationID: body.ConversationID,
		Content:        body.Message,
	})
	switch {
	case errors.Is(err, conversation.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "Message vide")
		return
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, msgConversationNotFound)
		return
	case err != nil:
		s.logger.Error("failed to send message", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	sse, err := startSSE(w)
	if err != nil {
		s.logger.Error("streaming not supported")
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("client went away", "conversation_id", resp.ConversationID)
			return

		case ev, ok := <-resp.Stream:
			if !ok {
				return
			}
			if err := sse.writeEvent(string(ev.Kind), s.eventPayload(resp.ConversationID, ev)); err != nil {
				s.logger.Warn("writing stream event", "error", err)
				return
			}
		}
	}
}

// eventPayload converts a conversation event to its SSE data object.
func (s *Server) eventPayload(conversationID string, ev conversation.Event) any {
	switch ev.Kind {
	case conversation.EventDone:
		return api.StreamMetadata{
			ConversationID: conversationID,
			MessageID:      ev.MessageID,
			Timestamp:      ev.Timestamp,
		}
	case conversation.EventError:
		return map[string]string{"message": ev.Text}
	default:
		return map[string]string{"content": ev.Text}
	}
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())

	convs, err := s.conversations.ListConversations(r.Context(), user.ID, conversationListLimit)
	if err != nil {
		s.logger.Error("listing conversations", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	writeJSON(w, http.StatusOK, lo.Map(convs, func(c *store.Conversation, _ int) api.Conversation {
		return api.Conversation{
			ID:           c.ID,
			Title:        c.Title,
			CreatedAt:    c.CreatedAt.In(time.UTC),
			UpdatedAt:    c.UpdatedAt.In(time.UTC),
			MessageCount: c.MessageCount,
		}
	}))
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())

	err := s.conversations.DeleteConversation(r.Context(), user.ID, chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgConversationNotFound)
		return
	}
	if err != nil {
		s.logger.Error("deleting conversation", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}
	writeMessage(w, "Conversation supprimée")
}
