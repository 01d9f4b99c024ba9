// ABOUTME: Tests for the streamed chat endpoint and conversation history calls
// ABOUTME: Verifies exactly one terminal callback for every stream outcome

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// streamRecorder collects handler calls.
type streamRecorder struct {
	mu        sync.Mutex
	chunks    []string
	completes []StreamMetadata
	errors    []string
}

func (r *streamRecorder) handlers() StreamHandlers {
	return StreamHandlers{
		OnChunk: func(s string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.chunks = append(r.chunks, s)
		},
		OnComplete: func(m StreamMetadata) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.completes = append(r.completes, m)
		},
		OnError: func(s string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errors = append(r.errors, s)
		},
	}
}

func (r *streamRecorder) terminals() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.completes) + len(r.errors)
}

func sseHandler(t *testing.T, frames ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		for _, f := range frames {
			fmt.Fprint(w, f)
			flusher.Flush()
		}
	}
}

func TestSendMessageStream_Complete(t *testing.T) {
	var got StreamRequest
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat/stream", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		sseHandler(t,
			": ping\n\n",
			"event: chunk\ndata: {\"content\":\"Hi\"}\n\n",
			"event: chunk\ndata: {\"content\":\"\"}\n\n",
			"event: chunk\ndata: {\"content\":\" there\"}\n\n",
			"event: done\ndata: {\"conversation_id\":\"c1\",\"message_id\":\"m1\",\"timestamp\":\"2025-01-06T10:00:00Z\"}\n\n",
			"event: chunk\ndata: {\"content\":\"ignored\"}\n\n",
		)(w, r)
	})
	c := newTestClient(t, mux, "tok")
	rec := &streamRecorder{}

	err := c.SendMessageStream(context.Background(), StreamRequest{Message: "Hello", ConversationID: "c0"}, rec.handlers())
	require.NoError(t, err)

	assert.Equal(t, StreamRequest{Message: "Hello", ConversationID: "c0"}, got)
	assert.Equal(t, []string{"Hi", " there"}, rec.chunks)
	require.Len(t, rec.completes, 1)
	assert.Equal(t, "c1", rec.completes[0].ConversationID)
	assert.Equal(t, "m1", rec.completes[0].MessageID)
	assert.Empty(t, rec.errors)
}

func TestSendMessageStream_ErrorEvent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat/stream", sseHandler(t,
		"event: chunk\ndata: {\"content\":\"part\"}\n\n",
		"event: error\ndata: {\"message\":\"LLM unavailable\"}\n\n",
		"event: done\ndata: {\"conversation_id\":\"c1\"}\n\n",
	))
	rec := &streamRecorder{}

	require.NoError(t, newTestClient(t, mux, "t").SendMessageStream(context.Background(), StreamRequest{Message: "x"}, rec.handlers()))

	assert.Equal(t, []string{"LLM unavailable"}, rec.errors)
	assert.Empty(t, rec.completes)
}

func TestSendMessageStream_ErrorEventWithoutMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat/stream", sseHandler(t, "event: error\ndata: {}\n\n"))
	rec := &streamRecorder{}

	require.NoError(t, newTestClient(t, mux, "t").SendMessageStream(context.Background(), StreamRequest{Message: "x"}, rec.handlers()))

	assert.Equal(t, []string{""}, rec.errors)
}

func TestSendMessageStream_EndsWithoutTerminalEvent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat/stream", sseHandler(t, "event: chunk\ndata: {\"content\":\"dangling\"}\n\n"))
	rec := &streamRecorder{}

	require.NoError(t, newTestClient(t, mux, "t").SendMessageStream(context.Background(), StreamRequest{Message: "x"}, rec.handlers()))

	assert.Equal(t, []string{"dangling"}, rec.chunks)
	assert.Equal(t, []string{""}, rec.errors)
	assert.Equal(t, 1, rec.terminals())
}

func TestSendMessageStream_LogsTransportError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat/stream", sseHandler(t, "event: chunk\ndata: {\"content\":\"dangling\"}\n\n"))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	var logs bytes.Buffer
	c := NewClient(srv.URL, staticToken("t"), WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	rec := &streamRecorder{}

	require.NoError(t, c.SendMessageStream(context.Background(), StreamRequest{Message: "x"}, rec.handlers()))

	assert.Equal(t, []string{""}, rec.errors)
	assert.Contains(t, logs.String(), "stream interrupted: ended without completion")
}

func TestTransportError(t *testing.T) {
	ended := transportError(nil)
	assert.ErrorIs(t, ended, ErrStreamTransport)
	assert.Equal(t, "stream interrupted: ended without completion", ended.Error())

	readFailed := errors.New("connection reset")
	broken := transportError(readFailed)
	assert.ErrorIs(t, broken, ErrStreamTransport)
	assert.ErrorIs(t, broken, readFailed)
}

func TestSendMessageStream_MalformedChunk(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat/stream", sseHandler(t, "event: chunk\ndata: not-json\n\n"))
	rec := &streamRecorder{}

	require.NoError(t, newTestClient(t, mux, "t").SendMessageStream(context.Background(), StreamRequest{Message: "x"}, rec.handlers()))

	assert.Equal(t, 1, rec.terminals())
	assert.Equal(t, []string{""}, rec.errors)
}

func TestSendMessageStream_StartFailures(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat/stream", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
	})
	rec := &streamRecorder{}

	err := newTestClient(t, mux, "").SendMessageStream(context.Background(), StreamRequest{Message: "x"}, rec.handlers())
	assert.ErrorIs(t, err, ErrStreamStart)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Zero(t, rec.terminals(), "no handler fires when the stream never started")

	unreachable := NewClient("http://127.0.0.1:1", nil)
	err = unreachable.SendMessageStream(context.Background(), StreamRequest{Message: "x"}, rec.handlers())
	assert.ErrorIs(t, err, ErrStreamStart)
	assert.Zero(t, rec.terminals())
}

func TestConversations(t *testing.T) {
	var deleted string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/chat/conversations", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": "c2", "title": "Examens", "message_count": 4},
			{"id": "c1", "title": "Inscription", "message_count": 2},
		})
	})
	mux.HandleFunc("DELETE /api/chat/conversations/{id}", func(w http.ResponseWriter, r *http.Request) {
		deleted = r.PathValue("id")
		if deleted == "missing" {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Conversation not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
	})
	c := newTestClient(t, mux, "t")
	ctx := context.Background()

	convs, err := c.Conversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "Examens", convs[0].Title)
	assert.Equal(t, 4, convs[0].MessageCount)

	require.NoError(t, c.DeleteConversation(ctx, "c1"))
	assert.Equal(t, "c1", deleted)

	err = c.DeleteConversation(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
