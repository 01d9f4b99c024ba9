// ABOUTME: Chat endpoints: streamed replies over SSE plus conversation history
// ABOUTME: Guarantees exactly one terminal callback per successfully started stream

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// SSE event names on the chat stream.
const (
	eventChunk = "chunk"
	eventDone  = "done"
	eventError = "error"
)

// errStreamFinished stops the SSE reader once a terminal event arrived.
var errStreamFinished = errors.New("stream finished")

type chunkPayload struct {
	Content string `json:"content"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// SendMessageStream posts a message and delivers the reply through h.
//
// If the request cannot be started (transport failure or non-2xx status) it
// returns an error wrapping ErrStreamStart and no handler is called.
// Otherwise it returns nil after exactly one of OnComplete or OnError has
// been called. A stream that breaks or ends without a terminal event is
// reported through OnError with an empty message and logged as
// ErrStreamTransport.
func (c *Client) SendMessageStream(ctx context.Context, req StreamRequest, h StreamHandlers) error {
	ctx, cancel := context.WithTimeout(ctx, c.streamTimeout)
	defer cancel()

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/chat/stream", req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStreamStart, err)
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStreamStart, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %w", ErrStreamStart, statusError(opStream, resp.StatusCode, readDetail(resp.Body)))
	}

	terminated := false
	finish := func(fn func()) {
		if terminated {
			return
		}
		terminated = true
		fn()
	}

	readErr := readSSE(ctx, resp.Body, func(ev sseEvent) error {
		switch ev.Event {
		case eventChunk, "message":
			var p chunkPayload
			if err := json.Unmarshal([]byte(ev.Data), &p); err != nil {
				return fmt.Errorf("parsing chunk: %w", err)
			}
			if h.OnChunk != nil && p.Content != "" {
				h.OnChunk(p.Content)
			}
		case eventDone:
			var meta StreamMetadata
			if err := json.Unmarshal([]byte(ev.Data), &meta); err != nil {
				return fmt.Errorf("parsing completion: %w", err)
			}
			finish(func() {
				if h.OnComplete != nil {
					h.OnComplete(meta)
				}
			})
			return errStreamFinished
		case eventError:
			var p errorPayload
			_ = json.Unmarshal([]byte(ev.Data), &p)
			finish(func() {
				if h.OnError != nil {
					h.OnError(p.Message)
				}
			})
			return errStreamFinished
		default:
			c.logger.Debug("ignoring unknown stream event", "event", ev.Event)
		}
		return nil
	})

	finish(func() {
		c.logger.Warn("chat stream interrupted", "error", transportError(readErr))
		if h.OnError != nil {
			h.OnError("")
		}
	})
	return nil
}

// transportError describes a stream that stopped without a terminal event.
// It wraps ErrStreamTransport and, when reading failed, the read error.
func transportError(readErr error) error {
	if readErr == nil {
		return fmt.Errorf("%w: ended without completion", ErrStreamTransport)
	}
	return fmt.Errorf("%w: %w", ErrStreamTransport, readErr)
}

// Conversations lists the current user's past conversations, newest first.
func (c *Client) Conversations(ctx context.Context) ([]Conversation, error) {
	var convs []Conversation
	if err := c.do(ctx, opConversations, http.MethodGet, "/api/chat/conversations", nil, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// DeleteConversation removes a conversation and its messages.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	path := "/api/chat/conversations/" + url.PathEscape(id)
	return c.do(ctx, opConversations, http.MethodDelete, path, nil, nil)
}
