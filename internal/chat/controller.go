// ABOUTME: Streaming chat controller: message list plus one in-flight streamed reply
// ABOUTME: Reduces chunk/complete/error callbacks into the buffer and finalized messages

package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/uvci/campus-assistant/internal/api"
)

// FallbackError is shown when a stream fails without a usable message.
const FallbackError = "Erreur de connexion au serveur."

// errorMarker prefixes synthetic assistant messages that report a failure.
const errorMarker = "⚠️ "

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one finalized entry of the conversation. Never mutated once
// appended.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time
	Sources   []string
}

// IsError reports whether the message is a synthetic failure notice.
func (m Message) IsError() bool {
	return m.Role == RoleAssistant && strings.HasPrefix(m.Content, errorMarker)
}

// Streamer opens one chat stream. It returns an error without calling any
// handler when the stream cannot start; otherwise exactly one of
// OnComplete or OnError is called. *api.Client satisfies it.
type Streamer interface {
	SendMessageStream(ctx context.Context, req api.StreamRequest, h api.StreamHandlers) error
}

// Observer is told about changes so a view can redraw. Calls come from the
// goroutine that caused the change and are never made while the
// controller's lock is held.
type Observer interface {
	// MessageAdded fires after a message is appended.
	MessageAdded(msg Message)
	// Chunk fires after fragment is appended to the streaming buffer.
	Chunk(fragment string)
	// Idle fires when the in-flight stream has finished.
	Idle()
}

// Controller owns the message list, the streaming buffer and the bound
// conversation id. At most one stream is in flight.
type Controller struct {
	streamer Streamer
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string

	mu             sync.Mutex
	messages       []Message
	buffer         strings.Builder
	inFlight       bool
	idle           chan struct{}
	conversationID string
}

// Option configures a Controller.
type Option func(*Controller)

// WithObserver registers the change observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger.With("component", "chat")
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController creates an idle controller with no conversation bound.
func NewController(streamer Streamer, opts ...Option) *Controller {
	idle := make(chan struct{})
	close(idle)

	c := &Controller{
		streamer: streamer,
		logger:   slog.Default().With("component", "chat"),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
		idle:     idle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// stream tracks one send so that late or duplicate terminal callbacks are
// ignored.
type stream struct {
	finished bool
}

// Send posts text as a user message and starts streaming the reply in the
// background. It returns false, changing nothing, when text is blank or a
// reply is still streaming. ctx bounds the stream.
func (c *Controller) Send(ctx context.Context, text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		c.logger.Debug("send rejected, reply still streaming")
		return false
	}

	userMsg := Message{
		ID:        c.newID(),
		Role:      RoleUser,
		Content:   text,
		Timestamp: c.now(),
	}
	c.messages = append(c.messages, userMsg)
	c.inFlight = true
	c.buffer.Reset()
	c.idle = make(chan struct{})
	req := api.StreamRequest{Message: text, ConversationID: c.conversationID}
	c.mu.Unlock()

	c.notifyMessage(userMsg)

	go c.run(ctx, req)
	return true
}

// run drives one stream to its terminal state.
func (c *Controller) run(ctx context.Context, req api.StreamRequest) {
	st := &stream{}
	handlers := api.StreamHandlers{
		OnChunk:    func(fragment string) { c.chunk(st, fragment) },
		OnComplete: func(meta api.StreamMetadata) { c.complete(st, meta) },
		OnError:    func(message string) { c.fail(st, message) },
	}

	if err := c.streamer.SendMessageStream(ctx, req, handlers); err != nil {
		c.logger.Warn("chat stream failed to start", "error", err)
		c.fail(st, "")
		return
	}

	// The streamer promised a terminal callback; never leave the controller
	// stuck in flight if it broke that promise.
	c.mu.Lock()
	finished := st.finished
	c.mu.Unlock()
	if !finished {
		c.logger.Warn("chat stream returned without completing")
		c.fail(st, "")
	}
}

func (c *Controller) chunk(st *stream, fragment string) {
	c.mu.Lock()
	if st.finished {
		c.mu.Unlock()
		return
	}
	c.buffer.WriteString(fragment)
	c.mu.Unlock()

	if c.observer != nil {
		c.observer.Chunk(fragment)
	}
}

func (c *Controller) complete(st *stream, meta api.StreamMetadata) {
	c.mu.Lock()
	if st.finished {
		c.mu.Unlock()
		return
	}
	st.finished = true

	if c.conversationID == "" && meta.ConversationID != "" {
		c.conversationID = meta.ConversationID
		c.logger.Debug("conversation bound", "conversation_id", meta.ConversationID)
	}

	msg := Message{
		ID:        meta.MessageID,
		Role:      RoleAssistant,
		Content:   c.buffer.String(),
		Timestamp: meta.Timestamp,
	}
	if msg.ID == "" {
		msg.ID = c.newID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = c.now()
	}
	idle := c.finishLocked(msg)
	c.mu.Unlock()

	c.notifyFinished(msg)
	close(idle)
}

func (c *Controller) fail(st *stream, message string) {
	c.mu.Lock()
	if st.finished {
		c.mu.Unlock()
		return
	}
	st.finished = true

	text := strings.TrimSpace(message)
	if text == "" {
		text = FallbackError
	}
	msg := Message{
		ID:        c.newID(),
		Role:      RoleAssistant,
		Content:   errorMarker + text,
		Timestamp: c.now(),
	}
	idle := c.finishLocked(msg)
	c.mu.Unlock()

	c.notifyFinished(msg)
	close(idle)
}

// finishLocked appends the final message and clears in-flight. It returns
// the idle channel of the finished send; the caller closes it after the
// observer has been told, so Wait never returns ahead of the observer.
// Must be called with mu held.
func (c *Controller) finishLocked(msg Message) chan struct{} {
	c.messages = append(c.messages, msg)
	c.buffer.Reset()
	c.inFlight = false
	return c.idle
}

func (c *Controller) notifyMessage(msg Message) {
	if c.observer != nil {
		c.observer.MessageAdded(msg)
	}
}

func (c *Controller) notifyFinished(msg Message) {
	if c.observer != nil {
		c.observer.MessageAdded(msg)
		c.observer.Idle()
	}
}

// Wait blocks until no reply is streaming and the observer has handled the
// final message, or until ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Messages returns a copy of the finalized messages in order.
func (c *Controller) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Message, len(c.messages))
	for i, m := range c.messages {
		if m.Sources != nil {
			m.Sources = append([]string(nil), m.Sources...)
		}
		out[i] = m
	}
	return out
}

// Streaming returns the partial reply received so far.
func (c *Controller) Streaming() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.String()
}

// InFlight reports whether a reply is streaming. Input should be disabled
// while it is true.
func (c *Controller) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// ConversationID returns the bound conversation id, or "" before the first
// completed reply.
func (c *Controller) ConversationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversationID
}

// Reset clears the messages and unbinds the conversation so the next send
// starts a new one. Refused while a reply is streaming.
func (c *Controller) Reset() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight {
		return false
	}
	c.messages = nil
	c.conversationID = ""
	c.buffer.Reset()
	return true
}
