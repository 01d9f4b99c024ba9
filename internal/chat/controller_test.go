// ABOUTME: Tests for the streaming chat controller reducer
// ABOUTME: Scripted streamers cover completion, errors, start failures and in-flight rejection

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uvci/campus-assistant/internal/api"
)

// scriptedStreamer replays chunks and then one terminal event. When gate is
// set, it waits for it to close before sending anything.
type scriptedStreamer struct {
	chunks   []string
	meta     *api.StreamMetadata
	errMsg   *string
	startErr error
	gate     chan struct{}

	mu       sync.Mutex
	requests []api.StreamRequest
}

func (s *scriptedStreamer) SendMessageStream(ctx context.Context, req api.StreamRequest, h api.StreamHandlers) error {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if s.startErr != nil {
		return s.startErr
	}
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			h.OnError("")
			return nil
		}
	}
	for _, c := range s.chunks {
		h.OnChunk(c)
	}
	switch {
	case s.meta != nil:
		h.OnComplete(*s.meta)
	case s.errMsg != nil:
		h.OnError(*s.errMsg)
	}
	return nil
}

func (s *scriptedStreamer) Requests() []api.StreamRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.StreamRequest(nil), s.requests...)
}

func wait(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
}

func strPtr(s string) *string { return &s }

func TestSend_HelloScenario(t *testing.T) {
	ts := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)
	streamer := &scriptedStreamer{
		chunks: []string{"Hi", " there"},
		meta:   &api.StreamMetadata{ConversationID: "c1", MessageID: "m1", Timestamp: ts},
	}
	c := NewController(streamer)

	require.True(t, c.Send(context.Background(), "Hello"))
	wait(t, c)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, "Hello", msgs[0].Content)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Hi there", msgs[1].Content)
	assert.Equal(t, "m1", msgs[1].ID)
	assert.Equal(t, ts, msgs[1].Timestamp)
	assert.Empty(t, c.Streaming())
	assert.False(t, c.InFlight())
	assert.Equal(t, "c1", c.ConversationID())

	reqs := streamer.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, api.StreamRequest{Message: "Hello"}, reqs[0])
}

func TestSend_ErrorWithoutMessageUsesFallback(t *testing.T) {
	c := NewController(&scriptedStreamer{errMsg: strPtr("")})

	require.True(t, c.Send(context.Background(), "Hi"))
	wait(t, c)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	last := msgs[len(msgs)-1]
	assert.Equal(t, RoleAssistant, last.Role)
	assert.Contains(t, last.Content, FallbackError)
	assert.True(t, last.IsError())
	assert.False(t, c.InFlight())
	assert.Empty(t, c.Streaming())
}

func TestSend_ErrorMessageIsShown(t *testing.T) {
	c := NewController(&scriptedStreamer{chunks: []string{"partial"}, errMsg: strPtr("quota exceeded")})

	require.True(t, c.Send(context.Background(), "Hi"))
	wait(t, c)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, errorMarker+"quota exceeded", msgs[1].Content)
	assert.NotContains(t, msgs[1].Content, "partial", "partial text never becomes a message")
	assert.Empty(t, c.ConversationID(), "failed replies do not bind a conversation")
}

func TestSend_StartFailure(t *testing.T) {
	c := NewController(&scriptedStreamer{startErr: fmt.Errorf("%w: dial tcp: refused", api.ErrStreamStart)})

	require.True(t, c.Send(context.Background(), "Hi"))
	wait(t, c)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, errorMarker+FallbackError, msgs[1].Content)
	assert.False(t, c.InFlight())
}

func TestSend_BlankIsNoop(t *testing.T) {
	streamer := &scriptedStreamer{meta: &api.StreamMetadata{ConversationID: "c1", MessageID: "m1"}}
	c := NewController(streamer)

	for _, text := range []string{"", "   ", "\n\t "} {
		assert.False(t, c.Send(context.Background(), text))
	}

	assert.Empty(t, c.Messages())
	assert.Empty(t, streamer.Requests())
	assert.False(t, c.InFlight())
}

func TestSend_RejectedWhileInFlight(t *testing.T) {
	gate := make(chan struct{})
	streamer := &scriptedStreamer{
		chunks: []string{"ok"},
		meta:   &api.StreamMetadata{ConversationID: "c1", MessageID: "m1"},
		gate:   gate,
	}
	c := NewController(streamer)

	require.True(t, c.Send(context.Background(), "first"))
	assert.True(t, c.InFlight())
	before := len(c.Messages())

	assert.False(t, c.Send(context.Background(), "second"))
	assert.Len(t, c.Messages(), before, "rejected send must not append")

	close(gate)
	wait(t, c)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Len(t, streamer.Requests(), 1)
}

func TestSend_ChunkConcatenation(t *testing.T) {
	for n := 0; n <= 12; n++ {
		t.Run(fmt.Sprintf("%d chunks", n), func(t *testing.T) {
			chunks := make([]string, n)
			for i := range chunks {
				chunks[i] = fmt.Sprintf("<%d>", i)
			}
			c := NewController(&scriptedStreamer{
				chunks: chunks,
				meta:   &api.StreamMetadata{ConversationID: "c", MessageID: "m"},
			})

			require.True(t, c.Send(context.Background(), "go"))
			wait(t, c)

			msgs := c.Messages()
			require.Len(t, msgs, 2)
			assert.Equal(t, strings.Join(chunks, ""), msgs[1].Content)
		})
	}
}

func TestSend_StreamingBufferVisibleMidStream(t *testing.T) {
	chunkSeen := make(chan struct{})
	release := make(chan struct{})
	streamer := streamerFunc(func(_ context.Context, _ api.StreamRequest, h api.StreamHandlers) error {
		h.OnChunk("Bon")
		h.OnChunk("jour")
		close(chunkSeen)
		<-release
		h.OnComplete(api.StreamMetadata{ConversationID: "c", MessageID: "m"})
		return nil
	})
	c := NewController(streamer)

	require.True(t, c.Send(context.Background(), "salut"))
	<-chunkSeen

	assert.Equal(t, "Bonjour", c.Streaming())
	assert.Len(t, c.Messages(), 1, "assistant message only appears after completion")

	close(release)
	wait(t, c)
	assert.Empty(t, c.Streaming())
	assert.Len(t, c.Messages(), 2)
}

func TestSend_ConversationIDBoundOnce(t *testing.T) {
	var mu sync.Mutex
	ids := []string{"c1", "c2"}
	var got []api.StreamRequest
	streamer := streamerFunc(func(_ context.Context, req api.StreamRequest, h api.StreamHandlers) error {
		mu.Lock()
		got = append(got, req)
		id := ids[0]
		ids = ids[1:]
		mu.Unlock()
		h.OnComplete(api.StreamMetadata{ConversationID: id, MessageID: "m-" + id})
		return nil
	})
	c := NewController(streamer)

	require.True(t, c.Send(context.Background(), "one"))
	wait(t, c)
	require.True(t, c.Send(context.Background(), "two"))
	wait(t, c)

	assert.Equal(t, "c1", c.ConversationID(), "first reply decides the conversation")
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Empty(t, got[0].ConversationID)
	assert.Equal(t, "c1", got[1].ConversationID)
}

func TestSend_DuplicateTerminalCallbacksIgnored(t *testing.T) {
	streamer := streamerFunc(func(_ context.Context, _ api.StreamRequest, h api.StreamHandlers) error {
		h.OnChunk("a")
		h.OnComplete(api.StreamMetadata{ConversationID: "c", MessageID: "m"})
		h.OnChunk("late")
		h.OnError("late error")
		h.OnComplete(api.StreamMetadata{ConversationID: "x", MessageID: "y"})
		return nil
	})
	c := NewController(streamer)

	require.True(t, c.Send(context.Background(), "q"))
	wait(t, c)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", msgs[1].Content)
	assert.Equal(t, "c", c.ConversationID())
}

func TestSend_MissingTerminalCallbackRecovers(t *testing.T) {
	streamer := streamerFunc(func(_ context.Context, _ api.StreamRequest, h api.StreamHandlers) error {
		h.OnChunk("dangling")
		return nil
	})
	c := NewController(streamer)

	require.True(t, c.Send(context.Background(), "q"))
	wait(t, c)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.True(t, msgs[1].IsError())
	assert.False(t, c.InFlight())
}

func TestSend_ErrorDoesNotCorruptHistory(t *testing.T) {
	calls := 0
	streamer := streamerFunc(func(_ context.Context, _ api.StreamRequest, h api.StreamHandlers) error {
		calls++
		if calls == 1 {
			h.OnChunk("fine")
			h.OnComplete(api.StreamMetadata{ConversationID: "c", MessageID: "m"})
			return nil
		}
		return errors.New("boom")
	})
	c := NewController(streamer)

	require.True(t, c.Send(context.Background(), "a"))
	wait(t, c)
	require.True(t, c.Send(context.Background(), "b"))
	wait(t, c)

	msgs := c.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "fine", msgs[1].Content)
	assert.True(t, msgs[3].IsError())
}

func TestObserver_Notifications(t *testing.T) {
	obs := &recordingObserver{}
	c := NewController(&scriptedStreamer{
		chunks: []string{"x", "y"},
		meta:   &api.StreamMetadata{ConversationID: "c", MessageID: "m"},
	}, WithObserver(obs))

	require.True(t, c.Send(context.Background(), "hi"))
	wait(t, c)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, []string{"msg:user", "chunk:x", "chunk:y", "msg:assistant", "idle"}, obs.events)
}

// slowObserver takes its time over the final message, the way a terminal
// flushing a long reply does.
type slowObserver struct {
	delay    time.Duration
	finished atomic.Bool
	idle     atomic.Bool
}

func (o *slowObserver) MessageAdded(m Message) {
	if m.Role != RoleAssistant {
		return
	}
	time.Sleep(o.delay)
	o.finished.Store(true)
}

func (o *slowObserver) Chunk(string) {}

func (o *slowObserver) Idle() { o.idle.Store(true) }

func TestWait_ReturnsAfterObserverFinishes(t *testing.T) {
	tests := []struct {
		name     string
		streamer *scriptedStreamer
	}{
		{
			name:     "complete",
			streamer: &scriptedStreamer{chunks: []string{"ok"}, meta: &api.StreamMetadata{ConversationID: "c", MessageID: "m"}},
		},
		{
			name:     "error",
			streamer: &scriptedStreamer{errMsg: strPtr("boom")},
		},
		{
			name:     "start failure",
			streamer: &scriptedStreamer{startErr: errors.New("dial refused")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := &slowObserver{delay: 50 * time.Millisecond}
			c := NewController(tt.streamer, WithObserver(obs))

			require.True(t, c.Send(context.Background(), "hi"))
			wait(t, c)

			assert.True(t, obs.finished.Load(), "Wait returned while the observer was still handling the reply")
			assert.True(t, obs.idle.Load(), "Wait returned before Idle was delivered")
		})
	}
}

func TestReset(t *testing.T) {
	gate := make(chan struct{})
	c := NewController(&scriptedStreamer{
		meta: &api.StreamMetadata{ConversationID: "c1", MessageID: "m"},
		gate: gate,
	})

	require.True(t, c.Send(context.Background(), "hi"))
	assert.False(t, c.Reset(), "cannot reset mid-stream")

	close(gate)
	wait(t, c)
	require.Equal(t, "c1", c.ConversationID())

	assert.True(t, c.Reset())
	assert.Empty(t, c.Messages())
	assert.Empty(t, c.ConversationID())
}

func TestWait_RespectsContext(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	c := NewController(&scriptedStreamer{meta: &api.StreamMetadata{}, gate: gate})
	require.True(t, c.Send(context.Background(), "hi"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Wait(ctx), context.DeadlineExceeded)
}

type streamerFunc func(ctx context.Context, req api.StreamRequest, h api.StreamHandlers) error

func (f streamerFunc) SendMessageStream(ctx context.Context, req api.StreamRequest, h api.StreamHandlers) error {
	return f(ctx, req, h)
}

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (o *recordingObserver) MessageAdded(m Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "msg:"+string(m.Role))
}

func (o *recordingObserver) Chunk(fragment string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "chunk:"+fragment)
}

func (o *recordingObserver) Idle() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "idle")
}
