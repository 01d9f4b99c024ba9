// ABOUTME: Tests for the SSE frame reader
// ABOUTME: Covers multi-line data, comments, default event names and trailing frames

package api

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	err := readSSE(context.Background(), strings.NewReader(body), func(ev sseEvent) error {
		events = append(events, ev)
		return nil
	})
	require.NoError(t, err)
	return events
}

func TestReadSSE_Frames(t *testing.T) {
	body := ": keep-alive\n\n" +
		"event: chunk\ndata: {\"content\":\"Hi\"}\n\n" +
		"data: plain\n\n" +
		"event: done\ndata: {\"a\":1}\ndata: {\"b\":2}\n\n"

	events := collectSSE(t, body)

	assert.Equal(t, []sseEvent{
		{Event: "chunk", Data: `{"content":"Hi"}`},
		{Event: "message", Data: "plain"},
		{Event: "done", Data: "{\"a\":1}\n{\"b\":2}"},
	}, events)
}

func TestReadSSE_TrailingFrameWithoutBlankLine(t *testing.T) {
	events := collectSSE(t, "event: error\ndata: {\"message\":\"x\"}")

	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0].Event)
}

func TestReadSSE_EventWithoutDataIsDropped(t *testing.T) {
	events := collectSSE(t, "event: chunk\n\nevent: done\ndata: {}\n\n")

	require.Len(t, events, 1)
	assert.Equal(t, "done", events[0].Event, "event name must not leak into the next frame")
}

func TestReadSSE_HandlerErrorStops(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	err := readSSE(context.Background(), strings.NewReader("data: 1\n\ndata: 2\n\n"), func(sseEvent) error {
		calls++
		return stop
	})

	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestReadSSE_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := readSSE(ctx, strings.NewReader("data: 1\n\n"), func(sseEvent) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadSSE_LongFragmentLine(t *testing.T) {
	fragment := strings.Repeat("é", 100*1024)
	events := collectSSE(t, "event: chunk\ndata: "+fragment+"\n\n")

	require.Len(t, events, 1)
	assert.Equal(t, fragment, events[0].Data)
}

func TestReadSSE_LineOverLimit(t *testing.T) {
	body := "event: chunk\ndata: " + strings.Repeat("x", maxSSELine+1) + "\n\n"
	err := readSSE(context.Background(), strings.NewReader(body), func(sseEvent) error { return nil })
	assert.Error(t, err)
}
