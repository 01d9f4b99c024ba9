// ABOUTME: Server-Sent Events reader for the chat stream endpoint
// ABOUTME: Splits the body into event/data frames and hands each one to a callback

package api

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// maxSSELine bounds a single data line. Each reply fragment arrives on one
// line, so it must hold the longest fragment the server sends.
const maxSSELine = 1 << 20

// sseEvent is a parsed Server-Sent Event.
type sseEvent struct {
	Event string
	Data  string
}

// readSSE reads frames from body until EOF, an error, or ctx is done. Each
// complete frame is passed to handle; a non-nil error from handle stops
// reading and is returned. Frames without an event name default to
// "message" as EventSource does.
func readSSE(ctx context.Context, body io.Reader, handle func(sseEvent) error) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELine)

	var eventType string
	var dataLines []string

	flush := func() error {
		if len(dataLines) == 0 {
			eventType = ""
			return nil
		}
		ev := sseEvent{Event: eventType, Data: strings.Join(dataLines, "\n")}
		if ev.Event == "" {
			ev.Event = "message"
		}
		eventType = ""
		dataLines = nil
		return handle(ev)
	}

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Text()

		// Empty line signals end of event
		if line == "" {
			if err := flush(); err != nil {
				return err
			}
			continue
		}

		// Comment lines are keep-alives
		if strings.HasPrefix(line, ":") {
			continue
		}

		if strings.HasPrefix(line, "event:") {
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		}

		if strings.HasPrefix(line, "data:") {
			data := strings.TrimPrefix(line, "data:")
			data = strings.TrimPrefix(data, " ")
			dataLines = append(dataLines, data)
			continue
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	// A final frame without a trailing blank line still counts
	return flush()
}
