// ABOUTME: In-memory fan-out of session snapshots to subscribers
// ABOUTME: Each subscriber sees the latest state; stale undelivered snapshots are replaced

package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// broadcaster publishes State snapshots to subscribers. Channels hold one
// pending snapshot: a slow reader skips intermediate states but always
// receives the most recent one.
type broadcaster struct {
	mu          sync.Mutex
	subscribers map[string]chan State
	logger      *slog.Logger
}

func newBroadcaster(logger *slog.Logger) *broadcaster {
	return &broadcaster{
		subscribers: make(map[string]chan State),
		logger:      logger,
	}
}

// subscribe registers a channel primed with initial. It is closed and
// removed when ctx is cancelled.
func (b *broadcaster) subscribe(ctx context.Context, initial State) <-chan State {
	subID := uuid.New().String()
	ch := make(chan State, 1)
	ch <- initial

	b.mu.Lock()
	b.subscribers[subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.unsubscribe(subID)
	}()

	return ch
}

// publish delivers s to every subscriber, replacing any snapshot still
// waiting in its channel. Never blocks.
func (b *broadcaster) publish(s State) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- s:
			continue
		default:
		}
		// Drop the stale snapshot, then send; both happen under mu so no
		// other publisher can refill the slot in between.
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

func (b *broadcaster) unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subscribers[subID]
	if !ok {
		return
	}
	delete(b.subscribers, subID)
	close(ch)

	b.logger.Debug("subscriber removed", "sub_id", subID)
}

func (b *broadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
