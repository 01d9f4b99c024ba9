// ABOUTME: Per-key cooldown window with bounded size and oldest-first eviction
// ABOUTME: Used by the mock API to throttle reset-link requests and UVCI link attempts

package cooldown

import (
	"container/list"
	"sync"
	"time"
)

type entry struct {
	at      time.Time
	element *list.Element
}

// Window remembers when each key last acted and refuses the key again until
// the window has passed. It holds at most maxKeys keys; the oldest is
// evicted first.
type Window struct {
	mu      sync.Mutex
	last    map[string]*entry
	order   *list.List // oldest at front
	window  time.Duration
	maxKeys int
	now     func() time.Time
}

// New creates a Window. A non-positive maxKeys defaults to 1024.
func New(window time.Duration, maxKeys int) *Window {
	if maxKeys <= 0 {
		maxKeys = 1024
	}
	return &Window{
		last:    make(map[string]*entry),
		order:   list.New(),
		window:  window,
		maxKeys: maxKeys,
		now:     time.Now,
	}
}

// Allow reports whether key may act now and, if so, starts its cooldown.
// Checking and marking happen under one lock.
func (w *Window) Allow(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if e, ok := w.last[key]; ok && now.Sub(e.at) < w.window {
		return false
	}
	w.markLocked(key, now)
	return true
}

// Remaining returns how long key must still wait, zero if it may act.
func (w *Window) Remaining(key string) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.last[key]
	if !ok {
		return 0
	}
	left := w.window - w.now().Sub(e.at)
	if left < 0 {
		return 0
	}
	return left
}

// Forget clears the cooldown of key
func (w *Window) Forget(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if e, ok := w.last[key]; ok {
		w.order.Remove(e.element)
		delete(w.last, key)
	}
}

// Len returns the number of tracked keys
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.last)
}

// markLocked must be called with mu held.
func (w *Window) markLocked(key string, now time.Time) {
	if e, ok := w.last[key]; ok {
		e.at = now
		w.order.MoveToBack(e.element)
		return
	}

	w.pruneLocked(now)
	if len(w.last) >= w.maxKeys {
		w.evictOldestLocked()
	}

	w.last[key] = &entry{at: now, element: w.order.PushBack(key)}
}

// pruneLocked drops expired keys from the front of the order list.
func (w *Window) pruneLocked(now time.Time) {
	for front := w.order.Front(); front != nil; front = w.order.Front() {
		key, _ := front.Value.(string)
		if now.Sub(w.last[key].at) < w.window {
			return
		}
		w.order.Remove(front)
		delete(w.last, key)
	}
}

func (w *Window) evictOldestLocked() {
	front := w.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	w.order.Remove(front)
	delete(w.last, key)
}
