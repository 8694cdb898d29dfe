// Package dedup implements the consumer side of the broadcastId contract:
// an event id is acted on at most once within a bounded window.
package dedup

import "sync"

// Window remembers the most recent ids in a ring.
type Window struct {
	mu   sync.Mutex
	ring []string
	next int
	seen map[string]struct{}
}

// New creates a window holding up to size ids. size <= 0 defaults to 256.
func New(size int) *Window {
	if size <= 0 {
		size = 256
	}
	return &Window{
		ring: make([]string, size),
		seen: make(map[string]struct{}, size),
	}
}

// Seen records id and reports whether it was already recorded. Empty ids
// are never considered duplicates.
func (w *Window) Seen(id string) bool {
	if id == "" {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.seen[id]; ok {
		return true
	}
	if old := w.ring[w.next]; old != "" {
		delete(w.seen, old)
	}
	w.ring[w.next] = id
	w.seen[id] = struct{}{}
	w.next = (w.next + 1) % len(w.ring)
	return false
}

// Len returns the number of remembered ids.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen)
}
