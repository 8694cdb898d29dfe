package broadcast

import (
	"time"

	"github.com/orchestra-mcp/presence/src/types"
)

// ring is a bounded, append-only event buffer for one room. Oldest events
// are evicted first.
type ring struct {
	events []types.BroadcastEvent
	limit  int
}

func newRing(limit int) *ring {
	return &ring{events: make([]types.BroadcastEvent, 0, limit), limit: limit}
}

func (r *ring) append(ev types.BroadcastEvent) {
	if len(r.events) >= r.limit {
		n := copy(r.events, r.events[len(r.events)-r.limit+1:])
		r.events = r.events[:n]
	}
	r.events = append(r.events, ev)
}

// since returns a copy of events newer than t, oldest first. A zero t
// returns everything.
func (r *ring) since(t time.Time) []types.BroadcastEvent {
	out := make([]types.BroadcastEvent, 0, len(r.events))
	for _, ev := range r.events {
		if t.IsZero() || ev.Timestamp.After(t) {
			out = append(out, ev)
		}
	}
	return out
}

// purge drops events older than cutoff and returns how many were removed.
// Relayed events keep their origin timestamp, so order is not assumed.
func (r *ring) purge(cutoff time.Time) int {
	kept := r.events[:0]
	for _, ev := range r.events {
		if !ev.Timestamp.Before(cutoff) {
			kept = append(kept, ev)
		}
	}
	removed := len(r.events) - len(kept)
	r.events = kept
	return removed
}
