package stream

import (
	"errors"
	"fmt"
	"sync"

	"github.com/orchestra-mcp/presence/src/types"
)

var (
	ErrSubscriberNotFound = errors.New("stream subscriber not found")
	ErrSubscriberLagging  = errors.New("stream subscriber lagging")
)

// Subscription is the in-memory side of one open push stream.
type Subscription struct {
	ID     string
	Room   string
	Events chan types.BroadcastEvent

	done chan struct{}
	once sync.Once
}

// Done is closed when the subscription is cancelled.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) cancel() { s.once.Do(func() { close(s.done) }) }

// Adapter delivers broadcast events to open push streams. Slow streams are
// reported as failures rather than blocking the publisher.
type Adapter struct {
	mu      sync.RWMutex
	subs    map[string]*Subscription
	bufSize int
}

// New creates an adapter with the given per-stream buffer. bufSize <= 0
// defaults to 64.
func New(bufSize int) *Adapter {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &Adapter{subs: make(map[string]*Subscription), bufSize: bufSize}
}

// Subscribe opens a subscription for connID scoped to room.
func (a *Adapter) Subscribe(connID, room string) *Subscription {
	sub := &Subscription{
		ID:     connID,
		Room:   room,
		Events: make(chan types.BroadcastEvent, a.bufSize),
		done:   make(chan struct{}),
	}
	a.mu.Lock()
	if old, ok := a.subs[connID]; ok {
		old.cancel()
	}
	a.subs[connID] = sub
	a.mu.Unlock()
	return sub
}

// Unsubscribe cancels and forgets connID's subscription.
func (a *Adapter) Unsubscribe(connID string) {
	a.mu.Lock()
	sub, ok := a.subs[connID]
	delete(a.subs, connID)
	a.mu.Unlock()
	if ok {
		sub.cancel()
	}
}

// Push enqueues ev for connID. It satisfies broadcast.Pusher.
func (a *Adapter) Push(connID string, ev types.BroadcastEvent) error {
	a.mu.RLock()
	sub, ok := a.subs[connID]
	a.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSubscriberNotFound, connID)
	}
	select {
	case <-sub.done:
		return fmt.Errorf("%w: %s", ErrSubscriberNotFound, connID)
	default:
	}
	select {
	case sub.Events <- ev:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrSubscriberLagging, connID)
	}
}

// Notify is a no-op: push streams only carry broadcast events.
func (a *Adapter) Notify(string, types.Notice) error { return nil }

// Count returns the number of open streams.
func (a *Adapter) Count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.subs)
}
