package broadcast

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/orchestra-mcp/presence/src/types"
	"github.com/rs/zerolog"
)

// Pusher is a transport adapter able to deliver to one of its connections.
type Pusher interface {
	Push(connID string, ev types.BroadcastEvent) error
	Notify(connID string, n types.Notice) error
}

// Members resolves and prunes room membership.
type Members interface {
	MembersOf(roomID string) []string
	Leave(connID, roomID string) bool
}

// Relay forwards locally published events to other instances.
// Defined here to avoid circular imports with the bridge package.
type Relay interface {
	Publish(ev types.BroadcastEvent) error
	Available() bool
}

// Options bounds the per-room buffers.
type Options struct {
	MaxBufferedEvents int
	Retention         time.Duration
	Now               func() time.Time
}

// Receipt acknowledges a publish.
type Receipt struct {
	BroadcastID string
	Delivered   int
	Failed      int
}

// Broadcaster buffers events per room and fans them out to live
// connections through whichever Pusher each connection is attached to.
type Broadcaster struct {
	// mu is held for the whole of a fan-out so events reach each
	// connection of a room in publish order.
	mu      sync.Mutex
	buffers map[string]*ring

	routesMu sync.RWMutex
	routes   map[string]Pusher

	members Members
	relay   Relay
	opts    Options
	logger  zerolog.Logger
}

// New creates a broadcaster resolving room members through members.
func New(members Members, opts Options, logger zerolog.Logger) *Broadcaster {
	if opts.MaxBufferedEvents <= 0 {
		opts.MaxBufferedEvents = 20
	}
	if opts.Retention <= 0 {
		opts.Retention = time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Broadcaster{
		buffers: make(map[string]*ring),
		routes:  make(map[string]Pusher),
		members: members,
		opts:    opts,
		logger:  logger.With().Str("component", "broadcaster").Logger(),
	}
}

// SetRelay attaches a cross-instance relay.
func (b *Broadcaster) SetRelay(r Relay) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.relay = r
}

// Attach routes pushes for connID through p.
func (b *Broadcaster) Attach(connID string, p Pusher) {
	b.routesMu.Lock()
	defer b.routesMu.Unlock()
	b.routes[connID] = p
}

// Detach stops live delivery to connID.
func (b *Broadcaster) Detach(connID string) {
	b.routesMu.Lock()
	defer b.routesMu.Unlock()
	delete(b.routes, connID)
}

// Live returns the number of attached connections.
func (b *Broadcaster) Live() int {
	b.routesMu.RLock()
	defer b.routesMu.RUnlock()
	return len(b.routes)
}

// Publish validates, stamps, buffers and delivers an event, then relays it.
// A broadcastID supplied by the producer is kept so retries stay
// recognisable to consumers. Members that fail to receive are evicted from
// the room; ErrDeliveryFailed is returned only when every attempt failed.
func (b *Broadcaster) Publish(roomID string, typ types.EventType, payload map[string]any, broadcastID string) (Receipt, error) {
	if roomID == "" || (roomID != types.Global && !types.ValidRoom(roomID)) {
		return Receipt{}, fmt.Errorf("%w: invalid room %q", ErrMalformedEvent, roomID)
	}
	if !typ.Valid() {
		return Receipt{}, fmt.Errorf("%w: invalid type %q", ErrMalformedEvent, typ)
	}
	if broadcastID == "" {
		if id, ok := payload["broadcastId"].(string); ok {
			broadcastID = id
		}
	}
	if broadcastID == "" {
		broadcastID = uuid.NewString()
	}

	now := b.opts.Now()
	body := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		body[k] = v
	}
	body["broadcastId"] = broadcastID
	body["timestamp"] = now.UnixMilli()

	ev := types.BroadcastEvent{
		BroadcastID: broadcastID,
		Type:        typ,
		Room:        roomID,
		Payload:     body,
		Timestamp:   now,
	}
	receipt, err := b.deliver(ev)

	b.mu.Lock()
	relay := b.relay
	b.mu.Unlock()
	if relay != nil && relay.Available() {
		if rerr := relay.Publish(ev); rerr != nil {
			b.logger.Error().Err(rerr).Str("broadcast_id", broadcastID).Msg("relay publish failed")
		}
	}
	return receipt, err
}

// PublishLocal buffers and delivers an already-stamped event without
// relaying it.
func (b *Broadcaster) PublishLocal(ev types.BroadcastEvent) (Receipt, error) {
	if ev.Room == "" || ev.BroadcastID == "" || !ev.Type.Valid() {
		return Receipt{}, fmt.Errorf("%w: relayed event %q", ErrMalformedEvent, ev.BroadcastID)
	}
	return b.deliver(ev)
}

func (b *Broadcaster) deliver(ev types.BroadcastEvent) (Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf := b.bufferLocked(ev.Room)
	buf.purge(b.opts.Now().Add(-b.opts.Retention))
	buf.append(ev)

	receipt := Receipt{BroadcastID: ev.BroadcastID}
	for _, id := range b.targets(ev.Room) {
		p, ok := b.route(id)
		if !ok {
			continue
		}
		if err := p.Push(id, ev); err != nil {
			receipt.Failed++
			b.logger.Warn().
				Err(err).
				Str("conn_id", id).
				Str("room", ev.Room).
				Str("broadcast_id", ev.BroadcastID).
				Msg("transport delivery failure, evicting")
			if ev.Room != types.Global {
				b.members.Leave(id, ev.Room)
			}
			continue
		}
		receipt.Delivered++
	}

	b.logger.Debug().
		Str("room", ev.Room).
		Str("type", string(ev.Type)).
		Int("delivered", receipt.Delivered).
		Msg("event published")

	if receipt.Delivered == 0 && receipt.Failed > 0 {
		return receipt, fmt.Errorf("%w: room %s", ErrDeliveryFailed, ev.Room)
	}
	return receipt, nil
}

// Notify sends an unbuffered notice to a room, or to every live
// connection for types.Global. Failures are logged only.
func (b *Broadcaster) Notify(roomID string, n types.Notice) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	sent := 0
	for _, id := range b.targets(roomID) {
		p, ok := b.route(id)
		if !ok {
			continue
		}
		if err := p.Notify(id, n); err != nil {
			b.logger.Debug().Err(err).Str("conn_id", id).Str("notice", n.Name).Msg("notice dropped")
			continue
		}
		sent++
	}
	return sent
}

// Recent returns buffered events for roomID newer than since, oldest first.
// Expired events are purged first.
func (b *Broadcaster) Recent(roomID string, since time.Time) []types.BroadcastEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, ok := b.buffers[roomID]
	if !ok {
		return nil
	}
	buf.purge(b.opts.Now().Add(-b.opts.Retention))
	if len(buf.events) == 0 {
		delete(b.buffers, roomID)
		return nil
	}
	return buf.since(since)
}

// PurgeOlderThan drops buffered events of roomID older than maxAge.
func (b *Broadcaster) PurgeOlderThan(roomID string, maxAge time.Duration) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.purgeLocked(roomID, b.opts.Now().Add(-maxAge))
}

// PurgeExpired applies the retention window to every buffer.
func (b *Broadcaster) PurgeExpired() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := b.opts.Now().Add(-b.opts.Retention)
	removed := 0
	for roomID := range b.buffers {
		removed += b.purgeLocked(roomID, cutoff)
	}
	return removed
}

// Buffered returns room names with their buffered event counts.
func (b *Broadcaster) Buffered() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]int, len(b.buffers))
	for id, buf := range b.buffers {
		out[id] = len(buf.events)
	}
	return out
}

func (b *Broadcaster) purgeLocked(roomID string, cutoff time.Time) int {
	buf, ok := b.buffers[roomID]
	if !ok {
		return 0
	}
	n := buf.purge(cutoff)
	if len(buf.events) == 0 {
		delete(b.buffers, roomID)
	}
	return n
}

func (b *Broadcaster) bufferLocked(roomID string) *ring {
	buf, ok := b.buffers[roomID]
	if !ok {
		buf = newRing(b.opts.MaxBufferedEvents)
		b.buffers[roomID] = buf
	}
	return buf
}

func (b *Broadcaster) targets(roomID string) []string {
	if roomID != types.Global {
		return b.members.MembersOf(roomID)
	}
	b.routesMu.RLock()
	defer b.routesMu.RUnlock()
	ids := make([]string, 0, len(b.routes))
	for id := range b.routes {
		ids = append(ids, id)
	}
	return ids
}

func (b *Broadcaster) route(connID string) (Pusher, bool) {
	b.routesMu.RLock()
	defer b.routesMu.RUnlock()
	p, ok := b.routes[connID]
	return p, ok
}
