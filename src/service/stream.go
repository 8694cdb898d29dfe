package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/orchestra-mcp/presence/src/stream"
	"github.com/orchestra-mcp/presence/src/types"
)

// StreamSession is an open push stream: its subscription, the identity it
// was registered under, and the buffered events to replay first.
type StreamSession struct {
	Sub      *stream.Subscription
	Identity string
	Replay   []types.BroadcastEvent
}

// OpenStream registers a push-stream transport and subscribes it to
// roomID. The subscription is live before the replay is read, so no event
// falls between the two; one may appear in both.
func (s *Service) OpenStream(identity, tabID, roomID string, since time.Time) (*StreamSession, error) {
	if !types.ValidRoom(roomID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRoom, roomID)
	}
	connID := "sse_" + uuid.NewString()
	identity, count := s.registry.Connect(identity, tabID, connID)

	sub := s.streams.Subscribe(connID, roomID)
	s.bus.Attach(connID, s.streams)
	if s.rooms.Join(connID, roomID) {
		s.announceRoomCount(roomID)
	}
	s.announceOnline(count)

	return &StreamSession{
		Sub:      sub,
		Identity: identity,
		Replay:   s.bus.Recent(roomID, since),
	}, nil
}

// CloseStream tears a push stream down after the client went away.
func (s *Service) CloseStream(connID string) {
	s.streams.Unsubscribe(connID)
	s.CloseTransport(connID)
}

// KeepAlive refreshes the identity behind a live transport. It reports
// false once the transport is no longer registered.
func (s *Service) KeepAlive(transportID string) bool {
	_, ok := s.registry.Touch(transportID)
	return ok
}
