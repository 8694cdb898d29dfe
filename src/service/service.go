package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/orchestra-mcp/presence/config"
	"github.com/orchestra-mcp/presence/src/broadcast"
	"github.com/orchestra-mcp/presence/src/freeze"
	"github.com/orchestra-mcp/presence/src/hub"
	"github.com/orchestra-mcp/presence/src/presence"
	"github.com/orchestra-mcp/presence/src/rooms"
	"github.com/orchestra-mcp/presence/src/stream"
	"github.com/orchestra-mcp/presence/src/types"
	"github.com/rs/zerolog"
)

// Service is the one state holder for presence, freeze, rooms and
// broadcast. Every transport reads and writes through it.
type Service struct {
	cfg      *config.Config
	registry *presence.Registry
	rooms    *rooms.Index
	freeze   *freeze.Store
	bus      *broadcast.Broadcaster
	hub      *hub.Hub
	streams  *stream.Adapter
	logger   zerolog.Logger
}

// New builds the core state and wires the hub's callbacks to it.
func New(cfg *config.Config, h *hub.Hub, logger zerolog.Logger) *Service {
	s := &Service{
		cfg:     cfg,
		rooms:   rooms.New(),
		hub:     h,
		streams: stream.New(cfg.Stream.BufferSize),
		logger:  logger.With().Str("component", "service").Logger(),
	}
	s.bus = broadcast.New(s.rooms, broadcast.Options{
		MaxBufferedEvents: cfg.Broadcast.MaxBufferedEvents,
		Retention:         cfg.Broadcast.Retention,
	}, logger)
	s.registry = presence.NewRegistry(s, presence.Options{
		StaleAfter:     cfg.Presence.StaleAfter,
		DriftThreshold: cfg.Presence.DriftThreshold,
	}, logger)
	s.freeze = freeze.New(cfg.Admin.Key, s, logger)

	h.SetHandler(s.HandleSocket)
	h.OnConnection(s.openSocket)
	h.OnDisconnection(func(clientID string) { s.CloseTransport(clientID) })
	return s
}

func (s *Service) Registry() *presence.Registry       { return s.registry }
func (s *Service) Rooms() *rooms.Index                 { return s.rooms }
func (s *Service) Freeze() *freeze.Store               { return s.freeze }
func (s *Service) Broadcaster() *broadcast.Broadcaster { return s.bus }
func (s *Service) Streams() *stream.Adapter            { return s.streams }
func (s *Service) Hub() *hub.Hub                       { return s.hub }

// AttachRelay forwards published events to other instances.
func (s *Service) AttachRelay(r broadcast.Relay) { s.bus.SetRelay(r) }

// Dispatch executes one inbound command.
func (s *Service) Dispatch(cmd types.Command) (types.Result, error) {
	switch c := cmd.(type) {
	case types.Connect:
		return s.Connect(c.Identity, c.TabID, c.TransportID), nil
	case types.Heartbeat:
		return s.Heartbeat(c.Identity, c.TabID, c.TransportID), nil
	case types.Disconnect:
		return s.Disconnect(c.Identity, c.TabID), nil
	case types.JoinRoom:
		s.registry.Touch(c.TransportID)
		return s.JoinRoom(c.RoomID, c.TransportID, c.Since)
	case types.LeaveRoom:
		s.registry.Touch(c.TransportID)
		return s.LeaveRoom(c.RoomID, c.TransportID)
	case types.Publish:
		return s.Publish(c.RoomID, c.Type, c.Payload, c.BroadcastID)
	case types.SetFrozen:
		return s.SetFrozen(c.Scope, c.Frozen, c.Key)
	case types.GetFrozen:
		return s.GetFrozen(c.Scope), nil
	}
	return types.Result{}, fmt.Errorf("%w: %T", types.ErrUnknownAction, cmd)
}

// HandleRequest narrows and dispatches a raw request.
func (s *Service) HandleRequest(req types.Request) (types.Result, error) {
	cmd, err := req.Command()
	if err != nil {
		return types.Result{}, err
	}
	return s.Dispatch(cmd)
}

// Connect registers identity (anonymous when empty).
func (s *Service) Connect(identity, tabID, transportID string) types.Result {
	identity, count := s.registry.Connect(identity, tabID, transportID)
	s.announceOnline(count)
	return types.Result{Action: "connect", Identity: identity, Count: count}
}

// Heartbeat refreshes identity and returns the id to use from now on.
func (s *Service) Heartbeat(identity, tabID, transportID string) types.Result {
	identity = s.registry.Heartbeat(identity, tabID, transportID)
	return types.Result{Action: "heartbeat", Identity: identity}
}

// Disconnect drops a tab, or the identity when tabID is empty.
func (s *Service) Disconnect(identity, tabID string) types.Result {
	removed, count := s.registry.Disconnect(identity, tabID)
	if removed {
		s.announceOnline(count)
	}
	return types.Result{Action: "disconnect", Identity: identity, Removed: &removed, Count: count}
}

// JoinRoom subscribes a registered transport and returns the buffered
// events newer than since for replay.
func (s *Service) JoinRoom(roomID, transportID string, since time.Time) (types.Result, error) {
	if !types.ValidRoom(roomID) {
		return types.Result{}, fmt.Errorf("%w: %q", ErrInvalidRoom, roomID)
	}
	if _, ok := s.registry.Owner(transportID); !ok {
		return types.Result{}, fmt.Errorf("%w: %s", ErrUnknownTransport, transportID)
	}
	if s.rooms.Join(transportID, roomID) {
		s.announceRoomCount(roomID)
	}
	events := s.bus.Recent(roomID, since)
	return types.Result{Action: "joinRoom", Events: events, Count: s.rooms.Size(roomID)}, nil
}

// LeaveRoom unsubscribes a transport. Leaving a room twice is not an error.
func (s *Service) LeaveRoom(roomID, transportID string) (types.Result, error) {
	if !types.ValidRoom(roomID) {
		return types.Result{}, fmt.Errorf("%w: %q", ErrInvalidRoom, roomID)
	}
	if s.rooms.Leave(transportID, roomID) {
		s.announceRoomCount(roomID)
	}
	return types.Result{Action: "leaveRoom", Count: s.rooms.Size(roomID)}, nil
}

// Publish hands an event to the broadcaster.
func (s *Service) Publish(roomID string, typ types.EventType, payload map[string]any, broadcastID string) (types.Result, error) {
	receipt, err := s.bus.Publish(roomID, typ, payload, broadcastID)
	res := types.Result{Action: "publish", BroadcastID: receipt.BroadcastID, Delivered: &receipt.Delivered}
	return res, err
}

// SetFrozen changes a freeze flag. The key is checked before anything
// else happens.
func (s *Service) SetFrozen(scope string, frozen bool, key string) (types.Result, error) {
	v, err := s.freeze.Set(scope, frozen, key)
	if err != nil {
		return types.Result{}, err
	}
	return types.Result{Action: "setFrozen", Frozen: &v}, nil
}

// GetFrozen reads a freeze flag with global fallback.
func (s *Service) GetFrozen(scope string) types.Result {
	v := s.freeze.Get(scope)
	return types.Result{Action: "getFrozen", Frozen: &v}
}

// NotifyFreeze publishes the systemFreeze event for a successful change.
// Event scopes reach their team room; the global scope reaches everyone.
func (s *Service) NotifyFreeze(scope string, frozen bool) {
	room := types.Global
	payload := map[string]any{"frozen": frozen}
	if scope != types.Global {
		room = types.TeamRoom(scope)
		payload["eventId"] = scope
	}
	if _, err := s.bus.Publish(room, types.SystemFreeze, payload, ""); err != nil {
		s.logger.Warn().Err(err).Str("scope", scope).Msg("freeze broadcast incomplete")
	}
}

// ApplyRemote takes an event relayed from another instance: freeze
// changes update local state, then the event is delivered locally.
func (s *Service) ApplyRemote(ev types.BroadcastEvent) {
	if ev.Type == types.SystemFreeze {
		frozen, _ := ev.Payload["frozen"].(bool)
		scope := types.Global
		if id, ok := ev.Payload["eventId"].(string); ok && id != "" {
			scope = id
		}
		s.freeze.Apply(scope, frozen)
	}
	if _, err := s.bus.PublishLocal(ev); err != nil {
		s.logger.Debug().Err(err).Str("broadcast_id", ev.BroadcastID).Msg("relayed event not fully delivered")
	}
}

// LeaveAll is called by the registry before it forgets a transport.
func (s *Service) LeaveAll(transportID string) {
	left := s.rooms.LeaveAll(transportID)
	s.bus.Detach(transportID)
	s.streams.Unsubscribe(transportID)
	s.hub.Disconnect(transportID)
	for _, roomID := range left {
		s.announceRoomCount(roomID)
	}
}

// CloseTransport is the teardown path shared by sockets and streams.
func (s *Service) CloseTransport(transportID string) {
	identity, removed := s.registry.ReleaseTransport(transportID)
	if removed {
		s.announceOnline(s.registry.Count())
	}
	s.logger.Debug().
		Str("transport_id", transportID).
		Str("identity", identity).
		Bool("identity_removed", removed).
		Msg("transport closed")
}

// Online returns the current online count.
func (s *Service) Online() int { return s.registry.Count() }

// RunJanitor sweeps stale identities and expired buffers until ctx ends.
func (s *Service) RunJanitor(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Presence.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Service) sweep() {
	if removed := s.registry.SweepStale(s.cfg.Presence.StaleAfter); removed > 0 {
		s.announceOnline(s.registry.Count())
	}
	if purged := s.bus.PurgeExpired(); purged > 0 {
		s.logger.Debug().Int("purged", purged).Msg("expired buffered events")
	}
}

func (s *Service) openSocket(clientID string) {
	c, ok := s.hub.Client(clientID)
	if !ok {
		return
	}
	identity, count := s.registry.Connect(c.Identity, c.TabID, clientID)
	s.bus.Attach(clientID, s.hub)
	ack := types.Message{
		Event:     types.NoticeAck,
		Data:      map[string]any{"action": "connect", "identity": identity, "clientId": clientID, "count": count},
		Timestamp: time.Now(),
	}
	if err := s.hub.SendToClient(clientID, ack); err != nil {
		s.logger.Debug().Err(err).Str("client_id", clientID).Msg("connect ack dropped")
	}
	s.announceOnline(count)
}

func (s *Service) announceOnline(count int) {
	s.bus.Notify(types.Global, types.Notice{
		Name: types.NoticeOnlineCount,
		Data: map[string]any{"count": count},
	})
}

func (s *Service) announceRoomCount(roomID string) {
	if !strings.HasPrefix(roomID, types.ChallengeRoomPrefix) {
		return
	}
	s.bus.Notify(roomID, types.Notice{
		Name: types.NoticeChallengeRoomCount,
		Data: map[string]any{
			"challenge_id": strings.TrimPrefix(roomID, types.ChallengeRoomPrefix),
			"count":        s.rooms.Size(roomID),
		},
	})
}
