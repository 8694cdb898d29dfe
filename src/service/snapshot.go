package service

import (
	"fmt"
	"time"

	"github.com/orchestra-mcp/presence/src/types"
)

// ControlAction is an administrative freeze command.
type ControlAction string

const (
	ControlFreeze   ControlAction = "freeze"
	ControlUnfreeze ControlAction = "unfreeze"
	ControlStatus   ControlAction = "status"
)

// ControlResult is the reply to a control call.
type ControlResult struct {
	Scope  string `json:"scope"`
	Frozen bool   `json:"frozen"`
}

// Info summarises the live state of this instance.
type Info struct {
	Online   int                `json:"online"`
	Sockets  int                `json:"sockets"`
	Streams  int                `json:"streams"`
	Clients  []types.ClientInfo `json:"clients"`
	Rooms    map[string]int     `json:"rooms"`
	Buffered map[string]int     `json:"buffered"`
}

// Snapshot is the polling view. Team updates come from the event's team
// room, solvers from the challenge room. Both are limited to events newer
// than since when it is set.
func (s *Service) Snapshot(eventID, challengeID string, since time.Time) types.Snapshot {
	scope := types.Global
	if eventID != "" {
		scope = eventID
	}
	snap := types.Snapshot{
		Online:      s.registry.Count(),
		Frozen:      s.freeze.Get(scope),
		LastUpdated: time.Now().UnixMilli(),
	}
	if eventID != "" {
		snap.TeamUpdates = s.bus.Recent(types.TeamRoom(eventID), since)
	}
	if challengeID != "" {
		for _, ev := range s.bus.Recent(types.ChallengeRoom(challengeID), since) {
			if ev.Type == types.FlagSubmitted || ev.Type == types.FlagFirstBlood {
				snap.Solvers = append(snap.Solvers, ev)
			}
		}
	}
	return snap
}

// Control runs an administrative action. The key is checked first, so an
// unauthorized caller learns nothing about the current state.
func (s *Service) Control(key string, action ControlAction, eventID string) (ControlResult, error) {
	if !s.freeze.Authorized(key) {
		return ControlResult{}, ErrUnauthorized
	}
	scope := types.Global
	if eventID != "" {
		scope = eventID
	}
	switch action {
	case ControlFreeze, ControlUnfreeze:
		frozen, err := s.freeze.Set(scope, action == ControlFreeze, key)
		if err != nil {
			return ControlResult{}, err
		}
		return ControlResult{Scope: scope, Frozen: frozen}, nil
	case ControlStatus:
		return ControlResult{Scope: scope, Frozen: s.freeze.Get(scope)}, nil
	}
	return ControlResult{}, fmt.Errorf("%w: %q", ErrUnknownControlAction, action)
}

// Info reports connection and room counts.
func (s *Service) Info() Info {
	ids := s.hub.ConnectedClients()
	clients := make([]types.ClientInfo, 0, len(ids))
	for _, id := range ids {
		ci := s.hub.ClientInfo(id)
		if ci == nil {
			continue
		}
		if owner, ok := s.registry.Owner(id); ok {
			ci.Identity = owner
		}
		clients = append(clients, *ci)
	}
	return Info{
		Online:   s.registry.Count(),
		Sockets:  len(clients),
		Streams:  s.streams.Count(),
		Clients:  clients,
		Rooms:    s.rooms.Rooms(),
		Buffered: s.bus.Buffered(),
	}
}
