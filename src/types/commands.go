package types

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrMissingField  = errors.New("missing required field")
)

// Request is the flat inbound envelope shared by the HTTP command endpoint
// and the persistent channel. It is narrowed into a Command before dispatch.
type Request struct {
	Action      string         `json:"action"`
	Identity    string         `json:"identity,omitempty"`
	TabID       string         `json:"tabId,omitempty"`
	TransportID string         `json:"transportId,omitempty"`
	RoomID      string         `json:"roomId,omitempty"`
	Type        EventType      `json:"type,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	BroadcastID string         `json:"broadcastId,omitempty"`
	Scope       string         `json:"scope,omitempty"`
	Frozen      *bool          `json:"frozen,omitempty"`
	Key         string         `json:"key,omitempty"`
	Since       int64          `json:"since,omitempty"`
}

// Command is the closed set of inbound operations.
type Command interface {
	command()
}

type Connect struct {
	Identity    string
	TabID       string
	TransportID string
}

type Heartbeat struct {
	Identity    string
	TabID       string
	TransportID string
}

// Disconnect drops one tab when TabID is set, otherwise the whole identity.
type Disconnect struct {
	Identity string
	TabID    string
}

type JoinRoom struct {
	RoomID      string
	TransportID string
	Since       time.Time
}

type LeaveRoom struct {
	RoomID      string
	TransportID string
}

type Publish struct {
	RoomID      string
	Type        EventType
	Payload     map[string]any
	BroadcastID string
}

type SetFrozen struct {
	Scope  string
	Frozen bool
	Key    string
}

type GetFrozen struct {
	Scope string
}

func (Connect) command()    {}
func (Heartbeat) command()  {}
func (Disconnect) command() {}
func (JoinRoom) command()   {}
func (LeaveRoom) command()  {}
func (Publish) command()    {}
func (SetFrozen) command()  {}
func (GetFrozen) command()  {}

// Command narrows the request into its typed variant.
func (r Request) Command() (Command, error) {
	switch r.Action {
	case "connect":
		return Connect{Identity: r.Identity, TabID: r.TabID, TransportID: r.TransportID}, nil
	case "heartbeat":
		if r.Identity == "" {
			return nil, fmt.Errorf("heartbeat: identity: %w", ErrMissingField)
		}
		return Heartbeat{Identity: r.Identity, TabID: r.TabID, TransportID: r.TransportID}, nil
	case "disconnect":
		if r.Identity == "" {
			return nil, fmt.Errorf("disconnect: identity: %w", ErrMissingField)
		}
		return Disconnect{Identity: r.Identity, TabID: r.TabID}, nil
	case "joinRoom":
		if r.RoomID == "" || r.TransportID == "" {
			return nil, fmt.Errorf("joinRoom: roomId and transportId: %w", ErrMissingField)
		}
		var since time.Time
		if r.Since > 0 {
			since = time.UnixMilli(r.Since)
		}
		return JoinRoom{RoomID: r.RoomID, TransportID: r.TransportID, Since: since}, nil
	case "leaveRoom":
		if r.RoomID == "" || r.TransportID == "" {
			return nil, fmt.Errorf("leaveRoom: roomId and transportId: %w", ErrMissingField)
		}
		return LeaveRoom{RoomID: r.RoomID, TransportID: r.TransportID}, nil
	case "publish":
		return Publish{RoomID: r.RoomID, Type: r.Type, Payload: r.Payload, BroadcastID: r.BroadcastID}, nil
	case "setFrozen":
		if r.Frozen == nil {
			return nil, fmt.Errorf("setFrozen: frozen: %w", ErrMissingField)
		}
		return SetFrozen{Scope: r.Scope, Frozen: *r.Frozen, Key: r.Key}, nil
	case "getFrozen":
		return GetFrozen{Scope: r.Scope}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAction, r.Action)
}

// Result is the reply to a dispatched Command. Only the fields relevant to
// the command are set.
type Result struct {
	Action      string           `json:"action"`
	Identity    string           `json:"identity,omitempty"`
	Count       int              `json:"count,omitempty"`
	Removed     *bool            `json:"removed,omitempty"`
	BroadcastID string           `json:"broadcastId,omitempty"`
	Delivered   *int             `json:"delivered,omitempty"`
	Frozen      *bool            `json:"frozen,omitempty"`
	Events      []BroadcastEvent `json:"events,omitempty"`
}
