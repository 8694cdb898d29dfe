package types

import (
	"strings"
	"time"
)

// Global is the broadcast target that reaches every live connection.
const Global = "global"

// Room name prefixes.
const (
	TeamRoomPrefix      = "team_"
	ChallengeRoomPrefix = "challenge_"
)

// TeamRoom returns the room that carries team and freeze updates for an event.
func TeamRoom(eventID string) string { return TeamRoomPrefix + eventID }

// ChallengeRoom returns the room that carries solves for a challenge.
func ChallengeRoom(challengeID string) string { return ChallengeRoomPrefix + challengeID }

// ValidRoom reports whether id names a subscribable room.
func ValidRoom(id string) bool {
	switch {
	case strings.HasPrefix(id, TeamRoomPrefix):
		return len(id) > len(TeamRoomPrefix)
	case strings.HasPrefix(id, ChallengeRoomPrefix):
		return len(id) > len(ChallengeRoomPrefix)
	}
	return false
}

// EventType identifies the kind of a BroadcastEvent.
type EventType string

const (
	FlagSubmitted  EventType = "flagSubmitted"
	FlagFirstBlood EventType = "flagFirstBlood"
	TeamUpdate     EventType = "teamUpdate"
	SystemFreeze   EventType = "systemFreeze"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case FlagSubmitted, FlagFirstBlood, TeamUpdate, SystemFreeze:
		return true
	}
	return false
}

// WireName is the event name used on the persistent channel.
func (t EventType) WireName() string {
	if t == SystemFreeze {
		return "system_freeze"
	}
	return string(t)
}

// BroadcastEvent is an immutable fact delivered to a room.
//
// Delivery is at-least-once: the same event may arrive through a live push,
// a join replay, a snapshot poll and a cross-instance relay. Consumers must
// act on a given BroadcastID only once.
type BroadcastEvent struct {
	BroadcastID string         `json:"broadcastId"`
	Type        EventType      `json:"type"`
	Room        string         `json:"roomId"`
	Payload     map[string]any `json:"payload"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Notice is an unbuffered, ephemeral message such as onlineCount.
type Notice struct {
	Name string         `json:"event"`
	Data map[string]any `json:"data,omitempty"`
}

// Notice names.
const (
	NoticeOnlineCount        = "onlineCount"
	NoticeChallengeRoomCount = "challengeRoomCount"
	NoticeAck                = "ack"
	NoticeError              = "error"
)

// Message is a persistent-channel frame sent to a browser client.
type Message struct {
	Event     string         `json:"event"`
	Room      string         `json:"room,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// EventMessage converts a BroadcastEvent into its persistent-channel frame.
func EventMessage(ev BroadcastEvent) Message {
	data := make(map[string]any, len(ev.Payload)+2)
	for k, v := range ev.Payload {
		data[k] = v
	}
	data["broadcastId"] = ev.BroadcastID
	data["timestamp"] = ev.Timestamp.UnixMilli()
	return Message{
		Event:     ev.Type.WireName(),
		Room:      ev.Room,
		Data:      data,
		Timestamp: ev.Timestamp,
	}
}

// NoticeMessage converts a Notice into its persistent-channel frame.
func NoticeMessage(n Notice) Message {
	return Message{Event: n.Name, Data: n.Data, Timestamp: time.Now()}
}

// ClientInfo holds metadata about a connected WebSocket client.
type ClientInfo struct {
	ID          string    `json:"id"`
	Identity    string    `json:"identity,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
	UserAgent   string    `json:"user_agent,omitempty"`
}

// Snapshot is the polling view of a room.
type Snapshot struct {
	Online      int              `json:"online"`
	Frozen      bool             `json:"frozen"`
	TeamUpdates []BroadcastEvent `json:"teamUpdates,omitempty"`
	Solvers     []BroadcastEvent `json:"solvers,omitempty"`
	LastUpdated int64            `json:"lastUpdated"`
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	WriteJSON(v any) error
	ReadJSON(v any) error
	Close() error
}
