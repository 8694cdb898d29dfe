package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestCommandVariants(t *testing.T) {
	frozen := true
	cases := []struct {
		req  Request
		want Command
	}{
		{Request{Action: "connect", Identity: "alice", TabID: "t1"}, Connect{Identity: "alice", TabID: "t1"}},
		{Request{Action: "heartbeat", Identity: "alice"}, Heartbeat{Identity: "alice"}},
		{Request{Action: "disconnect", Identity: "alice", TabID: "t1"}, Disconnect{Identity: "alice", TabID: "t1"}},
		{Request{Action: "joinRoom", RoomID: "team_e", TransportID: "ws"}, JoinRoom{RoomID: "team_e", TransportID: "ws"}},
		{Request{Action: "leaveRoom", RoomID: "team_e", TransportID: "ws"}, LeaveRoom{RoomID: "team_e", TransportID: "ws"}},
		{Request{Action: "publish", RoomID: "team_e", Type: TeamUpdate}, Publish{RoomID: "team_e", Type: TeamUpdate}},
		{Request{Action: "setFrozen", Scope: "e", Frozen: &frozen, Key: "k"}, SetFrozen{Scope: "e", Frozen: true, Key: "k"}},
		{Request{Action: "getFrozen", Scope: "e"}, GetFrozen{Scope: "e"}},
	}
	for _, tc := range cases {
		t.Run(tc.req.Action, func(t *testing.T) {
			got, err := tc.req.Command()
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRequestCommandErrors(t *testing.T) {
	_, err := Request{Action: "fly"}.Command()
	assert.ErrorIs(t, err, ErrUnknownAction)

	for _, req := range []Request{
		{Action: "heartbeat"},
		{Action: "disconnect"},
		{Action: "joinRoom", RoomID: "team_e"},
		{Action: "leaveRoom", TransportID: "ws"},
		{Action: "setFrozen", Scope: "e"},
	} {
		_, err := req.Command()
		assert.ErrorIs(t, err, ErrMissingField, req.Action)
	}
}

func TestJoinRoomSince(t *testing.T) {
	cmd, err := Request{Action: "joinRoom", RoomID: "team_e", TransportID: "ws", Since: 1767225600000}.Command()
	require.NoError(t, err)
	assert.True(t, cmd.(JoinRoom).Since.Equal(time.UnixMilli(1767225600000)))
}

func TestRooms(t *testing.T) {
	assert.Equal(t, "team_evt-1", TeamRoom("evt-1"))
	assert.Equal(t, "challenge_42", ChallengeRoom("42"))
	assert.True(t, ValidRoom("team_evt-1"))
	assert.True(t, ValidRoom("challenge_42"))
	assert.False(t, ValidRoom("team_"))
	assert.False(t, ValidRoom(Global))
	assert.False(t, ValidRoom("lobby"))
}

func TestEventMessage(t *testing.T) {
	ts := time.UnixMilli(1767225600000)
	payload := map[string]any{"frozen": true}
	msg := EventMessage(BroadcastEvent{BroadcastID: "b-1", Type: SystemFreeze, Room: Global, Payload: payload, Timestamp: ts})

	assert.Equal(t, "system_freeze", msg.Event)
	assert.Equal(t, "b-1", msg.Data["broadcastId"])
	assert.Equal(t, int64(1767225600000), msg.Data["timestamp"])
	assert.NotContains(t, payload, "broadcastId", "payload is copied")
	assert.Equal(t, "flagSubmitted", FlagSubmitted.WireName())
}
