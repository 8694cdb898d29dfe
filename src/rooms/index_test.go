package rooms

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinAndLeave(t *testing.T) {
	x := New()

	assert.True(t, x.Join("c1", "team_evt-1"))
	assert.False(t, x.Join("c1", "team_evt-1"), "joining twice is a no-op")
	assert.True(t, x.Join("c2", "team_evt-1"))
	assert.Equal(t, 2, x.Size("team_evt-1"))

	assert.True(t, x.Leave("c1", "team_evt-1"))
	assert.False(t, x.Leave("c1", "team_evt-1"))
	assert.Equal(t, []string{"c2"}, x.MembersOf("team_evt-1"))
}

func TestEmptyRoomIsDeleted(t *testing.T) {
	x := New()
	x.Join("c1", "challenge_42")
	x.Leave("c1", "challenge_42")

	assert.NotContains(t, x.Rooms(), "challenge_42")
	assert.Empty(t, x.RoomsOf("c1"))
}

func TestLeaveAll(t *testing.T) {
	x := New()
	x.Join("c1", "team_evt-1")
	x.Join("c1", "challenge_42")
	x.Join("c2", "challenge_42")

	left := x.LeaveAll("c1")
	sort.Strings(left)
	assert.Equal(t, []string{"challenge_42", "team_evt-1"}, left)
	assert.Empty(t, x.RoomsOf("c1"))
	assert.Equal(t, map[string]int{"challenge_42": 1}, x.Rooms())

	assert.Empty(t, x.LeaveAll("c1"))
}

func TestMembersOfReturnsCopy(t *testing.T) {
	x := New()
	x.Join("c1", "team_evt-1")
	members := x.MembersOf("team_evt-1")
	members[0] = "mutated"
	assert.Equal(t, []string{"c1"}, x.MembersOf("team_evt-1"))
	assert.Empty(t, x.MembersOf("team_none"))
}
