package presence

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingLeaver struct {
	mu   sync.Mutex
	left []string
}

func (l *recordingLeaver) LeaveAll(transportID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.left = append(l.left, transportID)
}

func (l *recordingLeaver) calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.left...)
}

func newTestRegistry(t *testing.T) (*Registry, *fakeClock, *recordingLeaver) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	leaver := &recordingLeaver{}
	r := NewRegistry(leaver, Options{StaleAfter: 3 * time.Minute, DriftThreshold: 2, Now: clock.Now}, zerolog.Nop())
	return r, clock, leaver
}

func sortedTabs(t *testing.T, r *Registry, identity string) []string {
	t.Helper()
	tabs, err := r.Tabs(identity)
	require.NoError(t, err)
	sort.Strings(tabs)
	return tabs
}

func TestCountNeverBelowOne(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	assert.Equal(t, 1, r.Count())
}

func TestTwoTabsOneIdentity(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	_, count := r.Connect("alice", "tab-1", "")
	assert.Equal(t, 1, count)
	_, count = r.Connect("alice", "tab-2", "")
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{"tab-1", "tab-2"}, sortedTabs(t, r, "alice"))

	removed, _ := r.Disconnect("alice", "tab-1")
	assert.False(t, removed)
	assert.True(t, r.Online("alice"))

	removed, _ = r.Disconnect("alice", "tab-2")
	assert.True(t, removed)
	assert.False(t, r.Online("alice"))
}

func TestDisconnectWithoutTabDropsIdentity(t *testing.T) {
	r, _, leaver := newTestRegistry(t)
	r.Connect("bob", "tab-1", "ws-1")
	r.Connect("bob", "tab-2", "ws-2")

	removed, _ := r.Disconnect("bob", "")
	assert.True(t, removed)
	assert.ElementsMatch(t, []string{"ws-1", "ws-2"}, leaver.calls())

	_, ok := r.Owner("ws-1")
	assert.False(t, ok)
}

func TestDisconnectUnknownIdentity(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	removed, count := r.Disconnect("nobody", "tab")
	assert.False(t, removed)
	assert.Equal(t, 1, count)
}

func TestConnectWithoutIdentityMintsAnonymous(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	id, _ := r.Connect("", "tab-1", "")
	assert.True(t, IsAnonymous(id))
	assert.True(t, r.Online(id))
}

func TestAnonymousHeartbeatRemints(t *testing.T) {
	r, clock, _ := newTestRegistry(t)
	old, _ := r.Connect("", "tab-1", "ws-1")

	clock.Advance(time.Second)
	fresh := r.Heartbeat(old, "", "ws-1")

	assert.NotEqual(t, old, fresh)
	assert.True(t, IsAnonymous(fresh))
	assert.False(t, r.Online(old))
	assert.True(t, r.Online(fresh))

	owner, ok := r.Owner("ws-1")
	require.True(t, ok)
	assert.Equal(t, fresh, owner)
	assert.Equal(t, []string{"tab-1"}, sortedTabs(t, r, fresh))
}

func TestRegisteredHeartbeatKeepsIdentity(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	r.Connect("carol", "tab-1", "ws-1")
	assert.Equal(t, "carol", r.Heartbeat("carol", "", "ws-1"))
	// A bare heartbeat on a known transport refers to that transport's tab.
	assert.Equal(t, []string{"tab-1"}, sortedTabs(t, r, "carol"))
}

func TestHeartbeatRestoresUnknownIdentity(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	assert.Equal(t, "dave", r.Heartbeat("dave", "tab-9", ""))
	assert.True(t, r.Online("dave"))
}

func TestReleaseTransportDropsTabThenIdentity(t *testing.T) {
	r, _, leaver := newTestRegistry(t)
	r.Connect("alice", "tab-1", "ws-1")
	r.Connect("alice", "tab-2", "ws-2")

	identity, removed := r.ReleaseTransport("ws-1")
	assert.Equal(t, "alice", identity)
	assert.False(t, removed)
	assert.Equal(t, []string{"tab-2"}, sortedTabs(t, r, "alice"))

	_, removed = r.ReleaseTransport("ws-2")
	assert.True(t, removed)
	assert.False(t, r.Online("alice"))
	assert.Equal(t, []string{"ws-1", "ws-2"}, leaver.calls())
}

func TestReleaseUnknownTransportStillLeavesRooms(t *testing.T) {
	r, _, leaver := newTestRegistry(t)
	identity, removed := r.ReleaseTransport("ghost")
	assert.Empty(t, identity)
	assert.False(t, removed)
	assert.Equal(t, []string{"ghost"}, leaver.calls())
}

func TestAuthenticatingMovesTransport(t *testing.T) {
	r, _, leaver := newTestRegistry(t)
	anon, _ := r.Connect("", "tab-1", "ws-1")

	r.Connect("erin", "tab-1", "ws-1")

	assert.False(t, r.Online(anon))
	owner, _ := r.Owner("ws-1")
	assert.Equal(t, "erin", owner)
	assert.Empty(t, leaver.calls(), "room membership survives re-authentication")
}

func TestSweepRemovesStaleIdentities(t *testing.T) {
	r, clock, _ := newTestRegistry(t)
	r.Connect("alice", "tab-1", "")
	anon, _ := r.Connect("", "tab-1", "")

	clock.Advance(2 * time.Minute)
	r.Connect("bob", "tab-1", "")
	clock.Advance(2 * time.Minute)

	assert.Equal(t, 2, r.SweepStale(3*time.Minute))
	assert.False(t, r.Online("alice"))
	assert.False(t, r.Online(anon))
	assert.True(t, r.Online("bob"))
}

func TestCountSweepsBeforeCounting(t *testing.T) {
	r, clock, _ := newTestRegistry(t)
	r.Connect("alice", "tab-1", "")
	r.Connect("bob", "tab-1", "")
	assert.Equal(t, 2, r.Count())

	clock.Advance(4 * time.Minute)
	assert.Equal(t, 1, r.Count())
	assert.False(t, r.Online("alice"))
}

func TestTabsUnknownIdentity(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	_, err := r.Tabs("nobody")
	assert.ErrorIs(t, err, ErrUnknownIdentity)
}

func TestReconcileDropsUsersWithoutLastSeen(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	r.Connect("alice", "tab-1", "")

	r.mu.Lock()
	for _, id := range []string{"ghost-1", "ghost-2", "ghost-3"} {
		s := newSession()
		s.add("tab", "")
		r.users[id] = s
	}
	r.mu.Unlock()

	assert.Equal(t, 1, r.Count())
	assert.True(t, r.Online("alice"))
	assert.False(t, r.Online("ghost-1"))
}

func TestReconcileToleratesSmallDrift(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	r.Connect("alice", "tab-1", "")

	r.mu.Lock()
	for _, id := range []string{"ghost-1", "ghost-2"} {
		s := newSession()
		s.add("tab", "")
		r.users[id] = s
	}
	r.mu.Unlock()

	assert.Equal(t, 3, r.Count())
}

func TestAnonIDTimestamp(t *testing.T) {
	now := time.UnixMilli(1767225600123)
	id := newAnonID(now)
	minted, ok := anonMintedAt(id)
	require.True(t, ok)
	assert.True(t, minted.Equal(now))

	_, ok = anonMintedAt("alice")
	assert.False(t, ok)
	_, ok = anonMintedAt("anon_notanumber_x")
	assert.False(t, ok)
}

func TestTouchKeepsOwnerFresh(t *testing.T) {
	r, clock, _ := newTestRegistry(t)
	r.Connect("alice", "tab-1", "ws-1")
	anon, _ := r.Connect("", "tab-1", "ws-2")

	clock.Advance(2 * time.Minute)
	owner, ok := r.Touch("ws-1")
	require.True(t, ok)
	assert.Equal(t, "alice", owner)
	owner, ok = r.Touch("ws-2")
	require.True(t, ok)
	assert.Equal(t, anon, owner, "touch must not re-mint")

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 0, r.SweepStale(3*time.Minute))
	assert.True(t, r.Online("alice"))
	assert.True(t, r.Online(anon))

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 2, r.SweepStale(3*time.Minute))

	_, ok = r.Touch("ws-1")
	assert.False(t, ok)
}

func TestAnonLookalikeUsernameIsRegistered(t *testing.T) {
	r, clock, _ := newTestRegistry(t)
	id, count := r.Connect("anon_bob", "tab-1", "")
	assert.Equal(t, "anon_bob", id)
	assert.Equal(t, 1, count)
	assert.True(t, r.Online("anon_bob"))

	clock.Advance(time.Minute)
	assert.Equal(t, "anon_bob", r.Heartbeat("anon_bob", "tab-1", ""))
	_, count = r.Connect("carol", "tab-1", "")
	assert.Equal(t, 2, count)
	assert.True(t, r.Online("anon_bob"))
}

func TestIsAnonymousRequiresMintedShape(t *testing.T) {
	assert.True(t, IsAnonymous(newAnonID(time.Now())))
	assert.True(t, IsAnonymous("anon_1767225600123_0a1b2c3d"))

	for _, id := range []string{
		"anon_bob",
		"anon_",
		"anon_123",
		"anon_123_abc",
		"anon_123_ABCDEF12",
		"anon_-5_abcdef12",
		"anon_12x_abcdef12",
		"anon_123_abcdef12_extra",
		"alice",
	} {
		assert.False(t, IsAnonymous(id), id)
	}
}
