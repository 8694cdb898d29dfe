package freeze

import (
	"testing"

	"github.com/orchestra-mcp/presence/src/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type change struct {
	scope  string
	frozen bool
}

type recordingNotifier struct {
	changes []change
}

func (n *recordingNotifier) NotifyFreeze(scope string, frozen bool) {
	n.changes = append(n.changes, change{scope, frozen})
}

func TestGetFallsBackToGlobal(t *testing.T) {
	n := &recordingNotifier{}
	s := New("s3cret", n, zerolog.Nop())

	assert.False(t, s.Get("evt-1"))

	_, err := s.Set(types.Global, true, "s3cret")
	require.NoError(t, err)
	assert.True(t, s.Get("evt-1"), "unset event inherits global")

	_, err = s.Set("evt-1", false, "s3cret")
	require.NoError(t, err)
	assert.False(t, s.Get("evt-1"), "event value overrides global")
	assert.True(t, s.Get("evt-2"))
}

func TestSetNotifiesOnSuccess(t *testing.T) {
	n := &recordingNotifier{}
	s := New("s3cret", n, zerolog.Nop())

	frozen, err := s.Set("evt-1", true, "s3cret")
	require.NoError(t, err)
	assert.True(t, frozen)
	assert.Equal(t, []change{{"evt-1", true}}, n.changes)
}

func TestEmptyScopeIsGlobal(t *testing.T) {
	n := &recordingNotifier{}
	s := New("s3cret", n, zerolog.Nop())

	_, err := s.Set("", true, "s3cret")
	require.NoError(t, err)
	assert.True(t, s.Get(types.Global))
	assert.Equal(t, []change{{types.Global, true}}, n.changes)
}

func TestUnauthorizedChangesNothing(t *testing.T) {
	n := &recordingNotifier{}
	s := New("s3cret", n, zerolog.Nop())

	_, err := s.Set("evt-1", true, "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = s.Set("evt-1", true, "")
	assert.ErrorIs(t, err, ErrUnauthorized)

	assert.False(t, s.Get("evt-1"))
	assert.Empty(t, n.changes)
}

func TestEmptySecretRejectsEverything(t *testing.T) {
	s := New("", nil, zerolog.Nop())
	assert.False(t, s.Authorized(""))
	assert.False(t, s.Authorized("anything"))
}

func TestApplySkipsAuthAndNotify(t *testing.T) {
	n := &recordingNotifier{}
	s := New("s3cret", n, zerolog.Nop())
	s.Apply("evt-3", true)
	assert.True(t, s.Get("evt-3"))
	assert.Empty(t, n.changes)
}
