package dedup

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeenReportsRepeats(t *testing.T) {
	w := New(8)
	assert.False(t, w.Seen("a"))
	assert.True(t, w.Seen("a"))
	assert.False(t, w.Seen("b"))
	assert.Equal(t, 2, w.Len())
}

func TestEmptyIDNeverDuplicate(t *testing.T) {
	w := New(8)
	assert.False(t, w.Seen(""))
	assert.False(t, w.Seen(""))
	assert.Equal(t, 0, w.Len())
}

func TestWindowForgetsOldest(t *testing.T) {
	w := New(3)
	for _, id := range []string{"a", "b", "c", "d"} {
		w.Seen(id)
	}
	assert.Equal(t, 3, w.Len())
	assert.False(t, w.Seen("a"), "a was evicted by d")
	assert.True(t, w.Seen("d"))
}

// A consumer receiving the same event through live push, join replay and a
// snapshot poll acts on it once.
func TestConsumerActsOncePerBroadcastID(t *testing.T) {
	w := New(0)
	deliveries := []string{"b-1", "b-2", "b-1", "b-3", "b-2", "b-1"}

	var acted []string
	for _, id := range deliveries {
		if !w.Seen(id) {
			acted = append(acted, id)
		}
	}
	assert.Equal(t, []string{"b-1", "b-2", "b-3"}, acted)
}

func TestDefaultSize(t *testing.T) {
	w := New(0)
	for i := 0; i < 300; i++ {
		w.Seen(fmt.Sprintf("id-%d", i))
	}
	assert.Equal(t, 256, w.Len())
}
