package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConversationTransitions(t *testing.T) {
	table := NewTable(0)

	// A new user starts Idle.
	assert.Equal(t, StateIdle, table.Get("u1").State)

	table.AwaitName("u1")
	assert.Equal(t, StateAwaitingName, table.Get("u1").State)

	table.SetPendingName("u1", "Bessie")
	sess := table.Get("u1")
	assert.Equal(t, StateAwaitingPhoto, sess.State)
	assert.Equal(t, "Bessie", sess.PendingName)

	table.Reset("u1")
	sess = table.Get("u1")
	assert.Equal(t, StateIdle, sess.State)
	assert.Empty(t, sess.PendingName)
}

func TestSessionsAreIndependent(t *testing.T) {
	table := NewTable(0)

	table.SetPendingName("u1", "Bessie")
	assert.Equal(t, StateIdle, table.Get("u2").State)
	assert.Equal(t, StateAwaitingPhoto, table.Get("u1").State)
}

func TestTTLEviction(t *testing.T) {
	table := NewTable(time.Minute)
	now := time.Unix(1000, 0)
	table.now = func() time.Time { return now }

	table.SetPendingName("u1", "Bessie")

	// Still within the ttl: state survives and the clock refreshes.
	now = now.Add(59 * time.Second)
	assert.Equal(t, StateAwaitingPhoto, table.Get("u1").State)

	now = now.Add(59 * time.Second)
	assert.Equal(t, StateAwaitingPhoto, table.Get("u1").State)

	// Idle past the ttl: reset to Idle.
	now = now.Add(2 * time.Minute)
	sess := table.Get("u1")
	assert.Equal(t, StateIdle, sess.State)
	assert.Empty(t, sess.PendingName)
}
