package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id     string
	closed bool
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func TestAdmitBuildsRosterAndCensus(t *testing.T) {
	reg := New()

	alice := &fakeConn{id: "alice"}
	entry, roster, evicted := reg.Admit(alice, "math-101", "user-alice", "Alice")
	assert.Empty(t, roster, "first participant sees an empty roster")
	assert.Nil(t, evicted)
	assert.NotEmpty(t, entry.ConnectionID)
	assert.Equal(t, "math-101", entry.SessionID)

	bob := &fakeConn{id: "bob"}
	_, roster, evicted = reg.Admit(bob, "math-101", "user-bob", "Bob")
	assert.Nil(t, evicted)
	require.Len(t, roster, 1)
	assert.Equal(t, "user-alice", roster[0].UserID)
	assert.Equal(t, "Alice", roster[0].UserName)

	carol := &fakeConn{id: "carol"}
	reg.Admit(carol, "physics-201", "user-carol", "Carol")

	assert.Equal(t, map[string]int{"math-101": 2, "physics-201": 1}, reg.Census())
}

func TestAdmitEvictsStaleConnectionForSameIdentity(t *testing.T) {
	reg := New()

	stale := &fakeConn{id: "stale"}
	reg.Admit(stale, "math-101", "user-alice", "Alice")

	fresh := &fakeConn{id: "fresh"}
	entry, roster, evicted := reg.Admit(fresh, "math-101", "user-alice", "Alice")

	require.NotNil(t, evicted)
	assert.Equal(t, "user-alice", evicted.UserID)
	assert.True(t, stale.closed, "evicted transport must be closed")
	assert.NotEqual(t, evicted.ConnectionID, entry.ConnectionID)

	// The pre-admission roster must not contain the evicted twin.
	assert.Empty(t, roster)
	assert.Equal(t, 1, reg.Census()["math-101"])

	// The stale connection is gone; removing it again is a no-op.
	assert.Nil(t, reg.Remove(stale))

	conn, ok := reg.Find("user-alice", "math-101")
	require.True(t, ok)
	assert.Same(t, fresh, conn.(*fakeConn))
}

func TestSameUserInDifferentSessionsCoexists(t *testing.T) {
	reg := New()

	first := &fakeConn{id: "first"}
	second := &fakeConn{id: "second"}
	reg.Admit(first, "math-101", "user-alice", "Alice")
	_, _, evicted := reg.Admit(second, "physics-201", "user-alice", "Alice")

	assert.Nil(t, evicted)
	assert.False(t, first.closed)
	assert.Equal(t, 1, reg.Census()["math-101"])
	assert.Equal(t, 1, reg.Census()["physics-201"])
}

func TestRemoveDeletesEmptySession(t *testing.T) {
	reg := New()

	alice := &fakeConn{id: "alice"}
	bob := &fakeConn{id: "bob"}
	reg.Admit(alice, "math-101", "user-alice", "Alice")
	reg.Admit(bob, "math-101", "user-bob", "Bob")

	removed := reg.Remove(alice)
	require.NotNil(t, removed)
	assert.Equal(t, "user-alice", removed.UserID)
	assert.Equal(t, 1, reg.Census()["math-101"])

	reg.Remove(bob)
	_, ok := reg.Census()["math-101"]
	assert.False(t, ok, "emptied session must disappear from the census")

	// A later join with the same id starts a fresh session.
	carol := &fakeConn{id: "carol"}
	_, roster, _ := reg.Admit(carol, "math-101", "user-carol", "Carol")
	assert.Empty(t, roster)
}

func TestFindAndLookup(t *testing.T) {
	reg := New()

	alice := &fakeConn{id: "alice"}
	reg.Admit(alice, "math-101", "user-alice", "Alice")

	_, ok := reg.Find("user-alice", "physics-201")
	assert.False(t, ok, "find is scoped to the session")

	_, ok = reg.Find("user-ghost", "math-101")
	assert.False(t, ok)

	entry, ok := reg.Lookup(alice)
	require.True(t, ok)
	assert.Equal(t, "Alice", entry.UserName)

	_, ok = reg.Lookup(&fakeConn{id: "stranger"})
	assert.False(t, ok)
}

func TestRosterExceptAndMembers(t *testing.T) {
	reg := New()

	alice := &fakeConn{id: "alice"}
	bob := &fakeConn{id: "bob"}
	reg.Admit(alice, "math-101", "user-alice", "Alice")
	reg.Admit(bob, "math-101", "user-bob", "Bob")

	roster := reg.RosterExcept("math-101", alice)
	require.Len(t, roster, 1)
	assert.Equal(t, "user-bob", roster[0].UserID)

	assert.Len(t, reg.Roster("math-101"), 2)

	members := reg.Members("math-101", bob)
	require.Len(t, members, 1)
	assert.Same(t, alice, members[0].Conn.(*fakeConn))
	assert.Equal(t, "user-alice", members[0].Entry.UserID)

	assert.Len(t, reg.Members("math-101", nil), 2)
}
