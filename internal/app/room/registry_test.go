package room

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn is an in-memory Conn recording everything the core pushes at it.
type fakeConn struct {
	mu     sync.Mutex
	sent   [][]byte
	kicks  []string
	closed bool
	full   bool
}

func newFakeConn() *fakeConn { return &fakeConn{} }

func (c *fakeConn) Send(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.full {
		return false
	}
	buf := make([]byte, len(message))
	copy(buf, message)
	c.sent = append(c.sent, buf)
	return true
}

func (c *fakeConn) Kick(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.kicks = append(c.kicks, reason)
	c.closed = true
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

func (c *fakeConn) kicked() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, len(c.kicks))
	copy(out, c.kicks)
	return out
}

func (c *fakeConn) messages() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([][]byte, len(c.sent))
	copy(out, c.sent)
	return out
}

const (
	testRoomID    = "Ab3dE9xK"
	testSessionID = "a3f1b2c4-1d2e-4f5a-8b9c-0d1e2f3a4b5c"
)

func TestRegistryAttachAndDetach(t *testing.T) {
	reg := NewConnRegistry()
	conn := newFakeConn()

	reg.Attach(testRoomID, testSessionID, conn)

	assert.Equal(t, 1, reg.ConnectionCount(testRoomID))
	assert.Equal(t, 1, reg.TotalConnections())

	sid, ok := reg.SessionOf(conn)
	require.True(t, ok)
	assert.Equal(t, testSessionID, sid)

	roomID, sessionID, ok := reg.Detach(conn)
	require.True(t, ok)
	assert.Equal(t, testRoomID, roomID)
	assert.Equal(t, testSessionID, sessionID)
	assert.Equal(t, 0, reg.ConnectionCount(testRoomID))
	assert.Equal(t, 0, reg.TotalConnections())
}

func TestRegistryAttachObserverWithoutSession(t *testing.T) {
	reg := NewConnRegistry()
	conn := newFakeConn()

	reg.Attach(testRoomID, "", conn)

	assert.Equal(t, 1, reg.ConnectionCount(testRoomID))

	_, ok := reg.SessionOf(conn)
	assert.False(t, ok)

	roomID, sessionID, ok := reg.Detach(conn)
	require.True(t, ok)
	assert.Equal(t, testRoomID, roomID)
	assert.Empty(t, sessionID)
}

func TestRegistryDetachUnknownConn(t *testing.T) {
	reg := NewConnRegistry()

	_, _, ok := reg.Detach(newFakeConn())
	assert.False(t, ok)
}

func TestRegistryDetachKeepsSessionRoomIndex(t *testing.T) {
	reg := NewConnRegistry()
	conn := newFakeConn()

	reg.Attach(testRoomID, testSessionID, conn)
	_, _, ok := reg.Detach(conn)
	require.True(t, ok)

	// The disconnected session can still be routed back to its room.
	roomID, ok := reg.RoomOf(testSessionID)
	require.True(t, ok)
	assert.Equal(t, testRoomID, roomID)
}

func TestRegistryReconnectEvictsPriorConnection(t *testing.T) {
	reg := NewConnRegistry()
	first := newFakeConn()
	second := newFakeConn()

	reg.Attach(testRoomID, testSessionID, first)

	evicted := reg.Reconnect(testRoomID, testSessionID, second)

	require.NotNil(t, evicted)
	assert.Same(t, first, evicted.(*fakeConn))
	assert.Equal(t, 1, reg.ConnectionCount(testRoomID))

	sid, ok := reg.SessionOf(second)
	require.True(t, ok)
	assert.Equal(t, testSessionID, sid)

	_, ok = reg.SessionOf(first)
	assert.False(t, ok)
}

func TestRegistryReconnectSameConnIsNoop(t *testing.T) {
	reg := NewConnRegistry()
	conn := newFakeConn()

	reg.Attach(testRoomID, testSessionID, conn)

	evicted := reg.Reconnect(testRoomID, testSessionID, conn)

	assert.Nil(t, evicted)
	assert.Equal(t, 1, reg.ConnectionCount(testRoomID))
}

func TestRegistryReconnectWithoutPriorConnection(t *testing.T) {
	reg := NewConnRegistry()
	conn := newFakeConn()

	evicted := reg.Reconnect(testRoomID, testSessionID, conn)

	assert.Nil(t, evicted)
	assert.Equal(t, 1, reg.ConnectionCount(testRoomID))
}

func TestRegistryReconnectLeavesOtherSessionsAlone(t *testing.T) {
	reg := NewConnRegistry()
	other := newFakeConn()
	first := newFakeConn()
	second := newFakeConn()
	otherSession := "b4a2c3d5-2e3f-4a5b-9c0d-1e2f3a4b5c6d"

	reg.Attach(testRoomID, otherSession, other)
	reg.Attach(testRoomID, testSessionID, first)

	evicted := reg.Reconnect(testRoomID, testSessionID, second)

	require.NotNil(t, evicted)
	assert.Same(t, first, evicted.(*fakeConn))
	assert.Equal(t, 2, reg.ConnectionCount(testRoomID))

	sid, ok := reg.SessionOf(other)
	require.True(t, ok)
	assert.Equal(t, otherSession, sid)
}

// TestRegistrySingleLiveConnPerSession hammers Reconnect from many goroutines
// and checks the registry never holds more than one connection per session.
func TestRegistrySingleLiveConnPerSession(t *testing.T) {
	reg := NewConnRegistry()

	const n = 50
	conns := make([]*fakeConn, n)
	for i := range conns {
		conns[i] = newFakeConn()
	}

	var wg sync.WaitGroup
	var evictions int64
	var evictionsMu sync.Mutex

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if evicted := reg.Reconnect(testRoomID, testSessionID, conns[idx]); evicted != nil {
				evictionsMu.Lock()
				evictions++
				evictionsMu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, reg.ConnectionCount(testRoomID))
	assert.Equal(t, int64(n-1), evictions)
}

func TestRegistryRoomOfRepairsIndex(t *testing.T) {
	reg := NewConnRegistry()
	conn := newFakeConn()

	reg.Attach(testRoomID, testSessionID, conn)

	// Simulate a lost index entry while the connection is still live.
	reg.DropSession(testSessionID)

	roomID, ok := reg.RoomOf(testSessionID)
	require.True(t, ok)
	assert.Equal(t, testRoomID, roomID)

	// The repaired entry serves the fast path afterwards.
	roomID, ok = reg.RoomOf(testSessionID)
	require.True(t, ok)
	assert.Equal(t, testRoomID, roomID)
}

func TestRegistryRoomOfUnknownSession(t *testing.T) {
	reg := NewConnRegistry()

	_, ok := reg.RoomOf(testSessionID)
	assert.False(t, ok)
}

func TestRegistryDropSession(t *testing.T) {
	reg := NewConnRegistry()
	conn := newFakeConn()

	reg.Attach(testRoomID, testSessionID, conn)
	_, _, ok := reg.Detach(conn)
	require.True(t, ok)

	reg.DropSession(testSessionID)

	_, ok = reg.RoomOf(testSessionID)
	assert.False(t, ok)
}

func TestRegistryDropRoom(t *testing.T) {
	reg := NewConnRegistry()
	player := newFakeConn()
	observer := newFakeConn()
	otherRoomConn := newFakeConn()
	otherRoom := "Zz9yX8wV"
	otherSession := "b4a2c3d5-2e3f-4a5b-9c0d-1e2f3a4b5c6d"

	reg.Attach(testRoomID, testSessionID, player)
	reg.Attach(testRoomID, "", observer)
	reg.Attach(otherRoom, otherSession, otherRoomConn)

	conns := reg.DropRoom(testRoomID)

	assert.Len(t, conns, 2)
	assert.Equal(t, 0, reg.ConnectionCount(testRoomID))
	assert.Equal(t, 1, reg.TotalConnections())

	_, ok := reg.RoomOf(testSessionID)
	assert.False(t, ok, "dropped room must not keep session bindings")

	roomID, ok := reg.RoomOf(otherSession)
	require.True(t, ok)
	assert.Equal(t, otherRoom, roomID)
}

func TestRegistryConnectionsOfSnapshot(t *testing.T) {
	reg := NewConnRegistry()
	for i := 0; i < 3; i++ {
		reg.Attach(testRoomID, fmt.Sprintf("%08d-0000-4000-8000-00000000000%d", i, i), newFakeConn())
	}

	conns := reg.ConnectionsOf(testRoomID)
	assert.Len(t, conns, 3)

	conns = reg.ConnectionsOf("missing1")
	assert.Empty(t, conns)
}
