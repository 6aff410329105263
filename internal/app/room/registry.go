package room

import (
	"sync"

	"github.com/rs/zerolog"

	"omokhub/internal/pkg/logx"
)

/*
ConnRegistry tracks which connections are attached to which room and which
session each connection authenticates as. It owns three maps under one lock:
room id to its set of connections, connection to session id, and the session
to room index used by reconnection lookups. The index can go stale if an
update path misses it; RoomOf falls back to a full scan and repairs the entry
it finds.
*/
type ConnRegistry struct {
	// mu protects all maps below.
	mu sync.RWMutex

	// rooms maps room id to the set of attached connections.
	rooms map[string]map[Conn]struct{}

	// connSession maps a connection to the session it joined with.
	// Connections observing without a session have no entry.
	connSession map[Conn]string

	// connRoom maps a connection to the room it is attached to.
	connRoom map[Conn]string

	// sessionRoom is the session to room index. Entries survive Detach so a
	// disconnected session can still be routed back to its room.
	sessionRoom map[string]string

	// structured logger with registry context.
	logger zerolog.Logger
}

// NewConnRegistry creates an empty registry.
func NewConnRegistry() *ConnRegistry {
	return &ConnRegistry{
		rooms:       make(map[string]map[Conn]struct{}),
		connSession: make(map[Conn]string),
		connRoom:    make(map[Conn]string),
		sessionRoom: make(map[string]string),
		logger:      logx.Logger().With().Str("component", "conn_registry").Logger(),
	}
}

// Attach binds a connection to a room. sessionID may be empty for a
// connection that observes the room without having joined as a player.
func (r *ConnRegistry) Attach(roomID, sessionID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.attachLocked(roomID, sessionID, conn)
}

func (r *ConnRegistry) attachLocked(roomID, sessionID string, conn Conn) {
	set, ok := r.rooms[roomID]
	if !ok {
		set = make(map[Conn]struct{})
		r.rooms[roomID] = set
	}
	set[conn] = struct{}{}
	r.connRoom[conn] = roomID

	if sessionID != "" {
		r.connSession[conn] = sessionID
		r.sessionRoom[sessionID] = roomID
	}
}

// Detach removes a connection, returning the room and session it was bound
// to. The session to room index deliberately survives, so the session can
// reconnect to the same room later. Detaching an unknown connection returns
// ok false.
func (r *ConnRegistry) Detach(conn Conn) (roomID, sessionID string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok = r.connRoom[conn]
	if !ok {
		return "", "", false
	}

	sessionID = r.connSession[conn]
	r.removeConnLocked(roomID, conn)
	return roomID, sessionID, true
}

func (r *ConnRegistry) removeConnLocked(roomID string, conn Conn) {
	if set, ok := r.rooms[roomID]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(r.rooms, roomID)
		}
	}
	delete(r.connRoom, conn)
	delete(r.connSession, conn)
}

// Reconnect atomically replaces the session's live connection in the room
// with conn. The evicted prior connection, if any, is returned for the caller
// to kick outside the registry lock. After Reconnect at most one live
// connection exists for the (room, session) pair.
func (r *ConnRegistry) Reconnect(roomID, sessionID string, conn Conn) (evicted Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for c := range r.rooms[roomID] {
		if c != conn && r.connSession[c] == sessionID {
			evicted = c
			r.removeConnLocked(roomID, c)
			break
		}
	}

	r.attachLocked(roomID, sessionID, conn)
	return evicted
}

// ConnectionsOf returns a snapshot slice of the room's connections, safe to
// iterate after the lock is released.
func (r *ConnRegistry) ConnectionsOf(roomID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.rooms[roomID]
	conns := make([]Conn, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	return conns
}

// ConnectionCount returns how many connections are attached to the room.
func (r *ConnRegistry) ConnectionCount(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms[roomID])
}

// TotalConnections returns how many connections are attached across all rooms.
func (r *ConnRegistry) TotalConnections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.connRoom)
}

// SessionOf returns the session a connection joined with.
func (r *ConnRegistry) SessionOf(conn Conn) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessionID, ok := r.connSession[conn]
	return sessionID, ok
}

// RoomOf resolves the room a session is bound to. The hot path is the O(1)
// index; on a miss it scans the live connections and, when one carries the
// session, repairs the index before returning.
func (r *ConnRegistry) RoomOf(sessionID string) (string, bool) {
	r.mu.RLock()
	roomID, ok := r.sessionRoom[sessionID]
	r.mu.RUnlock()
	if ok {
		return roomID, true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if roomID, ok := r.sessionRoom[sessionID]; ok {
		return roomID, true
	}

	for conn, sid := range r.connSession {
		if sid == sessionID {
			roomID := r.connRoom[conn]
			r.sessionRoom[sessionID] = roomID
			r.logger.Warn().
				Str("session_id", sessionID).
				Str("room_id", roomID).
				Msg("Session room index repaired from live connection scan")
			return roomID, true
		}
	}

	return "", false
}

// DropSession removes the session's room binding. Called when a player leaves
// for good, so a later join with the same session starts fresh.
func (r *ConnRegistry) DropSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessionRoom, sessionID)
}

// DropRoom removes every trace of the room and returns its connections so the
// caller can close them after the lock is released.
func (r *ConnRegistry) DropRoom(roomID string) []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.rooms[roomID]
	conns := make([]Conn, 0, len(set))
	for c := range set {
		conns = append(conns, c)
		delete(r.connRoom, c)
		delete(r.connSession, c)
	}
	delete(r.rooms, roomID)

	for sid, rid := range r.sessionRoom {
		if rid == roomID {
			delete(r.sessionRoom, sid)
		}
	}

	return conns
}
