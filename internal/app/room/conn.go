/*
Package room implements the coordination core of the game server: rooms and
their lifecycle, player membership, the connection registry, the per-room
cleanup timer, the notification fan-out, and the Manager facade that ties them
to the session store and the event bus.
*/
package room

// Conn is the registry's view of one live client connection. The WebSocket
// client implements it; tests substitute in-memory fakes.
type Conn interface {
	// Send queues one outbound frame without blocking.
	// It returns false when the connection's buffer is full or closed.
	Send(message []byte) bool

	// Kick closes the connection with the eviction close code so the client
	// knows it was replaced rather than dropped.
	Kick(reason string)

	// Close tears the connection down.
	Close()
}
