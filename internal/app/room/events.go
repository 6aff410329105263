package room

import (
	"time"

	"omokhub/internal/app/event"
)

// Event types published by the coordination core.
const (
	EventRoomCreated          event.Type = "room_created"
	EventRoomDeleted          event.Type = "room_deleted"
	EventRoomCleanupScheduled event.Type = "room_cleanup_scheduled"
	EventPlayerJoined         event.Type = "player_joined"
	EventPlayerLeft           event.Type = "player_left"
	EventPlayerDisconnected   event.Type = "player_disconnected"
	EventPlayerReconnected    event.Type = "player_reconnected"
	EventGameStarted          event.Type = "game_started"
	EventGameEnded            event.Type = "game_ended"
	EventGameReset            event.Type = "game_reset"
	EventMoveCompleted        event.Type = "move_completed"
	EventInvalidMove          event.Type = "invalid_move"
	EventChatMessage          event.Type = "chat_message"
	EventRestartRequested     event.Type = "restart_requested"
	EventRestartAccepted      event.Type = "restart_accepted"
	EventRestartRejected      event.Type = "restart_rejected"
	EventUndoRequested        event.Type = "undo_requested"
	EventUndoAccepted         event.Type = "undo_accepted"
	EventUndoRejected         event.Type = "undo_rejected"
)

// baseEvent carries the fields shared by every domain event.
type baseEvent struct {
	typ    event.Type
	roomID string
	at     time.Time
}

func newBase(typ event.Type, roomID string) baseEvent {
	return baseEvent{typ: typ, roomID: roomID, at: time.Now()}
}

func (e baseEvent) EventType() event.Type { return e.typ }
func (e baseEvent) RoomID() string        { return e.roomID }
func (e baseEvent) OccurredAt() time.Time { return e.at }

// RoomCreated publishes after a room enters the lifecycle map.
type RoomCreated struct {
	baseEvent
	GameType string
}

// RoomDeleted publishes exactly once when a room is removed, whatever the cause.
type RoomDeleted struct {
	baseEvent
	Reason string
}

// RoomCleanupScheduled publishes when the last connection of a room drops and
// deletion is armed.
type RoomCleanupScheduled struct {
	baseEvent
	Grace time.Duration
}

// PlayerJoined publishes when a new player takes a seat.
type PlayerJoined struct {
	baseEvent
	Player PlayerSnapshot
	State  *Snapshot
}

// PlayerLeft publishes when a player gives up their seat for good.
type PlayerLeft struct {
	baseEvent
	PlayerNumber int
	Nickname     string
	State        *Snapshot
}

// PlayerDisconnected publishes when a player's connection drops while the
// seat is kept for reconnection.
type PlayerDisconnected struct {
	baseEvent
	PlayerNumber int
	Nickname     string
}

// PlayerReconnected publishes when a session returns to its seat.
type PlayerReconnected struct {
	baseEvent
	PlayerNumber int
	Nickname     string
	Downtime     time.Duration
	State        *Snapshot
}

// GameStarted publishes when a room fills up and a game begins.
type GameStarted struct {
	baseEvent
	State *Snapshot
}

// GameEnded publishes when a move decides the game. Winner is 0 on a draw.
type GameEnded struct {
	baseEvent
	Winner   int
	Reason   string
	Duration time.Duration
}

// GameReset publishes when an accepted restart wipes the board.
type GameReset struct {
	baseEvent
	State *Snapshot
}

// MoveCompleted publishes after a validated move was applied.
type MoveCompleted struct {
	baseEvent
	PlayerNumber int
	Outcome      MoveOutcome
}

// InvalidMove publishes when a move was rejected, for auditing only.
type InvalidMove struct {
	baseEvent
	PlayerNumber int
	X            int
	Y            int
	Code         int
}

// ChatPosted publishes when a chat message enters the room's ring.
type ChatPosted struct {
	baseEvent
	Entry ChatMessage
}

// RestartRequested publishes when a player asks for a new game.
type RestartRequested struct {
	baseEvent
	Requester int
}

// RestartAccepted publishes when the opponent agrees to a restart.
// The accompanying GameReset carries the fresh state.
type RestartAccepted struct {
	baseEvent
	Responder int
}

// RestartRejected publishes when the opponent declines a restart.
type RestartRejected struct {
	baseEvent
	Responder int
}

// UndoRequested publishes when a player asks to take back the last move.
type UndoRequested struct {
	baseEvent
	Requester int
}

// UndoAccepted publishes when the opponent lets the last move be withdrawn.
type UndoAccepted struct {
	baseEvent
	Responder int
	State     *Snapshot
}

// UndoRejected publishes when the opponent declines an undo.
type UndoRejected struct {
	baseEvent
	Responder int
}
