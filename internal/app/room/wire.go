package room

import (
	"encoding/json"
	"time"

	"omokhub/internal/pkg/logx"
	"omokhub/internal/pkg/randx"
)

// Server to client message types.
const (
	msgJoined             = "joined"
	msgPong               = "pong"
	msgError              = "error"
	msgPlayerJoined       = "player_joined"
	msgPlayerLeft         = "player_left"
	msgPlayerDisconnected = "player_disconnected"
	msgPlayerReconnected  = "player_reconnected"
	msgGameStarted        = "game_started"
	msgMoveMade           = "move_made"
	msgGameEnded          = "game_ended"
	msgGameReset          = "game_reset"
	msgRestartRequested   = "restart_requested"
	msgRestartAccepted    = "restart_accepted"
	msgRestartRejected    = "restart_rejected"
	msgUndoRequested      = "undo_requested"
	msgUndoAccepted       = "undo_accepted"
	msgUndoRejected       = "undo_rejected"
	msgChat               = "chat"
	msgRoomDeleted        = "room_deleted"
)

// Envelope is the outbound wire frame wrapping every server to client message.
type Envelope struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	RoomID    string    `json:"roomId"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// marshalEnvelope wraps a payload in the outbound envelope and serializes it.
// A marshal failure is a server bug; it is logged and the frame dropped.
func marshalEnvelope(msgType, roomID string, payload any) ([]byte, bool) {
	data, err := json.Marshal(Envelope{
		ID:        randx.MessageID(),
		Type:      msgType,
		RoomID:    roomID,
		Timestamp: time.Now(),
		Payload:   payload,
	})
	if err != nil {
		logx.Error(err, "Outbound message marshal failed", "type", msgType, "room_id", roomID)
		return nil, false
	}
	return data, true
}

type joinedPayload struct {
	SessionID string         `json:"sessionId"`
	Player    PlayerSnapshot `json:"player"`
	State     *Snapshot      `json:"state"`
	Rejoined  bool           `json:"rejoined"`
}

type errorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type playerJoinedPayload struct {
	Player PlayerSnapshot `json:"player"`
	State  *Snapshot      `json:"state"`
}

type playerLeftPayload struct {
	PlayerNumber int       `json:"playerNumber"`
	Nickname     string    `json:"nickname"`
	State        *Snapshot `json:"state"`
}

type playerDisconnectedPayload struct {
	PlayerNumber int    `json:"playerNumber"`
	Nickname     string `json:"nickname"`
}

type playerReconnectedPayload struct {
	PlayerNumber    int       `json:"playerNumber"`
	Nickname        string    `json:"nickname"`
	DowntimeSeconds float64   `json:"downtimeSeconds"`
	State           *Snapshot `json:"state"`
}

// statePayload serves game_started, game_reset and undo_accepted.
type statePayload struct {
	State *Snapshot `json:"state"`
}

type moveMadePayload struct {
	X            int `json:"x"`
	Y            int `json:"y"`
	Stone        int `json:"stone"`
	PlayerNumber int `json:"playerNumber"`
	NextTurn     int `json:"nextTurn"`
}

type gameEndedPayload struct {
	Winner          int     `json:"winner"`
	Reason          string  `json:"reason"`
	DurationSeconds float64 `json:"durationSeconds"`
}

// requestPayload serves restart_requested and undo_requested.
type requestPayload struct {
	Requester int `json:"requester"`
}

// responsePayload serves the accepted/rejected answers carrying the responder.
type responsePayload struct {
	Responder int `json:"responder"`
}

type roomDeletedPayload struct {
	Reason string `json:"reason"`
}
