package room

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"omokhub/internal/app/event"
	"omokhub/internal/pkg/logx"
)

/*
notifier is the bus subscriber that turns domain events into wire frames and
fans them out to the event's room. It runs synchronously at high priority, so
clients observe every mutation before the next one on the same room begins.
*/
type notifier struct {
	registry *ConnRegistry
	logger   zerolog.Logger
}

func newNotifier(registry *ConnRegistry) *notifier {
	return &notifier{
		registry: registry,
		logger:   logx.Logger().With().Str("component", "notifier").Logger(),
	}
}

// handle translates one event. Events without a client-facing message are
// skipped silently.
func (n *notifier) handle(e event.Event) error {
	msgType, payload := translate(e)
	if msgType == "" {
		return nil
	}

	n.broadcast(e.RoomID(), msgType, payload)
	return nil
}

// translate maps a domain event to its wire message type and payload.
func translate(e event.Event) (string, any) {
	switch ev := e.(type) {
	case PlayerJoined:
		return msgPlayerJoined, playerJoinedPayload{Player: ev.Player, State: ev.State}
	case PlayerLeft:
		return msgPlayerLeft, playerLeftPayload{
			PlayerNumber: ev.PlayerNumber,
			Nickname:     ev.Nickname,
			State:        ev.State,
		}
	case PlayerDisconnected:
		return msgPlayerDisconnected, playerDisconnectedPayload{
			PlayerNumber: ev.PlayerNumber,
			Nickname:     ev.Nickname,
		}
	case PlayerReconnected:
		return msgPlayerReconnected, playerReconnectedPayload{
			PlayerNumber:    ev.PlayerNumber,
			Nickname:        ev.Nickname,
			DowntimeSeconds: ev.Downtime.Seconds(),
			State:           ev.State,
		}
	case GameStarted:
		return msgGameStarted, statePayload{State: ev.State}
	case GameEnded:
		return msgGameEnded, gameEndedPayload{
			Winner:          ev.Winner,
			Reason:          ev.Reason,
			DurationSeconds: ev.Duration.Seconds(),
		}
	case GameReset:
		return msgGameReset, statePayload{State: ev.State}
	case MoveCompleted:
		return msgMoveMade, moveMadePayload{
			X:            ev.Outcome.X,
			Y:            ev.Outcome.Y,
			Stone:        ev.Outcome.Stone,
			PlayerNumber: ev.PlayerNumber,
			NextTurn:     ev.Outcome.NextTurn,
		}
	case ChatPosted:
		return msgChat, ev.Entry
	case RestartRequested:
		return msgRestartRequested, requestPayload{Requester: ev.Requester}
	case RestartAccepted:
		return msgRestartAccepted, responsePayload{Responder: ev.Responder}
	case RestartRejected:
		return msgRestartRejected, responsePayload{Responder: ev.Responder}
	case UndoRequested:
		return msgUndoRequested, requestPayload{Requester: ev.Requester}
	case UndoAccepted:
		return msgUndoAccepted, statePayload{State: ev.State}
	case UndoRejected:
		return msgUndoRejected, responsePayload{Responder: ev.Responder}
	case RoomDeleted:
		return msgRoomDeleted, roomDeletedPayload{Reason: ev.Reason}
	default:
		return "", nil
	}
}

// broadcast sends one frame to every connection of the room. A connection
// that cannot keep up is closed; the fan-out continues regardless.
func (n *notifier) broadcast(roomID, msgType string, payload any) {
	data, ok := marshalEnvelope(msgType, roomID, payload)
	if !ok {
		return
	}

	for _, c := range n.registry.ConnectionsOf(roomID) {
		if !c.Send(data) {
			n.logger.Warn().
				Str("room_id", roomID).
				Str("type", msgType).
				Msg("Send buffer full, closing connection")
			c.Close()
		}
	}
}

// StatsCounters are the monotonic counters kept by the stats subscriber.
type StatsCounters struct {
	RoomsCreated   int64 `json:"roomsCreated"`
	RoomsDeleted   int64 `json:"roomsDeleted"`
	GamesStarted   int64 `json:"gamesStarted"`
	GamesCompleted int64 `json:"gamesCompleted"`
	MovesPlayed    int64 `json:"movesPlayed"`
}

// statsCollector counts domain events. Publications from different rooms run
// concurrently, hence the atomics.
type statsCollector struct {
	roomsCreated   atomic.Int64
	roomsDeleted   atomic.Int64
	gamesStarted   atomic.Int64
	gamesCompleted atomic.Int64
	movesPlayed    atomic.Int64
}

// handle updates the counters. A reset counts as a started game.
func (s *statsCollector) handle(e event.Event) error {
	switch e.EventType() {
	case EventRoomCreated:
		s.roomsCreated.Add(1)
	case EventRoomDeleted:
		s.roomsDeleted.Add(1)
	case EventGameStarted, EventGameReset:
		s.gamesStarted.Add(1)
	case EventGameEnded:
		s.gamesCompleted.Add(1)
	case EventMoveCompleted:
		s.movesPlayed.Add(1)
	}
	return nil
}

func (s *statsCollector) counters() StatsCounters {
	return StatsCounters{
		RoomsCreated:   s.roomsCreated.Load(),
		RoomsDeleted:   s.roomsDeleted.Load(),
		GamesStarted:   s.gamesStarted.Load(),
		GamesCompleted: s.gamesCompleted.Load(),
		MovesPlayed:    s.movesPlayed.Load(),
	}
}

// auditHandler returns the global async subscriber that traces every event.
func auditHandler() event.HandlerFunc {
	logger := logx.Logger().With().Str("component", "event_audit").Logger()
	return func(e event.Event) error {
		logger.Debug().
			Str("event_type", string(e.EventType())).
			Str("room_id", e.RoomID()).
			Time("occurred_at", e.OccurredAt()).
			Msg("Event published")
		return nil
	}
}
