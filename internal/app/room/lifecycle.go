package room

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"omokhub/internal/pkg/errs"
	"omokhub/internal/pkg/logx"
	"omokhub/internal/pkg/randx"
)

// roomIDAttempts bounds the collision retries when minting a room id.
const roomIDAttempts = 10

/*
Lifecycle owns the rooms map and applies the membership and game state rules.
Methods taking a *Room expect the caller to hold that room's lock; the map
itself has its own RWMutex, never held across a room lock acquisition.
*/
type Lifecycle struct {
	// mu protects rooms.
	mu sync.RWMutex

	// rooms maps room id to the live room.
	rooms map[string]*Room

	// registry resolves game types to their rule managers.
	registry *GameRegistry

	// structured logger with lifecycle context.
	logger zerolog.Logger
}

// NewLifecycle creates a lifecycle over the given game registry.
func NewLifecycle(registry *GameRegistry) *Lifecycle {
	return &Lifecycle{
		rooms:    make(map[string]*Room),
		registry: registry,
		logger:   logx.Logger().With().Str("component", "room_lifecycle").Logger(),
	}
}

// CreateRoom mints a room for the game type with a fresh collision-checked
// Base62 id and the game's initial state.
func (l *Lifecycle) CreateRoom(gameType string) (*Room, *errs.CustomError) {
	gm, ok := l.registry.Get(gameType)
	if !ok {
		return nil, errs.NewError(errs.ErrGameTypeInvalid)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var id string
	for i := 0; ; i++ {
		if i >= roomIDAttempts {
			return nil, errs.NewError(errs.ErrRoomIDExists)
		}

		candidate, err := randx.RoomID()
		if err != nil {
			l.logger.Error().Err(err).Msg("Room id generation failed")
			return nil, errs.NewError(errs.ErrUnknown)
		}
		if _, taken := l.rooms[candidate]; !taken {
			id = candidate
			break
		}
	}

	now := time.Now()
	r := &Room{
		ID:           id,
		GameType:     gameType,
		Status:       StatusWaiting,
		Game:         gm.NewGameState(),
		CreatedAt:    now,
		LastActiveAt: now,
		gm:           gm,
	}
	l.rooms[id] = r

	l.logger.Info().
		Str("room_id", id).
		Str("game_type", gameType).
		Msg("Room created")

	return r, nil
}

// Get returns the live room with the id.
func (l *Lifecycle) Get(roomID string) (*Room, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	r, ok := l.rooms[roomID]
	return r, ok
}

// Delete removes the room from the map. It returns true only for the call
// that actually removed it, so deletion side effects run at most once.
func (l *Lifecycle) Delete(roomID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.rooms[roomID]; !ok {
		return false
	}
	delete(l.rooms, roomID)

	l.logger.Info().Str("room_id", roomID).Msg("Room removed")
	return true
}

// Rooms returns a snapshot slice of the live rooms.
func (l *Lifecycle) Rooms() []*Room {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rooms := make([]*Room, 0, len(l.rooms))
	for _, r := range l.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

// Count returns the number of live rooms.
func (l *Lifecycle) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.rooms)
}

// AddPlayer seats a session in the room. A session that already holds a seat
// gets the same player back (isNew false), keeping rejoin idempotent. A blank
// nickname receives a generated guest name. Caller holds r.mu.
func (l *Lifecycle) AddPlayer(r *Room, nickname, sessionID string, now time.Time) (p *Player, isNew bool, cerr *errs.CustomError) {
	if existing := r.PlayerBySession(sessionID); existing != nil {
		return existing, false, nil
	}

	nickname = strings.TrimSpace(nickname)
	if err := ValidateNickname(nickname); err != nil {
		return nil, false, err
	}
	if nickname == "" {
		guest, err := randx.GuestNickname()
		if err != nil {
			l.logger.Error().Err(err).Msg("Guest nickname generation failed")
			return nil, false, errs.NewError(errs.ErrUnknown)
		}
		nickname = guest
	}

	if r.Full() {
		return nil, false, errs.NewError(errs.ErrRoomIsFull)
	}

	number := 0
	for n := 1; n <= r.gm.MaxPlayers(); n++ {
		if r.PlayerByNumber(n) == nil {
			number = n
			break
		}
	}

	p = &Player{
		Nickname:   nickname,
		Number:     number,
		SessionID:  sessionID,
		Connected:  true,
		LastSeenAt: now,
		Attrs:      make(map[string]any),
	}
	r.Players = append(r.Players, p)
	r.touch(now)

	return p, true, nil
}

// RemovePlayer unseats the session's player. Pending restart/undo requests
// are dropped, and a room left under its game's minimum head count falls back
// to waiting so a future joiner can trigger a fresh game. Caller holds r.mu.
func (l *Lifecycle) RemovePlayer(r *Room, sessionID string) (*Player, bool) {
	idx := -1
	for i, p := range r.Players {
		if p.SessionID == sessionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}

	removed := r.Players[idx]
	r.Players = append(r.Players[:idx], r.Players[idx+1:]...)
	r.clearPendingRequests()

	if r.Status != StatusWaiting && len(r.Players) < r.gm.MinPlayers() {
		r.Status = StatusWaiting
	}

	return removed, true
}

// StartIfReady begins a game when the room is waiting and full: fresh state,
// cleared history, roles assigned. Caller holds r.mu.
func (l *Lifecycle) StartIfReady(r *Room, now time.Time) bool {
	if r.Status != StatusWaiting || !r.Full() {
		return false
	}

	r.Game = r.gm.NewGameState()
	r.MoveHistory = nil
	r.clearPendingRequests()
	r.gm.AssignRoles(r)
	r.Status = StatusPlaying
	r.GameStartedAt = now
	r.touch(now)

	return true
}

// ResetGame wipes the board for a new game in the same room: fresh state,
// cleared history, roles reassigned from the previous result, games counter
// bumped. Caller holds r.mu.
func (l *Lifecycle) ResetGame(r *Room, now time.Time) {
	r.Game = r.gm.NewGameState()
	r.MoveHistory = nil
	r.clearPendingRequests()
	r.GamesPlayed++
	r.gm.AssignRoles(r)
	r.Status = StatusPlaying
	r.GameStartedAt = now
	r.touch(now)
}
