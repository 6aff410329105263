package room

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"omokhub/internal/app/event"
	"omokhub/internal/app/session"
	"omokhub/internal/configs"
	"omokhub/internal/pkg/errs"
	"omokhub/internal/pkg/logx"
)

// Subscriber priorities. Notifications run first so clients observe a
// mutation before anything else reacts to it; the audit trace runs last.
const (
	notifyPriority = 100
	statsPriority  = 0
	auditPriority  = -100
)

// Room deletion reasons carried by the room_deleted message.
const (
	ReasonEmpty        = "empty"
	ReasonGraceExpired = "grace_expired"
	ReasonIdle         = "idle"
	ReasonShutdown     = "shutdown"
)

// broadcastTypes are the events the notifier turns into client messages.
var broadcastTypes = []event.Type{
	EventRoomDeleted,
	EventPlayerJoined,
	EventPlayerLeft,
	EventPlayerDisconnected,
	EventPlayerReconnected,
	EventGameStarted,
	EventGameEnded,
	EventGameReset,
	EventMoveCompleted,
	EventChatMessage,
	EventRestartRequested,
	EventRestartAccepted,
	EventRestartRejected,
	EventUndoRequested,
	EventUndoAccepted,
	EventUndoRejected,
}

// statsTypes are the events the stats collector counts.
var statsTypes = []event.Type{
	EventRoomCreated,
	EventRoomDeleted,
	EventGameStarted,
	EventGameReset,
	EventGameEnded,
	EventMoveCompleted,
}

// JoinResult is what a successful Join or Reconnect hands back to the
// transport for the personal joined reply.
type JoinResult struct {
	SessionID string
	Player    PlayerSnapshot
	State     *Snapshot
	Rejoined  bool
}

// RoomInfo is the public view served by the room info endpoint.
type RoomInfo struct {
	RoomID      string `json:"roomId"`
	GameType    string `json:"gameType"`
	Status      Status `json:"status"`
	PlayerCount int    `json:"playerCount"`
	MaxPlayers  int    `json:"maxPlayers"`
	GamesPlayed int    `json:"gamesPlayed"`
}

// Stats combines live gauges with the event counters.
type Stats struct {
	Rooms       int `json:"rooms"`
	Sessions    int `json:"sessions"`
	Connections int `json:"connections"`
	StatsCounters
}

/*
Manager is the facade over the coordination core. It composes the session
store, the connection registry, the cleanup timer, the event bus and the room
lifecycle, and it is the only entry point the transport and HTTP layers use.

Every mutating operation locks the target room for the whole mutate and
publish sequence. Synchronous subscribers therefore observe mutations of one
room strictly in order, and the next mutation cannot begin before the previous
publication finished.
*/
type Manager struct {
	cfg *configs.AppConfig

	store     *session.Store
	games     *GameRegistry
	registry  *ConnRegistry
	timer     *CleanupTimer
	bus       *event.Bus
	lifecycle *Lifecycle
	stats     *statsCollector

	// stop / wg manage the idle sweep loop.
	stop chan struct{}
	wg   sync.WaitGroup

	// structured logger with Manager context.
	logger zerolog.Logger
}

// NewManager wires the coordination core together and starts its background
// loops: the session sweep (owned by the store) and the idle room sweep.
func NewManager(cfg *configs.AppConfig, games *GameRegistry) *Manager {
	m := &Manager{
		cfg:       cfg,
		store:     session.NewStore(cfg.SessionTTL),
		games:     games,
		registry:  NewConnRegistry(),
		timer:     NewCleanupTimer(),
		bus:       event.NewBus(),
		lifecycle: NewLifecycle(games),
		stats:     &statsCollector{},
		stop:      make(chan struct{}),
		logger:    logx.Logger().With().Str("component", "room_manager").Logger(),
	}

	notify := newNotifier(m.registry)
	for _, t := range broadcastTypes {
		m.bus.Subscribe(t, notifyPriority, notify.handle)
	}
	for _, t := range statsTypes {
		m.bus.Subscribe(t, statsPriority, m.stats.handle)
	}
	m.bus.SubscribeGlobalAsync(auditPriority, auditHandler())

	m.wg.Add(1)
	go m.sweepLoop()

	m.logger.Info().
		Dur("grace_period", cfg.RoomGracePeriod).
		Dur("session_ttl", cfg.SessionTTL).
		Msg("Room manager started")

	return m
}

// Bus exposes the event bus for additional subscribers.
func (m *Manager) Bus() *event.Bus { return m.bus }

// Sessions exposes the session store.
func (m *Manager) Sessions() *session.Store { return m.store }

// GameTypes returns the metadata of every registered game.
func (m *Manager) GameTypes() []GameInfo { return m.games.Types() }

// CreateRoom creates a room for the game type and publishes room_created.
func (m *Manager) CreateRoom(gameType string) (*RoomInfo, *errs.CustomError) {
	r, cerr := m.lifecycle.CreateRoom(gameType)
	if cerr != nil {
		return nil, cerr
	}

	m.bus.Publish(RoomCreated{
		baseEvent: newBase(EventRoomCreated, r.ID),
		GameType:  gameType,
	})

	return m.roomInfo(r), nil
}

// RoomInfo returns the public view of a room.
func (m *Manager) RoomInfo(roomID string) (*RoomInfo, *errs.CustomError) {
	r, ok := m.lifecycle.Get(roomID)
	if !ok {
		return nil, errs.NewError(errs.ErrRoomNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleted {
		return nil, errs.NewError(errs.ErrRoomNotFound)
	}
	return m.roomInfo(r), nil
}

func (m *Manager) roomInfo(r *Room) *RoomInfo {
	return &RoomInfo{
		RoomID:      r.ID,
		GameType:    r.GameType,
		Status:      r.Status,
		PlayerCount: len(r.Players),
		MaxPlayers:  r.gm.MaxPlayers(),
		GamesPlayed: r.GamesPlayed,
	}
}

// Attach binds a freshly upgraded connection to the room as an observer.
// The connection starts receiving broadcasts but holds no seat until join.
func (m *Manager) Attach(roomID string, conn Conn) *errs.CustomError {
	r, ok := m.lifecycle.Get(roomID)
	if !ok {
		return errs.NewError(errs.ErrRoomNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleted {
		return errs.NewError(errs.ErrRoomNotFound)
	}

	m.registry.Attach(roomID, "", conn)
	return nil
}

// Join admits a connection into the room. A sessionID that already holds a
// seat in the room turns the call into a reconnection; an absent, expired or
// malformed sessionID admits a brand new player under a fresh session.
func (m *Manager) Join(roomID, nickname, sessionID string, conn Conn) (*JoinResult, *errs.CustomError) {
	if _, ok := m.lifecycle.Get(roomID); !ok {
		return nil, errs.NewError(errs.ErrRoomNotFound)
	}

	// Resolve the presented session. Anything that does not resolve to a
	// live session means the client starts over with a fresh one.
	var sess *session.Session
	if sessionID != "" && session.Validate(sessionID) {
		if s, ok := m.store.Get(sessionID); ok {
			sess = s
		}
	}

	if sess != nil {
		if boundRoom, ok := m.registry.RoomOf(sess.ID); ok && boundRoom != roomID {
			if _, alive := m.lifecycle.Get(boundRoom); alive {
				return nil, errs.NewError(errs.ErrSessionRoomMismatch)
			}
			// The bound room is gone; the stale binding must not block a
			// fresh join.
			m.registry.DropSession(sess.ID)
			m.store.ClearRoom(sess.ID)
		}

		res, cerr := m.Reconnect(roomID, sess.ID, conn)
		if cerr == nil {
			return res, nil
		}
		if cerr.Code != errs.ErrPlayerNotFound {
			return nil, cerr
		}
		// Known session without a seat in this room: fall through and join
		// as a new player under the same session.
	}

	if sess == nil {
		sess = m.store.Create()
	}

	return m.joinNew(roomID, nickname, sess.ID, conn)
}

// joinNew seats the session as a new player. When a concurrent join already
// seated the same session, it degrades to the reconnection path.
func (m *Manager) joinNew(roomID, nickname, sessionID string, conn Conn) (*JoinResult, *errs.CustomError) {
	r, ok := m.lifecycle.Get(roomID)
	if !ok {
		return nil, errs.NewError(errs.ErrRoomNotFound)
	}

	var evicted Conn
	r.mu.Lock()
	if r.deleted {
		r.mu.Unlock()
		return nil, errs.NewError(errs.ErrRoomNotFound)
	}

	now := time.Now()
	p, isNew, cerr := m.lifecycle.AddPlayer(r, nickname, sessionID, now)
	if cerr != nil {
		r.mu.Unlock()
		return nil, cerr
	}

	var res *JoinResult
	if !isNew {
		res, evicted = m.reconnectLocked(r, p, conn, now)
	} else {
		m.registry.Attach(roomID, sessionID, conn)
		m.store.Touch(sessionID)
		m.store.BindRoom(sessionID, roomID)
		m.timer.Cancel(roomID)

		m.bus.Publish(PlayerJoined{
			baseEvent: newBase(EventPlayerJoined, roomID),
			Player:    r.playerSnapshot(p),
			State:     r.snapshot(),
		})

		if m.lifecycle.StartIfReady(r, now) {
			m.bus.Publish(GameStarted{
				baseEvent: newBase(EventGameStarted, roomID),
				State:     r.snapshot(),
			})
		}

		res = &JoinResult{
			SessionID: sessionID,
			Player:    r.playerSnapshot(p),
			State:     r.snapshot(),
		}
	}
	r.mu.Unlock()

	if evicted != nil {
		evicted.Kick("session connected elsewhere")
	}
	return res, nil
}

// Reconnect puts a returning session back on its seat: the prior live
// connection of the session, if any, is evicted so at most one remains, any
// pending room cleanup is cancelled, and the full state is replayed.
func (m *Manager) Reconnect(roomID, sessionID string, conn Conn) (*JoinResult, *errs.CustomError) {
	r, ok := m.lifecycle.Get(roomID)
	if !ok {
		return nil, errs.NewError(errs.ErrRoomNotFound)
	}

	sess, ok := m.store.Get(sessionID)
	if !ok {
		return nil, errs.NewError(errs.ErrSessionExpired)
	}
	if boundRoom, ok := m.registry.RoomOf(sess.ID); ok && boundRoom != roomID {
		if _, alive := m.lifecycle.Get(boundRoom); alive {
			return nil, errs.NewError(errs.ErrSessionRoomMismatch)
		}
	}

	r.mu.Lock()
	if r.deleted {
		r.mu.Unlock()
		return nil, errs.NewError(errs.ErrRoomNotFound)
	}

	p := r.PlayerBySession(sessionID)
	if p == nil {
		r.mu.Unlock()
		return nil, errs.NewError(errs.ErrPlayerNotFound)
	}

	res, evicted := m.reconnectLocked(r, p, conn, time.Now())
	r.mu.Unlock()

	if evicted != nil {
		evicted.Kick("session connected elsewhere")
	}
	return res, nil
}

// reconnectLocked performs the reconnection under r.mu and returns the
// evicted prior connection for the caller to kick after unlocking.
func (m *Manager) reconnectLocked(r *Room, p *Player, conn Conn, now time.Time) (*JoinResult, Conn) {
	evicted := m.registry.Reconnect(r.ID, p.SessionID, conn)

	downtime := now.Sub(p.LastSeenAt)
	p.Connected = true
	p.LastSeenAt = now
	r.touch(now)

	m.store.Touch(p.SessionID)
	m.store.BindRoom(p.SessionID, r.ID)
	m.timer.Cancel(r.ID)

	snap := r.snapshot()
	m.bus.Publish(PlayerReconnected{
		baseEvent:    newBase(EventPlayerReconnected, r.ID),
		PlayerNumber: p.Number,
		Nickname:     p.Nickname,
		Downtime:     downtime,
		State:        snap,
	})

	return &JoinResult{
		SessionID: p.SessionID,
		Player:    r.playerSnapshot(p),
		State:     snap,
		Rejoined:  true,
	}, evicted
}

// Disconnect handles a dropped connection: the seat is kept and marked
// disconnected, and when the room's last connection is gone its deletion is
// armed for after the grace period.
func (m *Manager) Disconnect(conn Conn) {
	roomID, sessionID, ok := m.registry.Detach(conn)
	if !ok {
		return
	}

	r, ok := m.lifecycle.Get(roomID)
	if !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleted {
		return
	}

	now := time.Now()
	if sessionID != "" {
		if p := r.PlayerBySession(sessionID); p != nil && p.Connected {
			p.Connected = false
			p.LastSeenAt = now

			m.bus.Publish(PlayerDisconnected{
				baseEvent:    newBase(EventPlayerDisconnected, roomID),
				PlayerNumber: p.Number,
				Nickname:     p.Nickname,
			})
		}
	}

	if m.registry.ConnectionCount(roomID) == 0 {
		m.timer.Schedule(roomID, m.cfg.RoomGracePeriod, m.onCleanupFire)
		m.bus.Publish(RoomCleanupScheduled{
			baseEvent: newBase(EventRoomCleanupScheduled, roomID),
			Grace:     m.cfg.RoomGracePeriod,
		})
	}
}

// onCleanupFire runs when a room's grace period elapses. The emptiness is
// re-checked at fire time: any connection present or player back online
// aborts the deletion.
func (m *Manager) onCleanupFire(roomID string) {
	r, ok := m.lifecycle.Get(roomID)
	if !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleted {
		return
	}

	if m.registry.ConnectionCount(roomID) > 0 || r.ConnectedPlayers() > 0 {
		m.logger.Debug().Str("room_id", roomID).Msg("Cleanup aborted, room active again")
		return
	}

	m.deleteRoomLocked(r, ReasonGraceExpired)
}

// Leave removes the session's player for good: the seat frees up, pending
// requests drop, and the last player leaving deletes the room.
func (m *Manager) Leave(roomID, sessionID string) *errs.CustomError {
	r, ok := m.lifecycle.Get(roomID)
	if !ok {
		return errs.NewError(errs.ErrRoomNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleted {
		return errs.NewError(errs.ErrRoomNotFound)
	}

	p, removed := m.lifecycle.RemovePlayer(r, sessionID)
	if !removed {
		return errs.NewError(errs.ErrPlayerNotFound)
	}

	r.touch(time.Now())
	m.store.ClearRoom(sessionID)
	m.registry.DropSession(sessionID)

	m.bus.Publish(PlayerLeft{
		baseEvent:    newBase(EventPlayerLeft, roomID),
		PlayerNumber: p.Number,
		Nickname:     p.Nickname,
		State:        r.snapshot(),
	})

	if len(r.Players) == 0 {
		m.deleteRoomLocked(r, ReasonEmpty)
	}
	return nil
}

// Move applies a player's move and publishes its effects.
func (m *Manager) Move(roomID, sessionID string, x, y int) *errs.CustomError {
	r, ok := m.lifecycle.Get(roomID)
	if !ok {
		return errs.NewError(errs.ErrRoomNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleted {
		return errs.NewError(errs.ErrRoomNotFound)
	}

	p := r.PlayerBySession(sessionID)
	if p == nil {
		return errs.NewError(errs.ErrPlayerNotFound)
	}

	outcome, cerr := r.gm.ApplyMove(r, p, x, y)
	if cerr != nil {
		m.bus.Publish(InvalidMove{
			baseEvent:    newBase(EventInvalidMove, roomID),
			PlayerNumber: p.Number,
			X:            x,
			Y:            y,
			Code:         cerr.Code,
		})
		return cerr
	}

	now := time.Now()
	r.touch(now)
	p.LastSeenAt = now
	m.store.Touch(sessionID)

	// The board changed under any open undo request.
	r.pendingUndo = 0

	m.bus.Publish(MoveCompleted{
		baseEvent:    newBase(EventMoveCompleted, roomID),
		PlayerNumber: p.Number,
		Outcome:      *outcome,
	})

	if outcome.Win || outcome.Draw {
		r.Status = StatusEnded
		winner := 0
		reason := "draw"
		if outcome.Win {
			winner = p.Number
			reason = "win"
			r.LastWinner = p.Number
		}

		m.bus.Publish(GameEnded{
			baseEvent: newBase(EventGameEnded, roomID),
			Winner:    winner,
			Reason:    reason,
			Duration:  now.Sub(r.GameStartedAt),
		})
	}
	return nil
}

// Chat appends a message to the room's ring and publishes it.
func (m *Manager) Chat(roomID, sessionID, text string) *errs.CustomError {
	r, ok := m.lifecycle.Get(roomID)
	if !ok {
		return errs.NewError(errs.ErrRoomNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleted {
		return errs.NewError(errs.ErrRoomNotFound)
	}

	p := r.PlayerBySession(sessionID)
	if p == nil {
		return errs.NewError(errs.ErrPlayerNotFound)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return errs.NewError(errs.ErrMessageContentEmpty)
	}
	if len([]rune(text)) > ChatMessageMaxRunes {
		return errs.NewError(errs.ErrMessageContentTooLong)
	}

	now := time.Now()
	entry := ChatMessage{
		Number:   p.Number,
		Nickname: p.Nickname,
		Message:  text,
		At:       now,
	}
	r.appendChat(entry)
	r.touch(now)
	p.LastSeenAt = now
	m.store.Touch(sessionID)

	m.bus.Publish(ChatPosted{
		baseEvent: newBase(EventChatMessage, roomID),
		Entry:     entry,
	})
	return nil
}

// RequestRestart opens a restart request for the opponent to answer.
func (m *Manager) RequestRestart(roomID, sessionID string) *errs.CustomError {
	r, ok := m.lifecycle.Get(roomID)
	if !ok {
		return errs.NewError(errs.ErrRoomNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleted {
		return errs.NewError(errs.ErrRoomNotFound)
	}

	p := r.PlayerBySession(sessionID)
	if p == nil {
		return errs.NewError(errs.ErrPlayerNotFound)
	}
	if r.Status == StatusWaiting {
		return errs.NewError(errs.ErrGameNotStarted)
	}
	if len(r.Players) < r.gm.MinPlayers() {
		return errs.NewError(errs.ErrRoomNotReady)
	}
	if r.pendingRestart != 0 {
		return errs.NewError(errs.ErrPendingRequestExists)
	}

	r.pendingRestart = p.Number
	r.touch(time.Now())

	m.bus.Publish(RestartRequested{
		baseEvent: newBase(EventRestartRequested, roomID),
		Requester: p.Number,
	})
	return nil
}

// AnswerRestart resolves a pending restart request. Only a player other than
// the requester may answer; acceptance resets the game.
func (m *Manager) AnswerRestart(roomID, sessionID string, accepted bool) *errs.CustomError {
	r, ok := m.lifecycle.Get(roomID)
	if !ok {
		return errs.NewError(errs.ErrRoomNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleted {
		return errs.NewError(errs.ErrRoomNotFound)
	}

	p := r.PlayerBySession(sessionID)
	if p == nil {
		return errs.NewError(errs.ErrPlayerNotFound)
	}
	if r.pendingRestart == 0 {
		return errs.NewError(errs.ErrNoPendingRequest)
	}
	if r.pendingRestart == p.Number {
		return errs.NewError(errs.ErrOwnRequestAnswer)
	}

	r.pendingRestart = 0
	now := time.Now()
	r.touch(now)

	if !accepted {
		m.bus.Publish(RestartRejected{
			baseEvent: newBase(EventRestartRejected, roomID),
			Responder: p.Number,
		})
		return nil
	}

	m.bus.Publish(RestartAccepted{
		baseEvent: newBase(EventRestartAccepted, roomID),
		Responder: p.Number,
	})

	m.lifecycle.ResetGame(r, now)
	m.bus.Publish(GameReset{
		baseEvent: newBase(EventGameReset, roomID),
		State:     r.snapshot(),
	})
	return nil
}

// RequestUndo opens an undo request for the opponent to answer.
func (m *Manager) RequestUndo(roomID, sessionID string) *errs.CustomError {
	r, ok := m.lifecycle.Get(roomID)
	if !ok {
		return errs.NewError(errs.ErrRoomNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleted {
		return errs.NewError(errs.ErrRoomNotFound)
	}

	p := r.PlayerBySession(sessionID)
	if p == nil {
		return errs.NewError(errs.ErrPlayerNotFound)
	}
	switch r.Status {
	case StatusWaiting:
		return errs.NewError(errs.ErrGameNotStarted)
	case StatusEnded:
		return errs.NewError(errs.ErrGameAlreadyEnded)
	}
	if len(r.MoveHistory) == 0 {
		return errs.NewError(errs.ErrNoMovesToUndo)
	}
	if r.pendingUndo != 0 {
		return errs.NewError(errs.ErrPendingRequestExists)
	}

	r.pendingUndo = p.Number
	r.touch(time.Now())

	m.bus.Publish(UndoRequested{
		baseEvent: newBase(EventUndoRequested, roomID),
		Requester: p.Number,
	})
	return nil
}

// AnswerUndo resolves a pending undo request. Acceptance withdraws the last
// move and hands the turn back to the player who made it.
func (m *Manager) AnswerUndo(roomID, sessionID string, accepted bool) *errs.CustomError {
	r, ok := m.lifecycle.Get(roomID)
	if !ok {
		return errs.NewError(errs.ErrRoomNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleted {
		return errs.NewError(errs.ErrRoomNotFound)
	}

	p := r.PlayerBySession(sessionID)
	if p == nil {
		return errs.NewError(errs.ErrPlayerNotFound)
	}
	if r.pendingUndo == 0 {
		return errs.NewError(errs.ErrNoPendingRequest)
	}
	if r.pendingUndo == p.Number {
		return errs.NewError(errs.ErrOwnRequestAnswer)
	}

	r.pendingUndo = 0
	now := time.Now()
	r.touch(now)

	if !accepted {
		m.bus.Publish(UndoRejected{
			baseEvent: newBase(EventUndoRejected, roomID),
			Responder: p.Number,
		})
		return nil
	}

	if r.Status != StatusPlaying {
		return errs.NewError(errs.ErrGameAlreadyEnded)
	}

	if _, cerr := r.gm.UndoMove(r); cerr != nil {
		return cerr
	}

	m.bus.Publish(UndoAccepted{
		baseEvent: newBase(EventUndoAccepted, roomID),
		Responder: p.Number,
		State:     r.snapshot(),
	})
	return nil
}

// Snapshot returns the room's full deep-copied state.
func (m *Manager) Snapshot(roomID string) (*Snapshot, *errs.CustomError) {
	r, ok := m.lifecycle.Get(roomID)
	if !ok {
		return nil, errs.NewError(errs.ErrRoomNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleted {
		return nil, errs.NewError(errs.ErrRoomNotFound)
	}
	return r.snapshot(), nil
}

// Stats returns the live gauges and the event counters.
func (m *Manager) Stats() *Stats {
	return &Stats{
		Rooms:         m.lifecycle.Count(),
		Sessions:      m.store.Len(),
		Connections:   m.registry.TotalConnections(),
		StatsCounters: m.stats.counters(),
	}
}

// deleteRoomLocked removes the room at most once: lifecycle removal first,
// then the room_deleted broadcast while the connections are still attached,
// then connection teardown and session unbinding. Caller holds r.mu.
func (m *Manager) deleteRoomLocked(r *Room, reason string) {
	if !m.lifecycle.Delete(r.ID) {
		return
	}
	r.deleted = true
	m.timer.Cancel(r.ID)

	m.bus.Publish(RoomDeleted{
		baseEvent: newBase(EventRoomDeleted, r.ID),
		Reason:    reason,
	})

	for _, c := range m.registry.DropRoom(r.ID) {
		c.Close()
	}
	for _, p := range r.Players {
		m.store.ClearRoom(p.SessionID)
	}

	m.logger.Info().
		Str("room_id", r.ID).
		Str("reason", reason).
		Int("games_played", r.GamesPlayed).
		Msg("Room deleted")
}

// sweepLoop periodically deletes rooms that idled past the configured limit.
func (m *Manager) sweepLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.RoomSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweepIdleRooms()

		case <-m.stop:
			return
		}
	}
}

// sweepIdleRooms deletes connectionless rooms that are ended or never saw a
// move once they idle past RoomMaxIdle. Rooms in a live game are left to the
// grace period timer.
func (m *Manager) sweepIdleRooms() {
	now := time.Now()
	for _, r := range m.lifecycle.Rooms() {
		r.mu.Lock()
		if r.deleted {
			r.mu.Unlock()
			continue
		}

		idle := now.Sub(r.LastActiveAt) > m.cfg.RoomMaxIdle
		finished := r.Status == StatusEnded || len(r.MoveHistory) == 0
		if idle && finished && m.registry.ConnectionCount(r.ID) == 0 {
			m.deleteRoomLocked(r, ReasonIdle)
		}
		r.mu.Unlock()
	}
}

// Shutdown stops the background loops, deletes every room (informing the
// connected clients), and closes the session store.
func (m *Manager) Shutdown() {
	close(m.stop)
	m.wg.Wait()

	m.timer.Shutdown()

	for _, r := range m.lifecycle.Rooms() {
		r.mu.Lock()
		m.deleteRoomLocked(r, ReasonShutdown)
		r.mu.Unlock()
	}

	m.store.Close()
	m.logger.Info().Msg("Room manager stopped")
}
