package room

import (
	"strings"
	"sync"
	"time"

	"omokhub/internal/pkg/errs"
)

// Status is a room's lifecycle phase.
type Status string

const (
	// StatusWaiting means the room is short of players.
	StatusWaiting Status = "waiting"

	// StatusPlaying means a game is in progress.
	StatusPlaying Status = "playing"

	// StatusEnded means the last game finished and no new one has started.
	StatusEnded Status = "ended"
)

const (
	// ChatHistoryLimit bounds the retained chat ring.
	ChatHistoryLimit = 50

	// ChatMessageMaxRunes caps the length of one chat message.
	ChatMessageMaxRunes = 200

	// NicknameMaxRunes caps the length of a player nickname.
	NicknameMaxRunes = 20
)

// nicknameForbidden are the characters rejected in nicknames, the usual
// HTML and attribute injection suspects.
const nicknameForbidden = `<>&"'`

// Player is one seat in a room. A player survives its connection: Connected
// flips on disconnect/reconnect while Number and SessionID stay stable.
type Player struct {
	Nickname  string
	Number    int
	SessionID string

	// Connected mirrors whether a live connection currently backs this player.
	Connected bool

	// LastSeenAt is the last join, move, or disconnect touching this player.
	LastSeenAt time.Time

	// Attrs carries per-game role attributes such as the stone color.
	Attrs map[string]any
}

// Move is one entry of a room's move history.
type Move struct {
	X      int       `json:"x"`
	Y      int       `json:"y"`
	Stone  int       `json:"stone"`
	Number int       `json:"playerNumber"`
	At     time.Time `json:"at"`
}

// ChatMessage is one entry of a room's chat history.
type ChatMessage struct {
	Number   int       `json:"playerNumber"`
	Nickname string    `json:"nickname"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}

// Room is one game room. All mutable fields are guarded by mu; the Manager
// holds mu for every mutate-then-publish sequence so that per-room operations
// and their notifications stay serialized.
type Room struct {
	ID       string
	GameType string

	Status      Status
	Players     []*Player
	Game        any
	MoveHistory []Move
	Chat        []ChatMessage

	GamesPlayed int

	// LastWinner is the player number that won the previous game, 0 when the
	// room has no decided game yet. Role assignment uses it.
	LastWinner int

	CreatedAt     time.Time
	LastActiveAt  time.Time
	GameStartedAt time.Time

	// pendingRestart / pendingUndo hold the requesting player's number while
	// a request awaits the opponent's answer, 0 when none is pending.
	pendingRestart int
	pendingUndo    int

	// gm supplies the rules for this room's game type.
	gm GameManager

	// deleted is set under mu when the room is removed from the lifecycle
	// map. Operations that raced the deletion observe it after locking.
	deleted bool

	mu sync.Mutex
}

// PlayerBySession returns the player joined with the session, or nil.
// Callers hold mu.
func (r *Room) PlayerBySession(sessionID string) *Player {
	for _, p := range r.Players {
		if p.SessionID == sessionID {
			return p
		}
	}
	return nil
}

// PlayerByNumber returns the player holding the number, or nil. Callers hold mu.
func (r *Room) PlayerByNumber(number int) *Player {
	for _, p := range r.Players {
		if p.Number == number {
			return p
		}
	}
	return nil
}

// ConnectedPlayers counts players with a live connection. Callers hold mu.
func (r *Room) ConnectedPlayers() int {
	n := 0
	for _, p := range r.Players {
		if p.Connected {
			n++
		}
	}
	return n
}

// Full reports whether the room reached its game's capacity. Callers hold mu.
func (r *Room) Full() bool {
	return len(r.Players) >= r.gm.MaxPlayers()
}

// touch refreshes the room's activity timestamp. Callers hold mu.
func (r *Room) touch(now time.Time) {
	r.LastActiveAt = now
}

// appendChat adds a message to the chat ring, dropping the oldest entry when
// the ring is full. Callers hold mu.
func (r *Room) appendChat(m ChatMessage) {
	if len(r.Chat) >= ChatHistoryLimit {
		n := copy(r.Chat, r.Chat[1:])
		r.Chat = r.Chat[:n]
	}
	r.Chat = append(r.Chat, m)
}

// clearPendingRequests drops any open restart or undo request. Callers hold mu.
func (r *Room) clearPendingRequests() {
	r.pendingRestart = 0
	r.pendingUndo = 0
}

// PlayerSnapshot is the serializable view of one player.
type PlayerSnapshot struct {
	Nickname     string         `json:"nickname"`
	PlayerNumber int            `json:"playerNumber"`
	Connected    bool           `json:"connected"`
	Attrs        map[string]any `json:"attrs"`
}

// Snapshot is the full serializable view of a room, deep-copied under the
// room's lock so it can be marshaled and sent after the lock is released.
type Snapshot struct {
	RoomID      string           `json:"roomId"`
	GameType    string           `json:"gameType"`
	Status      Status           `json:"status"`
	Players     []PlayerSnapshot `json:"players"`
	GameState   any              `json:"gameState"`
	MoveHistory []Move           `json:"moveHistory"`
	ChatHistory []ChatMessage    `json:"chatHistory"`
	GamesPlayed int              `json:"gamesPlayed"`
	LastWinner  int              `json:"lastWinner"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// snapshot builds the room's deep-copied view. Callers hold mu.
func (r *Room) snapshot() *Snapshot {
	players := make([]PlayerSnapshot, 0, len(r.Players))
	for _, p := range r.Players {
		attrs := make(map[string]any, len(p.Attrs))
		for k, v := range p.Attrs {
			attrs[k] = v
		}
		players = append(players, PlayerSnapshot{
			Nickname:     p.Nickname,
			PlayerNumber: p.Number,
			Connected:    p.Connected,
			Attrs:        attrs,
		})
	}

	moves := make([]Move, len(r.MoveHistory))
	copy(moves, r.MoveHistory)

	chat := make([]ChatMessage, len(r.Chat))
	copy(chat, r.Chat)

	return &Snapshot{
		RoomID:      r.ID,
		GameType:    r.GameType,
		Status:      r.Status,
		Players:     players,
		GameState:   r.gm.SnapshotState(r),
		MoveHistory: moves,
		ChatHistory: chat,
		GamesPlayed: r.GamesPlayed,
		LastWinner:  r.LastWinner,
		CreatedAt:   r.CreatedAt,
	}
}

// playerSnapshot builds the serializable view of one player. Callers hold mu.
func (r *Room) playerSnapshot(p *Player) PlayerSnapshot {
	attrs := make(map[string]any, len(p.Attrs))
	for k, v := range p.Attrs {
		attrs[k] = v
	}
	return PlayerSnapshot{
		Nickname:     p.Nickname,
		PlayerNumber: p.Number,
		Connected:    p.Connected,
		Attrs:        attrs,
	}
}

// ValidateNickname checks length and forbidden characters. A blank nickname
// is allowed here; callers substitute a generated guest name for it.
func ValidateNickname(nickname string) *errs.CustomError {
	if nickname == "" {
		return nil
	}
	if len([]rune(nickname)) > NicknameMaxRunes {
		return errs.NewError(errs.ErrInvalidNickname)
	}
	if strings.ContainsAny(nickname, nicknameForbidden) {
		return errs.NewError(errs.ErrInvalidNickname)
	}
	return nil
}
