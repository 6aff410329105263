package room

import (
	"sort"
	"sync"

	"omokhub/internal/pkg/errs"
)

// MoveOutcome describes the effect of one accepted move.
type MoveOutcome struct {
	// X, Y is the cell the stone was placed on.
	X int
	Y int

	// Stone is the color that was placed.
	Stone int

	// NextTurn is the stone whose move comes next, 0 when the game ended.
	NextTurn int

	// Win is set when the move ended the game with a winner.
	Win bool

	// Draw is set when the move filled the board without a winner.
	Draw bool
}

// UndoOutcome describes the effect of one accepted undo.
type UndoOutcome struct {
	// X, Y is the cell the stone was removed from.
	X int
	Y int

	// Stone is the color that was removed.
	Stone int

	// NextTurn is the stone whose move comes next after the undo.
	NextTurn int
}

// GameManager supplies the rules of one game type. The coordination core
// treats the game state as opaque; every rule decision goes through this
// interface. Mutating methods are called with the room's lock held.
type GameManager interface {
	// GameType is the stable identifier used in URLs and registries.
	GameType() string

	// DisplayName is the human readable game name.
	DisplayName() string

	// MinPlayers is the smallest player count a game can run with.
	MinPlayers() int

	// MaxPlayers is the room capacity for this game.
	MaxPlayers() int

	// NewGameState builds a fresh opaque state for one game.
	NewGameState() any

	// AssignRoles distributes per-player attributes (such as stone colors)
	// over the room's players before a game starts.
	AssignRoles(r *Room)

	// ApplyMove validates and applies the player's move to the room's state
	// and history.
	ApplyMove(r *Room, p *Player, x, y int) (*MoveOutcome, *errs.CustomError)

	// UndoMove removes the most recent move from the room's state and history.
	UndoMove(r *Room) (*UndoOutcome, *errs.CustomError)

	// SnapshotState returns a deep copy of the room's game state, safe to
	// serialize after the room's lock is released.
	SnapshotState(r *Room) any
}

// GameInfo is the registry's public metadata about one game type.
type GameInfo struct {
	GameType   string `json:"gameType"`
	Name       string `json:"name"`
	MinPlayers int    `json:"minPlayers"`
	MaxPlayers int    `json:"maxPlayers"`
}

// GameRegistry maps game type identifiers to their managers. Registration
// happens at startup; lookups are concurrent.
type GameRegistry struct {
	mu       sync.RWMutex
	managers map[string]GameManager
}

// NewGameRegistry creates an empty registry.
func NewGameRegistry() *GameRegistry {
	return &GameRegistry{managers: make(map[string]GameManager)}
}

// Register adds a game manager under its GameType, replacing any previous one.
func (g *GameRegistry) Register(m GameManager) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.managers[m.GameType()] = m
}

// Get returns the manager for the game type.
func (g *GameRegistry) Get(gameType string) (GameManager, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	m, ok := g.managers[gameType]
	return m, ok
}

// Types returns metadata for every registered game, sorted by game type.
func (g *GameRegistry) Types() []GameInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()

	infos := make([]GameInfo, 0, len(g.managers))
	for _, m := range g.managers {
		infos = append(infos, GameInfo{
			GameType:   m.GameType(),
			Name:       m.DisplayName(),
			MinPlayers: m.MinPlayers(),
			MaxPlayers: m.MaxPlayers(),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].GameType < infos[j].GameType
	})
	return infos
}
