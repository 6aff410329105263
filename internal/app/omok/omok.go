/*
Package omok implements the Omok (five in a row) rules behind the
room.GameManager interface: a 15x15 board, black moves first, five or more
consecutive stones win, a full board without a winner is a draw.
*/
package omok

import (
	"time"

	"omokhub/internal/app/room"
	"omokhub/internal/pkg/errs"
	"omokhub/internal/pkg/randx"
)

const (
	// GameType is the registry identifier.
	GameType = "omok"

	// BoardSize is the board's width and height.
	BoardSize = 15

	// WinLength is the run of stones that decides the game.
	WinLength = 5

	// Stone colors. Black always moves first.
	StoneBlack = 1
	StoneWhite = 2

	// AttrStone is the player attribute carrying the assigned color.
	AttrStone = "stone"
)

// State is one game's board and turn. Cells hold 0, StoneBlack or StoneWhite,
// indexed board[y][x].
type State struct {
	Board [][]int `json:"board"`
	Turn  int     `json:"turn"`
}

// Manager implements room.GameManager for Omok.
type Manager struct{}

// New returns the Omok rules manager.
func New() *Manager { return &Manager{} }

func (m *Manager) GameType() string    { return GameType }
func (m *Manager) DisplayName() string { return "Omok" }
func (m *Manager) MinPlayers() int     { return 2 }
func (m *Manager) MaxPlayers() int     { return 2 }

// NewGameState builds an empty board with black to move.
func (m *Manager) NewGameState() any {
	board := make([][]int, BoardSize)
	for i := range board {
		board[i] = make([]int, BoardSize)
	}
	return &State{Board: board, Turn: StoneBlack}
}

// AssignRoles hands out the stone colors: random on a room's first game, the
// previous loser gets black afterwards. When the previous winner already left
// the room the draw is random again.
func (m *Manager) AssignRoles(r *room.Room) {
	if len(r.Players) == 0 {
		return
	}

	blackIdx := 0
	if r.LastWinner == 0 || r.PlayerByNumber(r.LastWinner) == nil {
		if idx, err := randx.PickIndex(len(r.Players)); err == nil {
			blackIdx = idx
		}
	} else {
		for i, p := range r.Players {
			if p.Number != r.LastWinner {
				blackIdx = i
				break
			}
		}
	}

	for i, p := range r.Players {
		if i == blackIdx {
			p.Attrs[AttrStone] = StoneBlack
		} else {
			p.Attrs[AttrStone] = StoneWhite
		}
	}
}

// ApplyMove validates the move, places the stone, appends the history entry
// and decides win or draw.
func (m *Manager) ApplyMove(r *room.Room, p *room.Player, x, y int) (*room.MoveOutcome, *errs.CustomError) {
	state, ok := r.Game.(*State)
	if !ok {
		return nil, errs.NewError(errs.ErrUnknown)
	}

	switch r.Status {
	case room.StatusWaiting:
		return nil, errs.NewError(errs.ErrGameNotStarted)
	case room.StatusEnded:
		return nil, errs.NewError(errs.ErrGameAlreadyEnded)
	}

	if x < 0 || x >= BoardSize || y < 0 || y >= BoardSize {
		return nil, errs.NewError(errs.ErrInvalidCoordinate)
	}

	stone := stoneOf(p)
	if stone != state.Turn {
		return nil, errs.NewError(errs.ErrNotYourTurn)
	}

	if state.Board[y][x] != 0 {
		return nil, errs.NewError(errs.ErrCellOccupied)
	}

	state.Board[y][x] = stone
	r.MoveHistory = append(r.MoveHistory, room.Move{
		X:      x,
		Y:      y,
		Stone:  stone,
		Number: p.Number,
		At:     time.Now(),
	})

	win := hasWinAt(state.Board, x, y, stone)
	draw := !win && boardFull(state.Board)
	if win || draw {
		state.Turn = 0
	} else {
		state.Turn = opponentOf(stone)
	}

	return &room.MoveOutcome{
		X:        x,
		Y:        y,
		Stone:    stone,
		NextTurn: state.Turn,
		Win:      win,
		Draw:     draw,
	}, nil
}

// UndoMove withdraws the most recent move and returns the turn to the player
// who made it.
func (m *Manager) UndoMove(r *room.Room) (*room.UndoOutcome, *errs.CustomError) {
	state, ok := r.Game.(*State)
	if !ok {
		return nil, errs.NewError(errs.ErrUnknown)
	}

	if len(r.MoveHistory) == 0 {
		return nil, errs.NewError(errs.ErrNoMovesToUndo)
	}

	last := r.MoveHistory[len(r.MoveHistory)-1]
	r.MoveHistory = r.MoveHistory[:len(r.MoveHistory)-1]

	state.Board[last.Y][last.X] = 0
	state.Turn = last.Stone

	return &room.UndoOutcome{
		X:        last.X,
		Y:        last.Y,
		Stone:    last.Stone,
		NextTurn: last.Stone,
	}, nil
}

// SnapshotState deep copies the board so the snapshot stays immutable after
// the room's lock is released.
func (m *Manager) SnapshotState(r *room.Room) any {
	state, ok := r.Game.(*State)
	if !ok {
		return nil
	}

	board := make([][]int, len(state.Board))
	for i, row := range state.Board {
		board[i] = make([]int, len(row))
		copy(board[i], row)
	}
	return &State{Board: board, Turn: state.Turn}
}

// stoneOf reads the player's assigned color, 0 when no role is assigned.
func stoneOf(p *room.Player) int {
	if v, ok := p.Attrs[AttrStone]; ok {
		if stone, ok := v.(int); ok {
			return stone
		}
	}
	return 0
}

func opponentOf(stone int) int {
	if stone == StoneBlack {
		return StoneWhite
	}
	return StoneBlack
}

// directions spans the four lines through a cell: horizontal, vertical and
// the two diagonals.
var directions = [4][2]int{{1, 0}, {0, 1}, {1, 1}, {1, -1}}

// hasWinAt reports whether the stone just placed at (x, y) completes a run of
// WinLength or more.
func hasWinAt(board [][]int, x, y, stone int) bool {
	for _, d := range directions {
		count := 1
		count += countRun(board, x, y, d[0], d[1], stone)
		count += countRun(board, x, y, -d[0], -d[1], stone)
		if count >= WinLength {
			return true
		}
	}
	return false
}

// countRun counts consecutive stones of the color starting one step from
// (x, y) in the given direction.
func countRun(board [][]int, x, y, dx, dy, stone int) int {
	count := 0
	for {
		x += dx
		y += dy
		if x < 0 || x >= BoardSize || y < 0 || y >= BoardSize {
			break
		}
		if board[y][x] != stone {
			break
		}
		count++
	}
	return count
}

func boardFull(board [][]int) bool {
	for _, row := range board {
		for _, cell := range row {
			if cell == 0 {
				return false
			}
		}
	}
	return true
}
