package game

import "errors"

var ErrWrongTurn = errors.New("not this player's turn")
var ErrCellTaken = errors.New("cell already taken")
var ErrCellOutOfRange = errors.New("cell index out of range")
var ErrGameOver = errors.New("game already over")

type Player string

const (
	PlayerX Player = "X"
	PlayerO Player = "O"
	Empty   Player = ""
)

type Status string

const (
	StatusPlaying Status = "playing"
	StatusXWins   Status = "x-wins"
	StatusOWins   Status = "o-wins"
	StatusDraw    Status = "draw"
)

// Board is the 3x3 grid in row-major order.
type Board [9]Player

type State struct {
	Board Board
	Moves int
}

var winLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, // rows
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8}, // columns
	{0, 4, 8}, {2, 4, 6}, // diagonals
}

func NewState() State {
	return State{}
}

// CurrentPlayer returns the player whose turn it is. X always moves first.
func CurrentPlayer(s State) Player {
	if s.Moves%2 == 0 {
		return PlayerX
	}
	return PlayerO
}

func IsCellEmpty(s State, cell int) bool {
	return cell >= 0 && cell < len(s.Board) && s.Board[cell] == Empty
}

func GetStatus(s State) Status {
	for _, line := range winLines {
		a, b, c := s.Board[line[0]], s.Board[line[1]], s.Board[line[2]]
		if a != Empty && a == b && b == c {
			if a == PlayerX {
				return StatusXWins
			}
			return StatusOWins
		}
	}
	if s.Moves == len(s.Board) {
		return StatusDraw
	}
	return StatusPlaying
}

// Apply plays the current player's mark at cell and returns the new state.
// The input state is never mutated, so callers can retry or discard freely.
func Apply(s State, cell int) (State, error) {
	if GetStatus(s) != StatusPlaying {
		return s, ErrGameOver
	}
	if cell < 0 || cell >= len(s.Board) {
		return s, ErrCellOutOfRange
	}
	if s.Board[cell] != Empty {
		return s, ErrCellTaken
	}

	next := s
	next.Board[cell] = CurrentPlayer(s)
	next.Moves++
	return next, nil
}

// LegalMoves returns the indices of all empty cells, in board order.
func LegalMoves(s State) []int {
	moves := make([]int, 0, len(s.Board))
	for i, c := range s.Board {
		if c == Empty {
			moves = append(moves, i)
		}
	}
	return moves
}
