package game

import (
	"errors"
	"testing"
)

// helper: play a sequence of cells from an empty board, failing on any error
func playMoves(t *testing.T, cells ...int) State {
	t.Helper()
	s := NewState()
	var err error
	for _, c := range cells {
		s, err = Apply(s, c)
		if err != nil {
			t.Fatalf("apply %d: %v", c, err)
		}
	}
	return s
}

func TestCurrentPlayerAlternates(t *testing.T) {
	s := NewState()
	if got := CurrentPlayer(s); got != PlayerX {
		t.Fatalf("first player: want X, got %q", got)
	}
	s, _ = Apply(s, 0)
	if got := CurrentPlayer(s); got != PlayerO {
		t.Fatalf("second player: want O, got %q", got)
	}
}

func TestApplyRejections(t *testing.T) {
	cases := []struct {
		name    string
		setup   []int
		cell    int
		wantErr error
	}{
		{name: "cell taken", setup: []int{4}, cell: 4, wantErr: ErrCellTaken},
		{name: "negative index", cell: -1, wantErr: ErrCellOutOfRange},
		{name: "index nine", cell: 9, wantErr: ErrCellOutOfRange},
		// X: 0 1 2 wins, then O tries to move
		{name: "game over", setup: []int{0, 3, 1, 4, 2}, cell: 5, wantErr: ErrGameOver},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := playMoves(t, tc.setup...)
			if _, err := Apply(s, tc.cell); !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	s := NewState()
	next, err := Apply(s, 4)
	if err != nil {
		t.Fatal(err)
	}
	if s.Board[4] != Empty || s.Moves != 0 {
		t.Fatalf("input state mutated: %+v", s)
	}
	if next.Board[4] != PlayerX || next.Moves != 1 {
		t.Fatalf("unexpected next state: %+v", next)
	}
}

func TestGetStatus(t *testing.T) {
	cases := []struct {
		name  string
		moves []int
		want  Status
	}{
		{name: "empty board", moves: nil, want: StatusPlaying},
		{name: "x wins row", moves: []int{0, 3, 1, 4, 2}, want: StatusXWins},
		{name: "o wins column", moves: []int{0, 2, 1, 5, 6, 8}, want: StatusOWins},
		{name: "x wins diagonal", moves: []int{0, 1, 4, 2, 8}, want: StatusXWins},
		// X O X / X O O / O X X
		{name: "draw", moves: []int{0, 1, 2, 4, 3, 5, 7, 6, 8}, want: StatusDraw},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := playMoves(t, tc.moves...)
			if got := GetStatus(s); got != tc.want {
				t.Fatalf("want %q, got %q", tc.want, got)
			}
		})
	}
}

func TestLegalMoves(t *testing.T) {
	s := playMoves(t, 0, 4, 8)
	got := LegalMoves(s)
	want := []int{1, 2, 3, 5, 6, 7}
	if len(got) != len(want) {
		t.Fatalf("want %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("want %v, got %v", want, got)
		}
	}
}
