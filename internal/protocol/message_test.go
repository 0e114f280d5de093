package protocol

import (
	"reflect"
	"testing"

	"peertactoe/internal/game"
)

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		msg  Message
	}{
		{name: "handshake", msg: NewHandshake("Dana")},
		{name: "move", msg: NewMove(4, game.PlayerX, 3)},
		{name: "move zero", msg: NewMove(0, game.PlayerO, 0)},
		{name: "rematch request", msg: NewRematchRequest()},
		{name: "rematch accepted", msg: NewRematchResponse(true)},
		{name: "rematch declined", msg: NewRematchResponse(false)},
		{name: "disconnect left", msg: NewDisconnect(ReasonLeft)},
		{name: "disconnect error", msg: NewDisconnect(ReasonError)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := Serialize(tc.msg)
			if err != nil {
				t.Fatalf("serialize: %v", err)
			}
			got, ok := Deserialize(raw)
			if !ok {
				t.Fatalf("deserialize rejected %q", raw)
			}
			if !reflect.DeepEqual(got, tc.msg) {
				t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", tc.msg, got)
			}
		})
	}
}

func TestDeserializeRejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{name: "empty string", raw: ""},
		{name: "not json", raw: "tic tac toe"},
		{name: "missing type", raw: `{"move":{"cellIndex":4,"player":"X","moveNumber":0}}`},
		{name: "unknown type", raw: `{"type":"bogus"}`},
		{name: "cell index wrong kind", raw: `{"type":"move","move":{"cellIndex":"four","player":"X","moveNumber":0}}`},
		{name: "move without payload", raw: `{"type":"move"}`},
		{name: "cell index out of range", raw: `{"type":"move","move":{"cellIndex":9,"player":"X","moveNumber":0}}`},
		{name: "unknown player", raw: `{"type":"move","move":{"cellIndex":4,"player":"Z","moveNumber":0}}`},
		{name: "handshake without name", raw: `{"type":"handshake","handshake":{"playerName":"","protocolVersion":1}}`},
		{name: "disconnect unknown reason", raw: `{"type":"disconnect","disconnect":{"reason":"rage"}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Deserialize(tc.raw)
			if ok {
				t.Fatalf("expected invalid, got %+v", got)
			}
			if !reflect.DeepEqual(got, Message{}) {
				t.Fatalf("invalid result must be zero, got %+v", got)
			}
		})
	}
}

func TestValidateMove(t *testing.T) {
	board := game.NewState()
	board, _ = game.Apply(board, 0) // X takes cell 0

	cases := []struct {
		name       string
		move       Move
		player     game.Player
		moveNumber int
		want       bool
	}{
		{name: "legal move", move: Move{CellIndex: 4, Player: game.PlayerO, MoveNumber: 1}, player: game.PlayerO, moveNumber: 1, want: true},
		{name: "wrong player", move: Move{CellIndex: 4, Player: game.PlayerX, MoveNumber: 1}, player: game.PlayerO, moveNumber: 1, want: false},
		{name: "wrong sequence", move: Move{CellIndex: 4, Player: game.PlayerO, MoveNumber: 5}, player: game.PlayerO, moveNumber: 2, want: false},
		{name: "occupied cell", move: Move{CellIndex: 0, Player: game.PlayerO, MoveNumber: 1}, player: game.PlayerO, moveNumber: 1, want: false},
		{name: "index too high", move: Move{CellIndex: 9, Player: game.PlayerO, MoveNumber: 1}, player: game.PlayerO, moveNumber: 1, want: false},
		{name: "negative index", move: Move{CellIndex: -1, Player: game.PlayerO, MoveNumber: 1}, player: game.PlayerO, moveNumber: 1, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ValidateMove(tc.move, board, tc.player, tc.moveNumber)
			if got != tc.want {
				t.Fatalf("want %v, got %v", tc.want, got)
			}
		})
	}
}
