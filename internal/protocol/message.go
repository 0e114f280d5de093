// Package protocol defines the wire messages exchanged over the peer data
// channel and the validation rules applied to inbound moves. Neither peer
// trusts the other: every inbound move is re-checked against local state
// before it touches the board.
package protocol

import (
	"encoding/json"
	"fmt"

	"peertactoe/internal/game"
)

// Version is bumped whenever the wire format changes incompatibly.
// Handshakes carrying a different version are rejected.
const Version = 1

type MessageType string

const (
	TypeHandshake       MessageType = "handshake"
	TypeMove            MessageType = "move"
	TypeRematchRequest  MessageType = "rematch-request"
	TypeRematchResponse MessageType = "rematch-response"
	TypeDisconnect      MessageType = "disconnect"
)

type DisconnectReason string

const (
	ReasonLeft  DisconnectReason = "left"
	ReasonError DisconnectReason = "error"
)

// Message is the closed union of everything that crosses the data channel.
// Exactly one payload pointer is non-nil, matching Type.
type Message struct {
	Type            MessageType      `json:"type"`
	Handshake       *Handshake       `json:"handshake,omitempty"`
	Move            *Move            `json:"move,omitempty"`
	RematchResponse *RematchResponse `json:"rematchResponse,omitempty"`
	Disconnect      *Disconnect      `json:"disconnect,omitempty"`
}

type Handshake struct {
	PlayerName      string `json:"playerName"`
	ProtocolVersion int    `json:"protocolVersion"`
}

type Move struct {
	CellIndex  int         `json:"cellIndex"`
	Player     game.Player `json:"player"`
	MoveNumber int         `json:"moveNumber"`
}

type RematchResponse struct {
	Accepted bool `json:"accepted"`
}

type Disconnect struct {
	Reason DisconnectReason `json:"reason"`
}

func NewHandshake(playerName string) Message {
	return Message{Type: TypeHandshake, Handshake: &Handshake{PlayerName: playerName, ProtocolVersion: Version}}
}

func NewMove(cell int, player game.Player, moveNumber int) Message {
	return Message{Type: TypeMove, Move: &Move{CellIndex: cell, Player: player, MoveNumber: moveNumber}}
}

func NewRematchRequest() Message {
	return Message{Type: TypeRematchRequest}
}

func NewRematchResponse(accepted bool) Message {
	return Message{Type: TypeRematchResponse, RematchResponse: &RematchResponse{Accepted: accepted}}
}

func NewDisconnect(reason DisconnectReason) Message {
	return Message{Type: TypeDisconnect, Disconnect: &Disconnect{Reason: reason}}
}

// Serialize encodes m as one UTF-8 JSON text, the exact inverse of
// Deserialize for every message built through the constructors above.
func Serialize(m Message) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("serialize %s message: %w", m.Type, err)
	}
	return string(data), nil
}

// Deserialize parses one wire message. A malformed payload, an unknown
// type tag, or a missing/ill-typed payload yields ok=false and a zero
// Message, never a partially populated one.
func Deserialize(raw string) (Message, bool) {
	var m Message
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return Message{}, false
	}

	switch m.Type {
	case TypeHandshake:
		if m.Handshake == nil || m.Handshake.PlayerName == "" {
			return Message{}, false
		}
		return Message{Type: m.Type, Handshake: m.Handshake}, true
	case TypeMove:
		if m.Move == nil {
			return Message{}, false
		}
		if m.Move.Player != game.PlayerX && m.Move.Player != game.PlayerO {
			return Message{}, false
		}
		if m.Move.CellIndex < 0 || m.Move.CellIndex > 8 || m.Move.MoveNumber < 0 {
			return Message{}, false
		}
		return Message{Type: m.Type, Move: m.Move}, true
	case TypeRematchRequest:
		return Message{Type: m.Type}, true
	case TypeRematchResponse:
		if m.RematchResponse == nil {
			return Message{}, false
		}
		return Message{Type: m.Type, RematchResponse: m.RematchResponse}, true
	case TypeDisconnect:
		if m.Disconnect == nil {
			return Message{}, false
		}
		if m.Disconnect.Reason != ReasonLeft && m.Disconnect.Reason != ReasonError {
			return Message{}, false
		}
		return Message{Type: m.Type, Disconnect: m.Disconnect}, true
	default:
		return Message{}, false
	}
}

// ValidateMove is the sole gate between an inbound move and the local
// board. It passes only when the move names the expected player and
// sequence number and lands on an empty in-range cell of the local state.
func ValidateMove(m Move, s game.State, expectedPlayer game.Player, expectedMoveNumber int) bool {
	if m.Player != expectedPlayer {
		return false
	}
	if m.MoveNumber != expectedMoveNumber {
		return false
	}
	if m.CellIndex < 0 || m.CellIndex > 8 {
		return false
	}
	return game.IsCellEmpty(s, m.CellIndex)
}
