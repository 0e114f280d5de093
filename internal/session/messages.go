package session

import (
	"peertactoe/internal/game"
)

// sessionMsg is the inbox sum type driving the session loop. Public
// methods post one of these; the loop is the only goroutine that touches
// session state.
type sessionMsg interface{ isSessionMsg() }

type sendMove struct{ Cell int }

type requestRematch struct{}

type respondRematch struct{ Accept bool }

type leave struct{}

type negotiationDone struct{}

type getState struct{ Reply chan Snapshot }

func (sendMove) isSessionMsg()        {}
func (requestRematch) isSessionMsg()  {}
func (respondRematch) isSessionMsg()  {}
func (leave) isSessionMsg()           {}
func (negotiationDone) isSessionMsg() {}
func (getState) isSessionMsg()        {}

type Status string

const (
	StatusIdle         Status = "idle"
	StatusCreating     Status = "creating"
	StatusWaiting      Status = "waiting"
	StatusJoining      Status = "joining"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

type PlayerInfo struct {
	Name   string
	Symbol game.Player
}

// Snapshot reflects session state without data races; tests and UIs read
// it through the inbox like every other message.
type Snapshot struct {
	ID                       string
	IsHost                   bool
	Status                   Status
	Local                    PlayerInfo
	Remote                   *PlayerInfo
	MoveCount                int
	PendingRematchFromRemote bool
	Board                    game.Board
	Turn                     game.Player
	GameStatus               game.Status
	Err                      string
}

// Callbacks is the surface the orchestration layer registers. All
// callbacks run on the session goroutine; keep them short.
type Callbacks struct {
	OnRemoteMove       func(cellIndex int)
	OnRematchRequested func()
	OnRematchResponse  func(accepted bool)
	OnConnected        func(remoteName string)
	OnDisconnected     func(reason string)
	OnError            func(message string)
}

func (cb Callbacks) remoteMove(cell int) {
	if cb.OnRemoteMove != nil {
		cb.OnRemoteMove(cell)
	}
}

func (cb Callbacks) rematchRequested() {
	if cb.OnRematchRequested != nil {
		cb.OnRematchRequested()
	}
}

func (cb Callbacks) rematchResponse(accepted bool) {
	if cb.OnRematchResponse != nil {
		cb.OnRematchResponse(accepted)
	}
}

func (cb Callbacks) connected(remoteName string) {
	if cb.OnConnected != nil {
		cb.OnConnected(remoteName)
	}
}

func (cb Callbacks) disconnected(reason string) {
	if cb.OnDisconnected != nil {
		cb.OnDisconnected(reason)
	}
}

func (cb Callbacks) failed(message string) {
	if cb.OnError != nil {
		cb.OnError(message)
	}
}
