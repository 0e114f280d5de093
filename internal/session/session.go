// Package session runs the move-synchronization protocol between two
// independent copies of the game. Each side re-validates every inbound
// move against its own board, so neither peer has to trust the other.
package session

import (
	"context"

	"go.uber.org/zap"

	"peertactoe/internal/game"
	"peertactoe/internal/peer"
	"peertactoe/internal/protocol"
)

// Rules is the externally owned rules engine the session drives. Both
// local and remote moves go through Apply, the single writer path.
type Rules interface {
	Apply(cell int) error
	CurrentPlayer() game.Player
	Status() game.Status
	IsCellEmpty(cell int) bool
	State() game.State
	Reset()
}

// Transport is the slice of a peer channel the session loop needs. Tests
// inject a fake and drive the event stream with synthetic events.
type Transport interface {
	Send(protocol.Message) error
	Events() <-chan peer.Event
	Close() error
}

// Session is a single-goroutine state machine: public methods post to the
// inbox, and only the loop goroutine touches the fields below it.
type Session struct {
	id     string
	isHost bool
	log    *zap.Logger
	rules  Rules
	tr     Transport
	cb     Callbacks

	// non-nil only when the session owns a real peer channel; used to
	// finish host-side negotiation.
	channel *peer.Channel

	inbox  chan sessionMsg
	ctx    context.Context
	cancel context.CancelFunc

	// loop-owned state
	status             Status
	local              PlayerInfo
	remote             *PlayerInfo
	moveCount          int
	handshakeSent      bool
	handshakeReceived  bool
	queuedMoves        []protocol.Move
	rematchFromRemote  bool
	rematchOutstanding bool
	finished           bool
	lastErr            string
}

// New starts a session loop over an already-negotiating transport. The
// host plays X and moves first; the guest plays O.
func New(parent context.Context, id string, isHost bool, localName string, initial Status, rules Rules, tr Transport, cb Callbacks, log *zap.Logger) *Session {
	ctx, cancel := context.WithCancel(parent)

	symbol := game.PlayerO
	if isHost {
		symbol = game.PlayerX
	}

	s := &Session{
		id:     id,
		isHost: isHost,
		log:    log.With(zap.String("session", id), zap.Bool("host", isHost)),
		rules:  rules,
		tr:     tr,
		cb:     cb,
		inbox:  make(chan sessionMsg, 64),
		ctx:    ctx,
		cancel: cancel,
		status: initial,
		local:  PlayerInfo{Name: localName, Symbol: symbol},
	}

	go s.loop()
	return s
}

func (s *Session) ID() string { return s.id }

// Close stops the loop and releases the transport. The orchestration
// layer calls it exactly once per attempt, success or not.
func (s *Session) Close() {
	s.cancel()
}

// SendMove plays cell for the local player. A call that is out of turn,
// off the board, or before the handshake is a no-op; the UI is expected
// to have disabled input already.
func (s *Session) SendMove(cell int) { s.post(sendMove{Cell: cell}) }

// RequestRematch asks the peer for a new game. Valid only after the game
// reaches a terminal status.
func (s *Session) RequestRematch() { s.post(requestRematch{}) }

// RespondToRematch answers a pending rematch request from the peer.
func (s *Session) RespondToRematch(accept bool) { s.post(respondRematch{Accept: accept}) }

// Leave notifies the peer best-effort and tears the session down.
// Idempotent.
func (s *Session) Leave() { s.post(leave{}) }

// Snapshot reflects current session state through the inbox, so readers
// never race the loop.
func (s *Session) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	s.post(getState{Reply: reply})
	select {
	case snap := <-reply:
		return snap
	case <-s.ctx.Done():
		return Snapshot{ID: s.id, IsHost: s.isHost, Status: StatusDisconnected}
	}
}

func (s *Session) post(m sessionMsg) {
	select {
	case s.inbox <- m:
	case <-s.ctx.Done():
	}
}

func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case sendMove:
				s.handleSendMove(msg.Cell)
			case requestRematch:
				s.handleRequestRematch()
			case respondRematch:
				s.handleRespondRematch(msg.Accept)
			case leave:
				s.handleLeave()
			case negotiationDone:
				if !s.finished && s.status == StatusWaiting {
					s.status = StatusConnecting
				}
			case getState:
				msg.Reply <- s.snapshot()
			}

		case ev := <-s.tr.Events():
			s.handleTransportEvent(ev)
		}
	}
}

func (s *Session) shutdown() {
	if !s.finished {
		s.finished = true
		s.status = StatusDisconnected
		_ = s.tr.Close()
	}
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{
		ID:                       s.id,
		IsHost:                   s.isHost,
		Status:                   s.status,
		Local:                    s.local,
		Remote:                   s.remote,
		MoveCount:                s.moveCount,
		PendingRematchFromRemote: s.rematchFromRemote,
		Board:                    s.rules.State().Board,
		Turn:                     s.rules.CurrentPlayer(),
		GameStatus:               s.rules.Status(),
		Err:                      s.lastErr,
	}
}

func (s *Session) handleTransportEvent(ev peer.Event) {
	if s.finished {
		return
	}

	switch e := ev.(type) {
	case peer.Opened:
		// both sides introduce themselves immediately; connected only
		// once both directions have happened
		if err := s.tr.Send(protocol.NewHandshake(s.local.Name)); err != nil {
			s.transportLost("sending handshake: " + err.Error())
			return
		}
		s.handshakeSent = true
		s.maybeConnected()

	case peer.Received:
		msg, ok := protocol.Deserialize(e.Raw)
		if !ok {
			// malformed input is recoverable: surface it, keep playing
			s.log.Warn("discarding malformed message", zap.String("raw", e.Raw))
			s.cb.failed("received an invalid message from the other player")
			return
		}
		s.handleMessage(msg)

	case peer.Closed:
		s.transportLost("connection closed")

	case peer.Failed:
		s.transportLost(e.Err.Error())

	case peer.ICEStateChanged:
		s.log.Debug("transport connectivity", zap.String("state", e.State))
	}
}

func (s *Session) handleMessage(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeHandshake:
		s.handleHandshake(*msg.Handshake)
	case protocol.TypeMove:
		if !s.handshakeReceived || s.status != StatusConnected {
			// a fast peer can move before our handshake bookkeeping is
			// done; hold the move and replay it in receipt order
			s.queuedMoves = append(s.queuedMoves, *msg.Move)
			return
		}
		s.applyRemoteMove(*msg.Move)
	case protocol.TypeRematchRequest:
		s.handleRematchRequest()
	case protocol.TypeRematchResponse:
		s.handleRematchResponse(msg.RematchResponse.Accepted)
	case protocol.TypeDisconnect:
		s.finished = true
		s.status = StatusDisconnected
		_ = s.tr.Close()
		s.cb.disconnected(string(msg.Disconnect.Reason))
	}
}

func (s *Session) handleHandshake(h protocol.Handshake) {
	if h.ProtocolVersion != protocol.Version {
		s.protocolViolation("the other player is running an incompatible version")
		return
	}
	if s.handshakeReceived {
		s.log.Warn("duplicate handshake ignored", zap.String("name", h.PlayerName))
		return
	}

	symbol := game.PlayerX
	if s.isHost {
		symbol = game.PlayerO
	}
	s.remote = &PlayerInfo{Name: h.PlayerName, Symbol: symbol}
	s.handshakeReceived = true
	s.maybeConnected()
}

func (s *Session) maybeConnected() {
	if !s.handshakeSent || !s.handshakeReceived || s.status == StatusConnected {
		return
	}
	s.status = StatusConnected
	s.log.Info("session connected", zap.String("remote", s.remote.Name))
	s.cb.connected(s.remote.Name)

	queued := s.queuedMoves
	s.queuedMoves = nil
	for _, mv := range queued {
		if s.finished {
			return
		}
		s.applyRemoteMove(mv)
	}
}

func (s *Session) applyRemoteMove(mv protocol.Move) {
	// a message claiming the local symbol is forged even if the move
	// itself would be legal
	if s.remote == nil || mv.Player != s.remote.Symbol {
		s.protocolViolation("move with the wrong player mark")
		return
	}
	if !protocol.ValidateMove(mv, s.rules.State(), s.rules.CurrentPlayer(), s.moveCount) {
		s.protocolViolation("move failed validation against the local board")
		return
	}
	if err := s.rules.Apply(mv.CellIndex); err != nil {
		s.protocolViolation("move rejected by the rules engine: " + err.Error())
		return
	}
	s.moveCount++
	s.cb.remoteMove(mv.CellIndex)
}

func (s *Session) handleSendMove(cell int) {
	if s.finished || s.status != StatusConnected || s.remote == nil {
		return
	}
	if s.rules.Status() != game.StatusPlaying {
		return
	}
	if s.rules.CurrentPlayer() != s.local.Symbol || !s.rules.IsCellEmpty(cell) {
		return
	}

	msg := protocol.NewMove(cell, s.local.Symbol, s.moveCount)
	if err := s.rules.Apply(cell); err != nil {
		s.log.Warn("local move rejected", zap.Int("cell", cell), zap.Error(err))
		return
	}
	if err := s.tr.Send(msg); err != nil {
		s.transportLost("sending move: " + err.Error())
		return
	}
	s.moveCount++
}

func (s *Session) handleRequestRematch() {
	if s.finished || s.status != StatusConnected || s.rules.Status() == game.StatusPlaying {
		return
	}
	if s.rematchFromRemote {
		// peer already asked; wanting one too is agreement
		s.handleRespondRematch(true)
		return
	}
	if s.rematchOutstanding {
		return
	}
	if err := s.tr.Send(protocol.NewRematchRequest()); err != nil {
		s.transportLost("sending rematch request: " + err.Error())
		return
	}
	s.rematchOutstanding = true
}

func (s *Session) handleRematchRequest() {
	if s.rules.Status() == game.StatusPlaying {
		s.log.Warn("rematch request ignored, game still in progress")
		return
	}
	if s.rematchOutstanding {
		// simultaneous requests: the host's request wins. The host keeps
		// waiting for a response; the guest converts the collision into
		// acceptance of the host's request.
		if s.isHost {
			return
		}
		if err := s.tr.Send(protocol.NewRematchResponse(true)); err != nil {
			s.transportLost("sending rematch response: " + err.Error())
			return
		}
		s.resetForRematch()
		s.cb.rematchResponse(true)
		return
	}
	s.rematchFromRemote = true
	s.cb.rematchRequested()
}

func (s *Session) handleRespondRematch(accept bool) {
	if s.finished || !s.rematchFromRemote {
		return
	}
	if err := s.tr.Send(protocol.NewRematchResponse(accept)); err != nil {
		s.transportLost("sending rematch response: " + err.Error())
		return
	}
	s.rematchFromRemote = false
	if accept {
		s.resetForRematch()
	}
}

func (s *Session) handleRematchResponse(accepted bool) {
	if !s.rematchOutstanding {
		s.log.Warn("unsolicited rematch response ignored")
		return
	}
	s.rematchOutstanding = false
	if accepted {
		s.resetForRematch()
	}
	s.cb.rematchResponse(accepted)
}

// resetForRematch starts a fresh game locally. Only the agreement crossed
// the wire; both sides reset their own copy, so the boards cannot diverge.
func (s *Session) resetForRematch() {
	s.rules.Reset()
	s.moveCount = 0
	s.rematchFromRemote = false
	s.rematchOutstanding = false
}

func (s *Session) handleLeave() {
	if s.finished {
		return
	}
	s.finished = true
	s.status = StatusDisconnected
	// the transport sends the courtesy disconnect as part of closing
	_ = s.tr.Close()
	s.log.Info("left session")
}

// protocolViolation tears the session down: once the peer has sent a
// structurally valid but illegal message the two boards may already
// disagree, and there is no safe way to continue.
func (s *Session) protocolViolation(detail string) {
	if s.finished {
		return
	}
	s.finished = true
	s.status = StatusDisconnected
	s.lastErr = detail
	_ = s.tr.Send(protocol.NewDisconnect(protocol.ReasonError))
	_ = s.tr.Close()
	s.log.Warn("protocol violation", zap.String("detail", detail))
	s.cb.failed(detail)
}

func (s *Session) transportLost(reason string) {
	if s.finished {
		return
	}
	s.finished = true
	s.status = StatusDisconnected
	s.lastErr = reason
	_ = s.tr.Close()
	s.log.Info("disconnected", zap.String("reason", reason))
	s.cb.disconnected(reason)
}
