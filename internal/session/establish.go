package session

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"peertactoe/internal/peer"
	"peertactoe/internal/sessioncode"
)

var ErrInvalidCode = errors.New("invalid session code")
var ErrWrongCodeRole = errors.New("session code has the wrong role")
var ErrSessionMismatch = errors.New("session code belongs to a different session")
var ErrNoNegotiation = errors.New("session has no negotiation in progress")

// CreateSession starts hosting: allocates a session id, assembles the
// connection offer (waiting out candidate gathering) and returns the code
// to hand to the guest. The session stays inert until the guest's answer
// arrives via CompleteHostConnection and the handshake completes.
func CreateSession(ctx context.Context, localName string, rules Rules, cfg peer.Config, cb Callbacks, log *zap.Logger) (*Session, string, error) {
	id := sessioncode.GenerateID()

	ch, err := peer.NewHost(cfg, log)
	if err != nil {
		return nil, "", fmt.Errorf("create session %s: %w", id, err)
	}

	offer, err := ch.CreateOffer(ctx)
	if err != nil {
		_ = ch.Close()
		return nil, "", fmt.Errorf("create session %s: %w", id, err)
	}

	code, ok := sessioncode.Encode(id, sessioncode.RoleOffer, offer)
	if !ok {
		_ = ch.Close()
		return nil, "", fmt.Errorf("create session %s: encoding offer failed", id)
	}

	s := New(ctx, id, true, localName, StatusWaiting, rules, ch, cb, log)
	s.channel = ch
	return s, code, nil
}

// CompleteHostConnection consumes the guest's answer code and finishes
// negotiation. Host only.
func (s *Session) CompleteHostConnection(answerCode string) error {
	if s.channel == nil || !s.isHost {
		return ErrNoNegotiation
	}

	decoded, ok := sessioncode.Decode(answerCode)
	if !ok {
		return ErrInvalidCode
	}
	if decoded.Role != sessioncode.RoleAnswer {
		return ErrWrongCodeRole
	}
	if decoded.ID != s.id {
		return ErrSessionMismatch
	}

	if err := s.channel.AcceptAnswer(decoded.Description); err != nil {
		return fmt.Errorf("complete connection for %s: %w", s.id, err)
	}
	s.post(negotiationDone{})
	return nil
}

// JoinSession consumes a host's session code, produces the answer code to
// hand back, and starts the guest session.
func JoinSession(ctx context.Context, code, localName string, rules Rules, cfg peer.Config, cb Callbacks, log *zap.Logger) (*Session, string, error) {
	decoded, ok := sessioncode.Decode(code)
	if !ok {
		return nil, "", ErrInvalidCode
	}
	if decoded.Role != sessioncode.RoleOffer {
		return nil, "", ErrWrongCodeRole
	}

	ch, err := peer.NewGuest(cfg, log)
	if err != nil {
		return nil, "", fmt.Errorf("join session %s: %w", decoded.ID, err)
	}

	answer, err := ch.AcceptOffer(ctx, decoded.Description)
	if err != nil {
		_ = ch.Close()
		return nil, "", fmt.Errorf("join session %s: %w", decoded.ID, err)
	}

	answerCode, ok := sessioncode.Encode(decoded.ID, sessioncode.RoleAnswer, answer)
	if !ok {
		_ = ch.Close()
		return nil, "", fmt.Errorf("join session %s: encoding answer failed", decoded.ID)
	}

	s := New(ctx, decoded.ID, false, localName, StatusConnecting, rules, ch, cb, log)
	s.channel = ch
	return s, answerCode, nil
}
