// Package peer owns the direct connection to the one remote player: a
// WebRTC peer connection negotiated through hand-copied offer/answer blobs
// (no signaling server) carrying a single ordered reliable data channel.
package peer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"peertactoe/internal/protocol"
)

var ErrNotOpen = errors.New("channel is not open")
var ErrBadState = errors.New("operation not valid in current channel state")
var ErrBadDescription = errors.New("malformed connection description")

// GatherTimeout bounds ICE candidate gathering. When it expires the local
// description is used with whatever candidates exist so far.
const GatherTimeout = 30 * time.Second

const dataChannelLabel = "game"

type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

type State string

const (
	StateNew           State = "new"
	StateGathering     State = "gathering"
	StateOfferReady    State = "offer-ready"
	StateAwaitingOffer State = "awaiting-offer"
	StateNegotiating   State = "negotiating"
	StateOpen          State = "open"
	StateClosed        State = "closed"
	StateFailed        State = "failed"
)

type Config struct {
	STUNServers []string
}

// Channel is one attempt at one connection. Closed and failed are terminal;
// retrying means building a new Channel.
type Channel struct {
	id   string
	role Role
	log  *zap.Logger

	pc *webrtc.PeerConnection

	mu       sync.Mutex
	dc       *webrtc.DataChannel
	state    State
	terminal bool // a Closed or Failed event has been emitted

	events    chan Event
	closeOnce sync.Once
}

// NewHost builds the offering side. The ordered data channel is created up
// front so it rides along in the offer.
func NewHost(cfg Config, log *zap.Logger) (*Channel, error) {
	c, err := newChannel(RoleHost, cfg, log)
	if err != nil {
		return nil, err
	}

	ordered := true
	dc, err := c.pc.CreateDataChannel(dataChannelLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		c.pc.Close()
		return nil, fmt.Errorf("create data channel: %w", err)
	}
	c.attachDataChannel(dc)
	return c, nil
}

// NewGuest builds the answering side. The data channel arrives from the
// host once negotiation completes.
func NewGuest(cfg Config, log *zap.Logger) (*Channel, error) {
	c, err := newChannel(RoleGuest, cfg, log)
	if err != nil {
		return nil, err
	}
	c.setState(StateAwaitingOffer)

	c.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != dataChannelLabel {
			c.log.Warn("ignoring unexpected data channel", zap.String("label", dc.Label()))
			return
		}
		c.mu.Lock()
		c.attachDataChannelLocked(dc)
		c.mu.Unlock()
	})
	return c, nil
}

func newChannel(role Role, cfg Config, log *zap.Logger) (*Channel, error) {
	var conf webrtc.Configuration
	if len(cfg.STUNServers) > 0 {
		conf.ICEServers = []webrtc.ICEServer{{URLs: cfg.STUNServers}}
	}

	pc, err := webrtc.NewPeerConnection(conf)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	c := &Channel{
		id:     uuid.NewString(),
		role:   role,
		pc:     pc,
		state:  StateNew,
		events: make(chan Event, 64),
	}
	c.log = log.With(zap.String("role", string(role)), zap.String("channel_id", c.id))

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		c.log.Debug("ice connection state", zap.String("state", s.String()))
		c.emit(ICEStateChanged{State: s.String()})
		switch s {
		case webrtc.ICEConnectionStateFailed:
			c.fail(errors.New("ice connection failed"))
		case webrtc.ICEConnectionStateDisconnected, webrtc.ICEConnectionStateClosed:
			c.markClosed()
		}
	})

	return c, nil
}

func (c *Channel) attachDataChannel(dc *webrtc.DataChannel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attachDataChannelLocked(dc)
}

func (c *Channel) attachDataChannelLocked(dc *webrtc.DataChannel) {
	c.dc = dc

	dc.OnOpen(func() {
		c.mu.Lock()
		if c.state == StateClosed || c.state == StateFailed {
			c.mu.Unlock()
			return
		}
		c.state = StateOpen
		c.mu.Unlock()
		c.log.Info("data channel open")
		c.emit(Opened{})
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		c.emit(Received{Raw: string(msg.Data)})
	})

	dc.OnClose(func() {
		c.log.Info("data channel closed by transport")
		c.markClosed()
	})
}

// ID labels this connection attempt in logs.
func (c *Channel) ID() string { return c.id }

func (c *Channel) Role() Role { return c.role }

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Events returns the stream the owner must drain. A Closed or Failed event
// is the last one delivered; the channel itself is never closed because
// transport callbacks can still fire after teardown.
func (c *Channel) Events() <-chan Event { return c.events }

// CreateOffer assembles the host's local description, waiting for candidate
// gathering to finish or GatherTimeout, whichever comes first. Host only.
func (c *Channel) CreateOffer(ctx context.Context) ([]byte, error) {
	if c.role != RoleHost {
		return nil, fmt.Errorf("%w: guest cannot create an offer", ErrBadState)
	}
	c.mu.Lock()
	if c.state != StateNew {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: state %s", ErrBadState, c.state)
	}
	c.state = StateGathering
	c.mu.Unlock()

	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		c.fail(err)
		return nil, fmt.Errorf("create offer: %w", err)
	}

	desc, err := c.settleLocalDescription(ctx, offer)
	if err != nil {
		return nil, err
	}
	c.setState(StateOfferReady)
	return desc, nil
}

// AcceptOffer consumes the host's description and produces the guest's
// answer description, gathering bounded the same way as CreateOffer.
func (c *Channel) AcceptOffer(ctx context.Context, description []byte) ([]byte, error) {
	if c.role != RoleGuest {
		return nil, fmt.Errorf("%w: host cannot accept an offer", ErrBadState)
	}
	c.mu.Lock()
	if c.state != StateAwaitingOffer {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: state %s", ErrBadState, c.state)
	}
	c.state = StateNegotiating
	c.mu.Unlock()

	var remote webrtc.SessionDescription
	if err := json.Unmarshal(description, &remote); err != nil || remote.Type != webrtc.SDPTypeOffer {
		c.fail(ErrBadDescription)
		return nil, ErrBadDescription
	}
	if err := c.pc.SetRemoteDescription(remote); err != nil {
		c.fail(err)
		return nil, fmt.Errorf("set remote offer: %w", err)
	}

	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		c.fail(err)
		return nil, fmt.Errorf("create answer: %w", err)
	}
	return c.settleLocalDescription(ctx, answer)
}

// AcceptAnswer feeds the guest's returned description into a host channel
// to finish negotiation. Host only.
func (c *Channel) AcceptAnswer(description []byte) error {
	if c.role != RoleHost {
		return fmt.Errorf("%w: guest cannot accept an answer", ErrBadState)
	}
	c.mu.Lock()
	if c.state != StateOfferReady {
		c.mu.Unlock()
		return fmt.Errorf("%w: state %s", ErrBadState, c.state)
	}
	c.state = StateNegotiating
	c.mu.Unlock()

	var remote webrtc.SessionDescription
	if err := json.Unmarshal(description, &remote); err != nil || remote.Type != webrtc.SDPTypeAnswer {
		c.fail(ErrBadDescription)
		return ErrBadDescription
	}
	if err := c.pc.SetRemoteDescription(remote); err != nil {
		c.fail(err)
		return fmt.Errorf("set remote answer: %w", err)
	}
	return nil
}

// settleLocalDescription installs desc and waits out ICE gathering. On
// timeout negotiation proceeds with the candidates gathered so far.
func (c *Channel) settleLocalDescription(ctx context.Context, desc webrtc.SessionDescription) ([]byte, error) {
	gathered := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(desc); err != nil {
		c.fail(err)
		return nil, fmt.Errorf("set local description: %w", err)
	}

	select {
	case <-gathered:
	case <-time.After(GatherTimeout):
		c.log.Warn("ice gathering timed out, proceeding with partial candidates")
	case <-ctx.Done():
		c.fail(ctx.Err())
		return nil, ctx.Err()
	}

	local := c.pc.LocalDescription()
	if local == nil {
		err := errors.New("no local description after gathering")
		c.fail(err)
		return nil, err
	}
	out, err := json.Marshal(local)
	if err != nil {
		c.fail(err)
		return nil, fmt.Errorf("encode local description: %w", err)
	}
	return out, nil
}

// Send serializes and transmits one message. Calling before the channel is
// open is a caller error, not a queued write.
func (c *Channel) Send(msg protocol.Message) error {
	c.mu.Lock()
	state, dc := c.state, c.dc
	c.mu.Unlock()

	if state != StateOpen || dc == nil {
		return fmt.Errorf("%w: state %s", ErrNotOpen, state)
	}

	raw, err := protocol.Serialize(msg)
	if err != nil {
		return err
	}
	if err := dc.SendText(raw); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	return nil
}

// Close releases the underlying connection. A courtesy disconnect notice is
// attempted first when the channel is open. Safe to call more than once and
// from any state, including mid-negotiation.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		open := c.state == StateOpen
		dc := c.dc
		c.mu.Unlock()

		if open && dc != nil {
			if raw, err := protocol.Serialize(protocol.NewDisconnect(protocol.ReasonLeft)); err == nil {
				_ = dc.SendText(raw)
			}
		}
		if err := c.pc.Close(); err != nil {
			c.log.Warn("closing peer connection", zap.Error(err))
		}
		c.markClosed()
	})
	return nil
}

// emit never blocks a pion callback; the 64-slot buffer outruns any session
// that is draining at all, and a stalled owner loses events rather than
// deadlocking the transport. Events arriving after the terminal one are
// discarded.
func (c *Channel) emit(ev Event) {
	c.mu.Lock()
	dead := c.terminal
	c.mu.Unlock()
	if dead {
		return
	}
	c.deliver(ev)
}

func (c *Channel) deliver(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.log.Warn("event buffer full, dropping event", zap.String("event", fmt.Sprintf("%T", ev)))
	}
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// becomeTerminal moves to s exactly once; the caller that wins delivers the
// matching terminal event.
func (c *Channel) becomeTerminal(s State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.terminal {
		return false
	}
	c.state = s
	c.terminal = true
	return true
}

func (c *Channel) fail(err error) {
	if !c.becomeTerminal(StateFailed) {
		return
	}
	c.log.Warn("channel failed", zap.Error(err))
	c.deliver(Failed{Err: err})
}

func (c *Channel) markClosed() {
	if !c.becomeTerminal(StateClosed) {
		return
	}
	c.deliver(Closed{})
}
