// Package session holds the room-membership controller: it joins exactly one
// room, keeps the roster consistent with server truth, triggers peer link
// setup and teardown per member, and synchronizes the three cross-cutting
// shared states (document snapshot, view flag, mic flag).
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/coderoom/coderoom/internal/domain"
	"github.com/coderoom/coderoom/internal/media"
	"github.com/coderoom/coderoom/internal/mesh"
	"github.com/coderoom/coderoom/internal/protocol"
)

// SignalChannel is the controller's view of the event transport.
// *signal.Channel satisfies it.
type SignalChannel interface {
	Send(v any) error
	Incoming() <-chan *protocol.Envelope
	Done() <-chan error
	Close()
}

// Controller owns this client's membership in one room for the lifetime of
// the session. It is the single consumer of the signal channel, so handlers
// run serially and link state never races with roster state.
type Controller struct {
	room     domain.RoomID
	username string

	ch     SignalChannel
	engine *mesh.Engine
	source media.Source
	notify Notifier

	mu         sync.RWMutex
	self       domain.SocketID
	roster     domain.Roster
	doc        string
	whiteboard bool
	micOn      bool

	joinOnce  sync.Once
	leaveOnce sync.Once
}

// NewController wires the membership controller and its negotiation engine.
// source may be nil; the session then receives audio without sending any.
func NewController(room domain.RoomID, username string, ch SignalChannel, factory mesh.TransportFactory, source media.Source, notify Notifier) *Controller {
	if notify == nil {
		notify = NopNotifier{}
	}
	c := &Controller{
		room:     room,
		username: username,
		ch:       ch,
		source:   source,
		notify:   notify,
	}
	c.engine = mesh.NewEngine(channelSender{ch: ch}, factory, source != nil)
	c.engine.OnTrack(func(from domain.SocketID, track *webrtc.TrackRemote) {
		log.Info().Str("module", "session").Str("from", string(from)).Msg("receiving remote audio")
	})
	return c
}

// Join emits the membership request. Exactly one join is sent per controller
// no matter how often the surrounding lifecycle calls it.
func (c *Controller) Join() error {
	var err error
	c.joinOnce.Do(func() {
		err = c.ch.Send(protocol.Join{Type: protocol.EventJoin, Room: c.room, Username: c.username})
	})
	return err
}

// Run consumes signal events until the context ends, the channel closes, or
// the transport fails. It always leaves the room on the way out.
func (c *Controller) Run(ctx context.Context) error {
	defer c.Leave()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-c.ch.Done():
			if err != nil {
				log.Error().Err(err).Str("module", "session").Msg("signal transport failed")
				c.notify.SessionError(err)
				return err
			}
			return nil
		case env, ok := <-c.ch.Incoming():
			if !ok {
				return nil
			}
			c.handle(env)
		}
	}
}

func (c *Controller) handle(env *protocol.Envelope) {
	switch env.Type {
	case protocol.EventJoined:
		var p protocol.Joined
		if bind(env, &p) {
			c.handleJoined(p)
		}
	case protocol.EventNewPeer:
		var p protocol.NewPeer
		if bind(env, &p) {
			c.handleNewPeer(p)
		}
	case protocol.EventDisconnected:
		var p protocol.Disconnected
		if bind(env, &p) {
			c.handleDisconnected(p)
		}
	case protocol.EventOffer:
		var p protocol.Offer
		if bind(env, &p) {
			c.handleOffer(p)
		}
	case protocol.EventAnswer:
		var p protocol.Answer
		if bind(env, &p) {
			c.handleAnswer(p)
		}
	case protocol.EventCandidate:
		var p protocol.Candidate
		if bind(env, &p) {
			if err := c.engine.HandleCandidate(p.From, p.Candidate); err != nil {
				log.Warn().Err(err).Str("module", "session").Msg("handle candidate")
			}
		}
	case protocol.EventMicToggleAck:
		var p protocol.MicToggleAck
		if bind(env, &p) {
			c.notify.MicChanged(p.Username, p.MicOn)
		}
	case protocol.EventViewToggleAck:
		var p protocol.ViewToggleAck
		if bind(env, &p) {
			// Received state is applied verbatim: last writer wins.
			c.mu.Lock()
			c.whiteboard = p.State
			c.mu.Unlock()
			c.notify.ViewChanged(p.Username, p.State)
		}
	case protocol.EventSyncDoc:
		var p protocol.SyncDoc
		if bind(env, &p) {
			c.mu.Lock()
			c.doc = p.Code
			c.mu.Unlock()
		}
	case protocol.EventError:
		var p protocol.ErrorEvent
		if bind(env, &p) {
			log.Warn().Str("module", "session").Str("error", p.Error).Msg("server error event")
			c.notify.SessionError(errors.New(p.Error))
		}
	default:
		log.Warn().Str("module", "session").Str("type", string(env.Type)).Msg("unknown signal event")
	}
}

func bind(env *protocol.Envelope, v any) bool {
	if err := env.Bind(v); err != nil {
		log.Warn().Err(err).Str("module", "session").Msg("bad payload")
		return false
	}
	return true
}

// handleJoined replaces the roster wholesale with server truth and sends the
// current document snapshot to the joiner (late-joiner catch-up, the only
// document-sync trigger in the system).
func (c *Controller) handleJoined(p protocol.Joined) {
	c.mu.Lock()
	if self, ok := p.Clients.Find(p.SocketID); ok && self.Username == c.username && c.self == "" {
		c.self = p.SocketID
	}
	isSelf := p.SocketID == c.self
	c.roster = p.Clients
	doc := c.doc
	c.mu.Unlock()

	log.Info().Str("module", "session").
		Str("username", p.Username).
		Str("socket_id", string(p.SocketID)).
		Int("roster", len(p.Clients)).
		Msg("member joined")

	if !isSelf {
		c.notify.MemberJoined(p.Username)
	}
	if err := c.ch.Send(protocol.SyncDoc{Type: protocol.EventSyncDoc, Code: doc, To: p.SocketID}); err != nil {
		log.Warn().Err(err).Str("module", "session").Msg("send document snapshot")
	}
}

func (c *Controller) handleNewPeer(p protocol.NewPeer) {
	if err := c.engine.Initiate(p.SocketID); err != nil {
		if errors.Is(err, mesh.ErrNoLocalSource) {
			// Cannot originate media; the peer's own offer will still reach us.
			log.Debug().Str("module", "session").Str("remote", string(p.SocketID)).Msg("skipping initiate, no local source")
			return
		}
		log.Warn().Err(err).Str("module", "session").Str("remote", string(p.SocketID)).Msg("initiate toward new peer")
	}
}

func (c *Controller) handleDisconnected(p protocol.Disconnected) {
	c.mu.Lock()
	c.roster = c.roster.Without(p.SocketID)
	c.mu.Unlock()

	c.notify.MemberLeft(p.Username)
	c.engine.Close(p.SocketID)
}

func (c *Controller) handleOffer(p protocol.Offer) {
	sdp := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: p.SDP}
	if err := c.engine.HandleOffer(p.From, sdp); err != nil {
		log.Warn().Err(err).Str("module", "session").Str("from", string(p.From)).Msg("handle offer")
	}
}

func (c *Controller) handleAnswer(p protocol.Answer) {
	sdp := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: p.SDP}
	if err := c.engine.HandleAnswer(p.From, sdp); err != nil {
		log.Warn().Err(err).Str("module", "session").Str("from", string(p.From)).Msg("handle answer")
	}
}

// Leave closes every peer link, then the signal channel. Runs exactly once
// across every exit path.
func (c *Controller) Leave() {
	c.leaveOnce.Do(func() {
		c.engine.CloseAll()
		c.ch.Close()
		log.Info().Str("module", "session").Str("room", string(c.room)).Msg("left room")
	})
}

// Roster returns a copy of the current membership.
func (c *Controller) Roster() domain.Roster {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(domain.Roster, len(c.roster))
	copy(out, c.roster)
	return out
}

// Self returns this client's transport-assigned identity, once known.
func (c *Controller) Self() domain.SocketID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.self
}

// PeerCount reports how many peer links currently exist.
func (c *Controller) PeerCount() int {
	return c.engine.Registry().Len()
}
