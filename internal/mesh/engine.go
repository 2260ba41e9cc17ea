package mesh

import (
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/coderoom/coderoom/internal/domain"
)

// SignalSender relays negotiation payloads to one remote member via the
// signal channel. Implemented by the session controller.
type SignalSender interface {
	SendOffer(to domain.SocketID, sdp webrtc.SessionDescription) error
	SendAnswer(to domain.SocketID, sdp webrtc.SessionDescription) error
	SendCandidate(to domain.SocketID, cand webrtc.ICECandidateInit) error
}

// Engine drives every peer link through offer/answer negotiation. One failed
// link never disrupts the others: per-peer failures are logged and move that
// link toward closed.
type Engine struct {
	registry *Registry
	sender   SignalSender
	factory  TransportFactory

	// hasSource gates outbound initiation; a client without local media still
	// answers inbound offers to receive audio.
	hasSource bool

	onTrack func(domain.SocketID, *webrtc.TrackRemote)
}

func NewEngine(sender SignalSender, factory TransportFactory, hasSource bool) *Engine {
	return &Engine{
		registry:  NewRegistry(),
		sender:    sender,
		factory:   factory,
		hasSource: hasSource,
	}
}

// OnTrack registers the playback hook for incoming remote audio.
func (e *Engine) OnTrack(fn func(domain.SocketID, *webrtc.TrackRemote)) {
	e.onTrack = fn
}

// Registry exposes the link registry for inspection.
func (e *Engine) Registry() *Registry { return e.registry }

// ensureLink returns the link for remote, creating transport and link when
// none exists. Reuse of an existing link is the glare-resolution rule.
func (e *Engine) ensureLink(remote domain.SocketID) (*PeerLink, bool, error) {
	return e.registry.GetOrCreate(remote, func() (*PeerLink, error) {
		tr, err := e.factory(remote, TransportHooks{
			OnCandidate: func(cand webrtc.ICECandidateInit) {
				if _, ok := e.registry.Get(remote); !ok {
					return
				}
				if err := e.sender.SendCandidate(remote, cand); err != nil {
					log.Warn().Err(err).Str("module", "mesh").Str("remote", string(remote)).Msg("relay candidate")
				}
			},
			OnTrack: func(track *webrtc.TrackRemote) {
				if e.onTrack != nil {
					e.onTrack(remote, track)
				}
			},
			OnConnected: func() {
				if link, ok := e.registry.Get(remote); ok {
					link.transition(StateConnected)
				}
			},
			OnFailed: func() {
				log.Warn().Str("module", "mesh").Str("remote", string(remote)).Msg("peer connection failed, closing link")
				e.Close(remote)
			},
		})
		if err != nil {
			return nil, err
		}
		return newPeerLink(remote, tr), nil
	})
}

// Initiate starts negotiation toward a remote member. Without a local source
// the call returns ErrNoLocalSource and does nothing; a link already in the
// registry is left alone.
func (e *Engine) Initiate(remote domain.SocketID) error {
	if !e.hasSource {
		return ErrNoLocalSource
	}

	link, created, err := e.ensureLink(remote)
	if err != nil {
		return err
	}
	if !created {
		// Negotiation toward this member is already in flight.
		return nil
	}

	offer, err := link.tr.CreateOffer()
	if err != nil {
		e.Close(remote)
		return err
	}
	// The link may have been torn down while the offer was generated.
	if current, ok := e.registry.Get(remote); !ok || current != link {
		return nil
	}
	link.transition(StateOfferSent)
	log.Info().Str("module", "mesh").Str("remote", string(remote)).Msg("offer sent")
	return e.sender.SendOffer(remote, offer)
}

// HandleOffer answers an inbound offer. An existing link is reused rather
// than forked; the last offer processed wins for the local description.
func (e *Engine) HandleOffer(from domain.SocketID, sdp webrtc.SessionDescription) error {
	link, created, err := e.ensureLink(from)
	if err != nil {
		return err
	}
	if !created {
		log.Info().Str("module", "mesh").Str("remote", string(from)).Msg("offer for existing link, reusing")
	}

	link.transition(StateOfferReceived)
	answer, err := link.tr.ApplyOffer(sdp)
	if err != nil {
		log.Warn().Err(err).Str("module", "mesh").Str("remote", string(from)).Msg("apply offer failed, closing link")
		e.Close(from)
		return err
	}
	if current, ok := e.registry.Get(from); !ok || current != link {
		return nil
	}
	link.transition(StateAnswerSent)
	log.Info().Str("module", "mesh").Str("remote", string(from)).Msg("answer sent")
	return e.sender.SendAnswer(from, answer)
}

// HandleAnswer applies an inbound answer to the existing link. A stale answer
// with no link is dropped.
func (e *Engine) HandleAnswer(from domain.SocketID, sdp webrtc.SessionDescription) error {
	link, ok := e.registry.Get(from)
	if !ok {
		log.Warn().Str("module", "mesh").Str("remote", string(from)).Msg("answer for unknown peer, dropping")
		return nil
	}
	if err := link.tr.ApplyAnswer(sdp); err != nil {
		log.Warn().Err(err).Str("module", "mesh").Str("remote", string(from)).Msg("apply answer failed, closing link")
		e.Close(from)
		return err
	}
	link.transition(StateConnected)
	return nil
}

// HandleCandidate applies a trickled candidate. Candidates for unknown peers
// are expected under teardown races and dropped silently.
func (e *Engine) HandleCandidate(from domain.SocketID, cand webrtc.ICECandidateInit) error {
	link, ok := e.registry.Get(from)
	if !ok {
		log.Debug().Str("module", "mesh").Str("remote", string(from)).Msg("candidate for unknown peer, dropping")
		return nil
	}
	if err := link.tr.AddICECandidate(cand); err != nil {
		log.Warn().Err(err).Str("module", "mesh").Str("remote", string(from)).Msg("add candidate")
	}
	return nil
}

// Close tears down the link for one remote member, if any.
func (e *Engine) Close(remote domain.SocketID) {
	if link, ok := e.registry.Remove(remote); ok {
		link.close()
		log.Info().Str("module", "mesh").Str("remote", string(remote)).Msg("peer link closed")
	}
}

// CloseAll tears down every link; the registry is empty afterwards.
func (e *Engine) CloseAll() {
	for _, link := range e.registry.Drain() {
		link.close()
	}
}
