// Package mesh establishes and maintains the full set of direct audio links
// between this client and every other room member. Each remote member owns
// exactly one PeerLink, driven through an explicit negotiation state machine
// and held in the Registry.
package mesh

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/coderoom/coderoom/internal/domain"
)

// LinkState is the negotiation state tag of one peer link.
type LinkState string

const (
	StateNew           LinkState = "new"
	StateOfferSent     LinkState = "offer_sent"
	StateOfferReceived LinkState = "offer_received"
	StateAnswerSent    LinkState = "answer_sent"
	StateConnected     LinkState = "connected"
	StateClosed        LinkState = "closed"
)

// validNext encodes the allowed transitions. Closed is reachable from
// everywhere; an offer arriving while ours is outstanding (glare) moves
// offer_sent back through offer_received on the same link.
var validNext = map[LinkState][]LinkState{
	StateNew:           {StateOfferSent, StateOfferReceived},
	StateOfferSent:     {StateOfferReceived, StateConnected},
	StateOfferReceived: {StateAnswerSent},
	StateAnswerSent:    {StateOfferReceived, StateConnected},
	StateConnected:     {StateOfferReceived},
}

// PeerLink is this client's negotiation and transport pairing for one other
// room member.
type PeerLink struct {
	remote domain.SocketID
	tr     Transport

	mu    sync.Mutex
	state LinkState
}

func newPeerLink(remote domain.SocketID, tr Transport) *PeerLink {
	return &PeerLink{remote: remote, tr: tr, state: StateNew}
}

func (l *PeerLink) Remote() domain.SocketID { return l.remote }

func (l *PeerLink) State() LinkState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// transition moves the link to the next state if the step is legal. Illegal
// steps are logged and ignored; a single misordered message must not take the
// link down.
func (l *PeerLink) transition(to LinkState) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateClosed {
		return false
	}
	if to == StateClosed {
		l.state = StateClosed
		return true
	}
	for _, next := range validNext[l.state] {
		if next == to {
			l.state = to
			return true
		}
	}
	log.Warn().Str("module", "mesh").
		Str("remote", string(l.remote)).
		Str("from", string(l.state)).
		Str("to", string(to)).
		Msg("ignoring invalid link transition")
	return false
}

// close releases the transport and marks the link terminal. Safe to call more
// than once.
func (l *PeerLink) close() {
	l.mu.Lock()
	alreadyClosed := l.state == StateClosed
	l.state = StateClosed
	l.mu.Unlock()
	if alreadyClosed {
		return
	}
	if err := l.tr.Close(); err != nil {
		log.Warn().Err(err).Str("module", "mesh").Str("remote", string(l.remote)).Msg("transport close")
	}
}
