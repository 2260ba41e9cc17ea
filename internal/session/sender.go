package session

import (
	"github.com/pion/webrtc/v4"

	"github.com/coderoom/coderoom/internal/domain"
	"github.com/coderoom/coderoom/internal/protocol"
)

// channelSender adapts the signal channel to the negotiation engine's
// relay interface.
type channelSender struct {
	ch SignalChannel
}

func (s channelSender) SendOffer(to domain.SocketID, sdp webrtc.SessionDescription) error {
	return s.ch.Send(protocol.Offer{Type: protocol.EventOffer, SDP: sdp.SDP, To: to})
}

func (s channelSender) SendAnswer(to domain.SocketID, sdp webrtc.SessionDescription) error {
	return s.ch.Send(protocol.Answer{Type: protocol.EventAnswer, SDP: sdp.SDP, To: to})
}

func (s channelSender) SendCandidate(to domain.SocketID, cand webrtc.ICECandidateInit) error {
	return s.ch.Send(protocol.Candidate{Type: protocol.EventCandidate, Candidate: cand, To: to})
}
