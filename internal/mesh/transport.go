package mesh

import (
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/coderoom/coderoom/internal/domain"
	"github.com/coderoom/coderoom/internal/media"
)

// Transport is the negotiation surface of one direct peer connection.
// Owned by its PeerLink; the link must Close() it.
type Transport interface {
	// CreateOffer builds a local offer and commits it as the local description.
	CreateOffer() (webrtc.SessionDescription, error)
	// ApplyOffer commits the remote offer, then builds and commits a local answer.
	ApplyOffer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error)
	// ApplyAnswer commits the remote answer.
	ApplyAnswer(answer webrtc.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error
	Close() error
}

// TransportHooks are the callbacks a transport fires as negotiation and
// connectivity progress. Candidates are relayed one by one as discovered,
// never batched.
type TransportHooks struct {
	OnCandidate func(webrtc.ICECandidateInit)
	OnTrack     func(*webrtc.TrackRemote)
	OnConnected func()
	OnFailed    func()
}

// TransportFactory builds a transport wired toward one remote member.
type TransportFactory func(remote domain.SocketID, hooks TransportHooks) (Transport, error)

type rtcTransport struct {
	pc     *webrtc.PeerConnection
	remote domain.SocketID
}

// NewRTCFactory returns a factory producing pion-backed transports with
// STUN-only ICE. Local tracks from source are attached at creation; a nil
// source yields receive-only transports.
func NewRTCFactory(stunURLs []string, source media.Source) TransportFactory {
	cfg := webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: stunURLs}},
	}

	return func(remote domain.SocketID, hooks TransportHooks) (Transport, error) {
		pc, err := webrtc.NewPeerConnection(cfg)
		if err != nil {
			return nil, err
		}

		if source != nil {
			for _, track := range source.Tracks() {
				if _, err := pc.AddTrack(track); err != nil {
					_ = pc.Close()
					return nil, err
				}
			}
		}

		pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
			if cand != nil && hooks.OnCandidate != nil {
				hooks.OnCandidate(cand.ToJSON())
			}
		})

		pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
			log.Info().Str("module", "mesh").
				Str("remote", string(remote)).
				Str("kind", track.Kind().String()).
				Str("track_id", track.ID()).
				Msg("remote track received")
			if hooks.OnTrack != nil {
				hooks.OnTrack(track)
			}
		})

		pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
			log.Info().Str("module", "mesh").
				Str("remote", string(remote)).
				Str("state", s.String()).
				Msg("peer connection state")
			switch s {
			case webrtc.PeerConnectionStateConnected:
				if hooks.OnConnected != nil {
					hooks.OnConnected()
				}
			case webrtc.PeerConnectionStateFailed:
				if hooks.OnFailed != nil {
					hooks.OnFailed()
				}
			}
		})

		return &rtcTransport{pc: pc, remote: remote}, nil
	}
}

func (t *rtcTransport) CreateOffer() (webrtc.SessionDescription, error) {
	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	// Candidates trickle via OnICECandidate; no need to wait for gathering.
	if err := t.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return offer, nil
}

func (t *rtcTransport) ApplyOffer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if err := t.pc.SetRemoteDescription(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	answer, err := t.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := t.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return answer, nil
}

func (t *rtcTransport) ApplyAnswer(answer webrtc.SessionDescription) error {
	return t.pc.SetRemoteDescription(answer)
}

func (t *rtcTransport) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return t.pc.AddICECandidate(ci)
}

func (t *rtcTransport) Close() error {
	return t.pc.Close()
}
