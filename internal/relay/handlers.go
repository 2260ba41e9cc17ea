package relay

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/coderoom/coderoom/internal/domain"
	"github.com/coderoom/coderoom/internal/protocol"
)

func (ctl *Controller) sendError(cl *Client, msg string) {
	if err := cl.Send(protocol.ErrorEvent{Type: protocol.EventError, Error: msg}); err != nil {
		log.Warn().Err(err).Str("module", "relay").Str("sid", string(cl.SocketID())).Msg("send error event")
	}
}

// handleJoin admits the client into the requested room, fans the
// authoritative roster out to every member, and tells existing members to
// start negotiating toward the newcomer.
func (ctl *Controller) handleJoin(sid domain.SocketID, env *protocol.Envelope) {
	cl, ok := ctl.Registry.Get(sid)
	if !ok {
		return
	}

	var p protocol.Join
	if err := env.Bind(&p); err != nil {
		log.Error().Err(err).Str("module", "relay").Msg("bad join payload")
		ctl.sendError(cl, "bad_payload")
		return
	}
	if p.Room == "" {
		ctl.sendError(cl, "empty room")
		return
	}
	if err := domain.ValidateUsername(p.Username); err != nil {
		ctl.sendError(cl, err.Error())
		return
	}
	if cl.Room() != "" {
		// One room per connection; a second join is a client bug.
		ctl.sendError(cl, "already in a room")
		return
	}

	cl.SetUsername(p.Username)
	cl.SetRoom(p.Room)
	room := ctl.Rooms.GetOrCreate(p.Room)
	room.Add(cl)
	log.Info().Str("module", "relay").
		Str("sid", string(sid)).
		Str("room", string(p.Room)).
		Str("username", p.Username).
		Msg("join")

	joined, err := protocol.Marshal(protocol.Joined{
		Type:     protocol.EventJoined,
		Room:     p.Room,
		Username: p.Username,
		SocketID: sid,
		Clients:  room.Snapshot(),
	})
	if err != nil {
		log.Error().Err(err).Str("module", "relay").Msg("marshal joined")
		return
	}
	ctl.dropSlow(room.Broadcast(joined, ""))

	newPeer, err := protocol.Marshal(protocol.NewPeer{
		Type:     protocol.EventNewPeer,
		SocketID: sid,
		MicOn:    cl.MicOn(),
	})
	if err != nil {
		log.Error().Err(err).Str("module", "relay").Msg("marshal new_peer")
		return
	}
	ctl.dropSlow(room.Broadcast(newPeer, sid))
}

// relay re-addresses a targeted event: the To field is consumed, From is
// stamped with the sender, and the payload goes to the target only. A missing
// target is expected under disconnect races and dropped quietly.
func (ctl *Controller) relay(sid domain.SocketID, env *protocol.Envelope) {
	var (
		to  domain.SocketID
		out any
	)

	switch env.Type {
	case protocol.EventOffer:
		var p protocol.Offer
		if err := env.Bind(&p); err != nil {
			log.Error().Err(err).Str("module", "relay").Msg("bad offer payload")
			return
		}
		to, p.To, p.From = p.To, "", sid
		out = p
	case protocol.EventAnswer:
		var p protocol.Answer
		if err := env.Bind(&p); err != nil {
			log.Error().Err(err).Str("module", "relay").Msg("bad answer payload")
			return
		}
		to, p.To, p.From = p.To, "", sid
		out = p
	case protocol.EventCandidate:
		var p protocol.Candidate
		if err := env.Bind(&p); err != nil {
			log.Error().Err(err).Str("module", "relay").Msg("bad candidate payload")
			return
		}
		to, p.To, p.From = p.To, "", sid
		out = p
	case protocol.EventSyncDoc:
		var p protocol.SyncDoc
		if err := env.Bind(&p); err != nil {
			log.Error().Err(err).Str("module", "relay").Msg("bad sync_doc payload")
			return
		}
		to, p.To, p.From = p.To, "", sid
		out = p
	default:
		return
	}

	if to == "" {
		log.Warn().Str("module", "relay").Str("type", string(env.Type)).Msg("relay without target")
		return
	}
	target, ok := ctl.Registry.Get(to)
	if !ok {
		log.Debug().Str("module", "relay").
			Str("type", string(env.Type)).
			Str("to", string(to)).
			Msg("relay target gone, dropping")
		return
	}
	if err := target.Send(out); err != nil {
		log.Warn().Err(err).Str("module", "relay").Str("to", string(to)).Msg("relay send")
		if errors.Is(err, ErrBackpressure) {
			ctl.dropSlow([]*Client{target})
		}
	}
}

func (ctl *Controller) handleMicToggle(sid domain.SocketID, env *protocol.Envelope) {
	cl, ok := ctl.Registry.Get(sid)
	if !ok {
		return
	}
	var p protocol.MicToggle
	if err := env.Bind(&p); err != nil {
		log.Error().Err(err).Str("module", "relay").Msg("bad mic_toggle payload")
		return
	}
	cl.SetMicOn(p.MicOn)

	room, ok := ctl.Rooms.Get(cl.Room())
	if !ok {
		return
	}
	ack, err := protocol.Marshal(protocol.MicToggleAck{
		Type:     protocol.EventMicToggleAck,
		Username: cl.Member().Username,
		MicOn:    p.MicOn,
	})
	if err != nil {
		return
	}
	ctl.dropSlow(room.Broadcast(ack, sid))
}

func (ctl *Controller) handleViewToggle(sid domain.SocketID, env *protocol.Envelope) {
	cl, ok := ctl.Registry.Get(sid)
	if !ok {
		return
	}
	var p protocol.ViewToggle
	if err := env.Bind(&p); err != nil {
		log.Error().Err(err).Str("module", "relay").Msg("bad view_toggle payload")
		return
	}
	room, ok := ctl.Rooms.Get(cl.Room())
	if !ok {
		return
	}
	ack, err := protocol.Marshal(protocol.ViewToggleAck{
		Type:     protocol.EventViewToggleAck,
		Username: cl.Member().Username,
		State:    p.State,
	})
	if err != nil {
		return
	}
	ctl.dropSlow(room.Broadcast(ack, sid))
}

// disconnect removes the client from its room, announces the departure to the
// remaining members, and deletes the room when it empties.
func (ctl *Controller) disconnect(sid domain.SocketID) {
	cl, ok := ctl.Registry.Unbind(sid)
	if !ok {
		return
	}

	roomID := cl.Room()
	if roomID == "" {
		return
	}
	room, ok := ctl.Rooms.Get(roomID)
	if !ok {
		return
	}
	if !room.Remove(sid) {
		return
	}

	gone, err := protocol.Marshal(protocol.Disconnected{
		Type:     protocol.EventDisconnected,
		SocketID: sid,
		Username: cl.Member().Username,
	})
	if err == nil {
		ctl.dropSlow(room.Broadcast(gone, ""))
	}
	ctl.Rooms.RemoveIfEmpty(roomID)
	log.Info().Str("module", "relay").
		Str("sid", string(sid)).
		Str("room", string(roomID)).
		Msg("disconnected")
}

// dropSlow closes connections that could not keep up; their read pumps then
// exit and run the normal disconnect path.
func (ctl *Controller) dropSlow(slow []*Client) {
	for _, cl := range slow {
		log.Warn().Str("module", "relay").Str("sid", string(cl.SocketID())).Msg("dropping slow client")
		cl.conn.Close()
	}
}
