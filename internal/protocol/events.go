// Package protocol defines the wire contract between clients and the relay
// server: event names, payload shapes, and the envelope codec. Payloads are
// flat JSON objects discriminated by a "type" field.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/coderoom/coderoom/internal/domain"
)

// EventType identifies the kind of signal event.
type EventType string

const (
	EventJoin          EventType = "join"
	EventJoined        EventType = "joined"
	EventNewPeer       EventType = "new_peer"
	EventDisconnected  EventType = "disconnected"
	EventOffer         EventType = "offer"
	EventAnswer        EventType = "answer"
	EventCandidate     EventType = "candidate"
	EventMicToggle     EventType = "mic_toggle"
	EventMicToggleAck  EventType = "mic_toggle_ack"
	EventViewToggle    EventType = "view_toggle"
	EventViewToggleAck EventType = "view_toggle_ack"
	EventSyncDoc       EventType = "sync_doc"
	EventError         EventType = "error"
)

// Join requests room membership.
type Join struct {
	Type     EventType     `json:"type"`
	Room     domain.RoomID `json:"room"`
	Username string        `json:"username"`
}

// Joined is the authoritative roster snapshot, fanned out room-wide after a
// member joins. Username and SocketID identify the joiner.
type Joined struct {
	Type     EventType       `json:"type"`
	Room     domain.RoomID   `json:"room"`
	Username string          `json:"username"`
	SocketID domain.SocketID `json:"socketId"`
	Clients  domain.Roster   `json:"clients"`
}

// NewPeer tells existing members to start negotiating toward a newcomer.
type NewPeer struct {
	Type     EventType       `json:"type"`
	SocketID domain.SocketID `json:"socketId"`
	MicOn    bool            `json:"micOn"`
}

// Disconnected announces that a member left the room.
type Disconnected struct {
	Type     EventType       `json:"type"`
	SocketID domain.SocketID `json:"socketId"`
	Username string          `json:"username"`
}

// Offer relays a session offer. Senders set To; the server consumes it and
// stamps From before delivery.
type Offer struct {
	Type EventType       `json:"type"`
	SDP  string          `json:"sdp"`
	To   domain.SocketID `json:"to,omitempty"`
	From domain.SocketID `json:"from,omitempty"`
}

// Answer relays a session answer. Addressing works as for Offer.
type Answer struct {
	Type EventType       `json:"type"`
	SDP  string          `json:"sdp"`
	To   domain.SocketID `json:"to,omitempty"`
	From domain.SocketID `json:"from,omitempty"`
}

// Candidate relays one trickled connectivity candidate.
type Candidate struct {
	Type      EventType               `json:"type"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
	To        domain.SocketID         `json:"to,omitempty"`
	From      domain.SocketID         `json:"from,omitempty"`
}

// MicToggle broadcasts the sender's microphone state to the room.
type MicToggle struct {
	Type     EventType     `json:"type"`
	Room     domain.RoomID `json:"room"`
	Username string        `json:"username"`
	MicOn    bool          `json:"micOn"`
}

// MicToggleAck is the server's fan-out of a mic toggle to the other members.
type MicToggleAck struct {
	Type     EventType `json:"type"`
	Username string    `json:"username"`
	MicOn    bool      `json:"micOn"`
}

// ViewToggle broadcasts the shared whiteboard-vs-editor flag. Last writer wins.
type ViewToggle struct {
	Type     EventType     `json:"type"`
	Room     domain.RoomID `json:"room"`
	Username string        `json:"username"`
	State    bool          `json:"state"`
}

// ViewToggleAck is the server's fan-out of a view toggle to the other members.
type ViewToggleAck struct {
	Type     EventType `json:"type"`
	Username string    `json:"username"`
	State    bool      `json:"state"`
}

// SyncDoc carries the document snapshot to a late joiner.
type SyncDoc struct {
	Type EventType       `json:"type"`
	Code string          `json:"code"`
	To   domain.SocketID `json:"to,omitempty"`
	From domain.SocketID `json:"from,omitempty"`
}

// ErrorEvent reports a request-level failure back to the sender.
type ErrorEvent struct {
	Type  EventType `json:"type"`
	Error string    `json:"error"`
}

// Envelope is a received event before its payload is bound.
type Envelope struct {
	Type EventType
	Data json.RawMessage
}

// Decode peeks the discriminator of a raw frame.
func Decode(data []byte) (*Envelope, error) {
	var head struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if head.Type == "" {
		return nil, fmt.Errorf("decode envelope: missing type")
	}
	return &Envelope{Type: head.Type, Data: data}, nil
}

// Bind unmarshals the full payload into v.
func (e *Envelope) Bind(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("bind %s payload: %w", e.Type, err)
	}
	return nil
}

// Marshal encodes an outbound event.
func Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return b, nil
}
