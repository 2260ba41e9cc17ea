package session

import (
	"github.com/rs/zerolog/log"

	"github.com/coderoom/coderoom/internal/protocol"
)

// ToggleMic flips the local mic flag, gates the shared local audio source,
// and broadcasts the new state once. It never creates or removes a peer link:
// muting is purely local to the owner of the tracks.
func (c *Controller) ToggleMic() bool {
	c.mu.Lock()
	c.micOn = !c.micOn
	on := c.micOn
	c.mu.Unlock()

	if c.source != nil {
		c.source.SetEnabled(on)
	}
	if err := c.ch.Send(protocol.MicToggle{Type: protocol.EventMicToggle, Room: c.room, Username: c.username, MicOn: on}); err != nil {
		log.Warn().Err(err).Str("module", "session").Msg("broadcast mic toggle")
	}
	return on
}

// ToggleView flips the shared whiteboard-vs-editor flag and broadcasts it.
// The flag is room-wide with last-writer-wins semantics.
func (c *Controller) ToggleView() bool {
	c.mu.Lock()
	c.whiteboard = !c.whiteboard
	state := c.whiteboard
	c.mu.Unlock()

	if err := c.ch.Send(protocol.ViewToggle{Type: protocol.EventViewToggle, Room: c.room, Username: c.username, State: state}); err != nil {
		log.Warn().Err(err).Str("module", "session").Msg("broadcast view toggle")
	}
	return state
}

// SetDocument records the latest editor content. The snapshot is only sent
// over the wire when a member joins.
func (c *Controller) SetDocument(code string) {
	c.mu.Lock()
	c.doc = code
	c.mu.Unlock()
}

// Document returns the current document snapshot.
func (c *Controller) Document() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.doc
}

// MicOn reports the local mic flag.
func (c *Controller) MicOn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.micOn
}

// Whiteboard reports the shared view flag.
func (c *Controller) Whiteboard() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.whiteboard
}
