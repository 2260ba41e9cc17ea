package relay

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/coderoom/coderoom/internal/domain"
)

// Room is a threadsafe in-memory membership set. Join order is preserved so
// every roster snapshot lists members in arrival order.
type Room struct {
	id domain.RoomID

	mu      sync.RWMutex
	order   []domain.SocketID
	members map[domain.SocketID]*Client
}

func NewRoom(id domain.RoomID) *Room {
	return &Room{
		id:      id,
		members: make(map[domain.SocketID]*Client),
	}
}

func (r *Room) ID() domain.RoomID { return r.id }

func (r *Room) Add(cl *Client) {
	sid := cl.SocketID()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[sid]; ok {
		return
	}
	r.members[sid] = cl
	r.order = append(r.order, sid)
	log.Info().Str("module", "relay.room").Str("room", string(r.id)).Str("sid", string(sid)).Msg("member added")
}

func (r *Room) Remove(id domain.SocketID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[id]; !ok {
		return false
	}
	delete(r.members, id)
	for i, sid := range r.order {
		if sid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	log.Info().Str("module", "relay.room").Str("room", string(r.id)).Str("sid", string(id)).Msg("member removed")
	return true
}

func (r *Room) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *Room) Empty() bool { return r.Count() == 0 }

// Snapshot is the authoritative roster in join order.
func (r *Room) Snapshot() domain.Roster {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(domain.Roster, 0, len(r.order))
	for _, sid := range r.order {
		if cl, ok := r.members[sid]; ok {
			out = append(out, cl.Member())
		}
	}
	return out
}

// Broadcast queues data to every member except exclude. Members whose send
// buffer is full are returned so the controller can drop them.
func (r *Room) Broadcast(data []byte, exclude domain.SocketID) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var dropped []*Client
	for sid, cl := range r.members {
		if sid == exclude {
			continue
		}
		if err := cl.conn.TrySend(data); err != nil {
			dropped = append(dropped, cl)
		}
	}
	return dropped
}
