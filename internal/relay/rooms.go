package relay

import (
	"sync"

	"github.com/coderoom/coderoom/internal/domain"
)

// RoomInfo is a read-only view for the REST surface.
type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"member_count"`
}

// Rooms manages the live room set. Rooms appear on first join and disappear
// when their last member leaves; nothing survives a restart.
type Rooms struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*Room
}

func NewRooms() *Rooms {
	return &Rooms{rooms: make(map[domain.RoomID]*Room)}
}

func (m *Rooms) GetOrCreate(id domain.RoomID) *Room {
	m.mu.RLock()
	room, ok := m.rooms[id]
	m.mu.RUnlock()
	if ok {
		return room
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok = m.rooms[id]; ok {
		return room
	}
	room = NewRoom(id)
	m.rooms[id] = room
	return room
}

func (m *Rooms) Get(id domain.RoomID) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[id]
	return room, ok
}

// RemoveIfEmpty deletes the room when its last member has left.
func (m *Rooms) RemoveIfEmpty(id domain.RoomID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok := m.rooms[id]; ok && room.Empty() {
		delete(m.rooms, id)
	}
}

func (m *Rooms) List() []RoomInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RoomInfo, 0, len(m.rooms))
	for id, room := range m.rooms {
		out = append(out, RoomInfo{ID: id, MemberCount: room.Count()})
	}
	return out
}
