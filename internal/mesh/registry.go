package mesh

import (
	"sync"

	"github.com/coderoom/coderoom/internal/domain"
)

// Registry owns the mapping from remote member to peer link. It is the only
// construction and destruction funnel for links, which is what guarantees at
// most one link per remote even when both sides initiate at once.
type Registry struct {
	mu    sync.RWMutex
	links map[domain.SocketID]*PeerLink
}

func NewRegistry() *Registry {
	return &Registry{links: make(map[domain.SocketID]*PeerLink)}
}

func (r *Registry) Get(id domain.SocketID) (*PeerLink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.links[id]
	return l, ok
}

// GetOrCreate returns the existing link for id or builds one with factory.
// The factory runs under the registry lock so two racing creations cannot
// both insert.
func (r *Registry) GetOrCreate(id domain.SocketID, factory func() (*PeerLink, error)) (*PeerLink, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.links[id]; ok {
		return l, false, nil
	}
	l, err := factory()
	if err != nil {
		return nil, false, err
	}
	r.links[id] = l
	return l, true, nil
}

// Remove detaches the link for id without closing it; the caller owns the
// teardown.
func (r *Registry) Remove(id domain.SocketID) (*PeerLink, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[id]
	if ok {
		delete(r.links, id)
	}
	return l, ok
}

// Drain removes and returns every link, emptying the registry.
func (r *Registry) Drain() []*PeerLink {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*PeerLink, 0, len(r.links))
	for id, l := range r.links {
		out = append(out, l)
		delete(r.links, id)
	}
	return out
}

func (r *Registry) ForEach(fn func(id domain.SocketID, l *PeerLink)) {
	r.mu.RLock()
	snapshot := make(map[domain.SocketID]*PeerLink, len(r.links))
	for id, l := range r.links {
		snapshot[id] = l
	}
	r.mu.RUnlock()
	for id, l := range snapshot {
		fn(id, l)
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.links)
}
