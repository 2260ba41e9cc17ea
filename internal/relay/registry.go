package relay

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/coderoom/coderoom/internal/domain"
	"github.com/coderoom/coderoom/internal/protocol"
)

// Client is one connected socket: its identity, its room, and its send side.
type Client struct {
	conn Conn

	mu     sync.RWMutex
	member domain.Member
	room   domain.RoomID
	micOn  bool
}

func NewClient(id domain.SocketID, conn Conn) *Client {
	return &Client{
		conn:   conn,
		member: domain.Member{SocketID: id},
	}
}

func (c *Client) SocketID() domain.SocketID {
	return c.member.SocketID
}

func (c *Client) Member() domain.Member {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.member
}

func (c *Client) SetUsername(name string) {
	c.mu.Lock()
	c.member.Username = name
	c.mu.Unlock()
}

func (c *Client) Room() domain.RoomID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.room
}

func (c *Client) SetRoom(room domain.RoomID) {
	c.mu.Lock()
	c.room = room
	c.mu.Unlock()
}

func (c *Client) MicOn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.micOn
}

func (c *Client) SetMicOn(on bool) {
	c.mu.Lock()
	c.micOn = on
	c.mu.Unlock()
}

// Send marshals and queues one event toward this client.
func (c *Client) Send(v any) error {
	data, err := protocol.Marshal(v)
	if err != nil {
		return err
	}
	return c.conn.TrySend(data)
}

// Registry maps socket identity to connected client.
type Registry struct {
	mu      sync.RWMutex
	clients map[domain.SocketID]*Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[domain.SocketID]*Client)}
}

func (r *Registry) Bind(cl *Client) {
	r.mu.Lock()
	r.clients[cl.SocketID()] = cl
	r.mu.Unlock()
	log.Info().Str("module", "relay.registry").Str("sid", string(cl.SocketID())).Msg("bound client")
}

func (r *Registry) Get(id domain.SocketID) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cl, ok := r.clients[id]
	return cl, ok
}

func (r *Registry) Unbind(id domain.SocketID) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cl, ok := r.clients[id]
	if ok {
		delete(r.clients, id)
		log.Info().Str("module", "relay.registry").Str("sid", string(id)).Msg("unbound client")
	}
	return cl, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
