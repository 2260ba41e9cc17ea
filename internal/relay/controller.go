package relay

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/coderoom/coderoom/internal/config"
	"github.com/coderoom/coderoom/internal/domain"
	"github.com/coderoom/coderoom/internal/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller owns the signal endpoint: one goroutine pair per client, socket
// identity assigned per connection.
type Controller struct {
	Registry *Registry
	Rooms    *Rooms

	readLimit  int64
	pingPeriod time.Duration
}

func NewController(cfg config.ServerConfig) *Controller {
	return &Controller{
		Registry:   NewRegistry(),
		Rooms:      NewRooms(),
		readLimit:  cfg.ReadLimit,
		pingPeriod: cfg.PingPeriod,
	}
}

// HandleSignal upgrades the connection and starts the client's pumps.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "relay").Msg("ws upgrade")
		return
	}

	sid := domain.SocketID(uuid.NewString())
	conn := newWSConn(ws)
	cl := NewClient(sid, conn)
	ctl.Registry.Bind(cl)
	log.Info().Str("module", "relay").Str("sid", string(sid)).Msg("new signal connection")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go func() {
		defer cancel()
		ctl.readPump(sid, conn)
	}()
}

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(ctl.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "relay").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "relay").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (ctl *Controller) readPump(sid domain.SocketID, c *wsConn) {
	defer func() {
		ctl.disconnect(sid)
		c.Close()
	}()

	c.conn.SetReadLimit(ctl.readLimit)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			log.Info().Err(err).Str("module", "relay").Str("sid", string(sid)).Msg("readPump closing")
			return
		}
		ctl.handleSignal(sid, data)
	}
}

func (ctl *Controller) handleSignal(sid domain.SocketID, data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		log.Error().Err(err).Str("module", "relay").Str("sid", string(sid)).Msg("bad frame")
		return
	}

	switch env.Type {
	case protocol.EventJoin:
		ctl.handleJoin(sid, env)
	case protocol.EventOffer, protocol.EventAnswer, protocol.EventCandidate, protocol.EventSyncDoc:
		ctl.relay(sid, env)
	case protocol.EventMicToggle:
		ctl.handleMicToggle(sid, env)
	case protocol.EventViewToggle:
		ctl.handleViewToggle(sid, env)
	default:
		log.Warn().Str("module", "relay").Str("type", string(env.Type)).Msg("unknown signal")
	}
}
