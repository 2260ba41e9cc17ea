// Package signal is the client side of the persistent, ordered event channel
// to the relay server.
package signal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/coderoom/coderoom/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
)

var ErrChannelClosed = errors.New("signal channel closed")

// Channel wraps one WebSocket connection with read/write pumps. Incoming
// events arrive decoded and in order; a transport-level failure surfaces on
// Done() and is fatal for the session.
type Channel struct {
	conn     *websocket.Conn
	incoming chan *protocol.Envelope
	outgoing chan []byte
	done     chan struct{}
	fatal    chan error

	closeOnce sync.Once
}

// Dial connects to the relay server's signal endpoint.
func Dial(ctx context.Context, url string) (*Channel, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to signal server: %w", err)
	}

	c := &Channel{
		conn:     conn,
		incoming: make(chan *protocol.Envelope, 32),
		outgoing: make(chan []byte, 32),
		done:     make(chan struct{}),
		fatal:    make(chan error, 1),
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.readPump()
	go c.writePump()

	return c, nil
}

func (c *Channel) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				// Local close; not a transport failure.
			default:
				c.fatal <- fmt.Errorf("signal connection lost: %w", err)
			}
			return
		}
		env, err := protocol.Decode(data)
		if err != nil {
			log.Warn().Err(err).Str("module", "signal").Msg("dropping malformed event")
			continue
		}
		c.incoming <- env
	}
}

func (c *Channel) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data := <-c.outgoing:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("write failed")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Send encodes and queues one outbound event.
func (c *Channel) Send(v any) error {
	data, err := protocol.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case c.outgoing <- data:
		return nil
	case <-c.done:
		return ErrChannelClosed
	}
}

// Incoming delivers decoded events in arrival order. Closed when the
// connection ends.
func (c *Channel) Incoming() <-chan *protocol.Envelope {
	return c.incoming
}

// Done surfaces a fatal transport error. Nothing is delivered on clean close.
func (c *Channel) Done() <-chan error {
	return c.fatal
}

// Close shuts the channel down. Idempotent.
func (c *Channel) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}
