package chat

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chitchat/internal/app/message"
	"chitchat/internal/app/user"
	"chitchat/internal/pkg/logx"
)

const (
	// timeout for writing one frame to the peer.
	writeWait = 10 * time.Second

	// how long to wait for a pong before giving up on the peer.
	pongWait = 60 * time.Second

	// ping period; must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// largest frame accepted from a client.
	maxMessageSize = 8192

	// MaxContentBytes is the largest chat line accepted from a client.
	MaxContentBytes = message.MaxTextBytes

	sendBuffer = 256
)

// Consumer is one WebSocket connection subscribed to a channel.
type Consumer struct {
	channel *Channel
	conn    *websocket.Conn
	user    user.User

	send      chan []byte
	closeOnce sync.Once

	logger zerolog.Logger
}

// NewConsumer wraps an upgraded connection for u in channel.
func NewConsumer(channel *Channel, conn *websocket.Conn, u user.User) *Consumer {
	return &Consumer{
		channel: channel,
		conn:    conn,
		user:    u,
		send:    make(chan []byte, sendBuffer),
		logger: logx.Component("consumer").With().
			Str("user_id", u.ID).
			Str("channel", channel.Name).
			Logger(),
	}
}

// User returns the identity bound to this connection.
func (c *Consumer) User() user.User {
	return c.user
}

// enqueue queues a frame without blocking; false means the queue is full.
func (c *Consumer) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// closeSend ends WritePump. Only the channel loop calls it.
func (c *Consumer) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// ReadPump reads raw text frames and publishes them to the channel until the peer goes away.
func (c *Consumer) ReadPump() {
	defer func() {
		c.channel.Unregister(c)
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error in ReadPump")
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Unexpected close while reading")
			}
			return
		}

		if msgType != websocket.TextMessage {
			continue
		}

		if len(data) > MaxContentBytes {
			c.logger.Warn().Int("bytes", len(data)).Msg("Dropping oversized chat line")
			continue
		}

		c.channel.Publish(c, string(data))
	}
}

// WritePump drains the send queue to the connection and keeps it alive with pings.
func (c *Consumer) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !c.writeQueued(frame, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePing() {
				return
			}
		}
	}
}

// writeQueued writes one queued frame, or a close frame once the queue is closed.
// It returns false when WritePump should stop.
func (c *Consumer) writeQueued(frame []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		closeMsg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "channel closed")
		if err := c.conn.WriteMessage(websocket.CloseMessage, closeMsg); err != nil {
			c.logger.Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Warn().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

func (c *Consumer) writePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Warn().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}
