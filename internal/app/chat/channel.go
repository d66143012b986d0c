/*
Package chat runs the live side of the companion server: channels, their connected
consumers, presence and message fan-out.

This file defines Channel, the event loop of one chat channel. A Channel owns its consumer
set and presence table; every mutation happens on the Run goroutine.
*/
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chitchat/internal/app/history"
	"chitchat/internal/app/message"
	"chitchat/internal/app/user"
	"chitchat/internal/pkg/logx"
)

const (
	// DefaultInactivityTimeout is how long an empty channel lingers before its loop stops.
	DefaultInactivityTimeout = 5 * time.Minute

	// historyWriteTimeout bounds a single history append.
	historyWriteTimeout = 5 * time.Second

	inboundBuffer = 256
)

// ErrChannelClosed is returned when registering with a channel whose loop already stopped.
var ErrChannelClosed = errors.New("chat: channel closed")

// presence counts live connections of one user; several tabs or a reconnect overlap
// must not flap join/leave events.
type presence struct {
	user        user.User
	connections int
}

type inbound struct {
	from *Consumer
	text string
}

// Channel is a single chat channel.
type Channel struct {
	Name string

	consumers map[*Consumer]struct{}
	online    map[string]*presence

	register   chan *Consumer
	unregister chan *Consumer
	inbound    chan inbound

	store       history.Store
	cleanupChan chan<- *Channel
	idleTimeout time.Duration
	now         func() time.Time

	// done is closed when Run returns.
	done     chan struct{}
	stopOnce sync.Once
	stopChan chan struct{}

	// mu guards online for readers outside the Run goroutine.
	mu sync.RWMutex

	logger zerolog.Logger
}

// NewChannel creates a Channel; the caller must start Run.
func NewChannel(name string, store history.Store, cleanupChan chan<- *Channel, idleTimeout time.Duration) *Channel {
	if idleTimeout <= 0 {
		idleTimeout = DefaultInactivityTimeout
	}

	return &Channel{
		Name:        name,
		consumers:   make(map[*Consumer]struct{}),
		online:      make(map[string]*presence),
		register:    make(chan *Consumer),
		unregister:  make(chan *Consumer),
		inbound:     make(chan inbound, inboundBuffer),
		store:       store,
		cleanupChan: cleanupChan,
		idleTimeout: idleTimeout,
		now:         time.Now,
		done:        make(chan struct{}),
		stopChan:    make(chan struct{}),
		logger:      logx.Component("channel").With().Str("channel", name).Logger(),
	}
}

// Stop terminates the Run loop. Safe to call more than once.
func (c *Channel) Stop() {
	c.stopOnce.Do(func() {
		c.logger.Info().Msg("Received stop signal. Stopping channel.")
		close(c.stopChan)
	})
}

// Done is closed once the channel loop has exited.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Register hands a consumer to the loop. It fails with ErrChannelClosed if the loop is gone.
func (c *Channel) Register(consumer *Consumer) error {
	select {
	case c.register <- consumer:
		return nil
	case <-c.done:
		return ErrChannelClosed
	}
}

// Unregister removes a consumer; a no-op once the loop is gone.
func (c *Channel) Unregister(consumer *Consumer) {
	select {
	case c.unregister <- consumer:
	case <-c.done:
	}
}

// Publish queues a chat line from consumer. Lines are dropped when the channel is closed.
func (c *Channel) Publish(consumer *Consumer, text string) {
	select {
	case c.inbound <- inbound{from: consumer, text: text}:
	case <-c.done:
	}
}

// Users returns the users currently online, ordered by name then id.
func (c *Channel) Users() []user.User {
	c.mu.RLock()
	defer c.mu.RUnlock()

	users := make([]user.User, 0, len(c.online))
	for _, p := range c.online {
		users = append(users, p.user)
	}

	sort.Slice(users, func(i, j int) bool {
		if users[i].Name != users[j].Name {
			return users[i].Name < users[j].Name
		}
		return users[i].ID < users[j].ID
	})

	return users
}

// Run is the channel event loop.
func (c *Channel) Run() {
	idle := time.NewTimer(c.idleTimeout)
	idleC := idle.C

	defer func() {
		idle.Stop()

		for consumer := range c.consumers {
			consumer.closeSend()
		}
		c.consumers = nil

		close(c.done)

		select {
		case c.cleanupChan <- c:
		default:
			c.logger.Warn().Msg("Hub cleanup channel full. Skipping cleanup notification.")
		}

		c.logger.Info().Msg("Channel loop finished.")
	}()

	for {
		select {
		case consumer := <-c.register:
			idle.Stop()
			idleC = nil
			c.addConsumer(consumer)

		case consumer := <-c.unregister:
			c.removeConsumer(consumer)
			if len(c.consumers) == 0 {
				idle.Reset(c.idleTimeout)
				idleC = idle.C
			}

		case in := <-c.inbound:
			c.handleInbound(in)

		case <-idleC:
			c.logger.Info().Dur("timeout", c.idleTimeout).Msg("Channel inactivity timeout reached.")
			return

		case <-c.stopChan:
			return
		}
	}
}

func (c *Channel) addConsumer(consumer *Consumer) {
	c.consumers[consumer] = struct{}{}

	c.mu.Lock()
	p, ok := c.online[consumer.user.ID]
	if !ok {
		p = &presence{user: consumer.user}
		c.online[consumer.user.ID] = p
	}
	p.connections++
	p.user = consumer.user
	c.mu.Unlock()

	c.logger.Info().
		Str("user_id", consumer.user.ID).
		Int("connections", p.connections).
		Int("total_consumers", len(c.consumers)).
		Msg("Consumer joined channel.")

	if !ok {
		c.broadcast(message.NewPresence(message.TypeJoin, consumer.user, c.now()))
	}
}

func (c *Channel) removeConsumer(consumer *Consumer) {
	if _, ok := c.consumers[consumer]; !ok {
		return
	}

	delete(c.consumers, consumer)
	consumer.closeSend()

	c.mu.Lock()
	p := c.online[consumer.user.ID]
	last := false
	if p != nil {
		p.connections--
		if p.connections <= 0 {
			delete(c.online, consumer.user.ID)
			last = true
		}
	}
	c.mu.Unlock()

	c.logger.Info().
		Str("user_id", consumer.user.ID).
		Int("total_consumers", len(c.consumers)).
		Msg("Consumer left channel.")

	if last {
		c.broadcast(message.NewPresence(message.TypeLeave, consumer.user, c.now()))
	}
}

func (c *Channel) handleInbound(in inbound) {
	if _, ok := c.consumers[in.from]; !ok {
		return
	}

	text := strings.TrimSpace(in.text)
	if text == "" {
		return
	}

	msg := message.NewText(in.from.user, c.now(), in.text)

	ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
	err := c.store.Append(ctx, c.Name, msg)
	cancel()
	if err != nil {
		c.logger.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to persist message; broadcasting anyway.")
	}

	c.broadcast(msg)
}

// broadcast fans msg out to every consumer, sender included. Consumers whose send
// queue is full are dropped.
func (c *Channel) broadcast(msg message.ChannelMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error().Err(err).Str("message_id", msg.ID).Msg("Error marshaling message for broadcast.")
		return
	}

	var slow []*Consumer
	for consumer := range c.consumers {
		if !consumer.enqueue(data) {
			slow = append(slow, consumer)
		}
	}

	for _, consumer := range slow {
		c.logger.Warn().Str("user_id", consumer.user.ID).Msg("Consumer send queue full, dropping consumer.")
		c.removeConsumer(consumer)
	}
}
