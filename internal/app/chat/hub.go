package chat

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chitchat/internal/app/history"
	"chitchat/internal/app/user"
	"chitchat/internal/pkg/logx"
)

// Hub owns every active Channel, creating them on first use and forgetting them once
// their loop exits.
type Hub struct {
	channels map[string]*Channel

	store       history.Store
	idleTimeout time.Duration

	// mu protects channels and closed.
	mu     sync.RWMutex
	closed bool

	cleanup chan *Channel
	quit    chan struct{}
	wg      sync.WaitGroup

	logger zerolog.Logger
}

// NewHub creates a Hub whose channels persist chat lines to store.
func NewHub(store history.Store, idleTimeout time.Duration) *Hub {
	h := &Hub{
		channels:    make(map[string]*Channel),
		store:       store,
		idleTimeout: idleTimeout,
		cleanup:     make(chan *Channel, 16),
		quit:        make(chan struct{}),
		logger:      logx.Component("hub"),
	}

	h.wg.Add(1)
	go h.runCleanupLoop()

	return h
}

func (h *Hub) runCleanupLoop() {
	defer h.wg.Done()

	for {
		select {
		case ch := <-h.cleanup:
			h.deleteChannel(ch)
		case <-h.quit:
			return
		}
	}
}

// deleteChannel forgets ch unless it was already replaced by a newer instance.
func (h *Hub) deleteChannel(ch *Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.channels[ch.Name]; ok && current == ch {
		delete(h.channels, ch.Name)
		h.logger.Info().Str("channel", ch.Name).Msg("Channel removed.")
	}
}

// Channel returns the running channel called name, starting it if needed. After Shutdown
// the returned channel is already stopped, so registering with it fails.
func (h *Hub) Channel(name string) *Channel {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		ch := NewChannel(name, h.store, h.cleanup, h.idleTimeout)
		ch.Stop()
		close(ch.done)
		return ch
	}

	if ch, ok := h.channels[name]; ok {
		select {
		case <-ch.Done():
		default:
			return ch
		}
	}

	ch := NewChannel(name, h.store, h.cleanup, h.idleTimeout)
	h.channels[name] = ch
	go ch.Run()

	h.logger.Info().Str("channel", name).Msg("Channel created.")
	return ch
}

// Join registers consumer with its channel, retrying once if the channel stopped between
// lookup and registration.
func (h *Hub) Join(consumer *Consumer) error {
	err := consumer.channel.Register(consumer)
	if err == nil {
		return nil
	}

	consumer.channel = h.Channel(consumer.channel.Name)
	return consumer.channel.Register(consumer)
}

// Users returns the users online in channel name without creating it.
func (h *Hub) Users(name string) []user.User {
	h.mu.RLock()
	ch, ok := h.channels[name]
	h.mu.RUnlock()

	if !ok {
		return []user.User{}
	}

	return ch.Users()
}

// Shutdown stops every channel and waits for the cleanup loop to drain.
func (h *Hub) Shutdown() {
	h.logger.Info().Msg("Shutting down hub...")

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	channels := h.channels
	h.channels = make(map[string]*Channel)
	h.mu.Unlock()

	for _, ch := range channels {
		ch.Stop()
		<-ch.Done()
	}

	close(h.quit)
	h.wg.Wait()

	h.logger.Info().Msg("Hub shutdown complete.")
}
