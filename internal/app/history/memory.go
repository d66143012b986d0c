package history

import (
	"context"
	"sync"
	"time"

	"chitchat/internal/app/message"
)

// Memory keeps the last capacity messages of each channel in process memory.
type Memory struct {
	mu       sync.RWMutex
	capacity int
	channels map[string][]message.ChannelMessage
}

// NewMemory returns a Memory store retaining up to capacity messages per channel.
func NewMemory(capacity int) *Memory {
	return &Memory{
		capacity: normalizeLimit(capacity),
		channels: make(map[string][]message.ChannelMessage),
	}
}

// Append implements Store.
func (m *Memory) Append(_ context.Context, channel string, msg message.ChannelMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msgs := append(m.channels[channel], msg)
	if over := len(msgs) - m.capacity; over > 0 {
		msgs = append([]message.ChannelMessage(nil), msgs[over:]...)
	}
	m.channels[channel] = msgs

	return nil
}

// List implements Store.
func (m *Memory) List(_ context.Context, channel string, since time.Time, limit int) ([]message.ChannelMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit = normalizeLimit(limit)

	out := make([]message.ChannelMessage, 0, limit)
	for _, msg := range m.channels[channel] {
		if !since.IsZero() && msg.SentAt.Before(since) {
			continue
		}
		out = append(out, msg)
	}

	if len(out) > limit {
		out = out[len(out)-limit:]
	}

	return out, nil
}

// Close implements Store.
func (m *Memory) Close() error {
	return nil
}
