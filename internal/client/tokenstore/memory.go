package tokenstore

import (
	"context"
	"sync"
)

// Memory is an in-process Store. Watchers are notified of every Set.
type Memory struct {
	mu          sync.Mutex
	token       string
	subscribers map[chan struct{}]struct{}
}

// NewMemory returns a Memory store holding token ("" for none).
func NewMemory(token string) *Memory {
	return &Memory{
		token:       token,
		subscribers: make(map[chan struct{}]struct{}),
	}
}

// Get implements Store.
func (m *Memory) Get() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.token, m.token != ""
}

// Set implements Store.
func (m *Memory) Set(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = token
	for ch := range m.subscribers {
		notify(ch)
	}

	return nil
}

// Watch implements Watcher.
func (m *Memory) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	m.mu.Lock()
	m.subscribers[ch] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()

		m.mu.Lock()
		delete(m.subscribers, ch)
		close(ch)
		m.mu.Unlock()
	}()

	return ch, nil
}
