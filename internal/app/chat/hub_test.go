package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chitchat/internal/app/history"
	"chitchat/internal/app/user"
)

func TestHubReusesRunningChannel(t *testing.T) {
	hub := NewHub(history.NewMemory(10), time.Minute)
	defer hub.Shutdown()

	a := hub.Channel("lobby")
	b := hub.Channel("lobby")
	assert.Same(t, a, b)
	assert.NotSame(t, a, hub.Channel("other"))
}

func TestHubUsersOfUnknownChannel(t *testing.T) {
	hub := NewHub(history.NewMemory(10), time.Minute)
	defer hub.Shutdown()

	assert.Empty(t, hub.Users("nowhere"))

	hub.mu.RLock()
	_, created := hub.channels["nowhere"]
	hub.mu.RUnlock()
	assert.False(t, created)
}

func TestHubJoinAndUsers(t *testing.T) {
	hub := NewHub(history.NewMemory(10), time.Minute)
	defer hub.Shutdown()

	c := testConsumer(hub.Channel("lobby"), user.New("alice", ""))
	require.NoError(t, hub.Join(c))

	users := hub.Users("lobby")
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Name)
}

func TestHubJoinRecreatesStoppedChannel(t *testing.T) {
	hub := NewHub(history.NewMemory(10), time.Minute)
	defer hub.Shutdown()

	stale := hub.Channel("lobby")
	stale.Stop()
	<-stale.Done()

	c := testConsumer(stale, user.New("alice", ""))
	require.NoError(t, hub.Join(c))
	assert.NotSame(t, stale, c.channel)
	assert.Len(t, hub.Users("lobby"), 1)
}

func TestHubForgetsIdleChannel(t *testing.T) {
	hub := NewHub(history.NewMemory(10), 20*time.Millisecond)
	defer hub.Shutdown()

	hub.Channel("lobby")

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		_, ok := hub.channels["lobby"]
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHubAfterShutdownRejectsJoins(t *testing.T) {
	hub := NewHub(history.NewMemory(10), time.Minute)
	hub.Channel("lobby")
	hub.Shutdown()
	hub.Shutdown()

	ch := hub.Channel("lobby")
	<-ch.Done()

	c := testConsumer(ch, user.New("alice", ""))
	assert.ErrorIs(t, hub.Join(c), ErrChannelClosed)
}
