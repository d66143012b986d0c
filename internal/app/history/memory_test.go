package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chitchat/internal/app/message"
	"chitchat/internal/app/user"
)

func line(i int, at time.Time) message.ChannelMessage {
	return message.NewText(user.User{ID: "u", Name: "u"}, at, fmt.Sprintf("m%d", i))
}

func texts(msgs []message.ChannelMessage) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Text)
	}
	return out
}

func TestMemoryListIsOldestFirstAndScopedByChannel(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(10)
	base := time.Now()

	for i := range 3 {
		require.NoError(t, store.Append(ctx, "lobby", line(i, base.Add(time.Duration(i)*time.Second))))
	}
	require.NoError(t, store.Append(ctx, "other", line(99, base)))

	got, err := store.List(ctx, "lobby", time.Time{}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"m0", "m1", "m2"}, texts(got))

	empty, err := store.List(ctx, "nowhere", time.Time{}, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryCapacityDropsOldest(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(2)
	base := time.Now()

	for i := range 4 {
		require.NoError(t, store.Append(ctx, "lobby", line(i, base)))
	}

	got, err := store.List(ctx, "lobby", time.Time{}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"m2", "m3"}, texts(got))
}

func TestMemoryListSinceAndLimit(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(10)
	base := time.Now()

	for i := range 5 {
		require.NoError(t, store.Append(ctx, "lobby", line(i, base.Add(time.Duration(i)*time.Minute))))
	}

	got, err := store.List(ctx, "lobby", base.Add(2*time.Minute), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"m2", "m3", "m4"}, texts(got))

	got, err = store.List(ctx, "lobby", time.Time{}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"m3", "m4"}, texts(got))
}
