package live

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chitchat/internal/app/message"
	"chitchat/internal/app/user"
	"chitchat/internal/client/api"
	"chitchat/internal/client/auth"
	"chitchat/internal/client/tokenstore"
	"chitchat/internal/testutil"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []Notification
	clears int
}

func (r *recordingNotifier) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, n)
}

func (r *recordingNotifier) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clears++
}

func (r *recordingNotifier) last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return Notification{}, false
	}
	return r.events[len(r.events)-1], true
}

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (s *stateLog) add(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, st)
}

func (s *stateLog) list() []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]State(nil), s.states...)
}

func fastPolicy(attempts int) ReconnectPolicy {
	return ReconnectPolicy{
		MaxAttempts:     attempts,
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     20 * time.Millisecond,
	}
}

func wsURL(base string) func(string) string {
	return func(token string) string {
		return "ws" + strings.TrimPrefix(base, "http") + "/channel?token=" + token
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 3*time.Second, 10*time.Millisecond)
}

func frame(typ message.Type, u user.User, text string) message.ChannelMessage {
	return message.ChannelMessage{Type: typ, FromUser: u, SentAt: time.Now().UTC(), Text: text}
}

func TestApplySequence(t *testing.T) {
	c := New(Config{Notifier: &recordingNotifier{}})
	a := user.User{ID: "a", Name: "A"}

	c.apply(frame(message.TypeJoin, a, ""))
	c.apply(frame(message.TypeMessage, a, "m1"))
	c.apply(frame(message.TypeLeave, a, ""))
	c.apply(frame(message.TypeMessage, a, "m2"))

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].Text)
	assert.Equal(t, "m2", msgs[1].Text)
	assert.Empty(t, c.Users())
}

func TestApplyJoinIdempotentLeaveAbsentNoop(t *testing.T) {
	c := New(Config{Notifier: &recordingNotifier{}})
	a := user.User{ID: "a", Name: "A"}
	b := user.User{ID: "b", Name: "B"}

	c.apply(frame(message.TypeJoin, a, ""))
	c.apply(frame(message.TypeJoin, a, ""))
	assert.Equal(t, []user.User{a}, c.Users())

	c.apply(frame(message.TypeLeave, b, ""))
	assert.Equal(t, []user.User{a}, c.Users())

	c.apply(frame("typing", a, ""))
	assert.Empty(t, c.Messages())
}

func TestSeed(t *testing.T) {
	c := New(Config{Notifier: &recordingNotifier{}})
	a := user.User{ID: "a", Name: "A"}

	c.Seed([]message.ChannelMessage{frame(message.TypeMessage, a, "old")}, []user.User{a, a})

	assert.Len(t, c.Messages(), 1)
	assert.Equal(t, []user.User{a}, c.Users())
}

func TestSendRequiresOpen(t *testing.T) {
	c := New(Config{Notifier: &recordingNotifier{}})

	assert.NoError(t, c.Send(context.Background(), "   "))
	assert.ErrorIs(t, c.Send(context.Background(), "hi"), ErrNotConnected)
}

func TestNotificationMapping(t *testing.T) {
	n, ok := notificationFor(StateConnecting, nil)
	require.True(t, ok)
	assert.Equal(t, LevelLoading, n.Level)
	assert.Equal(t, "Connecting", n.Title)
	assert.False(t, n.Persistent)

	n, ok = notificationFor(StateClosing, nil)
	require.True(t, ok)
	assert.Equal(t, LevelLoading, n.Level)

	n, ok = notificationFor(StateClosed, ErrReconnectExhausted)
	require.True(t, ok)
	assert.Equal(t, LevelError, n.Level)
	assert.True(t, n.Persistent)
	assert.Equal(t, ErrReconnectExhausted.Error(), n.Detail)

	_, ok = notificationFor(StateOpen, nil)
	assert.False(t, ok)
}

func TestConnectSendReceive(t *testing.T) {
	srv := testutil.NewServer(t)

	client, err := api.New(srv.URL, time.Second)
	require.NoError(t, err)

	tokens := tokenstore.NewMemory("")
	session, err := auth.NewService(client, tokens).Login(context.Background(), auth.Credentials{Name: "alice"})
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	c := New(Config{
		Tokens:    tokens,
		URL:       client.ChannelURL,
		Notifier:  notifier,
		Reconnect: fastPolicy(3),
	})

	var events atomic.Int32
	c.OnEvent = func(message.ChannelMessage) { events.Add(1) }

	c.Start(context.Background())
	defer c.Close()

	eventually(t, func() bool { return c.Status() == StateOpen })
	eventually(t, func() bool { return len(c.Users()) == 1 })
	assert.Equal(t, session.User.ID, c.Users()[0].ID)

	require.NoError(t, c.Send(context.Background(), " \t"))
	require.NoError(t, c.Send(context.Background(), "hello"))

	eventually(t, func() bool { return len(c.Messages()) == 1 })
	assert.Equal(t, "hello", c.Messages()[0].Text)
	assert.Equal(t, int32(2), events.Load())

	notifier.mu.Lock()
	assert.GreaterOrEqual(t, notifier.clears, 1)
	notifier.mu.Unlock()
}

// scriptedServer upgrades every request and hands the connection to handle.
func scriptedServer(t *testing.T, handle func(n int, conn *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()

	var count atomic.Int32
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handle(int(count.Add(1)), conn, r)
	}))
	t.Cleanup(func() {
		srv.CloseClientConnections()
		srv.Close()
	})

	return srv
}

func TestMalformedFramesDropped(t *testing.T) {
	srv := scriptedServer(t, func(_ int, conn *websocket.Conn, _ *http.Request) {
		defer conn.Close()
		for _, f := range []string{
			`not json`,
			`{"text":"no type"}`,
			`{"type":"message","text":"no user"}`,
			`{"type":"message","from_user":{"id":"a","name":"A"},"sent_at":"2024-01-01T00:00:00Z","text":"ok"}`,
		} {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(f))
		}
		_, _, _ = conn.ReadMessage()
	})

	c := New(Config{
		Tokens:    tokenstore.NewMemory("tok"),
		URL:       wsURL(srv.URL),
		Notifier:  &recordingNotifier{},
		Reconnect: ReconnectPolicy{Disabled: true},
	})
	c.Start(context.Background())
	defer c.Close()

	eventually(t, func() bool { return len(c.Messages()) == 1 })
	assert.Equal(t, "ok", c.Messages()[0].Text)
}

func TestReconnectAfterDropRereadsToken(t *testing.T) {
	var (
		mu     sync.Mutex
		tokens []string
	)

	store := tokenstore.NewMemory("first")

	srv := scriptedServer(t, func(n int, conn *websocket.Conn, r *http.Request) {
		mu.Lock()
		tokens = append(tokens, r.URL.Query().Get("token"))
		mu.Unlock()

		if n == 1 {
			_ = store.Set("second")
			_ = conn.Close()
			return
		}

		defer conn.Close()
		_, _, _ = conn.ReadMessage()
	})

	states := &stateLog{}
	c := New(Config{
		Tokens:    store,
		URL:       wsURL(srv.URL),
		Notifier:  &recordingNotifier{},
		Reconnect: fastPolicy(5),
	})
	c.OnStatus = states.add
	c.Start(context.Background())
	defer c.Close()

	eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(tokens) == 2
	})
	eventually(t, func() bool { return c.Status() == StateOpen })

	mu.Lock()
	assert.Equal(t, []string{"first", "second"}, tokens)
	mu.Unlock()

	assert.Equal(t, []State{StateConnecting, StateOpen, StateClosed, StateConnecting, StateOpen}, states.list())
}

func TestReconnectBudgetExhausted(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	notifier := &recordingNotifier{}
	c := New(Config{
		Tokens:    tokenstore.NewMemory("tok"),
		URL:       wsURL(base),
		Notifier:  notifier,
		Reconnect: fastPolicy(2),
	})
	c.Start(context.Background())
	defer c.Close()

	eventually(t, func() bool { return c.Err() != nil })
	assert.Equal(t, StateClosed, c.Status())
	assert.ErrorIs(t, c.Err(), ErrReconnectExhausted)

	last, ok := notifier.last()
	require.True(t, ok)
	assert.Equal(t, StateClosed, last.ID)
	assert.True(t, last.Persistent)
	assert.Equal(t, LevelError, last.Level)
}

func TestCloseStopsForGood(t *testing.T) {
	var dials atomic.Int32
	srv := scriptedServer(t, func(_ int, conn *websocket.Conn, _ *http.Request) {
		dials.Add(1)
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	states := &stateLog{}
	c := New(Config{
		Tokens:    tokenstore.NewMemory("tok"),
		URL:       wsURL(srv.URL),
		Notifier:  &recordingNotifier{},
		Reconnect: fastPolicy(0),
	})
	c.OnStatus = states.add
	c.Start(context.Background())

	eventually(t, func() bool { return c.Status() == StateOpen })

	c.Close()
	c.Close()

	assert.Equal(t, StateClosed, c.Status())
	assert.NoError(t, c.Err())
	assert.ErrorIs(t, c.Send(context.Background(), "late"), ErrNotConnected)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), dials.Load())
	assert.Equal(t, []State{StateConnecting, StateOpen, StateClosing, StateClosed}, states.list())
}

func TestCloseBeforeStart(t *testing.T) {
	c := New(Config{Notifier: &recordingNotifier{}})
	c.Close()
	c.Start(context.Background())

	assert.Equal(t, StateClosed, c.Status())
}

func TestLinkDroppedAfterUpgradeUsesUpBudget(t *testing.T) {
	var dials atomic.Int32
	srv := scriptedServer(t, func(_ int, conn *websocket.Conn, _ *http.Request) {
		dials.Add(1)
		_ = conn.Close()
	})

	c := New(Config{
		Tokens:    tokenstore.NewMemory("tok"),
		URL:       wsURL(srv.URL),
		Notifier:  &recordingNotifier{},
		Reconnect: fastPolicy(2),
	})
	c.Start(context.Background())
	defer c.Close()

	eventually(t, func() bool { return c.Err() != nil })
	assert.ErrorIs(t, c.Err(), ErrReconnectExhausted)
	assert.Equal(t, StateClosed, c.Status())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(3), dials.Load())
}

func TestStableLinkResetsBudget(t *testing.T) {
	srv := scriptedServer(t, func(n int, conn *websocket.Conn, _ *http.Request) {
		defer conn.Close()
		if n <= 3 {
			time.Sleep(40 * time.Millisecond)
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	policy := fastPolicy(1)
	policy.StableAfter = 20 * time.Millisecond

	var dials atomic.Int32
	c := New(Config{
		Tokens: tokenstore.NewMemory("tok"),
		URL: func(token string) string {
			dials.Add(1)
			return wsURL(srv.URL)(token)
		},
		Notifier:  &recordingNotifier{},
		Reconnect: policy,
	})
	c.Start(context.Background())
	defer c.Close()

	eventually(t, func() bool { return dials.Load() == 4 && c.Status() == StateOpen })
	assert.NoError(t, c.Err())
}

func TestSendRejectsOversizedText(t *testing.T) {
	c := New(Config{Notifier: &recordingNotifier{}})

	assert.ErrorIs(t, c.Send(context.Background(), strings.Repeat("a", message.MaxTextBytes+1)), ErrTextTooLong)
	assert.ErrorIs(t, c.Send(context.Background(), strings.Repeat("a", message.MaxTextBytes)), ErrNotConnected)
}

func TestDetachedLinkRefusesFrames(t *testing.T) {
	l := &link{send: make(chan []byte, 2), writerDone: make(chan struct{})}

	require.NoError(t, l.enqueue(context.Background(), []byte("a")))
	l.detach()
	assert.ErrorIs(t, l.enqueue(context.Background(), []byte("b")), ErrNotConnected)
	assert.Len(t, l.send, 1)
}

func TestEnqueueFailsOnceWriterIsGone(t *testing.T) {
	l := &link{send: make(chan []byte, 1), writerDone: make(chan struct{})}
	close(l.writerDone)

	assert.ErrorIs(t, l.enqueue(context.Background(), []byte("a")), ErrNotConnected)
	assert.Empty(t, l.send)
}
