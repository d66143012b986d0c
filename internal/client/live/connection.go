package live

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chitchat/internal/app/message"
	"chitchat/internal/app/user"
	"chitchat/internal/client/tokenstore"
	"chitchat/internal/pkg/logx"
)

const (
	// timeout for writing one frame.
	writeWait = 10 * time.Second

	// how long the peer may stay silent; pongs and pings extend it.
	pongWait = 60 * time.Second

	pingPeriod = (pongWait * 9) / 10

	// largest frame accepted from the server.
	maxMessageSize = 8192

	handshakeTimeout = 10 * time.Second

	sendBuffer = 64

	DefaultMaxAttempts     = 10
	DefaultInitialInterval = 500 * time.Millisecond
	DefaultMaxInterval     = 30 * time.Second
	DefaultStableAfter     = 5 * time.Second
)

var (
	// ErrNotConnected is returned by Send while the connection is not OPEN.
	ErrNotConnected = errors.New("live: not connected")

	// ErrReconnectExhausted is the reason of a terminal CLOSED after the attempt budget ran out.
	ErrReconnectExhausted = errors.New("live: reconnect attempts exhausted")

	// ErrNoToken is a dial failure: the token store is empty.
	ErrNoToken = errors.New("live: no session token")

	// ErrTextTooLong is returned by Send for lines the server would refuse.
	ErrTextTooLong = fmt.Errorf("live: text longer than %d bytes", message.MaxTextBytes)
)

// ReconnectPolicy controls what happens after the connection drops.
type ReconnectPolicy struct {
	Disabled bool
	// MaxAttempts bounds consecutive failed attempts; 0 retries forever.
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// StableAfter is how long a link must stay OPEN before the attempt count starts over.
	StableAfter time.Duration
}

// DefaultReconnectPolicy retries up to DefaultMaxAttempts times, 500ms doubling to 30s.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		MaxAttempts:     DefaultMaxAttempts,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
		StableAfter:     DefaultStableAfter,
	}
}

func (p ReconnectPolicy) stableAfter() time.Duration {
	if p.StableAfter <= 0 {
		return DefaultStableAfter
	}
	return p.StableAfter
}

func (p ReconnectPolicy) backOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	if eb.InitialInterval <= 0 {
		eb.InitialInterval = DefaultInitialInterval
	}
	eb.MaxInterval = p.MaxInterval
	if eb.MaxInterval <= 0 {
		eb.MaxInterval = DefaultMaxInterval
	}
	eb.Multiplier = 2
	eb.RandomizationFactor = 0.5
	eb.MaxElapsedTime = 0
	eb.Reset()

	if p.MaxAttempts > 0 {
		return backoff.WithMaxRetries(eb, uint64(p.MaxAttempts))
	}
	return eb
}

// Config configures a Connection.
type Config struct {
	Tokens tokenstore.Store
	// URL builds the WebSocket URL for a token; see api.Client.ChannelURL.
	URL       func(token string) string
	Notifier  Notifier
	Reconnect ReconnectPolicy
}

// link is one established WebSocket and its outbound queue.
type link struct {
	conn *websocket.Conn
	send chan []byte

	// writerDone is closed when the write pump exits.
	writerDone chan struct{}

	// mu guards detached; Send enqueues under it so nothing lands after detach.
	mu       sync.Mutex
	detached bool
}

// enqueue queues frame unless the link is detached or its writer is gone.
func (l *link) enqueue(ctx context.Context, frame []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.detached {
		return ErrNotConnected
	}

	select {
	case <-l.writerDone:
		return ErrNotConnected
	default:
	}

	select {
	case l.send <- frame:
		return nil
	case <-l.writerDone:
		return ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *link) detach() {
	l.mu.Lock()
	l.detached = true
	l.mu.Unlock()
}

// Connection is the live view of one channel. Inbound events are applied in receive order.
type Connection struct {
	cfg    Config
	dialer *websocket.Dialer

	mu       sync.RWMutex
	state    State
	err      error
	users    map[string]user.User
	messages []message.ChannelMessage
	link     *link

	// Callbacks; set before Start. OnEvent runs on the reader goroutine, OnStatus on the
	// goroutine making the transition.
	OnEvent  func(msg message.ChannelMessage)
	OnStatus func(state State)

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once

	logger zerolog.Logger
}

// New returns a Connection in the CONNECTING state. Nothing is dialed until Start.
func New(cfg Config) *Connection {
	if cfg.Notifier == nil {
		cfg.Notifier = LogNotifier{}
	}

	return &Connection{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		state:  StateConnecting,
		users:  make(map[string]user.User),
		logger: logx.Component("live"),
	}
}

// Seed replaces the local view with a bootstrap snapshot. Call it before Start.
func (c *Connection) Seed(messages []message.ChannelMessage, users []user.User) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = append([]message.ChannelMessage(nil), messages...)
	c.users = make(map[string]user.User, len(users))
	for _, u := range users {
		c.users[u.ID] = u
	}
}

// Start dials in the background and keeps the connection alive until Close or ctx ends.
func (c *Connection) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)

		c.mu.Lock()
		c.cancel = cancel
		c.mu.Unlock()

		c.wg.Add(1)
		go c.run(ctx)
	})
}

// Close stops the connection for good and waits for its goroutines.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.startOnce.Do(func() {})

		c.mu.RLock()
		cancel := c.cancel
		c.mu.RUnlock()

		if cancel == nil {
			c.setState(StateClosed, nil)
			return
		}

		cancel()
		c.wg.Wait()
	})
}

// Status returns the current state.
func (c *Connection) Status() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Err returns why the connection is terminally CLOSED, if it gave up.
func (c *Connection) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Users returns the online users ordered by name then id.
func (c *Connection) Users() []user.User {
	c.mu.RLock()
	users := make([]user.User, 0, len(c.users))
	for _, u := range c.users {
		users = append(users, u)
	}
	c.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool {
		if users[i].Name != users[j].Name {
			return users[i].Name < users[j].Name
		}
		return users[i].ID < users[j].ID
	})
	return users
}

// Messages returns the chat history in receive order.
func (c *Connection) Messages() []message.ChannelMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]message.ChannelMessage(nil), c.messages...)
}

// Send queues text for the channel. Whitespace-only text is silently dropped.
func (c *Connection) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if len(text) > message.MaxTextBytes {
		return ErrTextTooLong
	}

	c.mu.RLock()
	l, state := c.link, c.state
	c.mu.RUnlock()

	if state != StateOpen || l == nil {
		return ErrNotConnected
	}

	return l.enqueue(ctx, []byte(text))
}

// setState records a transition and drives the notifier and OnStatus.
func (c *Connection) setState(s State, err error) {
	c.mu.Lock()
	c.state = s
	c.err = err
	c.mu.Unlock()

	c.logger.Debug().Stringer("state", s).AnErr("reason", err).Msg("Connection state changed")

	if n, ok := notificationFor(s, err); ok {
		c.cfg.Notifier.Notify(n)
	} else {
		c.cfg.Notifier.ClearAll()
	}

	if c.OnStatus != nil {
		c.OnStatus(s)
	}
}

// run is the dial/reconnect loop.
func (c *Connection) run(ctx context.Context) {
	defer c.wg.Done()

	policy := c.cfg.Reconnect
	b := policy.backOff()

	for {
		c.setState(StateConnecting, nil)

		conn, err := c.dial(ctx)
		if err == nil {
			opened := time.Now()
			c.serve(ctx, conn)
			// a link that drops right after the upgrade still counts against MaxAttempts
			if time.Since(opened) >= policy.stableAfter() {
				b.Reset()
			}
		} else if ctx.Err() == nil {
			c.logger.Warn().Err(err).Msg("Dial failed")
		}

		if ctx.Err() != nil {
			c.setState(StateClosed, nil)
			return
		}

		if policy.Disabled {
			c.setState(StateClosed, nil)
			return
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			c.logger.Warn().Int("max_attempts", policy.MaxAttempts).Msg("Giving up reconnecting")
			c.setState(StateClosed, ErrReconnectExhausted)
			return
		}

		c.setState(StateClosed, nil)
		c.logger.Info().Dur("retry_in", wait).Msg("Connection lost, reconnecting")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// dial opens a WebSocket with the token currently in the store.
func (c *Connection) dial(ctx context.Context) (*websocket.Conn, error) {
	token, ok := c.cfg.Tokens.Get()
	if !ok {
		return nil, ErrNoToken
	}

	conn, res, err := c.dialer.DialContext(ctx, c.cfg.URL(token), nil)
	if res != nil && res.Body != nil {
		_ = res.Body.Close()
	}
	if err != nil {
		if res != nil {
			c.logger.Debug().Int("status", res.StatusCode).Msg("Handshake rejected")
		}
		return nil, err
	}

	return conn, nil
}

// serve runs one established connection until it drops or ctx ends.
func (c *Connection) serve(ctx context.Context, conn *websocket.Conn) {
	l := &link{
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
		writerDone: make(chan struct{}),
	}

	c.mu.Lock()
	c.link = l
	c.mu.Unlock()

	c.setState(StateOpen, nil)

	connCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(l.writerDone)
		c.writePump(connCtx, ctx, l)
	}()

	c.readPump(conn)

	l.detach()
	c.mu.Lock()
	c.link = nil
	c.mu.Unlock()

	cancel()
	<-l.writerDone
	_ = conn.Close()
}

func (c *Connection) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Connection closed unexpectedly")
			}
			return
		}

		if msgType != websocket.TextMessage {
			continue
		}

		msg, err := message.Decode(data)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Dropping malformed frame")
			continue
		}

		c.apply(msg)
	}
}

// writePump serializes writes and pings. connCtx ends with the link; rootCtx only on Close.
func (c *Connection) writePump(connCtx, rootCtx context.Context, l *link) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame := <-l.send:
			_ = l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Warn().Err(err).Msg("Error writing message")
				_ = l.conn.Close()
				return
			}

		case <-ticker.C:
			_ = l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Warn().Err(err).Msg("Error writing ping")
				_ = l.conn.Close()
				return
			}

		case <-connCtx.Done():
			if rootCtx.Err() != nil {
				c.setState(StateClosing, nil)
				closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				_ = l.conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeWait))
			} else {
				c.flush(l)
			}
			_ = l.conn.Close()
			return
		}
	}
}

// flush writes frames queued before the link was detached. Frames that cannot be
// written are reported, not silently discarded.
func (c *Connection) flush(l *link) {
	for {
		select {
		case frame := <-l.send:
			_ = l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Warn().Err(err).Int("unsent", len(l.send)+1).Msg("Dropping frames queued on a lost connection")
				return
			}
		default:
			return
		}
	}
}

// apply folds one event into the local view.
func (c *Connection) apply(msg message.ChannelMessage) {
	c.mu.Lock()
	switch msg.Type {
	case message.TypeMessage:
		c.messages = append(c.messages, msg)
	case message.TypeJoin:
		c.users[msg.FromUser.ID] = msg.FromUser
	case message.TypeLeave:
		delete(c.users, msg.FromUser.ID)
	default:
		c.mu.Unlock()
		c.logger.Debug().Str("type", string(msg.Type)).Msg("Ignoring unknown event")
		return
	}
	c.mu.Unlock()

	if c.OnEvent != nil {
		c.OnEvent(msg)
	}
}
