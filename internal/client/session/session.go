/*
Package session is the client's top-level state machine. It decides whether the user is
logged in, loads the channel, owns the live connection and follows token changes made by
other processes.

	INIT -> CHECKING_AUTH -> UNAUTHENTICATED
	                      -> BOOTSTRAPPING -> READY
	                                       -> FAILED -> (Retry) CHECKING_AUTH
*/
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chitchat/internal/app/message"
	"chitchat/internal/app/user"
	"chitchat/internal/client/api"
	"chitchat/internal/client/auth"
	"chitchat/internal/client/bootstrap"
	"chitchat/internal/client/live"
	"chitchat/internal/client/tokenstore"
	"chitchat/internal/pkg/logx"
)

// DefaultDebounce coalesces bursts of token file events.
const DefaultDebounce = 100 * time.Millisecond

// ErrInvalidState is returned when an operation is not allowed in the current state.
var ErrInvalidState = errors.New("session: operation not allowed in current state")

// State is a Root state.
type State int

const (
	StateInit State = iota
	StateCheckingAuth
	StateUnauthenticated
	StateBootstrapping
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateCheckingAuth:
		return "CHECKING_AUTH"
	case StateUnauthenticated:
		return "UNAUTHENTICATED"
	case StateBootstrapping:
		return "BOOTSTRAPPING"
	case StateReady:
		return "READY"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Transition describes one state change.
type Transition struct {
	From    State
	To      State
	Session *api.Session
	// Err is set when To is StateFailed.
	Err error
}

// Config wires a Root to its collaborators.
type Config struct {
	Auth   *auth.Service
	Loader *bootstrap.Loader
	Tokens tokenstore.Store
	// Live is the template for every live connection; Tokens is filled in from above.
	Live live.Config
	// Progress receives bootstrap labels; may be nil.
	Progress func(label string)
	// OnEvent is installed on every live connection; may be nil.
	OnEvent func(msg message.ChannelMessage)
	// Debounce delays reacting to token changes; 0 means DefaultDebounce.
	Debounce time.Duration
}

// Root owns the session lifecycle. Operations are serialized; subscribers run on the
// goroutine performing the transition and must not call Root operations themselves.
type Root struct {
	cfg Config

	// opMu serializes operations; mu guards the fields below for readers.
	opMu sync.Mutex
	mu   sync.RWMutex

	state   State
	session *api.Session
	conn    *live.Connection
	err     error
	// token is the stored token the current state was derived from.
	token string

	subscribers []func(Transition)

	rootCtx     context.Context
	stopWatch   context.CancelFunc
	watchDone   chan struct{}
	startCalled bool

	logger zerolog.Logger
}

// New returns a Root in INIT.
func New(cfg Config) *Root {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	cfg.Live.Tokens = cfg.Tokens

	return &Root{
		cfg:    cfg,
		state:  StateInit,
		logger: logx.Component("session"),
	}
}

// OnTransition registers fn for every subsequent transition.
func (r *Root) OnTransition(fn func(Transition)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers = append(r.subscribers, fn)
}

// State returns the current state.
func (r *Root) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Session returns the active session, or nil outside READY and BOOTSTRAPPING.
func (r *Root) Session() *api.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.session
}

// Connection returns the live connection while READY.
func (r *Root) Connection() *live.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conn
}

// Err returns the failure that put the Root in FAILED.
func (r *Root) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// Start checks the stored token and begins following token changes. ctx bounds the whole
// session; cancelling it stops the watch and the live connection.
func (r *Root) Start(ctx context.Context) error {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	if r.startCalled {
		return ErrInvalidState
	}
	r.startCalled = true
	r.rootCtx = ctx

	if w, ok := r.cfg.Tokens.(tokenstore.Watcher); ok {
		watchCtx, cancel := context.WithCancel(ctx)
		changes, err := w.Watch(watchCtx)
		if err != nil {
			cancel()
			r.logger.Warn().Err(err).Msg("Token watch unavailable; changes from other processes will be missed")
		} else {
			r.stopWatch = cancel
			r.watchDone = make(chan struct{})
			go r.watch(watchCtx, changes)
		}
	}

	r.checkAuthLocked(ctx)
	return nil
}

// Login authenticates from UNAUTHENTICATED and, on success, bootstraps the channel.
// Login errors leave the Root in UNAUTHENTICATED.
func (r *Root) Login(ctx context.Context, creds auth.Credentials) error {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	if r.State() != StateUnauthenticated {
		return ErrInvalidState
	}

	session, err := r.cfg.Auth.Login(ctx, creds)
	if err != nil {
		return err
	}

	r.token, _ = r.cfg.Tokens.Get()
	r.bootstrapLocked(ctx, session)

	if err := r.Err(); err != nil && r.State() == StateFailed {
		return err
	}
	return nil
}

// Logout clears the token, closes the connection and moves to UNAUTHENTICATED.
func (r *Root) Logout() error {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	r.teardownLocked()

	err := r.cfg.Auth.Logout()
	r.token = ""
	r.transition(StateUnauthenticated, nil, nil)

	return err
}

// Retry re-runs the auth check from FAILED.
func (r *Root) Retry(ctx context.Context) error {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	if r.State() != StateFailed {
		return ErrInvalidState
	}

	r.checkAuthLocked(ctx)
	return nil
}

// Close stops the token watch and the live connection. The Root keeps its last state.
func (r *Root) Close() {
	r.opMu.Lock()
	stop, done := r.stopWatch, r.watchDone
	r.stopWatch = nil
	r.opMu.Unlock()

	if stop != nil {
		stop()
		<-done
	}

	r.opMu.Lock()
	defer r.opMu.Unlock()
	r.teardownLocked()
}

func (r *Root) checkAuthLocked(ctx context.Context) {
	r.transition(StateCheckingAuth, nil, nil)

	r.token, _ = r.cfg.Tokens.Get()

	session, err := r.cfg.Auth.Validate(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("Session validation failed")
		r.transition(StateFailed, nil, err)
		return
	}

	if session == nil {
		r.transition(StateUnauthenticated, nil, nil)
		return
	}

	r.bootstrapLocked(ctx, session)
}

func (r *Root) bootstrapLocked(ctx context.Context, session *api.Session) {
	r.transition(StateBootstrapping, session, nil)

	snap, err := r.cfg.Loader.Load(ctx, r.cfg.Progress)
	if err != nil {
		r.logger.Error().Err(err).Str("channel", session.Channel).Msg("Bootstrap failed")
		r.transition(StateFailed, nil, fmt.Errorf("load channel %s: %w", session.Channel, err))
		return
	}

	conn := live.New(r.cfg.Live)
	conn.OnEvent = r.cfg.OnEvent
	conn.Seed(snap.Messages, withSelf(snap.Users, session.User))

	r.mu.Lock()
	r.conn = conn
	r.mu.Unlock()

	r.transition(StateReady, session, nil)

	conn.Start(r.connectionContext(ctx))
}

// connectionContext outlives a single operation: the connection belongs to the session.
func (r *Root) connectionContext(opCtx context.Context) context.Context {
	if r.rootCtx != nil {
		return r.rootCtx
	}
	return context.WithoutCancel(opCtx)
}

// withSelf makes sure the session's own user is listed online.
func withSelf(users []user.User, self user.User) []user.User {
	out := make([]user.User, 0, len(users)+1)
	out = append(out, users...)
	for _, u := range users {
		if u.ID == self.ID {
			return out
		}
	}
	return append(out, self)
}

func (r *Root) teardownLocked() {
	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// transition records the new state and notifies subscribers.
func (r *Root) transition(to State, session *api.Session, err error) {
	r.mu.Lock()
	from := r.state
	r.state = to
	r.session = session
	r.err = err
	subscribers := append([]func(Transition){}, r.subscribers...)
	r.mu.Unlock()

	r.logger.Debug().Stringer("from", from).Stringer("to", to).Msg("Session transition")

	t := Transition{From: from, To: to, Session: session, Err: err}
	for _, fn := range subscribers {
		fn(t)
	}
}

// watch debounces token change notifications and re-checks auth when the stored token
// no longer matches the current state.
func (r *Root) watch(ctx context.Context, changes <-chan struct{}) {
	defer close(r.watchDone)

	timer := time.NewTimer(r.cfg.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case _, ok := <-changes:
			if !ok {
				return
			}
			timer.Reset(r.cfg.Debounce)

		case <-timer.C:
			r.onTokenChanged(ctx)
		}
	}
}

func (r *Root) onTokenChanged(ctx context.Context) {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	token, _ := r.cfg.Tokens.Get()
	if token == r.token {
		return
	}

	r.logger.Info().Bool("has_token", token != "").Msg("Token changed by another process")

	r.teardownLocked()
	r.checkAuthLocked(ctx)
}
