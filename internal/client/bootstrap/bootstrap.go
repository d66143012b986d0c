/*
Package bootstrap fetches the initial channel state (message history and online users)
before the live connection takes over.
*/
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"chitchat/internal/app/message"
	"chitchat/internal/app/user"
	"chitchat/internal/client/api"
	"chitchat/internal/client/tokenstore"
)

const (
	DefaultSlowAfter = 2 * time.Second

	LabelLoading      = "Loading messages.."
	LabelStillLoading = "Still loading.."

	ResourceToken    = "token"
	ResourceMessages = "messages"
	ResourceUsers    = "users"
)

// ErrNoToken is wrapped in a BootstrapError when there is no session to load for.
var ErrNoToken = errors.New("no session token")

// Snapshot is the channel state at bootstrap time. Messages holds only chat lines, oldest first.
type Snapshot struct {
	Messages []message.ChannelMessage
	Users    []user.User
}

// BootstrapError names the resource that could not be loaded.
type BootstrapError struct {
	Resource string
	Err      error
}

func (e *BootstrapError) Error() string {
	return fmt.Sprintf("bootstrap %s: %v", e.Resource, e.Err)
}

func (e *BootstrapError) Unwrap() error {
	return e.Err
}

// Loader loads a Snapshot for the stored session.
type Loader struct {
	api    *api.Client
	tokens tokenstore.Store

	// SlowAfter is how long Load waits before reporting LabelStillLoading.
	SlowAfter time.Duration
}

// NewLoader returns a Loader with DefaultSlowAfter.
func NewLoader(client *api.Client, tokens tokenstore.Store) *Loader {
	return &Loader{
		api:       client,
		tokens:    tokens,
		SlowAfter: DefaultSlowAfter,
	}
}

// Load fetches history and online users concurrently. If either request fails the whole
// load fails with a *BootstrapError. progress, if not nil, receives advisory labels.
func (l *Loader) Load(ctx context.Context, progress func(label string)) (*Snapshot, error) {
	if progress == nil {
		progress = func(string) {}
	}

	token, ok := l.tokens.Get()
	if !ok {
		return nil, &BootstrapError{Resource: ResourceToken, Err: ErrNoToken}
	}

	progress(LabelLoading)

	slowAfter := l.SlowAfter
	if slowAfter <= 0 {
		slowAfter = DefaultSlowAfter
	}
	slow := time.AfterFunc(slowAfter, func() { progress(LabelStillLoading) })
	defer slow.Stop()

	var (
		history []message.ChannelMessage
		users   []user.User
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		msgs, err := l.api.Messages(gctx, token, time.Time{})
		if err != nil {
			return &BootstrapError{Resource: ResourceMessages, Err: err}
		}
		history = chatLines(msgs)
		return nil
	})

	g.Go(func() error {
		online, err := l.api.Users(gctx, token)
		if err != nil {
			return &BootstrapError{Resource: ResourceUsers, Err: err}
		}
		users = online
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Snapshot{Messages: history, Users: users}, nil
}

// chatLines keeps the message entries of a history response.
func chatLines(msgs []message.ChannelMessage) []message.ChannelMessage {
	out := make([]message.ChannelMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Type == message.TypeMessage {
			out = append(out, m)
		}
	}
	return out
}
