package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"chitchat/internal/app/message"
	"chitchat/internal/client/live"
	"chitchat/internal/client/session"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Join the channel of the current session",
	Long: `Join the channel of the current session and chat on stdin/stdout.

Lines typed are sent to the channel. '/users' lists who is online, '/quit' exits.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := newClientDeps()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runChat(ctx, deps, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

// terminal serializes writes from the session, connection and input goroutines.
type terminal struct {
	mu  sync.Mutex
	out io.Writer
}

func (t *terminal) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

func (t *terminal) Notify(n live.Notification) {
	if n.Detail != "" {
		t.printf("* %s: %s\n", n.Title, n.Detail)
		return
	}
	t.printf("* %s\n", n.Title)
}

func (t *terminal) ClearAll() {}

func (t *terminal) event(msg message.ChannelMessage) {
	ts := msg.SentAt.Local().Format("15:04")

	switch msg.Type {
	case message.TypeMessage:
		t.printf("[%s] %s: %s\n", ts, msg.FromUser.Name, msg.Text)
	case message.TypeJoin:
		t.printf("[%s] -> %s joined\n", ts, msg.FromUser.Name)
	case message.TypeLeave:
		t.printf("[%s] <- %s left\n", ts, msg.FromUser.Name)
	}
}

func runChat(ctx context.Context, deps *clientDeps, in io.Reader, out io.Writer) error {
	term := &terminal{out: out}

	root := session.New(session.Config{
		Auth:   deps.auth,
		Loader: deps.loader,
		Tokens: deps.tokens,
		Live: live.Config{
			URL:      deps.api.ChannelURL,
			Notifier: term,
			Reconnect: live.ReconnectPolicy{
				MaxAttempts:     cfg.MaxReconnects,
				InitialInterval: live.DefaultInitialInterval,
				MaxInterval:     live.DefaultMaxInterval,
				StableAfter:     live.DefaultStableAfter,
			},
		},
		Progress: func(label string) { term.printf("%s\n", label) },
		OnEvent:  term.event,
	})
	defer root.Close()

	root.OnTransition(func(tr session.Transition) {
		switch tr.To {
		case session.StateUnauthenticated:
			term.printf("Not logged in. Run 'chitchat login --name <name>' in another terminal.\n")
		case session.StateFailed:
			term.printf("Could not load the channel: %v\n", tr.Err)
		case session.StateReady:
			term.printf("Joined #%s as %s.\n", tr.Session.Channel, tr.Session.User.Name)
			if conn := root.Connection(); conn != nil {
				for _, msg := range conn.Messages() {
					term.event(msg)
				}
			}
		}
	})

	if err := root.Start(ctx); err != nil {
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case line, ok := <-lines:
			if !ok {
				return nil
			}

			quit, err := handleLine(ctx, root, term, strings.TrimRight(line, "\r\n"))
			if err != nil {
				term.printf("! %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

var errNoSession = errors.New("no active session")

func handleLine(ctx context.Context, root *session.Root, term *terminal, line string) (bool, error) {
	switch strings.TrimSpace(line) {
	case "/quit":
		return true, nil

	case "/retry":
		return false, root.Retry(ctx)

	case "/users":
		conn := root.Connection()
		if conn == nil {
			return false, live.ErrNotConnected
		}
		for _, u := range conn.Users() {
			term.printf("  %s\n", u.Name)
		}
		return false, nil
	}

	conn := root.Connection()
	if conn == nil {
		return false, errNoSession
	}

	return false, conn.Send(ctx, line)
}
