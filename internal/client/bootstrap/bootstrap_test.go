package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chitchat/internal/client/api"
	"chitchat/internal/client/tokenstore"
)

type labels struct {
	mu  sync.Mutex
	got []string
}

func (l *labels) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.got = append(l.got, s)
}

func (l *labels) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.got...)
}

func newLoader(t *testing.T, mux *http.ServeMux, token string) *Loader {
	t.Helper()

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := api.New(srv.URL, time.Second)
	require.NoError(t, err)

	return NewLoader(client, tokenstore.NewMemory(token))
}

func TestLoadSnapshot(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /messages", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"messages":[
			{"type":"join","from_user":{"id":"a","name":"alice"},"sent_at":"2024-01-01T00:00:00Z"},
			{"type":"message","from_user":{"id":"a","name":"alice"},"sent_at":"2024-01-01T00:00:01Z","text":"hi"}
		]}`))
	})
	mux.HandleFunc("GET /users", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"users":[{"id":"a","name":"alice","avatar":""}]}`))
	})

	var progress labels
	snap, err := newLoader(t, mux, "tok").Load(context.Background(), progress.add)
	require.NoError(t, err)

	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "hi", snap.Messages[0].Text)
	require.Len(t, snap.Users, 1)
	assert.Equal(t, "alice", snap.Users[0].Name)
	assert.Equal(t, []string{LabelLoading}, progress.list())
}

func TestLoadEmptyBodies(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /messages", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("GET /users", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	snap, err := newLoader(t, mux, "tok").Load(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, snap.Messages)
	assert.Empty(t, snap.Users)
}

func TestLoadFailsWhenUsersFail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /messages", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"messages":[]}`))
	})
	mux.HandleFunc("GET /users", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	snap, err := newLoader(t, mux, "tok").Load(context.Background(), nil)
	assert.Nil(t, snap)

	var bootErr *BootstrapError
	require.ErrorAs(t, err, &bootErr)
	assert.Equal(t, ResourceUsers, bootErr.Resource)

	var statusErr *api.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
}

func TestLoadWithoutToken(t *testing.T) {
	_, err := newLoader(t, http.NewServeMux(), "").Load(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestLoadReportsSlowProgress(t *testing.T) {
	release := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /messages", func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{"messages":[]}`))
	})
	mux.HandleFunc("GET /users", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"users":[]}`))
	})

	loader := newLoader(t, mux, "tok")
	loader.SlowAfter = 20 * time.Millisecond

	var progress labels
	done := make(chan error, 1)
	go func() {
		_, err := loader.Load(context.Background(), progress.add)
		done <- err
	}()

	require.Eventually(t, func() bool { return len(progress.list()) == 2 }, time.Second, 5*time.Millisecond)
	close(release)

	require.NoError(t, <-done)
	assert.Equal(t, []string{LabelLoading, LabelStillLoading}, progress.list())
}
