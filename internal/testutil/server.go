// Package testutil runs an in-process chitchat server for client tests.
package testutil

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"chitchat/internal/app/chat"
	"chitchat/internal/app/history"
	"chitchat/internal/configs"
	"chitchat/internal/handler"
)

// Secret signs tokens issued by servers started with NewServer.
const Secret = "test-secret"

// Server is a running companion server.
type Server struct {
	*httptest.Server
	Deps *handler.AppDeps
}

// NewServer starts a server with in-memory history; it is torn down with t.
func NewServer(t testing.TB) *Server {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	store := history.NewMemory(configs.DefaultHistoryLimit)
	hub := chat.NewHub(store, time.Minute)

	deps := &handler.AppDeps{
		Hub:     hub,
		History: store,
		Config: &configs.AppConfig{
			Environment:  "test",
			JWTSecret:    Secret,
			HistoryLimit: configs.DefaultHistoryLimit,
		},
	}

	srv := httptest.NewServer(handler.Router(ctx, deps))

	t.Cleanup(func() {
		srv.CloseClientConnections()
		srv.Close()
		hub.Shutdown()
		cancel()
	})

	return &Server{Server: srv, Deps: deps}
}
