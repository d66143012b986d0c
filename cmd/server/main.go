/*
Package main is the entry point of the chitchat companion server.

It loads configuration, initializes the global logger, opens the history store, starts the
channel hub and HTTP server, and shuts everything down gracefully on SIGINT or SIGTERM.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chitchat/internal/app/chat"
	"chitchat/internal/app/db"
	"chitchat/internal/app/history"
	"chitchat/internal/configs"
	"chitchat/internal/handler"
	"chitchat/internal/pkg/logx"
)

func main() {
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Int("history_limit", cfg.HistoryLimit).
		Bool("postgres", cfg.DatabaseDSN != "").
		Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openHistory(ctx, cfg)
	if err != nil {
		logx.Fatal(err, "Failed to open message history")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logx.Error(err, "Failed to close message history")
		}
	}()

	hub := chat.NewHub(store, cfg.ChannelIdleTimeout)

	deps := &handler.AppDeps{
		Hub:     hub,
		Config:  cfg,
		History: store,
	}

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           handler.Router(ctx, deps),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("chitchat server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	hub.Shutdown()

	logx.Info("Server gracefully stopped.")
}

// openHistory picks Postgres when DATABASE_URL is set and an in-memory store otherwise.
func openHistory(ctx context.Context, cfg *configs.AppConfig) (history.Store, error) {
	if cfg.DatabaseDSN == "" {
		logx.Warn("DATABASE_URL not set; message history is kept in memory only")
		return history.NewMemory(cfg.HistoryLimit), nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	return history.NewPostgres(pool), nil
}
