package handler

import (
	"chitchat/internal/app/chat"
	"chitchat/internal/app/history"
	"chitchat/internal/configs"
)

// AppDeps bundles what the HTTP handlers need.
type AppDeps struct {
	Hub     *chat.Hub
	Config  *configs.AppConfig
	History history.Store
}
