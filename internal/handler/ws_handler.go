package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"chitchat/internal/app/chat"
	"chitchat/internal/pkg/auth/jwt"
	"chitchat/internal/pkg/errs"
	"chitchat/internal/pkg/logx"
	"chitchat/internal/pkg/resp"
)

// HandleWebSocket upgrades an authenticated request and attaches the connection to the
// channel named in its token. It runs behind jwt.Require.
func HandleWebSocket(deps *AppDeps, upgrader websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := jwt.ClaimsFromContext(r)
		if claims == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already replied to the client.
			logx.Warn("Failed to upgrade connection to WebSocket", "error", err.Error())
			return
		}

		consumer := chat.NewConsumer(deps.Hub.Channel(claims.Channel), conn, claims.User)

		if err := deps.Hub.Join(consumer); err != nil {
			logx.Error(err, "Failed to join channel", "channel", claims.Channel, "user_id", claims.User.ID)
			_ = conn.Close()
			return
		}

		logx.Info("WebSocket connection established", "user_id", claims.User.ID, "channel", claims.Channel)

		go consumer.WritePump()
		consumer.ReadPump()
	}
}
