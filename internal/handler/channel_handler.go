package handler

import (
	"net/http"
	"strconv"
	"time"

	"chitchat/internal/app/message"
	"chitchat/internal/app/user"
	"chitchat/internal/pkg/auth/jwt"
	"chitchat/internal/pkg/errs"
	"chitchat/internal/pkg/logx"
	"chitchat/internal/pkg/resp"
)

// MessagesResponse is the body of GET /messages.
type MessagesResponse struct {
	Messages []message.ChannelMessage `json:"messages"`
}

// UsersResponse is the body of GET /users.
type UsersResponse struct {
	Users []user.User `json:"users"`
}

// HandleGetMessages returns the chat history of the token's channel, oldest first.
// An optional start_time query parameter (unix seconds) drops older entries.
func HandleGetMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := jwt.ClaimsFromContext(r)
		if claims == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var since time.Time
		if raw := r.URL.Query().Get("start_time"); raw != "" {
			unix, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
				return
			}
			since = time.Unix(unix, 0)
		}

		messages, err := deps.History.List(r.Context(), claims.Channel, since, deps.Config.HistoryLimit)
		if err != nil {
			logx.Error(err, "failed to list channel history", "channel", claims.Channel)
			resp.RespondError(w, r, errs.NewError(errs.ErrHistoryUnavailable))
			return
		}

		if messages == nil {
			messages = []message.ChannelMessage{}
		}

		resp.RespondSuccess(w, r, MessagesResponse{Messages: messages})
	}
}

// HandleGetUsers returns the users currently connected to the token's channel.
func HandleGetUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := jwt.ClaimsFromContext(r)
		if claims == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		resp.RespondSuccess(w, r, UsersResponse{Users: deps.Hub.Users(claims.Channel)})
	}
}
