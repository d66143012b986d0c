/*
Package handler provides the HTTP handlers and routing of the chitchat companion server.

This file handles session tokens: POST /auth issues one for a name/email/channel form and
GET /auth echoes the identity bound to a valid token.
*/
package handler

import (
	"net/http"
	"net/mail"
	"strings"

	"chitchat/internal/app/user"
	"chitchat/internal/pkg/auth/jwt"
	"chitchat/internal/pkg/errs"
	"chitchat/internal/pkg/logx"
	"chitchat/internal/pkg/randx"
	"chitchat/internal/pkg/req"
	"chitchat/internal/pkg/resp"
)

// LoginInput is the form accepted by POST /auth.
type LoginInput struct {
	Name    string
	Email   string
	Channel string
}

// TokenResponse is the body of a successful POST /auth.
type TokenResponse struct {
	Token string `json:"token"`
}

// SessionResponse is the body of a successful GET /auth.
type SessionResponse struct {
	User    user.User `json:"user"`
	Channel string    `json:"channel"`
}

// validate checks the form in the order clients surface errors: name, channel, email.
func (in *LoginInput) validate() *errs.CustomError {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Channel = strings.TrimSpace(in.Channel)

	if in.Name == "" {
		return errs.NewError(errs.ErrNameBlank)
	}

	if in.Channel == "" {
		return errs.NewError(errs.ErrChannelBlank)
	}

	if !randx.IsValidChannel(in.Channel) {
		return errs.NewError(errs.ErrChannelNameInvalid, randx.ChannelNameMaxLength)
	}

	if in.Email != "" {
		if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
			return errs.NewError(errs.ErrEmailInvalid)
		}
	}

	return nil
}

// HandleCreateSession validates the login form and issues a signed session token.
func HandleCreateSession(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if customErr := req.ParseForm(w, r); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		input := LoginInput{
			Name:    r.PostFormValue("name"),
			Email:   r.PostFormValue("email"),
			Channel: r.PostFormValue("channel"),
		}

		if customErr := input.validate(); customErr != nil {
			logx.Debug("login rejected", "code", customErr.Code)
			resp.RespondError(w, r, customErr)
			return
		}

		claims := &jwt.Claims{
			User:    user.New(input.Name, input.Email),
			Channel: input.Channel,
		}

		tokenString, err := jwt.GenerateToken(claims, deps.Config.JWTSecret, jwt.SessionExpiration)
		if err != nil {
			logx.Error(err, "failed to generate session token")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		logx.Info("session issued", "user_id", claims.User.ID, "channel", claims.Channel)

		resp.RespondSuccess(w, r, TokenResponse{Token: tokenString})
	}
}

// HandleGetSession returns the identity bound to the caller's token. It runs behind jwt.Require.
func HandleGetSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := jwt.ClaimsFromContext(r)
		if claims == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		resp.RespondSuccess(w, r, SessionResponse{
			User:    claims.User,
			Channel: claims.Channel,
		})
	}
}
