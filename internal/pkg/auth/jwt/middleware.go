package jwt

import (
	"context"
	"net/http"
	"strings"

	"chitchat/internal/pkg/errs"
	"chitchat/internal/pkg/logx"
	"chitchat/internal/pkg/resp"
)

type contextKey string

// ContextClaimsKey stores the verified *Claims in the request context.
const ContextClaimsKey contextKey = "session_claims"

// TokenQueryParam is the query parameter clients pass their session token in.
// WebSocket handshakes cannot carry custom headers from browsers, so every endpoint uses it.
const TokenQueryParam = "token"

// tokenFromRequest reads the token from the query string, falling back to an
// "Authorization: Bearer" header.
func tokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get(TokenQueryParam); token != "" {
		return token
	}

	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}

	return ""
}

// Require rejects requests without a valid session token with 401 and injects the
// verified claims into the context otherwise.
func Require(secretKey string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := tokenFromRequest(r)
			if tokenString == "" {
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}

			claims, err := ParseToken(tokenString, secretKey)
			if err != nil {
				logx.Debug("Rejected session token", "error", err.Error())
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}

			ctx := context.WithValue(r.Context(), ContextClaimsKey, claims)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the claims injected by Require, or nil.
func ClaimsFromContext(r *http.Request) *Claims {
	claims, ok := r.Context().Value(ContextClaimsKey).(*Claims)
	if !ok {
		return nil
	}

	return claims
}
