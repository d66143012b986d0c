package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"chitchat/internal/pkg/auth/jwt"
	"chitchat/internal/pkg/limiter"
	"chitchat/internal/pkg/logx"
	"chitchat/internal/pkg/resp"
)

const (
	LoginRate    = 0.5
	LoginBurst   = 10
	ConnectRate  = 1
	ConnectBurst = 20
)

// Router sets up the routing table of the companion server.
// It initializes IP-based rate limiters, configures CORS, and applies global and per-route middleware.
// The limiters' cleanup goroutines stop when ctx is done.
func Router(ctx context.Context, deps *AppDeps) http.Handler {
	loginLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(LoginRate), LoginBurst)
	connectLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(ConnectRate), ConnectBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			// Non-browser clients send no Origin.
			if origin == "" {
				return true
			}

			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]string{
			"status":  "ok",
			"service": "chitchat",
		})
	})

	r.With(loginLimiter.Middleware).Post("/auth", HandleCreateSession(deps))

	r.Group(func(authed chi.Router) {
		authed.Use(jwt.Require(deps.Config.JWTSecret))

		authed.Get("/auth", HandleGetSession())
		authed.Get("/messages", HandleGetMessages(deps))
		authed.Get("/users", HandleGetUsers(deps))
		authed.With(connectLimiter.Middleware).Get("/channel", HandleWebSocket(deps, wsUpgrader))
	})

	return r
}
