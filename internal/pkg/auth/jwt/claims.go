package jwt

import (
	"github.com/golang-jwt/jwt"

	"chitchat/internal/app/user"
)

// Claims is the session carried by a chitchat token: who the holder is and which channel
// they joined. GET /auth returns exactly the User and Channel fields.
type Claims struct {
	// User is the participant identity; Email is not serialized and never enters the token.
	User user.User `json:"user"`

	// Channel is the channel this session is scoped to.
	Channel string `json:"channel"`

	jwt.StandardClaims
}
