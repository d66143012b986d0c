/*
Package jwt issues and verifies the HS256 session tokens handed to chitchat clients.
*/
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
)

const (
	// SessionExpiration is the lifetime of a token issued by POST /auth.
	SessionExpiration = 24 * time.Hour

	// TokenIssuer identifies the issuer of the token.
	TokenIssuer = "chitchat"
)

// ErrInvalidToken is returned for tokens that parse but fail validation.
var ErrInvalidToken = errors.New("invalid or expired token")

// GenerateToken signs claims for duration. The standard claims are overwritten.
func GenerateToken(claims *Claims, secretKey string, duration time.Duration) (string, error) {
	now := time.Now()

	claims.StandardClaims = jwt.StandardClaims{
		Subject:   claims.User.ID,
		ExpiresAt: now.Add(duration).Unix(),
		IssuedAt:  now.Unix(),
		Issuer:    TokenIssuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString([]byte(secretKey))
}

// ParseToken verifies tokenString against secretKey and returns its claims.
func ParseToken(tokenString string, secretKey string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secretKey), nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid || claims.Channel == "" || claims.User.ID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
