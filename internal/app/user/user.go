/*
Package user defines the identity of a chat participant as it travels over HTTP and WebSocket.
*/
package user

import "chitchat/internal/pkg/randx"

// User is a chat participant. Identity is ID; the other fields are a display snapshot.
type User struct {
	// ID is derived from name and email, see randx.UserID.
	ID string `json:"id"`

	// Name is the display name given at login.
	Name string `json:"name"`

	// Email is only used to derive ID and Avatar and is never serialized.
	Email string `json:"-"`

	// Avatar is a Gravatar URL, or empty when no email was given.
	Avatar string `json:"avatar"`
}

// New builds a User from login form values.
func New(name, email string) User {
	return User{
		ID:     randx.UserID(name, email),
		Name:   name,
		Email:  email,
		Avatar: randx.Gravatar(email),
	}
}
