/*
Package auth establishes and validates the client's session against the chitchat server.
*/
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"chitchat/internal/client/api"
	"chitchat/internal/client/tokenstore"
	"chitchat/internal/pkg/logx"
)

// DefaultChannel is joined when a login names no channel.
const DefaultChannel = "lobby"

var (
	// ErrNameRequired is returned by Login for a blank name; no request is made.
	ErrNameRequired = errors.New("name is required")

	// ErrSessionRejected means login issued a token the server then refused to validate.
	ErrSessionRejected = errors.New("session rejected after login")
)

// Credentials are the login form fields. Email is optional.
type Credentials struct {
	Name    string
	Email   string
	Channel string
}

// Service validates the stored token and logs users in and out.
type Service struct {
	api    *api.Client
	tokens tokenstore.Store
}

// NewService returns a Service using tokens for persistence.
func NewService(client *api.Client, tokens tokenstore.Store) *Service {
	return &Service{api: client, tokens: tokens}
}

// Validate resolves the stored token into a Session. It returns (nil, nil) when no token
// is stored or the server rejects it; transport and decode failures are errors.
func (s *Service) Validate(ctx context.Context) (*api.Session, error) {
	token, ok := s.tokens.Get()
	if !ok {
		return nil, nil
	}

	session, err := s.api.Session(ctx, token)
	if err != nil {
		var statusErr *api.StatusError
		if errors.As(err, &statusErr) {
			logx.Debug("Stored token rejected", "status", statusErr.StatusCode)
			return nil, nil
		}
		return nil, fmt.Errorf("validate session: %w", err)
	}

	return session, nil
}

// Login submits creds, stores the issued token and returns the validated Session.
// A server rejection is returned as *api.AuthError.
func (s *Service) Login(ctx context.Context, creds Credentials) (*api.Session, error) {
	name := strings.TrimSpace(creds.Name)
	if name == "" {
		return nil, ErrNameRequired
	}

	channel := strings.TrimSpace(creds.Channel)
	if channel == "" {
		channel = DefaultChannel
	}

	form := url.Values{
		"name":    {name},
		"channel": {channel},
	}
	if email := strings.TrimSpace(creds.Email); email != "" {
		form.Set("email", email)
	}

	token, err := s.api.Login(ctx, form)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.Set(token); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}

	session, err := s.Validate(ctx)
	if err == nil && session == nil {
		err = ErrSessionRejected
	}
	if err != nil {
		if clearErr := s.tokens.Set(""); clearErr != nil {
			logx.Warn("Failed to clear token after rejected login", "error", clearErr)
		}
		return nil, err
	}

	logx.Info("Logged in", "user", session.User.Name, "channel", session.Channel)
	return session, nil
}

// Logout forgets the stored token.
func (s *Service) Logout() error {
	if err := s.tokens.Set(""); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}
