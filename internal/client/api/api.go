/*
Package api is the HTTP client of the chitchat server.

Every authenticated call carries the session token in the token query parameter, the same
way browsers must for WebSocket handshakes.
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"chitchat/internal/app/message"
	"chitchat/internal/app/user"
)

const (
	DefaultTimeout = 10 * time.Second

	// maxResponseSize bounds decoded response bodies.
	maxResponseSize = 4 << 20

	authPath     = "/auth"
	messagesPath = "/messages"
	usersPath    = "/users"
	channelPath  = "/channel"
	tokenParam   = "token"
)

// Session is the identity a token grants: who is chatting, and in which channel.
type Session struct {
	User    user.User `json:"user"`
	Channel string    `json:"channel"`
}

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	// StatusText is the reason phrase sent by the server, e.g. "Unprocessable Entity".
	StatusText string
	// Message is the server-provided explanation, if the body carried one.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server responded %d %s: %s", e.StatusCode, e.StatusText, e.Message)
	}
	return fmt.Sprintf("server responded %d %s", e.StatusCode, e.StatusText)
}

// AuthError is returned when the server rejects a login.
type AuthError struct {
	StatusError
}

func (e *AuthError) Error() string {
	return "login rejected: " + e.StatusError.Error()
}

// Client talks to one chitchat server.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// New returns a Client for the server at baseURL. A zero timeout means DefaultTimeout.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q must use http or https", baseURL)
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// endpoint resolves path against the base URL with the given query.
func (c *Client) endpoint(path string, query url.Values) *url.URL {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = query.Encode()
	return &u
}

func tokenQuery(token string) url.Values {
	return url.Values{tokenParam: {token}}
}

// ChannelURL returns the WebSocket URL of the live channel for token.
func (c *Client) ChannelURL(token string) string {
	u := c.endpoint(channelPath, tokenQuery(token))
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	return u.String()
}

// Session asks the server which identity token belongs to.
func (c *Client) Session(ctx context.Context, token string) (*Session, error) {
	var s Session
	if err := c.getJSON(ctx, c.endpoint(authPath, tokenQuery(token)), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Login posts the login form and returns the issued token. Rejections are *AuthError.
func (c *Client) Login(ctx context.Context, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(authPath, nil).String(), strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var body struct {
		Token string `json:"token"`
	}

	if err := c.do(req, &body); err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			return "", &AuthError{StatusError: *statusErr}
		}
		return "", err
	}

	if body.Token == "" {
		return "", errors.New("login response carried no token")
	}

	return body.Token, nil
}

// Messages fetches the channel history of token's session. since, if non-zero, drops
// older entries.
func (c *Client) Messages(ctx context.Context, token string, since time.Time) ([]message.ChannelMessage, error) {
	q := tokenQuery(token)
	if !since.IsZero() {
		q.Set("start_time", strconv.FormatInt(since.Unix(), 10))
	}

	var body struct {
		Messages []message.ChannelMessage `json:"messages"`
	}
	if err := c.getJSON(ctx, c.endpoint(messagesPath, q), &body); err != nil {
		return nil, err
	}

	if body.Messages == nil {
		return []message.ChannelMessage{}, nil
	}
	return body.Messages, nil
}

// Users fetches the users online in token's channel.
func (c *Client) Users(ctx context.Context, token string) ([]user.User, error) {
	var body struct {
		Users []user.User `json:"users"`
	}
	if err := c.getJSON(ctx, c.endpoint(usersPath, tokenQuery(token)), &body); err != nil {
		return nil, err
	}

	if body.Users == nil {
		return []user.User{}, nil
	}
	return body.Users, nil
}

func (c *Client) getJSON(ctx context.Context, u *url.URL, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	return c.do(req, out)
}

// do sends req and decodes a 2xx JSON body into out; other statuses become *StatusError.
func (c *Client) do(req *http.Request, out any) error {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer res.Body.Close()

	body := io.LimitReader(res.Body, maxResponseSize)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		statusErr := &StatusError{
			StatusCode: res.StatusCode,
			StatusText: statusText(res),
		}

		var errBody struct {
			Message string `json:"message"`
		}
		if json.NewDecoder(body).Decode(&errBody) == nil {
			statusErr.Message = errBody.Message
		}

		return statusErr
	}

	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}

	return nil
}

// statusText returns the reason phrase of res ("404 Not Found" -> "Not Found").
func statusText(res *http.Response) string {
	if _, text, ok := strings.Cut(res.Status, " "); ok && text != "" {
		return text
	}
	return http.StatusText(res.StatusCode)
}
