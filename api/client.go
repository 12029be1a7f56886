package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	cerrors "github.com/jrsteele09/go-ctf-client/internal/errors"
	"github.com/jrsteele09/go-ctf-client/routes"
	"github.com/jrsteele09/go-ctf-client/transport"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// Client calls the training platform API through the session transport.
type Client struct {
	transport *transport.Client
	logger    zerolog.Logger
}

type Option func(*Client)

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func New(t *transport.Client, options ...Option) (*Client, error) {
	if t == nil {
		return nil, errors.New("[api New] transport is required")
	}
	c := &Client{
		transport: t,
		logger:    zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Transport returns the session transport the client sends through.
func (c *Client) Transport() *transport.Client {
	return c.transport
}

// Login exchanges credentials for an access token and stores it. The backend sets the
// refresh cookie on the same response. A 429 yields ErrRateLimited; any other failure,
// including an unrecoverable 401, yields ErrAuthenticationFailed.
func (c *Client) Login(ctx context.Context, username, password string) (*oauth2.Token, error) {
	body, err := transport.MultipartForm(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.transport.Do(ctx, routes.AuthLogin, transport.Options{Method: http.MethodPost, Body: body})
	if errors.Is(err, cerrors.ErrSessionTerminated) {
		return nil, &AuthError{Kind: ErrAuthenticationFailed, StatusCode: http.StatusUnauthorized, Message: msgLoginFailed}
	}
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.Warn().Str("username", username).Msg("Login rate limited")
		return nil, &AuthError{Kind: ErrRateLimited, StatusCode: resp.StatusCode, Message: msgRateLimited}
	case !isSuccess(resp.StatusCode):
		c.logger.Info().Str("username", username).Int("status", resp.StatusCode).Msg("Login rejected")
		return nil, &AuthError{Kind: ErrAuthenticationFailed, StatusCode: resp.StatusCode, Message: msgLoginFailed}
	}

	var tok oauth2.Token
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, &AuthError{Kind: ErrAuthenticationFailed, StatusCode: resp.StatusCode, Message: msgLoginFailed}
	}
	if err := c.transport.StoreAccessToken(tok.AccessToken); err != nil {
		return nil, &AuthError{Kind: ErrAuthenticationFailed, StatusCode: resp.StatusCode, Message: msgLoginFailed}
	}
	c.logger.Info().Str("username", username).Msg("Logged in")
	return &tok, nil
}

// Register creates an account. Failures carry the backend's detail message when present.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	body, err := transport.JSONBody(req)
	if err != nil {
		return err
	}

	resp, err := c.transport.Do(ctx, routes.AuthRegister, transport.Options{Method: http.MethodPost, Body: body})
	if errors.Is(err, cerrors.ErrSessionTerminated) {
		return &AuthError{Kind: ErrAuthenticationFailed, StatusCode: http.StatusUnauthorized, Message: msgRegistrationFailed}
	}
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		msg := detail(resp)
		if msg == "" {
			msg = msgRegistrationFailed
		}
		return &AuthError{Kind: ErrAuthenticationFailed, StatusCode: resp.StatusCode, Message: msg}
	}
	c.logger.Info().Str("username", req.Username).Msg("Registered")
	return nil
}

// Logout asks the backend to revoke the refresh cookie, ignoring any failure, then always
// forgets the local access token.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.transport.Do(ctx, routes.AuthLogout, transport.Options{Method: http.MethodPost})
	if err != nil {
		c.logger.Warn().Err(err).Msg("Logout call failed")
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
	return c.transport.ClearAccessToken()
}

// Me fetches the current user's profile.
func (c *Client) Me(ctx context.Context) (*UserProfile, error) {
	var profile UserProfile
	if err := c.getJSON(ctx, routes.AuthMe, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Leaderboard fetches the ranked player list.
func (c *Client) Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	var entries []LeaderboardEntry
	if err := c.getJSON(ctx, routes.Leaderboard, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Hello probes the backend. The body is decoded whatever the status.
func (c *Client) Hello(ctx context.Context) (*HelloResult, error) {
	resp, err := c.transport.Do(ctx, routes.Hello, transport.Options{})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	result := &HelloResult{StatusCode: resp.StatusCode}
	if err := json.NewDecoder(resp.Body).Decode(&result.Body); err != nil {
		return nil, errors.Wrap(err, "[api Hello] decode response")
	}
	return result, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.transport.Do(ctx, path, transport.Options{})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "[api] decode %s", path)
	}
	return nil
}

func isSuccess(status int) bool {
	return status >= 200 && status <= 299
}
