package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	cerrors "github.com/jrsteele09/go-ctf-client/internal/errors"
	"github.com/jrsteele09/go-ctf-client/routes"
	"github.com/jrsteele09/go-ctf-client/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	defaultContentType = "application/json"
	defaultUserAgent   = "ctfclient/0.1"
	defaultTimeout     = 30 * time.Second
	refreshFlightKey   = "refresh"
)

var (
	// ErrSessionTerminated is returned when a 401 could not be recovered by refreshing.
	// The access token has already been removed from the store when it is returned.
	ErrSessionTerminated = cerrors.ErrSessionTerminated
	// ErrTransportFault wraps network-level failures.
	ErrTransportFault = cerrors.ErrTransportFault
	// ErrAuthorizationHeaderOwned is returned when the caller tries to set Authorization itself.
	ErrAuthorizationHeaderOwned = cerrors.ErrAuthorizationHeaderOwned
)

// Options describe a single logical API call.
type Options struct {
	Method  string      // defaults to GET
	Body    *Payload    // nil for no body
	Headers http.Header // must not contain Authorization
}

// PendingRequest is the transport's description of one outbound attempt. It is handed to
// the request observer just before the attempt is sent.
type PendingRequest struct {
	Method             string
	Path               string
	Header             http.Header // headers built by the transport, excluding cookies
	Body               *Payload
	IncludeCredentials bool
	Refresh            bool // true for the refresh call
	Retry              bool // true for the resend after a successful refresh
}

// StatusError reports an unexpected HTTP status.
type StatusError struct {
	StatusCode int
	Status     string
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// Client is the session transport. It attaches the stored access token to every request and
// recovers from a single 401 by refreshing through the cookie-carried refresh credential.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	store        token.Store
	jar          http.CookieJar
	logger       zerolog.Logger
	userAgent    string
	onTerminated func()
	observer     func(PendingRequest)
	singleFlight bool
	refreshGroup singleflight.Group
	newRequestID func() string
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its Jar should be nil; the transport
// attaches cookies itself.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithCookieJar sets the jar that holds the ambient credentials (the refresh cookie).
func WithCookieJar(jar http.CookieJar) Option {
	return func(cl *Client) {
		cl.jar = jar
	}
}

// WithSessionTerminated registers the callback invoked after an unrecoverable refresh failure.
func WithSessionTerminated(fn func()) Option {
	return func(cl *Client) {
		cl.onTerminated = fn
	}
}

// WithRequestObserver registers a hook called before every outbound attempt.
func WithRequestObserver(fn func(PendingRequest)) Option {
	return func(cl *Client) {
		cl.observer = fn
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

func WithUserAgent(ua string) Option {
	return func(cl *Client) {
		cl.userAgent = ua
	}
}

// WithSingleFlightRefresh collapses refreshes triggered by concurrent 401s into one call.
// Without it every call that sees a 401 performs its own refresh.
func WithSingleFlightRefresh() Option {
	return func(cl *Client) {
		cl.singleFlight = true
	}
}

// WithRequestIDFunc overrides the X-Request-ID generator.
func WithRequestIDFunc(fn func() string) Option {
	return func(cl *Client) {
		cl.newRequestID = fn
	}
}

// New creates a session transport for the backend at baseURL.
func New(baseURL string, store token.Store, options ...Option) (*Client, error) {
	if store == nil {
		return nil, errors.New("[transport New] token store is required")
	}
	normalized, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL:      normalized,
		store:        store,
		logger:       zerolog.Nop(),
		userAgent:    defaultUserAgent,
		newRequestID: func() string { return uuid.NewString() },
	}
	for _, opt := range options {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return c, nil
}

// BaseURL returns the normalized backend origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Store returns the token store the transport reads and writes.
func (c *Client) Store() token.Store {
	return c.store
}

// StoreAccessToken records a freshly issued access token, e.g. after login.
func (c *Client) StoreAccessToken(accessToken string) error {
	if accessToken == "" {
		return errors.New("[transport StoreAccessToken] empty access token")
	}
	return errors.Wrap(c.store.Set(token.AccessTokenKey, accessToken), "[transport StoreAccessToken]")
}

// ClearAccessToken forgets the access token, e.g. on logout.
func (c *Client) ClearAccessToken() error {
	return errors.Wrap(c.store.Delete(token.AccessTokenKey), "[transport ClearAccessToken]")
}

// Do sends an authenticated request to path. Any response other than 401 is returned as is.
// A 401 triggers exactly one refresh: on success the request is resent once and that
// response is returned whatever its status; on failure the access token is deleted, the
// session-terminated callback runs and ErrSessionTerminated is returned. Network failures
// of the original request are returned wrapped in ErrTransportFault and never refresh.
// A refresh cut short by ctx returns the context error and leaves the session in place.
// The caller closes the returned response body.
func (c *Client) Do(ctx context.Context, path string, opts Options) (*http.Response, error) {
	for k := range opts.Headers {
		if http.CanonicalHeaderKey(k) == "Authorization" {
			return nil, ErrAuthorizationHeaderOwned
		}
	}

	accessToken, _, err := token.AccessToken(c.store)
	if err != nil {
		return nil, errors.Wrap(err, "[transport Do] read access token")
	}

	requestID := c.newRequestID()
	resp, err := c.send(ctx, c.pending(path, opts, accessToken, requestID))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransportFault, err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	discard(resp)

	c.logger.Debug().Str("path", path).Str("request_id", requestID).Msg("Access token rejected, refreshing")
	newToken, err := c.refresh(ctx)
	if err != nil {
		// A cancelled caller says nothing about the session; keep the token.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Wrap(ctxErr, "[transport Do] refresh interrupted")
		}
		return nil, c.terminate(err)
	}

	retry := c.pending(path, opts, newToken, requestID)
	retry.Retry = true
	resp, err = c.send(ctx, retry)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransportFault, err)
	}
	return resp, nil
}

// pending builds the headers for one attempt: JSON content type by default, caller headers
// on top, then the bearer token. Multipart payloads carry no Content-Type from here.
func (c *Client) pending(path string, opts Options, accessToken, requestID string) PendingRequest {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	header := http.Header{}
	header.Set("Content-Type", defaultContentType)
	for k, vs := range opts.Headers {
		header[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}
	if accessToken != "" {
		header.Set("Authorization", "Bearer "+accessToken)
	}
	if opts.Body.IsMultipart() {
		header.Del("Content-Type")
	}
	header.Set(routes.RequestIDHeader, requestID)

	return PendingRequest{
		Method:             method,
		Path:               path,
		Header:             header,
		Body:               opts.Body,
		IncludeCredentials: true,
	}
}

func (c *Client) refresh(ctx context.Context) (string, error) {
	if !c.singleFlight {
		return c.doRefresh(ctx)
	}
	// The shared refresh outlives any single caller; the http client timeout still bounds it.
	ch := c.refreshGroup.DoChan(refreshFlightKey, func() (any, error) {
		return c.doRefresh(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.logger.Debug().Msg("Joined in-flight refresh")
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Client) doRefresh(ctx context.Context) (string, error) {
	req := PendingRequest{
		Method:             http.MethodPost,
		Path:               routes.AuthRefresh,
		Header:             http.Header{routes.RequestIDHeader: {c.newRequestID()}},
		IncludeCredentials: true,
		Refresh:            true,
	}
	resp, err := c.send(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransportFault, err)
	}
	defer discard(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var tok oauth2.Token
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", errors.Wrap(err, "[transport refresh] decode token response")
	}
	if tok.AccessToken == "" {
		return "", errors.New("[transport refresh] response has no access_token")
	}

	if err := c.store.Set(token.AccessTokenKey, tok.AccessToken); err != nil {
		c.logger.Err(err).Msg("Failed to store refreshed access token")
	}
	c.logger.Info().Msg("Access token refreshed")
	return tok.AccessToken, nil
}

func (c *Client) terminate(cause error) error {
	c.logger.Warn().Err(cause).Msg("Refresh failed, terminating session")
	if err := c.store.Delete(token.AccessTokenKey); err != nil {
		c.logger.Err(err).Msg("Failed to delete access token")
	}
	if c.onTerminated != nil {
		c.onTerminated()
	}
	return fmt.Errorf("%w: %w", ErrSessionTerminated, cause)
}

func (c *Client) send(ctx context.Context, pr PendingRequest) (*http.Response, error) {
	if c.observer != nil {
		c.observer(pr)
	}

	req, err := http.NewRequestWithContext(ctx, pr.Method, c.buildURL(pr.Path), pr.Body.reader())
	if err != nil {
		return nil, err
	}
	req.Header = pr.Header.Clone()
	if pr.Body.IsMultipart() {
		req.Header.Set("Content-Type", pr.Body.contentType)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if pr.IncludeCredentials && c.jar != nil {
		for _, ck := range c.jar.Cookies(req.URL) {
			req.AddCookie(ck)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", pr.Method).Str("path", pr.Path).Msg("Request failed")
		return nil, err
	}
	if pr.IncludeCredentials && c.jar != nil {
		if cookies := resp.Cookies(); len(cookies) > 0 {
			c.jar.SetCookies(req.URL, cookies)
		}
	}

	c.logger.Debug().
		Str("method", pr.Method).
		Str("path", pr.Path).
		Int("status", resp.StatusCode).
		Bool("refresh", pr.Refresh).
		Bool("retry", pr.Retry).
		Dur("elapsed", time.Since(start)).
		Msg("Request complete")
	return resp, nil
}

func (c *Client) buildURL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

func normalizeBaseURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.New("[transport] base URL required")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", errors.Wrap(err, "[transport] invalid base URL")
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.Errorf("[transport] base URL %q must include scheme and host", raw)
	}
	return strings.TrimSuffix(u.String(), "/"), nil
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
