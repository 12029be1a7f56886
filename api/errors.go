package api

import (
	"encoding/json"
	"io"
	"net/http"

	cerrors "github.com/jrsteele09/go-ctf-client/internal/errors"
	"github.com/jrsteele09/go-ctf-client/transport"
)

var (
	ErrRateLimited          = cerrors.ErrRateLimited
	ErrAuthenticationFailed = cerrors.ErrAuthenticationFailed
)

const (
	msgRateLimited        = "Too many login attempts. Please try again later."
	msgLoginFailed        = "Login failed"
	msgRegistrationFailed = "Registration failed"
)

// AuthError is a login or registration failure that is shown to the user inline.
// Kind is ErrRateLimited or ErrAuthenticationFailed.
type AuthError struct {
	Kind       error
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Kind
}

// detail extracts the backend's {"detail": "..."} message. Validation failures carry a
// list instead of a string; those yield "".
func detail(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return ""
	}
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err != nil || len(body.Detail) == 0 {
		return ""
	}
	var msg string
	if err := json.Unmarshal(body.Detail, &msg); err != nil {
		return ""
	}
	return msg
}

func statusError(resp *http.Response) error {
	return &transport.StatusError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Detail:     detail(resp),
	}
}
