package errors

import (
	"errors"
	"fmt"
)

// Common error types for the CTF client
var (
	// Session errors
	ErrSessionTerminated        = errors.New("session terminated")
	ErrAuthorizationHeaderOwned = errors.New("authorization header is owned by the session transport")

	// Authentication errors
	ErrRateLimited          = errors.New("rate limited")
	ErrAuthenticationFailed = errors.New("authentication failed")

	// Transport errors
	ErrTransportFault = errors.New("transport fault")

	// Storage errors
	ErrNotFound = errors.New("not found")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
