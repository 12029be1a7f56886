// Package routes holds the backend API paths, relative to the configured base URL.
package routes

const (
	// AuthLogin exchanges form-encoded credentials for an access token and sets the refresh cookie.
	AuthLogin = "/auth/login"

	// AuthRegister creates an account from a JSON {username,email,password} body.
	AuthRegister = "/auth/register"

	// AuthRefresh mints a new access token from the HTTP-only refresh cookie.
	AuthRefresh = "/auth/refresh" // #nosec G101 -- route path, not a credential

	// AuthLogout revokes the refresh cookie.
	AuthLogout = "/auth/logout"

	// AuthMe returns the current user's profile.
	AuthMe = "/auth/me"

	// Leaderboard returns the ranked player list.
	Leaderboard = "/leaderboard"

	// Hello is a diagnostic echo used to probe connectivity.
	Hello = "/hello"
)

// RequestIDHeader carries a per-call correlation id.
const RequestIDHeader = "X-Request-ID"
