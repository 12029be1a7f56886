package api

// RegisterRequest is the body of a registration call.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserProfile is returned by /auth/me. Role is optional on the wire.
type UserProfile struct {
	ID       int     `json:"id"`
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Role     *string `json:"role,omitempty"`
}

// LeaderboardEntry is one ranked player.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	Username string `json:"username"`
	Score    int    `json:"score"`
	Role     string `json:"role"`
}

// HelloResult is the diagnostic probe's status and decoded echo.
type HelloResult struct {
	StatusCode int
	Body       map[string]any
}
