// Package testbackend serves an in-memory fake of the training platform's HTTP API for tests.
package testbackend

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-ctf-client/routes"
	"golang.org/x/crypto/bcrypt"
)

const (
	// RefreshCookieName is the HTTP-only cookie carrying the refresh credential.
	RefreshCookieName = "refresh_token"

	signingSecret = "test-signing-secret"
)

// Call records one request received by the backend.
type Call struct {
	Method        string
	Path          string
	Authorization string
	ContentType   string
	RefreshCookie string
	RequestID     string
}

type user struct {
	ID           int
	Username     string
	Email        string
	PasswordHash string
	Score        int
}

// Backend is a fake of the platform API: register, login (with a per-run attempt limit),
// refresh cookie rotation, logout revocation, /auth/me, /leaderboard and /hello.
type Backend struct {
	Server *httptest.Server

	lock          sync.Mutex
	users         map[string]*user  // email -> user
	accessTokens  map[string]string // access token -> email
	refreshTokens map[string]string // refresh token -> email
	revoked       map[string]bool
	overrides     map[string]http.HandlerFunc
	calls         []Call
	loginAttempts int
	loginLimit    int
	nextID        int
}

// New starts a backend. Call Close when done.
func New() *Backend {
	b := &Backend{
		users:         make(map[string]*user),
		accessTokens:  make(map[string]string),
		refreshTokens: make(map[string]string),
		revoked:       make(map[string]bool),
		overrides:     make(map[string]http.HandlerFunc),
		loginLimit:    5,
		nextID:        1,
	}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serveHTTP))
	return b
}

func (b *Backend) Close() {
	b.Server.Close()
}

// URL returns the backend base URL.
func (b *Backend) URL() string {
	return b.Server.URL
}

// AddUser registers a user directly and returns its id.
func (b *Backend) AddUser(username, email, password string, score int) int {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	id := b.nextID
	b.nextID++
	b.users[email] = &user{ID: id, Username: username, Email: email, PasswordHash: string(hash), Score: score}
	return id
}

// IssueSession creates an access token and refresh token for an existing user as if they
// had logged in, returning both.
func (b *Backend) IssueSession(email string) (accessToken, refreshToken string) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.issueLocked(email)
}

// ExpireAccessTokens invalidates every issued access token.
func (b *Backend) ExpireAccessTokens() {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.accessTokens = make(map[string]string)
}

// SetLoginLimit changes how many login attempts are accepted before 429.
func (b *Backend) SetLoginLimit(n int) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.loginLimit = n
}

// Override replaces the handler for a path.
func (b *Backend) Override(path string, h http.HandlerFunc) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.overrides[path] = h
}

// Calls returns a copy of the received requests.
func (b *Backend) Calls() []Call {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]Call(nil), b.calls...)
}

// CallsTo returns the received requests for one path.
func (b *Backend) CallsTo(path string) []Call {
	var out []Call
	for _, c := range b.Calls() {
		if c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

func (b *Backend) serveHTTP(w http.ResponseWriter, r *http.Request) {
	call := Call{
		Method:        r.Method,
		Path:          r.URL.Path,
		Authorization: r.Header.Get("Authorization"),
		ContentType:   r.Header.Get("Content-Type"),
		RequestID:     r.Header.Get(routes.RequestIDHeader),
	}
	if c, err := r.Cookie(RefreshCookieName); err == nil {
		call.RefreshCookie = c.Value
	}

	b.lock.Lock()
	b.calls = append(b.calls, call)
	override := b.overrides[r.URL.Path]
	b.lock.Unlock()

	if override != nil {
		override(w, r)
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == routes.AuthRegister:
		b.register(w, r)
	case r.Method == http.MethodPost && r.URL.Path == routes.AuthLogin:
		b.login(w, r)
	case r.Method == http.MethodPost && r.URL.Path == routes.AuthRefresh:
		b.refresh(w, r)
	case r.Method == http.MethodPost && r.URL.Path == routes.AuthLogout:
		b.logout(w, r)
	case r.Method == http.MethodGet && r.URL.Path == routes.AuthMe:
		b.me(w, r)
	case r.Method == http.MethodGet && r.URL.Path == routes.Leaderboard:
		b.leaderboard(w, r)
	case r.Method == http.MethodGet && r.URL.Path == routes.Hello:
		b.hello(w, r)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not Found"})
	}
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" || body.Password == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "Invalid registration payload"})
		return
	}

	b.lock.Lock()
	_, exists := b.users[body.Email]
	b.lock.Unlock()
	if exists {
		writeJSON(w, http.StatusConflict, map[string]string{"detail": "Email already registered"})
		return
	}

	id := b.AddUser(body.Username, body.Email, body.Password, 0)
	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "username": body.Username, "email": body.Email})
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		if err := r.ParseForm(); err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "Invalid form"})
			return
		}
	}
	identifier := r.FormValue("username")
	password := r.FormValue("password")

	b.lock.Lock()
	b.loginAttempts++
	if b.loginAttempts > b.loginLimit {
		b.lock.Unlock()
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Rate limit exceeded: 5 per 1 minute"})
		return
	}
	u := b.findLocked(identifier)
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		b.lock.Unlock()
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect username or password"})
		return
	}
	access, refresh := b.issueLocked(u.Email)
	b.lock.Unlock()

	setRefreshCookie(w, refresh)
	writeJSON(w, http.StatusOK, map[string]string{"access_token": access, "token_type": "bearer"})
}

func (b *Backend) refresh(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(RefreshCookieName)
	if err != nil || c.Value == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Refresh token missing"})
		return
	}

	b.lock.Lock()
	email, ok := b.refreshTokens[c.Value]
	if !ok || b.revoked[c.Value] {
		b.lock.Unlock()
		clearRefreshCookie(w)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid refresh token"})
		return
	}
	delete(b.refreshTokens, c.Value)
	access, refresh := b.issueLocked(email)
	b.lock.Unlock()

	setRefreshCookie(w, refresh)
	writeJSON(w, http.StatusOK, map[string]string{"access_token": access, "token_type": "bearer"})
}

func (b *Backend) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(RefreshCookieName); err == nil {
		b.lock.Lock()
		b.revoked[c.Value] = true
		b.lock.Unlock()
	}
	clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (b *Backend) me(w http.ResponseWriter, r *http.Request) {
	u := b.authenticate(r)
	if u == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": u.ID, "username": u.Username, "email": u.Email})
}

func (b *Backend) leaderboard(w http.ResponseWriter, r *http.Request) {
	if b.authenticate(r) == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
		return
	}

	b.lock.Lock()
	entries := make([]map[string]any, 0, len(b.users))
	for _, u := range b.users {
		role := "User"
		if strings.Contains(strings.ToLower(u.Username), "admin") {
			role = "Admin"
		}
		entries = append(entries, map[string]any{"username": u.Username, "score": u.Score, "role": role})
	}
	b.lock.Unlock()

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i]["score"].(int) > entries[j]["score"].(int)
	})
	for i := range entries {
		entries[i]["rank"] = i + 1
	}
	writeJSON(w, http.StatusOK, entries)
}

func (b *Backend) hello(w http.ResponseWriter, r *http.Request) {
	if b.authenticate(r) == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "OK"})
}

func (b *Backend) authenticate(r *http.Request) *user {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if raw == "" {
		return nil
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	email, ok := b.accessTokens[raw]
	if !ok {
		return nil
	}
	return b.users[email]
}

func (b *Backend) findLocked(identifier string) *user {
	if u, ok := b.users[identifier]; ok {
		return u
	}
	for _, u := range b.users {
		if u.Username == identifier {
			return u
		}
	}
	return nil
}

func (b *Backend) issueLocked(email string) (string, string) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(15 * time.Minute)),
		ID:        randomHex(8),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingSecret))
	if err != nil {
		panic(err)
	}
	refresh := randomHex(32)
	b.accessTokens[access] = email
	b.refreshTokens[refresh] = email
	return access, refresh
}

func setRefreshCookie(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   7 * 24 * 60 * 60,
	})
}

func clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   RefreshCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
