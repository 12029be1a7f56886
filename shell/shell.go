// Package shell holds the client's user-facing session state and the transitions that drive
// the backend through the session transport.
package shell

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-ctf-client/api"
	"github.com/jrsteele09/go-ctf-client/internal/errors"
	"github.com/jrsteele09/go-ctf-client/internal/utils"
	"github.com/jrsteele09/go-ctf-client/token"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const (
	msgAccessGranted     = "ACCESS GRANTED"
	msgIdentityCreated   = "IDENTITY CREATED"
	msgAuthFailed        = "AUTHENTICATION FAILED"
	msgRegisterFailed    = "REGISTRATION FAILED"
	msgSessionTerminated = "SESSION TERMINATED"

	fallbackProfileID = 999
	fallbackUsername  = "Operator"
	fallbackEmail     = "operator@vizya.sec"
	defaultRole       = "User"
)

// API is the part of the backend the shell talks to.
type API interface {
	Login(ctx context.Context, username, password string) (*oauth2.Token, error)
	Register(ctx context.Context, req api.RegisterRequest) error
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*api.UserProfile, error)
	Leaderboard(ctx context.Context) ([]api.LeaderboardEntry, error)
	Hello(ctx context.Context) (*api.HelloResult, error)
}

var _ API = (*api.Client)(nil)

// Shell is safe for concurrent use; no lock is held across network calls.
type Shell struct {
	api     API
	store   token.Store
	logger  zerolog.Logger
	nowTime func() time.Time
	newID   func() string

	lock  sync.RWMutex
	state State
}

type Option func(*Shell)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Shell) {
		s.logger = logger
	}
}

// WithNowTime sets the clock used for activity log timestamps.
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Shell) {
		s.nowTime = nowFunc
	}
}

// New creates a shell. A stored access token resumes the dashboard.
func New(backend API, store token.Store, options ...Option) (*Shell, error) {
	if backend == nil {
		return nil, pkgerrors.New("[shell New] api is required")
	}
	if store == nil {
		return nil, pkgerrors.New("[shell New] token store is required")
	}

	s := &Shell{
		api:     backend,
		store:   store,
		logger:  zerolog.Nop(),
		nowTime: time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range options {
		opt(s)
	}

	s.state = blankState()
	if token.HasAccessToken(store) {
		s.state.View = Authenticated
		s.state.Screen = ScreenDashboard
		s.state.ActivityLogs = seedLogs()
	}
	return s, nil
}

func blankState() State {
	return State{
		View:   Unauthenticated,
		Screen: ScreenLogin,
		Tab:    TabDashboard,
	}
}

// State returns a copy of the current state.
func (s *Shell) State() State {
	s.lock.RLock()
	defer s.lock.RUnlock()
	st := s.state
	st.ActivityLogs = append([]ActivityLog(nil), s.state.ActivityLogs...)
	st.Leaderboard = append([]api.LeaderboardEntry(nil), s.state.Leaderboard...)
	if s.state.Profile != nil {
		p := *s.state.Profile
		st.Profile = &p
	}
	return st
}

func (s *Shell) SetLoginForm(form LoginForm) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.state.LoginForm = form
}

func (s *Shell) SetRegisterForm(form RegisterForm) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.state.RegisterForm = form
}

// ShowLogin and ShowRegister toggle between the two unauthenticated screens.
func (s *Shell) ShowLogin() {
	s.showScreen(ScreenLogin)
}

func (s *Shell) ShowRegister() {
	s.showScreen(ScreenRegister)
}

func (s *Shell) showScreen(screen Screen) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.state.View == Authenticated {
		return
	}
	s.state.Screen = screen
	s.state.Error = ""
}

// SubmitLogin sends the login form. Failures are shown inline and returned.
func (s *Shell) SubmitLogin(ctx context.Context) error {
	s.lock.Lock()
	form := s.state.LoginForm
	s.state.Loading = true
	s.state.Error = ""
	s.lock.Unlock()

	_, err := s.api.Login(ctx, form.Username, form.Password)

	s.lock.Lock()
	defer s.lock.Unlock()
	s.state.Loading = false
	if err != nil {
		s.state.Error = inlineMessage(err, msgAuthFailed)
		s.logger.Info().Err(err).Str("username", form.Username).Msg("Login failed")
		return err
	}

	s.state.View = Authenticated
	s.state.Screen = ScreenDashboard
	s.state.Tab = TabDashboard
	s.state.Success = msgAccessGranted
	s.state.LoginForm.Password = ""
	s.state.ActivityLogs = []ActivityLog{s.newLogLocked(fmt.Sprintf("root@%s: session_init", form.Username))}
	return nil
}

// SubmitRegister sends the registration form and returns to the login screen on success.
func (s *Shell) SubmitRegister(ctx context.Context) error {
	s.lock.Lock()
	form := s.state.RegisterForm
	s.state.Loading = true
	s.state.Error = ""
	s.lock.Unlock()

	err := s.api.Register(ctx, form.request())

	s.lock.Lock()
	defer s.lock.Unlock()
	s.state.Loading = false
	if err != nil {
		s.state.Error = inlineMessage(err, msgRegisterFailed)
		return err
	}
	s.state.Success = msgIdentityCreated
	if s.state.View == Unauthenticated {
		s.state.Screen = ScreenLogin
	}
	return nil
}

// Logout revokes the session on a best-effort basis, then forgets everything.
func (s *Shell) Logout(ctx context.Context) error {
	err := s.api.Logout(ctx)
	if err != nil {
		s.logger.Err(err).Msg("Failed to clear session on logout")
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	s.state = blankState()
	return err
}

// ForceUnauthenticated discards all in-memory session state after the transport gave up on
// the session. It does nothing when already unauthenticated, so a failed login keeps its form.
func (s *Shell) ForceUnauthenticated() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.state.View == Unauthenticated {
		return
	}
	s.logger.Warn().Msg("Session terminated")
	s.state = blankState()
	s.state.Error = msgSessionTerminated
}

// SwitchTab activates tab and loads its data. Profile and leaderboard fetches are best effort;
// only a terminated session is returned as an error.
func (s *Shell) SwitchTab(ctx context.Context, tab Tab) error {
	if !tab.Valid() {
		return errors.Wrapf(errors.ErrNotFound, "[SwitchTab] tab %q", tab)
	}

	s.lock.Lock()
	s.state.Tab = tab
	authenticated := s.state.View == Authenticated
	s.lock.Unlock()

	if !authenticated || !token.HasAccessToken(s.store) {
		return nil
	}

	switch tab {
	case TabProfile:
		return s.loadProfile(ctx)
	case TabLeaderboard:
		return s.loadLeaderboard(ctx)
	}
	return nil
}

func (s *Shell) loadProfile(ctx context.Context) error {
	s.setLoading(true)
	defer s.setLoading(false)

	me, err := s.api.Me(ctx)
	if s.terminated(err) {
		return err
	}

	var profile Profile
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to fetch profile, using placeholder")
		profile = s.placeholderProfile()
	} else {
		profile = Profile{ID: me.ID, Username: me.Username, Email: me.Email, Role: utils.ValueOr(me.Role, defaultRole)}
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	s.state.Profile = &profile
	return nil
}

// placeholderProfile names the operator from the login form, else the token subject.
func (s *Shell) placeholderProfile() Profile {
	s.lock.RLock()
	username := s.state.LoginForm.Username
	s.lock.RUnlock()

	if username == "" {
		if raw, ok, _ := token.AccessToken(s.store); ok {
			if claims, err := token.InspectClaims(raw); err == nil {
				username = claims.Subject
			}
		}
	}
	if username == "" {
		username = fallbackUsername
	}
	return Profile{ID: fallbackProfileID, Username: username, Email: fallbackEmail, Role: defaultRole}
}

func (s *Shell) loadLeaderboard(ctx context.Context) error {
	s.setLoading(true)
	defer s.setLoading(false)

	entries, err := s.api.Leaderboard(ctx)
	if s.terminated(err) {
		return err
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to fetch leaderboard")
		return nil
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	s.state.Leaderboard = entries
	return nil
}

// TestConnection probes /hello and records the exchange in the activity log.
func (s *Shell) TestConnection(ctx context.Context) error {
	s.lock.Lock()
	s.state.Loading = true
	s.state.TestResponse = ""
	s.appendLogLocked("root@user: curl -X GET /hello")
	s.lock.Unlock()

	result, err := s.api.Hello(ctx)
	if s.terminated(err) {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	s.state.Loading = false
	if err != nil {
		s.logger.Warn().Err(err).Msg("Connection test failed")
		s.state.TestResponse = prettyJSON(map[string]string{"error": "Connection Failed"})
		s.appendLogLocked("system: [ERROR] connection_refused")
		return nil
	}
	s.state.TestResponse = prettyJSON(result.Body)
	s.appendLogLocked(fmt.Sprintf("system: [%d] response_received", result.StatusCode))
	return nil
}

// terminated switches to the login screen when err reports a terminated session.
func (s *Shell) terminated(err error) bool {
	if !errors.Is(err, errors.ErrSessionTerminated) {
		return false
	}
	s.ForceUnauthenticated()
	return true
}

func (s *Shell) setLoading(loading bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.state.Loading = loading
}

func (s *Shell) appendLogLocked(message string) {
	s.state.ActivityLogs = append(s.state.ActivityLogs, s.newLogLocked(message))
}

func (s *Shell) newLogLocked(message string) ActivityLog {
	return ActivityLog{
		ID:        s.newID(),
		Timestamp: s.nowTime().Format(time.TimeOnly),
		Message:   message,
	}
}

// inlineMessage is the user-facing text for a login or registration failure.
func inlineMessage(err error, fallback string) string {
	var authErr *api.AuthError
	if errors.As(err, &authErr) && authErr.Message != "" {
		return authErr.Message
	}
	return fallback
}

func prettyJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
