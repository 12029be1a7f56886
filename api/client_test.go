package api_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/jrsteele09/go-ctf-client/api"
	"github.com/jrsteele09/go-ctf-client/internal/testbackend"
	"github.com/jrsteele09/go-ctf-client/routes"
	"github.com/jrsteele09/go-ctf-client/token"
	tokenfakerepo "github.com/jrsteele09/go-ctf-client/token/repofake"
	"github.com/jrsteele09/go-ctf-client/transport"
	"github.com/stretchr/testify/require"
)

const (
	testUsername = "neo"
	testEmail    = "neo@zion.io"
	testPassword = "trinity"
)

type testFixture struct {
	backend *testbackend.Backend
	store   *tokenfakerepo.FakeStore
	client  *api.Client
}

func setupTestFixture(t *testing.T, options ...transport.Option) *testFixture {
	t.Helper()

	backend := testbackend.New()
	t.Cleanup(backend.Close)
	backend.AddUser(testUsername, testEmail, testPassword, 4200)

	store := tokenfakerepo.NewFakeStore()
	jar, err := token.NewJar(store)
	require.NoError(t, err)

	tc, err := transport.New(backend.URL(), store, append([]transport.Option{transport.WithCookieJar(jar)}, options...)...)
	require.NoError(t, err)
	client, err := api.New(tc)
	require.NoError(t, err)

	return &testFixture{backend: backend, store: store, client: client}
}

func (f *testFixture) login(t *testing.T) {
	t.Helper()
	_, err := f.client.Login(context.Background(), testUsername, testPassword)
	require.NoError(t, err)
}

func TestNew_RequiresTransport(t *testing.T) {
	_, err := api.New(nil)
	require.Error(t, err)
}

func TestLogin_StoresAccessToken(t *testing.T) {
	f := setupTestFixture(t)

	tok, err := f.client.Login(context.Background(), testUsername, testPassword)
	require.NoError(t, err)
	require.NotEmpty(t, tok.AccessToken)
	require.Equal(t, "bearer", tok.TokenType)

	stored, ok, err := token.AccessToken(f.store)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, tok.AccessToken, stored)

	calls := f.backend.CallsTo(routes.AuthLogin)
	require.Len(t, calls, 1)
	require.Contains(t, calls[0].ContentType, "multipart/form-data")
}

func TestLogin_WrongCredentials(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.client.Login(context.Background(), testUsername, "wrong")
	require.ErrorIs(t, err, api.ErrAuthenticationFailed)
	require.NotErrorIs(t, err, api.ErrRateLimited)
	require.Equal(t, "Login failed", err.Error())
	require.False(t, token.HasAccessToken(f.store))
}

func TestLogin_RateLimited(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.SetLoginLimit(0)

	_, err := f.client.Login(context.Background(), testUsername, "wrong")
	require.ErrorIs(t, err, api.ErrRateLimited)

	var authErr *api.AuthError
	require.True(t, errors.As(err, &authErr))
	require.Equal(t, http.StatusTooManyRequests, authErr.StatusCode)
	require.Equal(t, "Too many login attempts. Please try again later.", authErr.Message)

	require.Zero(t, f.store.Sets())
	require.Zero(t, f.store.Deletes())
	require.Empty(t, f.backend.CallsTo(routes.AuthRefresh))
}

func TestRegister(t *testing.T) {
	f := setupTestFixture(t)

	err := f.client.Register(context.Background(), api.RegisterRequest{Username: "trinity", Email: "trinity@zion.io", Password: "matrix"})
	require.NoError(t, err)

	_, err = f.client.Login(context.Background(), "trinity", "matrix")
	require.NoError(t, err)
}

func TestRegister_DuplicateEmailCarriesDetail(t *testing.T) {
	f := setupTestFixture(t)

	err := f.client.Register(context.Background(), api.RegisterRequest{Username: "neo2", Email: testEmail, Password: "x"})
	require.ErrorIs(t, err, api.ErrAuthenticationFailed)
	require.Equal(t, "Email already registered", err.Error())
}

func TestRegister_ValidationListFallsBackToGenericMessage(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.Override(routes.AuthRegister, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":[{"loc":["body","email"],"msg":"field required"}]}`))
	})

	err := f.client.Register(context.Background(), api.RegisterRequest{Username: "x"})
	require.ErrorIs(t, err, api.ErrAuthenticationFailed)
	require.Equal(t, "Registration failed", err.Error())
}

func TestLogout_RevokesAndClears(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	require.NoError(t, f.client.Logout(context.Background()))
	require.False(t, token.HasAccessToken(f.store))
	require.Len(t, f.backend.CallsTo(routes.AuthLogout), 1)

	// The refresh cookie was revoked, so a protected call cannot recover.
	_, err := f.client.Me(context.Background())
	require.ErrorIs(t, err, transport.ErrSessionTerminated)
}

func TestLogout_BackendFailureIsIgnored(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	f.backend.Override(routes.AuthLogout, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	require.NoError(t, f.client.Logout(context.Background()))
	require.False(t, token.HasAccessToken(f.store))
}

func TestLogout_UnreachableBackendIsIgnored(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	f.backend.Close()

	require.NoError(t, f.client.Logout(context.Background()))
	require.False(t, token.HasAccessToken(f.store))
}

func TestMe(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	profile, err := f.client.Me(context.Background())
	require.NoError(t, err)
	require.Equal(t, testUsername, profile.Username)
	require.Equal(t, testEmail, profile.Email)
	require.Nil(t, profile.Role)
}

func TestMe_RefreshesExpiredAccessToken(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	before, _, _ := token.AccessToken(f.store)
	f.backend.ExpireAccessTokens()

	profile, err := f.client.Me(context.Background())
	require.NoError(t, err)
	require.Equal(t, testUsername, profile.Username)

	after, _, _ := token.AccessToken(f.store)
	require.NotEqual(t, before, after)
	require.Len(t, f.backend.CallsTo(routes.AuthRefresh), 1)
}

func TestMe_StatusError(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	f.backend.Override(routes.AuthMe, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"detail":"maintenance"}`))
	})

	_, err := f.client.Me(context.Background())
	var statusErr *transport.StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	require.Equal(t, "maintenance", statusErr.Detail)
}

func TestLeaderboard_Ranked(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.AddUser("admin_morpheus", "morpheus@zion.io", "x", 9000)
	f.backend.AddUser("cypher", "cypher@zion.io", "x", 10)
	f.login(t)

	entries, err := f.client.Leaderboard(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, api.LeaderboardEntry{Rank: 1, Username: "admin_morpheus", Score: 9000, Role: "Admin"}, entries[0])
	require.Equal(t, "neo", entries[1].Username)
	require.Equal(t, 3, entries[2].Rank)
}

func TestHello(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	result, err := f.client.Hello(context.Background())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, result.StatusCode)
	require.Equal(t, "OK", result.Body["message"])
}

func TestHello_NoSessionTerminates(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.client.Hello(context.Background())
	require.ErrorIs(t, err, transport.ErrSessionTerminated)
}
