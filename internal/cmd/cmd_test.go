package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/go-ctf-client/api"
	"github.com/jrsteele09/go-ctf-client/internal/testbackend"
	"github.com/jrsteele09/go-ctf-client/routes"
	"github.com/jrsteele09/go-ctf-client/token"
	"github.com/jrsteele09/go-ctf-client/token/filerepo"
	"github.com/jrsteele09/go-ctf-client/transport"
	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	backend     *testbackend.Backend
	sessionFile string
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	backend := testbackend.New()
	t.Cleanup(backend.Close)
	backend.AddUser("neo", "neo@zion.io", "trinity", 1337)
	return &testFixture{
		backend:     backend,
		sessionFile: filepath.Join(t.TempDir(), "session.yaml"),
	}
}

// execute runs one CLI invocation; each call builds a fresh client from the session file.
func (f *testFixture) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(envconfig.MapLookuper(map[string]string{}))
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--api-url", f.backend.URL(), "--session-file", f.sessionFile, "--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (f *testFixture) login(t *testing.T) {
	t.Helper()
	out, err := f.execute(t, "login", "-u", "neo", "-p", "trinity")
	require.NoError(t, err)
	require.Contains(t, out, "ACCESS GRANTED")
}

func TestRootSubcommands(t *testing.T) {
	root := newRootCmd(envconfig.MapLookuper(map[string]string{}))

	found := map[string]bool{}
	for _, c := range root.Commands() {
		found[c.Name()] = true
	}
	for _, name := range []string{"login", "register", "logout", "status", "me", "leaderboard", "hello", "dashboard"} {
		require.True(t, found[name], "subcommand %q not registered", name)
	}
	for _, flag := range []string{"api-url", "session-file", "log-level", "single-flight"} {
		require.NotNil(t, root.PersistentFlags().Lookup(flag), "flag %q not registered", flag)
	}
}

func TestLogin_PersistsSession(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	store, err := filerepo.New(f.sessionFile)
	require.NoError(t, err)
	require.True(t, token.HasAccessToken(store))
	cookies, ok, err := store.Get(token.CookiesKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, cookies, testbackend.RefreshCookieName)
}

func TestLogin_WrongPassword(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.execute(t, "login", "-u", "neo", "-p", "nope")
	require.ErrorIs(t, err, api.ErrAuthenticationFailed)
}

func TestRegister(t *testing.T) {
	f := setupTestFixture(t)

	out, err := f.execute(t, "register", "-u", "trinity", "-e", "trinity@zion.io", "-p", "matrix")
	require.NoError(t, err)
	require.Contains(t, out, "IDENTITY CREATED")

	_, err = f.execute(t, "register", "-u", "trinity", "-e", "trinity@zion.io", "-p", "matrix")
	require.EqualError(t, err, "Email already registered")
}

func TestStatus(t *testing.T) {
	f := setupTestFixture(t)

	out, err := f.execute(t, "status")
	require.NoError(t, err)
	require.Contains(t, out, "Not logged in")

	f.login(t)
	out, err = f.execute(t, "status")
	require.NoError(t, err)
	require.Contains(t, out, "Logged in as neo@zion.io")
	require.Contains(t, out, "(valid)")
}

func TestMe_RefreshesAcrossInvocations(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	f.backend.ExpireAccessTokens()

	out, err := f.execute(t, "me")
	require.NoError(t, err)
	require.Contains(t, out, "Username: neo")
	require.Contains(t, out, "Role:     User")
	require.Len(t, f.backend.CallsTo(routes.AuthRefresh), 1)

	// The rotated cookie was persisted, so a second expiry also recovers.
	f.backend.ExpireAccessTokens()
	_, err = f.execute(t, "me", "--json")
	require.NoError(t, err)
	require.Len(t, f.backend.CallsTo(routes.AuthRefresh), 2)
}

func TestLeaderboardAndHello(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.AddUser("admin_morpheus", "morpheus@zion.io", "x", 9000)
	f.login(t)

	out, err := f.execute(t, "leaderboard")
	require.NoError(t, err)
	require.Contains(t, out, "admin_morpheus")
	require.Contains(t, out, "#2")

	out, err = f.execute(t, "hello")
	require.NoError(t, err)
	require.Contains(t, out, "[200] response_received")
	require.Contains(t, out, `"message": "OK"`)
}

func TestLogout_EndsSession(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	out, err := f.execute(t, "logout")
	require.NoError(t, err)
	require.Contains(t, out, "Logged out")

	_, err = f.execute(t, "me")
	require.ErrorIs(t, err, transport.ErrSessionTerminated)
	require.Contains(t, err.Error(), "ctfclient login")
}
