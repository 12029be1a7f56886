package token_test

import (
	"net/http"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-ctf-client/token"
	"github.com/jrsteele09/go-ctf-client/token/filerepo"
	tokenfakerepo "github.com/jrsteele09/go-ctf-client/token/repofake"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return s
}

func TestAccessToken(t *testing.T) {
	store := tokenfakerepo.NewFakeStore()

	_, ok, err := token.AccessToken(store)
	require.NoError(t, err)
	require.False(t, ok)
	require.False(t, token.HasAccessToken(store))

	require.NoError(t, store.Set(token.AccessTokenKey, "T1"))
	v, ok, err := token.AccessToken(store)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "T1", v)

	require.NoError(t, store.Set(token.AccessTokenKey, ""))
	require.False(t, token.HasAccessToken(store), "empty value counts as absent")
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.yaml")

	first, err := filerepo.New(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(token.AccessTokenKey, "T1"))
	require.NoError(t, first.Set("other", "value"))

	second, err := filerepo.New(path)
	require.NoError(t, err)
	v, ok, err := second.Get(token.AccessTokenKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "T1", v)

	require.NoError(t, second.Delete(token.AccessTokenKey))
	require.NoError(t, second.Delete(token.AccessTokenKey), "deleting a missing key is not an error")

	_, ok, err = first.Get(token.AccessTokenKey)
	require.NoError(t, err)
	require.False(t, ok)
	v, ok, err = first.Get("other")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "value", v)
}

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	store, err := filerepo.New(filepath.Join(t.TempDir(), "session.yaml"))
	require.NoError(t, err)

	_, ok, err := store.Get(token.AccessTokenKey)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFileStore_RequiresPath(t *testing.T) {
	_, err := filerepo.New("")
	require.Error(t, err)
}

func TestInspectClaims(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	raw := signedToken(t, jwt.RegisteredClaims{
		Subject:   "neo@zion.io",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	})

	claims, err := token.InspectClaims(raw)
	require.NoError(t, err)
	require.Equal(t, "neo@zion.io", claims.Subject)
	require.True(t, claims.ExpiresAt.Equal(now.Add(time.Minute)))
	require.False(t, claims.Expired(now))
	require.True(t, claims.Expired(now.Add(time.Minute)))

	_, err = token.InspectClaims("not-a-jwt")
	require.Error(t, err)
}

func TestInspectClaims_NoExpiry(t *testing.T) {
	claims, err := token.InspectClaims(signedToken(t, jwt.RegisteredClaims{Subject: "trinity"}))
	require.NoError(t, err)
	require.False(t, claims.Expired(time.Now().Add(100*365*24*time.Hour)))
}

func TestJar_PersistsCookiesThroughStore(t *testing.T) {
	store := tokenfakerepo.NewFakeStore()
	u, err := url.Parse("http://localhost:8000/auth/login")
	require.NoError(t, err)

	jar, err := token.NewJar(store)
	require.NoError(t, err)
	jar.SetCookies(u, []*http.Cookie{{Name: "refresh_token", Value: "R1", Path: "/", HttpOnly: true, MaxAge: 3600}})

	restored, err := token.NewJar(store)
	require.NoError(t, err)
	api, err := url.Parse("http://localhost:8000/auth/refresh")
	require.NoError(t, err)
	cookies := restored.Cookies(api)
	require.Len(t, cookies, 1)
	require.Equal(t, "refresh_token", cookies[0].Name)
	require.Equal(t, "R1", cookies[0].Value)
}

func TestJar_DeletedCookieIsForgotten(t *testing.T) {
	store := tokenfakerepo.NewFakeStore()
	u, err := url.Parse("http://localhost:8000/")
	require.NoError(t, err)

	jar, err := token.NewJar(store)
	require.NoError(t, err)
	jar.SetCookies(u, []*http.Cookie{{Name: "refresh_token", Value: "R1", Path: "/"}})
	jar.SetCookies(u, []*http.Cookie{{Name: "refresh_token", Value: "", Path: "/", MaxAge: -1}})

	require.Empty(t, jar.Cookies(u))
	_, ok, err := store.Get(token.CookiesKey)
	require.NoError(t, err)
	require.False(t, ok)

	restored, err := token.NewJar(store)
	require.NoError(t, err)
	require.Empty(t, restored.Cookies(u))
}

func TestJar_ExpiredCookiesAreNotRestored(t *testing.T) {
	store := tokenfakerepo.NewFakeStore()
	u, err := url.Parse("http://localhost:8000/")
	require.NoError(t, err)

	start := time.Now()
	jar, err := token.NewJar(store, token.WithJarNowFunc(func() time.Time { return start }))
	require.NoError(t, err)
	jar.SetCookies(u, []*http.Cookie{{Name: "refresh_token", Value: "R1", Path: "/", MaxAge: 60}})

	later, err := token.NewJar(store, token.WithJarNowFunc(func() time.Time { return start.Add(2 * time.Minute) }))
	require.NoError(t, err)
	require.Empty(t, later.Cookies(u))
}
