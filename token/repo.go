package token

// AccessTokenKey is the fixed key the access token is stored under.
const AccessTokenKey = "jwt_token"

// CookiesKey is the key the persistent cookie jar stores its cookies under.
const CookiesKey = "cookies"

// Store is a small key-value capability used to hold the client's session state.
// Get reports found=false (and a nil error) when the key is absent.
// Delete of a missing key is not an error.
type Store interface {
	Get(key string) (value string, found bool, err error)
	Set(key, value string) error
	Delete(key string) error
}

// AccessToken reads the current access token. Absence is not an error.
func AccessToken(s Store) (string, bool, error) {
	v, ok, err := s.Get(AccessTokenKey)
	if err != nil || !ok || v == "" {
		return "", false, err
	}
	return v, true, nil
}

// HasAccessToken reports whether an access token is present; read errors count as absent.
func HasAccessToken(s Store) bool {
	_, ok, err := AccessToken(s)
	return err == nil && ok
}
