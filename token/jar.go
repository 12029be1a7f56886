package token

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"
	"gopkg.in/yaml.v3"
)

var _ http.CookieJar = (*Jar)(nil)

type persistedCookie struct {
	Name     string    `yaml:"name"`
	Value    string    `yaml:"value"`
	Path     string    `yaml:"path,omitempty"`
	Domain   string    `yaml:"domain,omitempty"`
	Expires  time.Time `yaml:"expires,omitempty"`
	Secure   bool      `yaml:"secure,omitempty"`
	HttpOnly bool      `yaml:"http_only,omitempty"`
}

func (pc persistedCookie) expired(now time.Time) bool {
	return !pc.Expires.IsZero() && !now.Before(pc.Expires)
}

func (pc persistedCookie) cookie() *http.Cookie {
	return &http.Cookie{
		Name:     pc.Name,
		Value:    pc.Value,
		Path:     pc.Path,
		Domain:   pc.Domain,
		Expires:  pc.Expires,
		Secure:   pc.Secure,
		HttpOnly: pc.HttpOnly,
	}
}

// Jar is an http.CookieJar whose cookies outlive the process. It plays the part of the
// browser's cookie storage: the HTTP-only refresh cookie lands here and is replayed on
// credentialed requests, but nothing in the client reads its value.
type Jar struct {
	inner  *cookiejar.Jar
	store  Store
	logger zerolog.Logger
	now    func() time.Time

	lock  sync.Mutex
	saved map[string][]persistedCookie // origin -> cookies
}

type JarOption func(*Jar)

func WithJarLogger(logger zerolog.Logger) JarOption {
	return func(j *Jar) {
		j.logger = logger
	}
}

func WithJarNowFunc(now func() time.Time) JarOption {
	return func(j *Jar) {
		j.now = now
	}
}

// NewJar creates a jar backed by store and restores any cookies saved by a previous process.
func NewJar(store Store, options ...JarOption) (*Jar, error) {
	if store == nil {
		return nil, errors.New("[NewJar] store is required")
	}
	inner, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, errors.Wrap(err, "[NewJar] create cookie jar")
	}

	j := &Jar{
		inner:  inner,
		store:  store,
		logger: zerolog.Nop(),
		now:    time.Now,
		saved:  make(map[string][]persistedCookie),
	}
	for _, opt := range options {
		opt(j)
	}

	if err := j.restore(); err != nil {
		return nil, err
	}
	return j, nil
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	return j.inner.Cookies(u)
}

// SetCookies implements http.CookieJar.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.inner.SetCookies(u, cookies)

	j.lock.Lock()
	defer j.lock.Unlock()

	key := origin(u)
	now := j.now()
	current := j.saved[key]
	for _, c := range cookies {
		current = removeCookie(current, c.Name, c.Path)
		pc := persistedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
		switch {
		case c.MaxAge < 0:
			continue
		case c.MaxAge > 0:
			pc.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		if pc.expired(now) {
			continue
		}
		current = append(current, pc)
	}
	if len(current) == 0 {
		delete(j.saved, key)
	} else {
		j.saved[key] = current
	}

	if err := j.persist(); err != nil {
		j.logger.Err(err).Str("origin", key).Msg("Failed to persist cookies")
	}
}

func (j *Jar) restore() error {
	raw, ok, err := j.store.Get(CookiesKey)
	if err != nil {
		return errors.Wrap(err, "[Jar] read saved cookies")
	}
	if !ok || raw == "" {
		return nil
	}

	saved := make(map[string][]persistedCookie)
	if err := yaml.Unmarshal([]byte(raw), &saved); err != nil {
		return errors.Wrap(err, "[Jar] decode saved cookies")
	}

	now := j.now()
	for key, cookies := range saved {
		u, err := url.Parse(key)
		if err != nil {
			j.logger.Warn().Str("origin", key).Msg("Skipping cookies for unparsable origin")
			continue
		}
		live := make([]persistedCookie, 0, len(cookies))
		httpCookies := make([]*http.Cookie, 0, len(cookies))
		for _, pc := range cookies {
			if pc.expired(now) {
				continue
			}
			live = append(live, pc)
			httpCookies = append(httpCookies, pc.cookie())
		}
		if len(live) == 0 {
			continue
		}
		j.inner.SetCookies(u, httpCookies)
		j.saved[key] = live
	}
	return nil
}

func (j *Jar) persist() error {
	if len(j.saved) == 0 {
		return j.store.Delete(CookiesKey)
	}
	data, err := yaml.Marshal(j.saved)
	if err != nil {
		return errors.Wrap(err, "[Jar] encode cookies")
	}
	return j.store.Set(CookiesKey, string(data))
}

func origin(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}

func removeCookie(cookies []persistedCookie, name, path string) []persistedCookie {
	out := cookies[:0]
	for _, c := range cookies {
		if c.Name == name && c.Path == path {
			continue
		}
		out = append(out, c)
	}
	return out
}
