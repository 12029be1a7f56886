package config

import "time"

type API struct {
	// BaseURL is the backend origin, e.g. "https://lab.example.com"
	BaseURL     string        `env:"API_BASE_URL, default=http://localhost:8000"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT, default=30s"`
	UserAgent   string        `env:"USER_AGENT, default=ctfclient/0.1"`
}

var _ APIConfig = API{}

func (a API) GetBaseURL() string {
	return a.BaseURL
}

func (a API) GetHTTPTimeout() time.Duration {
	return a.HTTPTimeout
}

func (a API) GetUserAgent() string {
	return a.UserAgent
}
