package config

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sethvargo/go-envconfig"
)

type Config interface {
	EnvConfig
	APIConfig
	SessionConfig
}

type EnvConfig interface {
	GetAppName() string
	GetLogLevel() string
	GetEnv() string
}

type APIConfig interface {
	GetBaseURL() string
	GetHTTPTimeout() time.Duration
	GetUserAgent() string
}

type SessionConfig interface {
	GetSessionFile() string
	GetSingleFlightRefresh() bool
}

type mainConfig struct {
	EnvVars `env:",prefix=CTF_"`
	API     `env:",prefix=CTF_"`
	Session `env:",prefix=CTF_"`
}

// New reads the configuration from the process environment.
func New(ctx context.Context) (Config, error) {
	return Load(ctx, envconfig.OsLookuper())
}

// Load reads the configuration through lookuper.
func Load(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg mainConfig
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, errors.Wrap(err, "[config Load]")
	}
	if cfg.HTTPTimeout <= 0 {
		return nil, errors.Errorf("[config Load] CTF_HTTP_TIMEOUT must be positive, got %s", cfg.HTTPTimeout)
	}
	return cfg, nil
}
