package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/jrsteele09/go-ctf-client/api"
	"github.com/jrsteele09/go-ctf-client/internal/config"
	"github.com/jrsteele09/go-ctf-client/internal/errors"
	"github.com/jrsteele09/go-ctf-client/internal/logging"
	"github.com/jrsteele09/go-ctf-client/token"
	"github.com/jrsteele09/go-ctf-client/token/filerepo"
	"github.com/jrsteele09/go-ctf-client/transport"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"
)

// globalFlags override the matching CTF_* environment variables when set.
type globalFlags struct {
	apiURL       string
	sessionFile  string
	logLevel     string
	singleFlight bool
}

// app is the wiring shared by every command: config, logging, the session file and the
// session transport behind the typed API client.
type app struct {
	cfg       config.Config
	logger    zerolog.Logger
	store     *filerepo.FileStore
	transport *transport.Client
	client    *api.Client

	onTerminated func()
}

func newApp(ctx context.Context, flags globalFlags, lookuper envconfig.Lookuper, errOut io.Writer) (*app, error) {
	cfg, err := config.Load(ctx, lookuper)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(firstNonEmpty(flags.logLevel, cfg.GetLogLevel()), errOut)
	if err != nil {
		return nil, err
	}

	store, err := filerepo.New(firstNonEmpty(flags.sessionFile, cfg.GetSessionFile()))
	if err != nil {
		return nil, err
	}
	jar, err := token.NewJar(store, token.WithJarLogger(logger))
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, store: store}

	options := []transport.Option{
		transport.WithHTTPClient(&http.Client{Timeout: cfg.GetHTTPTimeout()}),
		transport.WithCookieJar(jar),
		transport.WithLogger(logger),
		transport.WithUserAgent(cfg.GetUserAgent()),
		transport.WithSessionTerminated(a.sessionTerminated),
	}
	if flags.singleFlight || cfg.GetSingleFlightRefresh() {
		options = append(options, transport.WithSingleFlightRefresh())
	}

	a.transport, err = transport.New(firstNonEmpty(flags.apiURL, cfg.GetBaseURL()), store, options...)
	if err != nil {
		return nil, err
	}
	a.client, err = api.New(a.transport, api.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	logger.Debug().
		Str("api", a.transport.BaseURL()).
		Str("session_file", store.Path()).
		Msg("Client configured")
	return a, nil
}

func (a *app) sessionTerminated() {
	a.logger.Warn().Msg("Session expired")
	if a.onTerminated != nil {
		a.onTerminated()
	}
}

// explain turns a terminated session into an instruction the user can act on.
func explain(err error) error {
	if errors.Is(err, errors.ErrSessionTerminated) {
		return fmt.Errorf("%w: run 'ctfclient login' to start a new session", err)
	}
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
