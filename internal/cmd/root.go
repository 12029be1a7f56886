package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/common-nighthawk/go-figure"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"
)

// cli carries state from the root command's pre-run into the subcommands.
type cli struct {
	flags    globalFlags
	lookuper envconfig.Lookuper
	app      *app
}

// Execute runs the command tree configured from the process environment.
func Execute(ctx context.Context) error {
	return newRootCmd(envconfig.OsLookuper()).ExecuteContext(ctx)
}

func newRootCmd(lookuper envconfig.Lookuper) *cobra.Command {
	c := &cli{lookuper: lookuper}

	rootCmd := &cobra.Command{
		Use:   "ctfclient",
		Short: "Terminal client for the security training lab",
		Long: `ctfclient signs in to the security training platform and keeps the session alive.

Access tokens are short lived. When one expires the client refreshes it once through the
HTTP-only refresh cookie the backend issued at login, then retries the call. If the refresh
fails the local session is cleared and you need to log in again.

Configuration is read from CTF_* environment variables; flags take precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), c.flags, c.lookuper, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			c.app = a
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			displayAppname(cmd.OutOrStdout(), c.app.cfg.GetAppName())
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&c.flags.apiURL, "api-url", "", "backend base URL (env CTF_API_BASE_URL)")
	flags.StringVar(&c.flags.sessionFile, "session-file", "", "session file (env CTF_SESSION_FILE, default ~/.ctfclient/session.yaml)")
	flags.StringVar(&c.flags.logLevel, "log-level", "", "log level: debug, info, warn, error (env CTF_LOG_LEVEL)")
	flags.BoolVar(&c.flags.singleFlight, "single-flight", false, "share one refresh between concurrent expired calls (env CTF_SINGLE_FLIGHT_REFRESH)")

	rootCmd.AddCommand(
		newLoginCmd(c),
		newRegisterCmd(c),
		newLogoutCmd(c),
		newStatusCmd(c),
		newMeCmd(c),
		newLeaderboardCmd(c),
		newHelloCmd(c),
		newDashboardCmd(c),
	)
	return rootCmd
}

func (c *cli) mustApp() (*app, error) {
	if c.app == nil {
		return nil, errors.New("[cli] client not initialised")
	}
	return c.app, nil
}

func displayAppname(w io.Writer, appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	fmt.Fprintln(w, myFigure.String())
}
