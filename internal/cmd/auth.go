package cmd

import (
	"fmt"
	"time"

	"github.com/jrsteele09/go-ctf-client/api"
	"github.com/jrsteele09/go-ctf-client/token"
	"github.com/jrsteele09/go-ctf-client/tui"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newLoginCmd(c *cli) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Start a session",
		Long: `Log in with a username (or email) and password.

The access token and the refresh cookie are written to the session file. Missing
credentials are prompted for when running in a terminal.

Examples:
  ctfclient login -u neo
  ctfclient login --username neo --password trinity`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.mustApp()
			if err != nil {
				return err
			}
			if username, err = valueOrPrompt(username, "username", tui.Prompt{Message: "Username or email", Required: true}); err != nil {
				return err
			}
			if password, err = valueOrPrompt(password, "password", tui.Prompt{Message: "Password", Required: true, Secret: true}); err != nil {
				return err
			}

			if _, err := a.client.Login(cmd.Context(), username, password); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ACCESS GRANTED")
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username or email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	return cmd
}

func newRegisterCmd(c *cli) *cobra.Command {
	var req api.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an operator identity",
		Long: `Register a new account. Registration does not log you in.

Examples:
  ctfclient register -u trinity -e trinity@zion.io`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.mustApp()
			if err != nil {
				return err
			}
			if req.Username, err = valueOrPrompt(req.Username, "username", tui.Prompt{Message: "Username", Required: true}); err != nil {
				return err
			}
			if req.Email, err = valueOrPrompt(req.Email, "email", tui.Prompt{Message: "Email", Required: true}); err != nil {
				return err
			}
			if req.Password, err = valueOrPrompt(req.Password, "password", tui.Prompt{Message: "Password", Required: true, Secret: true}); err != nil {
				return err
			}

			if err := a.client.Register(cmd.Context(), req); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "IDENTITY CREATED")
			fmt.Fprintf(cmd.OutOrStdout(), "Run 'ctfclient login -u %s' to start a session.\n", req.Username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.Username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&req.Email, "email", "e", "", "email address")
	cmd.Flags().StringVarP(&req.Password, "password", "p", "", "password (prompted when omitted)")
	return cmd
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Long:  `Ask the backend to revoke the refresh cookie, then remove the local access token. Backend failures are ignored.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.mustApp()
			if err != nil {
				return err
			}
			if err := a.client.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the local session",
		Long:  `Show whether an access token is stored and what it claims. No request is made.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.mustApp()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "API:          %s\n", a.transport.BaseURL())
			fmt.Fprintf(out, "Session file: %s\n", a.store.Path())

			raw, ok, err := token.AccessToken(a.store)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(out, "Not logged in. Use 'ctfclient login' to authenticate.")
				return nil
			}

			claims, err := token.InspectClaims(raw)
			if err != nil {
				fmt.Fprintln(out, "Logged in (access token is opaque)")
				return nil
			}
			fmt.Fprintf(out, "Logged in as %s\n", claims.Subject)
			if !claims.ExpiresAt.IsZero() {
				state := "valid"
				if claims.Expired(time.Now()) {
					state = "expired, refreshed on next call"
				}
				fmt.Fprintf(out, "Access token: %s (%s)\n", claims.ExpiresAt.Local().Format(time.DateTime), state)
			}
			return nil
		},
	}
}

// valueOrPrompt returns value, prompting for it when empty and a terminal is attached.
func valueOrPrompt(value, flag string, p tui.Prompt) (string, error) {
	if value != "" {
		return value, nil
	}
	if !tui.IsInteractive() {
		return "", errors.Errorf("--%s is required", flag)
	}
	return tui.PromptForString(p)
}
