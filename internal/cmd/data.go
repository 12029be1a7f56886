package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss/table"
	"github.com/jrsteele09/go-ctf-client/internal/utils"
	"github.com/spf13/cobra"
)

func newMeCmd(c *cli) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "me",
		Short: "Show your profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.mustApp()
			if err != nil {
				return err
			}
			profile, err := a.client.Me(cmd.Context())
			if err != nil {
				return explain(err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), profile)
			}

			role := utils.ValueOr(profile.Role, "User")
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:       %d\n", profile.ID)
			fmt.Fprintf(out, "Username: %s\n", profile.Username)
			fmt.Fprintf(out, "Email:    %s\n", profile.Email)
			fmt.Fprintf(out, "Role:     %s\n", role)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newLeaderboardCmd(c *cli) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the ranked operators",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.mustApp()
			if err != nil {
				return err
			}
			entries, err := a.client.Leaderboard(cmd.Context())
			if err != nil {
				return explain(err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), entries)
			}

			t := table.New().Headers("RANK", "OPERATOR", "ROLE", "SCORE")
			for _, e := range entries {
				t.Row("#"+strconv.Itoa(e.Rank), e.Username, e.Role, strconv.Itoa(e.Score))
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newHelloCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "hello",
		Short: "Probe the backend",
		Long:  `Call GET /hello with the current session and print the status and body.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.mustApp()
			if err != nil {
				return err
			}
			result, err := a.client.Hello(cmd.Context())
			if err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%d] response_received\n", result.StatusCode)
			return writeJSON(cmd.OutOrStdout(), result.Body)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
