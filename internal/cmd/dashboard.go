package cmd

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/jrsteele09/go-ctf-client/shell"
	"github.com/jrsteele09/go-ctf-client/tui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newDashboardCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Open the interactive dashboard",
		Long: `Open the full-screen dashboard: login and registration forms, activity feed,
leaderboard, lab machines, academy modules and profile. A stored session resumes
straight into the dashboard.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.mustApp()
			if err != nil {
				return err
			}

			// Log lines would tear the alternate screen.
			prevLevel := zerolog.GlobalLevel()
			zerolog.SetGlobalLevel(zerolog.Disabled)
			defer zerolog.SetGlobalLevel(prevLevel)

			sh, err := shell.New(a.client, a.store, shell.WithLogger(a.logger))
			if err != nil {
				return err
			}
			a.onTerminated = sh.ForceUnauthenticated

			program := tea.NewProgram(
				tui.NewModel(cmd.Context(), sh),
				tea.WithAltScreen(),
				tea.WithContext(cmd.Context()),
				tea.WithOutput(cmd.OutOrStdout()),
			)
			_, err = program.Run()
			return err
		},
	}
}
