package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/tactico/go-matchintake/internal/client"
	"github.com/tactico/go-matchintake/internal/config"
)

func newTeamsCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "teams",
		Short: "List teams known to the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			teams, err := client.New(cfg.Backend).ListTeams(ctx)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"ID", "Name", "Sport"})
			for _, team := range teams {
				t.AppendRow(table.Row{team.ID, team.Name, team.Sport})
			}
			t.Render()
			return nil
		},
	}
}

func newMatchesCmd(cfg *config.Config) *cobra.Command {
	var teamID string
	var limit int

	cmd := &cobra.Command{
		Use:   "matches",
		Short: "List a team's matches with upload and analysis state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			matches, err := client.New(cfg.Backend).ListMatches(ctx, teamID, limit)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"ID", "Opponent", "Date", "Status", "Upload", "Chunks"})
			for _, m := range matches {
				t.AppendRow(table.Row{
					m.ID, m.Opponent, m.MatchDate, m.Status, m.UploadStatus,
					fmt.Sprintf("%d/%d", m.ChunksUploaded, m.ChunksTotal),
				})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&teamID, "team", "", "team ID")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum matches to list")
	cmd.MarkFlagRequired("team")
	return cmd
}
