package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tactico/go-matchintake/internal/config"
	"github.com/tactico/go-matchintake/internal/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Log.Level)
	defer logger.Sync()

	root := &cobra.Command{
		Use:   "matchintake",
		Short: "Match video intake pipeline for the analysis backend",
		Long: `matchintake drives the match intake pipeline: it creates a match
record, uploads the video in retried chunks and polls the analysis job
until it finishes.`,
		SilenceUsage: true,
	}
	root.AddCommand(
		newRunCmd(cfg),
		newTeamsCmd(cfg),
		newMatchesCmd(cfg),
		newDevServerCmd(cfg),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
