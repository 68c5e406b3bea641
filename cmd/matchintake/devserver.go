package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tactico/go-matchintake/internal/config"
	"github.com/tactico/go-matchintake/internal/devserver"
)

func newDevServerCmd(cfg *config.Config) *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run the local stub backend (simulated analysis, no byte storage)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := devserver.OpenStore(cfg.DevServer.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if seed {
				if err := store.SeedDemo(ctx); err != nil {
					return err
				}
			}

			return devserver.NewServer(cfg.DevServer, store).Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", true, "seed demo teams and rosters when the database is empty")
	return cmd
}
