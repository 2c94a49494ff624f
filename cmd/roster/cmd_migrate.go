package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"roster/internal/core"
	"roster/internal/infra/persistence/postgres"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate <up|down>",
		Short:     "Apply the Postgres schema migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if core.StorageDriver(opts.cfg.StorageDriver) != core.StoragePostgres {
				return errors.New("migrate requires ROSTER_STORAGE_DRIVER=postgres")
			}
			if err := postgres.Migrate(opts.cfg.PostgresDSN, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrations applied (%s)\n", args[0])
			return nil
		},
	}
}
