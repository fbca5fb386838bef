package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/yakoovad/hackreg/internal/db"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back the database schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(db.Up), string(db.Down)},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := db.Direction(args[0])
			if err := db.Migrate(a.cfg.Database.DSN, dir); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "migrations %s: done\n", dir)
			return err
		},
	}
}
