package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func migrateCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			gdb, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeDatabase(gdb)

			slog.Info("database migrated", "driver", cfg.DatabaseDriver)
			fmt.Fprintln(cmd.OutOrStdout(), "Migration complete.")
			return nil
		},
	}
}
