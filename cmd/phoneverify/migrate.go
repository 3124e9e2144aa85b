package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/jakejscott/phoneverify/internal/config"
	"github.com/jakejscott/phoneverify/pgstore"
)

func migrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply PostgreSQL migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn, _ := cmd.Flags().GetString("dsn")
			if dsn == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				dsn = cfg.Store.DatabaseDSN
			}
			if dsn == "" {
				return errors.New("migrate: DATABASE_DSN or --dsn is required")
			}

			db, err := pgstore.Open(cmd.Context(), dsn)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := pgstore.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			cmd.Println("migrations applied")
			return nil
		},
	}
	cmd.Flags().String("dsn", "", "postgres connection string; defaults to DATABASE_DSN")
	return cmd
}
