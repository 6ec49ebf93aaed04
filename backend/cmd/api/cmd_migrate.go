package main

import (
	"fmt"

	"github.com/spf13/cobra"

	pgrepo "github.com/ivankudzin/nikah/backend/internal/repo/postgres"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations()
		},
	}
}

func runMigrations() error {
	if err := pgrepo.Migrate(cfg.Postgres.DSN, log); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
