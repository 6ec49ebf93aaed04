package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ivankudzin/nikah/backend/internal/jobs/cleanup"
	pgrepo "github.com/ivankudzin/nikah/backend/internal/repo/postgres"
)

func cleanupCmd() *cobra.Command {
	var retention time.Duration

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete quota counters idle for longer than the retention",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			pool, err := pgrepo.NewPool(ctx, pgrepo.PoolConfig{DSN: cfg.Postgres.DSN, MaxConns: 2})
			if err != nil {
				return fmt.Errorf("cleanup: %w", err)
			}
			defer pool.Close()

			return cleanup.New(pgrepo.NewQuotaRepo(pool), retention, log.Named("cleanup")).Run(ctx)
		},
	}

	cmd.Flags().DurationVar(&retention, "retention", 7*24*time.Hour, "age of the quota window after which a counter is dropped")
	return cmd
}
