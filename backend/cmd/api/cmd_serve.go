package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ivankudzin/nikah/backend/internal/app/apiapp"
)

func serveCmd() *cobra.Command {
	var migrateFirst bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if migrateFirst {
				if err := runMigrations(); err != nil {
					return err
				}
			}

			app, err := apiapp.New(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("create api app: %w", err)
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- app.Run()
			}()

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
				defer cancel()
				if err := app.Shutdown(shutdownCtx); err != nil {
					log.Error("shutdown api app", zap.Error(err))
					return err
				}
				return nil
			case err := <-errCh:
				if err != nil {
					log.Error("api server failed", zap.Error(err))
				}
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
				defer cancel()
				_ = app.Shutdown(shutdownCtx)
				return err
			}
		},
	}

	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "apply database migrations before serving")
	return cmd
}
