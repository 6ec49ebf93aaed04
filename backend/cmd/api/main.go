package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ivankudzin/nikah/backend/internal/config"
	"github.com/ivankudzin/nikah/backend/internal/infra/logger"
)

var (
	cfgPath string
	cfg     config.Config
	log     *zap.Logger
)

func main() {
	// Local runs may keep secrets in .env; real environment variables win.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	rootCmd := &cobra.Command{
		Use:          "nikah-api",
		Short:        "Interest ledger and entitlement reconciler API",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log, err = logger.New(cfg.Log.Level, cfg.Env)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if log != nil {
				_ = log.Sync()
			}
		},
	}

	defaultPath := os.Getenv("APP_CONFIG")
	if defaultPath == "" {
		defaultPath = "configs/config.yaml"
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultPath, "path to the YAML config file")

	serve := serveCmd()
	rootCmd.AddCommand(serve, migrateCmd(), cleanupCmd())
	rootCmd.RunE = serve.RunE

	rootCmd.SetContext(ctx)

	err := rootCmd.Execute()
	stop()
	if err != nil {
		os.Exit(1)
	}
}
