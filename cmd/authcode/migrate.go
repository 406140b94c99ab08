package main

import (
	"fmt"

	"github.com/legit-games/authcode-service/migrate"
	"github.com/legit-games/authcode-service/server"
	"github.com/spf13/cobra"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	var target int64
	cmd := &cobra.Command{
		Use:   "migrate [up|down|status|version|up-to|down-to|redo|reset]",
		Short: "Apply database migrations to the configured postgres database",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := server.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.Storage.PostgresDSN == "" {
				return fmt.Errorf("storage.postgres_dsn is required")
			}
			logger, err := newLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			command := "up"
			if len(args) == 1 {
				command = args[0]
			}
			return migrate.Run(cmd.Context(), migrate.Options{
				Driver:  "postgres",
				DSN:     cfg.Storage.PostgresDSN,
				Command: command,
				Target:  target,
				Logger:  logger.Sugar(),
			})
		},
	}
	cmd.Flags().Int64Var(&target, "target", 0, "target version for up-to and down-to")
	return cmd
}
