package main

import (
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/famalink/telemed-api/internal/config"
	"github.com/famalink/telemed-api/internal/repository/postgres"
	"github.com/famalink/telemed-api/pkg/logger"
)

func newMigrateCmd(load func() (*config.Config, error)) *cobra.Command {
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	migrate.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			logger.NewLogger(&cfg.Log).SetGlobal()
			if cfg.Database.Driver != "postgres" {
				return errors.New("migrations need database.driver=postgres")
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			db, err := postgres.NewDB(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := postgres.Migrate(ctx, db)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				log.Info().Msg("Schema is up to date")
				return nil
			}
			for _, name := range applied {
				log.Info().Str("migration", name).Msg("Applied migration")
			}
			return nil
		},
	})
	return migrate
}
