package main

import (
	"github.com/spf13/cobra"

	"table-reservation-backend/config"
	"table-reservation-backend/internal/db"
)

func newMigrateCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the schema and seed default settings and tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			gormDB, err := db.Open(&cfg.Database)
			if err != nil {
				return err
			}
			if sqlDB, err := gormDB.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := db.Migrate(gormDB); err != nil {
				return err
			}
			if err := db.Seed(gormDB, &cfg.Schedule); err != nil {
				return err
			}
			logger.Println("migrations applied")
			return nil
		},
	}
}
