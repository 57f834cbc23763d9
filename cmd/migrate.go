package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/psds-microservice/supportbot/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE:  runMigrateUp,
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
}

func runMigrateUp(_ *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := database.Prepare(cfg); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	db, err := database.Open(cfg.DB.Driver, cfg.DSN(), false)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer database.Close(db)
	if err := database.MigrateUp(db, cfg.DB.Driver); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("migrate up: ok", "driver", cfg.DB.Driver)
	return nil
}
