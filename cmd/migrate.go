package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"fulfillment-service/common/logger"
	"fulfillment-service/config"
	"fulfillment-service/database"
)

var migrateDown bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded Postgres schema migrations",
	Long: `Apply the embedded Postgres schema migrations.

Examples:
  fulfillment migrate
  fulfillment migrate --down`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "revert every migration instead of applying")
}

func runMigrate(_ *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return err
	}
	if cfg.DBDriver != "postgres" {
		return errors.New("migrations only apply to DB_DRIVER=postgres; sqlite is auto-migrated")
	}

	log := logger.Initialize(cfg.Env)
	defer log.Sync()

	return database.RunMigrations(cfg.MigrateURL(), migrateDown, log)
}
