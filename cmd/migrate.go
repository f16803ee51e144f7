package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/lost-trace/internal/database/postgres"
	"github.com/kozaktomas/lost-trace/internal/database/sqlite"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	Long: `Apply pending schema migrations to the database in DATABASE_URL.

PostgreSQL databases use the embedded SQL migrations; sqlite:// databases
are migrated from the report model.

Examples:
  lost-trace migrate
  lost-trace migrate --status`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().Bool("status", false, "List migrations without applying them")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	statusOnly := mustGetBool(cmd, "status")

	cfg, logCloser, err := loadConfig()
	if err != nil {
		return err
	}
	defer logCloser.Close()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	ctx := context.Background()

	if path, ok := cfg.Database.SQLitePath(); ok {
		store, err := sqlite.Open(ctx, path)
		if err != nil {
			return err
		}
		defer store.Close()
		fmt.Printf("SQLite schema up to date (%s)\n", path)
		return nil
	}

	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	if !statusOnly {
		if err := pool.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	states, err := pool.MigrationStatus(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Migrations (%d):\n", len(states))
	for _, s := range states {
		if s.Applied() {
			fmt.Printf("  %-24s applied %s\n", s.Version, s.AppliedAt.Format(time.RFC3339))
		} else {
			fmt.Printf("  %-24s pending\n", s.Version)
		}
	}
	return nil
}
