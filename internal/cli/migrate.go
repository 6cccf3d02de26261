package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/promptreg/internal/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [version]",
	Short: "Run database migrations",
	Long: `Run database migrations.

Without arguments, runs all pending migrations (up).
With a version number, migrates to that specific version (up or down as needed).

Examples:
  promptreg migrate      # Run all pending migrations
  promptreg migrate 0    # Rollback all migrations`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	app, err := NewAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	if len(args) == 0 {
		if err := migrate.RunAll(ctx, app.DB); err != nil {
			return err
		}
		version, _, err := migrate.GetCurrentVersion(ctx, app.DB)
		if err != nil {
			return err
		}
		fmt.Printf("Database at version %d\n", version)
		return nil
	}

	targetVersion, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid version number: %s", args[0])
	}

	if err := migrate.EnsureMigrationsTable(ctx, app.DB); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	currentVersion, dirty, err := migrate.GetCurrentVersion(ctx, app.DB)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is in dirty state at version %d, manual intervention required", currentVersion)
	}

	allMigrations, err := migrate.LoadMigrations()
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	switch {
	case targetVersion > currentVersion:
		err = migrate.MigrateUpTo(ctx, app.DB, allMigrations, currentVersion, targetVersion)
	case targetVersion < currentVersion:
		err = migrate.MigrateDownTo(ctx, app.DB, allMigrations, currentVersion, targetVersion)
	default:
		fmt.Printf("Already at version %d\n", currentVersion)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("Migrated from version %d to %d\n", currentVersion, targetVersion)
	return nil
}
