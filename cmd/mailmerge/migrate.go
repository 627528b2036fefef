package main

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/byanjiong/mailmerge/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the PostgreSQL send history schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Run all pending migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrateUp,
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Rollback the last migration",
	Args:  cobra.NoArgs,
	RunE:  runMigrateDown,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	Args:  cobra.NoArgs,
	RunE:  runMigrateStatus,
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

func getMigrator(cmd *cobra.Command) (*migrate.Migrate, *app, error) {
	a, err := newApp()
	if err != nil {
		return nil, nil, err
	}

	db, err := database.NewPostgres(cmd.Context(), a.cfg.Database)
	if err != nil {
		a.Close()
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.closers = append(a.closers, db)

	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		a.Close()
		return nil, nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+a.cfg.Database.MigrationsPath, "postgres", driver)
	if err != nil {
		a.Close()
		return nil, nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return m, a, nil
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	m, a, err := getMigrator(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	a.log.Info().Msg("running migrations...")
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	a.log.Info().Msg("migrations completed successfully")
	return nil
}

func runMigrateDown(cmd *cobra.Command, args []string) error {
	m, a, err := getMigrator(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	a.log.Info().Msg("rolling back last migration...")
	if err := m.Steps(-1); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}

	a.log.Info().Msg("rollback completed successfully")
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	m, a, err := getMigrator(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		fmt.Fprintln(out, "No migrations have been applied")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get version: %w", err)
	}

	fmt.Fprintf(out, "Current version: %d\n", version)
	fmt.Fprintf(out, "Dirty: %v\n", dirty)
	return nil
}
