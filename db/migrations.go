package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
)

// Migration represents a single versioned schema change
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// MigrationStatus reports whether a migration has been applied
type MigrationStatus struct {
	Version int
	Name    string
	Applied bool
}

var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_optimizer_documents_table",
		Up: `
			CREATE TABLE IF NOT EXISTS optimizer_documents (
				id TEXT PRIMARY KEY,
				slug TEXT,
				data TEXT NOT NULL,
				aeo_score INTEGER NOT NULL DEFAULT 0,
				seo_score INTEGER NOT NULL DEFAULT 0,
				readability_score INTEGER NOT NULL DEFAULT 0,
				engagement_score INTEGER NOT NULL DEFAULT 0,
				geo_score INTEGER NOT NULL DEFAULT 0,
				word_count INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMPTZ DEFAULT NOW(),
				updated_at TIMESTAMPTZ DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_optimizer_documents_created_at ON optimizer_documents(created_at);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_optimizer_documents_slug ON optimizer_documents(slug);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_optimizer_documents_slug;
			DROP INDEX IF EXISTS idx_optimizer_documents_created_at;
			DROP TABLE IF EXISTS optimizer_documents;
		`,
	},
	{
		Version: 2,
		Name:    "create_optimizer_pass_results_table",
		Up: `
			CREATE TABLE IF NOT EXISTS optimizer_pass_results (
				id TEXT PRIMARY KEY,
				document_id TEXT NOT NULL,
				rubric TEXT NOT NULL,
				score_before INTEGER NOT NULL,
				score_after INTEGER NOT NULL,
				data TEXT NOT NULL,
				created_at TIMESTAMPTZ DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_optimizer_pass_results_document_id ON optimizer_pass_results(document_id);
			CREATE INDEX IF NOT EXISTS idx_optimizer_pass_results_created_at ON optimizer_pass_results(created_at);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_optimizer_pass_results_created_at;
			DROP INDEX IF EXISTS idx_optimizer_pass_results_document_id;
			DROP TABLE IF EXISTS optimizer_pass_results;
		`,
	},
	{
		Version: 3,
		Name:    "create_optimizer_fact_checks_table",
		Up: `
			CREATE TABLE IF NOT EXISTS optimizer_fact_checks (
				document_id TEXT PRIMARY KEY,
				version_id TEXT NOT NULL,
				score REAL NOT NULL DEFAULT 0,
				claims TEXT,
				validity TEXT NOT NULL,
				checked_at TIMESTAMPTZ,
				updated_at TIMESTAMPTZ DEFAULT NOW()
			);
		`,
		Down: `
			DROP TABLE IF EXISTS optimizer_fact_checks;
		`,
	},
}

// Migrate runs all pending PostgreSQL migrations
func Migrate(db *sql.DB) error {
	slog.Default().Info("creating optimizer_schema_version table")
	if err := ensureMigrationsTable(db); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := getCurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	slog.Default().Info("current schema version", "version", currentVersion)

	sortedMigrations := make([]Migration, len(migrations))
	copy(sortedMigrations, migrations)
	sort.Slice(sortedMigrations, func(i, j int) bool {
		return sortedMigrations[i].Version < sortedMigrations[j].Version
	})

	for _, m := range sortedMigrations {
		if m.Version <= currentVersion {
			slog.Default().Debug("skipping migration (already applied)", "version", m.Version)
			continue
		}

		if err := runMigration(db, m); err != nil {
			return fmt.Errorf("failed to run migration %d (%s): %w", m.Version, m.Name, err)
		}
	}

	slog.Default().Info("all migrations complete")
	return nil
}

// ensureMigrationsTable creates the optimizer_schema_version table if it doesn't exist
func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS optimizer_schema_version (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		);
	`)
	return err
}

// getCurrentVersion returns the current migration version
func getCurrentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM optimizer_schema_version").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

// runMigration executes a single migration inside a transaction
func runMigration(db *sql.DB, m Migration) error {
	slog.Default().Info("applying migration", "version", m.Version, "name", m.Name)

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.Up); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	if _, err := tx.Exec(
		"INSERT INTO optimizer_schema_version (version, name) VALUES ($1, $2)",
		m.Version, m.Name,
	); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	slog.Default().Info("migration applied successfully", "version", m.Version, "name", m.Name)
	return nil
}

// Rollback rolls back the last migration
func Rollback(db *sql.DB) error {
	currentVersion, err := getCurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	if currentVersion == 0 {
		return fmt.Errorf("no migrations to rollback")
	}

	var targetMigration *Migration
	for _, m := range migrations {
		if m.Version == currentVersion {
			targetMigration = &m
			break
		}
	}

	if targetMigration == nil {
		return fmt.Errorf("migration %d not found", currentVersion)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(targetMigration.Down); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM optimizer_schema_version WHERE version = $1", currentVersion); err != nil {
		return fmt.Errorf("failed to remove migration record: %w", err)
	}

	return tx.Commit()
}

// GetMigrationStatus returns the current migration status
func GetMigrationStatus(db *sql.DB) ([]MigrationStatus, error) {
	currentVersion, err := getCurrentVersion(db)
	if err != nil {
		return nil, err
	}

	var status []MigrationStatus
	for _, m := range migrations {
		status = append(status, MigrationStatus{
			Version: m.Version,
			Name:    m.Name,
			Applied: m.Version <= currentVersion,
		})
	}

	sort.Slice(status, func(i, j int) bool {
		return status[i].Version < status[j].Version
	})

	return status, nil
}
