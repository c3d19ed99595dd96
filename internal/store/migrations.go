package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"superlists/internal/logging"

	"go.uber.org/zap"
)

// Schema versions:
// v1: lists table
// v2: items table referencing lists
// v3: index serving per-list item lookups in creation order
const CurrentSchemaVersion = 3

// Migration is one forward-only schema step.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

var migrations = []Migration{
	{1, "create_lists", `
	CREATE TABLE IF NOT EXISTS lists (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at INTEGER NOT NULL
	)`},
	{2, "create_items", `
	CREATE TABLE IF NOT EXISTS items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		list_id INTEGER NOT NULL REFERENCES lists(id) ON DELETE CASCADE,
		text TEXT NOT NULL DEFAULT ''
	)`},
	{3, "index_items_list", `
	CREATE INDEX IF NOT EXISTS idx_items_list ON items(list_id, id)`},
}

// MigrationRecord is a row of schema_migrations.
type MigrationRecord struct {
	Version   int
	Name      string
	AppliedAt time.Time
}

// MigrationResult holds the result of a migration run.
type MigrationResult struct {
	FromVersion   int
	ToVersion     int
	MigrationsRun int
	Duration      time.Duration
}

// RunMigrations applies every migration newer than the recorded schema version.
// Each migration runs in its own transaction together with its bookkeeping row.
func RunMigrations(ctx context.Context, db *sql.DB) (MigrationResult, error) {
	timer := logging.StartTimer(logging.CategoryStore, "RunMigrations")
	defer timer.Stop()

	start := time.Now()
	if _, err := db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return MigrationResult{}, fmt.Errorf("create schema_migrations: %w", err)
	}

	from, err := schemaVersion(ctx, db)
	if err != nil {
		return MigrationResult{}, err
	}
	result := MigrationResult{FromVersion: from, ToVersion: from}

	for _, m := range migrations {
		if m.Version <= from {
			continue
		}
		logging.StoreDebug("applying migration", zap.Int("version", m.Version), zap.String("name", m.Name))
		if err := applyMigration(ctx, db, m); err != nil {
			return result, err
		}
		result.ToVersion = m.Version
		result.MigrationsRun++
	}

	result.Duration = time.Since(start)
	logging.Store("schema migrations complete",
		zap.Int("from", result.FromVersion),
		zap.Int("to", result.ToVersion),
		zap.Int("applied", result.MigrationsRun))
	return result, nil
}

func applyMigration(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %d: begin: %w", m.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
		m.Version, m.Name, time.Now().Unix()); err != nil {
		return fmt.Errorf("migration %d: record: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migration %d: commit: %w", m.Version, err)
	}
	return nil
}

func schemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return int(v.Int64), nil
}

// AppliedMigrations lists recorded migrations, oldest first.
func AppliedMigrations(ctx context.Context, db *sql.DB) ([]MigrationRecord, error) {
	rows, err := db.QueryContext(ctx, `SELECT version, name, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	defer rows.Close()

	var out []MigrationRecord
	for rows.Next() {
		var rec MigrationRecord
		var applied int64
		if err := rows.Scan(&rec.Version, &rec.Name, &applied); err != nil {
			return nil, fmt.Errorf("scan migration: %w", err)
		}
		rec.AppliedAt = time.Unix(applied, 0)
		out = append(out, rec)
	}
	return out, rows.Err()
}
