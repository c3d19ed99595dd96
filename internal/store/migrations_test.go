package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openRaw(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", MemoryPath)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunMigrations_FreshDatabase(t *testing.T) {
	ctx := context.Background()
	db := openRaw(t)

	res, err := RunMigrations(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 0, res.FromVersion)
	assert.Equal(t, CurrentSchemaVersion, res.ToVersion)
	assert.Equal(t, len(migrations), res.MigrationsRun)

	applied, err := AppliedMigrations(ctx, db)
	require.NoError(t, err)
	require.Len(t, applied, len(migrations))
	for i, rec := range applied {
		assert.Equal(t, migrations[i].Version, rec.Version)
		assert.Equal(t, migrations[i].Name, rec.Name)
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	ctx := context.Background()
	db := openRaw(t)

	_, err := RunMigrations(ctx, db)
	require.NoError(t, err)

	res, err := RunMigrations(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, res.FromVersion)
	assert.Equal(t, 0, res.MigrationsRun)
}

func TestRunMigrations_ResumesPartialSchema(t *testing.T) {
	ctx := context.Background()
	db := openRaw(t)

	_, err := db.ExecContext(ctx, `CREATE TABLE schema_migrations (version INTEGER PRIMARY KEY, name TEXT NOT NULL, applied_at INTEGER NOT NULL)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, migrations[0].SQL)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO schema_migrations VALUES (1, 'create_lists', 0)`)
	require.NoError(t, err)

	res, err := RunMigrations(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FromVersion)
	assert.Equal(t, CurrentSchemaVersion-1, res.MigrationsRun)
}

func TestMigrationVersionsAreOrdered(t *testing.T) {
	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version, "migration %s", m.Name)
	}
	assert.Equal(t, CurrentSchemaVersion, migrations[len(migrations)-1].Version)
}
