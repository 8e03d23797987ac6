package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "schema", cfg.SchemaDir)
	assert.Equal(t, "migrations", cfg.MigrationsDir)
	assert.Equal(t, "migra", cfg.MigraBinary)
	assert.False(t, cfg.ExcludePrivileges)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PGSHIFT_SCHEMA_DIR", "db/schema")
	t.Setenv("PGSHIFT_MIGRATIONS_DIR", "db/migrations")
	t.Setenv("PGSHIFT_MIGRA_BINARY", "/opt/migra/bin/migra")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "db/schema", cfg.SchemaDir)
	assert.Equal(t, "db/migrations", cfg.MigrationsDir)
	assert.Equal(t, "/opt/migra/bin/migra", cfg.MigraBinary)
}

func TestLoadDatabaseURLFallbacks(t *testing.T) {
	t.Setenv("PG_URL", "postgres://localhost/from_pg_url")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/from_pg_url", cfg.DatabaseURL)

	t.Setenv("PGSHIFT_DATABASE_URL", "postgres://localhost/from_pgshift")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/from_pgshift", cfg.DatabaseURL)
}

func TestLoadRejectsConflictingSchemaFilters(t *testing.T) {
	t.Setenv("PGSHIFT_ONLY_SCHEMA", "public")
	t.Setenv("PGSHIFT_EXCLUDE_SCHEMA", "audit")
	_, err := Load()
	require.Error(t, err)
}
