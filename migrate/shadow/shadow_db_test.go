package shadow

import (
	"context"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgshift/pgshift/internal/pgconn"
	"github.com/pgshift/pgshift/migrate/history"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	raw := os.Getenv("PGSHIFT_TEST_URL")
	if raw == "" {
		t.Skip("PGSHIFT_TEST_URL not set")
	}
	cfg, err := pgconn.Parse(raw)
	require.NoError(t, err)
	return NewManager(cfg)
}

func TestCreateAndDrop(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	db, err := m.Create(ctx, "test")
	require.NoError(t, err)
	t.Cleanup(func() { m.Drop(ctx, db) })

	// The ephemeral database accepts connections under its own name.
	conn, err := pgconn.Connect(ctx, db.Config)
	require.NoError(t, err)
	conn.Close()

	require.NoError(t, m.Drop(ctx, db))
	_, err = pgconn.Connect(ctx, db.Config)
	assert.Error(t, err)
}

func TestDropIsIdempotent(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	db, err := m.Create(ctx, "test")
	require.NoError(t, err)
	require.NoError(t, m.Drop(ctx, db))
	require.NoError(t, m.Drop(ctx, db))
}

func TestPopulateFromSchemaDir(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "schema/fruit.sql",
		[]byte("create table fruit (id serial primary key, name text unique);"), 0o644))

	db, err := m.Create(ctx, "schema")
	require.NoError(t, err)
	t.Cleanup(func() { m.Drop(ctx, db) })

	require.NoError(t, m.PopulateFromSchemaDir(ctx, db, fs, "schema"))

	conn, err := pgconn.Connect(ctx, db.Config)
	require.NoError(t, err)
	defer conn.Close()
	var count int
	require.NoError(t, conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM fruit").Scan(&count))
	assert.Equal(t, 0, count)
}

func TestEnsureVersionTable(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	db, err := m.Create(ctx, "migrations")
	require.NoError(t, err)
	t.Cleanup(func() { m.Drop(ctx, db) })

	require.NoError(t, m.EnsureVersionTable(ctx, db))

	conn, err := pgconn.Connect(ctx, db.Config)
	require.NoError(t, err)
	defer conn.Close()
	exists, err := history.NewManager(conn).TableExists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCleanAllOrphansDropsOnlyMarkedDatabases(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	orphan, err := m.Create(ctx, "orphaned")
	require.NoError(t, err)
	t.Cleanup(func() { m.Drop(ctx, orphan) })

	dropped, err := m.CleanAllOrphans(ctx)
	require.NoError(t, err)
	assert.Contains(t, dropped, orphan.Name)

	// The sweep matches the marker comment, so the target database itself and
	// everything else on the server survives.
	assert.NotContains(t, dropped, m.base.Database)
	_, err = pgconn.Connect(ctx, orphan.Config)
	assert.Error(t, err)
}
