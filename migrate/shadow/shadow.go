// Package shadow manages the disposable databases used to materialize schema
// states for diffing. Every database it creates carries a marker comment so
// orphans left behind by interrupted runs can be swept later.
package shadow

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/spf13/afero"

	"github.com/pgshift/pgshift/internal/pgconn"
	"github.com/pgshift/pgshift/migrate/chain"
	"github.com/pgshift/pgshift/migrate/history"
)

// Marker is the database comment identifying ephemeral databases created by
// this tool. The orphan sweep drops databases bearing exactly this comment and
// nothing else.
const Marker = "EPHEMERAL DB CREATED BY pgshift"

// Database is one disposable database. Lifecycle: Create, populate, diff,
// Drop.
type Database struct {
	Name   string
	Config pgconn.Config
}

// Manager creates and drops ephemeral databases on the server the base config
// points at. Administrative statements run against the maintenance database,
// since a database cannot be created or dropped from a connection to itself.
type Manager struct {
	base pgconn.Config
}

// NewManager creates a manager for the server behind base.
func NewManager(base pgconn.Config) *Manager {
	return &Manager{base: base}
}

func (m *Manager) admin(ctx context.Context) (*sql.DB, error) {
	return pgconn.Connect(ctx, m.base.WithDatabase(pgconn.MaintenanceDatabase))
}

// newName builds a unique database name. The random suffix keeps two
// concurrent invocations from colliding; it does not make them safe to run
// against the same target.
func newName(base, suffix string) string {
	entropy := make([]byte, 4)
	rand.Read(entropy)
	return fmt.Sprintf("%s_shadow_%d_%s_%s", base, time.Now().Unix(), suffix, hex.EncodeToString(entropy))
}

// Create creates a fresh ephemeral database tagged with the tool marker.
func (m *Manager) Create(ctx context.Context, suffix string) (*Database, error) {
	if m.base.Database == "" {
		return nil, fmt.Errorf("%w: connection url has no database name", ErrCreateFailed)
	}
	name := newName(m.base.Database, suffix)

	admin, err := m.admin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}
	defer admin.Close()

	if _, err := admin.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name)); err != nil {
		return nil, fmt.Errorf("%w: create database %s: %v", ErrCreateFailed, name, err)
	}
	comment := fmt.Sprintf("COMMENT ON DATABASE %s IS %s", pq.QuoteIdentifier(name), pq.QuoteLiteral(Marker))
	if _, err := admin.ExecContext(ctx, comment); err != nil {
		// The untagged database would be invisible to the orphan sweep, so
		// drop it before reporting.
		admin.ExecContext(ctx, "DROP DATABASE IF EXISTS "+pq.QuoteIdentifier(name))
		return nil, fmt.Errorf("%w: tag database %s: %v", ErrCreateFailed, name, err)
	}

	return &Database{Name: name, Config: m.base.WithDatabase(name)}, nil
}

// Drop unconditionally drops the database by name.
func (m *Manager) Drop(ctx context.Context, db *Database) error {
	admin, err := m.admin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDropFailed, db.Name, err)
	}
	defer admin.Close()

	if _, err := admin.ExecContext(ctx, "DROP DATABASE IF EXISTS "+pq.QuoteIdentifier(db.Name)); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDropFailed, db.Name, err)
	}
	return nil
}

// EnsureVersionTable creates an empty version-history table in the ephemeral
// database, for diffs where the real target carries one.
func (m *Manager) EnsureVersionTable(ctx context.Context, db *Database) error {
	conn, err := pgconn.Connect(ctx, db.Config)
	if err != nil {
		return err
	}
	defer conn.Close()
	return history.NewManager(conn).EnsureTable(ctx)
}

// PopulateFromChain replays migration bodies into the ephemeral database in
// chain order. Onboarding entries record no SQL of their own and are skipped.
func (m *Manager) PopulateFromChain(ctx context.Context, db *Database, fs afero.Fs, files []chain.MigrationFile) error {
	conn, err := pgconn.Connect(ctx, db.Config)
	if err != nil {
		return err
	}
	defer conn.Close()

	for _, file := range files {
		if file.Onboard {
			continue
		}
		body, err := file.Body(fs)
		if err != nil {
			return err
		}
		if _, err := conn.ExecContext(ctx, body); err != nil {
			return fmt.Errorf("failed to replay %s into %s: %w", file.Path, db.Name, err)
		}
	}
	return nil
}

// PopulateFromSchemaDir executes the declarative schema files in their stable
// directory order.
func (m *Manager) PopulateFromSchemaDir(ctx context.Context, db *Database, fs afero.Fs, dir string) error {
	paths, err := chain.ListSQLFiles(fs, dir)
	if err != nil {
		return err
	}

	conn, err := pgconn.Connect(ctx, db.Config)
	if err != nil {
		return err
	}
	defer conn.Close()

	for _, path := range paths {
		body, err := afero.ReadFile(fs, path)
		if err != nil {
			return fmt.Errorf("failed to read schema file %s: %w", path, err)
		}
		if _, err := conn.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("failed to execute schema file %s in %s: %w", path, db.Name, err)
		}
	}
	return nil
}

const orphanQuery = `
	SELECT databases.datname
	FROM pg_database AS databases
	JOIN pg_shdescription AS descriptions ON descriptions.objoid = databases.oid
	WHERE descriptions.description = $1
`

// CleanAllOrphans drops every database on the server bearing the tool marker
// and returns their names. This is the recovery path for runs that were
// interrupted before their deferred drop could execute.
func (m *Manager) CleanAllOrphans(ctx context.Context) ([]string, error) {
	admin, err := m.admin(ctx)
	if err != nil {
		return nil, err
	}
	defer admin.Close()

	rows, err := admin.QueryContext(ctx, orphanQuery, Marker)
	if err != nil {
		return nil, fmt.Errorf("failed to list orphaned databases: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan orphaned database name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	var dropped []string
	for _, name := range names {
		if _, err := admin.ExecContext(ctx, "DROP DATABASE IF EXISTS "+pq.QuoteIdentifier(name)); err != nil {
			return dropped, fmt.Errorf("%w: %s: %v", ErrDropFailed, name, err)
		}
		dropped = append(dropped, name)
	}
	return dropped, nil
}
