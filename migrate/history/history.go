// Package history tracks applied schema versions in the target database.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgshift/pgshift/migrate/chain"
)

// ErrHistoryDivergence means the versions recorded in the database are not a
// prefix of the on-disk migration chain. This is never auto-repaired.
var ErrHistoryDivergence = errors.New("recorded versions diverge from the migration chain")

// TableName is the version-history table. It is append-only except during
// compaction.
const TableName = "_schema_versions"

const createTableSQL = `
	CREATE TABLE IF NOT EXISTS _schema_versions (
		version_number CHAR(14) NOT NULL PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

const tableExistsSQL = `
	SELECT EXISTS (
		SELECT 1 FROM pg_catalog.pg_class
		WHERE relname = '_schema_versions' AND relkind = 'r'
	)
`

// Manager reads and writes the version-history table.
type Manager struct {
	db *sql.DB
}

// NewManager creates a manager over an open connection to the target database.
func NewManager(db *sql.DB) *Manager {
	return &Manager{db: db}
}

// EnsureTable creates the version table if it is absent. Idempotent.
func (m *Manager) EnsureTable(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create version table: %w", err)
	}
	return nil
}

// TableExists reports whether the version table is present, without creating
// it. Diff materialization uses this so a tracked database and its shadow
// copies agree on whether the table exists.
func (m *Manager) TableExists(ctx context.Context) (bool, error) {
	var exists bool
	if err := m.db.QueryRowContext(ctx, tableExistsSQL).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check for version table: %w", err)
	}
	return exists, nil
}

// CurrentVersion returns the most recently applied version, or "" when nothing
// has been recorded or the table does not exist yet. Application order, not
// the version timestamp, decides: chain order wins over skewed clocks.
func (m *Manager) CurrentVersion(ctx context.Context) (string, error) {
	exists, err := m.TableExists(ctx)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", nil
	}
	var version string
	err = m.db.QueryRowContext(ctx,
		"SELECT version_number FROM _schema_versions ORDER BY applied_at DESC, version_number DESC LIMIT 1").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read current version: %w", err)
	}
	return version, nil
}

// RecordedVersions returns every recorded version in application order. A
// missing table yields an empty list.
func (m *Manager) RecordedVersions(ctx context.Context) ([]string, error) {
	exists, err := m.TableExists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	rows, err := m.db.QueryContext(ctx,
		"SELECT version_number FROM _schema_versions ORDER BY applied_at, version_number")
	if err != nil {
		return nil, fmt.Errorf("failed to read recorded versions: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan recorded version: %w", err)
		}
		versions = append(versions, version)
	}
	return versions, rows.Err()
}

// Record inserts a version row inside the caller's transaction, so execution
// of a migration body and the recording of its version commit atomically.
func (m *Manager) Record(ctx context.Context, tx *sql.Tx, version string) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO _schema_versions (version_number) VALUES ($1)", version)
	if err != nil {
		return fmt.Errorf("failed to record version %s: %w", version, err)
	}
	return nil
}

// Truncate removes every version row inside the caller's transaction. Only
// compaction uses this.
func (m *Manager) Truncate(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, "TRUNCATE TABLE _schema_versions"); err != nil {
		return fmt.Errorf("failed to truncate version table: %w", err)
	}
	return nil
}

// CheckConsistency verifies that recorded is a strict prefix of the chain,
// version for version and in order. Any mismatch is fatal: a divergent history
// could mean the database was migrated from a different set of files, and
// guessing a repair could hide corruption.
func CheckConsistency(c *chain.Chain, recorded []string) error {
	if len(recorded) > len(c.Files) {
		return fmt.Errorf("%w: database records %d versions but the chain has only %d",
			ErrHistoryDivergence, len(recorded), len(c.Files))
	}
	for i, version := range recorded {
		if c.Files[i].Version != version {
			return fmt.Errorf("%w: position %d records %s but the chain has %s",
				ErrHistoryDivergence, i+1, version, c.Files[i].Version)
		}
	}
	return nil
}
