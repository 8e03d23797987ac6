package planner

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgshift/pgshift/migrate/executor"
	"github.com/pgshift/pgshift/migrate/history"
)

// Compactor collapses the whole migration history into one file describing
// the full schema from an empty database, then resets the version table to
// that single version.
//
// Known limitation: compaction is not atomic. If the process dies between
// purging the migrations directory and writing the compacted file, the
// directory is left empty and must be restored from backup or regenerated.
type Compactor struct {
	Planner *Planner
	Applier *executor.Applier
	History *history.Manager
	DB      *sql.DB

	// Logf receives progress lines. Nil discards them.
	Logf func(format string, args ...interface{})
}

func (c *Compactor) logf(format string, args ...interface{}) {
	if c.Logf != nil {
		c.Logf(format, args...)
	}
}

// Compact first brings the chain and database mutually current (a generate
// pass catches schema drift, an apply pass brings the database to head), then
// rebuilds the migrations directory around a single genesis migration and
// resets the version table to it in one transaction.
func (c *Compactor) Compact(ctx context.Context) (*Result, error) {
	drift, err := c.Planner.Generate(ctx, "ensuring_current", false)
	if err != nil {
		return nil, err
	}
	if !drift.NoChanges {
		c.logf("captured outstanding schema drift in %s", drift.Path)
	}
	if _, err := c.Applier.Apply(ctx); err != nil {
		return nil, err
	}

	if err := c.Planner.Fs.RemoveAll(c.Planner.MigrationsDir); err != nil {
		return nil, fmt.Errorf("failed to purge migrations directory: %w", err)
	}

	compacted, err := c.Planner.Generate(ctx, "compacted_initial", false)
	if err != nil {
		return nil, err
	}
	if compacted.NoChanges {
		return nil, fmt.Errorf("declarative schema is empty: nothing to compact, migrations directory was purged")
	}
	c.logf("compacted history into %s", compacted.Path)

	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin version reset: %w", err)
	}
	defer tx.Rollback()

	if err := c.History.Truncate(ctx, tx); err != nil {
		return nil, err
	}
	if err := c.History.Record(ctx, tx, compacted.Version); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit version reset: %w", err)
	}

	return compacted, nil
}
