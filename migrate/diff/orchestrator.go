package diff

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"github.com/pgshift/pgshift/internal/pgconn"
	"github.com/pgshift/pgshift/migrate/chain"
	"github.com/pgshift/pgshift/migrate/history"
	"github.com/pgshift/pgshift/migrate/shadow"
)

// Backend names one of the three schema states that can be diffed against
// each other.
type Backend string

const (
	// BackendMigrations is the state reached by replaying the migration chain.
	BackendMigrations Backend = "migrations"
	// BackendSchema is the state described by the declarative schema files.
	BackendSchema Backend = "schema"
	// BackendDatabase is the live target database.
	BackendDatabase Backend = "database"
)

// ParseBackend parses a backend name from the command line.
func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case BackendMigrations, BackendSchema, BackendDatabase:
		return Backend(s), nil
	}
	return "", fmt.Errorf("unknown backend %q: want %s, %s or %s",
		s, BackendMigrations, BackendSchema, BackendDatabase)
}

// ShadowManager is the slice of shadow database lifecycle the orchestrator
// needs. *shadow.Manager implements it; tests substitute a fake.
type ShadowManager interface {
	Create(ctx context.Context, suffix string) (*shadow.Database, error)
	Drop(ctx context.Context, db *shadow.Database) error
	EnsureVersionTable(ctx context.Context, db *shadow.Database) error
	PopulateFromChain(ctx context.Context, db *shadow.Database, fs afero.Fs, files []chain.MigrationFile) error
	PopulateFromSchemaDir(ctx context.Context, db *shadow.Database, fs afero.Fs, dir string) error
}

// Orchestrator materializes schema states into ephemeral databases and diffs
// them. Every ephemeral database it creates is dropped on every exit path;
// drop failures are logged and surfaced via Logf without masking the primary
// result, since the orphan sweep can recover them later.
type Orchestrator struct {
	Differ    Differ
	Shadows   ShadowManager
	Fs        afero.Fs
	SchemaDir string

	// Target and History are only needed when diffing against the live
	// database.
	Target  pgconn.Config
	History *history.Manager

	// Logf receives drop-failure warnings. Nil discards them.
	Logf func(format string, args ...interface{})
}

func (o *Orchestrator) logf(format string, args ...interface{}) {
	if o.Logf != nil {
		o.Logf(format, args...)
	}
}

// ChainVsSchema diffs the state reached by replaying the chain against the
// state described by the declarative schema directory. Both sides are
// materialized in ephemeral databases; the live target is never touched.
func (o *Orchestrator) ChainVsSchema(ctx context.Context, ch *chain.Chain) (string, error) {
	return o.between(ctx, ch, BackendMigrations, BackendSchema, false)
}

// Between diffs any two of the three schema states. When the live database is
// one side and it carries a version table, the shadow sides get an empty
// version table too, so the table itself never shows up as a difference.
func (o *Orchestrator) Between(ctx context.Context, ch *chain.Chain, source, target Backend) (string, error) {
	if source == target {
		return "", fmt.Errorf("cannot diff %s against itself", source)
	}

	needVersionTable := false
	if source == BackendDatabase || target == BackendDatabase {
		if o.History == nil {
			return "", fmt.Errorf("diffing against the live database requires a database connection")
		}
		exists, err := o.History.TableExists(ctx)
		if err != nil {
			return "", err
		}
		needVersionTable = exists
	}

	return o.between(ctx, ch, source, target, needVersionTable)
}

func (o *Orchestrator) between(ctx context.Context, ch *chain.Chain, source, target Backend, needVersionTable bool) (string, error) {
	sourceCfg, cleanupSource, err := o.materialize(ctx, ch, source, needVersionTable)
	if err != nil {
		return "", err
	}
	defer cleanupSource()

	targetCfg, cleanupTarget, err := o.materialize(ctx, ch, target, needVersionTable)
	if err != nil {
		return "", err
	}
	defer cleanupTarget()

	return o.Differ.Diff(ctx, sourceCfg, targetCfg)
}

// materialize turns a backend into a connectable schema state. The returned
// cleanup drops any ephemeral database that was created and must run on every
// exit path.
func (o *Orchestrator) materialize(ctx context.Context, ch *chain.Chain, backend Backend, needVersionTable bool) (pgconn.Config, func(), error) {
	noop := func() {}

	if backend == BackendDatabase {
		return o.Target, noop, nil
	}

	db, err := o.Shadows.Create(ctx, string(backend))
	if err != nil {
		return pgconn.Config{}, noop, err
	}
	cleanup := func() {
		if err := o.Shadows.Drop(ctx, db); err != nil {
			o.logf("%v; run the clean command to sweep it", err)
		}
	}

	if needVersionTable {
		if err := o.Shadows.EnsureVersionTable(ctx, db); err != nil {
			cleanup()
			return pgconn.Config{}, noop, err
		}
	}

	switch backend {
	case BackendMigrations:
		err = o.Shadows.PopulateFromChain(ctx, db, o.Fs, ch.Files)
	case BackendSchema:
		err = o.Shadows.PopulateFromSchemaDir(ctx, db, o.Fs, o.SchemaDir)
	}
	if err != nil {
		cleanup()
		return pgconn.Config{}, noop, err
	}

	return db.Config, cleanup, nil
}
