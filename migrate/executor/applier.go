// Package executor applies pending migrations to the target database.
package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/afero"

	"github.com/pgshift/pgshift/migrate/chain"
	"github.com/pgshift/pgshift/migrate/history"
)

// ErrApplyFailed means a migration body or its version record failed. The run
// stops at the failing migration; everything applied before it stays recorded
// and the rest stays pending, so rerunning the same command resumes cleanly.
var ErrApplyFailed = errors.New("failed to apply migration")

// Applier validates the chain against recorded history and applies the
// pending suffix in chain order, one transaction per migration.
type Applier struct {
	DB            *sql.DB
	Fs            afero.Fs
	MigrationsDir string
	History       *history.Manager

	// DryRun reports what would be applied without touching the database.
	DryRun bool
	// RunOnboard executes onboarding bodies instead of only recording them.
	// Meant for development databases that start empty.
	RunOnboard bool

	// Logf receives per-migration progress lines. Nil discards them.
	Logf func(format string, args ...interface{})
}

// Result describes one apply run.
type Result struct {
	// Applied migrations, in the order they were committed. In a dry run this
	// holds what would have been applied instead.
	Applied []chain.MigrationFile
	// Skipped is the number of chain entries already recorded.
	Skipped int
}

func (a *Applier) logf(format string, args ...interface{}) {
	if a.Logf != nil {
		a.Logf(format, args...)
	}
}

// Apply loads and validates the chain, checks recorded history for
// divergence, and applies every pending migration in chain order. Each
// migration's body execution and version record commit atomically; a failure
// stops the run immediately.
func (a *Applier) Apply(ctx context.Context) (*Result, error) {
	ch, err := chain.Load(a.Fs, a.MigrationsDir)
	if err != nil {
		return nil, err
	}

	recorded, err := a.History.RecordedVersions(ctx)
	if err != nil {
		return nil, err
	}
	if err := history.CheckConsistency(ch, recorded); err != nil {
		return nil, err
	}

	// With consistency established, the recorded versions are exactly the
	// chain's first len(recorded) entries.
	pending := ch.Files[len(recorded):]
	result := &Result{Skipped: len(recorded)}

	if a.DryRun {
		for _, file := range pending {
			a.logf("would apply %s", file.Path)
		}
		result.Applied = pending
		return result, nil
	}

	if len(pending) > 0 {
		if err := a.History.EnsureTable(ctx); err != nil {
			return nil, err
		}
	}

	for _, file := range pending {
		a.logf("applying %s", file.Path)
		if err := a.applyOne(ctx, file); err != nil {
			return result, err
		}
		result.Applied = append(result.Applied, file)
	}
	return result, nil
}

func (a *Applier) applyOne(ctx context.Context, file chain.MigrationFile) error {
	tx, err := a.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %s: begin transaction: %v", ErrApplyFailed, file.Version, err)
	}
	defer tx.Rollback()

	if !file.Onboard || a.RunOnboard {
		body, err := file.Body(a.Fs)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrApplyFailed, file.Version, err)
		}
		if _, err := tx.ExecContext(ctx, body); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrApplyFailed, file.Version, err)
		}
	}

	if err := a.History.Record(ctx, tx, file.Version); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrApplyFailed, file.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %s: commit: %v", ErrApplyFailed, file.Version, err)
	}
	return nil
}
