// Package commands implements the pgshift CLI commands.
package commands

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgshift/pgshift/internal/config"
	"github.com/pgshift/pgshift/internal/debug"
	"github.com/pgshift/pgshift/internal/pgconn"
	"github.com/pgshift/pgshift/internal/ui"
	"github.com/pgshift/pgshift/migrate/diff"
	"github.com/pgshift/pgshift/migrate/executor"
	"github.com/pgshift/pgshift/migrate/history"
	"github.com/pgshift/pgshift/migrate/planner"
	"github.com/pgshift/pgshift/migrate/shadow"
)

// env bundles the pieces every command wires together from configuration.
type env struct {
	cfg    *config.Config
	target pgconn.Config
}

func newEnv(cfg *config.Config) (*env, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("no database url configured: set PG_URL, DATABASE_URL or database_url in .pgshift.yaml")
	}
	target, err := pgconn.Parse(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if target.Database == "" {
		return nil, fmt.Errorf("connection url %s has no database name", target.Redacted())
	}
	return &env{cfg: cfg, target: target}, nil
}

func (e *env) openTarget(ctx context.Context) (*sql.DB, error) {
	debug.Debug("connecting to target", "url", e.target.Redacted())
	return pgconn.Connect(ctx, e.target)
}

func (e *env) differ() *diff.MigraDiffer {
	return &diff.MigraDiffer{
		Binary:         e.cfg.MigraBinary,
		WithPrivileges: !e.cfg.ExcludePrivileges,
		OnlySchema:     e.cfg.OnlySchema,
		ExcludeSchema:  e.cfg.ExcludeSchema,
	}
}

// orchestrator builds the diff orchestrator. hist may be nil when the live
// database is not one of the diff sides.
func (e *env) orchestrator(hist *history.Manager) *diff.Orchestrator {
	return &diff.Orchestrator{
		Differ:    e.differ(),
		Shadows:   shadow.NewManager(e.target),
		Fs:        config.AppFs,
		SchemaDir: e.cfg.SchemaDir,
		Target:    e.target,
		History:   hist,
		Logf:      ui.PrintWarning,
	}
}

func (e *env) planner(orch *diff.Orchestrator) *planner.Planner {
	return &planner.Planner{
		Fs:            config.AppFs,
		MigrationsDir: e.cfg.MigrationsDir,
		Differ:        orch,
	}
}

func (e *env) applier(db *sql.DB, dryRun, runOnboard bool) *executor.Applier {
	return &executor.Applier{
		DB:            db,
		Fs:            config.AppFs,
		MigrationsDir: e.cfg.MigrationsDir,
		History:       history.NewManager(db),
		DryRun:        dryRun,
		RunOnboard:    runOnboard,
		Logf:          ui.PrintDim,
	}
}
