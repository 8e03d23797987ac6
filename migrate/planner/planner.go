// Package planner produces migration files: new chain links from schema
// drift, and compacted single-file histories.
package planner

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/pgshift/pgshift/migrate/chain"
)

// SchemaDiffer is the slice of the diff orchestrator the planner needs.
// *diff.Orchestrator implements it; tests substitute a fake diff producer.
type SchemaDiffer interface {
	ChainVsSchema(ctx context.Context, ch *chain.Chain) (string, error)
}

// Planner generates migration files from the delta between the chain's state
// and the declarative schema.
type Planner struct {
	Fs            afero.Fs
	MigrationsDir string
	Differ        SchemaDiffer
}

// Result describes one generate run.
type Result struct {
	// NoChanges is set when the chain already matches the schema and no
	// onboarding was requested. Not an error: generate treats it as a no-op,
	// check treats it as success, compact treats its absence as drift.
	NoChanges bool
	Version   string
	Path      string
}

// Generate diffs the chain's state against the declarative schema and, when
// they differ, writes a new migration extending the current head. When
// onboard is set the migration is written with an empty body and the reserved
// onboarding predecessor instead, to adopt a pre-existing database into
// version tracking.
func (p *Planner) Generate(ctx context.Context, description string, onboard bool) (*Result, error) {
	if err := p.Fs.MkdirAll(p.MigrationsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}
	ch, err := chain.Load(p.Fs, p.MigrationsDir)
	if err != nil {
		return nil, err
	}

	if onboard && !ch.Empty() {
		return nil, fmt.Errorf("cannot generate an onboarding migration: %d migrations already exist", len(ch.Files))
	}

	body := ""
	if !onboard {
		body, err = p.Differ.ChainVsSchema(ctx, ch)
		if err != nil {
			return nil, err
		}
		if body == "" {
			return &Result{NoChanges: true}, nil
		}
		body += "\n"
	}

	version := chain.NewVersion(ch.Head())
	name := chain.Filename(version, ch.Head(), chain.Slug(description), onboard)
	path := filepath.Join(p.MigrationsDir, name)
	if err := afero.WriteFile(p.Fs, path, []byte(body), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write migration file: %w", err)
	}

	return &Result{Version: version, Path: path}, nil
}
