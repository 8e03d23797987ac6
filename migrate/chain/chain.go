// Package chain models migration history as a singly-linked version chain and
// validates that the on-disk migration files form exactly one coherent line of
// history from genesis to head.
package chain

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// MigrationFile is one migration parsed from its filename. The SQL body stays
// on disk until it is needed.
type MigrationFile struct {
	Path        string
	Version     string
	Previous    string // Genesis when this is the first migration
	Description string
	Onboard     bool
}

// Body reads the migration's SQL text.
func (f MigrationFile) Body(fs afero.Fs) (string, error) {
	data, err := afero.ReadFile(fs, f.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read migration body: %w", err)
	}
	return string(data), nil
}

// Chain is the validated, linearly-ordered sequence of migrations from genesis
// to head.
type Chain struct {
	Files []MigrationFile

	index map[string]int // version -> position in Files
}

// ListSQLFiles returns every .sql file under dir (recursively), sorted by path.
// A missing directory yields an empty list.
func ListSQLFiles(fs afero.Fs, dir string) ([]string, error) {
	var files []string
	err := afero.Walk(fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".sql" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list sql files in %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// Load parses every .sql file in dir and links them into a Chain.
//
// Ordering is derived purely from the predecessor links, never from filename
// sort order, so chains whose timestamps were minted out of order (clock skew
// between machines) still resolve deterministically.
func Load(fs afero.Fs, dir string) (*Chain, error) {
	paths, err := ListSQLFiles(fs, dir)
	if err != nil {
		return nil, err
	}

	byVersion := make(map[string]MigrationFile, len(paths))
	successors := make(map[string][]string, len(paths))

	for _, path := range paths {
		file, err := parseFilename(path, filepath.Base(path))
		if err != nil {
			return nil, err
		}
		if prior, ok := byVersion[file.Version]; ok {
			return nil, fmt.Errorf("%w: %s appears in both %s and %s",
				ErrDuplicateVersion, file.Version, prior.Path, file.Path)
		}
		byVersion[file.Version] = file
		successors[file.Previous] = append(successors[file.Previous], file.Version)
	}

	// Every predecessor must resolve to a real migration or the sentinel.
	for _, file := range byVersion {
		if file.Previous == Genesis {
			continue
		}
		if _, ok := byVersion[file.Previous]; !ok {
			return nil, fmt.Errorf("%w: %s extends %s, which matches no migration file",
				ErrDanglingPredecessor, file.Path, file.Previous)
		}
	}

	// A predecessor with two successors is a fork; two genesis entries are a
	// special case of the same malformation with its own name.
	for previous, versions := range successors {
		if len(versions) < 2 {
			continue
		}
		sort.Strings(versions)
		if previous == Genesis {
			return nil, fmt.Errorf("%w: %s", ErrMultipleGenesis, strings.Join(versions, ", "))
		}
		return nil, fmt.Errorf("%w: %s is the predecessor of both %s",
			ErrForkedHistory, previous, strings.Join(versions, " and "))
	}

	if len(byVersion) > 0 && len(successors[Genesis]) == 0 {
		// Every file has a resolvable predecessor but none starts the chain.
		return nil, fmt.Errorf("%w: no migration starts from the %s sentinel", ErrCycleDetected, Genesis)
	}

	c := &Chain{index: make(map[string]int, len(byVersion))}
	if len(byVersion) > 0 {
		at := successors[Genesis][0]
		for {
			file := byVersion[at]
			c.index[at] = len(c.Files)
			c.Files = append(c.Files, file)
			next, ok := successors[at]
			if !ok {
				break
			}
			at = next[0]
		}
	}
	if len(c.Files) != len(byVersion) {
		unreachable := make([]string, 0, len(byVersion)-len(c.Files))
		for version := range byVersion {
			if _, ok := c.index[version]; !ok {
				unreachable = append(unreachable, version)
			}
		}
		sort.Strings(unreachable)
		return nil, fmt.Errorf("%w: %s are not reachable from genesis", ErrCycleDetected, strings.Join(unreachable, ", "))
	}

	return c, nil
}

// Empty reports whether the chain has no migrations.
func (c *Chain) Empty() bool {
	return len(c.Files) == 0
}

// Head returns the most recent version, or "" for an empty chain.
func (c *Chain) Head() string {
	if c.Empty() {
		return ""
	}
	return c.Files[len(c.Files)-1].Version
}

// Versions returns every version in chain order.
func (c *Chain) Versions() []string {
	versions := make([]string, len(c.Files))
	for i, file := range c.Files {
		versions[i] = file.Version
	}
	return versions
}

// Contains reports whether version is part of the chain.
func (c *Chain) Contains(version string) bool {
	_, ok := c.index[version]
	return ok
}

// Prefix returns the chain entries from genesis up to and including version.
// An empty version yields an empty prefix.
func (c *Chain) Prefix(version string) ([]MigrationFile, error) {
	if version == "" {
		return nil, nil
	}
	i, ok := c.index[version]
	if !ok {
		return nil, fmt.Errorf("version %s is not part of the migration chain", version)
	}
	return c.Files[:i+1], nil
}

// PendingAfter returns the strict suffix of the chain after version. An empty
// version means the whole chain is pending.
func (c *Chain) PendingAfter(version string) ([]MigrationFile, error) {
	if version == "" {
		return c.Files, nil
	}
	i, ok := c.index[version]
	if !ok {
		return nil, fmt.Errorf("version %s is not part of the migration chain", version)
	}
	return c.Files[i+1:], nil
}
