package chain

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	v1 = "20230101000000"
	v2 = "20230102000000"
	v3 = "20230103000000"
	v4 = "20230104000000"
)

func writeMigrations(t *testing.T, names ...string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("migrations", 0o755))
	for _, name := range names {
		require.NoError(t, afero.WriteFile(fs, "migrations/"+name, []byte("select 1;\n"), 0o644))
	}
	return fs
}

func TestLoadEmptyDirectory(t *testing.T) {
	fs := writeMigrations(t)
	c, err := Load(fs, "migrations")
	require.NoError(t, err)
	assert.True(t, c.Empty())
	assert.Equal(t, "", c.Head())
}

func TestLoadMissingDirectory(t *testing.T) {
	c, err := Load(afero.NewMemMapFs(), "migrations")
	require.NoError(t, err)
	assert.True(t, c.Empty())
}

func TestLoadSingleGenesis(t *testing.T) {
	fs := writeMigrations(t, v1+".null.add_fruit.sql")
	c, err := Load(fs, "migrations")
	require.NoError(t, err)
	require.Len(t, c.Files, 1)
	assert.Equal(t, v1, c.Head())
	assert.Equal(t, Genesis, c.Files[0].Previous)
	assert.Equal(t, "add_fruit", c.Files[0].Description)
	assert.False(t, c.Files[0].Onboard)
}

func TestLoadOnboardGenesis(t *testing.T) {
	fs := writeMigrations(t, v1+".onboard.adopt.sql")
	c, err := Load(fs, "migrations")
	require.NoError(t, err)
	require.Len(t, c.Files, 1)
	assert.True(t, c.Files[0].Onboard)
	assert.Equal(t, Genesis, c.Files[0].Previous)
}

func TestLoadLinearChain(t *testing.T) {
	fs := writeMigrations(t,
		v1+".null.one.sql",
		v2+"."+v1+".two.sql",
		v3+"."+v2+".three.sql",
	)
	c, err := Load(fs, "migrations")
	require.NoError(t, err)
	assert.Equal(t, []string{v1, v2, v3}, c.Versions())
	assert.Equal(t, v3, c.Head())
}

func TestLoadOrdersByLinksNotTimestamps(t *testing.T) {
	// Clock skew: the second migration in the chain carries an older
	// timestamp than the first. Link structure must win over lexical order.
	fs := writeMigrations(t,
		v3+".null.first.sql",
		v1+"."+v3+".second.sql",
		v2+"."+v1+".third.sql",
	)
	c, err := Load(fs, "migrations")
	require.NoError(t, err)
	assert.Equal(t, []string{v3, v1, v2}, c.Versions())
	assert.Equal(t, v2, c.Head())
}

func TestLoadIsDeterministic(t *testing.T) {
	fs := writeMigrations(t,
		v2+"."+v1+".two.sql",
		v1+".null.one.sql",
		v4+"."+v3+".four.sql",
		v3+"."+v2+".three.sql",
	)
	first, err := Load(fs, "migrations")
	require.NoError(t, err)
	second, err := Load(fs, "migrations")
	require.NoError(t, err)
	assert.Equal(t, first.Versions(), second.Versions())
	assert.Equal(t, []string{v1, v2, v3, v4}, first.Versions())
}

func TestLoadMalformedFilenames(t *testing.T) {
	tests := []struct {
		name     string
		filename string
	}{
		{"no version parts", "foo.sql"},
		{"missing description", v1 + ".null.sql"},
		{"short version", "2023.null.x.sql"},
		{"non-numeric version", "2023010100000x.null.x.sql"},
		{"bad predecessor token", v1 + ".genesis.x.sql"},
		{"self predecessor", v1 + "." + v1 + ".x.sql"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := writeMigrations(t, tt.filename)
			_, err := Load(fs, "migrations")
			require.ErrorIs(t, err, ErrMalformedFilename)
		})
	}
}

func TestLoadDuplicateVersion(t *testing.T) {
	fs := writeMigrations(t,
		v1+".null.one.sql",
		v1+".onboard.other.sql",
	)
	_, err := Load(fs, "migrations")
	require.ErrorIs(t, err, ErrDuplicateVersion)
	assert.Contains(t, err.Error(), v1)
}

func TestLoadForkedHistory(t *testing.T) {
	fs := writeMigrations(t,
		v1+".null.one.sql",
		v2+"."+v1+".two.sql",
		v3+"."+v1+".rival.sql",
	)
	_, err := Load(fs, "migrations")
	require.ErrorIs(t, err, ErrForkedHistory)
	assert.Contains(t, err.Error(), v1)
}

func TestLoadForkRejectedRegardlessOfTimestamps(t *testing.T) {
	// Both successors are newer than the head; timestamps offer no escape
	// hatch from a fork.
	fs := writeMigrations(t,
		v1+".null.one.sql",
		v3+"."+v1+".a.sql",
		v4+"."+v1+".b.sql",
	)
	_, err := Load(fs, "migrations")
	require.ErrorIs(t, err, ErrForkedHistory)
}

func TestLoadMultipleGenesis(t *testing.T) {
	fs := writeMigrations(t,
		v1+".null.one.sql",
		v2+".null.other.sql",
	)
	_, err := Load(fs, "migrations")
	require.ErrorIs(t, err, ErrMultipleGenesis)
}

func TestLoadDanglingPredecessor(t *testing.T) {
	fs := writeMigrations(t,
		v1+".null.one.sql",
		v3+"."+v2+".lost.sql",
	)
	_, err := Load(fs, "migrations")
	require.ErrorIs(t, err, ErrDanglingPredecessor)
	assert.Contains(t, err.Error(), v2)
}

func TestLoadCycle(t *testing.T) {
	// v2 and v3 reference each other and neither starts from genesis.
	fs := writeMigrations(t,
		v2+"."+v3+".a.sql",
		v3+"."+v2+".b.sql",
	)
	_, err := Load(fs, "migrations")
	require.ErrorIs(t, err, ErrCycleDetected)
}

func TestLoadCycleBesideValidChain(t *testing.T) {
	fs := writeMigrations(t,
		v1+".null.one.sql",
		v2+"."+v3+".a.sql",
		v3+"."+v2+".b.sql",
	)
	_, err := Load(fs, "migrations")
	require.ErrorIs(t, err, ErrCycleDetected)
}

func TestPendingAfter(t *testing.T) {
	fs := writeMigrations(t,
		v1+".null.one.sql",
		v2+"."+v1+".two.sql",
		v3+"."+v2+".three.sql",
	)
	c, err := Load(fs, "migrations")
	require.NoError(t, err)

	all, err := c.PendingAfter("")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	tail, err := c.PendingAfter(v1)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	assert.Equal(t, v2, tail[0].Version)

	none, err := c.PendingAfter(v3)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = c.PendingAfter(v4)
	require.Error(t, err)
}

func TestPrefix(t *testing.T) {
	fs := writeMigrations(t,
		v1+".null.one.sql",
		v2+"."+v1+".two.sql",
		v3+"."+v2+".three.sql",
	)
	c, err := Load(fs, "migrations")
	require.NoError(t, err)

	none, err := c.Prefix("")
	require.NoError(t, err)
	assert.Empty(t, none)

	head, err := c.Prefix(v2)
	require.NoError(t, err)
	require.Len(t, head, 2)
	assert.Equal(t, v1, head[0].Version)
	assert.Equal(t, v2, head[1].Version)

	all, err := c.Prefix(v3)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = c.Prefix(v4)
	require.Error(t, err)
}

func TestPrefixAndPendingAfterPartitionTheChain(t *testing.T) {
	fs := writeMigrations(t,
		v1+".null.one.sql",
		v2+"."+v1+".two.sql",
		v3+"."+v2+".three.sql",
	)
	c, err := Load(fs, "migrations")
	require.NoError(t, err)

	for _, at := range []string{"", v1, v2, v3} {
		applied, err := c.Prefix(at)
		require.NoError(t, err)
		pending, err := c.PendingAfter(at)
		require.NoError(t, err)
		assert.Equal(t, c.Files, append(append([]MigrationFile{}, applied...), pending...))
	}
}

func TestListSQLFilesNested(t *testing.T) {
	fs := afero.NewMemMapFs()
	for _, name := range []string{
		"schema/README",
		"schema/00_base.sql",
		"schema/01_tables/00_tables.sql",
		"schema/01_tables/01_tables/00_tables.sql",
		"schema/02_functions/00_functions.sql",
		"schema/03_indexes.sql",
	} {
		require.NoError(t, afero.WriteFile(fs, name, []byte(""), 0o644))
	}

	files, err := ListSQLFiles(fs, "schema")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"schema/00_base.sql",
		"schema/01_tables/00_tables.sql",
		"schema/01_tables/01_tables/00_tables.sql",
		"schema/02_functions/00_functions.sql",
		"schema/03_indexes.sql",
	}, files)
}
