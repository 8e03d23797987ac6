// Package diff computes SQL deltas between two database states by invoking
// the external migra tool, and orchestrates the ephemeral databases that
// materialize those states.
package diff

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	goversion "github.com/hashicorp/go-version"

	"github.com/pgshift/pgshift/internal/debug"
	"github.com/pgshift/pgshift/internal/pgconn"
)

// ErrDiffTool means the external diff tool could not run or reported a
// failure. An empty diff and a failed diff must never be conflated, so this is
// always surfaced.
var ErrDiffTool = errors.New("diff tool failed")

// Differ computes the SQL needed to turn source into target. An empty result
// means the two are equivalent.
type Differ interface {
	Diff(ctx context.Context, source, target pgconn.Config) (string, error)
}

// MinMigraVersion is the oldest migra release with the flags this tool
// depends on.
const MinMigraVersion = "3.0.0"

// MigraDiffer shells out to migra.
type MigraDiffer struct {
	// Binary is the migra executable, "migra" by default.
	Binary string
	// WithPrivileges includes grant/revoke statements in the diff.
	WithPrivileges bool
	// OnlySchema restricts the diff to one schema. Mutually exclusive with
	// ExcludeSchema.
	OnlySchema string
	// ExcludeSchema leaves one schema out of the diff.
	ExcludeSchema string
}

func (d *MigraDiffer) binary() string {
	if d.Binary == "" {
		return "migra"
	}
	return d.Binary
}

func (d *MigraDiffer) args(source, target pgconn.Config) []string {
	args := []string{"--unsafe"}
	if d.WithPrivileges {
		args = append(args, "--with-privileges")
	}
	if d.OnlySchema != "" {
		args = append(args, "--schema", d.OnlySchema)
	}
	if d.ExcludeSchema != "" {
		args = append(args, "--exclude_schema", d.ExcludeSchema)
	}
	return append(args, source.URL(), target.URL())
}

// Diff runs migra against the two connection targets and returns the trimmed
// SQL delta. migra exits 0 when the targets match and 2 when a diff exists;
// anything written to stderr is treated as failure.
func (d *MigraDiffer) Diff(ctx context.Context, source, target pgconn.Config) (string, error) {
	cmd := exec.CommandContext(ctx, d.binary(), d.args(source, target)...)
	debug.Debug("running diff tool", "binary", d.binary(), "source", source.Redacted(), "target", target.Redacted())
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if stderr.Len() > 0 {
		return "", fmt.Errorf("%w: %s: %s", ErrDiffTool, d.binary(), strings.TrimSpace(stderr.String()))
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) || exitErr.ExitCode() != 2 {
			return "", fmt.Errorf("%w: %s: %v", ErrDiffTool, d.binary(), runErr)
		}
	}
	return strings.TrimSpace(stdout.String()), nil
}

// CheckVersion verifies the installed migra is recent enough. It runs once per
// invocation, before any ephemeral databases are created, so a missing binary
// fails fast instead of mid-diff.
func (d *MigraDiffer) CheckVersion(ctx context.Context) error {
	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, d.binary(), "--version")
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s is not runnable (is it installed?): %v", ErrDiffTool, d.binary(), err)
	}

	fields := strings.Fields(strings.TrimSpace(stdout.String()))
	if len(fields) == 0 {
		return fmt.Errorf("%w: %s --version produced no output", ErrDiffTool, d.binary())
	}
	installed, err := goversion.NewVersion(fields[len(fields)-1])
	if err != nil {
		return fmt.Errorf("%w: cannot parse %s version %q: %v", ErrDiffTool, d.binary(), fields[len(fields)-1], err)
	}
	minimum := goversion.Must(goversion.NewVersion(MinMigraVersion))
	if installed.LessThan(minimum) {
		return fmt.Errorf("%w: %s %s is older than the required %s", ErrDiffTool, d.binary(), installed, minimum)
	}
	return nil
}
