package chain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Version identifiers are 14-character UTC timestamps (YYYYMMDDHHMMSS). They
// sort lexically in mint order, but chain ordering never relies on that.
const versionLength = 14

const versionLayout = "20060102150405"

// Genesis is the reserved predecessor marker for the first migration.
const Genesis = "null"

// OnboardToken is the reserved predecessor token that marks an onboarding
// migration, one whose body is recorded but never executed.
const OnboardToken = "onboard"

var versionPattern = regexp.MustCompile(`^[0-9]{14}$`)

// IsVersion reports whether s is a well-formed version identifier.
func IsVersion(s string) bool {
	return versionPattern.MatchString(s)
}

// NewVersion mints a fresh version identifier strictly greater than head.
// Clock skew relative to an existing head is papered over by bumping the head
// instead, so minted versions stay monotonic per migrations directory.
func NewVersion(head string) string {
	v := time.Now().UTC().Format(versionLayout)
	if head == "" || v > head {
		return v
	}
	n, err := strconv.ParseUint(head, 10, 64)
	if err != nil {
		return v
	}
	return fmt.Sprintf("%014d", n+1)
}

var nonWord = regexp.MustCompile(`\W+`)

// Slug converts a free-text description into the filename-safe form used in
// migration filenames.
func Slug(description string) string {
	return strings.ToLower(nonWord.ReplaceAllString(description, "_"))
}

// Filename renders the on-disk name for a migration:
// {version}.{previous}.{description}.sql, with the onboard token or the
// genesis sentinel in the predecessor slot.
func Filename(version, previous, slug string, onboard bool) string {
	token := previous
	if onboard {
		token = OnboardToken
	} else if token == "" {
		token = Genesis
	}
	return fmt.Sprintf("%s.%s.%s.sql", version, token, slug)
}

// parseFilename parses {version}.{previous}.{description}.sql into a
// MigrationFile. The path is retained so the body can be read later.
func parseFilename(path, name string) (MigrationFile, error) {
	base, ok := strings.CutSuffix(name, ".sql")
	if !ok {
		return MigrationFile{}, fmt.Errorf("%w: %s: missing .sql extension", ErrMalformedFilename, name)
	}
	parts := strings.SplitN(base, ".", 3)
	if len(parts) != 3 {
		return MigrationFile{}, fmt.Errorf("%w: %s: want {version}.{previous}.{description}.sql", ErrMalformedFilename, name)
	}
	version, previous, description := parts[0], parts[1], parts[2]

	if !IsVersion(version) {
		return MigrationFile{}, fmt.Errorf("%w: %s: version %q must be a 14-digit timestamp", ErrMalformedFilename, name, version)
	}

	file := MigrationFile{
		Path:        path,
		Version:     version,
		Description: description,
	}
	switch previous {
	case Genesis:
		file.Previous = Genesis
	case OnboardToken:
		file.Previous = Genesis
		file.Onboard = true
	default:
		if !IsVersion(previous) {
			return MigrationFile{}, fmt.Errorf("%w: %s: predecessor %q must be a 14-digit timestamp, %q or %q",
				ErrMalformedFilename, name, previous, Genesis, OnboardToken)
		}
		file.Previous = previous
	}
	if file.Version == file.Previous {
		return MigrationFile{}, fmt.Errorf("%w: %s: migration cannot be its own predecessor", ErrMalformedFilename, name)
	}
	return file, nil
}
