package shadow

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewName(t *testing.T) {
	name := newName("app", "migrations")
	assert.Regexp(t, regexp.MustCompile(`^app_shadow_\d+_migrations_[0-9a-f]{8}$`), name)
}

func TestNewNameIsRandomized(t *testing.T) {
	// Names carry entropy beyond the timestamp so two runs in the same second
	// do not collide.
	seen := map[string]bool{}
	for i := 0; i < 32; i++ {
		name := newName("app", "schema")
		assert.False(t, seen[name], "duplicate name %s", name)
		seen[name] = true
	}
}

func TestMarkerIsStable(t *testing.T) {
	// The orphan sweep matches this string exactly; changing it would orphan
	// every database created by older builds.
	assert.Equal(t, "EPHEMERAL DB CREATED BY pgshift", Marker)
}
