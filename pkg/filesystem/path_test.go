package filesystem

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeJoin(t *testing.T) {
	base := t.TempDir()

	got, err := SafeJoin(base, "wallet_private.key.age")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "wallet_private.key.age"), got)
}

func TestSafeJoinRejectsTraversal(t *testing.T) {
	base := t.TempDir()

	for _, name := range []string{"../outside", "a/../../b", "/etc/passwd"} {
		_, err := SafeJoin(base, name)
		assert.Error(t, err, "expected rejection for %q", name)
	}
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache", "blobs")
	require.NoError(t, EnsureDir(dir))
	assert.DirExists(t, dir)
}
