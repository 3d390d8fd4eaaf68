package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEnsureKeyGeneratesAndPersists verifies a fresh key is created with
// owner-only permissions and the same key comes back on the next call.
func TestEnsureKeyGeneratesAndPersists(t *testing.T) {
	dir := t.TempDir()

	key, err := EnsureKey(dir)
	require.NoError(t, err)
	assert.Len(t, key, keySize)

	info, err := os.Stat(filepath.Join(dir, keyFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	again, err := EnsureKey(dir)
	require.NoError(t, err)
	assert.Equal(t, key, again)
}

// TestEnsureKeyRejectsCorruptFile verifies a mangled key file surfaces
// as an error instead of silently re-keying the database.
func TestEnsureKeyRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, keyFileName), []byte("not base64!!"), 0600))

	_, err := EnsureKey(dir)
	require.Error(t, err)
}

// TestEnsureKeyRejectsShortKey verifies a truncated key is refused.
func TestEnsureKeyRejectsShortKey(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, keyFileName), []byte("c2hvcnQ="), 0600))

	_, err := EnsureKey(dir)
	require.Error(t, err)
}
