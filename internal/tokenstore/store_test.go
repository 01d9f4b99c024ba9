// ABOUTME: Tests for file and memory token stores
// ABOUTME: Covers overwrite, clear, permissions and XDG path resolution

package tokenstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_SetGetClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token")
	store := NewFileStore(path)

	_, ok := store.Get()
	assert.False(t, ok, "fresh store should be empty")

	require.NoError(t, store.Set("first"))
	got, ok := store.Get()
	require.True(t, ok)
	assert.Equal(t, "first", got)

	// Last write wins
	require.NoError(t, store.Set("second"))
	got, ok = store.Get()
	require.True(t, ok)
	assert.Equal(t, "second", got)

	require.NoError(t, store.Clear())
	_, ok = store.Get()
	assert.False(t, ok)

	// Clearing twice is fine
	require.NoError(t, store.Clear())
}

func TestFileStore_Permissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	store := NewFileStore(path)
	require.NoError(t, store.Set("secret"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStore_SurvivesNewInstance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, NewFileStore(path).Set("persisted"))

	got, ok := NewFileStore(path).Get()
	require.True(t, ok)
	assert.Equal(t, "persisted", got)
}

func TestFileStore_BlankFileIsAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))

	_, ok := NewFileStore(path).Get()
	assert.False(t, ok)
}

func TestDefaultPath_XDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "campus-assistant", "token"), path)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()

	_, ok := store.Get()
	assert.False(t, ok)

	require.NoError(t, store.Set("abc"))
	got, ok := store.Get()
	assert.True(t, ok)
	assert.Equal(t, "abc", got)

	require.NoError(t, store.Clear())
	_, ok = store.Get()
	assert.False(t, ok)
}
