package store_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barambur26/go-aidock-client/store"
)

func TestFileBackendRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "session.json")
	backend := store.NewFileBackend(path)

	_, found, err := backend.Load()
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, backend.Save([]byte(`{"access_token":"a"}`)))

	data, found, err := backend.Load()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"access_token":"a"}`, string(data))

	require.NoError(t, backend.Clear())
	_, found, err = backend.Load()
	require.NoError(t, err)
	assert.False(t, found)

	// Clearing again is not an error.
	require.NoError(t, backend.Clear())
}

func TestFileBackendPermissions(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not meaningful on windows")
	}

	path := filepath.Join(t.TempDir(), "session.json")
	backend := store.NewFileBackend(path)
	require.NoError(t, backend.Save([]byte("secret")))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileBackendOverwrite(t *testing.T) {
	t.Parallel()

	backend := store.NewFileBackend(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, backend.Save([]byte("first")))
	require.NoError(t, backend.Save([]byte("second")))

	data, found, err := backend.Load()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "second", string(data))
}

func TestMemoryBackendRoundTrip(t *testing.T) {
	t.Parallel()

	backend := store.NewMemoryBackend()

	_, found, err := backend.Load()
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, backend.Save([]byte("payload")))
	data, found, err := backend.Load()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "payload", string(data))

	// Loaded data is a copy; mutating it must not corrupt the backend.
	data[0] = 'X'
	fresh, _, err := backend.Load()
	require.NoError(t, err)
	assert.Equal(t, "payload", string(fresh))

	require.NoError(t, backend.Clear())
	_, found, err = backend.Load()
	require.NoError(t, err)
	assert.False(t, found)
}
