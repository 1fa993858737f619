package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFileStore(t *testing.T) {
	t.Run("missing file yields empty store", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")

		store, err := NewFileStore(path)
		require.NoError(t, err)
		assert.Equal(t, path, store.Path())
		assert.False(t, store.IsModified())

		all, err := store.GetAll()
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("default path lives under the home directory", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)

		store, err := NewFileStore("")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, ".browserpool", "config.json"), store.Path())
	})

	t.Run("corrupt file is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

		_, err := NewFileStore(path)
		assert.Error(t, err)
	})
}

func TestFileStore_RoundTrip(t *testing.T) {
	for _, name := range []string{"config.json", "config.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)

			store, err := NewFileStore(path)
			require.NoError(t, err)
			require.NoError(t, store.SetSection("browser", map[string]interface{}{
				"engine":       "rod",
				"max_sessions": 3,
				"headless":     false,
			}))
			assert.True(t, store.IsModified())

			require.NoError(t, store.Save())
			assert.False(t, store.IsModified())
			_, err = os.Stat(path + ".tmp")
			assert.True(t, os.IsNotExist(err), "temp file is renamed away")

			reloaded, err := NewFileStore(path)
			require.NoError(t, err)
			section, err := reloaded.GetSection("browser")
			require.NoError(t, err)
			assert.Equal(t, "rod", section["engine"])
			assert.Equal(t, false, section["headless"])
			assert.EqualValues(t, 3, section["max_sessions"])
		})
	}
}

func TestFileStore_Copies(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)

	data := map[string]interface{}{"key": "value"}
	require.NoError(t, store.SetSection("s", data))
	data["key"] = "changed"

	got, err := store.GetSection("s")
	require.NoError(t, err)
	assert.Equal(t, "value", got["key"])

	got["key"] = "mutated"
	again, err := store.GetSection("s")
	require.NoError(t, err)
	assert.Equal(t, "value", again["key"])

	empty, err := store.GetSection("missing")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestFileStore_SetAll(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)

	require.NoError(t, store.SetSection("old", map[string]interface{}{"a": 1}))
	require.NoError(t, store.SetAll(map[string]map[string]interface{}{
		"new": {"b": 2},
	}))

	all, err := store.GetAll()
	require.NoError(t, err)
	assert.NotContains(t, all, "old")
	assert.Equal(t, 2, all["new"]["b"])
}

func TestFileStore_SaveWaitsForLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	other := flock.New(path + ".lock")
	locked, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, locked)

	released := make(chan struct{})
	go func() {
		time.Sleep(200 * time.Millisecond)
		_ = other.Unlock()
		close(released)
	}()

	require.NoError(t, store.SetSection("browser", map[string]interface{}{"engine": "rod"}))
	require.NoError(t, store.Save())
	<-released
	assert.FileExists(t, path)
}
