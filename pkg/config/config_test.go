package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetGlobal() {
	globalMu.Lock()
	globalManager = nil
	globalMu.Unlock()
}

func TestInitialize(t *testing.T) {
	t.Cleanup(resetGlobal)

	t.Run("registers the browser section", func(t *testing.T) {
		resetGlobal()
		assert.Nil(t, GetBrowser())

		require.NoError(t, Initialize(filepath.Join(t.TempDir(), "config.json")))
		require.True(t, IsInitialized())

		browser := GetBrowser()
		require.NotNil(t, browser)
		assert.Equal(t, 5, browser.MaxSessions)
		assert.Equal(t, "playwright", browser.GetEngine())
	})

	t.Run("loads persisted values", func(t *testing.T) {
		resetGlobal()
		path := filepath.Join(t.TempDir(), "config.json")
		content := `{"version":"1.0","sections":{"browser":{"max_sessions":2,"allowed_domains":["example.com"],"engine":"rod"}}}`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		require.NoError(t, Initialize(path))
		browser := GetBrowser()
		require.NotNil(t, browser)
		assert.Equal(t, 2, browser.MaxSessions)
		assert.Equal(t, []string{"example.com"}, browser.AllowedDomains)
		assert.Equal(t, "rod", browser.GetEngine())
	})

	t.Run("rejects malformed section data", func(t *testing.T) {
		resetGlobal()
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"sections":{"browser":{"max_sessions":"many"}}}`), 0644))

		assert.Error(t, Initialize(path))
		assert.False(t, IsInitialized())
	})
}

func TestGlobal_PanicsWhenUninitialized(t *testing.T) {
	resetGlobal()
	assert.Panics(t, func() { Global() })
}
