package config

import (
	"fmt"
	"sync"
)

var (
	// globalManager is the singleton configuration manager instance
	globalManager *Manager
	globalMu      sync.Mutex
)

// Initialize creates the global configuration manager from the file at
// configPath, loads it and applies BROWSERPOOL_* environment overrides. It
// should be called once at startup.
func Initialize(configPath string) error {
	store, err := NewFileStore(configPath)
	if err != nil {
		return err
	}

	browser := NewBrowserSection()
	manager := NewManager(store)
	if err := manager.RegisterSection(browser); err != nil {
		return err
	}
	if err := manager.LoadAll(); err != nil {
		return err
	}
	if err := ApplyEnv(browser); err != nil {
		return err
	}
	if err := browser.Validate(); err != nil {
		return fmt.Errorf("invalid browser configuration: %w", err)
	}

	globalMu.Lock()
	globalManager = manager
	globalMu.Unlock()
	return nil
}

// Global returns the global configuration manager.
// Panics if Initialize has not been called.
func Global() *Manager {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalManager == nil {
		panic("config not initialized: call config.Initialize first")
	}
	return globalManager
}

// IsInitialized returns true if the global configuration has been initialized.
func IsInitialized() bool {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalManager != nil
}

// GetBrowser returns the browser section from global config.
// Returns nil if config is not initialized.
func GetBrowser() *BrowserSection {
	if !IsInitialized() {
		return nil
	}

	section, ok := Global().GetSection(SectionIDBrowser)
	if !ok {
		return nil
	}

	browser, ok := section.(*BrowserSection)
	if !ok {
		return nil
	}
	return browser
}
