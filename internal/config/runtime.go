package config

import (
	"os"
	"sync"
)

// RuntimeConfig stores configuration set at runtime via CLI flags.
// These values are not persisted to config files.
type RuntimeConfig struct {
	mu        sync.RWMutex
	presenter string
	noJournal bool
}

var globalRuntime = &RuntimeConfig{}

// SetNoJournal disables the navigation journal for this process regardless
// of the config file.
func SetNoJournal(disabled bool) {
	globalRuntime.mu.Lock()
	defer globalRuntime.mu.Unlock()
	globalRuntime.noJournal = disabled
}

// IsJournalDisabled returns whether the journal was disabled from the CLI.
func IsJournalDisabled() bool {
	globalRuntime.mu.RLock()
	defer globalRuntime.mu.RUnlock()
	return globalRuntime.noJournal
}

// SetPresenter sets the presenter recorded with journal entries.
// If empty, defaults to the current user from $USER environment variable.
func SetPresenter(name string) {
	globalRuntime.mu.Lock()
	defer globalRuntime.mu.Unlock()

	if name == "" {
		name = os.Getenv("USER")
	}
	globalRuntime.presenter = name
}

// GetPresenter returns the presenter identity.
// Returns empty string if not set and $USER is not available.
func GetPresenter() string {
	globalRuntime.mu.RLock()
	defer globalRuntime.mu.RUnlock()
	return globalRuntime.presenter
}
