package cli

import (
	"fmt"
	"time"
)

// DefaultBinary is the provisioning CLI invoked when no binary is configured.
const DefaultBinary = "diagrid"

// DefaultAlreadyExistsMarker is the text the CLI prints when a create call finds the
// resource already present.
const DefaultAlreadyExistsMarker = "already exists"

// Config holds the settings of the provisioning CLI.
type Config struct {
	// Binary is the executable name or path (default: diagrid)
	Binary string

	// WorkingDir is the directory commands run in. Empty means the current directory.
	WorkingDir string

	// Env holds extra environment variables passed to the CLI.
	Env map[string]string

	// CommandTimeout bounds a single invocation. Zero means no bound beyond the caller's context.
	CommandTimeout time.Duration

	// WaitDelay is how long to wait for output pipes to drain after the process is
	// killed on cancellation.
	WaitDelay time.Duration

	// AlreadyExistsMarkers are substrings that turn a failed create call into a success.
	// Matching is case-sensitive.
	AlreadyExistsMarkers []string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Binary:               DefaultBinary,
		Env:                  make(map[string]string),
		CommandTimeout:       0,
		WaitDelay:            2 * time.Second,
		AlreadyExistsMarkers: []string{DefaultAlreadyExistsMarker},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Binary == "" {
		return fmt.Errorf("binary is required")
	}

	if c.CommandTimeout < 0 {
		return fmt.Errorf("invalid command timeout: %s", c.CommandTimeout)
	}

	if c.WaitDelay < 0 {
		return fmt.Errorf("invalid wait delay: %s", c.WaitDelay)
	}

	for _, m := range c.AlreadyExistsMarkers {
		if m == "" {
			return fmt.Errorf("already-exists markers must not be empty")
		}
	}

	return nil
}
