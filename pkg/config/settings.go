package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/diagrid-labs/catalyst-provisioner/pkg/telemetry"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings.
const (
	EnvCLIBinary = "CATALYST_CLI"
	EnvDatabase  = "CATALYST_DB"
	EnvLogLevel  = "CATALYST_LOG_LEVEL"
)

// Settings are the provisioner's runtime settings.
type Settings struct {
	// CLI configures the provisioning CLI.
	CLI CLISettings `yaml:"cli"`

	// Database configures the run history store.
	Database DatabaseSettings `yaml:"database"`

	// Policy configures pre-provisioning policy checks.
	Policy PolicySettings `yaml:"policy"`

	// Telemetry configures logging, metrics and tracing.
	Telemetry *telemetry.Config `yaml:"telemetry" validate:"required"`

	// EnvWaitTimeout bounds how long `env` waits for endpoints and credentials.
	EnvWaitTimeout time.Duration `yaml:"env_wait_timeout" validate:"min=0"`
}

// CLISettings configures the provisioning CLI.
type CLISettings struct {
	// Binary is the executable name or path.
	Binary string `yaml:"binary" validate:"required"`

	// CommandTimeout bounds a single invocation. Zero means unbounded.
	CommandTimeout time.Duration `yaml:"command_timeout" validate:"min=0"`

	// AlreadyExistsMarkers turn a failed create call into an existing resource.
	AlreadyExistsMarkers []string `yaml:"already_exists_markers" validate:"dive,required"`

	// Env holds extra environment variables passed to the CLI.
	Env map[string]string `yaml:"env,omitempty"`
}

// DatabaseSettings configures the run history store.
type DatabaseSettings struct {
	// Path is the SQLite database file. Empty disables run history.
	Path string `yaml:"path"`
}

// PolicySettings configures pre-provisioning policy checks.
type PolicySettings struct {
	// Enabled turns policy evaluation on.
	Enabled bool `yaml:"enabled"`

	// Paths are extra .rego/.json files or directories loaded next to the built-ins.
	Paths []string `yaml:"paths,omitempty"`

	// Watch reloads policies when files under Paths change.
	Watch bool `yaml:"watch"`

	// Disabled names built-in or loaded policies that are not evaluated.
	Disabled []string `yaml:"disabled,omitempty"`
}

// DefaultSettings returns Settings with sensible defaults.
func DefaultSettings() *Settings {
	return &Settings{
		CLI: CLISettings{
			Binary:               "diagrid",
			AlreadyExistsMarkers: []string{"already exists"},
		},
		Database: DatabaseSettings{
			Path: ".catalyst/history.db",
		},
		Policy: PolicySettings{
			Enabled: true,
		},
		Telemetry:      telemetry.DefaultConfig(),
		EnvWaitTimeout: 10 * time.Minute,
	}
}

// LoadSettings reads settings from path over the defaults and applies environment
// overrides. An empty path yields the defaults with overrides applied.
func LoadSettings(path string) (*Settings, error) {
	settings := DefaultSettings()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read settings %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
		}
	}

	settings.ApplyEnv(os.LookupEnv)

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// ApplyEnv applies environment overrides using lookup.
func (s *Settings) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvCLIBinary); ok && v != "" {
		s.CLI.Binary = v
	}
	if v, ok := lookup(EnvDatabase); ok {
		s.Database.Path = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" && s.Telemetry != nil {
		s.Telemetry.Logging.Level = v
	}
}

// Validate checks the settings.
func (s *Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid settings: %s failed on the '%s' rule", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid settings: %w", err)
	}

	if err := s.Telemetry.Validate(); err != nil {
		return fmt.Errorf("invalid telemetry settings: %w", err)
	}

	return nil
}
