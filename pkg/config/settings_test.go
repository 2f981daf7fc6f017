package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	if err := s.Validate(); err != nil {
		t.Fatalf("default settings are invalid: %v", err)
	}
	if s.CLI.Binary != "diagrid" {
		t.Errorf("expected diagrid binary, got %s", s.CLI.Binary)
	}
	if len(s.CLI.AlreadyExistsMarkers) != 1 || s.CLI.AlreadyExistsMarkers[0] != "already exists" {
		t.Errorf("unexpected markers: %v", s.CLI.AlreadyExistsMarkers)
	}
	if s.EnvWaitTimeout != 10*time.Minute {
		t.Errorf("unexpected env wait timeout: %s", s.EnvWaitTimeout)
	}
}

func TestLoadSettings(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "settings.yaml")

	content := `
cli:
  binary: /opt/diagrid/bin/diagrid
  command_timeout: 2m
  already_exists_markers: ["already exists", "AlreadyExists"]
database:
  path: /var/lib/catalyst/history.db
policy:
  enabled: false
telemetry:
  logging:
    level: debug
env_wait_timeout: 30s
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write settings: %v", err)
	}

	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}

	if s.CLI.Binary != "/opt/diagrid/bin/diagrid" {
		t.Errorf("unexpected binary: %s", s.CLI.Binary)
	}
	if s.CLI.CommandTimeout != 2*time.Minute {
		t.Errorf("unexpected command timeout: %s", s.CLI.CommandTimeout)
	}
	if len(s.CLI.AlreadyExistsMarkers) != 2 {
		t.Errorf("expected 2 markers, got %v", s.CLI.AlreadyExistsMarkers)
	}
	if s.Database.Path != "/var/lib/catalyst/history.db" {
		t.Errorf("unexpected database path: %s", s.Database.Path)
	}
	if s.Policy.Enabled {
		t.Error("expected policy to be disabled")
	}
	if s.Telemetry.Logging.Level != "debug" {
		t.Errorf("unexpected log level: %s", s.Telemetry.Logging.Level)
	}
	if s.Telemetry.ServiceName != "catalyst-provisioner" {
		t.Errorf("expected telemetry defaults to survive, got service %q", s.Telemetry.ServiceName)
	}
	if s.EnvWaitTimeout != 30*time.Second {
		t.Errorf("unexpected env wait timeout: %s", s.EnvWaitTimeout)
	}
}

func TestLoadSettingsErrors(t *testing.T) {
	tmpDir := t.TempDir()

	if _, err := LoadSettings(filepath.Join(tmpDir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(tmpDir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("cli: ["), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if _, err := LoadSettings(bad); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestSettingsApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvCLIBinary: "/usr/local/bin/diagrid",
		EnvDatabase:  "",
		EnvLogLevel:  "warn",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	s := DefaultSettings()
	s.ApplyEnv(lookup)

	if s.CLI.Binary != "/usr/local/bin/diagrid" {
		t.Errorf("expected binary override, got %s", s.CLI.Binary)
	}
	if s.Database.Path != "" {
		t.Errorf("expected empty database path to disable history, got %s", s.Database.Path)
	}
	if s.Telemetry.Logging.Level != "warn" {
		t.Errorf("expected log level override, got %s", s.Telemetry.Logging.Level)
	}
}

func TestSettingsValidation(t *testing.T) {
	tests := []struct {
		name       string
		modifyFunc func(*Settings)
		errorMsg   string
	}{
		{
			name:       "missing binary",
			modifyFunc: func(s *Settings) { s.CLI.Binary = "" },
			errorMsg:   "Binary",
		},
		{
			name:       "empty marker",
			modifyFunc: func(s *Settings) { s.CLI.AlreadyExistsMarkers = []string{""} },
			errorMsg:   "AlreadyExistsMarkers",
		},
		{
			name:       "negative wait timeout",
			modifyFunc: func(s *Settings) { s.EnvWaitTimeout = -time.Second },
			errorMsg:   "EnvWaitTimeout",
		},
		{
			name:       "missing telemetry",
			modifyFunc: func(s *Settings) { s.Telemetry = nil },
			errorMsg:   "Telemetry",
		},
		{
			name:       "invalid log level",
			modifyFunc: func(s *Settings) { s.Telemetry.Logging.Level = "loud" },
			errorMsg:   "Level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.modifyFunc(s)

			err := s.Validate()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("expected error containing %q, got %q", tt.errorMsg, err.Error())
			}
		})
	}
}
