package cli

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/diagrid-labs/catalyst-provisioner/pkg/engine"
)

func newShellRunner(t *testing.T) *ProcessRunner {
	t.Helper()

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	config := DefaultConfig()
	config.Binary = "sh"
	config.WaitDelay = 100 * time.Millisecond

	runner, err := NewProcessRunner(config)
	if err != nil {
		t.Fatalf("failed to create runner: %v", err)
	}
	return runner
}

func TestProcessRunnerRun(t *testing.T) {
	runner := newShellRunner(t)

	tests := []struct {
		name           string
		script         string
		expectedStdout string
		expectedStderr string
		expectedExit   int
	}{
		{
			name:           "stdout",
			script:         "echo hello",
			expectedStdout: "hello",
		},
		{
			name:           "stderr",
			script:         "echo oops >&2",
			expectedStderr: "oops",
		},
		{
			name:           "non-zero exit",
			script:         "echo partial; echo already exists >&2; exit 3",
			expectedStdout: "partial",
			expectedStderr: "already exists",
			expectedExit:   3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := runner.Run(context.Background(), []string{"-c", tt.script})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Stdout != tt.expectedStdout {
				t.Errorf("expected stdout %q, got %q", tt.expectedStdout, result.Stdout)
			}
			if result.Stderr != tt.expectedStderr {
				t.Errorf("expected stderr %q, got %q", tt.expectedStderr, result.Stderr)
			}
			if result.ExitCode != tt.expectedExit {
				t.Errorf("expected exit code %d, got %d", tt.expectedExit, result.ExitCode)
			}
		})
	}
}

func TestProcessRunnerMissingBinary(t *testing.T) {
	config := DefaultConfig()
	config.Binary = "catalyst-cli-that-does-not-exist"

	runner, err := NewProcessRunner(config)
	if err != nil {
		t.Fatalf("failed to create runner: %v", err)
	}

	_, err = runner.Run(context.Background(), []string{"project", "list"})
	if !engine.HasCode(err, engine.ErrCodeProcessStart) {
		t.Fatalf("expected PROCESS_START_FAILED, got %v", err)
	}
	if !engine.IsPermanent(err) {
		t.Error("expected permanent error")
	}
}

func TestProcessRunnerCancellation(t *testing.T) {
	runner := newShellRunner(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := runner.Run(ctx, []string{"-c", "sleep 30"})
	if !engine.HasCode(err, engine.ErrCodeCancelled) {
		t.Fatalf("expected CANCELLED, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("cancellation took too long: %v", elapsed)
	}
}

func TestProcessRunnerEnv(t *testing.T) {
	runner := newShellRunner(t)
	runner.config.Env = map[string]string{"CATALYST_TEST_VALUE": "42"}

	result, err := runner.Run(context.Background(), []string{"-c", "echo $CATALYST_TEST_VALUE"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Stdout != "42" {
		t.Errorf("expected 42, got %q", result.Stdout)
	}
}

func TestProcessRunnerStream(t *testing.T) {
	runner := newShellRunner(t)

	var stdout, stderr bytes.Buffer
	err := runner.Stream(context.Background(), []string{"-c", "echo proxy up; echo warn >&2"}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(stdout.String()) != "proxy up" {
		t.Errorf("unexpected stdout %q", stdout.String())
	}
	if strings.TrimSpace(stderr.String()) != "warn" {
		t.Errorf("unexpected stderr %q", stderr.String())
	}

	err = runner.Stream(context.Background(), []string{"-c", "exit 4"}, &stdout, &stderr)
	if !engine.HasCode(err, engine.ErrCodeCLIFailed) {
		t.Errorf("expected CLI_FAILED, got %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		modifyFunc  func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:       "valid config",
			modifyFunc: func(c *Config) {},
		},
		{
			name:        "missing binary",
			modifyFunc:  func(c *Config) { c.Binary = "" },
			expectError: true,
			errorMsg:    "binary is required",
		},
		{
			name:        "negative timeout",
			modifyFunc:  func(c *Config) { c.CommandTimeout = -time.Second },
			expectError: true,
			errorMsg:    "invalid command timeout",
		},
		{
			name:        "empty marker",
			modifyFunc:  func(c *Config) { c.AlreadyExistsMarkers = []string{""} },
			expectError: true,
			errorMsg:    "markers must not be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modifyFunc(config)

			err := config.Validate()
			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("expected error containing %q, got %q", tt.errorMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
