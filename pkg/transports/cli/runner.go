// Package cli drives the Catalyst provisioning CLI as a child process.
package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/diagrid-labs/catalyst-provisioner/pkg/engine"
	"github.com/rs/zerolog/log"
)

// Result is the outcome of one CLI invocation.
type Result struct {
	// Args is the argument vector passed to the binary.
	Args []string

	// Stdout is the captured standard output.
	Stdout string

	// Stderr is the captured standard error.
	Stderr string

	// ExitCode is the process exit code, or -1 if it did not exit normally.
	ExitCode int

	// Duration is the wall time of the invocation.
	Duration time.Duration
}

// Output returns stdout and stderr joined, for text matching and error details.
func (r *Result) Output() string {
	switch {
	case r.Stderr == "":
		return r.Stdout
	case r.Stdout == "":
		return r.Stderr
	default:
		return r.Stdout + "\n" + r.Stderr
	}
}

// Runner runs one CLI invocation and waits for it.
// A non-zero exit code is reported in the Result, not as an error; errors are
// reserved for processes that could not be started or were cancelled.
type Runner interface {
	Run(ctx context.Context, args []string) (*Result, error)
}

// Streamer runs a long-lived CLI process with its output attached to writers.
type Streamer interface {
	Stream(ctx context.Context, args []string, stdout, stderr io.Writer) error
}

// ProcessRunner runs the configured binary with os/exec.
type ProcessRunner struct {
	config *Config
}

// NewProcessRunner creates a runner for the given configuration.
func NewProcessRunner(config *Config) (*ProcessRunner, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cli config: %w", err)
	}
	return &ProcessRunner{config: config}, nil
}

// Run spawns the binary, captures stdout and stderr separately and waits for exit.
// Cancelling ctx kills the process and Run returns promptly.
func (p *ProcessRunner) Run(ctx context.Context, args []string) (*Result, error) {
	if p.config.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.CommandTimeout)
		defer cancel()
	}

	startTime := time.Now()

	log.Debug().
		Str("binary", p.config.Binary).
		Strs("args", args).
		Msg("executing command")

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd := p.command(ctx, args)
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	if err := cmd.Start(); err != nil {
		return nil, engine.NewPermanentError("failed to start provisioning process", err).
			WithCode(engine.ErrCodeProcessStart).
			WithOperation(commandName(args)).
			WithDetail("binary", p.config.Binary)
	}

	waitErr := cmd.Wait()

	result := &Result{
		Args:     append([]string(nil), args...),
		Stdout:   strings.TrimSpace(stdoutBuf.String()),
		Stderr:   strings.TrimSpace(stderrBuf.String()),
		ExitCode: cmd.ProcessState.ExitCode(),
		Duration: time.Since(startTime),
	}

	log.Debug().
		Str("command", commandName(args)).
		Int("exit_code", result.ExitCode).
		Int("stdout_len", len(result.Stdout)).
		Int("stderr_len", len(result.Stderr)).
		Dur("duration", result.Duration).
		Msg("command completed")

	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, engine.NewTransientError("provisioning command cancelled", ctxErr).
			WithCode(engine.ErrCodeCancelled).
			WithOperation(commandName(args))
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return result, engine.NewPermanentError("provisioning process failed", waitErr).
			WithCode(engine.ErrCodeInternal).
			WithOperation(commandName(args))
	}

	return result, nil
}

// Stream runs a long-lived command, such as a local dev proxy, until it exits or ctx ends.
func (p *ProcessRunner) Stream(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cmd := p.command(ctx, args)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return engine.NewPermanentError("failed to start provisioning process", err).
			WithCode(engine.ErrCodeProcessStart).
			WithOperation(commandName(args))
	}

	err := cmd.Wait()
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return engine.NewPermanentError("provisioning process exited", err).
			WithCode(engine.ErrCodeCLIFailed).
			WithOperation(commandName(args))
	}
	return nil
}

func (p *ProcessRunner) command(ctx context.Context, args []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, p.config.Binary, args...)
	cmd.WaitDelay = p.config.WaitDelay

	if p.config.WorkingDir != "" {
		cmd.Dir = p.config.WorkingDir
	}

	if len(p.config.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range p.config.Env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
	}

	return cmd
}

// commandName returns the leading verbs of an argument vector, e.g. "project create".
func commandName(args []string) string {
	var verbs []string
	for _, a := range args {
		if strings.HasPrefix(a, "-") || len(verbs) == 2 {
			break
		}
		verbs = append(verbs, a)
	}
	return strings.Join(verbs, " ")
}
