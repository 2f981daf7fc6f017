package cli

import (
	"context"
	"strings"
	"sync"
	"time"
)

// fakeRunner records invocations and replays canned results keyed by command name.
type fakeRunner struct {
	mu      sync.Mutex
	calls   [][]string
	results map[string]*Result
	errs    map[string]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		results: make(map[string]*Result),
		errs:    make(map[string]error),
	}
}

func (f *fakeRunner) on(command string, exitCode int, stdout, stderr string) {
	f.results[command] = &Result{
		Stdout:   stdout,
		Stderr:   stderr,
		ExitCode: exitCode,
		Duration: time.Millisecond,
	}
}

func (f *fakeRunner) Run(ctx context.Context, args []string) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, append([]string(nil), args...))

	name := commandName(args)
	if err, ok := f.errs[name]; ok {
		return nil, err
	}

	result := &Result{Duration: time.Millisecond}
	if canned, ok := f.results[name]; ok {
		copied := *canned
		result = &copied
	}
	result.Args = append([]string(nil), args...)
	return result, nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRunner) lastCall() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

func (f *fakeRunner) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, strings.Join(c, " "))
	}
	return out
}

type invocation struct {
	command  string
	exitCode int
}

type fakeRecorder struct {
	mu          sync.Mutex
	invocations []invocation
}

func (r *fakeRecorder) RecordCLIInvocation(command string, exitCode int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invocations = append(r.invocations, invocation{command: command, exitCode: exitCode})
}
