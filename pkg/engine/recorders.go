package engine

import (
	"context"
	"errors"
)

// MultiRecorder fans run history out to several recorders. Every recorder is called
// even when an earlier one fails; the errors are joined.
type MultiRecorder []RunRecorder

var _ RunRecorder = MultiRecorder(nil)

// BeginRun implements RunRecorder.
func (m MultiRecorder) BeginRun(ctx context.Context, runID string, snapshot *GraphSnapshot) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.BeginRun(ctx, runID, snapshot))
	}
	return errors.Join(errs...)
}

// RecordTransition implements RunRecorder.
func (m MultiRecorder) RecordTransition(ctx context.Context, update StatusUpdate) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.RecordTransition(ctx, update))
	}
	return errors.Join(errs...)
}

// RecordResource implements RunRecorder.
func (m MultiRecorder) RecordResource(ctx context.Context, record ResourceRecord) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.RecordResource(ctx, record))
	}
	return errors.Join(errs...)
}

// FinishRun implements RunRecorder.
func (m MultiRecorder) FinishRun(ctx context.Context, result *RunResult) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.FinishRun(ctx, result))
	}
	return errors.Join(errs...)
}
