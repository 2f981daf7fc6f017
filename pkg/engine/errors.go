package engine

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of a provisioning error.
type ErrorClass string

const (
	// ErrorClassTransient indicates a temporary failure that may succeed on a later run.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassPermanent indicates a failure that will not go away by repeating the call.
	// Invalid descriptors, CLI rejections and unparseable CLI output are permanent.
	ErrorClassPermanent ErrorClass = "permanent"
)

// Sentinel errors.
var (
	// ErrGraphSealed is returned when a descriptor is added after the graph was snapshotted.
	ErrGraphSealed = errors.New("resource graph is sealed")

	// ErrProvisioningFailed is returned to environment waiters once orchestration failed.
	ErrProvisioningFailed = errors.New("provisioning failed")
)

// EngineError represents a classified provisioning error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is the error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Resource is the name of the cloud resource involved, if any.
	Resource string `json:"resource,omitempty"`

	// Operation is the provisioning operation that failed.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`

	// Details holds extra context such as captured CLI output.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	switch {
	case e.Resource != "" && e.Operation != "":
		msg += fmt.Sprintf(" (resource=%s, operation=%s)", e.Resource, e.Operation)
	case e.Resource != "":
		msg += fmt.Sprintf(" (resource=%s)", e.Resource)
	case e.Operation != "":
		msg += fmt.Sprintf(" (operation=%s)", e.Operation)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is matches on class and code so callers can compare against a template error.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewTransientError creates a new transient error.
func NewTransientError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassTransient,
		Message: message,
		Err:     err,
	}
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassPermanent,
		Message: message,
		Err:     err,
	}
}

// NewValidationError creates a permanent error with the validation code.
func NewValidationError(message string) *EngineError {
	return NewPermanentError(message, nil).WithCode(ErrCodeValidation)
}

// WithResource adds resource context to an error.
func (e *EngineError) WithResource(name string) *EngineError {
	e.Resource = name
	return e
}

// WithOperation adds operation context to an error.
func (e *EngineError) WithOperation(operation string) *EngineError {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsTransient returns true if the error is classified as transient.
func IsTransient(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassTransient
	}
	return false
}

// IsPermanent returns true if the error is classified as permanent.
func IsPermanent(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassPermanent
	}
	return false
}

// IsRetryable reports whether a later run could succeed. The orchestrator never retries
// on its own; callers use this to decide whether to re-run provisioning.
func IsRetryable(err error) bool {
	return IsTransient(err)
}

// GetErrorCode returns the code of the first EngineError in the chain, or "".
func GetErrorCode(err error) string {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether err carries the given error code.
func HasCode(err error, code string) bool {
	return GetErrorCode(err) == code
}

// Error codes.
const (
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeAlreadyExists  = "ALREADY_EXISTS"
	ErrCodeAlreadyStarted = "ALREADY_STARTED"
	ErrCodeProcessStart   = "PROCESS_START_FAILED"
	ErrCodeCLIFailed      = "CLI_FAILED"
	ErrCodeMalformed      = "MALFORMED_OUTPUT"
	ErrCodePolicyDenied   = "POLICY_DENIED"
	ErrCodeCancelled      = "CANCELLED"
	ErrCodeInternal       = "INTERNAL_ERROR"
)
