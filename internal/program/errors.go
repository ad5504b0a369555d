package program

import (
	"errors"
	"fmt"
	"runtime"
)

// RuntimeError is a fatal condition detected by a program. Mount failures
// are returned as *RuntimeError; cycle failures are raised as panics
// carrying one.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// ProgramID identifies the program.
	ProgramID string

	// Seq and FlowToken identify the failing cycle, when there is one.
	Seq       int64
	FlowToken string

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeReconcileFailed indicates the reconciler rejected a view.
	ErrCodeReconcileFailed RuntimeErrorCode = "RECONCILE_FAILED"

	// ErrCodeStyleInjection indicates a style could not be injected.
	ErrCodeStyleInjection RuntimeErrorCode = "STYLE_INJECTION_FAILED"

	// ErrCodeAttachFailed indicates the initial tree could not be attached.
	ErrCodeAttachFailed RuntimeErrorCode = "ATTACH_FAILED"

	// ErrCodeQuotaExceeded indicates a flow exceeded its step quota.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeScheduleRejected indicates the frame scheduler refused a
	// deferred cycle, so its message would have been lost.
	ErrCodeScheduleRejected RuntimeErrorCode = "SCHEDULE_REJECTED"
)

func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.FlowToken != "" {
		msg += fmt.Sprintf(" (flow=%s, seq=%d)", e.FlowToken, e.Seq)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsQuotaError reports whether err is a quota error, either a
// *RuntimeError with ErrCodeQuotaExceeded or a *StepsExceededError.
func IsQuotaError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) && re.Code == ErrCodeQuotaExceeded {
		return true
	}
	return IsStepsExceededError(err)
}

// IsReconcileError reports whether err is a reconcile failure.
func IsReconcileError(err error) bool {
	return hasCode(err, ErrCodeReconcileFailed)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Code == code
}

// NewQuotaError wraps a *StepsExceededError into the runtime error a cycle
// panics with.
func NewQuotaError(programID string, seq int64, se *StepsExceededError) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeQuotaExceeded,
		Message:   fmt.Sprintf("flow exceeded max steps (%d > %d)", se.Steps, se.Limit),
		ProgramID: programID,
		Seq:       seq,
		FlowToken: se.FlowToken,
		Err:       se,
	}
}

// Recover converts a panic raised by a cycle into an error. Use it in a
// deferred call at an embedding boundary that must not crash:
//
//	defer program.Recover(&err)
//
// Error values are converted. Runtime faults (runtime.Error, such as a nil
// dereference or an out of range index) and non-error values are re-raised.
func Recover(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if _, ok := r.(runtime.Error); ok {
		panic(r)
	}
	err, ok := r.(error)
	if !ok {
		panic(r)
	}
	*errp = err
}
