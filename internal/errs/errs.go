// Package errs defines the runtime's error taxonomy (spec §7) as typed,
// chainable errors. Every kind is a sentinel wrapped by errors.Is/As-friendly
// construction helpers, following the shape of the teacher's ToolError chain.
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies one of the taxonomy's error categories.
type Kind string

const (
	KindBudgetExceeded      Kind = "BudgetExceeded"
	KindPersistenceConflict Kind = "PersistenceConflict"
	KindVersionConflict     Kind = "VersionConflict"
	KindHandleNotFound      Kind = "HandleNotFound"
	KindUnknownTool         Kind = "UnknownTool"
	KindParamValidation     Kind = "ParamValidation"
	KindNotApproved         Kind = "NotApproved"
	KindToolTimeout         Kind = "ToolTimeout"
	KindToolFailure         Kind = "ToolFailure"
	KindPartialRecovery     Kind = "PartialRecovery"
	KindMaxStepsReached     Kind = "MaxStepsReached"
	KindCancelled           Kind = "Cancelled"
	KindBusOverflow         Kind = "BusOverflow"
	KindJudgeUnparseable    Kind = "JudgeUnparseable"
	KindResumeValidation    Kind = "ResumeValidation"
	KindInternal            Kind = "Internal"
)

// Error is a structured runtime error carrying a taxonomy kind, a
// human-readable message, and an optional cause chain.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf formats message according to a format specifier.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error under the given kind.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap supports errors.Is/As over the cause chain.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind, enabling
// errors.Is(err, errs.New(KindVersionConflict, "")) style matching against a
// kind regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error, returning
// KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err is (or wraps) an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind && err != nil
}
