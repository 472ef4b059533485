// Package errs implements the tagged error taxonomy every other package in
// this module reports through: a Kind plus a machine Code and a human
// message, wrapping whatever underlying cause triggered it.
package errs

import (
	"errors"
	"fmt"
)

// Kind discriminates the taxonomy fixed by the engine's error handling
// design: each kind carries its own propagation disposition.
type Kind string

const (
	KindBuild      Kind = "BuildError"
	KindValidation Kind = "ValidationError"
	KindTemplate   Kind = "TemplateError"
	KindDispatch   Kind = "DispatchError"
	KindBackend    Kind = "BackendError"
	KindNode       Kind = "NodeError"
	KindTraversal  Kind = "TraversalError"
	KindTimeout    Kind = "TimeoutError"
)

// Error is the single concrete error type returned by this module. Callers
// that need to branch on kind use errors.As against *Error, or the Is
// helpers below.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error with no wrapped cause.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap constructs an *Error carrying cause, giving callers a typed
// errors.As target on top of the usual %w chain.
func Wrap(kind Kind, code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Cause: cause}
}

// Is reports whether err is (or wraps) an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

func Build(code, msg string, cause error) *Error      { return wrapOrNew(KindBuild, code, msg, cause) }
func Validation(code, msg string, cause error) *Error { return wrapOrNew(KindValidation, code, msg, cause) }
func Template(code, msg string, cause error) *Error   { return wrapOrNew(KindTemplate, code, msg, cause) }
func Dispatch(code, msg string, cause error) *Error   { return wrapOrNew(KindDispatch, code, msg, cause) }
func Backend(code, msg string, cause error) *Error    { return wrapOrNew(KindBackend, code, msg, cause) }
func Node(code, msg string, cause error) *Error       { return wrapOrNew(KindNode, code, msg, cause) }
func Traversal(code, msg string, cause error) *Error  { return wrapOrNew(KindTraversal, code, msg, cause) }
func Timeout(code, msg string, cause error) *Error    { return wrapOrNew(KindTimeout, code, msg, cause) }

func wrapOrNew(kind Kind, code, msg string, cause error) *Error {
	if cause == nil {
		return New(kind, code, msg)
	}
	return Wrap(kind, code, msg, cause)
}

// ValidationViolations aggregates the {nodeId: message} pairs the
// ReadinessValidator post-processor collects before aborting a load.
type ValidationViolations map[string]string

// AsValidationError renders a set of per-node violations into a single
// ValidationError listing every {nodeId: message} pair.
func AsValidationError(violations ValidationViolations) *Error {
	return New(KindValidation, "readiness_failed", fmt.Sprintf("%d node(s) not ready: %v", len(violations), violations))
}
