// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ErrorCategory classifies command failures so scripts can tell bad
// input from a daemon that is not running without parsing messages.
type ErrorCategory string

const (
	// CategoryValidation: the caller provided invalid input.
	CategoryValidation ErrorCategory = "validation"

	// CategoryNotFound: a referenced file or resource does not exist.
	CategoryNotFound ErrorCategory = "not_found"

	// CategoryTransient: the daemon or host was unreachable or busy.
	// Retrying later may succeed.
	CategoryTransient ErrorCategory = "transient"

	// CategoryInternal: an unexpected failure.
	CategoryInternal ErrorCategory = "internal"
)

// exitCodes maps each category to the process exit code.
var exitCodes = map[ErrorCategory]int{
	CategoryValidation: 2,
	CategoryNotFound:   3,
	CategoryTransient:  4,
	CategoryInternal:   1,
}

// ToolError is a categorized error returned by commands. It wraps the
// underlying error so errors.Is and errors.As see the full chain.
type ToolError struct {
	Category ErrorCategory
	Err      error

	// Hint is printed after the error message to suggest a next step.
	Hint string
}

func (e *ToolError) Error() string { return e.Err.Error() }

func (e *ToolError) Unwrap() error { return e.Err }

// ExitCode returns the category's exit code.
func (e *ToolError) ExitCode() int {
	if code, ok := exitCodes[e.Category]; ok {
		return code
	}
	return 1
}

// WithHint sets Hint and returns e.
func (e *ToolError) WithHint(hint string) *ToolError {
	e.Hint = hint
	return e
}

// Validation creates a validation error.
func Validation(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryValidation, Err: fmt.Errorf(format, args...)}
}

// NotFound creates a not-found error.
func NotFound(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryNotFound, Err: fmt.Errorf(format, args...)}
}

// Transient creates a transient error.
func Transient(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryTransient, Err: fmt.Errorf(format, args...)}
}

// Internal creates an internal error.
func Internal(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryInternal, Err: fmt.Errorf(format, args...)}
}
