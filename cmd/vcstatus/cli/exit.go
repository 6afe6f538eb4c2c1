// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
	"io"
)

// ExitError requests a non-zero exit without an error message. The
// command has already written its own output (e.g., "status" exiting
// 1 when the daemon is not connected to the host).
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the exit code.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// Report writes err to w the way main presents it and returns the
// process exit code. An ExitError prints nothing.
func Report(w io.Writer, err error) int {
	var exitError *ExitError
	if errors.As(err, &exitError) {
		return exitError.Code
	}

	fmt.Fprintf(w, "error: %v\n", err)
	var toolError *ToolError
	if errors.As(err, &toolError) {
		if toolError.Hint != "" {
			fmt.Fprintf(w, "\n%s\n", toolError.Hint)
		}
		return toolError.ExitCode()
	}
	return 1
}
