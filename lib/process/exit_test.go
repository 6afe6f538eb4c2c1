// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"bytes"
	"errors"
	"testing"
)

type codedError struct{ code int }

func (e codedError) Error() string { return "coded" }
func (e codedError) ExitCode() int { return e.code }

func TestReport(t *testing.T) {
	var output bytes.Buffer
	if code := report(&output, errors.New("dial failed")); code != 1 {
		t.Errorf("plain error exit code = %d, want 1", code)
	}
	if output.String() != "error: dial failed\n" {
		t.Errorf("output = %q", output.String())
	}

	output.Reset()
	if code := report(&output, codedError{code: 3}); code != 3 {
		t.Errorf("coded error exit code = %d, want 3", code)
	}
}
